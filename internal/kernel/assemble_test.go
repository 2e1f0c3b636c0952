package kernel

import (
	"errors"
	"strings"
	"testing"

	"rdsim/internal/rd"
)

func grayScott(dim int, n rd.Neighborhood, wrap bool, block int) Options {
	return Options{
		Formula:        rd.GrayScott.Formula,
		Chemicals:      2,
		Dimensionality: dim,
		Neighborhood:   n,
		Wrap:           wrap,
		Parameters:     rd.GrayScott.Defaults.Clone(),
		BlockX:         block,
	}
}

func mustAssemble(t *testing.T, opts Options) string {
	t.Helper()
	src, err := Assemble(opts)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	return src
}

func wantLines(t *testing.T, src string, lines ...string) {
	t.Helper()
	for _, l := range lines {
		if !strings.Contains(src, l) {
			t.Errorf("kernel is missing %q\n%s", l, src)
		}
	}
}

func TestAssembleIsDeterministic(t *testing.T) {
	for _, block := range []int{1, 4} {
		opts := grayScott(3, rd.Neighborhood{Type: rd.Vertex, Range: 1}, true, block)
		first := mustAssemble(t, opts)
		second := mustAssemble(t, opts)
		if first != second {
			t.Errorf("block %d: two assemblies differ", block)
		}
	}
}

func TestAssembleFivePointWrap(t *testing.T) {
	src := mustAssemble(t, grayScott(2, rd.DefaultNeighborhood(), true, 1))
	wantLines(t, src,
		"__kernel void rd_compute(",
		"__global float *a_in, __global float *a_out,",
		"__global float *b_in, __global float *b_out)",
		"const int i_here = X*(Y*z + y) + x;",
		"const int xm1 = (x - 1) & (X - 1);",
		"const int yp1 = (y + 1) & (Y - 1);",
		"const int i_n = X*(Y*z + ym1) + x;",
		"float a_w = a_in[i_w];",
		"float laplacian_a = a_n + a_w + a_e + a_s - 4.0f*a;",
		"float delta_b = 0.0f;",
		"const float D_a = 0.082f;",
		"const float timestep = 1.0f;",
		"    delta_a = D_a * laplacian_a - a*b*b + F*(1.0f - a);",
		"a_out[i_here] = a + timestep * delta_a;",
		"b_out[i_here] = b + timestep * delta_b;",
	)
	if strings.Contains(src, "1e-6f") {
		t.Error("scalar kernel carries the block epsilon")
	}
	if strings.Contains(src, "zm1") {
		t.Error("2D kernel derives z neighbors")
	}
	// the formula comes after the declarations it uses
	if strings.Index(src, "const float D_a") > strings.Index(src, "delta_a = D_a") {
		t.Error("parameters are declared after the formula")
	}
}

func TestAssembleClampAndStencils(t *testing.T) {
	src := mustAssemble(t, grayScott(2, rd.Neighborhood{Type: rd.Vertex, Range: 1}, false, 1))
	wantLines(t, src,
		"const int xm1 = max(x - 1, 0);",
		"const int yp1 = min(y + 1, Y - 1);",
		"float laplacian_b = (4.0f*(b_n + b_w + b_e + b_s) + b_nw + b_ne + b_sw + b_se - 20.0f*b) / 6.0f;",
	)

	src = mustAssemble(t, grayScott(3, rd.DefaultNeighborhood(), true, 1))
	wantLines(t, src,
		"const int zm1 = (z - 1) & (Z - 1);",
		"const int i_d = X*(Y*zm1 + y) + x;",
		"float laplacian_a = a_d + a_n + a_w + a_e + a_s + a_u - 6.0f*a;",
	)

	src = mustAssemble(t, grayScott(1, rd.DefaultNeighborhood(), false, 1))
	wantLines(t, src, "float laplacian_a = a_w + a_e - 2.0f*a;")

	src = mustAssemble(t, grayScott(2, rd.Neighborhood{Type: rd.Vertex, Range: 1, Weight: rd.EqualWeights}, true, 1))
	wantLines(t, src, "float laplacian_a = (a_nw + a_n + a_ne + a_w + a_e + a_sw + a_s + a_se - 8.0f*a) / 2.0f;")
}

func TestAssembleBlock(t *testing.T) {
	src := mustAssemble(t, grayScott(2, rd.DefaultNeighborhood(), true, 4))
	wantLines(t, src,
		"__global float4 *a_in, __global float4 *a_out,",
		"float4 a_bw = a_in[i_bw];",
		"float4 a_w = (float4)(a_bw.w, a.xyz);",
		"float4 a_e = (float4)(a.yzw, a_be.x);",
		"float4 laplacian_a = a_n + a_w + a_e + a_s - 4.0f*a + 1e-6f;",
		"float4 delta_a = 0.0f;",
	)
	if strings.Contains(src, "#define float float4") {
		t.Error("formula without locals is wrapped in a float4 define")
	}

	clamp := mustAssemble(t, grayScott(2, rd.DefaultNeighborhood(), false, 4))
	wantLines(t, clamp, "float4 a_w = (float4)((x > 0 ? a_bw.w : a.x), a.xyz);")

	opts := grayScott(2, rd.DefaultNeighborhood(), true, 4)
	opts.Formula = "float r = a*b*b;\ndelta_a = D_a * laplacian_a - r + F*(1.0f - a);\ndelta_b = D_b * laplacian_b + r - (F + k)*b;\n"
	wantLines(t, mustAssemble(t, opts), "#define float float4\n    float r = a*b*b;", "#undef float\n")
}

func TestAssembleErrors(t *testing.T) {
	opts := grayScott(2, rd.DefaultNeighborhood(), true, 1)
	opts.Formula = ""
	if _, err := Assemble(opts); err == nil {
		t.Error("accepted a rule without a formula")
	}

	opts = grayScott(2, rd.Neighborhood{Type: rd.Edge, Range: 1}, true, 1)
	_, err := Assemble(opts)
	if !errors.Is(err, rd.ErrUnsupportedNeighborhood) {
		t.Fatalf("expected ErrUnsupportedNeighborhood, got %v", err)
	}
	if !strings.Contains(err.Error(), "dimensionality=2 type=edge range=1") {
		t.Errorf("error does not name the combination: %v", err)
	}

	opts = grayScott(2, rd.DefaultNeighborhood(), true, 1)
	opts.Formula = "delta_a = D_a * laplacian_a;"
	if _, err := Assemble(opts); !errors.Is(err, rd.ErrFormula) {
		t.Errorf("expected ErrFormula for a missing delta, got %v", err)
	}

	opts = grayScott(2, rd.DefaultNeighborhood(), true, 1)
	opts.Parameters.Delete(rd.TimestepName)
	if _, err := Assemble(opts); !errors.Is(err, rd.ErrFormula) {
		t.Errorf("expected ErrFormula for a missing timestep, got %v", err)
	}

	opts = grayScott(2, rd.DefaultNeighborhood(), true, 3)
	if _, err := Assemble(opts); err == nil {
		t.Error("accepted block size 3")
	}

	for _, name := range []string{"x", "X", "i_here", "a_n", "float"} {
		opts = grayScott(2, rd.DefaultNeighborhood(), true, 1)
		opts.Parameters.Set(name, 1)
		if _, err := Assemble(opts); !errors.Is(err, rd.ErrFormula) {
			t.Errorf("parameter %q would shadow a kernel identifier, got %v", name, err)
		}
	}
}

func TestLiteral(t *testing.T) {
	tests := map[float32]string{
		1:      "1.0f",
		0.082:  "0.082f",
		-20:    "-20.0f",
		1e-7:   "1e-07f",
		0.0625: "0.0625f",
	}
	for v, want := range tests {
		if got := literal(v); got != want {
			t.Errorf("literal(%v) = %q, want %q", v, got, want)
		}
	}
}
