package device

import (
	"errors"
	"strings"
	"testing"

	"rdsim/internal/grid"
)

// fakeDriver counts lifecycle calls. Its kernel adds 1 to every input value.
type fakeDriver struct {
	opens, builds, allocs, releases int
	runs                            int
	openErr, buildErr, allocErr     error
	failAllocAt                     int
	lastContext                     *fakeContext
}

func (d *fakeDriver) Platforms() ([]PlatformInfo, error) {
	return []PlatformInfo{{Name: "fake", Devices: []string{"cpu0", "cpu1"}}}, nil
}

func (d *fakeDriver) Open(platform, device int) (Context, error) {
	if d.openErr != nil {
		return nil, d.openErr
	}
	d.opens++
	d.lastContext = &fakeContext{d: d, name: "cpu" + string(rune('0'+device))}
	return d.lastContext, nil
}

type fakeContext struct {
	d        *fakeDriver
	name     string
	released bool
}

func (c *fakeContext) DeviceName() string { return c.name }

func (c *fakeContext) Build(source, kernel string) (Program, error) {
	if c.d.buildErr != nil {
		return nil, &BuildError{Log: "error: expected ';'", Err: c.d.buildErr}
	}
	c.d.builds++
	return &fakeProgram{d: c.d, args: map[int]*fakeBuffer{}}, nil
}

func (c *fakeContext) Alloc(n int) (Buffer, error) {
	c.d.allocs++
	if c.d.allocErr != nil && c.d.allocs == c.d.failAllocAt {
		return nil, c.d.allocErr
	}
	return &fakeBuffer{d: c.d, data: make([]float32, n)}, nil
}

func (c *fakeContext) Finish() error { return nil }

func (c *fakeContext) Release() {
	c.released = true
	c.d.releases++
}

type fakeProgram struct {
	d    *fakeDriver
	args map[int]*fakeBuffer
}

func (p *fakeProgram) SetBuffer(arg int, b Buffer) error {
	p.args[arg] = b.(*fakeBuffer)
	return nil
}

func (p *fakeProgram) Run(global []int) error {
	p.d.runs++
	for arg := 0; ; arg += 2 {
		in, ok := p.args[arg]
		if !ok {
			return nil
		}
		out := p.args[arg+1]
		for i, v := range in.data {
			out.data[i] = v + 1
		}
	}
}

func (p *fakeProgram) Release() { p.d.releases++ }

type fakeBuffer struct {
	d    *fakeDriver
	data []float32
}

func (b *fakeBuffer) Write(data []float32) error { copy(b.data, data); return nil }
func (b *fakeBuffer) Read(data []float32) error  { copy(data, b.data); return nil }
func (b *fakeBuffer) Release()                   { b.d.releases++ }

func newTestManager(t *testing.T, d *fakeDriver) (*Manager, *grid.Grid) {
	t.Helper()
	g, err := grid.New(grid.Dims{X: 8, Y: 4, Z: 1}, 2)
	if err != nil {
		t.Fatal(err)
	}
	m := NewManager(d, nil)
	m.SetKernel("__kernel void rd_compute() {}", "rd_compute")
	if err := m.SetDims(g.Dims(), 2, 1); err != nil {
		t.Fatal(err)
	}
	return m, g
}

func TestEnsureIsIdempotent(t *testing.T) {
	d := &fakeDriver{}
	m, _ := newTestManager(t, d)
	if m.State() != Uninitialized {
		t.Fatalf("state = %v before Ensure", m.State())
	}
	for i := 0; i < 3; i++ {
		if err := m.Ensure(); err != nil {
			t.Fatal(err)
		}
	}
	if d.opens != 1 || d.builds != 1 || d.allocs != 4 {
		t.Errorf("opens=%d builds=%d allocs=%d, want 1/1/4", d.opens, d.builds, d.allocs)
	}
	if m.State() != BuffersReady {
		t.Errorf("state = %v, want %v", m.State(), BuffersReady)
	}
	if m.DeviceName() != "cpu0" {
		t.Errorf("device name = %q", m.DeviceName())
	}
}

func TestKernelChangeKeepsContext(t *testing.T) {
	d := &fakeDriver{}
	m, g := newTestManager(t, d)
	if err := m.Ensure(); err != nil {
		t.Fatal(err)
	}
	ctx := d.lastContext

	m.SetKernel("__kernel void rd_compute() { }", "rd_compute")
	if err := m.Ensure(); err != nil {
		t.Fatal(err)
	}
	if d.opens != 1 || ctx.released {
		t.Error("changing the kernel tore down the context")
	}
	if d.builds != 2 || d.allocs != 8 {
		t.Errorf("builds=%d allocs=%d, want 2/8", d.builds, d.allocs)
	}

	if err := m.SetDims(grid.Dims{X: 16, Y: 4, Z: 1}, 2, 4); err != nil {
		t.Fatal(err)
	}
	if err := m.Ensure(); err != nil {
		t.Fatal(err)
	}
	if d.opens != 1 || d.builds != 3 || d.allocs != 12 {
		t.Errorf("after SetDims: opens=%d builds=%d allocs=%d", d.opens, d.builds, d.allocs)
	}
	if _, err := m.Update(g, 2); err == nil {
		t.Error("Update accepted a grid that does not match the dims")
	}
	if err := m.SetDims(grid.Dims{X: 6, Y: 4, Z: 1}, 2, 4); err == nil {
		t.Error("SetDims accepted a width that is not a multiple of the block")
	}
}

func TestPlatformChangeReopens(t *testing.T) {
	d := &fakeDriver{}
	m, _ := newTestManager(t, d)
	if err := m.Ensure(); err != nil {
		t.Fatal(err)
	}
	m.SetPlatform(0)
	m.SetDevice(0)
	if err := m.Ensure(); err != nil {
		t.Fatal(err)
	}
	if d.opens != 1 {
		t.Fatalf("re-selecting the same device reopened it: opens=%d", d.opens)
	}
	first := d.lastContext
	m.SetDevice(1)
	if err := m.Ensure(); err != nil {
		t.Fatal(err)
	}
	if d.opens != 2 || !first.released {
		t.Errorf("device change: opens=%d released=%v", d.opens, first.released)
	}
	if d.builds != 2 {
		t.Errorf("program was not rebuilt on the new context: builds=%d", d.builds)
	}
	if m.DeviceName() != "cpu1" {
		t.Errorf("device name = %q", m.DeviceName())
	}
}

func TestUpdateRoundsUpAndKeepsDataResident(t *testing.T) {
	d := &fakeDriver{}
	m, g := newTestManager(t, d)
	g.Fill(0, 10)
	g.Fill(1, 20)

	n, err := m.Update(g, 3)
	if err != nil {
		t.Fatal(err)
	}
	if n != 4 || d.runs != 4 {
		t.Errorf("Update(3) ran %d steps (%d dispatches), want 4", n, d.runs)
	}
	if g.At(0, 0, 0, 0) != 14 || g.At(1, 7, 3, 0) != 24 {
		t.Errorf("after 4 steps: a=%v b=%v", g.At(0, 0, 0, 0), g.At(1, 7, 3, 0))
	}
	if m.State() != Running {
		t.Errorf("state = %v, want running", m.State())
	}

	// host edits are ignored until marked
	g.Set(0, 0, 0, 0, 100)
	if _, err := m.Update(g, 2); err != nil {
		t.Fatal(err)
	}
	if g.At(0, 0, 0, 0) != 16 {
		t.Errorf("unmarked edit leaked to the device: %v", g.At(0, 0, 0, 0))
	}
	g.Set(0, 0, 0, 0, 100)
	m.MarkHostDirty()
	if _, err := m.Update(g, 2); err != nil {
		t.Fatal(err)
	}
	if g.At(0, 0, 0, 0) != 102 {
		t.Errorf("marked edit was not uploaded: %v", g.At(0, 0, 0, 0))
	}
	if n, err := m.Update(g, 0); n != 0 || err != nil {
		t.Errorf("Update(0) = %d, %v", n, err)
	}
}

func TestFailuresSurface(t *testing.T) {
	d := &fakeDriver{openErr: errors.New("no platforms")}
	m, _ := newTestManager(t, d)
	err := m.Ensure()
	if err == nil || !strings.Contains(err.Error(), "no platforms") {
		t.Fatalf("open error = %v", err)
	}
	if m.State() != Uninitialized {
		t.Errorf("state = %v after failed open", m.State())
	}

	d = &fakeDriver{buildErr: errors.New("CL_BUILD_PROGRAM_FAILURE")}
	m, _ = newTestManager(t, d)
	err = m.Ensure()
	var berr *BuildError
	if !errors.As(err, &berr) || !strings.Contains(err.Error(), "expected ';'") {
		t.Fatalf("build error = %v", err)
	}
	if m.State() != ContextReady {
		t.Errorf("state = %v after failed build", m.State())
	}

	d = &fakeDriver{allocErr: errors.New("out of memory"), failAllocAt: 3}
	m, _ = newTestManager(t, d)
	if err := m.Ensure(); err == nil {
		t.Fatal("alloc failure was swallowed")
	}
	// two buffers were created before the failure and both were released
	if d.releases != 2 {
		t.Errorf("releases = %d, want 2", d.releases)
	}
	if m.State() != ProgramReady {
		t.Errorf("state = %v after failed alloc", m.State())
	}
}

func TestCloseReleasesEverything(t *testing.T) {
	d := &fakeDriver{}
	m, _ := newTestManager(t, d)
	if err := m.Ensure(); err != nil {
		t.Fatal(err)
	}
	m.Close()
	// 4 buffers, 1 program, 1 context
	if d.releases != 6 {
		t.Errorf("releases = %d, want 6", d.releases)
	}
	if m.State() != Uninitialized {
		t.Errorf("state = %v after Close", m.State())
	}
}
