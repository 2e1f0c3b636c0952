//go:build opencl

package device

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
)

// OpenCL returns the driver backed by the system's OpenCL ICD loader.
func OpenCL() Driver { return openCLDriver{} }

type openCLDriver struct{}

func platforms() ([]*cl.Platform, error) {
	ps, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms; install OpenCL drivers and verify with `clinfo`"
		}
		return nil, fmt.Errorf("%s: %w", msg, err)
	}
	if len(ps) == 0 {
		return nil, errors.New("no OpenCL platforms available; ensure a vendor driver is installed and detected by `clinfo`")
	}
	return ps, nil
}

func devices(p *cl.Platform) ([]*cl.Device, error) {
	ds, err := p.GetDevices(cl.DeviceTypeAll)
	if err != nil && err != cl.ErrDeviceNotFound {
		return nil, fmt.Errorf("listing devices of %s: %w", p.Name(), err)
	}
	return ds, nil
}

func (openCLDriver) Platforms() ([]PlatformInfo, error) {
	ps, err := platforms()
	if err != nil {
		return nil, err
	}
	infos := make([]PlatformInfo, 0, len(ps))
	for _, p := range ps {
		info := PlatformInfo{Name: p.Name()}
		ds, err := devices(p)
		if err != nil {
			return nil, err
		}
		for _, d := range ds {
			info.Devices = append(info.Devices, d.Name())
		}
		infos = append(infos, info)
	}
	return infos, nil
}

func (openCLDriver) Open(platform, device int) (Context, error) {
	ps, err := platforms()
	if err != nil {
		return nil, err
	}
	if platform < 0 || platform >= len(ps) {
		return nil, fmt.Errorf("platform %d out of range: %d platform(s) available", platform, len(ps))
	}
	ds, err := devices(ps[platform])
	if err != nil {
		return nil, err
	}
	if device < 0 || device >= len(ds) {
		return nil, fmt.Errorf("device %d out of range: platform %q has %d device(s)", device, ps[platform].Name(), len(ds))
	}
	d := ds[device]
	context, err := cl.CreateContext([]*cl.Device{d})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	queue, err := context.CreateCommandQueue(d, 0)
	if err != nil {
		context.Release()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	return &clContext{context: context, queue: queue, device: d}, nil
}

type clContext struct {
	context *cl.Context
	queue   *cl.CommandQueue
	device  *cl.Device
}

func (c *clContext) DeviceName() string { return c.device.Name() }

func (c *clContext) Build(source, kernel string) (Program, error) {
	program, err := c.context.CreateProgramWithSource([]string{source})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err := program.BuildProgram([]*cl.Device{c.device}, ""); err != nil {
		program.Release()
		if buildErr, ok := err.(cl.BuildError); ok {
			return nil, &BuildError{Log: string(buildErr), Err: err}
		}
		return nil, &BuildError{Err: err}
	}
	k, err := program.CreateKernel(kernel)
	if err != nil {
		program.Release()
		return nil, fmt.Errorf("creating OpenCL kernel %q: %w", kernel, err)
	}
	return &clProgram{program: program, kernel: k, queue: c.queue}, nil
}

func (c *clContext) Alloc(n int) (Buffer, error) {
	mem, err := c.context.CreateEmptyBuffer(cl.MemReadWrite, n*int(unsafe.Sizeof(float32(0))))
	if err != nil {
		return nil, err
	}
	return &clBuffer{mem: mem, queue: c.queue}, nil
}

func (c *clContext) Finish() error { return c.queue.Finish() }

func (c *clContext) Release() {
	if c.queue != nil {
		c.queue.Release()
		c.queue = nil
	}
	if c.context != nil {
		c.context.Release()
		c.context = nil
	}
}

type clProgram struct {
	program *cl.Program
	kernel  *cl.Kernel
	queue   *cl.CommandQueue
}

func (p *clProgram) SetBuffer(arg int, b Buffer) error {
	buf, ok := b.(*clBuffer)
	if !ok {
		return fmt.Errorf("argument %d: buffer %T does not belong to OpenCL", arg, b)
	}
	return p.kernel.SetArgBuffer(arg, buf.mem)
}

func (p *clProgram) Run(global []int) error {
	_, err := p.queue.EnqueueNDRangeKernel(p.kernel, nil, global, nil, nil)
	return err
}

func (p *clProgram) Release() {
	if p.kernel != nil {
		p.kernel.Release()
		p.kernel = nil
	}
	if p.program != nil {
		p.program.Release()
		p.program = nil
	}
}

type clBuffer struct {
	mem   *cl.MemObject
	queue *cl.CommandQueue
}

func (b *clBuffer) Write(data []float32) error {
	_, err := b.queue.EnqueueWriteBufferFloat32(b.mem, true, 0, data, nil)
	return err
}

func (b *clBuffer) Read(data []float32) error {
	_, err := b.queue.EnqueueReadBufferFloat32(b.mem, true, 0, data, nil)
	return err
}

func (b *clBuffer) Release() {
	if b.mem != nil {
		b.mem.Release()
		b.mem = nil
	}
}
