package device

import (
	"errors"
	"fmt"

	"rdsim/internal/grid"
	"rdsim/internal/logging"
)

// State is the readiness of the device pipeline. Each state implies the
// ones before it.
type State int

const (
	Uninitialized State = iota
	ContextReady
	ProgramReady
	BuffersReady
	Running
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case ContextReady:
		return "context ready"
	case ProgramReady:
		return "program ready"
	case BuffersReady:
		return "buffers ready"
	case Running:
		return "running"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Manager owns the context, the program and two buffers per chemical.
// Setters only mark stages stale; Ensure and Update rebuild what changed.
// A Manager is not safe for concurrent use.
type Manager struct {
	driver Driver
	log    logging.Logger

	platform, device int
	source, kernel   string
	dims             grid.Dims
	chemicals        int
	blockX           int

	ctx  Context
	prog Program
	// bufs[c] holds the two buffers of chemical c.
	bufs [][2]Buffer
	// bound is the phase currently bound to the kernel, -1 for none.
	bound int

	contextStale bool
	programStale bool
	buffersStale bool
	hostDirty    bool
	state        State
}

// NewManager returns an uninitialized manager.
func NewManager(driver Driver, log logging.Logger) *Manager {
	return &Manager{driver: driver, log: logging.OrNoOp(log), blockX: 1, bound: -1}
}

// Platforms lists the available platforms and devices.
func (m *Manager) Platforms() ([]PlatformInfo, error) {
	return m.driver.Platforms()
}

// State reports how far the pipeline is built.
func (m *Manager) State() State { return m.state }

// Source returns the kernel source last handed to SetKernel.
func (m *Manager) Source() string { return m.source }

// DeviceName returns the name of the open device, or "".
func (m *Manager) DeviceName() string {
	if m.ctx == nil {
		return ""
	}
	return m.ctx.DeviceName()
}

// SetPlatform selects the platform ordinal.
func (m *Manager) SetPlatform(i int) {
	if i != m.platform {
		m.platform = i
		m.contextStale = true
	}
}

// SetDevice selects the device ordinal within the platform.
func (m *Manager) SetDevice(i int) {
	if i != m.device {
		m.device = i
		m.contextStale = true
	}
}

// SetKernel sets the program source and its entry point.
func (m *Manager) SetKernel(source, kernel string) {
	if source != m.source || kernel != m.kernel {
		m.source, m.kernel = source, kernel
		m.programStale = true
		m.buffersStale = true
	}
}

// SetDims sets the lattice extents, the chemical count and the number of
// cells along x each work item handles.
func (m *Manager) SetDims(d grid.Dims, chemicals, blockX int) error {
	if blockX < 1 || d.X%blockX != 0 {
		return fmt.Errorf("grid width %d is not a multiple of the block size %d", d.X, blockX)
	}
	if chemicals < 1 {
		return fmt.Errorf("invalid chemical count %d", chemicals)
	}
	if d != m.dims || chemicals != m.chemicals || blockX != m.blockX {
		m.dims, m.chemicals, m.blockX = d, chemicals, blockX
		m.programStale = true
		m.buffersStale = true
	}
	return nil
}

// MarkHostDirty makes the next Update upload the host fields first.
func (m *Manager) MarkHostDirty() { m.hostDirty = true }

// Ensure brings every stage up to date. It is a no-op when nothing changed.
func (m *Manager) Ensure() error {
	if m.ctx == nil || m.contextStale {
		if err := m.openContext(); err != nil {
			return err
		}
	}
	if m.prog == nil || m.programStale {
		if err := m.buildProgram(); err != nil {
			return err
		}
	}
	if m.bufs == nil || m.buffersStale {
		if err := m.allocBuffers(); err != nil {
			return err
		}
	}
	return nil
}

func (m *Manager) openContext() error {
	m.releaseBuffers()
	m.releaseProgram()
	if m.ctx != nil {
		m.ctx.Release()
		m.ctx = nil
	}
	m.state = Uninitialized
	ctx, err := m.driver.Open(m.platform, m.device)
	if err != nil {
		return fmt.Errorf("opening device %d on platform %d: %w", m.device, m.platform, err)
	}
	m.ctx = ctx
	m.contextStale = false
	m.programStale = true
	m.buffersStale = true
	m.state = ContextReady
	m.log.Infof("opened device %q (platform %d, device %d)", ctx.DeviceName(), m.platform, m.device)
	return nil
}

func (m *Manager) buildProgram() error {
	if m.source == "" {
		return errors.New("no kernel source")
	}
	m.releaseProgram()
	m.state = ContextReady
	prog, err := m.ctx.Build(m.source, m.kernel)
	if err != nil {
		return err
	}
	m.prog = prog
	m.bound = -1
	m.programStale = false
	m.state = ProgramReady
	m.log.Infof("compiled kernel %s (%d bytes of source)", m.kernel, len(m.source))
	return nil
}

func (m *Manager) allocBuffers() error {
	if m.chemicals < 1 {
		return errors.New("grid dimensions are not set")
	}
	m.releaseBuffers()
	m.state = ProgramReady
	cells := m.dims.Cells()
	bufs := make([][2]Buffer, 0, m.chemicals)
	for c := 0; c < m.chemicals; c++ {
		var pair [2]Buffer
		for i := range pair {
			b, err := m.ctx.Alloc(cells)
			if err != nil {
				if i == 1 {
					pair[0].Release()
				}
				for j := len(bufs) - 1; j >= 0; j-- {
					bufs[j][1].Release()
					bufs[j][0].Release()
				}
				return fmt.Errorf("allocating buffer %d of chemical %d (%d cells): %w", i, c, cells, err)
			}
			pair[i] = b
		}
		bufs = append(bufs, pair)
	}
	m.bufs = bufs
	m.bound = -1
	m.buffersStale = false
	m.hostDirty = true
	m.state = BuffersReady
	m.log.Debugf("allocated %d buffers of %d cells", 2*m.chemicals, cells)
	return nil
}

// bind makes buffer phase the input and the other buffer the output.
func (m *Manager) bind(phase int) error {
	if m.bound == phase {
		return nil
	}
	for c, pair := range m.bufs {
		if err := m.prog.SetBuffer(2*c, pair[phase]); err != nil {
			return fmt.Errorf("binding input of chemical %d: %w", c, err)
		}
		if err := m.prog.SetBuffer(2*c+1, pair[1-phase]); err != nil {
			return fmt.Errorf("binding output of chemical %d: %w", c, err)
		}
	}
	m.bound = phase
	return nil
}

// Update runs steps rounded up to an even count and reads the result back
// into g. It returns the number of steps taken.
func (m *Manager) Update(g *grid.Grid, steps int) (int, error) {
	if steps <= 0 {
		return 0, nil
	}
	if err := m.Ensure(); err != nil {
		return 0, err
	}
	if g.Dims() != m.dims || g.Chemicals() != m.chemicals {
		return 0, fmt.Errorf("grid %s with %d chemicals does not match the device setup %s with %d",
			g.Dims(), g.Chemicals(), m.dims, m.chemicals)
	}
	if m.hostDirty {
		for c, pair := range m.bufs {
			if err := pair[0].Write(g.Front()[c]); err != nil {
				return 0, fmt.Errorf("writing chemical %d: %w", c, err)
			}
		}
		m.hostDirty = false
	}
	global := []int{m.dims.X / m.blockX, m.dims.Y, m.dims.Z}
	pairs := (steps + 1) / 2
	for p := 0; p < pairs; p++ {
		for phase := 0; phase < 2; phase++ {
			if err := m.bind(phase); err != nil {
				return 0, err
			}
			if err := m.prog.Run(global); err != nil {
				return 0, fmt.Errorf("enqueueing kernel: %w", err)
			}
		}
	}
	if err := m.ctx.Finish(); err != nil {
		return 0, fmt.Errorf("waiting for the device: %w", err)
	}
	for c, pair := range m.bufs {
		if err := pair[0].Read(g.Front()[c]); err != nil {
			return 0, fmt.Errorf("reading chemical %d: %w", c, err)
		}
	}
	m.state = Running
	return 2 * pairs, nil
}

func (m *Manager) releaseBuffers() {
	for j := len(m.bufs) - 1; j >= 0; j-- {
		m.bufs[j][1].Release()
		m.bufs[j][0].Release()
	}
	m.bufs = nil
	m.bound = -1
}

func (m *Manager) releaseProgram() {
	if m.prog != nil {
		m.prog.Release()
		m.prog = nil
	}
	m.bound = -1
}

// Close releases everything in reverse order of creation.
func (m *Manager) Close() {
	m.releaseBuffers()
	m.releaseProgram()
	if m.ctx != nil {
		m.ctx.Release()
		m.ctx = nil
	}
	m.state = Uninitialized
}
