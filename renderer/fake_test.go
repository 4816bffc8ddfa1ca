package renderer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// traceEvent is one backend call as seen by the fake device, in call order.
type traceEvent struct {
	Op     string
	Slot   Slot
	Signal int
}

type fakeSubmit struct {
	slot     Slot
	signal   int
	previous int
	commands *fakeCommands
	ring     *fakeSwapchain
}

type fakeBackend struct {
	trace []traceEvent

	images int
	format Format

	rings        []*fakeSwapchain
	acquireErrs  []error
	acquireSlots []Slot
	presentErrs  []error
	submitErr    error
	waitErr      error
	finishErrAt  int
	onPresent    func(slot Slot)

	signals  []*fakeSignal
	submits  []fakeSubmit
	recorded int
	freed    int

	targetsMade      int
	targetsDestroyed int
	pipelinesBuilt   int
	pipelinesFreed   int
	shadersCompiled  int
	shadersFreed     int
	waitIdle         int
}

func (b *fakeBackend) record(op string, slot Slot, signal int) {
	b.trace = append(b.trace, traceEvent{Op: op, Slot: slot, Signal: signal})
}

func (b *fakeBackend) count(op string) int {
	n := 0
	for _, ev := range b.trace {
		if ev.Op == op {
			n++
		}
	}
	return n
}

func (b *fakeBackend) lastSubmit() fakeSubmit {
	return b.submits[len(b.submits)-1]
}

func (b *fakeBackend) CreateSwapchain(surface Surface, extent Extent, old Swapchain) (Swapchain, error) {
	sc := &fakeSwapchain{b: b, id: len(b.rings) + 1, images: b.images, format: b.format, extent: extent}
	if old != nil {
		sc.old = old.(*fakeSwapchain)
	}
	b.rings = append(b.rings, sc)
	b.record("create-ring", 0, 0)
	return sc, nil
}

func (b *fakeBackend) CreateRenderTargets(ring Swapchain, pipeline Pipeline) ([]RenderTarget, error) {
	sc := ring.(*fakeSwapchain)
	targets := make([]RenderTarget, sc.images)
	for i := range targets {
		targets[i] = RenderTarget{Slot: Slot(i), Handle: fmt.Sprintf("ring%d/fb%d", sc.id, i), Extent: sc.extent}
	}
	b.targetsMade += len(targets)
	return targets, nil
}

func (b *fakeBackend) DestroyRenderTargets(targets []RenderTarget) {
	b.targetsDestroyed += len(targets)
}

func (b *fakeBackend) NewEncoder(slot Slot) (CommandEncoder, error) {
	return &fakeEncoder{b: b, slot: slot}, nil
}

func (b *fakeBackend) FreeCommands(commands any) {
	commands.(*fakeCommands).freed = true
	b.freed++
}

func (b *fakeBackend) Submit(s Submission) (Signal, error) {
	if b.submitErr != nil {
		return nil, b.submitErr
	}
	sig := &fakeSignal{b: b, id: len(b.signals) + 1, slot: s.Slot}
	b.signals = append(b.signals, sig)
	prev := 0
	if ps, ok := s.Previous.(*fakeSignal); ok {
		prev = ps.id
	}
	b.submits = append(b.submits, fakeSubmit{
		slot:     s.Slot,
		signal:   sig.id,
		previous: prev,
		commands: s.Program.Commands.(*fakeCommands),
		ring:     s.Ring.(*fakeSwapchain),
	})
	b.record("submit", s.Slot, sig.id)
	return sig, nil
}

func (b *fakeBackend) Present(ring Swapchain, slot Slot) error {
	b.record("present", slot, 0)
	if b.onPresent != nil {
		b.onPresent(slot)
	}
	if len(b.presentErrs) > 0 {
		err := b.presentErrs[0]
		b.presentErrs = b.presentErrs[1:]
		return err
	}
	return nil
}

func (b *fakeBackend) WaitIdle() error {
	b.waitIdle++
	return nil
}

type fakeSwapchain struct {
	b         *fakeBackend
	id        int
	images    int
	format    Format
	extent    Extent
	old       *fakeSwapchain
	next      int
	destroyed bool
}

func (s *fakeSwapchain) Images() int                    { return s.images }
func (s *fakeSwapchain) Format() Format                 { return s.format }
func (s *fakeSwapchain) Extent() Extent                 { return s.extent }
func (s *fakeSwapchain) CompositeAlpha() CompositeAlpha { return 1 }

func (s *fakeSwapchain) Acquire(time.Duration) (Slot, Semaphore, error) {
	if len(s.b.acquireErrs) > 0 {
		err := s.b.acquireErrs[0]
		s.b.acquireErrs = s.b.acquireErrs[1:]
		if err != nil {
			s.b.record("acquire-stale", 0, 0)
			return 0, nil, err
		}
	}
	var slot Slot
	if len(s.b.acquireSlots) > 0 {
		slot = s.b.acquireSlots[0]
		s.b.acquireSlots = s.b.acquireSlots[1:]
	} else {
		slot = Slot(s.next % s.images)
		s.next++
	}
	s.b.record("acquire", slot, 0)
	return slot, fmt.Sprintf("ring%d/sem%d", s.id, slot), nil
}

func (s *fakeSwapchain) Destroy() {
	s.destroyed = true
	s.b.record("destroy-ring", 0, 0)
}

// fakeSignal completes when it is waited on, like a GPU that finishes exactly when asked.
type fakeSignal struct {
	b        *fakeBackend
	id       int
	slot     Slot
	fired    bool
	released bool
}

func (s *fakeSignal) Wait(time.Duration) error {
	if s.b.waitErr != nil && !s.fired {
		return s.b.waitErr
	}
	s.fired = true
	s.b.record("wait", s.slot, s.id)
	return nil
}

func (s *fakeSignal) Signaled() (bool, error) { return s.fired, nil }
func (s *fakeSignal) Release()                { s.released = true }

type fakeCommands struct {
	id    int
	slot  Slot
	ops   []string
	freed bool
}

type fakeEncoder struct {
	b    *fakeBackend
	slot Slot
	ops  []string
}

func (e *fakeEncoder) BeginRenderPass(target RenderTarget, pass any, clear ClearColor) {
	e.ops = append(e.ops, fmt.Sprintf("begin %v %v %v", target.Handle, pass, clear))
}

func (e *fakeEncoder) BindPipeline(kind PipelineKind, pipeline any) {
	e.ops = append(e.ops, fmt.Sprintf("bind-pipeline %v %v", kind, pipeline))
}

func (e *fakeEncoder) BindVertexBuffer(buffer any) {
	e.ops = append(e.ops, fmt.Sprintf("bind-vertex %v", buffer))
}

func (e *fakeEncoder) BindIndexBuffer(buffer any) {
	e.ops = append(e.ops, fmt.Sprintf("bind-index %v", buffer))
}

func (e *fakeEncoder) DrawIndexed(indexCount uint32) {
	e.ops = append(e.ops, fmt.Sprintf("draw-indexed %d", indexCount))
}

func (e *fakeEncoder) EndRenderPass() {
	e.ops = append(e.ops, "end")
}

func (e *fakeEncoder) Finish() (any, error) {
	e.b.recorded++
	if e.b.finishErrAt != 0 && e.b.recorded == e.b.finishErrAt {
		return nil, fmt.Errorf("end command buffer: %w", ErrDeviceLost)
	}
	return &fakeCommands{id: e.b.recorded, slot: e.slot, ops: e.ops}, nil
}

type fakePipelines struct {
	b        *fakeBackend
	buildErr error
}

func (f *fakePipelines) Build(kind PipelineKind, format Format, extent Extent, shaders []ShaderModule) (Pipeline, error) {
	if f.buildErr != nil {
		return Pipeline{}, f.buildErr
	}
	f.b.pipelinesBuilt++
	n := f.b.pipelinesBuilt
	return Pipeline{
		Kind:   kind,
		Handle: fmt.Sprintf("pipeline#%d", n),
		Layout: fmt.Sprintf("layout#%d", n),
		Pass:   fmt.Sprintf("pass#%d", n),
		Extent: extent,
	}, nil
}

func (f *fakePipelines) Destroy(Pipeline) {
	f.b.pipelinesFreed++
}

type fakeShaders struct {
	b *fakeBackend
}

func (f *fakeShaders) Compile(source string, stage Stage) (ShaderModule, error) {
	if source == "" {
		return ShaderModule{}, fmt.Errorf("empty %v shader", stage)
	}
	f.b.shadersCompiled++
	return ShaderModule{Stage: stage, EntryPoint: "main", Handle: source}, nil
}

func (f *fakeShaders) Destroy(ShaderModule) {
	f.b.shadersFreed++
}

type fakeSurface struct {
	extent Extent
	events []Event
	// onWait runs when the loop blocks on an event. It returns the event delivered, close if nil.
	onWait func() (Event, bool)
}

func (s *fakeSurface) Extent() Extent { return s.extent }

func (s *fakeSurface) PollEvent() (Event, bool) {
	if len(s.events) == 0 {
		return Event{}, false
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, true
}

func (s *fakeSurface) WaitEvent() (Event, bool) {
	if ev, ok := s.PollEvent(); ok {
		return ev, true
	}
	if s.onWait != nil {
		return s.onWait()
	}
	return Event{Kind: EventClose}, true
}

func newFakeContext(images int) (*fakeBackend, *fakeSurface, *Context) {
	b := &fakeBackend{images: images, format: 44}
	s := &fakeSurface{extent: Extent{Width: 800, Height: 600}}
	ctx := &Context{
		Device:    b,
		Surface:   s,
		Pipelines: &fakePipelines{b: b},
		Shaders:   &fakeShaders{b: b},
		Sources: []ShaderSource{
			{Stage: StageVertex, Source: "vs"},
			{Stage: StageFragment, Source: "fs"},
		},
		Kind:    PipelineGraphics,
		Draw:    DrawData{Vertices: "vbuf", Indices: "ibuf", IndexCount: 6},
		Options: DefaultOptions(),
	}
	return b, s, ctx
}

// assertRaceFree checks that every submission to a slot was preceded by a wait on the signal of
// the submission before it on that slot.
func assertRaceFree(t *testing.T, trace []traceEvent) {
	t.Helper()
	last := map[Slot]int{}
	waited := map[int]bool{}
	for _, ev := range trace {
		switch ev.Op {
		case "wait":
			waited[ev.Signal] = true
		case "submit":
			if prev, ok := last[ev.Slot]; ok {
				assert.Truef(t, waited[prev], "submission %d on slot %d issued before signal %d was waited on", ev.Signal, ev.Slot, prev)
			}
			last[ev.Slot] = ev.Signal
		}
	}
}
