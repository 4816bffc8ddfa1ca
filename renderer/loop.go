package renderer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

// State is the step of the presentation cycle the presenter is in or last went through.
type State int

const (
	StateAcquireImage State = iota
	StateMaybeRecreate
	StateEnsureProgramsCurrent
	StateSubmitAndPresent
	StateShutdown
)

func (s State) String() string {
	switch s {
	case StateAcquireImage:
		return "AcquireImage"
	case StateMaybeRecreate:
		return "MaybeRecreate"
	case StateEnsureProgramsCurrent:
		return "EnsureProgramsCurrent"
	case StateSubmitAndPresent:
		return "SubmitAndPresent"
	case StateShutdown:
		return "Shutdown"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Stats are the running counters of a presenter.
type Stats struct {
	Frames      uint64
	Recreations uint64
	// Stale counts acquisitions and presentations that reported a stale ring.
	Stale uint64
	// Skipped counts ticks dropped because the surface had no area.
	Skipped uint64
	// AcquireTimeouts counts ticks dropped because no image became available in time.
	AcquireTimeouts uint64
	Elapsed time.Duration
}

// FPS is the average presented frame rate over Elapsed.
func (s Stats) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Elapsed.Seconds()
}

// Presenter is the presentation loop state machine. It owns the swap ring, the fence table, the
// pipeline, the render targets and the frame program set. Every method must be called from the
// same goroutine.
type Presenter struct {
	ctx      *Context
	rings    *RingManager
	tracker  *CompletionTracker
	recorder *FrameRecorder

	ring        *SwapRing
	modules     []ShaderModule
	pipeline    Pipeline
	pipelineGen uint64
	targets     []RenderTarget
	targetGen   uint64
	programs    *ProgramSet

	prevSlot    Slot
	hasPrev     bool
	needsResize bool
	ringStale   bool
	state       State
	err         error
	released    bool

	stats Stats
	start time.Time
}

// NewPresenter compiles the shaders and builds the ring, pipeline, render targets and frame
// programs for the surface's current extent. Any failure here aborts startup.
func NewPresenter(ctx *Context) (_ *Presenter, err error) {
	if err := ctx.validate(); err != nil {
		return nil, err
	}
	p := &Presenter{
		ctx:      ctx,
		rings:    NewRingManager(ctx),
		recorder: NewFrameRecorder(ctx),
		start:    time.Now(),
	}
	defer func() {
		if err != nil {
			p.release()
		}
	}()

	if p.modules, err = p.compile(ctx.Sources); err != nil {
		return nil, err
	}
	if p.ring, err = p.rings.Create(ctx.Surface.Extent()); err != nil {
		return nil, err
	}
	if err = p.installPipeline(p.ring.Format, p.ring.Extent, p.modules); err != nil {
		return nil, err
	}
	if err = p.createTargets(); err != nil {
		return nil, err
	}
	p.tracker = NewCompletionTracker(p.ring.Images)
	if err = p.ensureProgramsCurrent(); err != nil {
		return nil, err
	}
	return p, nil
}

// State returns the current state.
func (p *Presenter) State() State {
	return p.state
}

// PreviousSlot is the slot of the last submission. ok is false before the first submission and
// right after a recreation.
func (p *Presenter) PreviousSlot() (slot Slot, ok bool) {
	return p.prevSlot, p.hasPrev
}

// Ring returns the current swap ring.
func (p *Presenter) Ring() *SwapRing {
	return p.ring
}

// Err is the terminal error, nil unless the loop failed.
func (p *Presenter) Err() error {
	return p.err
}

func (p *Presenter) Stats() Stats {
	s := p.stats
	s.Elapsed = time.Since(p.start)
	return s
}

// Step advances the state machine by one event. A resize only marks the ring for recreation, the
// work happens on the next tick. Close drains and enters Shutdown. Once the presenter is shut down
// every further event returns the terminal error, if any.
func (p *Presenter) Step(ev Event) error {
	if p.state == StateShutdown {
		return p.err
	}
	switch ev.Kind {
	case EventResize:
		p.needsResize = true
		if p.ctx.Options.LogFrames {
			log.Printf("Resize to %v requested", ev.Extent)
		}
		return nil
	case EventClose:
		p.shutdown()
		return p.err
	case EventTick:
		if err := p.tick(); err != nil {
			p.err = err
			p.shutdown()
			return p.err
		}
		return nil
	}
	return fmt.Errorf("unknown event %v", ev.Kind)
}

// Run polls surface events and ticks until a close event arrives, ctx is cancelled or a fatal
// error occurs. The fence table is drained before Run returns in every case. While the surface has
// no area Run blocks on the next surface event instead of ticking.
func (p *Presenter) Run(ctx context.Context) error {
	for p.state != StateShutdown {
		if ctx.Err() != nil {
			log.Printf("Presentation loop cancelled: %v", ctx.Err())
			p.Step(Event{Kind: EventClose})
			break
		}
		for p.state != StateShutdown {
			ev, ok := p.ctx.Surface.PollEvent()
			if !ok {
				break
			}
			p.Step(ev)
		}
		if p.state == StateShutdown {
			break
		}
		if p.ctx.Surface.Extent().IsZero() {
			p.stats.Skipped++
			if ev, ok := p.ctx.Surface.WaitEvent(); ok {
				p.Step(ev)
			}
			continue
		}
		p.Step(Event{Kind: EventTick})
	}
	return p.err
}

// ReloadShaders compiles sources and installs a pipeline built from them. The frame programs are
// rebuilt, all of them, before the next submission. A compile or build error keeps the current
// pipeline. A failed drain is a *FatalError and shuts the presenter down.
func (p *Presenter) ReloadShaders(sources []ShaderSource) error {
	if p.state == StateShutdown {
		return fmt.Errorf("reload shaders: presenter is shut down")
	}
	modules, err := p.compile(sources)
	if err != nil {
		return err
	}
	if err := p.tracker.Drain(p.ctx.Options.FenceTimeout); err != nil {
		// A frame that never completes leaves nothing safe to replace, the loop ends here.
		p.destroyModules(modules)
		p.err = fatal("drain before shader reload", err)
		p.shutdown()
		return p.err
	}
	old, oldModules := p.pipeline, p.modules
	if err := p.installPipeline(p.ring.Format, p.ring.Extent, modules); err != nil {
		p.destroyModules(modules)
		return err
	}
	p.ctx.Pipelines.Destroy(old)
	p.destroyModules(oldModules)
	p.modules = modules
	log.Printf("Reloaded %d shader modules, pipeline generation %d", len(modules), p.pipelineGen)
	return nil
}

// Close shuts the loop down if it is still running and releases every GPU object the presenter
// owns. Nothing is destroyed before the fence table has been drained. When the drain failed Close
// returns ErrResourcesInUse and the device and everything built on it must not be destroyed either.
func (p *Presenter) Close() error {
	if p.state != StateShutdown {
		p.shutdown()
	}
	if p.tracker != nil && p.tracker.Pending() != 0 {
		// The drain failed; destroying objects still in use is worse than leaking them.
		return fmt.Errorf("close: %d submissions still pending, resources not released: %w", p.tracker.Pending(), errors.Join(ErrResourcesInUse, p.err))
	}
	if err := p.ctx.Device.WaitIdle(); err != nil {
		log.Printf("Device wait idle before teardown: %v", err)
	}
	p.release()
	return p.err
}

func (p *Presenter) tick() error {
	p.state = StateAcquireImage
	extent := p.ctx.Surface.Extent()
	if extent.IsZero() {
		p.stats.Skipped++
		return nil
	}

	var (
		acq Acquisition
		ok  bool
		err error
	)
	if p.needsResize || p.ringStale {
		acq, ok, err = p.recreateAndAcquire(extent)
	} else {
		acq, ok, err = p.acquire("acquire")
		if err == nil && ok && acq.Stale {
			p.stats.Stale++
			p.ringStale = true
			acq, ok, err = p.recreateAndAcquire(extent)
		}
	}
	if err != nil || !ok {
		return err
	}

	p.state = StateEnsureProgramsCurrent
	if err := p.ensureProgramsCurrent(); err != nil {
		return err
	}
	return p.submitAndPresent(acq)
}

// acquire asks the ring for the next image. An acquisition that runs into AcquireTimeout drops the
// tick with ok false; the next tick tries again.
func (p *Presenter) acquire(op string) (acq Acquisition, ok bool, err error) {
	acq, err = p.rings.AcquireNext(p.ring, p.ctx.Options.AcquireTimeout)
	if errors.Is(err, ErrWaitTimeout) {
		p.stats.AcquireTimeouts++
		if p.ctx.Options.LogFrames {
			log.Printf("No image within %v, tick dropped: %v", p.ctx.Options.AcquireTimeout, err)
		}
		return Acquisition{}, false, nil
	}
	if err != nil {
		return Acquisition{}, false, fatal(op, err)
	}
	return acq, true, nil
}

// recreateAndAcquire replaces the ring and everything built from it, then acquires once more. A
// ring that is stale again right away is not retried.
func (p *Presenter) recreateAndAcquire(extent Extent) (Acquisition, bool, error) {
	if err := p.recreate(extent); err != nil {
		return Acquisition{}, false, err
	}
	p.state = StateEnsureProgramsCurrent
	if err := p.ensureProgramsCurrent(); err != nil {
		return Acquisition{}, false, err
	}
	p.state = StateAcquireImage
	acq, ok, err := p.acquire("acquire after recreation")
	if err != nil || !ok {
		return Acquisition{}, ok, err
	}
	if acq.Stale {
		p.stats.Stale++
		return Acquisition{}, false, fatal("acquire after recreation", ErrPersistentStale)
	}
	return acq, true, nil
}

func (p *Presenter) recreate(extent Extent) error {
	p.state = StateMaybeRecreate
	reason := "resize"
	if p.ringStale {
		reason = "stale ring"
	}
	if err := p.tracker.Drain(p.ctx.Options.FenceTimeout); err != nil {
		return fatal("drain before recreation", err)
	}

	p.ctx.Device.DestroyRenderTargets(p.targets)
	p.targets = nil
	oldExtent, oldFormat := p.ring.Extent, p.ring.Format
	ring, err := p.rings.Recreate(p.ring, extent)
	if err != nil {
		return fatal("recreate swap ring", err)
	}
	p.ring = ring

	if ring.Extent != oldExtent || ring.Format != oldFormat || ring.Extent != p.pipeline.Extent {
		old := p.pipeline
		if err := p.installPipeline(ring.Format, ring.Extent, p.modules); err != nil {
			return err
		}
		p.ctx.Pipelines.Destroy(old)
	}
	if err := p.createTargets(); err != nil {
		return err
	}
	if ring.Images != p.tracker.Len() {
		log.Printf("Fence table resized from %d to %d slots", p.tracker.Len(), ring.Images)
		if err := p.tracker.Reset(ring.Images); err != nil {
			return fatal("resize fence table", err)
		}
	}
	if p.tracker.Len() != ring.Images {
		return fatal("recreate swap ring", ErrSlotCountChanged)
	}

	p.needsResize = false
	p.ringStale = false
	p.hasPrev = false
	p.stats.Recreations++
	log.Printf("Swap ring recreated (%s): %v -> %v", reason, oldExtent, ring.Extent)
	return nil
}

// ensureProgramsCurrent rebuilds the whole program set if the pipeline or the render targets
// changed since it was recorded. The old set is freed only after the new one is complete.
func (p *Presenter) ensureProgramsCurrent() error {
	if p.programs.Current(p.pipelineGen, p.targetGen) && p.programs.Len() == p.ring.Images {
		return nil
	}
	if p.tracker.Pending() != 0 {
		if err := p.tracker.Drain(p.ctx.Options.FenceTimeout); err != nil {
			return fatal("drain before program rebuild", err)
		}
	}
	set, err := p.recorder.BuildSet(p.targets, p.targetGen, p.pipeline, p.ctx.Draw)
	if err != nil {
		return fatal("record frame programs", err)
	}
	if set.Len() != p.ring.Images {
		p.recorder.Free(set)
		return fatal("record frame programs", ErrSlotCountChanged)
	}
	p.recorder.Free(p.programs)
	p.programs = set
	if p.ctx.Options.LogFrames {
		log.Printf("Recorded %d frame programs (pipeline %d, targets %d)", set.Len(), p.pipelineGen, p.targetGen)
	}
	return nil
}

func (p *Presenter) submitAndPresent(acq Acquisition) error {
	p.state = StateSubmitAndPresent
	timeout := p.ctx.Options.FenceTimeout
	if err := p.tracker.WaitIfPending(acq.Slot, timeout); err != nil {
		return fatal("wait for slot", err)
	}
	prog, err := p.programs.Program(acq.Slot)
	if err != nil {
		return fatal("submit", err)
	}
	prev := Immediate
	if p.hasPrev {
		prev = p.tracker.Chain(p.prevSlot)
	}
	sig, err := p.ctx.Device.Submit(Submission{
		Program:  prog,
		Ring:     p.ring.chain,
		Slot:     acq.Slot,
		Acquire:  acq.Wait,
		Previous: prev,
	})
	if err != nil {
		return fatal("submit", err)
	}
	// Recorded before presenting so a failed present still leaves the submission tracked.
	if err := p.tracker.RecordSubmission(acq.Slot, sig); err != nil {
		return fatal("submit", err)
	}
	p.prevSlot, p.hasPrev = acq.Slot, true

	if err := p.ctx.Device.Present(p.ring.chain, acq.Slot); err != nil {
		if !IsStale(err) {
			return fatal("present", err)
		}
		p.stats.Stale++
		p.ringStale = true
		if p.ctx.Options.LogFrames {
			log.Printf("Present of slot %d reported %v", acq.Slot, err)
		}
		return nil
	}
	p.stats.Frames++
	if p.ctx.Options.LogFrames {
		log.Printf("Frame %d presented on slot %d", p.stats.Frames, acq.Slot)
	}
	return nil
}

func (p *Presenter) shutdown() {
	p.state = StateShutdown
	if p.tracker != nil {
		if err := p.tracker.Drain(p.ctx.Options.FenceTimeout); err != nil {
			log.Printf("Drain on shutdown: %v", err)
			if p.err == nil {
				p.err = fatal("drain on shutdown", err)
			} else {
				p.err = errors.Join(p.err, err)
			}
		}
	}
	s := p.Stats()
	log.Printf("Presentation loop stopped after %v: %d frames, %d recreations, %.1f fps", s.Elapsed.Round(time.Millisecond), s.Frames, s.Recreations, s.FPS())
}

func (p *Presenter) compile(sources []ShaderSource) ([]ShaderModule, error) {
	modules := make([]ShaderModule, 0, len(sources))
	for _, src := range sources {
		m, err := p.ctx.Shaders.Compile(src.Source, src.Stage)
		if err != nil {
			p.destroyModules(modules)
			return nil, fmt.Errorf("compile %v shader: %w", src.Stage, err)
		}
		modules = append(modules, m)
	}
	return modules, nil
}

func (p *Presenter) destroyModules(modules []ShaderModule) {
	for _, m := range modules {
		p.ctx.Shaders.Destroy(m)
	}
}

func (p *Presenter) installPipeline(format Format, extent Extent, modules []ShaderModule) error {
	pl, err := p.ctx.Pipelines.Build(p.ctx.Kind, format, extent, modules)
	if err != nil {
		return fatal("build pipeline", err)
	}
	p.pipelineGen++
	pl.Generation = p.pipelineGen
	pl.Extent = extent
	p.pipeline = pl
	return nil
}

func (p *Presenter) createTargets() error {
	targets, err := p.ctx.Device.CreateRenderTargets(p.ring.chain, p.pipeline)
	if err != nil {
		return fatal("create render targets", err)
	}
	if len(targets) != p.ring.Images {
		p.ctx.Device.DestroyRenderTargets(targets)
		return fatal("create render targets", ErrSlotCountChanged)
	}
	p.targets = targets
	p.targetGen++
	return nil
}

func (p *Presenter) release() {
	if p.released {
		return
	}
	p.released = true
	p.recorder.Free(p.programs)
	p.programs = nil
	if p.targets != nil {
		p.ctx.Device.DestroyRenderTargets(p.targets)
		p.targets = nil
	}
	if p.pipelineGen != 0 {
		p.ctx.Pipelines.Destroy(p.pipeline)
	}
	p.rings.Destroy(p.ring)
	p.destroyModules(p.modules)
	p.modules = nil
}
