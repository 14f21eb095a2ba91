package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jdsingh122918/forge/internal/backend"
	"github.com/jdsingh122918/forge/internal/config"
	"github.com/jdsingh122918/forge/internal/contexttrack"
	"github.com/jdsingh122918/forge/internal/decompose"
	"github.com/jdsingh122918/forge/internal/graph"
	"github.com/jdsingh122918/forge/internal/scheduler"
	"github.com/jdsingh122918/forge/internal/state"
	"github.com/jdsingh122918/forge/internal/subphase"
	"github.com/jdsingh122918/forge/pkg/models"
)

// Options configures an Orchestrator.
type Options struct {
	// Backend runs agent iterations. Required.
	Backend backend.Backend
	// Planner produces decomposition plans. When nil, a Backend that
	// also implements backend.Planner is used; otherwise decomposition
	// triggers are logged and iteration continues.
	Planner backend.Planner
	// Config supplies orchestrator, decomposition, and context settings.
	// Nil uses defaults.
	Config *config.Config
	// Store records run history. Optional.
	Store *state.DB
	// Logger receives debug output. Nil disables logging.
	Logger *DebugLogger
	// Events receives progress events. Optional; a full channel drops
	// events rather than blocking the run.
	Events chan<- Event
	// WorkDir is the agent working directory and the root for signal
	// files. Empty disables the signal watcher.
	WorkDir string
	// PlanName and PlanPath identify the plan in the run record.
	PlanName string
	PlanPath string
}

// Orchestrator drives one run of a phase plan.
type Orchestrator struct {
	graph    *graph.PhaseGraph
	sched    *scheduler.Scheduler
	backend  backend.Backend
	planner  backend.Planner
	cfg      *config.Config
	store    *state.DB
	logger   *DebugLogger
	events   chan<- Event
	workDir  string
	planName string
	planPath string

	pause   *PauseController
	watcher *SignalWatcher
	exec    *decompose.Executor
	subMgr  *subphase.Manager

	runID string
	// iterations tracks iterations consumed per phase, sub-phase
	// iterations included in the parent's count.
	iterations map[string]int
	// skipRecorded guards against double-recording skip events when a
	// cascade revisits diamond-shaped graphs.
	skipRecorded map[string]bool
}

// RunReport is the outcome of a run.
type RunReport struct {
	// RunID identifies the run in the state store.
	RunID string
	// Success is true if every phase completed.
	Success bool
	// Counts is the number of phases per final status.
	Counts map[models.PhaseStatus]int
	// Iterations is the iterations consumed per phase.
	Iterations map[string]int
}

// New creates an Orchestrator for the given phases.
func New(phases []models.Phase, opts Options) (*Orchestrator, error) {
	if opts.Backend == nil {
		return nil, fmt.Errorf("orchestrator requires a backend")
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}

	refs := make([]*models.Phase, len(phases))
	for i := range phases {
		refs[i] = &phases[i]
	}
	g, err := graph.Build(refs)
	if err != nil {
		return nil, err
	}

	planner := opts.Planner
	if planner == nil {
		if p, ok := opts.Backend.(backend.Planner); ok {
			planner = p
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = NopLogger()
	}
	setPackageLogger(logger)

	spawnCfg := subphase.Config{
		MaxSubPhases:     cfg.Decomposition.MaxSubPhases,
		MinBudgetReserve: cfg.Decomposition.MinBudgetReserve,
	}

	return &Orchestrator{
		graph: g,
		sched: scheduler.New(g,
			scheduler.WithFailFast(cfg.Orchestrator.FailFast),
			scheduler.WithMaxParallel(cfg.Orchestrator.MaxParallel),
		),
		backend:  opts.Backend,
		planner:  planner,
		cfg:      cfg,
		store:    opts.Store,
		logger:   logger,
		events:   opts.Events,
		workDir:  opts.WorkDir,
		planName: opts.PlanName,
		planPath: opts.PlanPath,
		pause:    NewPauseController(),
		exec: decompose.NewExecutor(decompose.ExecutorConfig{
			SafetyBufferPercent: cfg.Decomposition.SafetyBufferPercent,
			Spawn:               spawnCfg,
		}),
		subMgr:       subphase.NewManager(spawnCfg),
		iterations:   make(map[string]int),
		skipRecorded: make(map[string]bool),
	}, nil
}

// Pause pauses the run before the next iteration.
func (o *Orchestrator) Pause() { o.pause.Pause() }

// Resume resumes a paused run.
func (o *Orchestrator) Resume() { o.pause.Resume() }

// Stop stops the run before the next iteration.
func (o *Orchestrator) Stop() { o.pause.Stop() }

// Scheduler exposes the underlying scheduler for planning queries.
func (o *Orchestrator) Scheduler() *scheduler.Scheduler { return o.sched }

// Run executes the plan to completion. Phases execute sequentially in
// readiness order; scheduler state is only ever written from this
// goroutine.
func (o *Orchestrator) Run(ctx context.Context) (*RunReport, error) {
	o.runID = uuid.NewString()

	if o.store != nil {
		err := o.store.CreateRun(&state.Run{
			ID:        o.runID,
			PlanName:  o.planName,
			PlanPath:  o.planPath,
			StartedAt: time.Now(),
			Status:    state.RunActive,
		})
		if err != nil {
			return nil, err
		}
	}

	if o.workDir != "" {
		if w, err := NewSignalWatcher(o.workDir, o.pause); err == nil {
			o.watcher = w
			defer w.Close()
		}
	}

	debugLog("run %s started: %d phases", o.runID, o.graph.Size())

	runErr := o.loop(ctx)
	report := o.report()

	if o.store != nil {
		status := state.RunCompleted
		switch {
		case runErr != nil:
			status = state.RunCanceled
		case !report.Success:
			status = state.RunFailed
		}
		if err := o.store.FinishRun(o.runID, status); err != nil {
			debugLog("finish run: %v", err)
		}
	}

	o.emit(Event{Type: EventRunDone, Message: fmt.Sprintf("%d/%d phases completed",
		report.Counts[models.StatusCompleted], o.graph.Size())})
	debugLog("run %s done: success=%v counts=%v", o.runID, report.Success, report.Counts)

	return report, runErr
}

// loop schedules ready phases until the run is terminal or stalls.
func (o *Orchestrator) loop(ctx context.Context) error {
	for !o.sched.AllComplete() {
		if err := o.checkControl(ctx); err != nil {
			return err
		}

		ready := o.sched.ReadyPhases()
		if len(ready) == 0 {
			// Without fail-fast, dependents of a failed phase stay
			// Pending and never become ready. Nothing left to do.
			debugLog("no ready phases, %d%% terminal", int(o.sched.CompletionPercentage()))
			return nil
		}

		for _, phase := range ready {
			if err := o.checkControl(ctx); err != nil {
				return err
			}
			if err := o.runPhase(ctx, phase); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkControl honors external signals, pause state, and cancellation.
func (o *Orchestrator) checkControl(ctx context.Context) error {
	if o.watcher != nil {
		o.watcher.CheckSignals()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.pause.WaitIfPaused(ctx)
}

// runPhase drives one phase from Running to a terminal state. Returns
// an error only for run-level aborts (cancellation, stop); a phase
// failure is absorbed into scheduler state.
func (o *Orchestrator) runPhase(ctx context.Context, phase *models.Phase) error {
	o.sched.MarkRunning(phase.ID)
	o.recordEvent(phase.ID, models.StatusInProgress, 0, "")
	o.emit(Event{Type: EventPhaseStarted, PhaseID: phase.ID, PhaseName: phase.Name, Budget: phase.Budget})
	debugLog("phase %s started (budget %d)", phase.ID, phase.Budget)

	tracker := contexttrack.New(o.contextConfig())
	tracker.Reset()

	var history []string
	var acknowledged []models.Blocker
	seen := make(map[string]bool)

	iterations := 0
	for iterations < phase.Budget {
		if err := o.checkControl(ctx); err != nil {
			return err
		}

		prompt := buildPrompt(promptInput{
			name:      phase.Name,
			promise:   phase.Promise,
			budget:    phase.Budget,
			iteration: iterations + 1,
			skills:    phase.Skills,
			history:   history,
			blockers:  acknowledged,
		})

		// Compact ahead of the iteration when the next prompt would
		// leave too little window free.
		if !tracker.HasBudgetFor(int64(len(prompt))) && tracker.IterationCount() >= 2 {
			history = o.compact(phase.ID, tracker, history)
			prompt = buildPrompt(promptInput{
				name: phase.Name, promise: phase.Promise, budget: phase.Budget,
				iteration: iterations + 1, skills: phase.Skills,
				history: history, blockers: acknowledged,
			})
		}

		res, err := o.backend.RunIteration(ctx, backend.IterationRequest{
			Prompt:         prompt,
			WorkDir:        o.workDir,
			Promise:        phase.Promise,
			PermissionMode: phase.PermissionMode,
			Skills:         phase.Skills,
		})
		if err != nil {
			o.failPhase(phase, iterations, fmt.Errorf("backend: %w", err))
			return nil
		}

		iterations++
		o.iterations[phase.ID] = iterations
		tracker.RecordIteration(res.PromptChars, res.OutputChars)
		o.emit(Event{
			Type: EventPhaseIteration, PhaseID: phase.ID, PhaseName: phase.Name,
			Iteration: iterations, Budget: phase.Budget, ContextUsed: tracker.TotalContextUsed(),
		})

		if res.PromiseFound {
			o.completePhase(phase, iterations)
			return nil
		}

		// Blockers already acknowledged in an earlier prompt no longer
		// count toward decomposition triggers.
		signals := res.Signals
		for i := range signals.Blockers {
			if seen[signals.Blockers[i].Description] {
				signals.Blockers[i].Acknowledged = true
			}
		}

		if trigger := decompose.Detect(phase, iterations, signals, o.detectorConfig()); trigger != nil && !phase.HasSubPhases() {
			resolved, err := o.tryDecompose(ctx, phase, iterations, trigger)
			if err != nil {
				return err
			}
			if resolved {
				return nil
			}
		}

		for _, bl := range signals.Blockers {
			if !seen[bl.Description] {
				seen[bl.Description] = true
				acknowledged = append(acknowledged, models.Blocker{Description: bl.Description, Acknowledged: true})
			}
		}

		history = append(history, iterationNote(iterations, res))
		if tracker.ShouldCompact() {
			history = o.compact(phase.ID, tracker, history)
		}
	}

	o.failPhase(phase, iterations, fmt.Errorf(
		"budget exhausted: %d iterations without promise %q", phase.Budget, phase.Promise))
	return nil
}

// tryDecompose asks the planner for a plan and, if it validates,
// executes the phase as sub-phases. Returns resolved=true once the
// phase reached a terminal state through decomposition; a rejected or
// unavailable plan leaves the phase running.
func (o *Orchestrator) tryDecompose(ctx context.Context, phase *models.Phase, iterationsUsed int, trigger decompose.Trigger) (bool, error) {
	if o.planner == nil {
		debugLog("phase %s: decomposition trigger (%s) but no planner", phase.ID, trigger.Reason())
		return false, nil
	}

	plan, err := o.planner.PlanDecomposition(ctx, backend.PlanRequest{
		Phase:           phase,
		Reason:          trigger.Reason(),
		MaxTasks:        o.cfg.Decomposition.MaxSubPhases,
		AvailableBudget: o.exec.AvailableBudget(phase.Budget - iterationsUsed),
		WorkDir:         o.workDir,
	})
	if err != nil {
		debugLog("phase %s: planning failed: %v", phase.ID, err)
		return false, nil
	}

	d, err := o.exec.ConvertToSubPhases(phase, plan, iterationsUsed, trigger.Reason())
	if err != nil {
		debugLog("phase %s: plan rejected: %v", phase.ID, err)
		return false, nil
	}

	o.emit(Event{
		Type: EventPhaseDecomposed, PhaseID: phase.ID, PhaseName: phase.Name,
		Message: trigger.Reason(), Iteration: iterationsUsed,
	})
	debugLog("phase %s decomposed into %d sub-phases (%s)", phase.ID, len(phase.SubPhases), trigger.Reason())
	if o.store != nil {
		if err := o.store.RecordDecomposition(&state.DecompositionRecord{
			RunID: o.runID, PhaseID: phase.ID, Reason: trigger.Reason(),
			TaskCount: len(d.Tasks()), TotalBudget: plan.TotalBudget(), RecordedAt: time.Now(),
		}); err != nil {
			debugLog("record decomposition: %v", err)
		}
	}

	if err := o.runDecomposed(ctx, phase, d); err != nil {
		return false, err
	}

	total := iterationsUsed + d.Summary().TotalIterations
	if subphase.ParentCanComplete(phase) {
		o.completePhase(phase, total)
	} else {
		o.failPhase(phase, total, fmt.Errorf("sub-phases did not all complete"))
	}
	return true, nil
}

// runDecomposed executes the decomposition's tasks in dependency order.
func (o *Orchestrator) runDecomposed(ctx context.Context, phase *models.Phase, d *decompose.DecomposedPhase) error {
	for !d.AllComplete() {
		ready := d.ReadyTasks()
		if len(ready) == 0 {
			// Remaining tasks are unreachable; fail them so the parent
			// resolves.
			for _, t := range d.Tasks() {
				if !t.Status.Terminal() {
					d.FailTask(t.ID, "unreachable: no ready tasks remain")
					o.subMgr.Fail(phase, t.SubPhaseID, "unreachable")
				}
			}
			return nil
		}

		for _, t := range ready {
			if err := o.checkControl(ctx); err != nil {
				return err
			}

			sp := phase.SubPhase(t.SubPhaseID)
			d.StartTask(t.ID)
			o.subMgr.Start(phase, sp.ID)
			o.recordEvent(sp.ID, models.StatusInProgress, 0, "")
			o.emit(Event{Type: EventSubPhaseStarted, PhaseID: sp.ID, PhaseName: sp.Name, Budget: sp.Budget})

			used, failReason, err := o.driveSubPhase(ctx, t, sp)
			if err != nil {
				return err
			}

			if failReason == "" {
				o.subMgr.Complete(phase, sp.ID, used)
				d.CompleteTask(t.ID, used)
				o.recordEvent(sp.ID, models.StatusCompleted, used, "")
				o.emit(Event{Type: EventSubPhaseCompleted, PhaseID: sp.ID, PhaseName: sp.Name, Iteration: used})
			} else {
				o.subMgr.Fail(phase, sp.ID, failReason)
				d.FailTask(t.ID, failReason)
				o.recordEvent(sp.ID, models.StatusFailed, used, failReason)
				o.emit(Event{Type: EventSubPhaseFailed, PhaseID: sp.ID, PhaseName: sp.Name,
					Iteration: used, Message: failReason})
				// Mirror task-level skips onto their sub-phases.
				for _, ts := range d.Tasks() {
					if ts.Status == models.StatusSkipped {
						o.subMgr.Skip(phase, ts.SubPhaseID)
					}
				}
			}
		}
	}
	return nil
}

// driveSubPhase iterates one sub-phase against its own budget and
// context tracker. Sub-phases never decompose further.
func (o *Orchestrator) driveSubPhase(ctx context.Context, task *decompose.TaskState, sp *models.SubPhase) (int, string, error) {
	tracker := contexttrack.New(o.contextConfig())
	tracker.Reset()

	var history []string
	used := 0
	for used < sp.Budget {
		if err := o.checkControl(ctx); err != nil {
			return used, "", err
		}

		prompt := buildPrompt(promptInput{
			name:        sp.Name,
			description: task.Description,
			promise:     sp.Promise,
			budget:      sp.Budget,
			iteration:   used + 1,
			skills:      sp.Skills,
			history:     history,
		})

		res, err := o.backend.RunIteration(ctx, backend.IterationRequest{
			Prompt:  prompt,
			WorkDir: o.workDir,
			Promise: sp.Promise,
			Skills:  sp.Skills,
		})
		if err != nil {
			return used, fmt.Sprintf("backend: %v", err), nil
		}

		used++
		tracker.RecordIteration(res.PromptChars, res.OutputChars)

		if res.PromiseFound {
			return used, "", nil
		}

		history = append(history, iterationNote(used, res))
		if tracker.ShouldCompact() {
			history = o.compact(sp.ID, tracker, history)
		}
	}

	return used, fmt.Sprintf("budget exhausted: %d iterations without promise %q", sp.Budget, sp.Promise), nil
}

// compact replaces the history with a summary and reconciles the
// tracker's accounting.
func (o *Orchestrator) compact(unitID string, tracker *contexttrack.Tracker, history []string) []string {
	before := tracker.TotalContextUsed()
	summary := summarizeHistory(history)
	compacted := len(history)
	tracker.ApplyCompaction(int64(len(summary)), compacted)

	o.emit(Event{Type: EventCompaction, PhaseID: unitID,
		Message:     fmt.Sprintf("compacted %d iterations, %d chars saved", compacted, tracker.CharsSaved()),
		ContextUsed: tracker.TotalContextUsed(),
	})
	debugLog("unit %s compacted: %d -> %d chars", unitID, before, tracker.TotalContextUsed())
	if o.store != nil {
		if err := o.store.RecordCompaction(&state.CompactionRecord{
			RunID: o.runID, PhaseID: unitID,
			CharsBefore: before, CharsAfter: tracker.TotalContextUsed(), RecordedAt: time.Now(),
		}); err != nil {
			debugLog("record compaction: %v", err)
		}
	}

	if summary == "" {
		return nil
	}
	return []string{summary}
}

// completePhase marks a phase completed.
func (o *Orchestrator) completePhase(phase *models.Phase, iterations int) {
	o.sched.MarkCompleted(phase.ID, iterations)
	o.iterations[phase.ID] = iterations
	o.recordEvent(phase.ID, models.StatusCompleted, iterations, "")
	o.emit(Event{Type: EventPhaseCompleted, PhaseID: phase.ID, PhaseName: phase.Name, Iteration: iterations})
	debugLog("phase %s completed in %d iterations", phase.ID, iterations)
}

// failPhase marks a phase failed and records the resulting skips.
func (o *Orchestrator) failPhase(phase *models.Phase, iterations int, err error) {
	o.sched.MarkFailed(phase.ID, err)
	o.iterations[phase.ID] = iterations
	o.recordEvent(phase.ID, models.StatusFailed, iterations, err.Error())
	o.emit(Event{Type: EventPhaseFailed, PhaseID: phase.ID, PhaseName: phase.Name,
		Iteration: iterations, Error: err})
	debugLog("phase %s failed after %d iterations: %v", phase.ID, iterations, err)
	o.recordSkips()
}

// recordSkips records events for phases the scheduler newly skipped.
func (o *Orchestrator) recordSkips() {
	for _, p := range o.graph.Phases() {
		st := o.sched.State(p.ID)
		if st == nil || st.Status() != models.StatusSkipped || o.skipRecorded[p.ID] {
			continue
		}
		o.skipRecorded[p.ID] = true
		o.recordEvent(p.ID, models.StatusSkipped, 0, "")
		o.emit(Event{Type: EventPhaseSkipped, PhaseID: p.ID, PhaseName: p.Name})
		debugLog("phase %s skipped", p.ID)
	}
}

// recordEvent persists a phase transition when a store is configured.
func (o *Orchestrator) recordEvent(phaseID string, status models.PhaseStatus, iterations int, errMsg string) {
	if o.store == nil {
		return
	}
	err := o.store.RecordPhaseEvent(&state.PhaseEvent{
		RunID: o.runID, PhaseID: phaseID, Status: status,
		IterationsUsed: iterations, Error: errMsg, RecordedAt: time.Now(),
	})
	if err != nil {
		debugLog("record phase event: %v", err)
	}
}

// report snapshots the final scheduler state.
func (o *Orchestrator) report() *RunReport {
	iterations := make(map[string]int, len(o.iterations))
	for id, n := range o.iterations {
		iterations[id] = n
	}
	return &RunReport{
		RunID:      o.runID,
		Success:    o.sched.AllSuccess(),
		Counts:     o.sched.StatusCounts(),
		Iterations: iterations,
	}
}

// contextConfig maps the run configuration onto the tracker.
func (o *Orchestrator) contextConfig() contexttrack.Config {
	return contexttrack.Config{
		LimitPercent:        o.cfg.Context.LimitPercent,
		LimitChars:          o.cfg.Context.LimitChars,
		ModelWindowChars:    o.cfg.Context.ModelWindowChars,
		SafetyMarginPercent: o.cfg.Context.SafetyMarginPercent,
		MinPreservedContext: o.cfg.Context.MinPreservedContext,
	}
}

// detectorConfig maps the run configuration onto the detector.
func (o *Orchestrator) detectorConfig() decompose.DetectorConfig {
	return decompose.DetectorConfig{
		Enabled:                  o.cfg.Decomposition.Enabled,
		BudgetThresholdPercent:   o.cfg.Decomposition.BudgetThresholdPercent,
		ProgressThresholdPercent: o.cfg.Decomposition.ProgressThresholdPercent,
		AllowExplicitRequest:     o.cfg.Decomposition.AllowExplicitRequest,
		DetectComplexitySignals:  o.cfg.Decomposition.DetectComplexitySignals,
		ComplexityKeywords:       o.cfg.Decomposition.ComplexityKeywords,
	}
}
