package export

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/framecut/framecut-agent/internal/engine"
	"github.com/framecut/framecut-agent/internal/logging"
	"github.com/framecut/framecut-agent/internal/render"
	"github.com/framecut/framecut-agent/internal/timeline"
)

// Orchestrator drives export jobs through the engine. It owns the adapter:
// at most one job executes at a time, and a second Start while one is
// running returns ErrBusy.
type Orchestrator struct {
	adapter     engine.Adapter
	planner     *render.Planner
	repo        Repository
	logger      *slog.Logger
	loadRetries int

	mu     sync.Mutex
	active *runningJob
}

type runningJob struct {
	job    *Job
	cancel context.CancelFunc
	done   chan struct{}
}

func NewOrchestrator(adapter engine.Adapter, planner *render.Planner, repo Repository, loadRetries int, logger *slog.Logger) *Orchestrator {
	if loadRetries < 0 {
		loadRetries = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		adapter:     adapter,
		planner:     planner,
		repo:        repo,
		logger:      logger,
		loadRetries: loadRetries,
	}
}

// Start begins an export of the given project. The project is deep-copied
// before the job goroutine touches it, so the caller may keep editing the
// live document while the export runs.
func (o *Orchestrator) Start(ctx context.Context, project *timeline.Project, cb Callbacks) (*Job, error) {
	snapshot, err := timeline.Snapshot(project)
	if err != nil {
		return nil, fmt.Errorf("snapshot project: %w", err)
	}

	o.mu.Lock()
	if o.active != nil {
		o.mu.Unlock()
		return nil, ErrBusy
	}

	now := time.Now()
	job := &Job{
		ID:        uuid.NewString(),
		ProjectID: snapshot.ID,
		State:     StateIdle,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := o.repo.CreateJob(ctx, job); err != nil {
		o.mu.Unlock()
		return nil, fmt.Errorf("persist job: %w", err)
	}

	jobCtx, cancel := context.WithCancel(context.Background())
	running := &runningJob{job: job, cancel: cancel, done: make(chan struct{})}
	o.active = running
	o.mu.Unlock()

	go o.run(jobCtx, running, snapshot, cb)
	return job, nil
}

// Cancel requests cooperative cancellation of the given job. The running
// engine command is interrupted via its context; cleanup still happens.
func (o *Orchestrator) Cancel(jobID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil || o.active.job.ID != jobID {
		return ErrNotRunning
	}
	o.active.cancel()
	return nil
}

// Job returns the persisted record for the given job ID.
func (o *Orchestrator) Job(ctx context.Context, id string) (*Job, error) {
	job, err := o.repo.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Jobs returns recent jobs, newest first.
func (o *Orchestrator) Jobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	return o.repo.ListJobs(ctx, limit)
}

// Active returns the currently running job, or nil.
func (o *Orchestrator) Active() *Job {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return nil
	}
	current := *o.active.job
	return &current
}

func (o *Orchestrator) run(ctx context.Context, running *runningJob, snapshot *timeline.Project, cb Callbacks) {
	job := running.job
	logger := logging.WithJobID(o.logger, job.ID)

	defer func() {
		running.cancel()
		close(running.done)
		o.mu.Lock()
		o.active = nil
		o.mu.Unlock()
	}()

	fail := func(stage State, err error) {
		if ctx.Err() != nil {
			o.transition(job, StateCancelled, "", cb)
			logger.Info("export cancelled", "stage", string(stage))
			return
		}
		o.transition(job, StateFailed, err.Error(), cb)
		logger.Error("export failed", "stage", string(stage), "error", err)
		if cb.OnError != nil {
			cb.OnError(err)
		}
	}

	logger.Info("export started", "project_id", job.ProjectID)

	o.transition(job, StateLoading, "", cb)
	if err := o.loadEngine(ctx); err != nil {
		fail(StateLoading, err)
		return
	}

	o.transition(job, StatePlanning, "", cb)
	plan, err := o.planner.Plan(snapshot)
	if err != nil {
		fail(StatePlanning, err)
		return
	}
	logger.Info("render plan ready", "commands", len(plan.Commands), "duration", plan.Duration)

	o.transition(job, StateExecuting, "", cb)
	defer func() { o.cleanup(plan, job.State) }()

	if err := o.execute(ctx, job, plan, cb); err != nil {
		fail(StateExecuting, err)
		return
	}

	o.transition(job, StateFinalizing, "", cb)
	data, err := o.adapter.ReadFile(plan.OutputName)
	if err != nil {
		fail(StateFinalizing, fmt.Errorf("read output: %w", err))
		return
	}

	o.setProgress(job, 1, cb)
	o.repo.SetJobOutput(context.Background(), job.ID, plan.OutputName)
	job.OutputPath = plan.OutputName
	o.transition(job, StateSucceeded, "", cb)
	logger.Info("export succeeded", "output", plan.OutputName, "size", len(data))

	if cb.OnComplete != nil {
		cb.OnComplete(Artifact{
			Bytes:           data,
			DurationSeconds: plan.Duration,
			SizeBytes:       int64(len(data)),
			Format:          plan.Format,
		})
	}
}

// loadEngine initialises the adapter, retrying transient failures.
func (o *Orchestrator) loadEngine(ctx context.Context) error {
	var err error
	for attempt := 0; attempt <= o.loadRetries; attempt++ {
		if err = o.adapter.Load(ctx); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
	}
	return fmt.Errorf("engine load: %w", err)
}

// execute runs the plan's commands in order. Cancellation is honored both
// between commands and, through the context, inside the running command.
func (o *Orchestrator) execute(ctx context.Context, job *Job, plan *render.RenderPlan, cb Callbacks) error {
	var completed float64
	for _, cmd := range plan.Commands {
		if err := ctx.Err(); err != nil {
			return err
		}

		cmd := cmd
		spec := engine.ExecSpec{
			Args:             cmd.Args,
			ExpectedDuration: cmd.ExpectedDuration,
			OnProgress: func(p engine.Progress) {
				o.setProgress(job, completed+cmd.Weight*clampRatio(p.Ratio), cb)
			},
		}
		if err := o.adapter.Execute(ctx, spec); err != nil {
			return fmt.Errorf("command %d (%s): %w", cmd.Index, cmd.Kind, err)
		}
		completed += cmd.Weight
		o.setProgress(job, completed, cb)
	}
	return nil
}

// cleanup removes every intermediate the plan wrote. The final output is
// kept only for a successful job; cancelled and failed jobs leave nothing.
func (o *Orchestrator) cleanup(plan *render.RenderPlan, finalState State) {
	for _, name := range plan.Intermediates() {
		if name == plan.OutputName && finalState == StateSucceeded {
			continue
		}
		o.adapter.DeleteFile(name)
	}
}

func (o *Orchestrator) transition(job *Job, state State, errMsg string, cb Callbacks) {
	job.State = state
	job.Error = errMsg
	job.UpdatedAt = time.Now()
	o.repo.UpdateJobState(context.Background(), job.ID, state, errMsg)
	if cb.OnProgress != nil {
		cb.OnProgress(job.Progress, state)
	}
}

func (o *Orchestrator) setProgress(job *Job, ratio float64, cb Callbacks) {
	ratio = clampRatio(ratio)
	job.Progress = ratio
	o.repo.UpdateJobProgress(context.Background(), job.ID, ratio)
	if cb.OnProgress != nil {
		cb.OnProgress(ratio, job.State)
	}
}

func clampRatio(r float64) float64 {
	if r < 0 {
		return 0
	}
	if r > 1 {
		return 1
	}
	return r
}
