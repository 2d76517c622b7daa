package export

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/framecut/framecut-agent/internal/engine"
	"github.com/framecut/framecut-agent/internal/media"
	"github.com/framecut/framecut-agent/internal/render"
	"github.com/framecut/framecut-agent/internal/timeline"
)

// memoryRepository stores jobs in-process. Safe for concurrent use; the job
// goroutine writes while tests poll.
type memoryRepository struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

func newMemoryRepository() *memoryRepository {
	return &memoryRepository{jobs: make(map[string]*Job)}
}

func (r *memoryRepository) CreateJob(ctx context.Context, job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *memoryRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, nil
	}
	cp := *job
	return &cp, nil
}

func (r *memoryRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var jobs []*Job
	for _, job := range r.jobs {
		cp := *job
		jobs = append(jobs, &cp)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.After(jobs[j].CreatedAt) })
	if len(jobs) > limit {
		jobs = jobs[:limit]
	}
	return jobs, nil
}

func (r *memoryRepository) UpdateJobState(ctx context.Context, id string, state State, errMsg string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.State = state
		job.Error = errMsg
		job.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memoryRepository) UpdateJobProgress(ctx context.Context, id string, progress float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Progress = progress
		job.UpdatedAt = time.Now()
	}
	return nil
}

func (r *memoryRepository) SetJobOutput(ctx context.Context, id, outputPath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.OutputPath = outputPath
		job.UpdatedAt = time.Now()
	}
	return nil
}

func exportableProject(t *testing.T) *timeline.Project {
	t.Helper()
	p := timeline.NewProject("export me", 1280, 720, 30, timeline.Settings{Container: "mp4"})
	p.AddAsset(&media.Asset{ID: "asset-1", Path: "/media/a.mp4", Duration: 60, Width: 1280, Height: 720})
	track, err := p.AddTrack(timeline.TrackVideo, "")
	if err != nil {
		t.Fatalf("AddTrack: %v", err)
	}
	if _, err := p.AddClip(track.ID, timeline.Clip{
		Kind: timeline.ClipVideo, AssetID: "asset-1",
		Start: 0, Duration: 10, In: 0, Out: 10,
	}); err != nil {
		t.Fatalf("AddClip: %v", err)
	}
	return p
}

func newTestOrchestrator(t *testing.T, loadRetries int) (*Orchestrator, *engine.StubAdapter, *memoryRepository) {
	t.Helper()
	stub := engine.NewStubAdapter()
	repo := newMemoryRepository()
	o := NewOrchestrator(stub, render.NewPlanner(nil), repo, loadRetries, nil)
	return o, stub, repo
}

func waitIdle(t *testing.T, o *Orchestrator) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if o.Active() == nil {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("export job did not finish in time")
}

func waitState(t *testing.T, o *Orchestrator, jobID string, want State) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := o.Job(context.Background(), jobID)
		if err == nil && job.State == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("job never reached state %s", want)
}

func TestStart_SucceedsEndToEnd(t *testing.T) {
	o, stub, _ := newTestOrchestrator(t, 0)

	done := make(chan Artifact, 1)
	job, err := o.Start(context.Background(), exportableProject(t), Callbacks{
		OnComplete: func(a Artifact) { done <- a },
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var artifact Artifact
	select {
	case artifact = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("export did not complete")
	}
	waitIdle(t, o)

	if len(artifact.Bytes) == 0 || artifact.Format != "mp4" || artifact.DurationSeconds != 10 {
		t.Fatalf("artifact wrong: %+v", artifact)
	}

	final, err := o.Job(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if final.State != StateSucceeded {
		t.Fatalf("state = %s, want succeeded", final.State)
	}
	if final.Progress != 1 {
		t.Fatalf("progress = %v, want 1", final.Progress)
	}
	if final.OutputPath != "export.mp4" {
		t.Fatalf("output path = %q", final.OutputPath)
	}

	// Intermediates are gone; only the finished artifact survives.
	names, _ := stub.ListFiles()
	if len(names) != 1 || names[0] != "export.mp4" {
		t.Fatalf("remaining files = %v", names)
	}
}

func TestStart_RejectsConcurrentExport(t *testing.T) {
	o, stub, _ := newTestOrchestrator(t, 0)
	stub.BlockExecute = make(chan struct{})

	project := exportableProject(t)
	job, err := o.Start(context.Background(), project, Callbacks{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitState(t, o, job.ID, StateExecuting)

	if _, err := o.Start(context.Background(), project, Callbacks{}); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(stub.BlockExecute)
	waitIdle(t, o)

	// The adapter is free again.
	if _, err := o.Start(context.Background(), project, Callbacks{}); err != nil {
		t.Fatalf("Start after completion: %v", err)
	}
	waitIdle(t, o)
}

func TestCancel_StopsJobAndCleansUp(t *testing.T) {
	o, stub, _ := newTestOrchestrator(t, 0)
	stub.BlockExecute = make(chan struct{})

	job, err := o.Start(context.Background(), exportableProject(t), Callbacks{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitState(t, o, job.ID, StateExecuting)

	if err := o.Cancel(job.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	waitIdle(t, o)

	final, err := o.Job(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if final.State != StateCancelled {
		t.Fatalf("state = %s, want cancelled", final.State)
	}

	names, _ := stub.ListFiles()
	if len(names) != 0 {
		t.Fatalf("cancelled job left files behind: %v", names)
	}
}

func TestCancel_UnknownJob(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, 0)

	if err := o.Cancel("no-such-job"); !errors.Is(err, ErrNotRunning) {
		t.Fatalf("expected ErrNotRunning, got %v", err)
	}
}

func TestStart_RetriesEngineLoad(t *testing.T) {
	o, stub, _ := newTestOrchestrator(t, 1)
	stub.FailLoadTimes = 1

	job, err := o.Start(context.Background(), exportableProject(t), Callbacks{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, o)

	final, err := o.Job(context.Background(), job.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if final.State != StateSucceeded {
		t.Fatalf("state = %s, want succeeded after retry (error: %s)", final.State, final.Error)
	}
}

func TestStart_LoadFailureExhaustsRetries(t *testing.T) {
	o, stub, _ := newTestOrchestrator(t, 1)
	stub.FailLoadTimes = 5

	var gotErr error
	errCh := make(chan error, 1)
	job, err := o.Start(context.Background(), exportableProject(t), Callbacks{
		OnError: func(e error) { errCh <- e },
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case gotErr = <-errCh:
	case <-time.After(5 * time.Second):
		t.Fatal("OnError never fired")
	}
	waitIdle(t, o)

	if gotErr == nil {
		t.Fatal("expected a load error")
	}
	final, _ := o.Job(context.Background(), job.ID)
	if final.State != StateFailed || final.Error == "" {
		t.Fatalf("job should record the failure: %+v", final)
	}
}

func TestStart_CommandFailureCleansIntermediates(t *testing.T) {
	o, stub, _ := newTestOrchestrator(t, 0)
	// The segment materialises, then the mux fails.
	stub.FailAtCommand = 1

	job, err := o.Start(context.Background(), exportableProject(t), Callbacks{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, o)

	final, _ := o.Job(context.Background(), job.ID)
	if final.State != StateFailed {
		t.Fatalf("state = %s, want failed", final.State)
	}

	names, _ := stub.ListFiles()
	if len(names) != 0 {
		t.Fatalf("failed job left files behind: %v", names)
	}
}

func TestStart_SnapshotIsolatesLiveEdits(t *testing.T) {
	o, stub, _ := newTestOrchestrator(t, 0)
	stub.BlockExecute = make(chan struct{})

	project := exportableProject(t)
	job, err := o.Start(context.Background(), project, Callbacks{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitState(t, o, job.ID, StateExecuting)

	// Mutating the live document while the export runs must not affect it.
	clip := project.Tracks[0].Clips[0]
	if err := project.MoveClip(clip.ID, 40); err != nil {
		t.Fatalf("MoveClip: %v", err)
	}

	close(stub.BlockExecute)
	waitIdle(t, o)

	final, _ := o.Job(context.Background(), job.ID)
	if final.State != StateSucceeded {
		t.Fatalf("state = %s, want succeeded", final.State)
	}
}

func TestProgress_MonotonicallyIncreases(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, 0)

	var mu sync.Mutex
	var ratios []float64
	_, err := o.Start(context.Background(), exportableProject(t), Callbacks{
		OnProgress: func(ratio float64, state State) {
			mu.Lock()
			ratios = append(ratios, ratio)
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, o)

	mu.Lock()
	defer mu.Unlock()
	if len(ratios) == 0 {
		t.Fatal("no progress reports")
	}
	for i := 1; i < len(ratios); i++ {
		if ratios[i] < ratios[i-1]-1e-9 {
			t.Fatalf("progress regressed at %d: %v", i, ratios)
		}
	}
	if last := ratios[len(ratios)-1]; last != 1 {
		t.Fatalf("final ratio = %v, want 1", last)
	}
}

func TestJobs_ListsNewestFirst(t *testing.T) {
	o, _, repo := newTestOrchestrator(t, 0)

	now := time.Now()
	for i, id := range []string{"old", "mid", "new"} {
		repo.CreateJob(context.Background(), &Job{
			ID:        id,
			State:     StateSucceeded,
			CreatedAt: now.Add(time.Duration(i) * time.Minute),
		})
	}

	jobs, err := o.Jobs(context.Background(), 2)
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(jobs) != 2 || jobs[0].ID != "new" || jobs[1].ID != "mid" {
		t.Fatalf("jobs = %+v", jobs)
	}
}

func TestJob_NotFound(t *testing.T) {
	o, _, _ := newTestOrchestrator(t, 0)

	if _, err := o.Job(context.Background(), "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Fatalf("expected ErrJobNotFound, got %v", err)
	}
}
