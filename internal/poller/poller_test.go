package poller_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ai-task-scheduler/engine/internal/coordination/noop"
	"github.com/ai-task-scheduler/engine/internal/models"
	"github.com/ai-task-scheduler/engine/internal/poller"
	"github.com/ai-task-scheduler/engine/internal/storage"
)

type fixedClock struct{ now time.Time }

func (f fixedClock) Now() time.Time { return f.now }

type fakeRepo struct {
	mu            sync.Mutex
	tasks         map[uuid.UUID]*models.Task
	claimAttempts map[uuid.UUID]int
}

func newFakeRepo(tasks ...*models.Task) *fakeRepo {
	r := &fakeRepo{tasks: map[uuid.UUID]*models.Task{}, claimAttempts: map[uuid.UUID]int{}}
	for _, t := range tasks {
		r.tasks[t.ID] = t
	}
	return r
}

func (r *fakeRepo) Insert(ctx context.Context, task *models.Task) error { return nil }

func (r *fakeRepo) Get(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeRepo) Update(ctx context.Context, id uuid.UUID, patch storage.TaskPatch) (*models.Task, error) {
	return nil, nil
}

func (r *fakeRepo) Delete(ctx context.Context, id uuid.UUID) error { return nil }

func (r *fakeRepo) ListByUser(ctx context.Context, userID string, filter storage.TaskFilter) ([]models.Task, error) {
	return nil, nil
}

func (r *fakeRepo) DueBefore(ctx context.Context, instant time.Time, limit int) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Task
	for _, t := range r.tasks {
		if t.Status == models.StatusActive && t.NextRunAt != nil && !t.NextRunAt.After(instant) {
			out = append(out, *t)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *fakeRepo) ClaimForProcessing(ctx context.Context, id uuid.UUID, now time.Time) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claimAttempts[id]++
	t, ok := r.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	if t.Status != models.StatusActive {
		return nil, storage.ErrAlreadyClaimed
	}
	t.Status = models.StatusProcessing
	t.LastRunAt = &now
	cp := *t
	return &cp, nil
}

func (r *fakeRepo) FindStuck(ctx context.Context, threshold time.Duration, now time.Time) ([]models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Task
	for _, t := range r.tasks {
		if t.Status == models.StatusProcessing && t.LastRunAt != nil && t.LastRunAt.Before(now.Add(-threshold)) {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (r *fakeRepo) Release(ctx context.Context, id uuid.UUID, nextState models.TaskStatus, patch storage.TaskPatch) (*models.Task, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tasks[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	t.Status = nextState
	if patch.RetryCount != nil {
		t.RetryCount = *patch.RetryCount
	}
	if patch.ClearNextRunAt {
		t.NextRunAt = nil
	} else if patch.NextRunAt != nil {
		t.NextRunAt = patch.NextRunAt
	}
	cp := *t
	return &cp, nil
}

type fakeQueue struct {
	mu       sync.Mutex
	pushed   []*storage.QueuePayload
}

func (q *fakeQueue) Push(ctx context.Context, payload *storage.QueuePayload) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pushed = append(q.pushed, payload)
	return nil
}
func (q *fakeQueue) Pop(ctx context.Context, group, consumer string) (string, *storage.QueuePayload, error) {
	return "", nil, nil
}
func (q *fakeQueue) Ack(ctx context.Context, group, msgID string) error { return nil }
func (q *fakeQueue) EnsureGroup(ctx context.Context, group string) error { return nil }

type fakeExecStore struct {
	mu      sync.Mutex
	created []*models.ExecutionRecord
	orphansReaped int64
}

func (s *fakeExecStore) CreateExecution(ctx context.Context, exec *models.ExecutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, exec)
	return nil
}
func (s *fakeExecStore) UpdateRunState(ctx context.Context, id uuid.UUID, startedAt time.Time, nodeID string) error {
	return nil
}
func (s *fakeExecStore) UpdateResult(ctx context.Context, id uuid.UUID, status models.ExecutionStatus, qualityScore float64, isHighQuality bool, result, errMsg, deliveryWarnings string) error {
	return nil
}
func (s *fakeExecStore) ListByTask(ctx context.Context, taskID uuid.UUID, limit int) ([]models.ExecutionRecord, error) {
	return nil, nil
}
func (s *fakeExecStore) MarkOrphansAsFailed(ctx context.Context, activeNodeIDs []string) (int64, error) {
	return s.orphansReaped, nil
}

func newTask(status models.TaskStatus, nextRunAt *time.Time) *models.Task {
	return &models.Task{
		ID:                   uuid.New(),
		UserID:               "u1",
		Title:                "t",
		TaskType:             models.TaskTypeReminder,
		ScheduleType:         models.ScheduleOnce,
		Status:               status,
		NextRunAt:            nextRunAt,
		NotificationChannels: models.NotificationChannels{models.ChannelSMS},
		MaxRetries:           3,
	}
}

func TestPollAndSchedule_DispatchesDueTasks(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 5, 0, time.UTC)
	due := now.Add(-5 * time.Second)
	task := newTask(models.StatusActive, &due)
	repo := newFakeRepo(task)
	queue := &fakeQueue{}
	execStore := &fakeExecStore{}

	p := poller.New("node-1", poller.Config{}, repo, execStore, queue, noop.New(), fixedClock{now: now}, zap.NewNop())

	count, err := p.PollAndSchedule(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 dispatched task, got %d", count)
	}
	if len(queue.pushed) != 1 {
		t.Fatalf("expected 1 queued payload, got %d", len(queue.pushed))
	}
	if repo.tasks[task.ID].Status != models.StatusProcessing {
		t.Errorf("expected task claimed into processing, got %v", repo.tasks[task.ID].Status)
	}
}

func TestPollAndSchedule_DueBefore_ExcludesFutureTask(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	future := now.Add(1 * time.Second)
	task := newTask(models.StatusActive, &future)
	repo := newFakeRepo(task)
	queue := &fakeQueue{}
	execStore := &fakeExecStore{}

	p := poller.New("node-1", poller.Config{}, repo, execStore, queue, noop.New(), fixedClock{now: now}, zap.NewNop())

	count, err := p.PollAndSchedule(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected next_run_at == now+1s to not be due yet, got %d dispatched", count)
	}
}

func TestReconcile_ResetsStuckTaskToActive(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	lastRun := now.Add(-45 * time.Minute)
	task := newTask(models.StatusProcessing, nil)
	task.LastRunAt = &lastRun
	task.RetryCount = 0
	repo := newFakeRepo(task)
	queue := &fakeQueue{}
	execStore := &fakeExecStore{}

	p := poller.New("node-1", poller.Config{StuckThreshold: 30 * time.Minute}, repo, execStore, queue, noop.New(), fixedClock{now: now}, zap.NewNop())

	if err := p.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.tasks[task.ID].Status != models.StatusActive {
		t.Errorf("expected stuck task reset to active, got %v", repo.tasks[task.ID].Status)
	}
	if repo.tasks[task.ID].RetryCount != 1 {
		t.Errorf("expected retry_count incremented to 1, got %d", repo.tasks[task.ID].RetryCount)
	}
}

func TestReconcile_DoesNotTouchTaskWithinThreshold(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	lastRun := now.Add(-10 * time.Minute)
	task := newTask(models.StatusProcessing, nil)
	task.LastRunAt = &lastRun
	repo := newFakeRepo(task)
	queue := &fakeQueue{}
	execStore := &fakeExecStore{}

	p := poller.New("node-1", poller.Config{StuckThreshold: 30 * time.Minute}, repo, execStore, queue, noop.New(), fixedClock{now: now}, zap.NewNop())

	if err := p.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.tasks[task.ID].Status != models.StatusProcessing {
		t.Errorf("expected task within threshold to remain untouched, got %v", repo.tasks[task.ID].Status)
	}
}

func TestReconcile_StuckTaskExceedingMaxRetries_Fails(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	lastRun := now.Add(-45 * time.Minute)
	task := newTask(models.StatusProcessing, nil)
	task.LastRunAt = &lastRun
	task.RetryCount = 3
	task.MaxRetries = 3
	repo := newFakeRepo(task)
	queue := &fakeQueue{}
	execStore := &fakeExecStore{}

	p := poller.New("node-1", poller.Config{StuckThreshold: 30 * time.Minute}, repo, execStore, queue, noop.New(), fixedClock{now: now}, zap.NewNop())

	if err := p.Reconcile(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if repo.tasks[task.ID].Status != models.StatusFailed {
		t.Errorf("expected task exceeding max_retries to fail, got %v", repo.tasks[task.ID].Status)
	}
}
