package training

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HermYeh/face-attendance/internal/attendance"
	"github.com/HermYeh/face-attendance/internal/recognition"
)

// JobStatus represents the status of a training job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// JobEvent is one progress event from a training job.
type JobEvent struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

const eventChannelBuffer = 100

// EventBroadcaster provides listener management and event broadcasting for
// training jobs.
type EventBroadcaster struct {
	mu        sync.RWMutex
	listeners []chan JobEvent
}

// AddListener adds an event listener.
func (b *EventBroadcaster) AddListener() chan JobEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan JobEvent, eventChannelBuffer)
	b.listeners = append(b.listeners, ch)
	return ch
}

// RemoveListener removes an event listener.
func (b *EventBroadcaster) RemoveListener(ch chan JobEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, listener := range b.listeners {
		if listener == ch {
			b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
			close(ch)
			return
		}
	}
}

// SendEvent sends an event to all listeners. Slow listeners are skipped.
func (b *EventBroadcaster) SendEvent(event JobEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, listener := range b.listeners {
		select {
		case listener <- event:
		default:
		}
	}
}

// Job is one training run over the dataset.
type Job struct {
	EventBroadcaster

	ID              string     `json:"id"`
	Status          JobStatus  `json:"status"`
	TotalImages     int        `json:"total_images"`
	ProcessedImages int        `json:"processed_images"`
	Error           string     `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`

	cancel context.CancelFunc
	done   chan struct{}
	mu     sync.RWMutex
}

// GetStatus returns the current job status.
func (j *Job) GetStatus() JobStatus {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Status
}

// Snapshot returns a copy of the job safe to serialize.
func (j *Job) Snapshot() Job {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return Job{
		ID:              j.ID,
		Status:          j.Status,
		TotalImages:     j.TotalImages,
		ProcessedImages: j.ProcessedImages,
		Error:           j.Error,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
	}
}

// Cancel stops the job. The job finishes the image in flight and then winds
// down; use Wait to join it.
func (j *Job) Cancel() {
	j.cancel()
}

// Wait blocks until the job has fully stopped.
func (j *Job) Wait() {
	<-j.done
}

// Done reports whether the job reached a terminal state.
func (j *Job) Done() bool {
	s := j.GetStatus()
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

func (j *Job) finish(status JobStatus, errMsg string) {
	now := time.Now()
	j.mu.Lock()
	j.Status = status
	j.Error = errMsg
	j.CompletedAt = &now
	j.mu.Unlock()

	event := JobEvent{Type: string(status), Data: j.Snapshot()}
	if errMsg != "" {
		event.Message = errMsg
	}
	j.SendEvent(event)
	close(j.done)
}

// ResultCache is the recognition cache invalidated after a successful
// training run.
type ResultCache interface {
	Clear()
}

// CaptureGate pauses frame processing while the embedding backend is busy
// with training.
type CaptureGate interface {
	Pause()
	Resume()
}

// ErrTrainingInProgress is returned when a job is already running.
var ErrTrainingInProgress = errors.New("training already in progress")

// Trainer rebuilds the embedding store from the dataset directory. One job at
// a time; finished jobs stay queryable by id.
type Trainer struct {
	dataset  *Dataset
	embedder recognition.Embedder
	store    *recognition.EmbeddingStore
	cache    ResultCache
	gate     CaptureGate

	mu         sync.Mutex
	jobs       map[string]*Job
	current    *Job
	enrollment *Enrollment
}

// NewTrainer creates a trainer. cache and gate may be nil when there is no
// live capture loop (CLI training).
func NewTrainer(dataset *Dataset, embedder recognition.Embedder, store *recognition.EmbeddingStore, cache ResultCache, gate CaptureGate) *Trainer {
	return &Trainer{
		dataset:  dataset,
		embedder: embedder,
		store:    store,
		cache:    cache,
		gate:     gate,
		jobs:     make(map[string]*Job),
	}
}

// Job retrieves a job by id, or nil.
func (t *Trainer) Job(id string) *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.jobs[id]
}

// Current returns the running job, or nil.
func (t *Trainer) Current() *Job {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil && t.current.Done() {
		return nil
	}
	return t.current
}

// Start launches a training run in the background. Returns
// ErrTrainingInProgress if one is already running.
func (t *Trainer) Start(ctx context.Context) (*Job, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.current != nil && !t.current.Done() {
		return nil, ErrTrainingInProgress
	}

	ctx, cancel := context.WithCancel(ctx)
	job := &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusRunning,
		StartedAt: time.Now(),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	t.jobs[job.ID] = job
	t.current = job

	go t.run(ctx, job)
	return job, nil
}

func (t *Trainer) run(ctx context.Context, job *Job) {
	defer job.cancel()

	if t.gate != nil {
		t.gate.Pause()
		defer t.gate.Resume()
	}

	persons, err := t.dataset.Persons()
	if err != nil {
		job.finish(JobStatusFailed, err.Error())
		return
	}

	total := 0
	for _, p := range persons {
		total += len(p.Images)
	}
	if total == 0 {
		job.finish(JobStatusFailed, "no training images found")
		return
	}

	job.mu.Lock()
	job.TotalImages = total
	job.mu.Unlock()

	// Rebuild from scratch so removed photos stop matching.
	t.store.Clear()

	processed := 0
	extracted := 0
	for _, p := range persons {
		for _, path := range p.Images {
			if ctx.Err() != nil {
				job.finish(JobStatusCancelled, "training cancelled")
				return
			}

			data, err := os.ReadFile(path)
			if err != nil {
				log.Printf("skipping %s: %v", path, err)
				processed++
				continue
			}

			embedding, err := t.embedder.EmbedFace(ctx, data)
			if err != nil {
				if ctx.Err() != nil {
					job.finish(JobStatusCancelled, "training cancelled")
					return
				}
				log.Printf("skipping %s: %v", path, err)
				processed++
				continue
			}

			t.store.Add(p.DisplayName, embedding)
			processed++
			extracted++

			job.mu.Lock()
			job.ProcessedImages = processed
			job.mu.Unlock()
			job.SendEvent(JobEvent{
				Type:    "progress",
				Message: fmt.Sprintf("processed %d/%d images", processed, total),
				Data:    job.Snapshot(),
			})
		}
	}

	if extracted == 0 {
		job.finish(JobStatusFailed, "no valid embeddings extracted")
		return
	}

	if err := t.store.Save(); err != nil {
		job.finish(JobStatusFailed, fmt.Sprintf("failed to save embeddings: %v", err))
		return
	}

	// Cached results may point at identities that just changed.
	if t.cache != nil {
		t.cache.Clear()
	}

	job.finish(JobStatusCompleted, "")
}

// SyncEmployees registers every enrolled dataset person missing from the
// employee roster. Returns the number of employees added.
func (t *Trainer) SyncEmployees(roster EmployeeRoster) (int, error) {
	persons, err := t.dataset.Persons()
	if err != nil {
		return 0, err
	}

	added := 0
	for _, p := range persons {
		ok, err := roster.AddEmployee(attendance.Employee{
			Name:       p.DisplayName,
			Department: "Face Recognition",
			Position:   "Employee",
		})
		if err != nil {
			return added, fmt.Errorf("failed to register %s: %w", p.DisplayName, err)
		}
		if ok {
			added++
		}
	}
	return added, nil
}

// EmployeeRoster is the slice of the attendance ledger the trainer needs for
// the dataset-to-roster sync.
type EmployeeRoster interface {
	AddEmployee(e attendance.Employee) (bool, error)
}
