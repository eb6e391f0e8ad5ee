package training

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/HermYeh/face-attendance/internal/attendance"
	"github.com/HermYeh/face-attendance/internal/recognition"
)

// fakeEmbedder returns a fixed embedding, optionally blocking until the
// context is cancelled.
type fakeEmbedder struct {
	embedding []float32
	block     chan struct{} // when set, blocks until closed or ctx done
	calls     atomic.Int32
}

func (f *fakeEmbedder) EmbedFace(ctx context.Context, cropData []byte) ([]float32, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.embedding, nil
}

type fakeGate struct {
	mu      sync.Mutex
	paused  int
	resumed int
}

func (g *fakeGate) Pause() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.paused++
}

func (g *fakeGate) Resume() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.resumed++
}

type fakeCache struct{ cleared atomic.Int32 }

func (c *fakeCache) Clear() { c.cleared.Add(1) }

func newTestDataset(t *testing.T) *Dataset {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Alice", "Alice_1.jpg"), "img-a1")
	writeFile(t, filepath.Join(root, "Alice", "Alice_2.jpg"), "img-a2")
	writeFile(t, filepath.Join(root, "Bob", "Bob_1.jpg"), "img-b1")
	return NewDataset(root)
}

func TestTrainer_RunRebuildsStore(t *testing.T) {
	store := recognition.NewEmbeddingStore("")
	store.Add("Stale", []float32{1, 0, 0, 0})

	embedder := &fakeEmbedder{embedding: []float32{0, 1, 0, 0}}
	gate := &fakeGate{}
	cache := &fakeCache{}
	trainer := NewTrainer(newTestDataset(t), embedder, store, cache, gate)

	job, err := trainer.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	job.Wait()

	if got := job.GetStatus(); got != JobStatusCompleted {
		t.Fatalf("expected completed job, got %s (error %q)", got, job.Snapshot().Error)
	}
	if job.Snapshot().ProcessedImages != 3 {
		t.Errorf("expected 3 processed images, got %d", job.Snapshot().ProcessedImages)
	}

	// Rebuilt from the dataset: stale identity gone, enrolled ones present.
	names := store.Names()
	if len(names) != 2 || names[0] != "Alice" || names[1] != "Bob" {
		t.Errorf("unexpected identities after training: %v", names)
	}
	if store.Count() != 3 {
		t.Errorf("expected 3 embeddings, got %d", store.Count())
	}

	if cache.cleared.Load() != 1 {
		t.Error("expected recognition cache invalidated after training")
	}
	if gate.paused != 1 || gate.resumed != 1 {
		t.Errorf("expected capture paused and resumed once, got %d/%d", gate.paused, gate.resumed)
	}
}

func TestTrainer_SingleJobAtATime(t *testing.T) {
	embedder := &fakeEmbedder{embedding: []float32{1}, block: make(chan struct{})}
	trainer := NewTrainer(newTestDataset(t), embedder, recognition.NewEmbeddingStore(""), nil, nil)

	job, err := trainer.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if _, err := trainer.Start(context.Background()); err != ErrTrainingInProgress {
		t.Errorf("expected ErrTrainingInProgress, got %v", err)
	}

	close(embedder.block)
	job.Wait()

	// A finished job no longer blocks new ones.
	if _, err := trainer.Start(context.Background()); err != nil {
		t.Errorf("expected a new job after completion, got %v", err)
	}
}

func TestTrainer_Cancel(t *testing.T) {
	embedder := &fakeEmbedder{embedding: []float32{1}, block: make(chan struct{})}
	gate := &fakeGate{}
	store := recognition.NewEmbeddingStore("")
	trainer := NewTrainer(newTestDataset(t), embedder, store, nil, gate)

	job, err := trainer.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// Let the worker reach the blocking embed call, then cancel and join.
	deadline := time.After(2 * time.Second)
	for embedder.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("training never called the embedder")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	job.Cancel()
	job.Wait()

	if got := job.GetStatus(); got != JobStatusCancelled {
		t.Errorf("expected cancelled status, got %s", got)
	}
	if gate.resumed != 1 {
		t.Error("expected capture resumed after cancellation")
	}
	if trainer.Current() != nil {
		t.Error("expected no current job after cancellation")
	}
}

func TestTrainer_EmptyDatasetFails(t *testing.T) {
	trainer := NewTrainer(NewDataset(t.TempDir()), &fakeEmbedder{embedding: []float32{1}}, recognition.NewEmbeddingStore(""), nil, nil)

	job, err := trainer.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	job.Wait()

	if got := job.GetStatus(); got != JobStatusFailed {
		t.Errorf("expected failed status for empty dataset, got %s", got)
	}
}

func TestTrainer_ProgressEvents(t *testing.T) {
	// Hold the first embed call until the listener is attached so no event
	// is published before anyone subscribes.
	embedder := &fakeEmbedder{embedding: []float32{1}, block: make(chan struct{})}
	trainer := NewTrainer(newTestDataset(t), embedder, recognition.NewEmbeddingStore(""), nil, nil)

	job, err := trainer.Start(context.Background())
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	ch := job.AddListener()
	defer job.RemoveListener(ch)
	close(embedder.block)
	job.Wait()

	var sawProgress, sawCompleted bool
	for {
		select {
		case event := <-ch:
			switch event.Type {
			case "progress":
				sawProgress = true
			case string(JobStatusCompleted):
				sawCompleted = true
			}
			if sawCompleted {
				if !sawProgress {
					t.Error("expected progress events before completion")
				}
				return
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for events")
		}
	}
}

type fakeRoster struct {
	mu    sync.Mutex
	names []string
}

func (r *fakeRoster) AddEmployee(e attendance.Employee) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.names {
		if n == e.Name {
			return false, nil
		}
	}
	r.names = append(r.names, e.Name)
	return true, nil
}

func TestTrainer_SyncEmployees(t *testing.T) {
	trainer := NewTrainer(newTestDataset(t), nil, nil, nil, nil)
	roster := &fakeRoster{names: []string{"Alice"}}

	added, err := trainer.SyncEmployees(roster)
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if added != 1 {
		t.Errorf("expected 1 new employee (Bob), got %d", added)
	}
	if len(roster.names) != 2 {
		t.Errorf("expected roster of 2, got %v", roster.names)
	}
}
