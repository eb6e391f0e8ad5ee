package training

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HermYeh/face-attendance/internal/recognition"
)

func testFace(size int) image.Image {
	return image.NewRGBA(image.Rect(0, 0, size, size))
}

// fixedClock steps a fake time forward on demand.
type fixedClock struct{ t time.Time }

func (c *fixedClock) now() time.Time          { return c.t }
func (c *fixedClock) advance(d time.Duration) { c.t = c.t.Add(d) }

// startTestEnrollment begins a session with a controllable clock.
func startTestEnrollment(t *testing.T, trainer *Trainer, name string, target int) (*Enrollment, *fixedClock) {
	t.Helper()
	enr, err := trainer.StartEnrollment(name, target)
	if err != nil {
		t.Fatalf("start enrollment failed: %v", err)
	}
	clock := &fixedClock{t: time.Now()}
	enr.now = clock.now
	return enr, clock
}

func TestEnrollment_CapturesToDataset(t *testing.T) {
	root := t.TempDir()
	trainer := NewTrainer(NewDataset(root), nil, nil, nil, nil)
	enr, clock := startTestEnrollment(t, trainer, "Jane Doe", 3)

	if !trainer.EnrollmentActive() {
		t.Fatal("expected active enrollment")
	}

	for range 3 {
		trainer.CaptureFace(testFace(100))
		clock.advance(time.Second)
	}

	enr.Wait()
	s := enr.Snapshot()
	if s.Status != EnrollmentStatusCompleted || s.Captured != 3 {
		t.Fatalf("expected 3 captures and completion, got status %s with %d captures", s.Status, s.Captured)
	}
	if trainer.EnrollmentActive() {
		t.Error("expected enrollment inactive after completion")
	}

	for i := 1; i <= 3; i++ {
		path := filepath.Join(root, "Jane_Doe", fmt.Sprintf("Jane_Doe_%d.jpg", i))
		if _, err := os.Stat(path); err != nil {
			t.Errorf("missing photo %s: %v", path, err)
		}
	}

	// Crops are normalized to the training size.
	f, err := os.Open(filepath.Join(root, "Jane_Doe", "Jane_Doe_1.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := jpeg.Decode(f)
	if err != nil {
		t.Fatalf("photo not decodable: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 160 || b.Dy() != 160 {
		t.Errorf("expected 160x160 photo, got %dx%d", b.Dx(), b.Dy())
	}

	data, err := os.ReadFile(filepath.Join(root, "Jane_Doe", "Jane_Doe.txt"))
	if err != nil || string(data) != "Jane Doe" {
		t.Errorf("display-name file: %q, %v", data, err)
	}
}

func TestEnrollment_NumbersAfterExistingPhotos(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "Jane_Doe", "Jane_Doe_1.jpg"), "old")
	trainer := NewTrainer(NewDataset(root), nil, nil, nil, nil)
	enr, _ := startTestEnrollment(t, trainer, "Jane Doe", 1)

	trainer.CaptureFace(testFace(100))
	enr.Wait()

	if _, err := os.Stat(filepath.Join(root, "Jane_Doe", "Jane_Doe_2.jpg")); err != nil {
		t.Errorf("expected new photo numbered after existing one: %v", err)
	}
}

func TestEnrollment_SpacingDropsBursts(t *testing.T) {
	trainer := NewTrainer(NewDataset(t.TempDir()), nil, nil, nil, nil)
	enr, clock := startTestEnrollment(t, trainer, "Burst", 5)

	trainer.CaptureFace(testFace(50))
	trainer.CaptureFace(testFace(50)) // same instant
	clock.advance(100 * time.Millisecond)
	trainer.CaptureFace(testFace(50)) // still too soon
	clock.advance(captureSpacing)
	trainer.CaptureFace(testFace(50))

	if got := enr.Snapshot().Captured; got != 2 {
		t.Errorf("expected 2 captures, got %d", got)
	}
}

func TestEnrollment_RejectsTinyCrops(t *testing.T) {
	trainer := NewTrainer(NewDataset(t.TempDir()), nil, nil, nil, nil)
	enr, _ := startTestEnrollment(t, trainer, "Tiny", 1)

	trainer.CaptureFace(testFace(enrollMinFaceSize - 1))

	if got := enr.Snapshot().Captured; got != 0 {
		t.Errorf("expected tiny crop rejected, got %d captures", got)
	}
}

func TestEnrollment_Cancel(t *testing.T) {
	trainer := NewTrainer(NewDataset(t.TempDir()), nil, nil, nil, nil)
	enr, clock := startTestEnrollment(t, trainer, "Leaver", 5)

	trainer.CaptureFace(testFace(50))
	enr.Cancel()
	enr.Wait()

	if got := enr.Snapshot().Status; got != EnrollmentStatusCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}

	// Captures after cancellation are ignored.
	clock.advance(time.Second)
	trainer.CaptureFace(testFace(50))
	if got := enr.Snapshot().Captured; got != 1 {
		t.Errorf("expected capture count frozen at 1, got %d", got)
	}

	// A new session can start over the cancelled one.
	if _, err := trainer.StartEnrollment("Leaver", 5); err != nil {
		t.Errorf("expected restart after cancel, got %v", err)
	}
}

func TestEnrollment_SingleSession(t *testing.T) {
	trainer := NewTrainer(NewDataset(t.TempDir()), nil, nil, nil, nil)
	if _, err := trainer.StartEnrollment("First", 5); err != nil {
		t.Fatalf("start enrollment failed: %v", err)
	}

	if _, err := trainer.StartEnrollment("Second", 5); !errors.Is(err, ErrEnrollmentInProgress) {
		t.Errorf("expected ErrEnrollmentInProgress, got %v", err)
	}
}

func TestEnrollment_RefusedDuringTraining(t *testing.T) {
	embedder := &fakeEmbedder{embedding: []float32{1}, block: make(chan struct{})}
	trainer := NewTrainer(newTestDataset(t), embedder, recognition.NewEmbeddingStore(""), nil, nil)

	job, err := trainer.Start(context.Background())
	if err != nil {
		t.Fatalf("start training failed: %v", err)
	}

	if _, err := trainer.StartEnrollment("Late", 5); !errors.Is(err, ErrTrainingInProgress) {
		t.Errorf("expected ErrTrainingInProgress, got %v", err)
	}

	close(embedder.block)
	job.Wait()
}

func TestEnrollment_InvalidName(t *testing.T) {
	trainer := NewTrainer(NewDataset(t.TempDir()), nil, nil, nil, nil)
	if _, err := trainer.StartEnrollment("***", 5); !errors.Is(err, ErrInvalidName) {
		t.Errorf("expected ErrInvalidName, got %v", err)
	}
}

func TestEnrollment_DefaultTarget(t *testing.T) {
	trainer := NewTrainer(NewDataset(t.TempDir()), nil, nil, nil, nil)
	enr, err := trainer.StartEnrollment("Default", 0)
	if err != nil {
		t.Fatalf("start enrollment failed: %v", err)
	}
	if enr.Target != DefaultCaptures {
		t.Errorf("expected target %d, got %d", DefaultCaptures, enr.Target)
	}
}
