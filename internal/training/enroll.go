package training

import (
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/image/draw"
)

// DefaultCaptures is the number of enrollment photos collected per person
// when the caller does not ask for a specific count.
const DefaultCaptures = 8

// enrollImageSize is the side length enrollment crops are normalized to
// before they land in the dataset.
const enrollImageSize = 160

// captureSpacing keeps consecutive shots apart so the person has time to
// move between poses.
const captureSpacing = 500 * time.Millisecond

// enrollMinFaceSize rejects crops too small to upscale into useful training
// photos.
const enrollMinFaceSize = 20

// ErrEnrollmentInProgress is returned when a session is already collecting
// photos.
var ErrEnrollmentInProgress = errors.New("enrollment already in progress")

// EnrollmentStatus represents the state of an enrollment session.
type EnrollmentStatus string

const (
	EnrollmentStatusCapturing EnrollmentStatus = "capturing"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusCancelled EnrollmentStatus = "cancelled"
)

// Enrollment collects face crops from the live camera for one identity. The
// capture loop feeds it through Trainer.CaptureFace; the session ends after
// Target stored photos or an explicit Cancel.
type Enrollment struct {
	Name      string           `json:"name"`
	Target    int              `json:"target"`
	Captured  int              `json:"captured"`
	Status    EnrollmentStatus `json:"status"`
	StartedAt time.Time        `json:"started_at"`

	dataset  *Dataset
	lastShot time.Time
	done     chan struct{}
	mu       sync.Mutex

	now func() time.Time
}

// Snapshot returns a copy of the session safe to serialize.
func (e *Enrollment) Snapshot() Enrollment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return Enrollment{
		Name:      e.Name,
		Target:    e.Target,
		Captured:  e.Captured,
		Status:    e.Status,
		StartedAt: e.StartedAt,
	}
}

// Cancel aborts the session. Photos already stored stay in the dataset.
func (e *Enrollment) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status != EnrollmentStatusCapturing {
		return
	}
	e.Status = EnrollmentStatusCancelled
	close(e.done)
}

// Wait blocks until the session has completed or been cancelled.
func (e *Enrollment) Wait() {
	<-e.done
}

// Done reports whether the session reached a terminal state.
func (e *Enrollment) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Status != EnrollmentStatusCapturing
}

// capture stores one face crop. Crops arriving faster than the capture
// spacing are dropped so one pose does not fill the whole session; the
// session completes itself once Target photos are on disk.
func (e *Enrollment) capture(face image.Image) {
	if b := face.Bounds(); b.Dx() < enrollMinFaceSize || b.Dy() < enrollMinFaceSize {
		return
	}

	e.mu.Lock()
	if e.Status != EnrollmentStatusCapturing {
		e.mu.Unlock()
		return
	}
	now := e.now()
	if !e.lastShot.IsZero() && now.Sub(e.lastShot) < captureSpacing {
		e.mu.Unlock()
		return
	}
	e.lastShot = now
	e.mu.Unlock()

	if err := e.save(face); err != nil {
		log.Printf("enrollment capture failed: %v", err)
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.Status != EnrollmentStatusCapturing {
		return
	}
	e.Captured++
	if e.Captured >= e.Target {
		e.Status = EnrollmentStatusCompleted
		close(e.done)
	}
}

// save normalizes the crop to the training size and writes it as the next
// numbered photo of the person.
func (e *Enrollment) save(face image.Image) error {
	resized := image.NewRGBA(image.Rect(0, 0, enrollImageSize, enrollImageSize))
	draw.BiLinear.Scale(resized, resized.Bounds(), face, face.Bounds(), draw.Src, nil)

	path, err := e.dataset.NextImagePath(e.Name)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := jpeg.Encode(f, resized, &jpeg.Options{Quality: 90}); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// StartEnrollment begins collecting photos for name from the capture loop.
// The person directory and display-name file are created up front, so the
// identity survives even a session cancelled after the first shot.
func (t *Trainer) StartEnrollment(name string, target int) (*Enrollment, error) {
	if target <= 0 {
		target = DefaultCaptures
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.enrollment != nil && !t.enrollment.Done() {
		return nil, ErrEnrollmentInProgress
	}
	if t.current != nil && !t.current.Done() {
		return nil, ErrTrainingInProgress
	}

	if _, err := t.dataset.Enroll(name); err != nil {
		return nil, err
	}

	e := &Enrollment{
		Name:      name,
		Target:    target,
		Status:    EnrollmentStatusCapturing,
		StartedAt: time.Now(),
		dataset:   t.dataset,
		done:      make(chan struct{}),
		now:       time.Now,
	}
	t.enrollment = e
	return e, nil
}

// CurrentEnrollment returns the most recent session, finished or not, or nil
// when none was ever started.
func (t *Trainer) CurrentEnrollment() *Enrollment {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enrollment
}

// EnrollmentActive reports whether a session is waiting for face crops.
func (t *Trainer) EnrollmentActive() bool {
	t.mu.Lock()
	e := t.enrollment
	t.mu.Unlock()
	return e != nil && !e.Done()
}

// CaptureFace feeds one cropped face image to the active session. A no-op
// when none is active.
func (t *Trainer) CaptureFace(face image.Image) {
	t.mu.Lock()
	e := t.enrollment
	t.mu.Unlock()
	if e == nil {
		return
	}
	e.capture(face)
}
