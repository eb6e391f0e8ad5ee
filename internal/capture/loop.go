package capture

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HermYeh/face-attendance/internal/config"
	"github.com/HermYeh/face-attendance/internal/evidence"
	"github.com/HermYeh/face-attendance/internal/fingerprint"
	"github.com/HermYeh/face-attendance/internal/recognition"
	"github.com/HermYeh/face-attendance/internal/tracker"
)

// Attender is the slice of the attendance ledger the loop calls into.
type Attender interface {
	CheckIn(name string) (bool, error)
}

// EvidenceSink persists snapshots of attendance events without blocking.
type EvidenceSink interface {
	Save(p evidence.Photo) bool
}

// Loop is the capture orchestrator: one periodic tick that reads a frame,
// throttles detection and recognition, feeds the tracker and reports
// confident presence to the ledger.
type Loop struct {
	cfg      *config.Config
	source   FrameSource
	detector Detector
	cache    *recognition.Cache
	tracker  *tracker.Tracker
	ledger   Attender
	evidence EvidenceSink
	renderer Renderer
	enroller Enroller

	paused atomic.Bool

	frameCount int64
	lastFrame  time.Time
	lastBoxes  []tracker.Box

	mu       sync.Mutex
	lastSeen map[string]time.Time

	now func() time.Time
}

// New wires up a capture loop. renderer and evidenceSink may be nil.
func New(cfg *config.Config, source FrameSource, detector Detector, cache *recognition.Cache, trk *tracker.Tracker, ledger Attender, evidenceSink EvidenceSink, renderer Renderer) *Loop {
	return &Loop{
		cfg:      cfg,
		source:   source,
		detector: detector,
		cache:    cache,
		tracker:  trk,
		ledger:   ledger,
		evidence: evidenceSink,
		renderer: renderer,
		lastSeen: make(map[string]time.Time),
		now:      time.Now,
	}
}

// AttachEnroller points the loop at an enrollment sink. The trainer and the
// loop reference each other, so this is wired after construction, before Run.
func (l *Loop) AttachEnroller(e Enroller) { l.enroller = e }

// Pause suspends detection and recognition; frames keep rendering. Used while
// the training worker has the embedding backend busy.
func (l *Loop) Pause() { l.paused.Store(true) }

// Resume lifts a pause.
func (l *Loop) Resume() { l.paused.Store(false) }

// Paused reports whether processing is suspended.
func (l *Loop) Paused() bool { return l.paused.Load() }

// FrameCount returns the number of frames processed so far.
func (l *Loop) FrameCount() int64 { return atomic.LoadInt64(&l.frameCount) }

// Run drives ticks until ctx is cancelled. The in-flight tick always
// finishes; a frame read is never abandoned halfway.
func (l *Loop) Run(ctx context.Context) error {
	frameInterval := time.Second / time.Duration(l.cfg.Camera.TargetFPS)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		// Frame rate gate: wait out the remainder of the interval instead
		// of spinning.
		if wait := frameInterval - l.now().Sub(l.lastFrame); wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		l.lastFrame = l.now()

		l.Tick(ctx)
	}
}

// Tick runs one iteration of the capture loop. Exported so the CLI can drive
// single frames and tests can step deterministically.
func (l *Loop) Tick(ctx context.Context) {
	frame := atomic.AddInt64(&l.frameCount, 1)

	f, err := l.source.ReadFrame(ctx)
	if err != nil {
		log.Printf("frame read failed: %v", err)
		return
	}

	if l.paused.Load() {
		l.render(f, true)
		return
	}

	width, height := f.Bounds()

	// Detection runs every Nth tick; in between the last boxes are reused,
	// the tracker smoothing over the gap.
	boxes := l.lastBoxes
	if frame%int64(l.cfg.Recognition.FaceDetectionInterval) == 0 || l.lastBoxes == nil {
		detections, err := l.detector.DetectFaces(ctx, f.JPEG)
		if err != nil {
			log.Printf("detection failed: %v", err)
			detections = nil
		}

		boxes = make([]tracker.Box, 0, len(detections))
		for _, d := range detections {
			box, ok := boxFromDetection(d)
			if !ok || !validBox(box, width, height, l.cfg.Recognition.MinFaceSize) {
				continue
			}
			boxes = append(boxes, box)
		}
		l.lastBoxes = boxes
	}

	// Identity per box: the expensive matcher only every Mth tick, the
	// tracker's memory otherwise.
	recognize := frame%int64(l.cfg.Recognition.RecognitionInterval) == 0
	enrolling := l.enroller != nil && l.enroller.EnrollmentActive()
	names := make([]string, len(boxes))
	for i, box := range boxes {
		var name string
		var confidence float64

		if recognize {
			name, confidence = l.recognizeBox(ctx, f, box)
		} else {
			name, confidence = l.tracker.IdentityFor(box)
		}
		names[i] = name

		if name != recognition.Unknown && confidence > l.cfg.Recognition.RecognitionThreshold {
			l.handlePresence(name, f)
		}

		if enrolling {
			l.enroller.CaptureFace(cropImage(f.Image, box))
		}
	}

	l.tracker.Update(frame, boxes, names)

	l.render(f, false)
}

// recognizeBox crops the face, fingerprints it and resolves the identity
// through the cache. Any failure degrades to Unknown; the loop never stops
// over one bad crop.
func (l *Loop) recognizeBox(ctx context.Context, f *Frame, box tracker.Box) (string, float64) {
	crop, err := cropJPEG(f.Image, box)
	if err != nil {
		log.Printf("failed to crop face: %v", err)
		return recognition.Unknown, 0
	}

	fp, err := fingerprint.Compute(crop)
	if err != nil {
		log.Printf("failed to fingerprint face: %v", err)
		return recognition.Unknown, 0
	}

	res := l.cache.LookupOrCompute(ctx, fp, crop)
	return res.Name, res.Confidence
}

// handlePresence records a confident sighting: per-name cooldown first, then
// the idempotent ledger call, then evidence.
func (l *Loop) handlePresence(name string, f *Frame) {
	now := l.now()

	l.mu.Lock()
	last, seen := l.lastSeen[name]
	if seen && now.Sub(last) < l.cooldown() {
		l.mu.Unlock()
		return
	}
	l.lastSeen[name] = now
	l.mu.Unlock()

	ok, err := l.ledger.CheckIn(name)
	if err != nil {
		log.Printf("check-in failed for %s: %v", name, err)
		return
	}
	if !ok {
		return // already checked in today
	}

	log.Printf("%s checked in", name)
	if l.evidence != nil {
		l.evidence.Save(evidence.Photo{
			Event: evidence.EventCheckIn,
			Name:  name,
			Taken: now,
			JPEG:  f.JPEG,
		})
	}
}

func (l *Loop) cooldown() time.Duration {
	return time.Duration(l.cfg.Attendance.CooldownSeconds * float64(time.Second))
}

func (l *Loop) render(f *Frame, paused bool) {
	if l.renderer != nil {
		l.renderer.Render(f, l.tracker.Tracks(), paused)
	}
}
