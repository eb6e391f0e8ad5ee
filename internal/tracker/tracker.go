// Package tracker maintains persistent identity hypotheses for faces across
// frames, independent of how often recognition actually runs.
package tracker

import (
	"math"
	"sync"

	"github.com/HermYeh/face-attendance/internal/config"
	"github.com/HermYeh/face-attendance/internal/recognition"
)

// matchEpsilon is the center distance below which IdentityFor treats a box
// as the same face a track is holding.
const matchEpsilon = 10.0

// Box is a face bounding box in frame pixel coordinates.
type Box struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Center returns the box center.
func (b Box) Center() (float64, float64) {
	return float64(b.X) + float64(b.Width)/2, float64(b.Y) + float64(b.Height)/2
}

// Distance returns the Euclidean center-to-center distance between two boxes.
func Distance(a, b Box) float64 {
	ax, ay := a.Center()
	bx, by := b.Center()
	return math.Hypot(ax-bx, ay-by)
}

// Track is one tracked face. Tracks are owned by the Tracker; callers only
// ever see copies.
type Track struct {
	ID            int64   `json:"id"`
	Box           Box     `json:"box"`
	Name          string  `json:"name"`
	Confidence    float64 `json:"confidence"`
	LastSeenFrame int64   `json:"last_seen_frame"`
	CreatedFrame  int64   `json:"created_frame"`
}

// Tracker matches per-frame detections to existing tracks with a greedy
// nearest-centroid assignment.
//
// The assignment iterates detections in input order and each claims its
// nearest unclaimed track; the first-encountered minimum wins. This is
// order-dependent and not globally optimal (no Hungarian matching), matching
// the tuned behavior of the deployed system.
type Tracker struct {
	mu     sync.RWMutex
	cfg    config.TrackingConfig
	tracks []*Track // insertion order; greedy tie-breaks depend on it
	nextID int64
}

// New creates a tracker with the given tuning parameters.
func New(cfg config.TrackingConfig) *Tracker {
	return &Tracker{cfg: cfg}
}

// Update advances the tracker by one tick. boxes and names are aligned by
// index; a name of recognition.Unknown means recognition did not identify
// that face this tick. frame is the current frame counter.
func (t *Tracker) Update(frame int64, boxes []Box, names []string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	claimed := make(map[int64]bool, len(t.tracks))
	matchedBoxes := make(map[int]bool, len(boxes))

	// Greedy assignment in input order.
	for i, box := range boxes {
		var best *Track
		bestDistance := math.Inf(1)
		for _, tr := range t.tracks {
			if claimed[tr.ID] {
				continue
			}
			// Strict less-than keeps the first-encountered minimum on ties.
			if d := Distance(box, tr.Box); d < t.cfg.MaxTrackDistance && d < bestDistance {
				bestDistance = d
				best = tr
			}
		}
		if best == nil {
			continue
		}

		claimed[best.ID] = true
		matchedBoxes[i] = true
		best.Box = box
		best.LastSeenFrame = frame

		if name := nameAt(names, i); name != recognition.Unknown && name != "" {
			best.Name = name
			best.Confidence = math.Min(best.Confidence+t.cfg.ConfidenceBoostFactor, 1.0)
		} else {
			best.Confidence = math.Max(best.Confidence-t.cfg.ConfidenceDecayFactor, 0.1)
		}
	}

	// New tracks for unmatched detections.
	for i, box := range boxes {
		if matchedBoxes[i] {
			continue
		}
		name := nameAt(names, i)
		confidence := 0.1
		if name != recognition.Unknown && name != "" {
			confidence = 0.8
		} else {
			name = recognition.Unknown
		}

		t.nextID++
		t.tracks = append(t.tracks, &Track{
			ID:            t.nextID,
			Box:           box,
			Name:          name,
			Confidence:    confidence,
			LastSeenFrame: frame,
			CreatedFrame:  frame,
		})
	}

	// Evict tracks unseen for longer than the timeout.
	kept := t.tracks[:0]
	for _, tr := range t.tracks {
		if !claimed[tr.ID] && frame-tr.LastSeenFrame > int64(t.cfg.TrackTimeout) {
			continue
		}
		kept = append(kept, tr)
	}
	t.tracks = kept
}

// IdentityFor returns the name and confidence of the track whose center lies
// within a small epsilon of the given box's center, or (Unknown, 0). It has
// no side effects: repeated calls without an intervening Update return the
// same result.
func (t *Tracker) IdentityFor(box Box) (string, float64) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for _, tr := range t.tracks {
		if Distance(box, tr.Box) < matchEpsilon {
			return tr.Name, tr.Confidence
		}
	}
	return recognition.Unknown, 0
}

// Tracks returns a snapshot of the live tracks in creation order.
func (t *Tracker) Tracks() []Track {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Track, len(t.tracks))
	for i, tr := range t.tracks {
		out[i] = *tr
	}
	return out
}

// Len returns the number of live tracks.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.tracks)
}

// Reset drops all tracks. Track ids keep increasing; they are never reused
// for the lifetime of the process.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tracks = nil
}

func nameAt(names []string, i int) string {
	if i < len(names) {
		return names[i]
	}
	return recognition.Unknown
}
