package tracker

import (
	"testing"

	"github.com/HermYeh/face-attendance/internal/config"
	"github.com/HermYeh/face-attendance/internal/recognition"
)

func testConfig() config.TrackingConfig {
	return config.TrackingConfig{
		MaxTrackDistance:      50,
		TrackTimeout:          30,
		ConfidenceBoostFactor: 0.1,
		ConfidenceDecayFactor: 0.05,
	}
}

func TestTracker_NewTrackConfidence(t *testing.T) {
	tr := New(testConfig())

	tr.Update(1, []Box{
		{X: 10, Y: 10, Width: 50, Height: 50},
		{X: 300, Y: 10, Width: 50, Height: 50},
	}, []string{"Alice", recognition.Unknown})

	tracks := tr.Tracks()
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}

	if tracks[0].Name != "Alice" || tracks[0].Confidence != 0.8 {
		t.Errorf("expected recognized track ('Alice', 0.8), got (%s, %f)", tracks[0].Name, tracks[0].Confidence)
	}
	if tracks[1].Name != recognition.Unknown || tracks[1].Confidence != 0.1 {
		t.Errorf("expected unknown track (Unknown, 0.1), got (%s, %f)", tracks[1].Name, tracks[1].Confidence)
	}
}

func TestTracker_BoostOnRecognition(t *testing.T) {
	tr := New(testConfig())

	tr.Update(1, []Box{{X: 10, Y: 10, Width: 50, Height: 50}}, []string{"Alice"})
	id := tr.Tracks()[0].ID

	// Nearby box on the next tick, recognized again.
	tr.Update(2, []Box{{X: 12, Y: 11, Width: 50, Height: 50}}, []string{"Alice"})

	tracks := tr.Tracks()
	if len(tracks) != 1 {
		t.Fatalf("expected 1 track, got %d", len(tracks))
	}
	if tracks[0].ID != id {
		t.Errorf("expected track %d to persist, got new track %d", id, tracks[0].ID)
	}
	if diff := tracks[0].Confidence - 0.9; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected confidence 0.9 after boost, got %f", tracks[0].Confidence)
	}
}

func TestTracker_ConfidenceClamped(t *testing.T) {
	tr := New(testConfig())
	box := Box{X: 10, Y: 10, Width: 50, Height: 50}

	// Many recognized ticks: confidence caps at 1.0.
	for frame := int64(1); frame <= 10; frame++ {
		tr.Update(frame, []Box{box}, []string{"Alice"})
	}
	if c := tr.Tracks()[0].Confidence; c > 1.0 {
		t.Errorf("expected confidence capped at 1.0, got %f", c)
	}

	// Many unrecognized ticks: confidence floors at 0.1, name is kept.
	for frame := int64(11); frame <= 40; frame++ {
		tr.Update(frame, []Box{box}, []string{recognition.Unknown})
	}
	track := tr.Tracks()[0]
	if track.Confidence < 0.1-1e-9 {
		t.Errorf("expected confidence floored at 0.1, got %f", track.Confidence)
	}
	if track.Name != "Alice" {
		t.Errorf("expected track to keep its name through decay, got '%s'", track.Name)
	}
}

func TestTracker_TooFarStartsNewTrack(t *testing.T) {
	tr := New(testConfig())

	tr.Update(1, []Box{{X: 10, Y: 10, Width: 50, Height: 50}}, []string{"Alice"})
	// Center jumps by more than the max distance: new track, old one stays.
	tr.Update(2, []Box{{X: 200, Y: 200, Width: 50, Height: 50}}, []string{"Bob"})

	tracks := tr.Tracks()
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}
	if tracks[0].ID == tracks[1].ID {
		t.Error("expected distinct track ids")
	}
}

func TestTracker_GreedyInputOrder(t *testing.T) {
	tr := New(testConfig())

	tr.Update(1, []Box{{X: 100, Y: 100, Width: 40, Height: 40}}, []string{"Alice"})

	// Two detections both in range of the single track. The first one in
	// input order claims it even though the second is closer; the second
	// starts a fresh track.
	tr.Update(2, []Box{
		{X: 120, Y: 100, Width: 40, Height: 40},
		{X: 102, Y: 100, Width: 40, Height: 40},
	}, []string{recognition.Unknown, recognition.Unknown})

	tracks := tr.Tracks()
	if len(tracks) != 2 {
		t.Fatalf("expected 2 tracks, got %d", len(tracks))
	}
	if tracks[0].Name != "Alice" {
		t.Errorf("expected first detection to claim the existing track, got '%s'", tracks[0].Name)
	}
	if tracks[0].Box.X != 120 {
		t.Errorf("expected claimed track to carry the first detection's box, got x=%d", tracks[0].Box.X)
	}
	if tracks[1].CreatedFrame != 2 {
		t.Errorf("expected second detection to start a new track at frame 2, got frame %d", tracks[1].CreatedFrame)
	}
}

func TestTracker_EvictionAfterTimeout(t *testing.T) {
	tr := New(testConfig())

	tr.Update(1, []Box{{X: 10, Y: 10, Width: 50, Height: 50}}, []string{"Alice"})
	tr.Update(2, []Box{{X: 12, Y: 11, Width: 50, Height: 50}}, []string{"Alice"})

	// Track survives every tick up to and including frame 32
	// (32 - 2 = 30, not strictly greater than the timeout).
	for frame := int64(3); frame <= 32; frame++ {
		tr.Update(frame, nil, nil)
		if tr.Len() != 1 {
			t.Fatalf("track evicted too early at frame %d", frame)
		}
	}

	// Frame 33: 33 - 2 = 31 > 30, evicted.
	tr.Update(33, nil, nil)
	if tr.Len() != 0 {
		t.Fatalf("expected track evicted at frame 33, have %d tracks", tr.Len())
	}
}

func TestTracker_IdentityFor(t *testing.T) {
	tr := New(testConfig())

	tr.Update(1, []Box{{X: 10, Y: 10, Width: 50, Height: 50}}, []string{"Alice"})

	// Same center within epsilon.
	name, conf := tr.IdentityFor(Box{X: 14, Y: 12, Width: 50, Height: 50})
	if name != "Alice" || conf != 0.8 {
		t.Errorf("expected ('Alice', 0.8), got ('%s', %f)", name, conf)
	}

	// Read-only: asking twice gives the same answer.
	name2, conf2 := tr.IdentityFor(Box{X: 14, Y: 12, Width: 50, Height: 50})
	if name2 != name || conf2 != conf {
		t.Errorf("expected identical repeated result, got ('%s', %f) then ('%s', %f)", name, conf, name2, conf2)
	}

	// Center outside epsilon.
	name, conf = tr.IdentityFor(Box{X: 40, Y: 40, Width: 50, Height: 50})
	if name != recognition.Unknown || conf != 0 {
		t.Errorf("expected (Unknown, 0) for unmatched box, got ('%s', %f)", name, conf)
	}
}

func TestTracker_IDsMonotonic(t *testing.T) {
	tr := New(testConfig())

	tr.Update(1, []Box{{X: 10, Y: 10, Width: 40, Height: 40}}, []string{"Alice"})
	first := tr.Tracks()[0].ID

	// Let the track die, then reset for good measure.
	tr.Update(100, nil, nil)
	tr.Reset()

	tr.Update(101, []Box{{X: 10, Y: 10, Width: 40, Height: 40}}, []string{"Bob"})
	second := tr.Tracks()[0].ID

	if second <= first {
		t.Errorf("expected strictly increasing track ids, got %d then %d", first, second)
	}
}

func TestTracker_FewerNamesThanBoxes(t *testing.T) {
	tr := New(testConfig())

	// Detection ran but recognition produced no names this tick.
	tr.Update(1, []Box{
		{X: 10, Y: 10, Width: 40, Height: 40},
		{X: 300, Y: 10, Width: 40, Height: 40},
	}, nil)

	for _, track := range tr.Tracks() {
		if track.Name != recognition.Unknown {
			t.Errorf("expected Unknown for unnamed detection, got '%s'", track.Name)
		}
	}
}
