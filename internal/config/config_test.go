package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("MAX_TRACK_DISTANCE")
	os.Unsetenv("TRACK_TIMEOUT")
	os.Unsetenv("EMBEDDING_CACHE_SIZE")

	cfg := Load()

	if cfg.Tracking.MaxTrackDistance != 50 {
		t.Errorf("expected default max track distance 50, got %f", cfg.Tracking.MaxTrackDistance)
	}

	if cfg.Tracking.TrackTimeout != 30 {
		t.Errorf("expected default track timeout 30, got %d", cfg.Tracking.TrackTimeout)
	}

	if cfg.Recognition.EmbeddingCacheSize != 100 {
		t.Errorf("expected default cache size 100, got %d", cfg.Recognition.EmbeddingCacheSize)
	}

	if cfg.Recognition.RecognitionThreshold != 0.7 {
		t.Errorf("expected default recognition threshold 0.7, got %f", cfg.Recognition.RecognitionThreshold)
	}

	if cfg.Camera.TargetFPS != 10 {
		t.Errorf("expected default target fps 10, got %d", cfg.Camera.TargetFPS)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRACK_TIMEOUT", "60")
	t.Setenv("CONFIDENCE_BOOST_FACTOR", "0.2")
	t.Setenv("ATTENDANCE_DB", "/tmp/test.db")

	cfg := Load()

	if cfg.Tracking.TrackTimeout != 60 {
		t.Errorf("expected track timeout 60, got %d", cfg.Tracking.TrackTimeout)
	}

	if cfg.Tracking.ConfidenceBoostFactor != 0.2 {
		t.Errorf("expected boost factor 0.2, got %f", cfg.Tracking.ConfidenceBoostFactor)
	}

	if cfg.Attendance.DatabasePath != "/tmp/test.db" {
		t.Errorf("expected database path '/tmp/test.db', got '%s'", cfg.Attendance.DatabasePath)
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("TRACK_TIMEOUT", "not-a-number")
	t.Setenv("MAX_TRACK_DISTANCE", "-5")

	cfg := Load()

	if cfg.Tracking.TrackTimeout != 30 {
		t.Errorf("expected fallback track timeout 30, got %d", cfg.Tracking.TrackTimeout)
	}

	if cfg.Tracking.MaxTrackDistance != 50 {
		t.Errorf("expected fallback max track distance 50, got %f", cfg.Tracking.MaxTrackDistance)
	}
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Recognition.FaceDetectionInterval != 5 {
		t.Errorf("expected default detection interval 5, got %d", cfg.Recognition.FaceDetectionInterval)
	}
}

func TestLoadFile_Overlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "tracking:\n  track_timeout: 45\nattendance:\n  evidence_dir: /data/photos\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Tracking.TrackTimeout != 45 {
		t.Errorf("expected track timeout 45 from file, got %d", cfg.Tracking.TrackTimeout)
	}

	if cfg.Attendance.EvidenceDir != "/data/photos" {
		t.Errorf("expected evidence dir '/data/photos', got '%s'", cfg.Attendance.EvidenceDir)
	}

	// Keys absent from the file keep their defaults.
	if cfg.Tracking.MaxTrackDistance != 50 {
		t.Errorf("expected max track distance 50, got %f", cfg.Tracking.MaxTrackDistance)
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("tracking: ["), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFile(path); err == nil {
		t.Error("expected error for malformed config file")
	}
}
