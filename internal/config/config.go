package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the process-wide configuration, constructed once at startup and
// passed into the components that need it. No component reads environment
// variables or files on its own.
type Config struct {
	Camera      CameraConfig      `yaml:"camera"`
	Tracking    TrackingConfig    `yaml:"tracking"`
	Recognition RecognitionConfig `yaml:"recognition"`
	Attendance  AttendanceConfig  `yaml:"attendance"`
	Web         WebConfig         `yaml:"web"`
}

type CameraConfig struct {
	// SnapshotURL is the camera's HTTP snapshot endpoint.
	SnapshotURL string `yaml:"snapshot_url"`
	FrameWidth  int    `yaml:"frame_width"`
	FrameHeight int    `yaml:"frame_height"`
	TargetFPS   int    `yaml:"target_fps"`
}

type TrackingConfig struct {
	// MaxTrackDistance is the maximum center-to-center pixel distance at
	// which a detection can still claim an existing track.
	MaxTrackDistance float64 `yaml:"max_track_distance"`
	// TrackTimeout is the number of frames a track may go unseen before
	// it is evicted.
	TrackTimeout          int     `yaml:"track_timeout"`
	ConfidenceBoostFactor float64 `yaml:"confidence_boost_factor"`
	ConfidenceDecayFactor float64 `yaml:"confidence_decay_factor"`
}

type RecognitionConfig struct {
	EmbeddingURL string `yaml:"embedding_url"` // external embed/detect server
	// FaceDetectionInterval runs detection every Nth capture tick.
	FaceDetectionInterval int `yaml:"face_detection_interval"`
	// RecognitionInterval runs identity matching every Mth capture tick.
	RecognitionInterval  int     `yaml:"recognition_interval"`
	RecognitionThreshold float64 `yaml:"recognition_threshold"`
	EmbeddingCacheSize   int     `yaml:"embedding_cache_size"`
	MinFaceSize          int     `yaml:"min_face_size"`
	EmbeddingStorePath   string  `yaml:"embedding_store_path"`
	DatasetDir           string  `yaml:"dataset_dir"`
}

type AttendanceConfig struct {
	DatabasePath string `yaml:"database_path"`
	EvidenceDir  string `yaml:"evidence_dir"`
	// CooldownSeconds is the per-name minimum interval between repeated
	// attendance-triggering recognitions.
	CooldownSeconds float64 `yaml:"cooldown_seconds"`
}

type WebConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a positive float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f > 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Load builds the configuration from environment variables, falling back to
// the defaults the system was tuned with.
func Load() *Config {
	return &Config{
		Camera: CameraConfig{
			SnapshotURL: envString("CAMERA_URL", "http://localhost:8081/snapshot"),
			FrameWidth:  envInt("FRAME_WIDTH", 640),
			FrameHeight: envInt("FRAME_HEIGHT", 480),
			TargetFPS:   envInt("TARGET_FPS", 10),
		},
		Tracking: TrackingConfig{
			MaxTrackDistance:      envFloat("MAX_TRACK_DISTANCE", 50),
			TrackTimeout:          envInt("TRACK_TIMEOUT", 30),
			ConfidenceBoostFactor: envFloat("CONFIDENCE_BOOST_FACTOR", 0.1),
			ConfidenceDecayFactor: envFloat("CONFIDENCE_DECAY_FACTOR", 0.05),
		},
		Recognition: RecognitionConfig{
			EmbeddingURL:          envString("EMBEDDING_URL", "http://localhost:8000"),
			FaceDetectionInterval: envInt("FACE_DETECTION_INTERVAL", 5),
			RecognitionInterval:   envInt("RECOGNITION_INTERVAL", 3),
			RecognitionThreshold:  envFloat("RECOGNITION_THRESHOLD", 0.7),
			EmbeddingCacheSize:    envInt("EMBEDDING_CACHE_SIZE", 100),
			MinFaceSize:           envInt("MIN_FACE_SIZE", 20),
			EmbeddingStorePath:    envString("EMBEDDING_STORE_PATH", "trainer/embeddings.gob"),
			DatasetDir:            envString("DATASET_DIR", "dataset"),
		},
		Attendance: AttendanceConfig{
			DatabasePath:    envString("ATTENDANCE_DB", "attendance.db"),
			EvidenceDir:     envString("EVIDENCE_DIR", "CheckinPhoto"),
			CooldownSeconds: envFloat("RECOGNITION_COOLDOWN", 1),
		},
		Web: WebConfig{
			Host: envString("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
	}
}

// LoadFile loads the configuration from environment variables and overlays
// values from an optional YAML file. Keys absent from the file keep their
// env/default values. A missing file is not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Load()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}
