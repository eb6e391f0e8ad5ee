// Package capture runs the periodic camera tick that glues detection,
// tracking, recognition and the attendance ledger together.
package capture

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"time"

	"github.com/HermYeh/face-attendance/internal/recognition"
	"github.com/HermYeh/face-attendance/internal/tracker"
)

// Frame is one captured camera frame: the decoded image plus its original
// JPEG bytes so downstream consumers do not re-encode.
type Frame struct {
	Image image.Image
	JPEG  []byte
}

// Bounds returns the frame dimensions.
func (f *Frame) Bounds() (width, height int) {
	b := f.Image.Bounds()
	return b.Dx(), b.Dy()
}

// FrameSource produces frames. ReadFrame may block on device or network I/O.
type FrameSource interface {
	ReadFrame(ctx context.Context) (*Frame, error)
	Close() error
}

// Detector finds face boxes in a full frame. The embedding server client
// satisfies this.
type Detector interface {
	DetectFaces(ctx context.Context, frameJPEG []byte) ([]recognition.FaceDetection, error)
}

// Renderer displays a processed frame with its track overlays. Rendering is
// presentation only; the loop never depends on its outcome.
type Renderer interface {
	Render(frame *Frame, tracks []tracker.Track, paused bool)
}

// Enroller receives cropped face images while an enrollment session is
// collecting photos for a new identity. The trainer satisfies this.
type Enroller interface {
	EnrollmentActive() bool
	CaptureFace(face image.Image)
}

// SnapshotSource pulls JPEG snapshots from a camera's HTTP endpoint.
type SnapshotSource struct {
	url    string
	client *http.Client
}

// NewSnapshotSource creates a frame source for a snapshot URL.
func NewSnapshotSource(url string) *SnapshotSource {
	return &SnapshotSource{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// ReadFrame fetches and decodes one snapshot.
func (s *SnapshotSource) ReadFrame(ctx context.Context) (*Frame, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("camera returned status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return &Frame{Image: img, JPEG: data}, nil
}

// Close is a no-op; snapshot connections are per-request.
func (s *SnapshotSource) Close() error { return nil }
