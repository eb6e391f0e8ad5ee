package recognition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// EmbedClient talks to the external detection/embedding server. The model
// behind it is an opaque collaborator: it takes an image and returns face
// boxes with embeddings.
type EmbedClient struct {
	baseURL string
	client  *http.Client
}

// NewEmbedClient creates a client for the embedding server.
func NewEmbedClient(baseURL string) *EmbedClient {
	return &EmbedClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// FaceDetection is one detected face in a frame.
type FaceDetection struct {
	FaceIndex int       `json:"face_index"`
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	BBox      []float64 `json:"bbox"` // [x1, y1, x2, y2]
	DetScore  float64   `json:"det_score"`
}

// faceResponse is the response from the face endpoint.
type faceResponse struct {
	FacesCount int             `json:"faces_count"`
	Faces      []FaceDetection `json:"faces"`
	Model      string          `json:"model"`
}

// postMultipartImage posts image data as a multipart form to the endpoint.
func (c *EmbedClient) postMultipartImage(ctx context.Context, endpoint string, imageData []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", "image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to create form file: %w", err)
	}

	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("failed to write image data: %w", err)
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

// DetectFaces detects faces in a full frame and returns their boxes and
// embeddings.
func (c *EmbedClient) DetectFaces(ctx context.Context, frameData []byte) ([]FaceDetection, error) {
	body, err := c.postMultipartImage(ctx, "/embed/face", frameData)
	if err != nil {
		return nil, err
	}

	var resp faceResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	return resp.Faces, nil
}

// EmbedFace computes the embedding for a single face crop. When the crop
// contains multiple detections, the one with the highest detection score
// wins.
func (c *EmbedClient) EmbedFace(ctx context.Context, cropData []byte) ([]float32, error) {
	faces, err := c.DetectFaces(ctx, cropData)
	if err != nil {
		return nil, err
	}
	if len(faces) == 0 {
		return nil, errors.New("no face found in crop")
	}

	best := faces[0]
	for _, f := range faces[1:] {
		if f.DetScore > best.DetScore {
			best = f
		}
	}
	if len(best.Embedding) == 0 {
		return nil, errors.New("empty embedding returned")
	}
	return best.Embedding, nil
}

// Ping checks that the embedding server is reachable. Used at startup so the
// system fails fast instead of running without a recognition backend.
func (c *EmbedClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding server unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("embedding server returned status %d", resp.StatusCode)
	}
	return nil
}
