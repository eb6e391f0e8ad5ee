package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/HermYeh/face-attendance/internal/recognition"
	"github.com/HermYeh/face-attendance/internal/tracker"
)

// validBox reports whether a face box lies fully inside the frame and meets
// the minimum face size. Degenerate boxes never reach the tracker.
func validBox(box tracker.Box, frameWidth, frameHeight, minFaceSize int) bool {
	if box.Width < minFaceSize || box.Height < minFaceSize {
		return false
	}
	if box.X < 0 || box.Y < 0 {
		return false
	}
	return box.X+box.Width <= frameWidth && box.Y+box.Height <= frameHeight
}

// boxFromDetection converts a detector bbox ([x1, y1, x2, y2]) to a box.
func boxFromDetection(d recognition.FaceDetection) (tracker.Box, bool) {
	if len(d.BBox) != 4 {
		return tracker.Box{}, false
	}
	x1, y1, x2, y2 := int(d.BBox[0]), int(d.BBox[1]), int(d.BBox[2]), int(d.BBox[3])
	return tracker.Box{X: x1, Y: y1, Width: x2 - x1, Height: y2 - y1}, true
}

// cropImage extracts a face region from the frame into its own image.
func cropImage(img image.Image, box tracker.Box) *image.RGBA {
	rect := image.Rect(box.X, box.Y, box.X+box.Width, box.Y+box.Height)

	crop := image.NewRGBA(image.Rect(0, 0, box.Width, box.Height))
	draw.Copy(crop, image.Point{}, img, rect, draw.Src, nil)
	return crop
}

// cropJPEG extracts a face region from the frame and encodes it as JPEG.
func cropJPEG(img image.Image, box tracker.Box) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, cropImage(img, box), &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode crop: %w", err)
	}
	return buf.Bytes(), nil
}
