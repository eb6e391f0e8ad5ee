// Package evidence persists snapshot photos of attendance events. Writes are
// asynchronous so the capture loop never blocks on disk.
package evidence

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Event types used as the top-level directory under the evidence root.
const (
	EventCheckIn  = "checkin"
	EventCheckOut = "checkout"
)

// Photo is one snapshot to persist.
type Photo struct {
	Event string
	Name  string
	Taken time.Time
	JPEG  []byte
}

// Writer saves snapshots under <root>/<event>/<date>/<name>_<time>.jpg in the
// background. A full queue drops the photo rather than stall the caller;
// evidence is best effort.
type Writer struct {
	root  string
	queue chan Photo
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// NewWriter starts a writer rooted at dir.
func NewWriter(dir string) *Writer {
	w := &Writer{
		root:  dir,
		queue: make(chan Photo, 64),
	}
	w.wg.Add(1)
	go w.run()
	return w
}

// Save queues a snapshot for writing. Returns false if the queue is full and
// the photo was dropped.
func (w *Writer) Save(p Photo) bool {
	select {
	case w.queue <- p:
		return true
	default:
		log.Printf("evidence queue full, dropping %s photo for %s", p.Event, p.Name)
		return false
	}
}

// Close drains the queue and stops the background writer.
func (w *Writer) Close() {
	w.closeOnce.Do(func() { close(w.queue) })
	w.wg.Wait()
}

func (w *Writer) run() {
	defer w.wg.Done()
	for p := range w.queue {
		if err := w.write(p); err != nil {
			log.Printf("failed to save %s photo for %s: %v", p.Event, p.Name, err)
		}
	}
}

func (w *Writer) write(p Photo) error {
	dir := filepath.Join(w.root, p.Event, p.Taken.Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create evidence dir: %w", err)
	}

	filename := fmt.Sprintf("%s_%s.jpg", SanitizeName(p.Name), p.Taken.Format("15-04-05"))
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, p.JPEG, 0o644); err != nil {
		return fmt.Errorf("failed to write evidence photo: %w", err)
	}
	return nil
}

// SanitizeName turns a person's name into a safe filename component: strips
// diacritics (e.g. "Jiří" -> "Jiri") and replaces anything outside
// [A-Za-z0-9_-] with underscores.
func SanitizeName(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, _ := transform.String(t, name)

	var b strings.Builder
	b.Grow(len(plain))
	for _, r := range plain {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}
