// package media acquires camera frames and keeps the most recent one
// available to readers.
package media

import (
	"context"
	"image"
	"sync"
	"time"
)

// Stream yields decoded frames from an opened camera.
type Stream interface {
	// Next blocks until the next frame is available.
	Next(ctx context.Context) (image.Image, error)
	// Close releases the device. It is safe to call more than once.
	Close() error
}

// Camera opens a frame [Stream].
type Camera interface {
	Open(ctx context.Context) (Stream, error)
}

// Frame is a decoded image stamped with its arrival.
type Frame struct {
	Image image.Image
	At    time.Time
	Seq   uint64
}

// Sink holds the latest frame delivered by a stream. It is the single
// destination a stream is bound to.
type Sink struct {
	mu    sync.RWMutex
	frame Frame
	now   func() time.Time
}

func NewSink() *Sink {
	return &Sink{now: time.Now}
}

// Put replaces the held frame.
func (s *Sink) Put(img image.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = Frame{Image: img, At: s.now(), Seq: s.frame.Seq + 1}
}

// Latest returns the held frame, or false when nothing has arrived yet.
func (s *Sink) Latest() (Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame, s.frame.Image != nil
}
