package classifier

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ChangeEvent describes a frame that was reported as different and became
// the new reference.
type ChangeEvent struct {
	ID         uuid.UUID
	Service    string
	Camera     string
	Difference float64
	Threshold  float64
	SHA256     string
	Width      int
	Height     int
	// Data holds the frame as received, or PNG when it arrived decoded.
	Data       []byte
	MimeType   MimeType
	DetectedAt time.Time
	// ObjectKey is set by sinks that store the frame elsewhere, so later
	// sinks can refer to it.
	ObjectKey string
}

// Sink receives change events. Sinks run in order, after the verdict has
// been committed.
type Sink interface {
	FrameChanged(ctx context.Context, ev *ChangeEvent) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, ev *ChangeEvent) error

func (f SinkFunc) FrameChanged(ctx context.Context, ev *ChangeEvent) error {
	return f(ctx, ev)
}
