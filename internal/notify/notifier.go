// Package notify publishes change events to NATS.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/lewtec/dupclassifier/classifier"
	"github.com/nats-io/nats.go"
)

// Message is the JSON payload published for each change.
type Message struct {
	ID         string    `json:"id"`
	Service    string    `json:"service"`
	Camera     string    `json:"camera"`
	Difference float64   `json:"difference"`
	Threshold  float64   `json:"threshold"`
	SHA256     string    `json:"sha256"`
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	MimeType   string    `json:"mime_type"`
	ObjectKey  string    `json:"object_key,omitempty"`
	DetectedAt time.Time `json:"detected_at"`
}

type Publisher interface {
	Publish(subj string, data []byte) error
}

// Notifier is a classifier.Sink that publishes a Message per change.
type Notifier struct {
	pub     Publisher
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

// Connect dials url and keeps reconnecting forever.
func Connect(url, subject string, logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.Default()
	}
	nc, err := nats.Connect(url,
		nats.Name("dupclassifier"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("while connecting to nats '%s': %w", url, err)
	}
	n := NewWithPublisher(nc, subject, logger)
	n.conn = nc
	return n, nil
}

func NewWithPublisher(pub Publisher, subject string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		pub:     pub,
		subject: subject,
		logger:  logger.With("component", "notifier", "subject", subject),
	}
}

// NewMessage builds the payload for ev. Frame data is never included.
func NewMessage(ev *classifier.ChangeEvent) Message {
	return Message{
		ID:         ev.ID.String(),
		Service:    ev.Service,
		Camera:     ev.Camera,
		Difference: ev.Difference,
		Threshold:  ev.Threshold,
		SHA256:     ev.SHA256,
		Width:      ev.Width,
		Height:     ev.Height,
		MimeType:   string(ev.MimeType),
		ObjectKey:  ev.ObjectKey,
		DetectedAt: ev.DetectedAt,
	}
}

func (n *Notifier) FrameChanged(ctx context.Context, ev *classifier.ChangeEvent) error {
	data, err := json.Marshal(NewMessage(ev))
	if err != nil {
		return fmt.Errorf("while encoding change %s: %w", ev.ID, err)
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return fmt.Errorf("while publishing change %s: %w", ev.ID, err)
	}
	n.logger.DebugContext(ctx, "change published", "id", ev.ID.String(), "camera", ev.Camera)
	return nil
}

// Close flushes and closes the connection opened by Connect.
func (n *Notifier) Close() {
	if n.conn == nil {
		return
	}
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
	}
}

var _ classifier.Sink = (*Notifier)(nil)
