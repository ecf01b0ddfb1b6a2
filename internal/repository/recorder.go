package repository

import (
	"context"
	"fmt"

	"github.com/lewtec/dupclassifier/classifier"
	"github.com/lewtec/dupclassifier/internal/domain"
)

// ChangeRecorder is a classifier.Sink that stores every change event.
type ChangeRecorder struct {
	repo domain.ChangeRepository
}

func NewChangeRecorder(repo domain.ChangeRepository) *ChangeRecorder {
	return &ChangeRecorder{repo: repo}
}

func (r *ChangeRecorder) FrameChanged(ctx context.Context, ev *classifier.ChangeEvent) error {
	err := r.repo.Create(ctx, &domain.Change{
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
	})
	if err != nil {
		return fmt.Errorf("while recording change %s: %w", ev.ID, err)
	}
	return nil
}

var _ classifier.Sink = (*ChangeRecorder)(nil)
