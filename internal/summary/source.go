package summary

import (
	"context"
	"time"

	"hostelmon/internal/complaint"

	"go.uber.org/zap"
)

// PendingLister returns the complaints still awaiting resolution.
type PendingLister interface {
	Pending(ctx context.Context) ([]complaint.Complaint, error)
}

// Source renders the current pending complaints on demand.
type Source struct {
	lister PendingLister
	log    *zap.Logger
	now    func() time.Time
}

// NewSource returns a Source reading from lister.
func NewSource(lister PendingLister, log *zap.Logger) *Source {
	return &Source{lister: lister, log: log, now: time.Now}
}

// PendingPNG returns the summary image, or nil when nothing is pending.
func (s *Source) PendingPNG(ctx context.Context) ([]byte, error) {
	pending, err := s.lister.Pending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		return nil, nil
	}

	png, err := RenderTable(Rows(pending), s.now())
	if err != nil {
		return nil, err
	}
	s.log.Info("Rendered pending summary", zap.Int("complaints", len(pending)), zap.Int("bytes", len(png)))
	return png, nil
}
