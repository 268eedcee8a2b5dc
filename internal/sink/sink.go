package sink

import (
	"context"
	"errors"
	"fmt"

	"github.com/maltedev/fixprice-scraper/internal/models"
)

// Sink receives every record the crawl produces.
type Sink interface {
	Emit(ctx context.Context, record *models.ProductRecord) error
	Close() error
}

// MultiSink fans a record out to every configured sink. A failing sink does
// not stop the others; the errors are joined.
type MultiSink struct {
	sinks []Sink
}

func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Emit(ctx context.Context, record *models.ProductRecord) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Emit(ctx, record); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("emit %s: %w", record.Key(), errors.Join(errs...))
	}
	return nil
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Len() int {
	return len(m.sinks)
}
