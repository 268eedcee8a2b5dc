package sink

import (
	"context"

	"github.com/maltedev/fixprice-scraper/internal/models"
)

type RecordStore interface {
	Upsert(ctx context.Context, record *models.ProductRecord) error
}

// PostgresSink keeps the latest capture per product in the records table.
type PostgresSink struct {
	store RecordStore
	close func()
}

// NewPostgresSink wraps store; closeFn, when set, runs on Close.
func NewPostgresSink(store RecordStore, closeFn func()) *PostgresSink {
	return &PostgresSink{store: store, close: closeFn}
}

func (s *PostgresSink) Emit(ctx context.Context, record *models.ProductRecord) error {
	return s.store.Upsert(ctx, record)
}

func (s *PostgresSink) Close() error {
	if s.close != nil {
		s.close()
	}
	return nil
}
