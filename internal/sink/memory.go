package sink

import (
	"context"
	"sync"

	"github.com/maltedev/fixprice-scraper/internal/models"
)

// MemorySink keeps records in emit order. Crawl jobs use it to expose their
// results over the API.
type MemorySink struct {
	mu      sync.RWMutex
	records []*models.ProductRecord
}

func NewMemorySink() *MemorySink {
	return &MemorySink{records: make([]*models.ProductRecord, 0)}
}

func (s *MemorySink) Emit(_ context.Context, record *models.ProductRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *MemorySink) Records() []*models.ProductRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.ProductRecord, len(s.records))
	copy(out, s.records)
	return out
}

func (s *MemorySink) Close() error {
	return nil
}
