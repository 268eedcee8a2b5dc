package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/maltedev/fixprice-scraper/internal/models"
)

// JSONLinesSink writes one JSON object per line.
type JSONLinesSink struct {
	mu     sync.Mutex
	enc    *json.Encoder
	closer io.Closer
}

func NewJSONLinesSink(w io.Writer) *JSONLinesSink {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &JSONLinesSink{enc: enc}
}

// NewFileSink appends to path, creating it when needed.
func NewFileSink(path string) (*JSONLinesSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open sink file: %w", err)
	}
	s := NewJSONLinesSink(f)
	s.closer = f
	return s, nil
}

func (s *JSONLinesSink) Emit(ctx context.Context, record *models.ProductRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.enc.Encode(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

func (s *JSONLinesSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}
