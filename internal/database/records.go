package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/maltedev/fixprice-scraper/internal/models"
)

var ErrRecordNotFound = errors.New("record not found")

const schemaSQL = `
CREATE TABLE IF NOT EXISTS product_records (
	record_key     TEXT PRIMARY KEY,
	rpc            TEXT NOT NULL DEFAULT '',
	url            TEXT NOT NULL,
	title          TEXT NOT NULL,
	brand          TEXT NOT NULL DEFAULT '',
	current_price  DOUBLE PRECISION NOT NULL,
	original_price DOUBLE PRECISION NOT NULL,
	sale_tag       TEXT NOT NULL,
	in_stock       BOOLEAN NOT NULL,
	captured_at    TIMESTAMPTZ NOT NULL,
	payload        JSONB NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_product_records_brand ON product_records (brand);
`

const upsertSQL = `
INSERT INTO product_records (
	record_key, rpc, url, title, brand, current_price, original_price,
	sale_tag, in_stock, captured_at, payload
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (record_key) DO UPDATE SET
	rpc = EXCLUDED.rpc,
	url = EXCLUDED.url,
	title = EXCLUDED.title,
	brand = EXCLUDED.brand,
	current_price = EXCLUDED.current_price,
	original_price = EXCLUDED.original_price,
	sale_tag = EXCLUDED.sale_tag,
	in_stock = EXCLUDED.in_stock,
	captured_at = EXCLUDED.captured_at,
	payload = EXCLUDED.payload,
	updated_at = NOW()
`

// RecordRepository stores the latest capture of every product, keyed by RPC
// or by URL when the page had no product code.
type RecordRepository struct {
	db Querier
}

func NewRecordRepository(db Querier) *RecordRepository {
	return &RecordRepository{db: db}
}

func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func (r *RecordRepository) Upsert(ctx context.Context, record *models.ProductRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	_, err = r.db.Exec(ctx, upsertSQL,
		record.Key(),
		record.RPC,
		record.URL,
		record.Title,
		record.Brand,
		record.PriceData.Current,
		record.PriceData.Original,
		record.PriceData.SaleTag,
		record.Stock.InStock,
		time.Unix(record.Timestamp, 0).UTC(),
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", record.Key(), err)
	}

	return nil
}

func (r *RecordRepository) Get(ctx context.Context, key string) (*models.ProductRecord, error) {
	var payload []byte
	err := r.db.QueryRow(ctx, `SELECT payload FROM product_records WHERE record_key = $1`, key).Scan(&payload)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	var record models.ProductRecord
	if err := json.Unmarshal(payload, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}

	return &record, nil
}
