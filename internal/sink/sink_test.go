package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/maltedev/fixprice-scraper/internal/models"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockRedisClient is a mock for Redis client
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) XAdd(ctx context.Context, args *redis.XAddArgs) *redis.StringCmd {
	mockArgs := m.Called(ctx, args)
	cmd := redis.NewStringCmd(ctx)
	if mockArgs.Get(0) != nil {
		cmd.SetErr(mockArgs.Error(0))
	} else {
		cmd.SetVal("1700000000000-0")
	}
	return cmd
}

func (m *MockRedisClient) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockRecordStore struct {
	mock.Mock
}

func (m *MockRecordStore) Upsert(ctx context.Context, record *models.ProductRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

type failingSink struct {
	err error
}

func (f failingSink) Emit(context.Context, *models.ProductRecord) error { return f.err }
func (f failingSink) Close() error                                       { return f.err }

func testRecord() *models.ProductRecord {
	record := models.NewProductRecord("https://fix-price.com/catalog/p-1", time.Unix(1700000000, 0))
	record.RPC = "123456"
	record.Title = "Шампунь <для волос>"
	record.PriceData = models.PriceData{Current: 149, Original: 199, SaleTag: "Discount 25%"}
	record.Stock = models.StockInfo{InStock: true, Count: 1}
	return record
}

func TestJSONLinesSink(t *testing.T) {
	var buf bytes.Buffer
	s := NewJSONLinesSink(&buf)

	require.NoError(t, s.Emit(context.Background(), testRecord()))
	require.NoError(t, s.Emit(context.Background(), testRecord()))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"title":"Шампунь <для волос>"`)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	for _, key := range []string{"timestamp", "RPC", "url", "title", "marketing_tags", "brand", "section", "price_data", "stock", "assets", "metadata", "variants"} {
		assert.Contains(t, decoded, key)
	}
	assert.NoError(t, s.Close())
}

func TestFileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.jsonl")

	for i := 0; i < 2; i++ {
		s, err := NewFileSink(path)
		require.NoError(t, err)
		require.NoError(t, s.Emit(context.Background(), testRecord()))
		require.NoError(t, s.Close())
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(data), "\n"))
}

func TestJSONLinesSinkCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	err := NewJSONLinesSink(&buf).Emit(ctx, testRecord())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, buf.Len())
}

func TestRedisSink_Emit(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes record to stream", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		s := NewRedisSink(mockRedis, "stream:fixprice_products", nil)

		mockRedis.On("XAdd", ctx, mock.MatchedBy(func(args *redis.XAddArgs) bool {
			values := args.Values.(map[string]interface{})
			var decoded models.ProductRecord
			if err := json.Unmarshal([]byte(values["data"].(string)), &decoded); err != nil {
				return false
			}
			return args.Stream == "stream:fixprice_products" &&
				values["event_type"] == EventProductCaptured &&
				values["rpc"] == "123456" &&
				values["event_id"] != "" &&
				values["timestamp"] == "2023-11-14T22:13:20Z" &&
				decoded.PriceData.SaleTag == "Discount 25%"
		})).Return(nil)

		require.NoError(t, s.Emit(ctx, testRecord()))
		mockRedis.AssertExpectations(t)
	})

	t.Run("returns publish error", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		s := NewRedisSink(mockRedis, "stream:fixprice_products", nil)

		mockRedis.On("XAdd", ctx, mock.Anything).Return(errors.New("redis down"))

		err := s.Emit(ctx, testRecord())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "redis down")
	})

	t.Run("close closes client", func(t *testing.T) {
		mockRedis := new(MockRedisClient)
		mockRedis.On("Close").Return(nil)

		require.NoError(t, NewRedisSink(mockRedis, "s", nil).Close())
		mockRedis.AssertExpectations(t)
	})
}

func TestPostgresSink(t *testing.T) {
	ctx := context.Background()
	store := new(MockRecordStore)
	record := testRecord()

	store.On("Upsert", ctx, record).Return(nil).Once()

	closed := false
	s := NewPostgresSink(store, func() { closed = true })

	require.NoError(t, s.Emit(ctx, record))
	require.NoError(t, s.Close())
	assert.True(t, closed)
	store.AssertExpectations(t)
}

func TestMultiSink(t *testing.T) {
	ctx := context.Background()
	first := NewMemorySink()
	second := NewMemorySink()

	m := NewMultiSink(first, failingSink{err: errors.New("broken")}, second)
	assert.Equal(t, 3, m.Len())

	err := m.Emit(ctx, testRecord())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")
	assert.Contains(t, err.Error(), "123456")

	assert.Len(t, first.Records(), 1)
	assert.Len(t, second.Records(), 1)

	assert.Error(t, m.Close())
	assert.NoError(t, NewMultiSink(first, second).Close())
}
