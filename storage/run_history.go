package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"gumtree-scraper/models"
)

const runHistoryKey = "gumtree:runs"

// RedisHistory keeps the last size run summaries in a Redis list.
type RedisHistory struct {
	client *redis.Client
	size   int
}

// NewRedisHistory connects to addr and checks the server responds.
func NewRedisHistory(ctx context.Context, addr string, size int) (*RedisHistory, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", addr, err)
	}
	return &RedisHistory{client: client, size: max(size, 1)}, nil
}

func (h *RedisHistory) Record(ctx context.Context, s models.RunSummary) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("redis: encode run: %w", err)
	}
	_, err = h.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.LPush(ctx, runHistoryKey, b)
		pipe.LTrim(ctx, runHistoryKey, 0, int64(h.size-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: record run: %w", err)
	}
	return nil
}

// Latest returns the newest summary, or nil when no run was recorded.
func (h *RedisHistory) Latest(ctx context.Context) (*models.RunSummary, error) {
	raw, err := h.client.LIndex(ctx, runHistoryKey, 0).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis: latest run: %w", err)
	}
	var s models.RunSummary
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("redis: decode run: %w", err)
	}
	return &s, nil
}

func (h *RedisHistory) Recent(ctx context.Context, n int) ([]models.RunSummary, error) {
	if n <= 0 {
		n = h.size
	}
	raws, err := h.client.LRange(ctx, runHistoryKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: recent runs: %w", err)
	}
	out := make([]models.RunSummary, 0, len(raws))
	for _, raw := range raws {
		var s models.RunSummary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, fmt.Errorf("redis: decode run: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (h *RedisHistory) Close() error {
	return h.client.Close()
}

// MemoryHistory is the in-process RunHistory used when no Redis address is configured.
type MemoryHistory struct {
	mu   sync.RWMutex
	runs []models.RunSummary // newest first
	size int
}

func NewMemoryHistory(size int) *MemoryHistory {
	return &MemoryHistory{size: max(size, 1)}
}

func (h *MemoryHistory) Record(_ context.Context, s models.RunSummary) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runs = append([]models.RunSummary{s}, h.runs...)
	if len(h.runs) > h.size {
		h.runs = h.runs[:h.size]
	}
	return nil
}

func (h *MemoryHistory) Latest(_ context.Context) (*models.RunSummary, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if len(h.runs) == 0 {
		return nil, nil
	}
	s := h.runs[0]
	return &s, nil
}

func (h *MemoryHistory) Recent(_ context.Context, n int) ([]models.RunSummary, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if n <= 0 || n > len(h.runs) {
		n = len(h.runs)
	}
	out := make([]models.RunSummary, n)
	copy(out, h.runs[:n])
	return out, nil
}
