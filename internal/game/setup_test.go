package game

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"

	"github.com/BenhadineKaoutar/picorpixel/internal/store"
)

func newTestKV(t *testing.T) store.KV {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return store.NewRedisFromClient(rdb)
}

func newTestCache(t *testing.T, kv store.KV) *ChallengeCache {
	t.Helper()
	return NewChallengeCache(kv, NewImagePool(kv), 4, 48*time.Hour)
}

// hookKV wraps a KV to open race windows deterministically: beforeSetNX
// runs once right before the next SetNX, and failSetNX makes that many
// SetNX calls report a lost claim without writing.
type hookKV struct {
	store.KV
	beforeSetNX func()
	failSetNX   int
}

func (h *hookKV) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if h.beforeSetNX != nil {
		hook := h.beforeSetNX
		h.beforeSetNX = nil
		hook()
	}
	if h.failSetNX > 0 {
		h.failSetNX--
		return false, nil
	}
	return h.KV.SetNX(ctx, key, value, ttl)
}

func mustJSON(t *testing.T, v interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return raw
}

// fixedImages builds a deterministic challenge image set: even indices are
// photographs, odd indices AI-generated.
func fixedImages(n int) []GameImage {
	images := make([]GameImage, 0, n)
	for i := 0; i < n; i++ {
		images = append(images, GameImage{
			ID:            "img-" + string(rune('a'+i)),
			URL:           "https://images.test/" + string(rune('a'+i)),
			IsAIGenerated: i%2 == 1,
			Difficulty:    "medium",
			Explanation:   "test image",
		})
	}
	return images
}
