package store

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })
	r, err := NewRedis(fmt.Sprintf("redis://%s/0", mr.Addr()))
	if err != nil {
		t.Fatalf("store.NewRedis: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestGet_MissReturnsNilNil(t *testing.T) {
	r := newTestRedis(t)
	raw, err := r.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if raw != nil {
		t.Fatalf("Get miss = %q, want nil", raw)
	}
}

func TestSetNX_OnlyFirstWriterWins(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	won, err := r.SetNX(ctx, "claim", []byte("first"), time.Hour)
	if err != nil || !won {
		t.Fatalf("first SetNX: won=%v err=%v", won, err)
	}
	won, err = r.SetNX(ctx, "claim", []byte("second"), time.Hour)
	if err != nil {
		t.Fatalf("second SetNX: %v", err)
	}
	if won {
		t.Fatalf("second SetNX claimed an occupied key")
	}
	raw, err := r.Get(ctx, "claim")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(raw) != "first" {
		t.Fatalf("value = %q, want the first writer's", raw)
	}
}

func TestUpdate_AppliesFnToCurrentValue(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	err := r.Update(ctx, "counter", time.Hour, func(old []byte) ([]byte, error) {
		if old != nil {
			t.Fatalf("fn got %q on a missing key, want nil", old)
		}
		return []byte("1"), nil
	})
	if err != nil {
		t.Fatalf("Update create: %v", err)
	}

	err = r.Update(ctx, "counter", time.Hour, func(old []byte) ([]byte, error) {
		if string(old) != "1" {
			t.Fatalf("fn got %q, want 1", old)
		}
		return []byte("2"), nil
	})
	if err != nil {
		t.Fatalf("Update modify: %v", err)
	}
	raw, _ := r.Get(ctx, "counter")
	if string(raw) != "2" {
		t.Fatalf("value = %q, want 2", raw)
	}
}

func TestUpdate_FnErrorAbortsWrite(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	if err := r.Set(ctx, "k", []byte("keep"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	sentinel := errors.New("abort")
	err := r.Update(ctx, "k", time.Hour, func(old []byte) ([]byte, error) {
		return nil, sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Update err = %v, want sentinel", err)
	}
	raw, _ := r.Get(ctx, "k")
	if string(raw) != "keep" {
		t.Fatalf("aborted update changed value to %q", raw)
	}
}

func TestSortedSetOps(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	for member, score := range map[string]float64{"a": 10, "b": 30, "c": 20} {
		if err := r.ZAdd(ctx, "board", member, score); err != nil {
			t.Fatalf("ZAdd: %v", err)
		}
	}

	members, err := r.ZRevRangeWithScores(ctx, "board", 0, 1)
	if err != nil {
		t.Fatalf("ZRevRangeWithScores: %v", err)
	}
	if len(members) != 2 || members[0].Member != "b" || members[1].Member != "c" {
		t.Fatalf("top members = %+v", members)
	}

	rank, ok, err := r.ZRevRank(ctx, "board", "c")
	if err != nil || !ok || rank != 1 {
		t.Fatalf("ZRevRank(c) = %d ok=%v err=%v, want 1", rank, ok, err)
	}
	_, ok, err = r.ZRevRank(ctx, "board", "ghost")
	if err != nil || ok {
		t.Fatalf("ZRevRank(ghost) ok=%v err=%v, want absent", ok, err)
	}

	score, ok, err := r.ZScore(ctx, "board", "a")
	if err != nil || !ok || score != 10 {
		t.Fatalf("ZScore(a) = %v ok=%v err=%v", score, ok, err)
	}

	total, err := r.ZCard(ctx, "board")
	if err != nil || total != 3 {
		t.Fatalf("ZCard = %d err=%v, want 3", total, err)
	}

	after, err := r.ZIncrBy(ctx, "board", "a", 25)
	if err != nil || after != 35 {
		t.Fatalf("ZIncrBy = %v err=%v, want 35", after, err)
	}
}

func TestHashOps(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()

	n, err := r.HIncrBy(ctx, "h", "games", 1)
	if err != nil || n != 1 {
		t.Fatalf("HIncrBy = %d err=%v", n, err)
	}
	if err := r.HSet(ctx, "h", map[string]interface{}{"name": "alice"}); err != nil {
		t.Fatalf("HSet: %v", err)
	}
	fields, err := r.HGetAll(ctx, "h")
	if err != nil {
		t.Fatalf("HGetAll: %v", err)
	}
	if fields["games"] != "1" || fields["name"] != "alice" {
		t.Fatalf("fields = %+v", fields)
	}
}
