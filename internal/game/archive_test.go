package game

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryArchive_DuplicateSession(t *testing.T) {
	a := NewMemoryArchive()
	ctx := context.Background()
	res := &ArchivedResult{
		SessionID:   "s1",
		UserID:      "u1",
		Username:    "alice",
		ChallengeID: "daily-2026-08-30",
		Score:       75,
		StartedAt:   time.Now().Add(-time.Minute),
		CompletedAt: time.Now(),
	}
	id, err := a.InsertResult(ctx, res)
	if err != nil || id == 0 {
		t.Fatalf("InsertResult: id=%d err=%v", id, err)
	}
	if _, err := a.InsertResult(ctx, res); !errors.Is(err, ErrDuplicateResult) {
		t.Fatalf("repeated insert err = %v, want ErrDuplicateResult", err)
	}
}

func TestMemoryArchive_RecentResultsNewestFirst(t *testing.T) {
	a := NewMemoryArchive()
	ctx := context.Background()
	for i, sid := range []string{"s1", "s2", "s3"} {
		if _, err := a.InsertResult(ctx, &ArchivedResult{
			SessionID: sid,
			UserID:    "u1",
			Score:     50 + i*10,
		}); err != nil {
			t.Fatalf("InsertResult %s: %v", sid, err)
		}
	}
	got, err := a.RecentResults(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("RecentResults: %v", err)
	}
	if len(got) != 2 || got[0].SessionID != "s3" || got[1].SessionID != "s2" {
		t.Fatalf("RecentResults = %+v, want s3 then s2", got)
	}
}
