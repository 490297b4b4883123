package cache

import (
	"context"
	"testing"
	"time"
)

func TestPutAndGetPendingProposal(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCacheWithClock(t)

	c.PutPendingProposal(ctx, "msg1", PendingProposal{UserID: "u1", SystemPrompt: "a dark forest"})

	got, ok := c.GetPendingProposal(ctx, "msg1")
	if !ok {
		t.Fatal("expected the proposal to be found")
	}
	if got.UserID != "u1" || got.SystemPrompt != "a dark forest" {
		t.Errorf("unexpected proposal: %+v", got)
	}
	if got.CreateTime.IsZero() {
		t.Error("expected PutPendingProposal to stamp CreateTime")
	}

	if _, ok := c.GetPendingProposal(ctx, "missing"); ok {
		t.Error("expected a missing proposal to report not-found")
	}
}

func TestRemovePendingProposal(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCacheWithClock(t)

	c.PutPendingProposal(ctx, "msg1", PendingProposal{UserID: "u1"})
	c.RemovePendingProposal(ctx, "msg1")

	if _, ok := c.GetPendingProposal(ctx, "msg1"); ok {
		t.Error("expected the proposal to have been removed")
	}
}

func TestCleanupExpiredPendingGames(t *testing.T) {
	ctx := context.Background()
	c, fc := newTestCacheWithClock(t)

	c.PutPendingProposal(ctx, "stale", PendingProposal{UserID: "u1"})
	fc.Advance(10 * time.Minute)
	c.PutPendingProposal(ctx, "fresh", PendingProposal{UserID: "u2"})

	removed := c.CleanupExpiredPendingGames(ctx, 5*time.Minute)
	if _, ok := removed["stale"]; !ok {
		t.Errorf("expected 'stale' to be reported removed, got %v", removed)
	}
	if _, ok := removed["fresh"]; ok {
		t.Errorf("expected 'fresh' to survive, got %v", removed)
	}

	if _, ok := c.GetPendingProposal(ctx, "stale"); ok {
		t.Error("expected the stale proposal to actually be gone")
	}
	if _, ok := c.GetPendingProposal(ctx, "fresh"); !ok {
		t.Error("expected the fresh proposal to still be present")
	}
}

func TestCleanupExpiredPendingGames_DefaultTimeout(t *testing.T) {
	ctx := context.Background()
	c, fc := newTestCacheWithClock(t)

	c.PutPendingProposal(ctx, "msg1", PendingProposal{UserID: "u1"})
	fc.Advance(defaultPendingTimeout + time.Second)

	removed := c.CleanupExpiredPendingGames(ctx, 0)
	if _, ok := removed["msg1"]; !ok {
		t.Error("expected the default timeout to be applied when timeout<=0")
	}
}
