package service

import (
	"strings"
	"testing"

	"github.com/nekomoe-dev/Gatekeeper/model"
)

func joinPending(t *testing.T, e *Engine, groupID, userID int64) model.Key {
	t.Helper()
	if err := e.HandleJoin(groupID, userID); err != nil {
		t.Fatalf("HandleJoin: %v", err)
	}
	return model.Key{UserID: userID, GroupID: groupID}
}

func TestSweepWarnsThenDefersRemoval(t *testing.T) {
	e, gw := newTestEngine(t, testPolicy()) // warning limit 3
	mustEnable(t, 100)
	key := joinPending(t, e, 100, 1)

	// sweeps 1 and 2: reminders only, counter climbs
	for want := 1; want <= 2; want++ {
		acted, err := e.Sweep(100)
		if err != nil {
			t.Fatalf("Sweep: %v", err)
		}
		if !acted {
			t.Fatal("sweep with a pending user must act")
		}
		if count, _ := WarningCount(key); count != want {
			t.Fatalf("warning count = %v, want %v", count, want)
		}
		if queued, _ := QueuedForRemoval(100); len(queued) != 0 {
			t.Fatalf("queued = %v, want nobody before the limit", queued)
		}
		if len(gw.kicks) != 0 {
			t.Fatal("kick issued before the limit was reached")
		}
	}

	// sweep 3: limit reached; final warning, queued, but NOT removed yet
	if _, err := e.Sweep(100); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if count, _ := WarningCount(key); count != 3 {
		t.Fatalf("warning count = %v, want 3", count)
	}
	queued, _ := QueuedForRemoval(100)
	if len(queued) != 1 || queued[0] != 1 {
		t.Fatalf("queued = %v, want [1]", queued)
	}
	if len(gw.kicks) != 0 {
		t.Fatal("user removed in the same sweep that reached the limit")
	}
	final := gw.lastGroupMessage(t)
	if !strings.Contains(final.Text, "FINAL WARNING") {
		t.Fatalf("expected a final warning, got %q", final.Text)
	}

	// sweep 4: deferred removal executes, no further warning for the user
	msgsBefore := len(gw.group)
	if _, err := e.Sweep(100); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if len(gw.kicks) != 1 {
		t.Fatalf("kicks = %v, want exactly one", len(gw.kicks))
	}
	if rec := mustRecord(t, key); rec.Status != model.StatusKicked {
		t.Fatalf("status = %v, want kicked", rec.Status)
	}
	if count, _ := WarningCount(key); count != 0 {
		t.Fatal("warning record survived the removal")
	}
	if queued, _ := QueuedForRemoval(100); len(queued) != 0 {
		t.Fatalf("queued = %v, want empty after removal", queued)
	}
	if ids, _ := LedgeredMessages(key); len(ids) != 0 {
		t.Fatal("ledger not drained on removal")
	}
	for _, m := range gw.group[msgsBefore:] {
		if strings.Contains(m.Text, "FINAL WARNING") || strings.Contains(m.Text, "Warning") {
			t.Fatalf("removed user was warned again: %q", m.Text)
		}
	}
}

func TestSweepBatchesReminders(t *testing.T) {
	e, gw := newTestEngine(t, testPolicy())
	mustEnable(t, 100)
	joinPending(t, e, 100, 1)
	joinPending(t, e, 100, 2)
	joinPending(t, e, 100, 3)

	msgsBefore := len(gw.group)
	if _, err := e.Sweep(100); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	sent := gw.group[msgsBefore:]
	if len(sent) != 1 {
		t.Fatalf("reminders sent in %v messages, want one batched message", len(sent))
	}
	for _, userID := range []string{"id=1", "id=2", "id=3"} {
		if !strings.Contains(sent[0].Text, userID) {
			t.Fatalf("batched reminder lacks %v: %q", userID, sent[0].Text)
		}
	}
}

func TestSweepKickFailureKeepsUserQueued(t *testing.T) {
	e, gw := newTestEngine(t, testPolicy())
	mustEnable(t, 100)
	key := joinPending(t, e, 100, 1)
	for i := 0; i < 3; i++ {
		if _, err := e.Sweep(100); err != nil {
			t.Fatalf("Sweep: %v", err)
		}
	}

	gw.failKick = true
	if _, err := e.Sweep(100); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if queued, _ := QueuedForRemoval(100); len(queued) != 1 {
		t.Fatal("failed kick must leave the user queued for the next sweep")
	}
	if rec := mustRecord(t, key); rec.Status != model.StatusPending {
		t.Fatalf("status = %v, want still pending after failed kick", rec.Status)
	}

	gw.failKick = false
	if _, err := e.Sweep(100); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if queued, _ := QueuedForRemoval(100); len(queued) != 0 {
		t.Fatal("user not removed once the kick succeeds")
	}
	if rec := mustRecord(t, key); rec.Status != model.StatusKicked {
		t.Fatalf("status = %v, want kicked", rec.Status)
	}
}

func TestSweepEmptyGroupTakesNoAction(t *testing.T) {
	e, gw := newTestEngine(t, testPolicy())
	mustEnable(t, 100)
	acted, err := e.Sweep(100)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if acted {
		t.Fatal("sweep of an empty group reported an action")
	}
	if len(gw.group) != 0 {
		t.Fatal("messages sent for an empty group")
	}
}

func TestVerifiedUserLeavesSweepScope(t *testing.T) {
	e, _ := newTestEngine(t, testPolicy())
	mustEnable(t, 100)
	key := joinPending(t, e, 100, 1)
	if _, err := e.Sweep(100); err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if err := e.Approve(100, 1); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if count, _ := WarningCount(key); count != 0 {
		t.Fatal("warning record survived verification")
	}
	acted, err := e.Sweep(100)
	if err != nil {
		t.Fatalf("Sweep: %v", err)
	}
	if acted {
		t.Fatal("sweep acted on a verified user")
	}
}

func TestSweepAllCoversEveryPendingGroup(t *testing.T) {
	e, _ := newTestEngine(t, testPolicy())
	mustEnable(t, 100)
	mustEnable(t, 200)
	k1 := joinPending(t, e, 100, 1)
	k2 := joinPending(t, e, 200, 2)

	acted, err := e.SweepAll()
	if err != nil {
		t.Fatalf("SweepAll: %v", err)
	}
	if !acted {
		t.Fatal("SweepAll with pending users must act")
	}
	if count, _ := WarningCount(k1); count != 1 {
		t.Fatalf("group 100 warning count = %v, want 1", count)
	}
	if count, _ := WarningCount(k2); count != 1 {
		t.Fatalf("group 200 warning count = %v, want 1", count)
	}
}
