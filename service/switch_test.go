package service

import (
	"strconv"
	"testing"

	"github.com/nekomoe-dev/Gatekeeper/common"
	"github.com/nekomoe-dev/Gatekeeper/model"
)

func TestToggleEnabled(t *testing.T) {
	resetDB(t)
	enabled, err := IsEnabled(100)
	if err != nil {
		t.Fatalf("IsEnabled: %v", err)
	}
	if enabled {
		t.Fatal("verification must default to off")
	}
	for _, want := range []bool{true, false, true} {
		got, err := ToggleEnabled(100)
		if err != nil {
			t.Fatalf("ToggleEnabled: %v", err)
		}
		if got != want {
			t.Fatalf("ToggleEnabled = %v, want %v", got, want)
		}
		if enabled, _ := IsEnabled(100); enabled != want {
			t.Fatalf("IsEnabled = %v after toggle, want %v", enabled, want)
		}
	}
}

func TestGroupByChatIdentifier(t *testing.T) {
	e, _ := newTestEngine(t, testPolicy())
	mustEnable(t, 100)
	if err := e.HandleJoin(100, 1); err != nil {
		t.Fatalf("HandleJoin: %v", err)
	}

	identifier := common.StringToUUID5(strconv.FormatInt(100, 10))
	groupID, err := GroupByChatIdentifier(identifier)
	if err != nil {
		t.Fatalf("GroupByChatIdentifier: %v", err)
	}
	if groupID != 100 {
		t.Fatalf("groupID = %v, want 100", groupID)
	}
	if _, err := GroupByChatIdentifier("no-such-identifier"); err == nil {
		t.Fatal("unknown identifier must not resolve")
	}
}

func TestRejoinReplacesRecord(t *testing.T) {
	e, _ := newTestEngine(t, testPolicy())
	mustEnable(t, 100)
	key := model.Key{UserID: 1, GroupID: 100}
	if err := e.HandleJoin(100, 1); err != nil {
		t.Fatalf("HandleJoin: %v", err)
	}
	if err := e.Approve(100, 1); err != nil {
		t.Fatalf("Approve: %v", err)
	}
	// leaving and rejoining starts a fresh verification; there is still
	// only one record for the pair
	if err := e.HandleLeave(100, 1); err != nil {
		t.Fatalf("HandleLeave: %v", err)
	}
	if err := e.HandleJoin(100, 1); err != nil {
		t.Fatalf("HandleJoin: %v", err)
	}
	rec := mustRecord(t, key)
	if rec.Status != model.StatusPending || rec.RemainingAttempts != 3 {
		t.Fatalf("rejoin record = %+v, want fresh pending with 3 attempts", rec)
	}
	recs, err := ListPendingByGroup(100)
	if err != nil {
		t.Fatalf("ListPendingByGroup: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("pending records = %v, want exactly one per (user, group)", len(recs))
	}
}
