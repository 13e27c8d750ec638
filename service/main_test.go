package service

import (
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/boltdb/bolt"
	"github.com/nekomoe-dev/Gatekeeper/db"
	"github.com/nekomoe-dev/Gatekeeper/model"
)

func TestMain(m *testing.M) {
	dir, err := os.MkdirTemp("", "gatekeeper-test-*")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	db.InitDB(dir)
	code := m.Run()
	_ = os.RemoveAll(dir)
	os.Exit(code)
}

func resetDB(t *testing.T) {
	t.Helper()
	if err := db.DB().Update(func(tx *bolt.Tx) error {
		var names [][]byte
		if err := tx.ForEach(func(name []byte, _ *bolt.Bucket) error {
			names = append(names, append([]byte(nil), name...))
			return nil
		}); err != nil {
			return err
		}
		for _, name := range names {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		t.Fatalf("resetDB: %v", err)
	}
}

type sentMessage struct {
	ChatID    int64
	MessageID int
	Text      string
}

type muteCall struct {
	GroupID  int64
	UserID   int64
	Duration time.Duration
}

type memberCall struct {
	GroupID int64
	UserID  int64
}

// fakeGateway records every outbound action and, like the real adapter,
// reports the message id against the returned token right away.
type fakeGateway struct {
	mu       sync.Mutex
	engine   *Engine
	nextID   int
	mutes    []muteCall
	kicks    []memberCall
	deletes  []int
	group    []sentMessage
	direct   []sentMessage
	failKick bool
	failSend bool
}

func (g *fakeGateway) Mute(groupID, userID int64, duration time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mutes = append(g.mutes, muteCall{GroupID: groupID, UserID: userID, Duration: duration})
	return nil
}

func (g *fakeGateway) Kick(groupID, userID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failKick {
		return fmt.Errorf("kick refused")
	}
	g.kicks = append(g.kicks, memberCall{GroupID: groupID, UserID: userID})
	return nil
}

func (g *fakeGateway) DeleteMessage(groupID int64, messageID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.deletes = append(g.deletes, messageID)
	return nil
}

func (g *fakeGateway) SendGroupMessage(groupID int64, text string) (string, error) {
	g.mu.Lock()
	if g.failSend {
		g.mu.Unlock()
		return "", fmt.Errorf("send refused")
	}
	g.nextID++
	id := g.nextID
	token := fmt.Sprintf("tok-%v", id)
	g.group = append(g.group, sentMessage{ChatID: groupID, MessageID: id, Text: text})
	e := g.engine
	g.mu.Unlock()
	if e != nil {
		e.HandleSendAck(token, groupID, id)
	}
	return token, nil
}

func (g *fakeGateway) SendDirectMessage(userID int64, text string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	g.direct = append(g.direct, sentMessage{ChatID: userID, MessageID: g.nextID, Text: text})
	return fmt.Sprintf("tok-%v", g.nextID), nil
}

func (g *fakeGateway) lastGroupMessage(t *testing.T) sentMessage {
	t.Helper()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.group) == 0 {
		t.Fatal("no group message was sent")
	}
	return g.group[len(g.group)-1]
}

func (g *fakeGateway) deletedCount(messageID int) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	var n int
	for _, id := range g.deletes {
		if id == messageID {
			n++
		}
	}
	return n
}

func testPolicy() Policy {
	return Policy{
		MuteDuration: 30 * time.Minute,
		MaxAttempts:  3,
		WarningLimit: 3,
		Admins:       []int64{900, 901},
	}
}

func newTestEngine(t *testing.T, policy Policy) (*Engine, *fakeGateway) {
	t.Helper()
	resetDB(t)
	gw := &fakeGateway{}
	e := NewEngine(gw, policy)
	gw.engine = e
	return e, gw
}

func mustEnable(t *testing.T, groupID int64) {
	t.Helper()
	if err := SetEnabled(groupID, true); err != nil {
		t.Fatalf("SetEnabled: %v", err)
	}
}

func mustRecord(t *testing.T, key model.Key) *model.VerificationRecord {
	t.Helper()
	rec, err := GetVerification(key)
	if err != nil {
		t.Fatalf("GetVerification: %v", err)
	}
	if rec == nil {
		t.Fatalf("no record for %v", key)
	}
	return rec
}
