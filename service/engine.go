package service

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/nekomoe-dev/Gatekeeper/db"
	"github.com/nekomoe-dev/Gatekeeper/model"
	"github.com/nekomoe-dev/Gatekeeper/pkg/log"
)

// Policy carries the tunables of the verification flow. The bot adapter
// fills it from config; tests fill it directly.
type Policy struct {
	MuteDuration  time.Duration
	MaxAttempts   int
	WarningLimit  int
	SuccessRecall time.Duration
	SweepGap      time.Duration
	Admins        []int64
}

// Engine is the only component that transitions a verification record's
// status. All durable state is read-modify-write inside single bolt update
// transactions, so interleaved events cannot observe half-applied records.
// Gateway failures are logged and surfaced as best-effort notices; persisted
// state is never rolled back.
type Engine struct {
	gw     Gateway
	policy Policy
}

func NewEngine(gw Gateway, policy Policy) *Engine {
	return &Engine{gw: gw, policy: policy}
}

func (e *Engine) IsAdmin(userID int64) bool {
	for _, id := range e.policy.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

func mention(userID int64) string {
	return fmt.Sprintf("[user %v](tg://user?id=%v)", userID, userID)
}

// sendTrackedGroup sends a group message whose id is ledgered for bulk
// recall once the verification resolves.
func (e *Engine) sendTrackedGroup(key model.Key, text string) {
	token, err := e.gw.SendGroupMessage(key.GroupID, text)
	if err != nil {
		log.Warn("sendTrackedGroup: group %v: %v", key.GroupID, err)
		return
	}
	e.registerEcho(model.Echo{Token: token, Key: key, Purpose: model.EchoTrack, CreatedAt: time.Now()})
}

// sendSelfRecallGroup sends a group message that is recalled after the
// configured delay instead of being ledgered.
func (e *Engine) sendSelfRecallGroup(key model.Key, text string) {
	token, err := e.gw.SendGroupMessage(key.GroupID, text)
	if err != nil {
		log.Warn("sendSelfRecallGroup: group %v: %v", key.GroupID, err)
		return
	}
	e.registerEcho(model.Echo{Token: token, Key: key, Purpose: model.EchoDelayedRecall, CreatedAt: time.Now()})
}

// HandleJoin gates a new member: mute, challenge, pending record, prompt,
// and an out-of-band heads-up to every admin. A previous record for the
// same key is replaced, so at most one record per (user, group) exists.
func (e *Engine) HandleJoin(groupID, userID int64) error {
	enabled, err := IsEnabled(groupID)
	if err != nil || !enabled {
		return err
	}
	key := model.Key{UserID: userID, GroupID: groupID}
	expression, answer := GenerateChallenge()
	now := time.Now()
	if err := db.DB().Update(func(tx *bolt.Tx) error {
		if err := putRecord(tx, &model.VerificationRecord{
			Key:               key,
			Status:            model.StatusPending,
			RemainingAttempts: e.policy.MaxAttempts,
			CreatedAt:         now,
		}); err != nil {
			return err
		}
		if err := clearPendingState(tx, key); err != nil {
			return err
		}
		return putChallenge(tx, &model.Challenge{
			Key:        key,
			Expression: expression,
			Answer:     answer,
			IssuedAt:   now,
		})
	}); err != nil {
		return err
	}
	if err := e.gw.Mute(groupID, userID, e.policy.MuteDuration); err != nil {
		log.Warn("HandleJoin: mute %v: %v", key, err)
	}
	e.sendTrackedGroup(key, fmt.Sprintf(
		"%v Welcome! To verify you are human, send me the result of this expression in a direct message:\n\n%v\n\nYou have %v attempts. You are muted for %v; posting before verifying gets the message removed and the mute refreshed. Failing every attempt removes you from the group.",
		mention(userID), expression, e.policy.MaxAttempts, e.policy.MuteDuration))
	e.notifyAdmins(key, expression, answer)
	log.Info("HandleJoin: issued challenge to user %v in group %v", userID, groupID)
	return nil
}

func (e *Engine) notifyAdmins(key model.Key, expression string, answer float64) {
	text := fmt.Sprintf(
		"New member %v joined group %v and awaits verification.\nExpression: %v\nAnswer: %v\nManual override:\n/approve %v %v\n/reject %v %v",
		key.UserID, key.GroupID, expression, strconv.FormatFloat(answer, 'f', -1, 64),
		key.GroupID, key.UserID, key.GroupID, key.UserID)
	for _, adminID := range e.policy.Admins {
		if _, err := e.gw.SendDirectMessage(adminID, text); err != nil {
			log.Warn("notifyAdmins: admin %v: %v", adminID, err)
		}
	}
}

// HandleDirectText processes a direct message as a challenge answer.
// Returns false when the sender has no pending verification.
//
// Any submission that is not the correct answer consumes an attempt,
// including unparsable ones; silently ignoring garbage would make the
// attempt bound exploitable.
func (e *Engine) HandleDirectText(userID int64, text string) (handled bool, err error) {
	key, ch, ok := e.findPending(userID)
	if !ok {
		return false, nil
	}
	answer, parseErr := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if parseErr == nil && math.Abs(answer-ch.Answer) < AnswerEpsilon {
		return true, e.pass(key, fmt.Sprintf("%v passed the verification. Welcome aboard!", mention(key.UserID)))
	}
	return true, e.wrongAnswer(key, ch, parseErr != nil)
}

// findPending locates the pending verification a direct message answers.
// With records in several groups the earliest-created one wins.
func (e *Engine) findPending(userID int64) (key model.Key, ch *model.Challenge, ok bool) {
	var best *model.VerificationRecord
	_ = db.DB().View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(model.BucketVerification))
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(k, b []byte) error {
			kk, err := model.ParseKey(string(k))
			if err != nil || kk.UserID != userID {
				return nil
			}
			rec := getRecord(tx, kk)
			if rec == nil || rec.Status != model.StatusPending {
				return nil
			}
			if getChallenge(tx, kk) == nil {
				return nil
			}
			if best == nil || rec.CreatedAt.Before(best.CreatedAt) {
				best = rec
			}
			return nil
		})
	})
	if best == nil {
		return model.Key{}, nil, false
	}
	ch, err := GetChallenge(best.Key)
	if err != nil || ch == nil {
		return model.Key{}, nil, false
	}
	return best.Key, ch, true
}

// pass transitions pending -> verified: unmute, drain the ledger and
// announce with a self-recalling notice.
func (e *Engine) pass(key model.Key, notice string) error {
	if err := db.DB().Update(func(tx *bolt.Tx) error {
		rec := getRecord(tx, key)
		if rec == nil || rec.Status != model.StatusPending {
			return fmt.Errorf("user %v is not awaiting verification in group %v", key.UserID, key.GroupID)
		}
		rec.Status = model.StatusVerified
		if err := putRecord(tx, rec); err != nil {
			return err
		}
		return clearPendingState(tx, key)
	}); err != nil {
		return err
	}
	if err := e.gw.Mute(key.GroupID, key.UserID, 0); err != nil {
		log.Warn("pass: unmute %v: %v", key, err)
	}
	e.recallLedger(key)
	e.sendSelfRecallGroup(key, notice)
	log.Info("pass: user %v verified in group %v", key.UserID, key.GroupID)
	return nil
}

func (e *Engine) wrongAnswer(key model.Key, ch *model.Challenge, unparsable bool) error {
	var remaining int
	if err := db.DB().Update(func(tx *bolt.Tx) error {
		rec := getRecord(tx, key)
		if rec == nil || rec.Status != model.StatusPending {
			return fmt.Errorf("user %v is not awaiting verification in group %v", key.UserID, key.GroupID)
		}
		if rec.RemainingAttempts > 0 {
			rec.RemainingAttempts--
		}
		remaining = rec.RemainingAttempts
		if remaining == 0 {
			rec.Status = model.StatusFailed
			if err := clearPendingState(tx, key); err != nil {
				return err
			}
		}
		return putRecord(tx, rec)
	}); err != nil {
		return err
	}
	if remaining > 0 {
		var head string
		if unparsable {
			head = "That is not a number. Send the bare numeric result."
		} else {
			head = "Wrong answer."
		}
		e.sendTrackedGroup(key, fmt.Sprintf("%v %v You have %v attempts left. The expression is: %v",
			mention(key.UserID), head, remaining, ch.Expression))
		return nil
	}
	if err := e.gw.Kick(key.GroupID, key.UserID); err != nil {
		log.Warn("wrongAnswer: kick %v: %v", key, err)
	}
	e.recallLedger(key)
	if _, err := e.gw.SendGroupMessage(key.GroupID,
		fmt.Sprintf("User %v failed the verification and has been removed.", key.UserID)); err != nil {
		log.Warn("wrongAnswer: notify group %v: %v", key.GroupID, err)
	}
	log.Info("wrongAnswer: user %v failed verification in group %v", key.UserID, key.GroupID)
	return nil
}

// HandleGroupText intercepts posts from still-pending members: the post is
// removed, the mute refreshed and the open challenge re-announced. No
// attempt is consumed.
func (e *Engine) HandleGroupText(groupID, userID int64, messageID int) (handled bool, err error) {
	enabled, err := IsEnabled(groupID)
	if err != nil || !enabled {
		return false, err
	}
	key := model.Key{UserID: userID, GroupID: groupID}
	rec, err := GetVerification(key)
	if err != nil {
		return false, err
	}
	if rec == nil || rec.Status != model.StatusPending {
		return false, nil
	}
	if err := e.gw.DeleteMessage(groupID, messageID); err != nil {
		log.Warn("HandleGroupText: delete message %v: %v", messageID, err)
	}
	if err := e.gw.Mute(groupID, userID, e.policy.MuteDuration); err != nil {
		log.Warn("HandleGroupText: remute %v: %v", key, err)
	}
	ch, _ := GetChallenge(key)
	expression := ""
	if ch != nil {
		expression = ch.Expression
	}
	e.sendTrackedGroup(key, fmt.Sprintf(
		"%v You are not verified yet; the message was removed and the mute refreshed for %v. Send me the result in a direct message. The expression is: %v (%v attempts left)",
		mention(userID), e.policy.MuteDuration, expression, rec.RemainingAttempts))
	return true, nil
}

// Approve is the admin override for a pending verification.
func (e *Engine) Approve(groupID, userID int64) error {
	key := model.Key{UserID: userID, GroupID: groupID}
	return e.pass(key, fmt.Sprintf("%v was approved by an admin and may post now.", mention(userID)))
}

// Reject removes a member regardless of the record's current status; only
// a missing record is an error.
func (e *Engine) Reject(groupID, userID int64) error {
	key := model.Key{UserID: userID, GroupID: groupID}
	if err := db.DB().Update(func(tx *bolt.Tx) error {
		rec := getRecord(tx, key)
		if rec == nil {
			return fmt.Errorf("no verification record for user %v in group %v", userID, groupID)
		}
		rec.Status = model.StatusRejected
		if err := putRecord(tx, rec); err != nil {
			return err
		}
		return clearPendingState(tx, key)
	}); err != nil {
		return err
	}
	if _, err := e.gw.SendGroupMessage(groupID,
		fmt.Sprintf("%v was rejected by an admin and will be removed.", mention(userID))); err != nil {
		log.Warn("Reject: notify group %v: %v", groupID, err)
	}
	if err := e.gw.Kick(groupID, userID); err != nil {
		log.Warn("Reject: kick %v: %v", key, err)
	}
	e.recallLedger(key)
	log.Info("Reject: user %v rejected in group %v", userID, groupID)
	return nil
}

// HandleLeave clears every structure for the key, regardless of status.
func (e *Engine) HandleLeave(groupID, userID int64) error {
	key := model.Key{UserID: userID, GroupID: groupID}
	if err := db.DB().Update(func(tx *bolt.Tx) error {
		if err := deleteFromBucket(tx, model.BucketVerification, key.Bytes()); err != nil {
			return err
		}
		return clearPendingState(tx, key)
	}); err != nil {
		return err
	}
	e.recallLedger(key)
	log.Info("HandleLeave: cleared state of user %v in group %v", userID, groupID)
	return nil
}
