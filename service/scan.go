package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/nekomoe-dev/Gatekeeper/db"
	"github.com/nekomoe-dev/Gatekeeper/model"
	"github.com/nekomoe-dev/Gatekeeper/pkg/log"
)

// Sweep runs one escalation pass over a group.
//
// Removal is deliberately deferred by one sweep: a user whose counter
// reaches the limit gets a final warning now and is removed at the start of
// the next sweep, so there is one full cycle of final grace.
func (e *Engine) Sweep(groupID int64) (acted bool, err error) {
	removed := e.sweepRemovals(groupID)
	warned, err := e.sweepWarnings(groupID)
	if err != nil {
		return removed, err
	}
	return removed || warned, nil
}

// sweepRemovals kicks the users queued during the previous sweep. A failed
// kick leaves the user queued for the next pass.
func (e *Engine) sweepRemovals(groupID int64) (acted bool) {
	queued, err := QueuedForRemoval(groupID)
	if err != nil {
		log.Warn("sweepRemovals: group %v: %v", groupID, err)
		return false
	}
	var removed []int64
	for _, userID := range queued {
		if err := e.gw.Kick(groupID, userID); err != nil {
			log.Warn("sweepRemovals: kick user %v in group %v: %v", userID, groupID, err)
			continue
		}
		key := model.Key{UserID: userID, GroupID: groupID}
		if err := db.DB().Update(func(tx *bolt.Tx) error {
			if rec := getRecord(tx, key); rec != nil {
				rec.Status = model.StatusKicked
				if err := putRecord(tx, rec); err != nil {
					return err
				}
			}
			return clearPendingState(tx, key)
		}); err != nil {
			log.Warn("sweepRemovals: persist removal of %v: %v", key, err)
		}
		e.recallLedger(key)
		removed = append(removed, userID)
	}
	if len(removed) == 0 {
		return false
	}
	var names []string
	for _, userID := range removed {
		names = append(names, fmt.Sprintf("%v", userID))
	}
	if _, err := e.gw.SendGroupMessage(groupID, fmt.Sprintf(
		"Removed for never completing the entry verification: %v", strings.Join(names, ", "))); err != nil {
		log.Warn("sweepRemovals: notify group %v: %v", groupID, err)
	}
	return true
}

type sweepNotice struct {
	key        model.Key
	expression string
	count      int
}

// sweepWarnings re-reads the pending set (after removals), bumps every
// counter, queues users that reached the limit and sends the notices:
// one batched reminder per group plus an individually ledgered final
// warning per queued user.
func (e *Engine) sweepWarnings(groupID int64) (acted bool, err error) {
	var normals, finals []sweepNotice
	if err := db.DB().Update(func(tx *bolt.Tx) error {
		for _, key := range pendingKeysByGroup(tx, groupID) {
			ch := getChallenge(tx, key)
			if ch == nil {
				log.Warn("sweepWarnings: pending record %v has no challenge", key)
				continue
			}
			count := getWarningCount(tx, key) + 1
			if err := putWarning(tx, &model.WarningRecord{Key: key, Count: count, UpdatedAt: time.Now()}); err != nil {
				return err
			}
			notice := sweepNotice{key: key, expression: ch.Expression, count: count}
			if count >= e.policy.WarningLimit {
				if err := addReachedLimit(tx, groupID, key.UserID); err != nil {
					return err
				}
				finals = append(finals, notice)
			} else {
				normals = append(normals, notice)
			}
		}
		return nil
	}); err != nil {
		return false, err
	}
	if len(normals) > 0 {
		var sb strings.Builder
		for _, n := range normals {
			sb.WriteString(fmt.Sprintf("%v send me the result of %v in a direct message to verify. Warning %v/%v; reaching %v queues you for removal.\n",
				mention(n.key.UserID), n.expression, n.count, e.policy.WarningLimit, e.policy.WarningLimit))
		}
		if _, err := e.gw.SendGroupMessage(groupID, strings.TrimRight(sb.String(), "\n")); err != nil {
			log.Warn("sweepWarnings: notify group %v: %v", groupID, err)
		}
	}
	for _, n := range finals {
		e.sendTrackedGroup(n.key, fmt.Sprintf(
			"%v FINAL WARNING: you will be removed on the next sweep unless you verify. Send me the result of %v in a direct message.",
			mention(n.key.UserID), n.expression))
	}
	if len(finals) > 0 || len(normals) > 0 {
		log.Info("sweepWarnings: group %v: %v reminded, %v queued for removal", groupID, len(normals), len(finals))
	}
	return len(finals)+len(normals) > 0, nil
}

// SweepAll sweeps every group that has at least one pending record, pacing
// the groups to respect outbound rate limits.
func (e *Engine) SweepAll() (acted bool, err error) {
	groups, err := PendingGroups()
	if err != nil {
		return false, err
	}
	for i, groupID := range groups {
		if i > 0 && e.policy.SweepGap > 0 {
			time.Sleep(e.policy.SweepGap)
		}
		groupActed, err := e.Sweep(groupID)
		if err != nil {
			log.Warn("SweepAll: group %v: %v", groupID, err)
			continue
		}
		acted = acted || groupActed
	}
	return acted, nil
}
