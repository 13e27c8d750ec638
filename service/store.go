package service

import (
	"strconv"

	"github.com/boltdb/bolt"
	jsoniter "github.com/json-iterator/go"
	"github.com/nekomoe-dev/Gatekeeper/common"
	"github.com/nekomoe-dev/Gatekeeper/db"
	"github.com/nekomoe-dev/Gatekeeper/model"
	"github.com/nekomoe-dev/Gatekeeper/pkg/log"
)

// getRecord returns nil when no record exists or the stored bytes are
// corrupt; corrupt state is treated as empty rather than fatal.
func getRecord(tx *bolt.Tx, key model.Key) *model.VerificationRecord {
	bkt := tx.Bucket([]byte(model.BucketVerification))
	if bkt == nil {
		return nil
	}
	b := bkt.Get(key.Bytes())
	if b == nil {
		return nil
	}
	var rec model.VerificationRecord
	if err := jsoniter.Unmarshal(b, &rec); err != nil {
		log.Warn("getRecord: corrupt record for %v: %v", key, err)
		return nil
	}
	return &rec
}

func putRecord(tx *bolt.Tx, rec *model.VerificationRecord) error {
	bkt, err := tx.CreateBucketIfNotExists([]byte(model.BucketVerification))
	if err != nil {
		return err
	}
	b, err := jsoniter.Marshal(rec)
	if err != nil {
		return err
	}
	return bkt.Put(rec.Key.Bytes(), b)
}

func getChallenge(tx *bolt.Tx, key model.Key) *model.Challenge {
	bkt := tx.Bucket([]byte(model.BucketChallenge))
	if bkt == nil {
		return nil
	}
	b := bkt.Get(key.Bytes())
	if b == nil {
		return nil
	}
	var ch model.Challenge
	if err := jsoniter.Unmarshal(b, &ch); err != nil {
		log.Warn("getChallenge: corrupt challenge for %v: %v", key, err)
		return nil
	}
	return &ch
}

func putChallenge(tx *bolt.Tx, ch *model.Challenge) error {
	bkt, err := tx.CreateBucketIfNotExists([]byte(model.BucketChallenge))
	if err != nil {
		return err
	}
	b, err := jsoniter.Marshal(ch)
	if err != nil {
		return err
	}
	return bkt.Put(ch.Key.Bytes(), b)
}

func deleteFromBucket(tx *bolt.Tx, bucket string, key []byte) error {
	bkt := tx.Bucket([]byte(bucket))
	if bkt == nil {
		return nil
	}
	return bkt.Delete(key)
}

// clearPendingState removes the challenge, the warning counter and the
// queued-removal membership for a key. Called whenever a record leaves
// pending or is deleted.
func clearPendingState(tx *bolt.Tx, key model.Key) error {
	if err := deleteFromBucket(tx, model.BucketChallenge, key.Bytes()); err != nil {
		return err
	}
	if err := deleteFromBucket(tx, model.BucketWarning, key.Bytes()); err != nil {
		return err
	}
	return removeReachedLimit(tx, key.GroupID, key.UserID)
}

// GetVerification returns the record for (userID, groupID), or nil.
func GetVerification(key model.Key) (rec *model.VerificationRecord, err error) {
	err = db.DB().View(func(tx *bolt.Tx) error {
		rec = getRecord(tx, key)
		return nil
	})
	return rec, err
}

// GetChallenge returns the challenge for (userID, groupID), or nil.
func GetChallenge(key model.Key) (ch *model.Challenge, err error) {
	err = db.DB().View(func(tx *bolt.Tx) error {
		ch = getChallenge(tx, key)
		return nil
	})
	return ch, err
}

func pendingKeysByGroup(tx *bolt.Tx, groupID int64) (keys []model.Key) {
	bkt := tx.Bucket([]byte(model.BucketVerification))
	if bkt == nil {
		return nil
	}
	_ = bkt.ForEach(func(k, b []byte) error {
		key, err := model.ParseKey(string(k))
		if err != nil || key.GroupID != groupID {
			return nil
		}
		var rec model.VerificationRecord
		if err := jsoniter.Unmarshal(b, &rec); err != nil {
			return nil
		}
		if rec.Status == model.StatusPending {
			keys = append(keys, key)
		}
		return nil
	})
	return keys
}

// ListPendingByGroup returns the pending records of one group.
func ListPendingByGroup(groupID int64) (recs []model.VerificationRecord, err error) {
	err = db.DB().View(func(tx *bolt.Tx) error {
		for _, key := range pendingKeysByGroup(tx, groupID) {
			if rec := getRecord(tx, key); rec != nil {
				recs = append(recs, *rec)
			}
		}
		return nil
	})
	return recs, err
}

// PendingGroups returns the distinct group ids that have at least one
// pending record.
func PendingGroups() (groups []int64, err error) {
	err = db.DB().View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(model.BucketVerification))
		if bkt == nil {
			return nil
		}
		return bkt.ForEach(func(k, b []byte) error {
			key, err := model.ParseKey(string(k))
			if err != nil {
				return nil
			}
			var rec model.VerificationRecord
			if err := jsoniter.Unmarshal(b, &rec); err != nil {
				return nil
			}
			if rec.Status == model.StatusPending {
				groups = append(groups, key.GroupID)
			}
			return nil
		})
	})
	return common.DeduplicateInt64(groups), err
}

func getWarningCount(tx *bolt.Tx, key model.Key) int {
	bkt := tx.Bucket([]byte(model.BucketWarning))
	if bkt == nil {
		return 0
	}
	b := bkt.Get(key.Bytes())
	if b == nil {
		return 0
	}
	var w model.WarningRecord
	if err := jsoniter.Unmarshal(b, &w); err != nil {
		return 0
	}
	return w.Count
}

func putWarning(tx *bolt.Tx, w *model.WarningRecord) error {
	bkt, err := tx.CreateBucketIfNotExists([]byte(model.BucketWarning))
	if err != nil {
		return err
	}
	b, err := jsoniter.Marshal(w)
	if err != nil {
		return err
	}
	return bkt.Put(w.Key.Bytes(), b)
}

func reachedLimitKey(groupID int64) []byte {
	return []byte(strconv.FormatInt(groupID, 10))
}

func getReachedLimit(tx *bolt.Tx, groupID int64) (users []int64) {
	bkt := tx.Bucket([]byte(model.BucketReachedLimit))
	if bkt == nil {
		return nil
	}
	b := bkt.Get(reachedLimitKey(groupID))
	if b == nil {
		return nil
	}
	if err := jsoniter.Unmarshal(b, &users); err != nil {
		log.Warn("getReachedLimit: corrupt set for group %v: %v", groupID, err)
		return nil
	}
	return users
}

func putReachedLimit(tx *bolt.Tx, groupID int64, users []int64) error {
	bkt, err := tx.CreateBucketIfNotExists([]byte(model.BucketReachedLimit))
	if err != nil {
		return err
	}
	if len(users) == 0 {
		return bkt.Delete(reachedLimitKey(groupID))
	}
	b, err := jsoniter.Marshal(users)
	if err != nil {
		return err
	}
	return bkt.Put(reachedLimitKey(groupID), b)
}

func addReachedLimit(tx *bolt.Tx, groupID, userID int64) error {
	users := getReachedLimit(tx, groupID)
	for _, u := range users {
		if u == userID {
			return nil
		}
	}
	return putReachedLimit(tx, groupID, append(users, userID))
}

func removeReachedLimit(tx *bolt.Tx, groupID, userID int64) error {
	users := getReachedLimit(tx, groupID)
	kept := users[:0]
	for _, u := range users {
		if u != userID {
			kept = append(kept, u)
		}
	}
	if len(kept) == len(users) {
		return nil
	}
	return putReachedLimit(tx, groupID, kept)
}

// QueuedForRemoval returns the users of a group that the next sweep will
// attempt to remove.
func QueuedForRemoval(groupID int64) (users []int64, err error) {
	err = db.DB().View(func(tx *bolt.Tx) error {
		users = getReachedLimit(tx, groupID)
		return nil
	})
	return users, err
}

// WarningCount returns the persisted warning counter for a key.
func WarningCount(key model.Key) (count int, err error) {
	err = db.DB().View(func(tx *bolt.Tx) error {
		count = getWarningCount(tx, key)
		return nil
	})
	return count, err
}
