package service

import (
	"fmt"
	"strconv"

	"github.com/boltdb/bolt"
	jsoniter "github.com/json-iterator/go"
	"github.com/nekomoe-dev/Gatekeeper/common"
	"github.com/nekomoe-dev/Gatekeeper/db"
	"github.com/nekomoe-dev/Gatekeeper/model"
)

// IsEnabled reports whether entry verification is switched on for a group.
// The default is off until an admin toggles it.
func IsEnabled(groupID int64) (enabled bool, err error) {
	err = db.DB().View(func(tx *bolt.Tx) error {
		bkt := tx.Bucket([]byte(model.BucketSwitch))
		if bkt == nil {
			return nil
		}
		b := bkt.Get([]byte(strconv.FormatInt(groupID, 10)))
		if b == nil {
			return nil
		}
		// corrupt switch state counts as off and gets overwritten on toggle
		_ = jsoniter.Unmarshal(b, &enabled)
		return nil
	})
	return enabled, err
}

func SetEnabled(groupID int64, enabled bool) error {
	return db.DB().Update(func(tx *bolt.Tx) error {
		bkt, err := tx.CreateBucketIfNotExists([]byte(model.BucketSwitch))
		if err != nil {
			return err
		}
		b, err := jsoniter.Marshal(enabled)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(strconv.FormatInt(groupID, 10)), b)
	})
}

// ToggleEnabled flips the switch and returns the new state.
func ToggleEnabled(groupID int64) (enabled bool, err error) {
	enabled, err = IsEnabled(groupID)
	if err != nil {
		return false, err
	}
	if err := SetEnabled(groupID, !enabled); err != nil {
		return false, err
	}
	return !enabled, nil
}

// KnownGroups returns every group id the store has seen, from both the
// switch bucket and the verification records.
func KnownGroups() (groups []int64, err error) {
	err = db.DB().View(func(tx *bolt.Tx) error {
		if bkt := tx.Bucket([]byte(model.BucketSwitch)); bkt != nil {
			if err := bkt.ForEach(func(k, b []byte) error {
				id, err := strconv.ParseInt(string(k), 10, 64)
				if err == nil {
					groups = append(groups, id)
				}
				return nil
			}); err != nil {
				return err
			}
		}
		if bkt := tx.Bucket([]byte(model.BucketVerification)); bkt != nil {
			return bkt.ForEach(func(k, b []byte) error {
				key, err := model.ParseKey(string(k))
				if err == nil {
					groups = append(groups, key.GroupID)
				}
				return nil
			})
		}
		return nil
	})
	return common.DeduplicateInt64(groups), err
}

// GroupByChatIdentifier resolves the public uuid5 identifier the admin API
// exposes back to the group id.
func GroupByChatIdentifier(identifier string) (int64, error) {
	groups, err := KnownGroups()
	if err != nil {
		return 0, err
	}
	for _, id := range groups {
		if common.StringToUUID5(strconv.FormatInt(id, 10)) == identifier {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown chat identifier")
}
