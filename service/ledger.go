package service

import (
	"time"

	"github.com/boltdb/bolt"
	jsoniter "github.com/json-iterator/go"
	"github.com/nekomoe-dev/Gatekeeper/db"
	"github.com/nekomoe-dev/Gatekeeper/model"
	"github.com/nekomoe-dev/Gatekeeper/pkg/log"
)

func getLedger(tx *bolt.Tx, key model.Key) (ids []int) {
	bkt := tx.Bucket([]byte(model.BucketLedger))
	if bkt == nil {
		return nil
	}
	b := bkt.Get(key.Bytes())
	if b == nil {
		return nil
	}
	if err := jsoniter.Unmarshal(b, &ids); err != nil {
		log.Warn("getLedger: corrupt ledger for %v: %v", key, err)
		return nil
	}
	return ids
}

func appendLedger(tx *bolt.Tx, key model.Key, messageID int) error {
	ids := getLedger(tx, key)
	for _, id := range ids {
		if id == messageID {
			return nil
		}
	}
	bkt, err := tx.CreateBucketIfNotExists([]byte(model.BucketLedger))
	if err != nil {
		return err
	}
	b, err := jsoniter.Marshal(append(ids, messageID))
	if err != nil {
		return err
	}
	return bkt.Put(key.Bytes(), b)
}

// LedgeredMessages returns the ids currently recorded for a key.
func LedgeredMessages(key model.Key) (ids []int, err error) {
	err = db.DB().View(func(tx *bolt.Tx) error {
		ids = getLedger(tx, key)
		return nil
	})
	return ids, err
}

// recallLedger drains every ledgered message id for the key and attempts to
// recall each one. Recall failures are logged, not retried; the drain itself
// is unconditional so an id is removed exactly once.
func (e *Engine) recallLedger(key model.Key) {
	var ids []int
	if err := db.DB().Update(func(tx *bolt.Tx) error {
		ids = getLedger(tx, key)
		return deleteFromBucket(tx, model.BucketLedger, key.Bytes())
	}); err != nil {
		log.Warn("recallLedger: drain %v: %v", key, err)
		return
	}
	for _, id := range ids {
		if err := e.gw.DeleteMessage(key.GroupID, id); err != nil {
			// already-recalled messages land here too; benign
			log.Info("recallLedger: recall message %v in group %v: %v", id, key.GroupID, err)
		}
	}
}

// registerEcho records an outbound correlation token so the gateway's
// acknowledgment can be routed. If the acknowledgment arrived first, it is
// consumed immediately.
func (e *Engine) registerEcho(echo model.Echo) {
	var early *model.Ack
	if err := db.DB().Update(func(tx *bolt.Tx) error {
		ackBkt := tx.Bucket([]byte(model.BucketAck))
		if ackBkt != nil {
			if b := ackBkt.Get([]byte(echo.Token)); b != nil {
				var ack model.Ack
				if err := jsoniter.Unmarshal(b, &ack); err == nil {
					early = &ack
				}
				return ackBkt.Delete([]byte(echo.Token))
			}
		}
		bkt, err := tx.CreateBucketIfNotExists([]byte(model.BucketEcho))
		if err != nil {
			return err
		}
		b, err := jsoniter.Marshal(&echo)
		if err != nil {
			return err
		}
		return bkt.Put([]byte(echo.Token), b)
	}); err != nil {
		log.Warn("registerEcho: %v", err)
		return
	}
	if early != nil {
		e.resolveEcho(echo, early.MessageID)
	}
}

// HandleSendAck correlates a transport message id with a previously issued
// token. Acks for unknown tokens are parked in case the registration has
// not landed yet; the background cleaner prunes stale ones.
func (e *Engine) HandleSendAck(token string, groupID int64, messageID int) {
	var echo *model.Echo
	if err := db.DB().Update(func(tx *bolt.Tx) error {
		echoBkt := tx.Bucket([]byte(model.BucketEcho))
		if echoBkt != nil {
			if b := echoBkt.Get([]byte(token)); b != nil {
				var ec model.Echo
				if err := jsoniter.Unmarshal(b, &ec); err == nil {
					echo = &ec
				}
				return echoBkt.Delete([]byte(token))
			}
		}
		bkt, err := tx.CreateBucketIfNotExists([]byte(model.BucketAck))
		if err != nil {
			return err
		}
		b, err := jsoniter.Marshal(&model.Ack{
			Token:     token,
			MessageID: messageID,
			GroupID:   groupID,
			CreatedAt: time.Now(),
		})
		if err != nil {
			return err
		}
		return bkt.Put([]byte(token), b)
	}); err != nil {
		log.Warn("HandleSendAck: %v", err)
		return
	}
	if echo != nil {
		e.resolveEcho(*echo, messageID)
	}
}

func (e *Engine) resolveEcho(echo model.Echo, messageID int) {
	switch echo.Purpose {
	case model.EchoTrack:
		var stillPending bool
		if err := db.DB().Update(func(tx *bolt.Tx) error {
			rec := getRecord(tx, echo.Key)
			if rec != nil && rec.Status == model.StatusPending {
				stillPending = true
				return appendLedger(tx, echo.Key, messageID)
			}
			return nil
		}); err != nil {
			log.Warn("resolveEcho: ledger %v: %v", echo.Key, err)
			return
		}
		if !stillPending {
			// the verification resolved between send and ack; the message
			// has no purpose left, recall it right away
			if err := e.gw.DeleteMessage(echo.Key.GroupID, messageID); err != nil {
				log.Info("resolveEcho: recall message %v: %v", messageID, err)
			}
		}
	case model.EchoDelayedRecall:
		delay := e.policy.SuccessRecall
		if delay <= 0 {
			return
		}
		time.AfterFunc(delay, func() {
			if err := e.gw.DeleteMessage(echo.Key.GroupID, messageID); err != nil {
				log.Info("delayed recall: message %v in group %v: %v", messageID, echo.Key.GroupID, err)
			}
		})
	}
}
