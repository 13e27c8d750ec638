package main

import (
	"time"

	"github.com/boltdb/bolt"
	jsoniter "github.com/json-iterator/go"
	"github.com/nekomoe-dev/Gatekeeper/config"
	"github.com/nekomoe-dev/Gatekeeper/db"
	"github.com/nekomoe-dev/Gatekeeper/model"
	"github.com/nekomoe-dev/Gatekeeper/pkg/log"
	"github.com/nekomoe-dev/Gatekeeper/service"
)

func GoBackgrounds(e *service.Engine) {
	conf := config.GetConfig()

	// periodic escalation sweeps over all groups
	if conf.SweepIntervalMin > 0 {
		go func() {
			tick := time.Tick(time.Duration(conf.SweepIntervalMin) * time.Minute)
			for range tick {
				if _, err := e.SweepAll(); err != nil {
					log.Warn("periodic sweep: %v", err)
				}
			}
		}()
	}

	// remove records that reached a terminal status once the retention
	// window has passed; their challenge/warning/ledger state was already
	// cleared on the transition
	retention := time.Duration(conf.RetentionHours) * time.Hour
	go ExpireCleanBackground(model.BucketVerification, 1*time.Hour, func(tx *bolt.Tx, k, b []byte, now time.Time) (expired bool) {
		var rec model.VerificationRecord
		if err := jsoniter.Unmarshal(b, &rec); err != nil {
			// invalid records are regarded as expired
			return true
		}
		return rec.Status.Terminal() && now.Sub(rec.CreatedAt) >= retention
	})()

	// drop correlation leftovers whose counterpart never arrived
	go ExpireCleanBackground(model.BucketEcho, 10*time.Minute, func(tx *bolt.Tx, k, b []byte, now time.Time) (expired bool) {
		var echo model.Echo
		if err := jsoniter.Unmarshal(b, &echo); err != nil {
			return true
		}
		return now.Sub(echo.CreatedAt) >= 10*time.Minute
	})()
	go ExpireCleanBackground(model.BucketAck, 10*time.Minute, func(tx *bolt.Tx, k, b []byte, now time.Time) (expired bool) {
		var ack model.Ack
		if err := jsoniter.Unmarshal(b, &ack); err != nil {
			return true
		}
		return now.Sub(ack.CreatedAt) >= 10*time.Minute
	})()
}

func ExpireCleanBackground(bucket string, cleanInterval time.Duration, f func(tx *bolt.Tx, k, b []byte, now time.Time) (expired bool)) func() {
	return func() {
		tick := time.Tick(cleanInterval)
		for now := range tick {
			if err := db.DB().Update(func(tx *bolt.Tx) error {
				bkt, err := tx.CreateBucketIfNotExists([]byte(bucket))
				if err != nil {
					return err
				}
				var listClean [][]byte
				if err = bkt.ForEach(func(k, b []byte) error {
					if f(tx, k, b, now) {
						listClean = append(listClean, k)
					}
					return nil
				}); err != nil {
					return err
				}
				for _, k := range listClean {
					if err = bkt.Delete(k); err != nil {
						return err
					}
				}
				return nil
			}); err != nil {
				log.Warn("Clean bucket %v: %v", bucket, err)
			}
		}
	}
}
