package service

import (
	"time"
)

// Gateway is the messaging transport the engine issues actions through.
// The telebot adapter implements it in production; tests use a fake.
//
// Send calls return a correlation token. The adapter later reports the
// transport-assigned message id against that token via Engine.HandleSendAck;
// message text plays no part in the correlation.
type Gateway interface {
	// Mute restricts a member from posting. A non-positive duration lifts
	// the restriction.
	Mute(groupID, userID int64, duration time.Duration) error
	Kick(groupID, userID int64) error
	DeleteMessage(groupID int64, messageID int) error
	SendGroupMessage(groupID int64, text string) (token string, err error)
	SendDirectMessage(userID int64, text string) (token string, err error)
}
