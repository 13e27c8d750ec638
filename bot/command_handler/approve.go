package command_handler

import (
	"fmt"
	"strconv"

	"github.com/nekomoe-dev/Gatekeeper/bot"
	"github.com/nekomoe-dev/Gatekeeper/pkg/log"
	tb "gopkg.in/tucnak/telebot.v2"
)

func init() {
	bot.RegisterCommands("approve", Approve)
}

func Approve(b *bot.Bot, m *tb.Message, params []string) {
	if !b.Engine.IsAdmin(int64(m.Sender.ID)) {
		return
	}
	groupID, userID, err := parseGroupUser(params)
	if err != nil {
		_, _ = b.Bot.Reply(m, "Invalid approve params. Format:\n/approve <group_id> <user_id>", tb.Silent, tb.NoPreview)
		return
	}
	log.Info("Approve: admin %v, group %v, user %v", m.Sender.ID, groupID, userID)
	if err := b.Engine.Approve(groupID, userID); err != nil {
		_, _ = b.Bot.Reply(m, err.Error(), tb.Silent, tb.NoPreview)
	} else {
		_, _ = b.Bot.Reply(m, fmt.Sprintf("Approved user %v in group %v.", userID, groupID), tb.Silent, tb.NoPreview)
	}
}

func parseGroupUser(params []string) (groupID, userID int64, err error) {
	if len(params) < 2 {
		return 0, 0, fmt.Errorf("expected 2 params")
	}
	groupID, err = strconv.ParseInt(params[0], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	userID, err = strconv.ParseInt(params[1], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	return groupID, userID, nil
}
