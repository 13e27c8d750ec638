package command_handler

import (
	"fmt"

	"github.com/nekomoe-dev/Gatekeeper/bot"
	"github.com/nekomoe-dev/Gatekeeper/pkg/log"
	tb "gopkg.in/tucnak/telebot.v2"
)

func init() {
	bot.RegisterCommands("reject", Reject)
}

func Reject(b *bot.Bot, m *tb.Message, params []string) {
	if !b.Engine.IsAdmin(int64(m.Sender.ID)) {
		return
	}
	groupID, userID, err := parseGroupUser(params)
	if err != nil {
		_, _ = b.Bot.Reply(m, "Invalid reject params. Format:\n/reject <group_id> <user_id>", tb.Silent, tb.NoPreview)
		return
	}
	log.Info("Reject: admin %v, group %v, user %v", m.Sender.ID, groupID, userID)
	if err := b.Engine.Reject(groupID, userID); err != nil {
		_, _ = b.Bot.Reply(m, err.Error(), tb.Silent, tb.NoPreview)
	} else {
		_, _ = b.Bot.Reply(m, fmt.Sprintf("Rejected user %v in group %v and removed them.", userID, groupID), tb.Silent, tb.NoPreview)
	}
}
