package command_handler

import (
	"github.com/nekomoe-dev/Gatekeeper/bot"
	"github.com/nekomoe-dev/Gatekeeper/pkg/log"
	"github.com/nekomoe-dev/Gatekeeper/service"
	tb "gopkg.in/tucnak/telebot.v2"
)

func init() {
	bot.RegisterCommands("gatekeeper", Gatekeeper)
}

// Gatekeeper toggles entry verification for the group the command was sent
// in. Non-admins are told to ask an admin.
func Gatekeeper(b *bot.Bot, m *tb.Message, params []string) {
	if m.Private() {
		_, _ = b.Bot.Reply(m, "Send /gatekeeper inside the group you want to toggle.", tb.Silent, tb.NoPreview)
		return
	}
	if !b.Engine.IsAdmin(int64(m.Sender.ID)) {
		_, _ = b.Bot.Reply(m, "Only an admin can toggle entry verification.", tb.Silent, tb.NoPreview)
		return
	}
	enabled, err := service.ToggleEnabled(m.Chat.ID)
	if err != nil {
		_, _ = b.Bot.Reply(m, err.Error(), tb.Silent, tb.NoPreview)
		return
	}
	log.Info("Gatekeeper: admin %v toggled group %v to %v", m.Sender.ID, m.Chat.ID, enabled)
	if enabled {
		_, _ = b.Bot.Reply(m, "Entry verification is now ON for this group.", tb.Silent, tb.NoPreview)
	} else {
		_, _ = b.Bot.Reply(m, "Entry verification is now OFF for this group.", tb.Silent, tb.NoPreview)
	}
}
