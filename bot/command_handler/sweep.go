package command_handler

import (
	"strconv"

	"github.com/nekomoe-dev/Gatekeeper/bot"
	"github.com/nekomoe-dev/Gatekeeper/pkg/log"
	tb "gopkg.in/tucnak/telebot.v2"
)

func init() {
	bot.RegisterCommands("sweep", Sweep)
}

// Sweep runs the escalation scanner on demand: "/sweep <group_id>" for one
// group, "/sweep" or "/sweep all" for every group with pending members.
func Sweep(b *bot.Bot, m *tb.Message, params []string) {
	if !b.Engine.IsAdmin(int64(m.Sender.ID)) {
		return
	}
	var acted bool
	var err error
	if len(params) == 0 || params[0] == "all" {
		log.Info("Sweep: admin %v sweeps all groups", m.Sender.ID)
		acted, err = b.Engine.SweepAll()
	} else {
		groupID, perr := strconv.ParseInt(params[0], 10, 64)
		if perr != nil {
			_, _ = b.Bot.Reply(m, "Invalid sweep params. Format:\n/sweep [<group_id>|all]", tb.Silent, tb.NoPreview)
			return
		}
		log.Info("Sweep: admin %v sweeps group %v", m.Sender.ID, groupID)
		acted, err = b.Engine.Sweep(groupID)
	}
	if err != nil {
		_, _ = b.Bot.Reply(m, err.Error(), tb.Silent, tb.NoPreview)
		return
	}
	if acted {
		_, _ = b.Bot.Reply(m, "Sweep finished; warnings or removals were issued.", tb.Silent, tb.NoPreview)
	} else {
		_, _ = b.Bot.Reply(m, "Sweep finished; nothing to do.", tb.Silent, tb.NoPreview)
	}
}
