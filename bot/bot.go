package bot

import (
	"strconv"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/nekomoe-dev/Gatekeeper/common"
	"github.com/nekomoe-dev/Gatekeeper/config"
	"github.com/nekomoe-dev/Gatekeeper/pkg/log"
	"github.com/nekomoe-dev/Gatekeeper/service"
	tb "gopkg.in/tucnak/telebot.v2"
)

// Bot adapts telebot to the service.Gateway the engine drives. All event
// handlers route into the engine; the bot itself holds no verification
// state.
type Bot struct {
	Bot    *tb.Bot
	Engine *service.Engine
}

type CommandHandler func(b *Bot, m *tb.Message, params []string)

var GlobalCommandMapper = make(map[string]CommandHandler)

func RegisterCommands(command string, f CommandHandler) {
	GlobalCommandMapper[command] = f
}

func New(token string, poller *tb.LongPoller) (*Bot, error) {
	if poller == nil {
		poller = &tb.LongPoller{Timeout: 15 * time.Second}
	}
	b, err := tb.NewBot(tb.Settings{
		Token:  token,
		Poller: poller,
	})
	if err != nil {
		return nil, err
	}
	bot := &Bot{
		Bot: b,
	}
	conf := config.GetConfig()
	bot.Engine = service.NewEngine(bot, service.Policy{
		MuteDuration:  time.Duration(conf.MuteSeconds) * time.Second,
		MaxAttempts:   conf.MaxAttempts,
		WarningLimit:  conf.WarningLimit,
		SuccessRecall: time.Duration(conf.SuccessRecallSec) * time.Second,
		SweepGap:      time.Duration(conf.SweepGapSeconds) * time.Second,
		Admins:        conf.Admins,
	})

	b.Handle(tb.OnUserJoined, func(m *tb.Message) {
		for _, u := range joinedUsers(m) {
			if u.IsBot {
				continue
			}
			if err := bot.Engine.HandleJoin(m.Chat.ID, int64(u.ID)); err != nil {
				log.Warn("OnUserJoined: %v", err)
			}
		}
	})
	b.Handle(tb.OnUserLeft, func(m *tb.Message) {
		if m.UserLeft == nil {
			return
		}
		if err := bot.Engine.HandleLeave(m.Chat.ID, int64(m.UserLeft.ID)); err != nil {
			log.Warn("OnUserLeft: %v", err)
		}
	})
	b.Handle(tb.OnText, func(m *tb.Message) {
		if command, params, ok := parseCommand(m.Text); ok {
			if handler, ok := GlobalCommandMapper[command]; ok {
				handler(bot, m, params)
			}
			return
		}
		if m.Private() {
			if _, err := bot.Engine.HandleDirectText(int64(m.Sender.ID), m.Text); err != nil {
				log.Warn("OnText: direct: %v", err)
			}
			return
		}
		if _, err := bot.Engine.HandleGroupText(m.Chat.ID, int64(m.Sender.ID), m.ID); err != nil {
			log.Warn("OnText: group: %v", err)
		}
	})
	return bot, nil
}

func (b *Bot) Start() {
	b.Bot.Start()
}

func joinedUsers(m *tb.Message) []tb.User {
	if len(m.UsersJoined) > 0 {
		return m.UsersJoined
	}
	if m.UserJoined != nil {
		return []tb.User{*m.UserJoined}
	}
	return nil
}

// parseCommand splits "/approve@SomeBot 1 2" into ("approve", ["1","2"]).
func parseCommand(text string) (command string, params []string, ok bool) {
	if !strings.HasPrefix(text, "/") || len(text) <= 1 {
		return "", nil, false
	}
	fields := strings.Fields(strings.TrimPrefix(text, "/"))
	if len(fields) == 0 {
		return "", nil, false
	}
	command = fields[0]
	if i := strings.IndexByte(command, '@'); i >= 0 {
		command = command[:i]
	}
	return command, fields[1:], true
}

func (b *Bot) ChatIdentifier(c *tb.Chat) string {
	strChatID := strconv.FormatInt(c.ID, 10)
	return common.StringToUUID5(strChatID)
}

// Mute implements service.Gateway. A non-positive duration restores the
// default member rights.
func (b *Bot) Mute(groupID, userID int64, duration time.Duration) error {
	member := &tb.ChatMember{
		User: &tb.User{ID: userID},
	}
	if duration > 0 {
		member.Rights = tb.Rights{}
		member.RestrictedUntil = time.Now().Add(duration).Unix()
	} else {
		member.Rights = tb.Rights{
			CanSendMessages: true,
			CanSendMedia:    true,
			CanSendPolls:    true,
			CanSendOther:    true,
			CanAddPreviews:  true,
		}
		member.RestrictedUntil = tb.Forever()
	}
	return b.Bot.Restrict(&tb.Chat{ID: groupID}, member)
}

// Kick removes the member but lifts the ban right away so a rejoin stays
// possible.
func (b *Bot) Kick(groupID, userID int64) error {
	chat := &tb.Chat{ID: groupID}
	user := &tb.User{ID: userID}
	if err := b.Bot.Ban(chat, &tb.ChatMember{User: user}); err != nil {
		return err
	}
	if err := b.Bot.Unban(chat, user); err != nil {
		log.Info("Kick: unban user %v in group %v: %v", userID, groupID, err)
	}
	return nil
}

func (b *Bot) DeleteMessage(groupID int64, messageID int) error {
	return b.Bot.Delete(&tb.StoredMessage{
		MessageID: strconv.Itoa(messageID),
		ChatID:    groupID,
	})
}

func (b *Bot) SendGroupMessage(groupID int64, text string) (token string, err error) {
	m, err := b.Bot.Send(&tb.Chat{ID: groupID}, text, tb.ModeMarkdown, tb.Silent, tb.NoPreview)
	if err != nil {
		return "", err
	}
	token, err = gonanoid.New()
	if err != nil {
		return "", err
	}
	// report the transport message id against the token asynchronously;
	// the engine parks early acks until the token is registered
	go b.Engine.HandleSendAck(token, groupID, m.ID)
	return token, nil
}

func (b *Bot) SendDirectMessage(userID int64, text string) (token string, err error) {
	m, err := b.Bot.Send(&tb.User{ID: userID}, text, tb.Silent, tb.NoPreview)
	if err != nil {
		return "", err
	}
	token, err = gonanoid.New()
	if err != nil {
		return "", err
	}
	go b.Engine.HandleSendAck(token, userID, m.ID)
	return token, nil
}
