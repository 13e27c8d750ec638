package main

import (
	"github.com/nekomoe-dev/Gatekeeper/bot"
	_ "github.com/nekomoe-dev/Gatekeeper/bot/command_handler"
	"github.com/nekomoe-dev/Gatekeeper/config"
	"github.com/nekomoe-dev/Gatekeeper/pkg/log"
	"github.com/nekomoe-dev/Gatekeeper/webserver/router"
)

func main() {
	conf := config.GetConfig()
	b, err := bot.New(conf.BotToken, nil)
	if err != nil {
		log.Fatal("bot: %v", err)
	}
	go func() {
		if err := router.Run(b.Engine); err != nil {
			log.Fatal("webserver: %v", err)
		}
	}()
	GoBackgrounds(b.Engine)
	b.Start()
}
