package config

import (
	log2 "log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/nekomoe-dev/Gatekeeper/common"
	"github.com/nekomoe-dev/Gatekeeper/db"
	"github.com/nekomoe-dev/Gatekeeper/pkg/log"
	"github.com/stevenroose/gonfig"
)

type Params struct {
	Address             string  `id:"address" short:"a" default:"0.0.0.0:14915" desc:"Listening address of the admin API"`
	Config              string  `id:"config" short:"c" default:"$HOME/.config/gatekeeper" desc:"Gatekeeper configuration directory"`
	BotToken            string  `id:"bot-token" desc:"Telegram bot token"`
	Admins              []int64 `id:"admin" desc:"User ids allowed to approve, reject and sweep"`
	MuteSeconds         int64   `id:"mute-seconds" default:"1800" desc:"Seconds a new member stays muted while unverified"`
	MaxAttempts         int     `id:"max-attempts" default:"3" desc:"Answer attempts before the member is removed"`
	WarningLimit        int     `id:"warning-limit" default:"4" desc:"Sweep warnings before the member is queued for removal"`
	SweepIntervalMin    int64   `id:"sweep-interval-min" default:"30" desc:"Minutes between periodic sweeps over all groups; 0 disables"`
	SweepGapSeconds     int64   `id:"sweep-gap-seconds" default:"3" desc:"Pacing delay between groups during a full sweep"`
	RetentionHours      int64   `id:"retention-hours" default:"24" desc:"Hours to keep records that reached a terminal status"`
	SuccessRecallSec    int64   `id:"success-recall-seconds" default:"120" desc:"Delay before the pass notice is recalled"`
	LogLevel            string  `id:"log-level" default:"info" desc:"Optional values: trace, debug, info, warn or error"`
	LogFile             string  `id:"log-file" desc:"The path of log file"`
	LogMaxDays          int64   `id:"log-max-days" default:"3" desc:"Maximum number of days to keep log files"`
	LogDisableColor     bool    `id:"log-disable-color"`
	LogDisableTimestamp bool    `id:"log-disable-timestamp"`
}

var params Params

func initFunc() {
	err := gonfig.Load(&params, gonfig.Conf{
		FileDisable:       true,
		FlagIgnoreUnknown: false,
		EnvPrefix:         "GATEKEEPER_",
	})
	if err != nil {
		if !strings.HasPrefix(err.Error(), "unexpected word while parsing flags: '-test.") {
			log2.Fatal(err)
		}
	}
	// replace all dots of the filename with underlines
	params.Config = filepath.Join(
		filepath.Dir(params.Config),
		strings.ReplaceAll(filepath.Base(params.Config), ".", "_"),
	)
	// expand '~' with user home
	params.Config, err = common.HomeExpand(params.Config)
	if err != nil {
		log2.Fatal(err)
	}
	params.LogFile, err = common.HomeExpand(params.LogFile)
	if err != nil {
		log2.Fatal(err)
	}
	if strings.Contains(params.Config, "$HOME") {
		if h, err := os.UserHomeDir(); err == nil {
			params.Config = strings.ReplaceAll(params.Config, "$HOME", h)
		}
	}
	if err := os.MkdirAll(params.Config, 0700); err != nil {
		log2.Fatal(err)
	}
	logWay := "console"
	if params.LogFile != "" {
		logWay = "file"
	}
	log.InitLog(logWay, params.LogFile, params.LogLevel, params.LogMaxDays, params.LogDisableColor, params.LogDisableTimestamp)
	db.InitDB(params.Config)
}

var once sync.Once

func GetConfig() *Params {
	once.Do(initFunc)
	return &params
}
