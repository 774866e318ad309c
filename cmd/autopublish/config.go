package main

import (
	"time"

	"github.com/ecociel/autopublish/automation"
	"github.com/ecociel/autopublish/browser"
	"github.com/ecociel/autopublish/queue"
)

type Config struct {
	BackendUrl           string        `required:"true" split_words:"true"`
	BackendTimeout       time.Duration `split_words:"true" default:"10s"`
	PollInterval         time.Duration `split_words:"true" default:"10s"`
	CoolDown             time.Duration `split_words:"true" default:"5s"`
	HeartbeatInterval    time.Duration `split_words:"true" default:"15s"`
	SessionTimeout       time.Duration `split_words:"true" default:"60s"`
	StepTimeout          time.Duration `split_words:"true" default:"10s"`
	RedirectPollInterval time.Duration `split_words:"true" default:"1s"`
	RedirectPollAttempts int           `split_words:"true" default:"30"`
	ScanInterval         time.Duration `split_words:"true" default:"15s"`
	WatchUrls            []string      `split_words:"true" default:"https://sora.chatgpt.com/profile,https://sora.chatgpt.com/drafts"`
	WatchInterval        time.Duration `split_words:"true" default:"60s"`
	ChromeHeadless       bool          `split_words:"true" default:"false"`
	ChromeUserDataDir    string        `split_words:"true"`
	ChromeExecPath       string        `split_words:"true"`
	BlockMedia           bool          `split_words:"true" default:"false"`
	SelectorsFile        string        `split_words:"true"`
	ControlAddr          string        `split_words:"true" default:":8085"`
	MetricsAddr          string        `split_words:"true" default:":9090"`
	DbConnectionUri      string        `split_words:"true"`
	QueueHostPorts       []string      `split_words:"true"`
	EventsTopic          string        `split_words:"true" default:"autopublish.events"`
	RedisUrl             string        `split_words:"true"`
	OutboxInterval       time.Duration `split_words:"true" default:"5s"`
	OutboxLimit          int           `split_words:"true" default:"50"`
}

func (c Config) queue() queue.Config {
	return queue.Config{
		PollInterval:      c.PollInterval,
		HeartbeatInterval: c.HeartbeatInterval,
		CoolDown:          c.CoolDown,
		SessionTimeout:    c.SessionTimeout,
	}
}

func (c Config) automation() automation.Config {
	cfg := automation.DefaultConfig()
	cfg.StepTimeout = c.StepTimeout
	cfg.RedirectInterval = c.RedirectPollInterval
	cfg.RedirectAttempts = c.RedirectPollAttempts
	return cfg
}

func (c Config) browser() browser.Config {
	return browser.Config{
		Headless:    c.ChromeHeadless,
		UserDataDir: c.ChromeUserDataDir,
		ExecPath:    c.ChromeExecPath,
	}
}
