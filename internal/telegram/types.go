package telegram

import (
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"longentry-telegram-bot/internal/monitor"
	"longentry-telegram-bot/internal/price"
	"longentry-telegram-bot/internal/registry"
)

// BotConfig configuration of the bot
type BotConfig struct {
	Token          string
	Debug          bool
	UpdatesTimeout int
	CheckInterval  time.Duration // surfaced in /help only
}

// Bot telegram interaction client
type Bot struct {
	Bot    *tgbotapi.BotAPI
	Config BotConfig

	registry *registry.Registry
	source   monitor.PriceSource
	charts   *price.BinanceSource // kline fetcher for /chart, independent of the live source
}

// Message a telegram message struct
type Message struct {
	ChatID    int64
	MessageID int
	Text      string
}
