package telegram

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"longentry-telegram-bot/internal/chart"
	"longentry-telegram-bot/internal/monitor"
	"longentry-telegram-bot/internal/price"
	"longentry-telegram-bot/internal/registry"
	"longentry-telegram-bot/internal/types"
	"longentry-telegram-bot/lib/helpers"
	"longentry-telegram-bot/lib/translation"
)

const lookupTimeout = 10 * time.Second

// NewBot creates new telegram bot
func NewBot(c BotConfig, reg *registry.Registry, source monitor.PriceSource, charts *price.BinanceSource) (*Bot, error) {
	bot, err := tgbotapi.NewBotAPI(c.Token)
	if err != nil {
		return nil, errors.Wrap(err, "could not create telegram bot")
	}

	bot.Debug = c.Debug

	return &Bot{
		Bot:      bot,
		Config:   c,
		registry: reg,
		source:   source,
		charts:   charts,
	}, nil
}

// GetUpdatesChannel gets new updates
func (b *Bot) GetUpdatesChannel() (tgbotapi.UpdatesChannel, error) {
	updatesConfig := tgbotapi.NewUpdate(0)
	if b.Config.UpdatesTimeout > 0 {
		updatesConfig.Timeout = b.Config.UpdatesTimeout
	}
	return b.Bot.GetUpdatesChan(updatesConfig), nil
}

// SendMessage sends a telegram message
func (b *Bot) SendMessage(m Message) error {
	msg := tgbotapi.NewMessage(m.ChatID, m.Text)
	msg.ReplyToMessageID = m.MessageID
	msg.DisableWebPagePreview = true
	msg.ParseMode = "MarkdownV2"
	_, err := b.Bot.Send(msg)
	return errors.Wrapf(err, "could not send message: %v", m)
}

// ParseArguments splits "SYMBOL 115000" into its symbol and value parts.
func ParseArguments(args string) (string, string) {
	re := regexp.MustCompile(`^(\S+)\s*(.+)?$`)
	matches := re.FindStringSubmatch(strings.TrimSpace(args))

	if len(matches) >= 2 {
		symbol := matches[1]
		value := ""
		if len(matches) == 3 {
			value = strings.TrimSpace(matches[2])
		}
		return symbol, value
	}
	return "", ""
}

// HandleUpdate processes Telegram updates
func (b *Bot) HandleUpdate(u tgbotapi.Update) string {
	if b.Config.Debug {
		log.Debug(spew.Sdump(u.Message))
	}
	log.Debugf("received command: %s", u.Message.Command())

	text := b.helpText()

	switch u.Message.Command() {
	case "start":
		text = b.startText()
	case "help":
		text = b.helpText()
	case "add":
		text = b.handleAdd(u.Message.Chat.ID, u.Message.CommandArguments())
	case "list":
		text = b.handleList(u.Message.Chat.ID)
	case "remove":
		return b.handleRemove(u)
	case "chart":
		return b.handleChart(u)
	}

	return text
}

func (b *Bot) startText() string {
	return "🎯 *Long Entry Alert Bot*\n\n" +
		"I watch your target levels and ping you when price drops into your entry zone\\.\n\n" +
		"*Commands:*\n" +
		"`/add BTCUSDT 115000` \\- set a target level\n" +
		"`/list` \\- show your active levels\n" +
		"`/remove BTCUSDT` \\- remove a level\n" +
		"`/chart BTCUSDT 1h` \\- recent price chart\n" +
		"`/help` \\- detailed help\n\n" +
		"Ready to catch those dips\\! 📉"
}

func (b *Bot) helpText() string {
	minutes := int(b.Config.CheckInterval.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return "📖 *How it works*\n\n" +
		"1\\. Add a target with `/add SYMBOL PRICE`\n" +
		fmt.Sprintf("2\\. I check prices every %d minutes\n", minutes) +
		"3\\. When price drops to or below your level you get one alert 🚨\n" +
		"4\\. The level is deleted after the alert \\(no spam\\)\n\n" +
		"🔸 Alerts fire only on the way *down* \\- made for long entries\n" +
		"🔸 One level per symbol, a new one replaces the old\n" +
		"🔸 Any Binance spot symbol works, e\\.g\\. `BTCUSDT`, `SOLUSDT`\n\n" +
		"*Other commands:*\n" +
		"`/list` \\- see all your targets\n" +
		"`/remove SYMBOL` \\- drop a target, or `/remove` to pick from a list\n" +
		"`/chart SYMBOL 4h` \\- price chart with your level drawn in"
}

func (b *Bot) handleAdd(chatID int64, args string) string {
	symbol, targetRaw := ParseArguments(args)
	if symbol == "" || targetRaw == "" {
		return "❌ *Invalid format\\!*\n\nUsage: `/add BTCUSDT 115000`"
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))

	target, err := strconv.ParseFloat(targetRaw, 64)
	if err != nil {
		return helpers.EscapeMarkdownV2(translation.Translate("Invalid price! Please enter a valid number."))
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	current, err := b.source.Lookup(ctx, symbol)
	if err != nil {
		log.Debugf("rejecting /add, no price for %s: %v", symbol, err)
		return fmt.Sprintf("❌ *Unknown symbol:* `%s`\n\nMake sure it trades on the configured exchange\\.", helpers.EscapeMarkdownV2(symbol))
	}

	level, isUpdate, prevPrice, err := b.registry.Upsert(chatID, symbol, target)
	switch err {
	case nil:
	case registry.ErrInvalidPrice:
		return helpers.EscapeMarkdownV2(translation.Translate("Invalid price! Please enter a valid number."))
	case registry.ErrEmptySymbol:
		return helpers.EscapeMarkdownV2(translation.Translate("Symbol must not be empty."))
	default:
		log.Errorf("upsert failed for chat %d: %v", chatID, err)
		return helpers.EscapeMarkdownV2(translation.Translate("An error occurred. Please try again."))
	}

	var sb strings.Builder
	if isUpdate {
		sb.WriteString(fmt.Sprintf(
			"🔄 *Level updated\\!*\n\n📊 *%s*\n🔸 Old target: $%s\n🔸 New target: $%s\n💰 Current: $%s",
			helpers.EscapeMarkdownV2(level.Symbol),
			helpers.FormatPriceUS(prevPrice, true),
			helpers.FormatPriceUS(level.TargetPrice, true),
			helpers.FormatPriceUS(current, true),
		))
	} else {
		distance := (target - current) / current * 100
		sb.WriteString(fmt.Sprintf(
			"✅ *Target level added\\!*\n\n📊 *%s*\n🎯 Target: $%s\n💰 Current: $%s\n📉 Distance: %s",
			helpers.EscapeMarkdownV2(level.Symbol),
			helpers.FormatPriceUS(level.TargetPrice, true),
			helpers.FormatPriceUS(current, true),
			helpers.FormatPercent(distance, true),
		))
	}

	if target >= current {
		sb.WriteString("\n\n⚠️ Target is at or above the current price\\. The alert still fires only when price drops to it\\.")
	} else {
		sb.WriteString(fmt.Sprintf(
			"\n\nI'll alert you when %s drops to $%s or below\\! 🚨",
			helpers.EscapeMarkdownV2(level.Symbol),
			helpers.FormatPriceUS(level.TargetPrice, true),
		))
	}
	return sb.String()
}

func (b *Bot) handleList(chatID int64) string {
	levels := b.registry.List(chatID)
	if len(levels) == 0 {
		return "📭 *No active levels\\!*\n\nAdd your first target with:\n`/add BTCUSDT 115000`"
	}

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📋 *Your target levels* \\(%d active\\)\n\n", len(levels)))

	for i, level := range levels {
		currentText := "N/A"
		distanceText := "N/A"
		statusEmoji := "❓"

		if current, err := b.source.Lookup(ctx, level.Symbol); err == nil {
			currentText = "$" + helpers.FormatPriceUS(current, false)
			distanceText = fmt.Sprintf("%+.2f%%", (level.TargetPrice-current)/current*100)
			if current <= level.TargetPrice {
				statusEmoji = "🚨"
			} else {
				statusEmoji = "👀"
			}
		}

		sb.WriteString(fmt.Sprintf(
			"%s *%d\\. %s*\n🎯 Target: $%s\n💰 Current: %s\n📊 Distance: %s\n📅 Added: %s\n\n",
			statusEmoji,
			i+1,
			helpers.EscapeMarkdownV2(level.Symbol),
			helpers.FormatPriceUS(level.TargetPrice, true),
			helpers.EscapeMarkdownV2(currentText),
			helpers.EscapeMarkdownV2(distanceText),
			helpers.EscapeMarkdownV2(humanize.Time(level.CreatedAt)),
		))
	}

	return sb.String()
}

func (b *Bot) handleRemove(u tgbotapi.Update) string {
	chatID := u.Message.Chat.ID
	args := strings.TrimSpace(u.Message.CommandArguments())

	if args != "" {
		symbol := strings.ToUpper(args)
		removed := b.registry.Remove(chatID, symbol)
		if removed == nil {
			return fmt.Sprintf("❌ No active level found for `%s`", helpers.EscapeMarkdownV2(symbol))
		}
		return fmt.Sprintf(
			"🗑 *Level removed*\n\nStopped watching %s @ $%s",
			helpers.EscapeMarkdownV2(removed.Symbol),
			helpers.FormatPriceUS(removed.TargetPrice, true),
		)
	}

	levels := b.registry.List(chatID)
	if len(levels) == 0 {
		return "📭 No levels to remove\\!"
	}

	var buttons [][]tgbotapi.InlineKeyboardButton
	for _, level := range levels {
		buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(
				fmt.Sprintf("%s @ $%s", level.Symbol, helpers.FormatPriceUS(level.TargetPrice, false)),
				"remove|"+level.Symbol,
			),
		))
	}
	buttons = append(buttons, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("❌ "+translation.Translate("Cancel"), "cancel"),
	))

	msg := tgbotapi.NewMessage(chatID, "🗑 *Select a level to remove:*")
	msg.ParseMode = "MarkdownV2"
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(buttons...)

	if _, err := b.Bot.Send(msg); err != nil {
		log.Errorf("failed to send removal keyboard: %v", err)
	}
	return ""
}

// HandleCallbackQuery handles the inline-keyboard buttons sent by /remove.
func (b *Bot) HandleCallbackQuery(callbackQuery *tgbotapi.CallbackQuery) {
	data := callbackQuery.Data
	chatID := callbackQuery.Message.Chat.ID
	messageID := callbackQuery.Message.MessageID

	switch {
	case data == "cancel":
		edit := tgbotapi.NewEditMessageText(chatID, messageID, translation.Translate("Cancelled."))
		if _, err := b.Bot.Send(edit); err != nil {
			log.Errorf("failed to edit message: %v", err)
		}
		b.Bot.Request(tgbotapi.NewCallback(callbackQuery.ID, ""))

	case strings.HasPrefix(data, "remove|"):
		symbol := strings.TrimPrefix(data, "remove|")
		removed := b.registry.Remove(chatID, symbol)

		text := translation.Translate("Level not found.")
		if removed != nil {
			text = fmt.Sprintf("🗑 Stopped watching %s @ $%s",
				removed.Symbol, helpers.FormatPriceUS(removed.TargetPrice, false))
		}
		edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
		if _, err := b.Bot.Send(edit); err != nil {
			log.Errorf("failed to edit message: %v", err)
		}
		b.Bot.Request(tgbotapi.NewCallback(callbackQuery.ID, ""))

	default:
		b.Bot.Request(tgbotapi.NewCallback(callbackQuery.ID, translation.Translate("Unknown action. Please try again.")))
	}
}

func (b *Bot) handleChart(u tgbotapi.Update) string {
	chatID := u.Message.Chat.ID
	symbol, interval := ParseArguments(u.Message.CommandArguments())
	if symbol == "" {
		return "❌ *Invalid format\\!*\n\nUsage: `/chart BTCUSDT 1h`"
	}
	symbol = strings.ToUpper(symbol)
	if interval == "" {
		interval = "1h"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	candles, err := b.charts.Klines(ctx, symbol, interval, 120)
	if err != nil {
		log.Debugf("chart data fetch failed for %s %s: %v", symbol, interval, err)
		return fmt.Sprintf("❌ No chart data for `%s` \\(%s\\)", helpers.EscapeMarkdownV2(symbol), helpers.EscapeMarkdownV2(interval))
	}

	// Overlay the user's own level when one is set for this symbol.
	var target float64
	for _, level := range b.registry.List(chatID) {
		if level.Symbol == symbol {
			target = level.TargetPrice
			break
		}
	}

	data, err := chart.Render(symbol, candles, target)
	if err != nil {
		log.Errorf("chart render failed for %s: %v", symbol, err)
		return helpers.EscapeMarkdownV2(translation.Translate("An error occurred. Please try again."))
	}

	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileBytes{
		Name:  "chart.png",
		Bytes: data,
	})
	photo.Caption = fmt.Sprintf("%s, last %d x %s", symbol, len(candles), interval)
	photo.ReplyToMessageID = u.Message.MessageID
	if _, err := b.Bot.Send(photo); err != nil {
		log.Errorf("error sending chart: %v", err)
	}
	return ""
}

// Notify implements monitor.Notifier: the one-shot target-hit alert.
func (b *Bot) Notify(chatID int64, level types.TargetLevel, currentPrice float64) error {
	var extraDrop float64
	if level.TargetPrice > 0 {
		extraDrop = (level.TargetPrice - currentPrice) / level.TargetPrice * 100
	}

	text := fmt.Sprintf(
		"🚨 *TARGET HIT\\!* 🚨\n\n"+
			"📊 *%s* dropped to your level\\!\n\n"+
			"🎯 Target: $%s\n"+
			"💰 Current: $%s\n"+
			"📉 Extra drop: %s below target\n\n"+
			"This level has been removed from monitoring\\. Add new levels with /add\\.",
		helpers.EscapeMarkdownV2(level.Symbol),
		helpers.FormatPriceUS(level.TargetPrice, true),
		helpers.FormatPriceUS(currentPrice, true),
		helpers.EscapeMarkdownV2(fmt.Sprintf("%.2f%%", math.Abs(extraDrop))),
	)

	return b.SendMessage(Message{ChatID: chatID, Text: text})
}
