package main

import (
	"bytes"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/leonelquinteros/gotext"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	log "github.com/sirupsen/logrus"

	"longentry-telegram-bot/config"
	"longentry-telegram-bot/internal/database"
	"longentry-telegram-bot/internal/monitor"
	"longentry-telegram-bot/internal/price"
	"longentry-telegram-bot/internal/registry"
	"longentry-telegram-bot/internal/telegram"
)

type BotMetrics struct {
	CommandsProcessed prometheus.Counter
	MessagesHandled   prometheus.Counter
	LevelsActive      prometheus.Gauge
	ScansTotal        prometheus.Counter
	AlertsTriggered   prometheus.Counter
	FetchFailures     prometheus.Counter
}

var (
	metrics = NewBotMetrics()
)

func init() {
	_ = godotenv.Load()
	config.InitConfig()
	setupLogging()
}

func NewBotMetrics() *BotMetrics {
	metrics := &BotMetrics{
		CommandsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "longentry",
			Subsystem: "telegram_bot",
			Name:      "commands_processed",
			Help:      "The total number of processed commands",
		}),
		MessagesHandled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "longentry",
			Subsystem: "telegram_bot",
			Name:      "messages_handled",
			Help:      "The total number of handled messages",
		}),
		LevelsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "longentry",
			Subsystem: "telegram_bot",
			Name:      "levels_active",
			Help:      "The current number of pending target levels",
		}),
		ScansTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "longentry",
			Subsystem: "telegram_bot",
			Name:      "scans_total",
			Help:      "The total number of monitor scans run",
		}),
		AlertsTriggered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "longentry",
			Subsystem: "telegram_bot",
			Name:      "alerts_triggered",
			Help:      "The total number of target levels that fired an alert",
		}),
		FetchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "longentry",
			Subsystem: "telegram_bot",
			Name:      "price_fetch_failures",
			Help:      "The total number of price lookups that came back unavailable",
		}),
	}

	prometheus.MustRegister(metrics.CommandsProcessed)
	prometheus.MustRegister(metrics.MessagesHandled)
	prometheus.MustRegister(metrics.LevelsActive)
	prometheus.MustRegister(metrics.ScansTotal)
	prometheus.MustRegister(metrics.AlertsTriggered)
	prometheus.MustRegister(metrics.FetchFailures)

	return metrics
}

func main() {
	gotext.Configure("locales", strings.ToLower(config.GetString("lang")), "default")

	if err := database.InitDB(config.GetString("db_path")); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.CloseDB()

	LoadMetricsFromDB()

	reg := registry.New()
	source := buildPriceSource()
	charts := price.NewBinanceSource(config.GetString("binance_api_url"))

	interval := time.Duration(config.GetInt("check_interval_seconds")) * time.Second
	cooldown := time.Duration(config.GetInt("error_cooldown_seconds")) * time.Second

	bot, err := telegram.NewBot(telegram.BotConfig{
		Token:          config.GetString("telegram_bot_token"),
		Debug:          config.GetBool("debug"),
		UpdatesTimeout: 60,
		CheckInterval:  interval,
	}, reg, source, charts)
	if err != nil {
		log.Fatalf("Failed to create bot: %v", err)
	}

	mon := monitor.New(reg, source, bot, interval, cooldown)
	mon.SetMetrics(monitor.Metrics{
		Scans:           metrics.ScansTotal,
		AlertsTriggered: metrics.AlertsTriggered,
		FetchFailures:   metrics.FetchFailures,
	})
	mon.Start()

	updates, err := bot.GetUpdatesChannel()
	if err != nil {
		log.Fatalf("Failed to get updates channel: %v", err)
	}

	go handleUpdates(bot, updates)

	go func() {
		for {
			time.Sleep(15 * time.Second)
			metrics.LevelsActive.Set(float64(reg.Count()))
		}
	}()

	go func() {
		for {
			time.Sleep(5 * time.Minute)
			SaveMetricsToDB()
		}
	}()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		SaveMetricsToDB()
		log.Println("Metrics saved, shutting down...")
		os.Exit(0)
	}()

	if err := launchMetricsAndHealthServer(config.GetInt("metrics_port"), mon); err != nil {
		log.Fatalf("Failed to start metrics and health server: %v", err)
	}
}

func setupLogging() {
	log.SetLevel(log.ErrorLevel)
	if config.GetBool("debug") {
		log.SetLevel(log.DebugLevel)
	}
	log.Debug("Starting long-entry alert bot...")
}

func buildPriceSource() monitor.PriceSource {
	switch config.GetString("price_source") {
	case "coinpaprika":
		s := price.NewPaprikaSource(config.GetString("api_pro_key"))
		s.Start()
		return s
	case "stream":
		s := price.NewStreamSource("")
		s.Start()
		return s
	default:
		return price.NewBinanceSource(config.GetString("binance_api_url"))
	}
}

func handleUpdates(bot *telegram.Bot, updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		if update.CallbackQuery != nil {
			bot.HandleCallbackQuery(update.CallbackQuery)
			continue
		}

		if update.Message == nil {
			log.Debug("Received non-message or non-command")
			continue
		}

		if !update.Message.IsCommand() {
			continue
		}

		metrics.MessagesHandled.Inc()
		handleCommand(bot, update)
	}
}

func handleCommand(bot *telegram.Bot, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			stackBuf := make([]byte, 1024)
			stackSize := runtime.Stack(stackBuf, false)
			stackTrace := bytes.TrimRight(stackBuf[:stackSize], "\x00")
			log.Errorf("Recovered from panic: %v\nStack trace: %s", r, stackTrace)
		}
	}()

	text := bot.HandleUpdate(update)
	if text == "" {
		metrics.CommandsProcessed.Inc()
		return
	}

	err := bot.SendMessage(telegram.Message{
		ChatID:    update.Message.Chat.ID,
		Text:      text,
		MessageID: update.Message.MessageID,
	})

	if err != nil {
		log.Errorf("Failed to send message: %v", err)
	} else {
		metrics.CommandsProcessed.Inc()
	}
}

func healthCheckHandler(mon *monitor.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK monitor=%s", mon.State())
	}
}

func launchMetricsAndHealthServer(port int, mon *monitor.Monitor) error {
	http.Handle("/metrics", promhttp.Handler())
	http.HandleFunc("/health", healthCheckHandler(mon))

	log.Infof("Launching metrics and health endpoint on :%d", port)
	return http.ListenAndServe(fmt.Sprintf(":%d", port), http.DefaultServeMux)
}

func LoadMetricsFromDB() {
	commandsProcessed, _ := database.GetMetric("commands_processed")
	messagesHandled, _ := database.GetMetric("messages_handled")
	alertsTriggered, _ := database.GetMetric("alerts_triggered")
	scansTotal, _ := database.GetMetric("scans_total")

	metrics.CommandsProcessed.Add(commandsProcessed)
	metrics.MessagesHandled.Add(messagesHandled)
	metrics.AlertsTriggered.Add(alertsTriggered)
	metrics.ScansTotal.Add(scansTotal)

	log.Println("Metrics loaded from database.")
}

func SaveMetricsToDB() {
	database.SaveMetric("commands_processed", GetMetricValue(metrics.CommandsProcessed))
	database.SaveMetric("messages_handled", GetMetricValue(metrics.MessagesHandled))
	database.SaveMetric("alerts_triggered", GetMetricValue(metrics.AlertsTriggered))
	database.SaveMetric("scans_total", GetMetricValue(metrics.ScansTotal))

	log.Println("Metrics saved to database.")
}

func GetMetricValue(metric prometheus.Collector) float64 {
	var metricValue float64
	metricChan := make(chan prometheus.Metric, 1)
	metric.Collect(metricChan)
	close(metricChan)

	metricProto := &dto.Metric{}
	if err := (<-metricChan).Write(metricProto); err != nil {
		log.Printf("Failed to read metric value: %v", err)
		return 0
	}

	if metricProto.Counter != nil {
		metricValue = metricProto.Counter.GetValue()
	} else if metricProto.Gauge != nil {
		metricValue = metricProto.Gauge.GetValue()
	}
	return metricValue
}
