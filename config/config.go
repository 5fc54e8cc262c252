package config

import (
	"sync"

	"github.com/spf13/viper"
)

var once sync.Once

func InitConfig() {
	once.Do(func() {
		viper.AutomaticEnv()

		viper.BindEnv("metrics_port", "METRICS_PORT")
		viper.BindEnv("telegram_bot_token", "TELEGRAM_BOT_TOKEN")
		viper.BindEnv("api_pro_key", "API_PRO_KEY")
		viper.BindEnv("debug", "DEBUG")
		viper.BindEnv("lang", "BOT_LANG")
		viper.BindEnv("db_path", "DB_PATH")
		viper.BindEnv("price_source", "PRICE_SOURCE")
		viper.BindEnv("binance_api_url", "BINANCE_API_URL")
		viper.BindEnv("check_interval_seconds", "CHECK_INTERVAL_SECONDS")
		viper.BindEnv("error_cooldown_seconds", "ERROR_COOLDOWN_SECONDS")

		viper.SetDefault("metrics_port", 9090)
		viper.SetDefault("debug", false)
		viper.SetDefault("lang", "en")
		viper.SetDefault("db_path", "./bot.db")
		viper.SetDefault("price_source", "binance")
		viper.SetDefault("binance_api_url", "https://api.binance.com")
		viper.SetDefault("check_interval_seconds", 300)
		viper.SetDefault("error_cooldown_seconds", 60)
	})
}

func GetString(key string) string {
	InitConfig()
	return viper.GetString(key)
}

func GetInt(key string) int {
	InitConfig()
	return viper.GetInt(key)
}

func GetBool(key string) bool {
	InitConfig()
	return viper.GetBool(key)
}
