package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port          string
	StoreDriver   string // "memory" or "sqlite"
	SQLitePath    string
	VocabFile     string // optional override of the embedded label list
	ClassifierURL string
	BotEnabled    bool
	BotName       string
	BotThreshold  float64
	BotRatePerSec float64
	RoundSeconds  int
	ExportEnabled bool
	ExportFile    string
}

func FromEnv() Config {
	c := Config{}
	c.Port = getenv("PORT", "8080")
	c.StoreDriver = getenv("STORE_DRIVER", "memory")
	c.SQLitePath = getenv("SQLITE_PATH", "./trickdraw.db")
	c.VocabFile = os.Getenv("VOCAB_FILE")
	c.ClassifierURL = os.Getenv("CLASSIFIER_URL")
	c.BotEnabled = getenv("BOT_ENABLED", "true") == "true"
	c.BotName = getenv("BOT_NAME", "Sketchbot")
	c.BotThreshold = getfloat("BOT_THRESHOLD", 0.1)
	c.BotRatePerSec = getfloat("BOT_RATE_PER_SEC", 1)
	c.RoundSeconds = getint("ROUND_SECONDS", 60)
	c.ExportEnabled = getenv("EXPORT_ENABLED", "false") == "true"
	c.ExportFile = getenv("EXPORT_FILE", "./trickdraw-results.txt")
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
