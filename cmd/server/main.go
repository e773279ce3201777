package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zerologlog "github.com/rs/zerolog/log"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/trickdraw/server/internal/classify/httpcls"
	"github.com/trickdraw/server/internal/config"
	"github.com/trickdraw/server/internal/game"
	"github.com/trickdraw/server/internal/store"
	"github.com/trickdraw/server/internal/vocab"
	"github.com/trickdraw/server/internal/ws"
	staticserver "github.com/trickdraw/server/static"
)

const version = "v1.0.0-dev"

func main() {
	var (
		showHelp    = flag.Bool("help", false, "Show help message")
		showVersion = flag.Bool("version", false, "Show version information")
		portFlag    = flag.String("port", "", "Port to listen on (overrides PORT env var)")
	)
	flag.BoolVar(showHelp, "h", false, "Show help message (shorthand)")
	flag.BoolVar(showVersion, "v", false, "Show version information (shorthand)")
	flag.Parse()

	if *showHelp {
		fmt.Printf(`TrickDraw - multiplayer drawing-and-guessing game server

Usage: %s [options]

Options:
  -h, --help      Show this help message
  -v, --version   Show version information
  --port PORT     Port to listen on (default: 8080 or PORT env var)

Environment Variables:
  PORT              Port to listen on (default: 8080)
  STORE_DRIVER      Document store backend: "memory" or "sqlite" (default: memory)
  SQLITE_PATH       Path to the sqlite database file (default: ./trickdraw.db)
  VOCAB_FILE        Label file overriding the embedded vocabulary
  CLASSIFIER_URL    HTTP inference service the bot guesses with
  BOT_ENABLED       Run the AI guesser in every game (default: true)
  BOT_NAME          Display name of the AI guesser (default: Sketchbot)
  BOT_THRESHOLD     Minimum classifier confidence to submit (default: 0.1)
  BOT_RATE_PER_SEC  Bot guess submissions per second (default: 1)
  ROUND_SECONDS     Round duration in seconds (default: 60)
  EXPORT_ENABLED    Append finished-round summaries to a file (default: false)
  EXPORT_FILE       Path of the results file (default: ./trickdraw-results.txt)

Visit http://localhost:8080 after starting the server.
`, os.Args[0])
		return
	}

	if *showVersion {
		fmt.Printf("TrickDraw %s\n", version)
		return
	}

	// .env is optional; real env vars win.
	_ = godotenv.Load()
	cfg := config.FromEnv()
	if *portFlag != "" {
		cfg.Port = *portFlag
	}

	// zerolog setup (human-friendly console)
	zerolog.TimeFieldFormat = time.RFC3339
	cw := zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	zerologlog.Logger = zerologlog.Output(cw)

	st, err := openStore(cfg)
	if err != nil {
		zerologlog.Fatal().Err(err).Msg("store init failed")
	}

	vp, err := loadVocab(cfg)
	if err != nil {
		zerologlog.Fatal().Err(err).Msg("vocabulary init failed")
	}
	zerologlog.Info().Int("labels", vp.Len()).Msg("vocabulary loaded")

	svc := game.NewService(st, vp)
	svc.SetRoundDuration(time.Duration(cfg.RoundSeconds) * time.Second)
	if cfg.ExportEnabled {
		svc.SetExportFile(cfg.ExportFile)
	}

	// Gin setup with custom logger (skip /socket.io noise)
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		path := c.Request.URL.Path
		if strings.HasPrefix(path, "/socket.io") {
			return
		}
		zerologlog.Info().
			Str("path", path).
			Int("status", c.Writer.Status()).
			Dur("dur", time.Since(start)).
			Msg("http")
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true, "time": time.Now().UTC()})
	})

	sock := ws.New(svc, cfg)
	if cfg.BotEnabled {
		sock.SetClassifier(httpcls.New(cfg.ClassifierURL))
	}
	io := sock.Mount(r)
	defer io.Close()

	// QR code for joining a game from a phone.
	r.GET("/api/games/:id/qr", func(c *gin.Context) {
		gameID := c.Param("id")
		if _, err := svc.GetGame(c.Request.Context(), gameID); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "game_not_found"})
			return
		}
		joinURL := "http://" + c.Request.Host + "/join/" + gameID
		png, err := qrcode.Encode(joinURL, qrcode.Medium, 256)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "qr_failed"})
			return
		}
		c.Data(http.StatusOK, "image/png", png)
	})

	// Serve frontend for all other routes
	r.NoRoute(func(c *gin.Context) {
		staticserver.Handler().ServeHTTP(c.Writer, c.Request)
	})

	zerologlog.Info().Str("port", cfg.Port).Str("store", cfg.StoreDriver).Msg("listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		zerologlog.Fatal().Err(err).Msg("server stopped")
	}
}

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "sqlite":
		return store.OpenSQLite(cfg.SQLitePath)
	case "memory", "":
		return store.NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func loadVocab(cfg config.Config) (*vocab.Provider, error) {
	if cfg.VocabFile != "" {
		return vocab.LoadFile(cfg.VocabFile)
	}
	return vocab.Load()
}
