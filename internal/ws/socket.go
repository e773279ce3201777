// Package ws is the live session gateway: socket.io intents in, document
// subscriptions fanned out to game rooms.
package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	socketio "github.com/googollee/go-socket.io"
	"github.com/rs/zerolog/log"

	"github.com/trickdraw/server/internal/bot"
	"github.com/trickdraw/server/internal/classify"
	"github.com/trickdraw/server/internal/config"
	"github.com/trickdraw/server/internal/game"
	"github.com/trickdraw/server/internal/store"
)

// ConnCtx is the per-connection identity set on join/create.
type ConnCtx struct {
	GameID string
	Player game.Player
	IsHost bool
}

type Server struct {
	svc        *game.Service
	cfg        config.Config
	classifier classify.Classifier
	io         *socketio.Server

	mu       sync.Mutex
	members  map[string]map[string]socketio.Conn // gameID -> socketID -> Conn
	watchers map[string]context.CancelFunc
}

func New(svc *game.Service, cfg config.Config) *Server {
	return &Server{
		svc:      svc,
		cfg:      cfg,
		members:  make(map[string]map[string]socketio.Conn),
		watchers: make(map[string]context.CancelFunc),
	}
}

// SetClassifier wires the drawing classifier the bot guesses with. Without
// one the bot is not started even if enabled.
func (srv *Server) SetClassifier(c classify.Classifier) { srv.classifier = c }

// Mount attaches the Socket.IO server with handlers to the given Gin engine.
func (srv *Server) Mount(r *gin.Engine) *socketio.Server {
	io := socketio.NewServer(nil)
	srv.io = io

	io.OnConnect("/", func(s socketio.Conn) error {
		s.SetContext(&ConnCtx{})
		log.Info().Str("sid", s.ID()).Msg("socket connected")
		return nil
	})

	// game:create
	io.OnEvent("/", "game:create", func(s socketio.Conn, payload struct {
		Name string `json:"name"`
	}) map[string]any {
		player := game.Player{ID: uuid.NewString(), Name: payload.Name}
		gameID, err := srv.svc.CreateGame(context.Background(), player)
		if err != nil {
			return srv.err(s, err)
		}
		s.SetContext(&ConnCtx{GameID: gameID, Player: player, IsHost: true})
		s.Join(gameID)
		srv.addMember(gameID, s)
		log.Info().Str("sid", s.ID()).Str("gameId", gameID).Msg("game:create")
		return map[string]any{"gameId": gameID, "playerId": player.ID}
	})

	// game:join
	io.OnEvent("/", "game:join", func(s socketio.Conn, payload struct {
		GameID string `json:"gameId"`
		Name   string `json:"name"`
	}) map[string]any {
		player := game.Player{ID: uuid.NewString(), Name: payload.Name}
		if err := srv.svc.JoinGame(context.Background(), payload.GameID, player); err != nil {
			return srv.err(s, err)
		}
		s.SetContext(&ConnCtx{GameID: payload.GameID, Player: player})
		s.Join(payload.GameID)
		srv.addMember(payload.GameID, s)
		log.Info().Str("sid", s.ID()).Str("gameId", payload.GameID).Str("playerId", player.ID).Msg("game:join")
		return map[string]any{"playerId": player.ID}
	})

	// game:ready
	io.OnEvent("/", "game:ready", func(s socketio.Conn) map[string]any {
		ctx := s.Context().(*ConnCtx)
		if err := srv.svc.ReadyUp(context.Background(), ctx.GameID, ctx.Player.ID); err != nil {
			return srv.err(s, err)
		}
		return map[string]any{"ok": true}
	})

	// game:start / game:reset are the same transition; reset just re-enters
	// it mid-round.
	startRound := func(s socketio.Conn, event string) map[string]any {
		ctx := s.Context().(*ConnCtx)
		if err := srv.svc.StartRound(context.Background(), ctx.GameID, ctx.Player.ID); err != nil {
			return srv.err(s, err)
		}
		log.Info().Str("gameId", ctx.GameID).Msg(event)
		return map[string]any{"ok": true}
	}
	io.OnEvent("/", "game:start", func(s socketio.Conn) map[string]any {
		return startRound(s, "game:start")
	})
	io.OnEvent("/", "game:reset", func(s socketio.Conn) map[string]any {
		return startRound(s, "game:reset")
	})

	// game:drawing
	io.OnEvent("/", "game:drawing", func(s socketio.Conn, payload struct {
		Drawing []byte `json:"drawing"`
	}) map[string]any {
		ctx := s.Context().(*ConnCtx)
		if err := srv.svc.UpdateDrawing(context.Background(), ctx.GameID, ctx.Player.ID, payload.Drawing); err != nil {
			return srv.err(s, err)
		}
		return map[string]any{"ok": true}
	})

	// game:guess
	io.OnEvent("/", "game:guess", func(s socketio.Conn, payload struct {
		Guess string `json:"guess"`
	}) map[string]any {
		ctx := s.Context().(*ConnCtx)
		g, accepted, err := srv.svc.SubmitGuessByPlayer(context.Background(), ctx.GameID, ctx.Player, payload.Guess)
		if err != nil {
			return srv.err(s, err)
		}
		log.Info().Str("gameId", ctx.GameID).Str("playerId", ctx.Player.ID).Bool("accepted", accepted).Msg("game:guess")
		return map[string]any{"accepted": accepted, "isCorrect": accepted && g.IsCorrect}
	})

	// game:finish
	io.OnEvent("/", "game:finish", func(s socketio.Conn) map[string]any {
		ctx := s.Context().(*ConnCtx)
		if err := srv.svc.FinishGame(context.Background(), ctx.GameID, ctx.Player.ID); err != nil {
			return srv.err(s, err)
		}
		return map[string]any{"ok": true}
	})

	io.OnError("/", func(s socketio.Conn, e error) {
		log.Error().Str("sid", s.ID()).Err(e).Msg("socket error")
	})
	io.OnDisconnect("/", func(s socketio.Conn, reason string) {
		if ctx, ok := s.Context().(*ConnCtx); ok && ctx.GameID != "" {
			srv.removeMember(ctx.GameID, s)
		}
		log.Info().Str("sid", s.ID()).Str("reason", reason).Msg("socket disconnected")
	})

	go io.Serve()

	r.GET("/socket.io/*any", gin.WrapH(io))
	r.POST("/socket.io/*any", gin.WrapH(io))
	r.OPTIONS("/socket.io/*any", func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		c.Status(http.StatusNoContent)
	})

	return io
}

func (srv *Server) addMember(gameID string, c socketio.Conn) {
	srv.mu.Lock()
	if srv.members[gameID] == nil {
		srv.members[gameID] = make(map[string]socketio.Conn)
	}
	srv.members[gameID][c.ID()] = c
	first := len(srv.members[gameID]) == 1
	if first && srv.watchers[gameID] == nil {
		ctx, cancel := context.WithCancel(context.Background())
		srv.watchers[gameID] = cancel
		go srv.watch(ctx, gameID)
		if srv.cfg.BotEnabled && srv.classifier != nil {
			go srv.runBot(ctx, gameID)
		}
	}
	srv.mu.Unlock()
}

func (srv *Server) removeMember(gameID string, c socketio.Conn) {
	srv.mu.Lock()
	if m := srv.members[gameID]; m != nil {
		delete(m, c.ID())
		if len(m) == 0 {
			delete(srv.members, gameID)
			if cancel := srv.watchers[gameID]; cancel != nil {
				cancel()
				delete(srv.watchers, gameID)
			}
		}
	}
	srv.mu.Unlock()
}

// watch fans the game's three live documents out to the room until the
// last member leaves.
func (srv *Server) watch(ctx context.Context, gameID string) {
	gameSub, err := srv.svc.WatchGame(ctx, gameID)
	if err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("watch game")
		return
	}
	defer gameSub.Close()
	roundSub, err := srv.svc.WatchRound(ctx, gameID)
	if err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("watch round")
		return
	}
	defer roundSub.Close()
	scoreSub, err := srv.svc.WatchScores(ctx, gameID)
	if err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("watch scores")
		return
	}
	defer scoreSub.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case snap := <-gameSub.C():
			srv.broadcastDoc(gameID, "game:state", snap, &game.Game{})
		case snap := <-roundSub.C():
			srv.broadcastDoc(gameID, "round:state", snap, &game.GuessInfo{})
		case snap := <-scoreSub.C():
			srv.broadcastDoc(gameID, "scores:state", snap, &game.Scoreboard{})
		}
	}
}

func (srv *Server) broadcastDoc(gameID, event string, snap store.Snapshot, out any) {
	if !snap.Exists {
		return
	}
	if err := snap.Decode(out); err != nil {
		log.Error().Err(err).Str("gameId", gameID).Str("event", event).Msg("bad document")
		return
	}
	srv.io.BroadcastToRoom("/", gameID, event, out)
}

// runBot joins the AI player to the game and keeps it guessing until the
// room's watcher context is cancelled.
func (srv *Server) runBot(ctx context.Context, gameID string) {
	player := game.Player{ID: "bot:" + gameID, Name: srv.cfg.BotName}
	if err := srv.svc.JoinGame(ctx, gameID, player); err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("bot join failed")
		return
	}
	g := bot.New(srv.svc, srv.classifier, player, srv.cfg.BotThreshold, srv.cfg.BotRatePerSec)
	if err := g.Run(ctx, gameID); err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Str("gameId", gameID).Msg("bot stopped")
	}
}

func (srv *Server) err(s socketio.Conn, err error) map[string]any {
	code := errCode(err)
	s.Emit("error", map[string]any{"code": code, "message": err.Error()})
	return map[string]any{"error": code}
}

func errCode(err error) string {
	switch {
	case errors.Is(err, game.ErrNotHost):
		return "not_host"
	case errors.Is(err, game.ErrNotArtist):
		return "not_artist"
	case errors.Is(err, game.ErrNotInGame):
		return "not_in_game"
	case errors.Is(err, game.ErrGameNotFound):
		return "game_not_found"
	case errors.Is(err, game.ErrNoActiveRound):
		return "no_active_round"
	case errors.Is(err, game.ErrRoundNotFinished):
		return "round_not_finished"
	case errors.Is(err, game.ErrGameOver):
		return "game_over"
	case errors.Is(err, store.ErrTxContention):
		return "busy"
	default:
		return "internal"
	}
}
