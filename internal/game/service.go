// Package game implements the session state machine: the round lifecycle
// coordinator, the transactional guess resolver and the scoreboard, all
// persisted through the document store.
package game

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/trickdraw/server/internal/store"
	"github.com/trickdraw/server/internal/vocab"
)

var (
	ErrGameNotFound     = errors.New("game not found")
	ErrNotHost          = errors.New("not host")
	ErrNotArtist        = errors.New("not artist")
	ErrNotInGame        = errors.New("player not in game")
	ErrNoActiveRound    = errors.New("no active round")
	ErrRoundNotFinished = errors.New("round not finished")
	ErrGameOver         = errors.New("game already over")
)

// DefaultRoundDuration is how long a round nominally lasts. EndTime is
// informational: rounds do not auto-advance when it passes, the host
// advances them.
const DefaultRoundDuration = 60 * time.Second

// Service is the session gateway: lifecycle transitions, guess resolution
// and live-state access, composed over a document store and a vocabulary.
type Service struct {
	store         store.Store
	vocab         *vocab.Provider
	now           func() time.Time
	roundDuration time.Duration
	exportFile    string
}

func NewService(st store.Store, vp *vocab.Provider) *Service {
	return &Service{
		store:         st,
		vocab:         vp,
		now:           time.Now,
		roundDuration: DefaultRoundDuration,
	}
}

// SetRoundDuration overrides the round length (ignored if non-positive).
func (s *Service) SetRoundDuration(d time.Duration) {
	if d > 0 {
		s.roundDuration = d
	}
}

// SetExportFile enables appending a summary of each finished round to the
// given file.
func (s *Service) SetExportFile(path string) { s.exportFile = path }

// CreateGame creates a game in the ready phase with the caller as host and
// sole player, an empty ready set and an empty scoreboard.
func (s *Service) CreateGame(ctx context.Context, host Player) (string, error) {
	gameID := uuid.NewString()
	g := Game{
		ID:           gameID,
		Name:         host.Name + "'s game",
		Players:      []Player{host},
		HostPlayerID: host.ID,
		Phase:        PhaseReady,
		CreatedAt:    s.now().UTC(),
	}
	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		if err := tx.Set(gamePath(gameID), g); err != nil {
			return err
		}
		if err := tx.Set(viewInfoPath(gameID, PhaseReady), ReadyInfo{PlayerIDsReady: []string{}}); err != nil {
			return err
		}
		return tx.Set(scoreboardPath(gameID), Scoreboard{})
	})
	if err != nil {
		return "", err
	}
	log.Info().Str("gameId", gameID).Str("host", host.ID).Msg("game created")
	return gameID, nil
}

// JoinGame adds the player to the game. Joining twice is a no-op: the
// players list is a union keyed by player id.
func (s *Service) JoinGame(ctx context.Context, gameID string, p Player) error {
	return s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var g Game
		ok, err := tx.Get(gamePath(gameID), &g)
		if err != nil {
			return err
		}
		if !ok {
			return ErrGameNotFound
		}
		if g.HasPlayer(p.ID) {
			return nil
		}
		g.Players = append(g.Players, p)
		return tx.Set(gamePath(gameID), g)
	})
}

// ReadyUp records that the player is ready. Idempotent.
func (s *Service) ReadyUp(ctx context.Context, gameID, playerID string) error {
	var g Game
	ok, err := s.store.Get(ctx, gamePath(gameID), &g)
	if err != nil {
		return err
	}
	if !ok {
		return ErrGameNotFound
	}
	if !g.HasPlayer(playerID) {
		return ErrNotInGame
	}
	return s.store.ArrayUnion(ctx, viewInfoPath(gameID, PhaseReady), "playerIdsReady", playerID)
}

// StartRound transitions the game into the guess phase with a fresh round:
// random artist, random question, the question plus seven distinct decoys
// sorted for stable display. Host-only. Calling it mid-round restarts the
// round and discards unfinished guesses, which is exactly what ResetRound
// does.
func (s *Service) StartRound(ctx context.Context, gameID, callerID string) error {
	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var g Game
		ok, err := tx.Get(gamePath(gameID), &g)
		if err != nil {
			return err
		}
		if !ok {
			return ErrGameNotFound
		}
		if callerID != g.HostPlayerID {
			return ErrNotHost
		}
		if g.Phase == PhaseAnswer {
			return ErrGameOver
		}
		artist, question, choices := s.pickRound(g.Players)
		guessers := make([]Player, 0, len(g.Players)-1)
		for _, p := range g.Players {
			if p.ID != artist.ID {
				guessers = append(guessers, p)
			}
		}
		info := GuessInfo{
			Artist:   artist,
			Guessers: guessers,
			Question: question,
			Choices:  choices,
			EndTime:  s.now().UTC().Add(s.roundDuration),
			Guesses:  []Guess{},
		}
		g.Phase = PhaseGuess
		if err := tx.Set(gamePath(gameID), g); err != nil {
			return err
		}
		return tx.Set(viewInfoPath(gameID, PhaseGuess), info)
	})
	if err != nil {
		return err
	}
	// Retiring the stale ready document is best-effort cleanup, not part
	// of the transition.
	if err := s.store.Delete(ctx, viewInfoPath(gameID, PhaseReady)); err != nil {
		log.Warn().Err(err).Str("gameId", gameID).Msg("could not delete ready document")
	}
	log.Info().Str("gameId", gameID).Msg("round started")
	return nil
}

// ResetRound skips the current round and deals a new one. Same transition
// as StartRound, re-entered from the guess phase.
func (s *Service) ResetRound(ctx context.Context, gameID, callerID string) error {
	return s.StartRound(ctx, gameID, callerID)
}

func (s *Service) pickRound(players []Player) (Player, string, []string) {
	artist := players[rand.Intn(len(players))]
	labels := s.vocab.AllLabels()
	rand.Shuffle(len(labels), func(i, j int) { labels[i], labels[j] = labels[j], labels[i] })
	question := labels[0]
	choices := make([]string, ChoiceCount)
	copy(choices, labels[:ChoiceCount])
	sort.Strings(choices)
	return artist, question, choices
}

// UpdateDrawing overwrites the round's drawing snapshot. Artist-only;
// called on every stroke change, last write wins.
func (s *Service) UpdateDrawing(ctx context.Context, gameID, callerID string, snapshot []byte) error {
	return s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var info GuessInfo
		ok, err := tx.Get(viewInfoPath(gameID, PhaseGuess), &info)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoActiveRound
		}
		if callerID != info.Artist.ID {
			return ErrNotArtist
		}
		info.Drawing = snapshot
		return tx.Set(viewInfoPath(gameID, PhaseGuess), info)
	})
}

// FinishGame ends the session after a won round: writes the terminal
// answer projection and moves the game to the answer phase. Host-only.
func (s *Service) FinishGame(ctx context.Context, gameID, callerID string) error {
	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		var g Game
		ok, err := tx.Get(gamePath(gameID), &g)
		if err != nil {
			return err
		}
		if !ok {
			return ErrGameNotFound
		}
		if callerID != g.HostPlayerID {
			return ErrNotHost
		}
		var info GuessInfo
		ok, err = tx.Get(viewInfoPath(gameID, PhaseGuess), &info)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoActiveRound
		}
		winner, ok := info.Winner()
		if !ok {
			return ErrRoundNotFinished
		}
		var scores Scoreboard
		if _, err := tx.Get(scoreboardPath(gameID), &scores); err != nil {
			return err
		}
		answer := AnswerInfo{
			Artist:        info.Artist,
			Question:      info.Question,
			CorrectPlayer: Player{ID: winner.PlayerID, Name: winner.PlayerName},
			Scoreboard:    scores,
		}
		if err := tx.Set(viewInfoPath(gameID, PhaseAnswer), answer); err != nil {
			return err
		}
		g.Phase = PhaseAnswer
		return tx.Set(gamePath(gameID), g)
	})
	if err != nil {
		return err
	}
	log.Info().Str("gameId", gameID).Msg("game finished")
	return nil
}

// GetGame point-reads the game header.
func (s *Service) GetGame(ctx context.Context, gameID string) (Game, error) {
	var g Game
	ok, err := s.store.Get(ctx, gamePath(gameID), &g)
	if err != nil {
		return Game{}, err
	}
	if !ok {
		return Game{}, ErrGameNotFound
	}
	return g, nil
}

// ReadyState point-reads the ready set.
func (s *Service) ReadyState(ctx context.Context, gameID string) (ReadyInfo, error) {
	var info ReadyInfo
	ok, err := s.store.Get(ctx, viewInfoPath(gameID, PhaseReady), &info)
	if err != nil {
		return ReadyInfo{}, err
	}
	if !ok {
		return ReadyInfo{}, ErrGameNotFound
	}
	return info, nil
}

// RoundState point-reads the active round.
func (s *Service) RoundState(ctx context.Context, gameID string) (GuessInfo, error) {
	var info GuessInfo
	ok, err := s.store.Get(ctx, viewInfoPath(gameID, PhaseGuess), &info)
	if err != nil {
		return GuessInfo{}, err
	}
	if !ok {
		return GuessInfo{}, ErrNoActiveRound
	}
	return info, nil
}

// Scores point-reads the scoreboard.
func (s *Service) Scores(ctx context.Context, gameID string) (Scoreboard, error) {
	scores := Scoreboard{}
	if _, err := s.store.Get(ctx, scoreboardPath(gameID), &scores); err != nil {
		return nil, err
	}
	return scores, nil
}

// WatchGame subscribes to the game header document.
func (s *Service) WatchGame(ctx context.Context, gameID string) (*store.Subscription, error) {
	return s.store.Subscribe(ctx, gamePath(gameID))
}

// WatchRound subscribes to the active-round document.
func (s *Service) WatchRound(ctx context.Context, gameID string) (*store.Subscription, error) {
	return s.store.Subscribe(ctx, viewInfoPath(gameID, PhaseGuess))
}

// WatchScores subscribes to the scoreboard document.
func (s *Service) WatchScores(ctx context.Context, gameID string) (*store.Subscription, error) {
	return s.store.Subscribe(ctx, scoreboardPath(gameID))
}
