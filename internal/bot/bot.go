// Package bot runs the AI guesser: it watches the active round's drawing,
// classifies each new snapshot and submits its best guess like any other
// player.
package bot

import (
	"bytes"
	"context"
	"errors"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/trickdraw/server/internal/classify"
	"github.com/trickdraw/server/internal/game"
)

// DefaultThreshold is the minimum confidence before the bot bothers
// submitting a guess at all. Local policy, not a correctness rule.
const DefaultThreshold = 0.1

type Guesser struct {
	player     game.Player
	svc        *game.Service
	classifier classify.Classifier
	threshold  float64
	limiter    *rate.Limiter
}

// New builds a guesser. ratePerSec caps submissions so stroke storms
// cannot flood the resolver; threshold <= 0 falls back to
// DefaultThreshold.
func New(svc *game.Service, cls classify.Classifier, player game.Player, threshold, ratePerSec float64) *Guesser {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &Guesser{
		player:     player,
		svc:        svc,
		classifier: cls,
		threshold:  threshold,
		limiter:    rate.NewLimiter(rate.Limit(ratePerSec), 1),
	}
}

func (b *Guesser) Player() game.Player { return b.player }

// Run watches the round document until ctx is cancelled or the game
// reaches the answer phase. Classification is
// strictly serial: one inference at a time, and drawing updates that
// arrive meanwhile coalesce into the latest snapshot behind it.
func (b *Guesser) Run(ctx context.Context, gameID string) error {
	sub, err := b.svc.WatchRound(ctx, gameID)
	if err != nil {
		return err
	}
	defer sub.Close()
	gameSub, err := b.svc.WatchGame(ctx, gameID)
	if err != nil {
		return err
	}
	defer gameSub.Close()

	var (
		lastQuestion string
		lastDrawing  []byte
		lastGuess    string
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-gameSub.C():
			if !snap.Exists {
				continue
			}
			var g game.Game
			if err := snap.Decode(&g); err != nil {
				log.Error().Err(err).Str("gameId", gameID).Msg("bot: bad game document")
				continue
			}
			// The answer phase is terminal, nothing left to guess.
			if g.Phase == game.PhaseAnswer {
				return nil
			}
		case snap := <-sub.C():
			if !snap.Exists {
				continue
			}
			var info game.GuessInfo
			if err := snap.Decode(&info); err != nil {
				log.Error().Err(err).Str("gameId", gameID).Msg("bot: bad round document")
				continue
			}
			if info.Question != lastQuestion {
				// New round: forget the previous one.
				lastQuestion = info.Question
				lastDrawing = nil
				lastGuess = ""
			}
			if info.IsFinished() || len(info.Drawing) == 0 {
				continue
			}
			if bytes.Equal(info.Drawing, lastDrawing) {
				continue
			}
			lastDrawing = append([]byte(nil), info.Drawing...)

			preds, err := b.classifier.Classify(ctx, info.Drawing)
			if err != nil {
				log.Error().Err(err).Str("gameId", gameID).Msg("bot: classify failed")
				continue
			}
			if len(preds) == 0 {
				continue
			}
			best := preds[0]
			if best.Confidence < b.threshold || best.Label == lastGuess {
				continue
			}
			if err := b.limiter.Wait(ctx); err != nil {
				return err
			}
			_, accepted, err := b.svc.SubmitGuessByAI(ctx, gameID, b.player, best.Label, best.Confidence)
			switch {
			case errors.Is(err, game.ErrNoActiveRound):
				continue
			case err != nil:
				log.Error().Err(err).Str("gameId", gameID).Msg("bot: submit failed")
			case accepted:
				lastGuess = best.Label
				log.Info().
					Str("gameId", gameID).
					Str("guess", best.Label).
					Float64("confidence", best.Confidence).
					Msg("bot: guessed")
			}
		}
	}
}
