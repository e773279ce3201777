package game

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/trickdraw/server/internal/store"
)

// SubmitGuessByPlayer records a human guess. Human confidence is fixed at
// 1.0. The returned bool reports whether the guess was recorded; false
// means the round was already finished and the guess was dropped, which is
// a defined outcome, not an error.
func (s *Service) SubmitGuessByPlayer(ctx context.Context, gameID string, p Player, guessText string) (Guess, bool, error) {
	return s.submitGuess(ctx, gameID, p, guessText, 1.0)
}

// SubmitGuessByAI records a bot guess with the classifier's confidence.
// Confidence is informational only; correctness is decided here, never by
// the caller.
func (s *Service) SubmitGuessByAI(ctx context.Context, gameID string, p Player, guessText string, confidence float64) (Guess, bool, error) {
	return s.submitGuess(ctx, gameID, p, guessText, confidence)
}

// submitGuess appends a guess to the active round and, when the guess
// matches the question, increments the guesser's score in the same store
// transaction. Concurrent correct guesses cannot both win: the losing
// transaction re-runs, observes the finished round and drops its guess.
func (s *Service) submitGuess(ctx context.Context, gameID string, p Player, guessText string, confidence float64) (Guess, bool, error) {
	var (
		recorded Guess
		accepted bool
	)
	err := s.store.RunTransaction(ctx, func(tx store.Tx) error {
		accepted = false
		var info GuessInfo
		ok, err := tx.Get(viewInfoPath(gameID, PhaseGuess), &info)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoActiveRound
		}
		if info.IsFinished() {
			// Race loser: the round already has its winner.
			return nil
		}
		g := Guess{
			ID:         uuid.NewString(),
			PlayerID:   p.ID,
			PlayerName: p.Name,
			Guess:      guessText,
			Confidence: confidence,
			// Correctness is an exact match against the question read in
			// this same transaction, so clients cannot claim a win.
			IsCorrect: guessText == info.Question,
		}
		info.Guesses = append(info.Guesses, g)
		if g.IsCorrect {
			var scores Scoreboard
			ok, err := tx.Get(scoreboardPath(gameID), &scores)
			if err != nil {
				return err
			}
			if !ok {
				scores = Scoreboard{}
			}
			scores[p.ID]++
			if err := tx.Set(scoreboardPath(gameID), scores); err != nil {
				return err
			}
		}
		if err := tx.Set(viewInfoPath(gameID, PhaseGuess), info); err != nil {
			return err
		}
		recorded = g
		accepted = true
		return nil
	})
	if err != nil {
		return Guess{}, false, err
	}
	if accepted && recorded.IsCorrect {
		log.Info().
			Str("gameId", gameID).
			Str("playerId", p.ID).
			Str("guess", guessText).
			Msg("round won")
		s.exportFinishedRound(ctx, gameID)
	}
	return recorded, accepted, nil
}

// exportFinishedRound appends the round summary to the configured results
// file. Best effort: failures are logged, never surfaced.
func (s *Service) exportFinishedRound(ctx context.Context, gameID string) {
	if s.exportFile == "" {
		return
	}
	info, err := s.RoundState(ctx, gameID)
	if err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("export: read round")
		return
	}
	scores, err := s.Scores(ctx, gameID)
	if err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("export: read scores")
		return
	}
	if err := exportRound(gameID, info, scores, s.exportFile); err != nil {
		log.Error().Err(err).Str("gameId", gameID).Msg("export: write summary")
	}
}
