package game

import (
	"time"
)

// Phase is the coarse top-level state of a game, stored on the Game
// document and used to pick which viewInfo document to read.
type Phase string

const (
	PhaseReady  Phase = "ready"
	PhaseGuess  Phase = "guess"
	PhaseAnswer Phase = "answer"
)

// ChoiceCount is the number of options shown to guessers: the question
// plus seven decoys.
const ChoiceCount = 8

type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Game struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Players      []Player  `json:"players"`
	HostPlayerID string    `json:"hostPlayerId"`
	Phase        Phase     `json:"phase"`
	CreatedAt    time.Time `json:"createdAt"`
}

// HasPlayer reports membership by player id.
func (g Game) HasPlayer(id string) bool {
	for _, p := range g.Players {
		if p.ID == id {
			return true
		}
	}
	return false
}

// ReadyInfo accumulates ready-up acknowledgements while the game is in
// PhaseReady. The set grows via idempotent union.
type ReadyInfo struct {
	PlayerIDsReady []string `json:"playerIdsReady"`
}

func (r ReadyInfo) IsReady(playerID string) bool {
	for _, id := range r.PlayerIDsReady {
		if id == playerID {
			return true
		}
	}
	return false
}

// Guess is one submission, immutable once created. The id is unique per
// submission so retries and identical texts stay distinct entries.
type Guess struct {
	ID         string  `json:"id"`
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	Guess      string  `json:"guess"`
	Confidence float64 `json:"confidence"`
	IsCorrect  bool    `json:"isCorrect"`
}

// GuessInfo is the authoritative document for the active round.
type GuessInfo struct {
	Artist   Player    `json:"artist"`
	Guessers []Player  `json:"guessers"`
	Question string    `json:"question"`
	Choices  []string  `json:"choices"`
	EndTime  time.Time `json:"endTime"`
	Guesses  []Guess   `json:"guesses"`
	// Drawing is the latest encoded canvas snapshot, nil until the
	// artist's first stroke. Last write wins.
	Drawing []byte `json:"drawing,omitempty"`
}

// IsFinished reports whether a correct guess has been recorded. Once true
// it stays true for the lifetime of the round document.
func (gi GuessInfo) IsFinished() bool {
	_, ok := gi.Winner()
	return ok
}

// Winner returns the round's single correct guess, if any.
func (gi GuessInfo) Winner() (Guess, bool) {
	for _, g := range gi.Guesses {
		if g.IsCorrect {
			return g, true
		}
	}
	return Guess{}, false
}

// AnswerInfo is the terminal projection written when the host ends the game.
type AnswerInfo struct {
	Artist        Player     `json:"artist"`
	Question      string     `json:"question"`
	CorrectPlayer Player     `json:"correctPlayer"`
	Scoreboard    Scoreboard `json:"scoreboard"`
}

// Scoreboard maps player id to cumulative correct-guess count. Scores are
// never decremented and entries are never removed.
type Scoreboard map[string]int

// Document layout: one game spans the game header, one viewInfo document
// per phase, and the scoreboard, mirroring a Firestore-style collection
// hierarchy.
func gamePath(gameID string) string       { return "games/" + gameID }
func scoreboardPath(gameID string) string { return "games/" + gameID + "/scoreboard" }
func viewInfoPath(gameID string, p Phase) string {
	return "games/" + gameID + "/viewInfo/" + string(p)
}
