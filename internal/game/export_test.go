package game

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestExportRound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results", "rounds.txt")
	info := GuessInfo{
		Artist:   Player{ID: "h", Name: "Hanna"},
		Guessers: []Player{{ID: "a", Name: "Alice"}},
		Question: "duck",
		Guesses: []Guess{
			{PlayerID: "a", PlayerName: "Alice", Guess: "bird", Confidence: 1},
			{PlayerID: "a", PlayerName: "Alice", Guess: "duck", Confidence: 1, IsCorrect: true},
		},
	}
	scores := Scoreboard{"a": 2, "h": 1}

	if err := exportRound("g1", info, scores, path); err != nil {
		t.Fatalf("should be able to export round: %v", err)
	}
	// Appending a second summary must not clobber the first.
	if err := exportRound("g1", info, scores, path); err != nil {
		t.Fatalf("should be able to export twice: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("should be able to read results file: %v", err)
	}
	content := string(b)
	if strings.Count(content, "TrickDraw round - game g1") != 2 {
		t.Fatalf("expected two appended summaries, got:\n%s", content)
	}
	if !strings.Contains(content, `"duck" (confidence 1.00) <- winner`) {
		t.Fatalf("winner marker missing:\n%s", content)
	}
	alice := strings.Index(content, "- Alice: 2 point(s)")
	hanna := strings.Index(content, "- Hanna: 1 point(s)")
	if alice == -1 || hanna == -1 || alice > hanna {
		t.Fatalf("scores should list Alice before Hanna:\n%s", content)
	}
}

func TestExportOnRoundWin(t *testing.T) {
	svc := newTestService(t)
	path := filepath.Join(t.TempDir(), "rounds.txt")
	svc.SetExportFile(path)

	alice := Player{ID: "a", Name: "Alice"}
	gameID, info := startedGame(t, svc, alice)
	if _, accepted, err := svc.SubmitGuessByPlayer(context.Background(), gameID, alice, info.Question); err != nil || !accepted {
		t.Fatalf("winning guess should be recorded: accepted=%v err=%v", accepted, err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("winning guess should have written the results file: %v", err)
	}
	if !strings.Contains(string(b), info.Question) {
		t.Fatalf("summary should mention the question %q:\n%s", info.Question, b)
	}
}
