package game

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// exportRound appends a human-readable summary of a finished round to
// filename, creating the file and its directory as needed.
func exportRound(gameID string, info GuessInfo, scores Scoreboard, filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("TrickDraw round - game %s\n", gameID))
	sb.WriteString(fmt.Sprintf("Question: %q (artist %s)\n", info.Question, info.Artist.Name))
	sb.WriteString(strings.Repeat("-", 40) + "\n")

	for _, g := range info.Guesses {
		marker := ""
		if g.IsCorrect {
			marker = " <- winner"
		}
		sb.WriteString(fmt.Sprintf("- %s: %q (confidence %.2f)%s\n", g.PlayerName, g.Guess, g.Confidence, marker))
	}

	if len(scores) > 0 {
		sb.WriteString("\nScores:\n")
		names := make(map[string]string, len(info.Guessers)+1)
		for _, p := range append(info.Guessers, info.Artist) {
			names[p.ID] = p.Name
		}
		type playerScore struct {
			Name  string
			Score int
		}
		sorted := make([]playerScore, 0, len(scores))
		for playerID, score := range scores {
			name := names[playerID]
			if name == "" {
				name = playerID
			}
			sorted = append(sorted, playerScore{Name: name, Score: score})
		}
		for i := 0; i < len(sorted); i++ {
			for j := i + 1; j < len(sorted); j++ {
				if sorted[j].Score > sorted[i].Score {
					sorted[i], sorted[j] = sorted[j], sorted[i]
				}
			}
		}
		for _, ps := range sorted {
			sb.WriteString(fmt.Sprintf("- %s: %d point(s)\n", ps.Name, ps.Score))
		}
	}
	sb.WriteString("\n")

	if _, err := file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}
