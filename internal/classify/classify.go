// Package classify defines the drawing-classification boundary the bot
// guesses through. The model internals live behind an inference service;
// the game only sees ranked labels.
package classify

import "context"

// Prediction is one candidate label with the model's confidence in [0,1].
type Prediction struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
}

// Classifier turns a drawing snapshot into predictions ordered by
// descending confidence. Deterministic for a given snapshot; failures are
// surfaced to the caller and consumed by logging only.
type Classifier interface {
	Classify(ctx context.Context, image []byte) ([]Prediction, error)
}
