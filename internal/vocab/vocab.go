// Package vocab provides the fixed universe of drawable words the game
// draws questions and decoys from.
package vocab

import (
	"bufio"
	_ "embed"
	"fmt"
	"os"
	"strings"
)

// MinLabels is the smallest usable vocabulary: a question plus seven
// decoys.
const MinLabels = 8

//go:embed labels.txt
var embedded string

// Provider holds the label universe. Immutable after load.
type Provider struct {
	labels []string
	index  map[string]bool
}

// Load builds the provider from the embedded label list.
func Load() (*Provider, error) {
	return parse(embedded)
}

// LoadFile builds the provider from a newline-separated label file,
// overriding the embedded list.
func LoadFile(path string) (*Provider, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: read %s: %w", path, err)
	}
	p, err := parse(string(b))
	if err != nil {
		return nil, fmt.Errorf("vocab: %s: %w", path, err)
	}
	return p, nil
}

func parse(raw string) (*Provider, error) {
	p := &Provider{index: make(map[string]bool)}
	sc := bufio.NewScanner(strings.NewReader(raw))
	for sc.Scan() {
		label := strings.TrimSpace(sc.Text())
		if label == "" || strings.HasPrefix(label, "#") {
			continue
		}
		if p.index[label] {
			continue
		}
		p.labels = append(p.labels, label)
		p.index[label] = true
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("vocab: scan labels: %w", err)
	}
	if len(p.labels) < MinLabels {
		return nil, fmt.Errorf("vocab: need at least %d labels, got %d", MinLabels, len(p.labels))
	}
	return p, nil
}

// AllLabels returns a copy of the label universe in file order.
func (p *Provider) AllLabels() []string {
	out := make([]string, len(p.labels))
	copy(out, p.labels)
	return out
}

// Contains reports whether label is part of the vocabulary (exact match).
func (p *Provider) Contains(label string) bool { return p.index[label] }

// Len returns the vocabulary size.
func (p *Provider) Len() int { return len(p.labels) }
