package vocab

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmbedded(t *testing.T) {
	p, err := Load()
	if err != nil {
		t.Fatalf("embedded vocabulary should load: %v", err)
	}
	if p.Len() < MinLabels {
		t.Fatalf("embedded vocabulary too small: %d", p.Len())
	}
	if !p.Contains("duck") {
		t.Fatal("embedded vocabulary should contain duck")
	}
	if p.Contains("Duck") {
		t.Fatal("lookup should be an exact match")
	}
}

func TestAllLabelsReturnsCopy(t *testing.T) {
	p, err := Load()
	if err != nil {
		t.Fatalf("embedded vocabulary should load: %v", err)
	}
	labels := p.AllLabels()
	original := labels[0]
	labels[0] = "mutated"
	if p.AllLabels()[0] != original {
		t.Fatal("mutating the returned slice should not affect the provider")
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	content := "# comment\nape\nbee\n\ncat\ndog\nbee\nelk\nfox\ngnu\nhen\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("should be able to write label file: %v", err)
	}

	p, err := LoadFile(path)
	if err != nil {
		t.Fatalf("label file should load: %v", err)
	}
	// Comment, blank line and the duplicate "bee" are skipped.
	if p.Len() != 8 {
		t.Fatalf("expected 8 labels, got %d: %v", p.Len(), p.AllLabels())
	}
	if got := p.AllLabels()[0]; got != "ape" {
		t.Fatalf("file order should be preserved, got first label %q", got)
	}
}

func TestLoadFileTooSmall(t *testing.T) {
	path := filepath.Join(t.TempDir(), "labels.txt")
	if err := os.WriteFile(path, []byte("ape\nbee\ncat\n"), 0o644); err != nil {
		t.Fatalf("should be able to write label file: %v", err)
	}
	if _, err := LoadFile(path); err == nil {
		t.Fatal("a vocabulary below the minimum should be rejected")
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "nope.txt")); err == nil {
		t.Fatal("a missing label file should be rejected")
	}
}
