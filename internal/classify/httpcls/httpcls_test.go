package httpcls

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestClassify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/classify" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("unexpected content type %s", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if string(body) != "png-bytes" {
			t.Errorf("unexpected body %q", body)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predictions":[{"label":"duck","confidence":0.82},{"label":"bird","confidence":0.11}]}`))
	}))
	defer srv.Close()

	preds, err := New(srv.URL).Classify(context.Background(), []byte("png-bytes"))
	if err != nil {
		t.Fatalf("classify should succeed: %v", err)
	}
	if len(preds) != 2 {
		t.Fatalf("expected 2 predictions, got %d", len(preds))
	}
	if preds[0].Label != "duck" || preds[0].Confidence != 0.82 {
		t.Fatalf("unexpected top prediction %+v", preds[0])
	}
}

func TestClassifyErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Classify(context.Background(), []byte{1}); err == nil {
		t.Fatal("non-2xx response should be an error")
	}
}

func TestClassifyEmptyPredictions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"predictions":[]}`))
	}))
	defer srv.Close()

	if _, err := New(srv.URL).Classify(context.Background(), []byte{1}); err == nil {
		t.Fatal("empty prediction list should be an error")
	}
}
