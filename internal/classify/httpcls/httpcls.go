// Package httpcls is a Classifier backed by an HTTP inference service.
package httpcls

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/trickdraw/server/internal/classify"
)

type Client struct {
	BaseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "http://localhost:8501"
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), http: &http.Client{Timeout: 20 * time.Second}}
}

// Classify posts the PNG-encoded drawing and decodes the ranked
// predictions the service returns.
func (c *Client) Classify(ctx context.Context, image []byte) ([]classify.Prediction, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/classify", bytes.NewReader(image))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "image/png")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return nil, fmt.Errorf("classifier status %d", resp.StatusCode)
	}
	var out struct {
		Predictions []classify.Prediction `json:"predictions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	if len(out.Predictions) == 0 {
		return nil, errors.New("no predictions")
	}
	return out.Predictions, nil
}
