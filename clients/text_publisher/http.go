package text_publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const defaultTimeout = 5 * time.Second

type clientImpl struct {
	endpoint   string
	httpClient *http.Client
}

type Config struct {
	Endpoint string
	Timeout  time.Duration
}

type message struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func NewClient(cfg *Config) (Publisher, error) {
	if cfg == nil {
		return nil, errors.New("missing parameter: cfg")
	}

	if cfg.Endpoint == "" {
		return nil, errors.New("missing parameter: cfg.Endpoint")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &clientImpl{
		endpoint:   cfg.Endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// Publish posts the recognized text as JSON. Any non-2xx answer is an error.
func (client *clientImpl) Publish(ctx context.Context, sessionID, text string) error {
	body, err := json.Marshal(message{SessionID: sessionID, Text: text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, client.endpoint, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "building publish request")
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := client.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "publishing text")
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("publish endpoint returned %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	return nil
}
