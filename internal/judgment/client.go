package judgment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"paper-trading-lab/internal/domain"
	"paper-trading-lab/internal/observability"
)

// ClientConfig configures the HTTP judge client.
type ClientConfig struct {
	// URL is the judgment endpoint, called with POST.
	URL string
	// Timeout bounds one judgment round trip.
	Timeout time.Duration
	// APIKey, when set, is sent as a bearer token.
	APIKey string
}

// Client calls an external judgment service over HTTP/JSON. The service
// may wrap its JSON reply in a markdown code fence; the client unwraps
// it before decoding.
type Client struct {
	config ClientConfig
	http   *http.Client
	log    zerolog.Logger
}

// NewClient creates an HTTP judge client.
func NewClient(config ClientConfig, log zerolog.Logger) *Client {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		http:   &http.Client{Timeout: timeout},
		log:    log,
	}
}

// Compile-time interface check.
var _ Judge = (*Client)(nil)

// response is the wire format of the judgment reply.
type response struct {
	Judgments map[string]domain.ExitJudgment `json:"judgments"`
}

// JudgeExits posts the candidates and decodes per-symbol verdicts.
func (c *Client) JudgeExits(ctx context.Context, req Request) (map[string]domain.ExitJudgment, error) {
	if len(req.Candidates) == 0 {
		return map[string]domain.ExitJudgment{}, nil
	}

	start := time.Now()
	out, err := c.judgeExits(ctx, req)
	observability.RecordJudgeRequest(err, time.Since(start))
	return out, err
}

func (c *Client) judgeExits(ctx context.Context, req Request) (map[string]domain.ExitJudgment, error) {

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal judgment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build judgment request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("judgment request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read judgment response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("judgment service returned %d: %s", resp.StatusCode, truncate(string(raw), 200))
	}

	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// Some services wrap JSON in a markdown code block
		if clean := extractJSON(string(raw)); clean != "" {
			if err := json.Unmarshal([]byte(clean), &parsed); err != nil {
				return nil, fmt.Errorf("parse judgment response: %w", err)
			}
		} else {
			return nil, fmt.Errorf("parse judgment response: %w", err)
		}
	}

	// Drop malformed verdicts so downstream sees them as absent (close)
	out := make(map[string]domain.ExitJudgment, len(parsed.Judgments))
	for symbol, j := range parsed.Judgments {
		if j.Decision != domain.JudgmentHold && j.Decision != domain.JudgmentClose {
			c.log.Warn().
				Str("symbol", symbol).
				Str("decision", j.Decision).
				Msg("unknown judgment decision, ignoring verdict")
			continue
		}
		out[symbol] = j
	}
	return out, nil
}

// extractJSON pulls the payload out of a ```json ... ``` fence.
func extractJSON(text string) string {
	start := -1
	end := -1

	for i := 0; i < len(text)-2; i++ {
		if text[i:i+3] == "```" {
			if start == -1 {
				start = i + 3
				if i+7 < len(text) && text[i+3:i+7] == "json" {
					start = i + 7
				}
				if start < len(text) && text[start] == '\n' {
					start++
				}
			} else {
				end = i
				break
			}
		}
	}

	if start > 0 && end > start {
		return text[start:end]
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
