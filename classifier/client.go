package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"
	"golang.org/x/time/rate"

	"github.com/siftmod/sift/util"
)

// Messages shorter than this are never worth classifying (and the upstream
// rejects empty input).
const minTextLen = 3

// Client calls a hosted moderation endpoint (OpenAI-moderation-shaped API:
// POST with bearer auth, JSON body `{"input": ...}`, JSON response with a
// results array).
type Client struct {
	Client  http.Client
	Host    string
	APIKey  string
	Limiter *rate.Limiter
}

var _ Classifier = (*Client)(nil)

func NewClient(host, apiKey string, ratelimit int) *Client {
	return &Client{
		Client:  *util.RobustHTTPClient(),
		Host:    host,
		APIKey:  apiKey,
		Limiter: rate.NewLimiter(rate.Limit(ratelimit), 1),
	}
}

type checkRequest struct {
	Input string `json:"input"`
}

type checkResponse struct {
	Results []struct {
		Flagged        bool               `json:"flagged"`
		CategoryScores map[string]float64 `json:"category_scores"`
	} `json:"results"`
}

func (c *Client) Check(ctx context.Context, text string) (*Flagging, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < minTextLen {
		return &Flagging{Flagged: false}, nil
	}

	if err := c.Limiter.Wait(ctx); err != nil {
		return nil, err
	}

	reqBody, err := json.Marshal(checkRequest{Input: trimmed})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", c.Host+"/v1/moderations", bytes.NewBuffer(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "siftd/"+versioninfo.Short())

	start := time.Now()
	defer func() {
		classifierAPIDuration.Observe(time.Since(start).Seconds())
	}()

	res, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}
	defer res.Body.Close()

	classifierAPICount.WithLabelValues(fmt.Sprint(res.StatusCode)).Inc()
	if res.StatusCode != 200 {
		return nil, fmt.Errorf("classifier request failed statusCode=%d", res.StatusCode)
	}

	respBytes, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read classifier resp body: %w", err)
	}

	var respObj checkResponse
	if err := json.Unmarshal(respBytes, &respObj); err != nil {
		return nil, fmt.Errorf("failed to parse classifier resp JSON: %w", err)
	}
	if len(respObj.Results) == 0 {
		return &Flagging{Flagged: false}, nil
	}
	return &Flagging{
		Flagged:        respObj.Results[0].Flagged,
		CategoryScores: respObj.Results[0].CategoryScores,
	}, nil
}
