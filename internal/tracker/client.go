package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxResponseBodyBytes = 1 << 20

type ClientOption func(*Client)

// Client talks to the work-item tracker's REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *log.Logger
}

func NewClient(baseURL, token string, logger *log.Logger, opts ...ClientOption) *Client {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:   strings.TrimSpace(token),
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

var _ Tracker = (*Client)(nil)

func (c *Client) ListOpenItems(ctx context.Context, assignee string) ([]Item, error) {
	assignee = strings.TrimSpace(assignee)
	if assignee == "" {
		return nil, fmt.Errorf("assignee is required")
	}

	endpoint := c.baseURL + "/v1/items?assignee=" + url.QueryEscape(assignee) + "&open=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build list items request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list open items: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.apiError("list items", resp)
	}

	var parsed struct {
		Items []Item `json:"items"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBodyBytes)).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode items response: %w", err)
	}
	return parsed.Items, nil
}

func (c *Client) TransitionStatus(ctx context.Context, itemID string, target Status) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return fmt.Errorf("item id is required")
	}

	body, err := json.Marshal(map[string]string{"target_status": string(target)})
	if err != nil {
		return fmt.Errorf("marshal transition request: %w", err)
	}

	endpoint := c.baseURL + "/v1/items/" + url.PathEscape(itemID) + "/transition"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build transition request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("transition status: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("item %s: %w", itemID, ErrItemNotFound)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("item %s to %s: %w", itemID, target, ErrNoValidTransition)
	default:
		return c.apiError("transition status", resp)
	}
}

func (c *Client) AppendNote(ctx context.Context, itemID, text string) error {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return fmt.Errorf("item id is required")
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("marshal note request: %w", err)
	}

	endpoint := c.baseURL + "/v1/items/" + url.PathEscape(itemID) + "/notes"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build note request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("append note: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("item %s: %w", itemID, ErrItemNotFound)
	default:
		return c.apiError("append note", resp)
	}
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func (c *Client) apiError(op string, resp *http.Response) error {
	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if readErr != nil {
		return fmt.Errorf("%s: tracker returned %s", op, resp.Status)
	}
	message := strings.TrimSpace(string(body))
	if message == "" {
		message = resp.Status
	}
	return fmt.Errorf("%s: tracker returned %s: %s", op, resp.Status, message)
}
