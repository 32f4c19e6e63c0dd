package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/nhle/swipemail/internal/model"
	"github.com/nhle/swipemail/internal/store"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Client talks to a swipemail server. It offers the same mutation
// contract as the local dispatcher; a 404 maps to store.ErrNotFound.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the server at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// ListItems fetches items matching filter.
func (c *Client) ListItems(ctx context.Context, filter store.ItemFilter) ([]model.Item, error) {
	q := url.Values{}
	if filter.Status != nil {
		q.Set("status", string(*filter.Status))
	}
	if filter.Sender != "" {
		q.Set("sender", filter.Sender)
	}
	if filter.Subject != "" {
		q.Set("subject", filter.Subject)
	}
	if filter.Since != nil {
		q.Set("since", filter.Since.UTC().Format(time.RFC3339))
	}
	if filter.Until != nil {
		q.Set("until", filter.Until.UTC().Format(time.RFC3339))
	}
	if filter.Limit > 0 {
		q.Set("limit", strconv.Itoa(filter.Limit))
	}
	if filter.Offset > 0 {
		q.Set("offset", strconv.Itoa(filter.Offset))
	}

	path := "/items"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var items []model.Item
	if err := c.do(ctx, http.MethodGet, path, nil, &items); err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return items, nil
}

// GetItem fetches one item.
func (c *Client) GetItem(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	if err := c.do(ctx, http.MethodGet, "/items/"+url.PathEscape(id), nil, &item); err != nil {
		return nil, fmt.Errorf("getting item %s: %w", id, err)
	}
	return &item, nil
}

// Transition sets the item's status.
func (c *Client) Transition(ctx context.Context, id string, status model.Status) (*model.Item, error) {
	var item model.Item
	body := statusRequest{Status: string(status)}
	if err := c.do(ctx, http.MethodPatch, "/items/"+url.PathEscape(id)+"/status", body, &item); err != nil {
		return nil, fmt.Errorf("transitioning item %s: %w", id, err)
	}
	return &item, nil
}

// Undo returns the item to the inbox.
func (c *Client) Undo(ctx context.Context, id string) (*model.Item, error) {
	var item model.Item
	if err := c.do(ctx, http.MethodPost, "/items/"+url.PathEscape(id)+"/undo", nil, &item); err != nil {
		return nil, fmt.Errorf("undoing item %s: %w", id, err)
	}
	return &item, nil
}

// Delete removes the item.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodDelete, "/items/"+url.PathEscape(id), nil, nil); err != nil {
		return fmt.Errorf("deleting item %s: %w", id, err)
	}
	return nil
}

// Stats fetches the aggregate counters.
func (c *Client) Stats(ctx context.Context) (model.Stats, error) {
	var stats model.Stats
	if err := c.do(ctx, http.MethodGet, "/stats", nil, &stats); err != nil {
		return model.Stats{}, fmt.Errorf("getting stats: %w", err)
	}
	return stats, nil
}

// Activities fetches the recent activity feed.
func (c *Client) Activities(ctx context.Context) ([]model.Activity, error) {
	var acts []model.Activity
	if err := c.do(ctx, http.MethodGet, "/activities", nil, &acts); err != nil {
		return nil, fmt.Errorf("listing activities: %w", err)
	}
	return acts, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return store.ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
