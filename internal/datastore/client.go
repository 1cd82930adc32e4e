package datastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iatidata/sector-harvester/internal/model"
)

// SubscriptionKeyHeader carries the API key on every Datastore request.
const SubscriptionKeyHeader = "Ocp-Apim-Subscription-Key"

// ErrUnexpectedStatus is wrapped by StatusError for any non-200 response.
var ErrUnexpectedStatus = errors.New("unexpected datastore status")

// StatusError reports a non-success HTTP status from the Datastore.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %d", ErrUnexpectedStatus, e.StatusCode)
	}
	return fmt.Sprintf("%s: %d: %s", ErrUnexpectedStatus, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error { return ErrUnexpectedStatus }

// maxErrorBody bounds how much of a failed response is kept for logging.
const maxErrorBody = 512

// Client fetches search pages from the Datastore.
type Client struct {
	httpClient *http.Client
	searchURL  string
	apiKey     string
}

// NewClient creates a Client for a search URL built by BuildSearchURL.
func NewClient(searchURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		searchURL:  searchURL,
		apiKey:     apiKey,
	}
}

// SearchURL returns the cursor-less search URL this client requests.
func (c *Client) SearchURL() string {
	return c.searchURL
}

// FetchPage requests the page starting at cursor.
func (c *Client) FetchPage(ctx context.Context, cursor string) (*model.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, PageURL(c.searchURL, cursor), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set(SubscriptionKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var page model.Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode page: %w", err)
	}
	return &page, nil
}
