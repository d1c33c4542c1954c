// Package history is the REST client for room resources: the initial
// message log and room metadata.
package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"meandu-go/internal/config"
	"meandu-go/internal/imtypes"
)

// ErrStatus is wrapped by errors for non-2xx responses.
var ErrStatus = errors.New("history: unexpected status")

// ErrNotFound is returned when the room does not exist.
var ErrNotFound = errors.New("history: room not found")

// Client calls the /room REST endpoints.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for baseURL (scheme and host, no trailing path).
// A nil httpClient gets one with a 15 second timeout.
func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: httpClient,
	}
}

// NewClientFromConfig creates a client from the client configuration.
func NewClientFromConfig(cfg config.ClientConfig) *Client {
	return NewClient(cfg.APIBaseURL, cfg.Token, &http.Client{Timeout: cfg.HTTPTimeout})
}

// FetchMessages returns the room's log in server order.
func (c *Client) FetchMessages(ctx context.Context, roomID string) ([]imtypes.RoomMessage, error) {
	var msgs []imtypes.RoomMessage
	if err := c.get(ctx, "/room/messages", roomID, &msgs); err != nil {
		return nil, err
	}
	log.Debug().Str("room", roomID).Int("count", len(msgs)).Msg("[history] messages fetched")
	return msgs, nil
}

// FetchRoom returns the room's metadata.
func (c *Client) FetchRoom(ctx context.Context, roomID string) (imtypes.Room, error) {
	var room imtypes.Room
	err := c.get(ctx, "/room/fetch", roomID, &room)
	return room, err
}

func (c *Client) get(ctx context.Context, path, roomID string, out any) error {
	u := c.baseURL + path + "?" + url.Values{"room_id": {roomID}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("GET %s room %s: %w", path, roomID, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: %w %d", path, ErrStatus, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
