package peerdir

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainPeer "github.com/lumio-chat/inlinegw/domains/peer"
)

const maxResponseBytes = 64 << 10

// Client resolves peers and bots against the directory service. Unknown
// identifiers resolve to (nil, nil); the directory owns identity storage,
// this client only asks.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) ResolvePeer(ctx context.Context, id string) (*domainPeer.Peer, error) {
	var peer domainPeer.Peer
	found, err := c.getJSON(ctx, fmt.Sprintf("%s/peers/%s", c.baseURL, id), &peer)
	if err != nil || !found {
		return nil, err
	}
	return &peer, nil
}

func (c *Client) ResolveBot(ctx context.Context, id string) (*domainPeer.BotInfo, error) {
	var bot domainPeer.BotInfo
	found, err := c.getJSON(ctx, fmt.Sprintf("%s/bots/%s", c.baseURL, id), &bot)
	if err != nil || !found {
		return nil, err
	}
	return &bot, nil
}

func (c *Client) getJSON(ctx context.Context, url string, dest any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return false, nil
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode >= 400 {
		return false, fmt.Errorf("directory lookup failed: status=%d body=%s", resp.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to decode directory response: %w", err)
	}
	return true, nil
}
