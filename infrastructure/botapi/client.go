package botapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainInline "github.com/lumio-chat/inlinegw/domains/inline"
	domainPeer "github.com/lumio-chat/inlinegw/domains/peer"
	pkgError "github.com/lumio-chat/inlinegw/pkg/error"
	"github.com/sirupsen/logrus"
)

// geoRequiredCode is the provider error code for a bot that demands a
// geolocation the request did not carry.
const geoRequiredCode = "BOT_INLINE_GEO_REQUIRED"

const maxResponseBytes = 4 << 20

// Client fetches inline results from the upstream bot provider. One Fetch
// is exactly one round trip; retries are the caller's decision.
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

type queryPayload struct {
	BotID  string                 `json:"bot_id"`
	PeerID string                 `json:"peer_id"`
	Query  string                 `json:"query"`
	Offset string                 `json:"offset,omitempty"`
	Geo    *domainInline.GeoPoint `json:"geo,omitempty"`
}

type queryResponse struct {
	QueryID      int64                        `json:"query_id"`
	NextOffset   string                       `json:"next_offset"`
	Presentation string                       `json:"presentation"`
	SwitchPeer   *domainInline.SwitchPeer     `json:"switch_peer"`
	CacheTime    int64                        `json:"cache_time"`
	Results      []domainInline.ContextResult `json:"results"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) Fetch(ctx context.Context, bot *domainPeer.BotInfo, peer *domainPeer.Peer, query, offset string, geo *domainInline.GeoPoint) (*domainInline.ResultCollection, error) {
	payload := queryPayload{
		BotID:  bot.ID,
		PeerID: peer.ID,
		Query:  query,
		Offset: offset,
		Geo:    geo,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, pkgError.InlineQueryError(fmt.Sprintf("failed to encode inline query: %v", err))
	}

	url := fmt.Sprintf("%s/bots/%s/inline", c.baseURL, bot.ID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, pkgError.InlineQueryError(fmt.Sprintf("failed to build inline query request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Caller cancellation must surface as such, not as a provider failure.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, pkgError.InlineQueryError(fmt.Sprintf("inline query transport failed: %v", err))
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if resp.StatusCode >= 400 {
		var errResp errorResponse
		if json.Unmarshal(data, &errResp) == nil && errResp.Error == geoRequiredCode {
			return nil, pkgError.LocationRequiredError("bot requires geolocation for inline requests")
		}
		logrus.Debugf("[BOTAPI] Inline query to %s failed: status=%d body=%s", bot.ID, resp.StatusCode, string(data))
		return nil, pkgError.InlineQueryError(fmt.Sprintf("inline query failed: status=%d", resp.StatusCode))
	}

	var decoded queryResponse
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, pkgError.InlineQueryError(fmt.Sprintf("failed to decode inline results: %v", err))
	}

	// Tag the collection with the request identity so the caller can cache
	// and consume it without carrying the request around.
	return &domainInline.ResultCollection{
		BotID:        bot.ID,
		PeerID:       peer.ID,
		Query:        query,
		Geo:          geo,
		QueryID:      decoded.QueryID,
		NextOffset:   decoded.NextOffset,
		Presentation: decoded.Presentation,
		SwitchPeer:   decoded.SwitchPeer,
		Results:      decoded.Results,
		CacheTimeout: time.Duration(decoded.CacheTime) * time.Second,
	}, nil
}
