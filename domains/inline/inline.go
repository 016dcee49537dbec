package inline

import (
	"context"
	"encoding/json"
	"time"

	domainCache "github.com/lumio-chat/inlinegw/domains/cache"
	domainPeer "github.com/lumio-chat/inlinegw/domains/peer"
)

type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// SwitchPeer asks the client to switch to a private chat with the bot,
// carrying a deep-link start parameter.
type SwitchPeer struct {
	Text       string `json:"text"`
	StartParam string `json:"start_param"`
}

// ContextResult is a single inline result as delivered by the provider.
// Content carries the provider-specific payload untouched.
type ContextResult struct {
	ID          string          `json:"id"`
	Type        string          `json:"type"`
	Title       string          `json:"title,omitempty"`
	Description string          `json:"description,omitempty"`
	URL         string          `json:"url,omitempty"`
	ThumbURL    string          `json:"thumb_url,omitempty"`
	Content     json.RawMessage `json:"content,omitempty"`
}

// ResultCollection is the decoded answer to one inline query. Result order
// is display order. Instances are treated as immutable snapshots; a refresh
// replaces the whole collection, never merges into it.
type ResultCollection struct {
	BotID        string          `json:"bot_id"`
	PeerID       string          `json:"peer_id"`
	Query        string          `json:"query"`
	Geo          *GeoPoint       `json:"geo,omitempty"`
	QueryID      int64           `json:"query_id"`
	NextOffset   string          `json:"next_offset,omitempty"`
	Presentation string          `json:"presentation,omitempty"`
	SwitchPeer   *SwitchPeer     `json:"switch_peer,omitempty"`
	Results      []ContextResult `json:"results"`
	CacheTimeout time.Duration   `json:"cache_timeout"`
}

// StaleView returns a copy suitable for serving as a provisional value from
// an expired cache entry: pagination is cleared and the timeout zeroed so
// the view is never cached or reused again.
func (c *ResultCollection) StaleView() *ResultCollection {
	view := *c
	view.NextOffset = ""
	view.CacheTimeout = 0
	return &view
}

// QueryRequest describes one inline query against a bot inside a chat.
// Offset and Geo, when set, make the request non-memoizable.
type QueryRequest struct {
	BotID  string    `json:"bot_id"`
	PeerID string    `json:"peer_id"`
	Query  string    `json:"query"`
	Offset string    `json:"offset,omitempty"`
	Geo    *GeoPoint `json:"geo,omitempty"`
}

type QueryOptions struct {
	// AllowStale opts into receiving an expired cache entry as a
	// provisional value while the refresh is in flight.
	AllowStale bool
}

type QueryResult struct {
	Results *ResultCollection `json:"results"`
	IsStale bool              `json:"is_stale"`
}

// EmitFunc receives query results in order: at most one stale provisional
// value, always followed by the final authoritative one.
type EmitFunc func(QueryResult)

// IResultFetcher issues exactly one provider round trip per call and makes
// no retries. The returned collection is tagged with the request identity.
type IResultFetcher interface {
	Fetch(ctx context.Context, bot *domainPeer.BotInfo, peer *domainPeer.Peer, query, offset string, geo *GeoPoint) (*ResultCollection, error)
}

type IInlineUsecase interface {
	// Query runs the full lookup flow. emit is invoked at most twice
	// (stale provisional, then final). When the bot or peer is unknown,
	// emit is not invoked and the returned error is nil.
	Query(ctx context.Context, req QueryRequest, opts QueryOptions, emit EmitFunc) error

	CacheStats(ctx context.Context) (domainCache.CacheStats, error)
	ClearCache(ctx context.Context) error
}
