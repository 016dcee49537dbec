package peer

import "context"

type PeerType string

const (
	PeerUser    PeerType = "user"
	PeerGroup   PeerType = "group"
	PeerChannel PeerType = "channel"
)

type Peer struct {
	ID   string   `json:"id"`
	Type PeerType `json:"type"`
	Name string   `json:"name,omitempty"`
}

// BotInfo carries the capability flags of an inline-capable bot as declared
// by the directory service.
type BotInfo struct {
	ID                string `json:"id"`
	Username          string `json:"username"`
	InlinePlaceholder string `json:"inline_placeholder,omitempty"`
	InlineGeoRequired bool   `json:"inline_geo_required"`
}

// RequiresLocation reports whether the bot demands a live geolocation
// before inline requests may be issued.
func (b *BotInfo) RequiresLocation() bool {
	return b != nil && b.InlineGeoRequired
}

// IPeerResolver looks up peers and bots by identifier. An unknown
// identifier resolves to (nil, nil); absence is a valid outcome, not an
// error.
type IPeerResolver interface {
	ResolvePeer(ctx context.Context, id string) (*Peer, error)
	ResolveBot(ctx context.Context, id string) (*BotInfo, error)
}
