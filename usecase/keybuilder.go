package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	domainInline "github.com/lumio-chat/inlinegw/domains/inline"
)

// cacheSchemaVersion participates in the cache key, so bumping it
// invalidates every previously stored entry.
const cacheSchemaVersion = "v1"

type keyDescriptor struct {
	Version string `json:"version"`
	BotID   string `json:"bot_id"`
	PeerID  string `json:"peer_id"`
	Query   string `json:"query"`
}

// cacheKeyFor derives the store key for a fresh inline query. It returns
// "" (caching disabled) for paginated or location-bound requests, whose
// results depend on state the descriptor does not capture, and on any
// serialization failure: caching is best-effort and fails open.
func cacheKeyFor(req domainInline.QueryRequest, geo *domainInline.GeoPoint) string {
	if req.Offset != "" || geo != nil {
		return ""
	}

	payload, err := json.Marshal(keyDescriptor{
		Version: cacheSchemaVersion,
		BotID:   req.BotID,
		PeerID:  req.PeerID,
		Query:   req.Query,
	})
	if err != nil {
		return ""
	}

	sum := sha256.Sum256(payload)
	return "q:" + cacheSchemaVersion + ":" + hex.EncodeToString(sum[:])
}
