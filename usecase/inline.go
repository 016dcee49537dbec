package usecase

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	domainCache "github.com/lumio-chat/inlinegw/domains/cache"
	domainInline "github.com/lumio-chat/inlinegw/domains/inline"
	domainPeer "github.com/lumio-chat/inlinegw/domains/peer"
	"github.com/lumio-chat/inlinegw/pkg/location"
	"github.com/sirupsen/logrus"
)

// DefaultMinPersistTimeout gates cache writes: the server-declared cache
// timeout must exceed it for the response to be written to the store.
const DefaultMinPersistTimeout = 10 * time.Second

type inlineService struct {
	peers      domainPeer.IPeerResolver
	fetcher    domainInline.IResultFetcher
	store      domainCache.IResultStore
	locations  location.Source
	policy     domainCache.EvictionPolicy
	minPersist time.Duration

	now func() time.Time
}

// NewInlineService wires the inline query orchestrator. locations may be
// nil when no location source is available; geo-requiring bots then fetch
// without a point and the provider decides.
func NewInlineService(
	peers domainPeer.IPeerResolver,
	fetcher domainInline.IResultFetcher,
	store domainCache.IResultStore,
	locations location.Source,
	policy domainCache.EvictionPolicy,
	minPersist time.Duration,
) domainInline.IInlineUsecase {
	if policy.HighWater <= 0 || policy.LowWater <= 0 {
		policy = domainCache.DefaultEvictionPolicy
	}
	if minPersist <= 0 {
		minPersist = DefaultMinPersistTimeout
	}
	return &inlineService{
		peers:      peers,
		fetcher:    fetcher,
		store:      store,
		locations:  locations,
		policy:     policy,
		minPersist: minPersist,
		now:        time.Now,
	}
}

// Query implements the stale-while-revalidate flow: resolve identities,
// gate on location, probe the cache, optionally emit a stale provisional
// value, fetch, persist, emit the final value. Cache failures never fail
// the request.
func (s *inlineService) Query(ctx context.Context, req domainInline.QueryRequest, opts domainInline.QueryOptions, emit domainInline.EmitFunc) error {
	reqID := uuid.NewString()[:8]

	bot, err := s.peers.ResolveBot(ctx, req.BotID)
	if err != nil {
		return err
	}
	if bot == nil {
		logrus.Debugf("[INLINE] %s: unknown bot %s, nothing to do", reqID, req.BotID)
		return nil
	}
	peer, err := s.peers.ResolvePeer(ctx, req.PeerID)
	if err != nil {
		return err
	}
	if peer == nil {
		logrus.Debugf("[INLINE] %s: unknown peer %s, nothing to do", reqID, req.PeerID)
		return nil
	}

	geo := req.Geo
	if geo == nil && bot.RequiresLocation() && s.locations != nil {
		point, err := location.TakeOne(ctx, s.locations)
		if err != nil {
			return err
		}
		if point != nil {
			geo = &domainInline.GeoPoint{Latitude: point.Latitude, Longitude: point.Longitude}
			logrus.Debugf("[INLINE] %s: location gate supplied (%f, %f)", reqID, geo.Latitude, geo.Longitude)
		}
	}

	key := cacheKeyFor(req, geo)

	var stale *domainInline.ResultCollection
	if key != "" {
		if cached := s.probeCache(ctx, reqID, key); cached != nil {
			if s.now().Before(cached.at.Add(cached.collection.CacheTimeout)) {
				logrus.Debugf("[INLINE] %s: fresh cache hit", reqID)
				emit(domainInline.QueryResult{Results: cached.collection, IsStale: false})
				return nil
			}
			if opts.AllowStale {
				stale = cached.collection.StaleView()
			}
		}
	}

	// The provisional value, if any, always precedes the final one.
	if stale != nil {
		logrus.Debugf("[INLINE] %s: serving stale entry while refreshing", reqID)
		emit(domainInline.QueryResult{Results: stale, IsStale: true})
	}

	collection, err := s.fetcher.Fetch(ctx, bot, peer, req.Query, req.Offset, geo)
	if err != nil {
		return err
	}

	if key != "" && collection.CacheTimeout > s.minPersist && ctx.Err() == nil {
		s.persist(ctx, reqID, key, collection)
	}

	emit(domainInline.QueryResult{Results: collection, IsStale: false})
	return nil
}

type cachedCollection struct {
	collection *domainInline.ResultCollection
	at         time.Time
}

// probeCache treats every failure (store error, corrupt blob) as a miss.
func (s *inlineService) probeCache(ctx context.Context, reqID, key string) *cachedCollection {
	entry, err := s.store.Get(ctx, key)
	if err != nil {
		logrus.Warnf("[INLINE] %s: cache read failed, treating as miss: %v", reqID, err)
		return nil
	}
	if entry == nil {
		return nil
	}

	var collection domainInline.ResultCollection
	if err := json.Unmarshal(entry.Data, &collection); err != nil {
		logrus.Warnf("[INLINE] %s: cache entry undecodable, treating as miss: %v", reqID, err)
		return nil
	}
	return &cachedCollection{collection: &collection, at: entry.Timestamp}
}

// persist is best-effort: a failed write costs one refetch, never the
// request.
func (s *inlineService) persist(ctx context.Context, reqID, key string, collection *domainInline.ResultCollection) {
	data, err := json.Marshal(collection)
	if err != nil {
		logrus.Warnf("[INLINE] %s: failed to serialize results for cache: %v", reqID, err)
		return
	}
	entry := domainCache.CachedEntry{Data: data, Timestamp: s.now()}
	if err := s.store.Put(ctx, key, entry, s.policy); err != nil {
		logrus.Warnf("[INLINE] %s: failed to persist results: %v", reqID, err)
	}
}

func (s *inlineService) CacheStats(ctx context.Context) (domainCache.CacheStats, error) {
	return s.store.Stats(ctx)
}

func (s *inlineService) ClearCache(ctx context.Context) error {
	return s.store.Clear(ctx)
}
