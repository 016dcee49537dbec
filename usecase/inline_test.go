package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	domainCache "github.com/lumio-chat/inlinegw/domains/cache"
	domainInline "github.com/lumio-chat/inlinegw/domains/inline"
	domainPeer "github.com/lumio-chat/inlinegw/domains/peer"
	pkgError "github.com/lumio-chat/inlinegw/pkg/error"
	"github.com/lumio-chat/inlinegw/pkg/location"
)

type fakeResolver struct {
	bots  map[string]*domainPeer.BotInfo
	peers map[string]*domainPeer.Peer
}

func (f *fakeResolver) ResolveBot(ctx context.Context, id string) (*domainPeer.BotInfo, error) {
	return f.bots[id], nil
}

func (f *fakeResolver) ResolvePeer(ctx context.Context, id string) (*domainPeer.Peer, error) {
	return f.peers[id], nil
}

type fetchCall struct {
	query  string
	offset string
	geo    *domainInline.GeoPoint
}

type fakeFetcher struct {
	calls  []fetchCall
	result *domainInline.ResultCollection
	err    error
	// onFetch runs before returning, for cancellation scenarios.
	onFetch func()
}

func (f *fakeFetcher) Fetch(ctx context.Context, bot *domainPeer.BotInfo, peer *domainPeer.Peer, query, offset string, geo *domainInline.GeoPoint) (*domainInline.ResultCollection, error) {
	f.calls = append(f.calls, fetchCall{query: query, offset: offset, geo: geo})
	if f.onFetch != nil {
		f.onFetch()
	}
	if f.err != nil {
		return nil, f.err
	}
	out := *f.result
	out.BotID = bot.ID
	out.PeerID = peer.ID
	out.Query = query
	out.Geo = geo
	return &out, nil
}

type fakeStore struct {
	mu      sync.Mutex
	entries map[string]domainCache.CachedEntry
	gets    int
	puts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: map[string]domainCache.CachedEntry{}}
}

func (f *fakeStore) Get(ctx context.Context, key string) (*domainCache.CachedEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	entry, ok := f.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (f *fakeStore) Put(ctx context.Context, key string, entry domainCache.CachedEntry, policy domainCache.EvictionPolicy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	f.entries[key] = entry
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, key string) error { return nil }

func (f *fakeStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.entries)), nil
}

func (f *fakeStore) Stats(ctx context.Context) (domainCache.CacheStats, error) {
	return domainCache.CacheStats{Entries: int64(len(f.entries))}, nil
}

func (f *fakeStore) Clear(ctx context.Context) error {
	f.entries = map[string]domainCache.CachedEntry{}
	return nil
}

func (f *fakeStore) Close() error { return nil }

// streamSource emits a fixed sequence of points and counts detaches.
type streamSource struct {
	points  []location.Point
	cancels int
}

func (s *streamSource) Subscribe() (<-chan location.Point, func()) {
	ch := make(chan location.Point, len(s.points))
	for _, p := range s.points {
		ch <- p
	}
	return ch, func() { s.cancels++ }
}

func resultFixture(cacheTimeout time.Duration) *domainInline.ResultCollection {
	return &domainInline.ResultCollection{
		QueryID:      42,
		NextOffset:   "10",
		Results:      []domainInline.ContextResult{{ID: "r1", Type: "article", Title: "first"}},
		CacheTimeout: cacheTimeout,
	}
}

func newTestService(resolver *fakeResolver, fetcher *fakeFetcher, store *fakeStore, src location.Source) *inlineService {
	svc := NewInlineService(resolver, fetcher, store, src, domainCache.DefaultEvictionPolicy, DefaultMinPersistTimeout)
	is, ok := svc.(*inlineService)
	if !ok {
		panic("NewInlineService did not return *inlineService")
	}
	return is
}

func defaultResolver() *fakeResolver {
	return &fakeResolver{
		bots:  map[string]*domainPeer.BotInfo{"bot1": {ID: "bot1", Username: "pizzabot"}},
		peers: map[string]*domainPeer.Peer{"peer1": {ID: "peer1", Type: domainPeer.PeerUser}},
	}
}

func collect(results *[]domainInline.QueryResult) domainInline.EmitFunc {
	return func(res domainInline.QueryResult) {
		*results = append(*results, res)
	}
}

func TestQuery_MissFetchesPersistsAndServesCached(t *testing.T) {
	resolver := defaultResolver()
	fetcher := &fakeFetcher{result: resultFixture(60 * time.Second)}
	store := newFakeStore()
	svc := newTestService(resolver, fetcher, store, nil)
	ctx := context.Background()

	req := domainInline.QueryRequest{BotID: "bot1", PeerID: "peer1", Query: "pizza"}

	var first []domainInline.QueryResult
	if err := svc.Query(ctx, req, domainInline.QueryOptions{}, collect(&first)); err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if len(first) != 1 || first[0].IsStale {
		t.Fatalf("Query() expected one fresh emission, got %+v", first)
	}
	if len(fetcher.calls) != 1 {
		t.Fatalf("Query() expected one fetch, got %d", len(fetcher.calls))
	}
	if store.puts != 1 {
		t.Fatalf("Query() expected one persist, got %d", store.puts)
	}

	// Second call within the declared timeout must be served from cache.
	var second []domainInline.QueryResult
	if err := svc.Query(ctx, req, domainInline.QueryOptions{}, collect(&second)); err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if len(fetcher.calls) != 1 {
		t.Fatalf("Query() expected no second fetch, got %d", len(fetcher.calls))
	}
	if len(second) != 1 || second[0].IsStale {
		t.Fatalf("Query() expected one fresh cached emission, got %+v", second)
	}
	if second[0].Results.QueryID != 42 {
		t.Fatalf("Query() cached result QueryID = %d, want 42", second[0].Results.QueryID)
	}
}

func TestQuery_ExpiredEntryEmitsStaleThenFinal(t *testing.T) {
	resolver := defaultResolver()
	fetcher := &fakeFetcher{result: resultFixture(60 * time.Second)}
	store := newFakeStore()
	svc := newTestService(resolver, fetcher, store, nil)
	ctx := context.Background()

	req := domainInline.QueryRequest{BotID: "bot1", PeerID: "peer1", Query: "pizza"}

	// Preload an entry written 31s ago with a 30s timeout.
	old := resultFixture(30 * time.Second)
	old.BotID, old.PeerID, old.Query = "bot1", "peer1", "pizza"
	data, err := json.Marshal(old)
	if err != nil {
		t.Fatalf("marshal fixture: %v", err)
	}
	store.entries[cacheKeyFor(req, nil)] = domainCache.CachedEntry{
		Data:      data,
		Timestamp: time.Now().Add(-31 * time.Second),
	}

	var results []domainInline.QueryResult
	if err := svc.Query(ctx, req, domainInline.QueryOptions{AllowStale: true}, collect(&results)); err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Query() expected stale + final emissions, got %d", len(results))
	}
	stale, final := results[0], results[1]
	if !stale.IsStale {
		t.Fatalf("Query() first emission expected stale")
	}
	if stale.Results.NextOffset != "" {
		t.Fatalf("Query() stale view NextOffset = %q, want cleared", stale.Results.NextOffset)
	}
	if stale.Results.CacheTimeout != 0 {
		t.Fatalf("Query() stale view CacheTimeout = %v, want 0", stale.Results.CacheTimeout)
	}
	if final.IsStale {
		t.Fatalf("Query() final emission must not be stale")
	}
	if len(fetcher.calls) != 1 {
		t.Fatalf("Query() expected one refresh fetch, got %d", len(fetcher.calls))
	}
}

func TestQuery_ExpiredEntryWithoutStaleOptIn(t *testing.T) {
	resolver := defaultResolver()
	fetcher := &fakeFetcher{result: resultFixture(60 * time.Second)}
	store := newFakeStore()
	svc := newTestService(resolver, fetcher, store, nil)
	ctx := context.Background()

	req := domainInline.QueryRequest{BotID: "bot1", PeerID: "peer1", Query: "pizza"}
	old := resultFixture(30 * time.Second)
	data, _ := json.Marshal(old)
	store.entries[cacheKeyFor(req, nil)] = domainCache.CachedEntry{
		Data:      data,
		Timestamp: time.Now().Add(-31 * time.Second),
	}

	var results []domainInline.QueryResult
	if err := svc.Query(ctx, req, domainInline.QueryOptions{}, collect(&results)); err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if len(results) != 1 || results[0].IsStale {
		t.Fatalf("Query() expected a single final emission, got %+v", results)
	}
}

func TestQuery_OffsetBypassesCache(t *testing.T) {
	resolver := defaultResolver()
	fetcher := &fakeFetcher{result: resultFixture(60 * time.Second)}
	store := newFakeStore()
	svc := newTestService(resolver, fetcher, store, nil)

	req := domainInline.QueryRequest{BotID: "bot1", PeerID: "peer1", Query: "pizza", Offset: "5"}
	var results []domainInline.QueryResult
	if err := svc.Query(context.Background(), req, domainInline.QueryOptions{AllowStale: true}, collect(&results)); err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if store.gets != 0 || store.puts != 0 {
		t.Fatalf("Query() with offset touched the store: gets=%d puts=%d", store.gets, store.puts)
	}
	if len(fetcher.calls) != 1 || fetcher.calls[0].offset != "5" {
		t.Fatalf("Query() expected one fetch with offset 5, got %+v", fetcher.calls)
	}
}

func TestQuery_LocationGateDrawsExactlyOneValue(t *testing.T) {
	resolver := defaultResolver()
	resolver.bots["bot1"].InlineGeoRequired = true
	fetcher := &fakeFetcher{result: resultFixture(60 * time.Second)}
	store := newFakeStore()
	src := &streamSource{points: []location.Point{
		{Latitude: 10.0, Longitude: 20.0},
		{Latitude: 99.0, Longitude: 99.0},
	}}
	svc := newTestService(resolver, fetcher, store, src)

	req := domainInline.QueryRequest{BotID: "bot1", PeerID: "peer1", Query: "nearby"}
	var results []domainInline.QueryResult
	if err := svc.Query(context.Background(), req, domainInline.QueryOptions{}, collect(&results)); err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}

	if len(fetcher.calls) != 1 {
		t.Fatalf("Query() expected one fetch, got %d", len(fetcher.calls))
	}
	geo := fetcher.calls[0].geo
	if geo == nil || geo.Latitude != 10.0 || geo.Longitude != 20.0 {
		t.Fatalf("Query() fetch geo = %+v, want first stream value (10, 20)", geo)
	}
	if src.cancels != 1 {
		t.Fatalf("Query() expected the subscription to be detached once, got %d", src.cancels)
	}
	// Location-bound requests are not memoizable.
	if store.gets != 0 || store.puts != 0 {
		t.Fatalf("Query() with location touched the store: gets=%d puts=%d", store.gets, store.puts)
	}
}

func TestQuery_GeoRequiredErrorSurfacesAndSkipsCache(t *testing.T) {
	resolver := defaultResolver()
	fetcher := &fakeFetcher{err: pkgError.LocationRequiredError("bot requires geolocation for inline requests")}
	store := newFakeStore()
	svc := newTestService(resolver, fetcher, store, nil)

	req := domainInline.QueryRequest{BotID: "bot1", PeerID: "peer1", Query: "pizza"}
	var results []domainInline.QueryResult
	err := svc.Query(context.Background(), req, domainInline.QueryOptions{}, collect(&results))

	var locErr pkgError.LocationRequiredError
	if !errors.As(err, &locErr) {
		t.Fatalf("Query() error = %v, want LocationRequiredError", err)
	}
	if len(results) != 0 {
		t.Fatalf("Query() emitted results despite fetch failure: %+v", results)
	}
	if store.puts != 0 {
		t.Fatalf("Query() persisted despite fetch failure: puts=%d", store.puts)
	}
}

func TestQuery_UnknownBotYieldsNoResult(t *testing.T) {
	resolver := defaultResolver()
	fetcher := &fakeFetcher{result: resultFixture(60 * time.Second)}
	store := newFakeStore()
	svc := newTestService(resolver, fetcher, store, nil)

	req := domainInline.QueryRequest{BotID: "ghost", PeerID: "peer1", Query: "pizza"}
	var results []domainInline.QueryResult
	if err := svc.Query(context.Background(), req, domainInline.QueryOptions{}, collect(&results)); err != nil {
		t.Fatalf("Query() unknown bot expected nil error, got %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("Query() unknown bot expected no emissions, got %+v", results)
	}
	if len(fetcher.calls) != 0 {
		t.Fatalf("Query() unknown bot must not fetch")
	}
}

func TestQuery_ShortCacheTimeoutNotPersisted(t *testing.T) {
	// The server timeout must strictly exceed the threshold before
	// anything is written back.
	cases := []struct {
		name         string
		cacheTimeout time.Duration
		wantPuts     int
	}{
		{"below threshold", 5 * time.Second, 0},
		{"exactly at threshold", DefaultMinPersistTimeout, 0},
		{"just above threshold", DefaultMinPersistTimeout + time.Second, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := defaultResolver()
			fetcher := &fakeFetcher{result: resultFixture(tc.cacheTimeout)}
			store := newFakeStore()
			svc := newTestService(resolver, fetcher, store, nil)

			req := domainInline.QueryRequest{BotID: "bot1", PeerID: "peer1", Query: "pizza"}
			var results []domainInline.QueryResult
			if err := svc.Query(context.Background(), req, domainInline.QueryOptions{}, collect(&results)); err != nil {
				t.Fatalf("Query() unexpected error: %v", err)
			}
			if store.puts != tc.wantPuts {
				t.Fatalf("Query() with timeout %v: puts=%d, want %d", tc.cacheTimeout, store.puts, tc.wantPuts)
			}
		})
	}
}

func TestQuery_CorruptCacheEntryIsMiss(t *testing.T) {
	resolver := defaultResolver()
	fetcher := &fakeFetcher{result: resultFixture(60 * time.Second)}
	store := newFakeStore()
	svc := newTestService(resolver, fetcher, store, nil)

	req := domainInline.QueryRequest{BotID: "bot1", PeerID: "peer1", Query: "pizza"}
	store.entries[cacheKeyFor(req, nil)] = domainCache.CachedEntry{
		Data:      []byte("{not json"),
		Timestamp: time.Now(),
	}

	var results []domainInline.QueryResult
	if err := svc.Query(context.Background(), req, domainInline.QueryOptions{AllowStale: true}, collect(&results)); err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if len(fetcher.calls) != 1 {
		t.Fatalf("Query() corrupt entry must fall through to fetch")
	}
	if len(results) != 1 || results[0].IsStale {
		t.Fatalf("Query() corrupt entry expected final emission only, got %+v", results)
	}
}

func TestQuery_CancelledContextSkipsPersist(t *testing.T) {
	resolver := defaultResolver()
	store := newFakeStore()
	ctx, cancel := context.WithCancel(context.Background())
	fetcher := &fakeFetcher{result: resultFixture(60 * time.Second), onFetch: cancel}
	svc := newTestService(resolver, fetcher, store, nil)

	req := domainInline.QueryRequest{BotID: "bot1", PeerID: "peer1", Query: "pizza"}
	var results []domainInline.QueryResult
	if err := svc.Query(ctx, req, domainInline.QueryOptions{}, collect(&results)); err != nil {
		t.Fatalf("Query() unexpected error: %v", err)
	}
	if store.puts != 0 {
		t.Fatalf("Query() persisted after caller cancellation: puts=%d", store.puts)
	}
}
