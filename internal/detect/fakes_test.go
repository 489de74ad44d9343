package detect

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

type fakeClient struct {
	name       string
	source     types.Source
	configured bool
	respond    func(ctx context.Context, url string) Result

	calls atomic.Int32
	mu    sync.Mutex
	urls  []string
}

func (f *fakeClient) Name() string         { return f.name }
func (f *fakeClient) Source() types.Source { return f.source }
func (f *fakeClient) Configured() bool     { return f.configured }

func (f *fakeClient) Query(ctx context.Context, url string) Result {
	f.calls.Add(1)
	f.mu.Lock()
	f.urls = append(f.urls, url)
	f.mu.Unlock()
	if f.respond == nil {
		return Result{Reason: "No threats detected"}
	}
	return f.respond(ctx, url)
}

func newSafeBrowsing(respond func(context.Context, string) Result) *fakeClient {
	return &fakeClient{name: "safebrowsing", source: types.SourceReputationB, configured: true, respond: respond}
}

func newVirusTotal(respond func(context.Context, string) Result) *fakeClient {
	return &fakeClient{name: "virustotal", source: types.SourceReputationA, configured: true, respond: respond}
}

type fakeShortener struct {
	hosts    map[string]string
	resolved atomic.Int32
}

func (f *fakeShortener) IsShortened(u string) bool {
	_, ok := f.hosts[u]
	return ok
}

func (f *fakeShortener) Resolve(_ context.Context, u string) string {
	f.resolved.Add(1)
	if target, ok := f.hosts[u]; ok {
		return target
	}
	return u
}

type mapCache struct {
	mu sync.Mutex
	m  map[string]Result
}

func newMapCache() *mapCache { return &mapCache{m: map[string]Result{}} }

func (c *mapCache) Get(service, url string) (Result, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.m[service+"|"+url]
	return r, ok
}

func (c *mapCache) Put(service, url string, r Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.m[service+"|"+url] = r
}

func clean(total int) Result {
	return Result{
		Reason:   "VirusTotal: Clean (0/70 engines detected)",
		Evidence: &types.Evidence{ResponseCode: 1, Total: total},
	}
}
