package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Smeet2005/PHISHSCAN/pkg/ratelimit"
)

// Collector provides a minimal Prometheus-compatible metrics exporter.
type Collector struct {
	startedAt time.Time

	classifications sync.Map // "source|verdict" -> *atomic.Uint64
	reputationCalls sync.Map // service -> *atomic.Uint64
	rateLimited     sync.Map // service -> *atomic.Uint64
	reputationErrs  sync.Map // service -> *atomic.Uint64
	cacheHits       sync.Map // service -> *atomic.Uint64
	cacheMisses     sync.Map // service -> *atomic.Uint64

	scansTotal     atomic.Uint64
	scansAbandoned atomic.Uint64
	feedSyncs      atomic.Uint64
	feedSyncFails  atomic.Uint64
	snapshotWrites atomic.Uint64
}

func New() *Collector {
	return &Collector{startedAt: time.Now().UTC()}
}

func (c *Collector) IncClassification(source string, malicious bool) {
	if c == nil {
		return
	}
	verdict := "clean"
	if malicious {
		verdict = "malicious"
	}
	inc(&c.classifications, source+"|"+verdict)
}

func (c *Collector) IncReputationCall(service string) {
	if c == nil {
		return
	}
	inc(&c.reputationCalls, service)
}

func (c *Collector) IncRateLimited(service string) {
	if c == nil {
		return
	}
	inc(&c.rateLimited, service)
}

func (c *Collector) IncReputationError(service string) {
	if c == nil {
		return
	}
	inc(&c.reputationErrs, service)
}

func (c *Collector) IncCacheHit(service string) {
	if c == nil {
		return
	}
	inc(&c.cacheHits, service)
}

func (c *Collector) IncCacheMiss(service string) {
	if c == nil {
		return
	}
	inc(&c.cacheMisses, service)
}

func (c *Collector) IncScan() {
	if c == nil {
		return
	}
	c.scansTotal.Add(1)
}

func (c *Collector) IncScanAbandoned() {
	if c == nil {
		return
	}
	c.scansAbandoned.Add(1)
}

func (c *Collector) IncFeedSync(ok bool) {
	if c == nil {
		return
	}
	if ok {
		c.feedSyncs.Add(1)
		return
	}
	c.feedSyncFails.Add(1)
}

func (c *Collector) IncSnapshotWrite() {
	if c == nil {
		return
	}
	c.snapshotWrites.Add(1)
}

func inc(m *sync.Map, key string) {
	if key == "" {
		key = "unknown"
	}
	ptr, _ := m.LoadOrStore(key, &atomic.Uint64{})
	ptr.(*atomic.Uint64).Add(1)
}

type HandlerOptions struct {
	FeedSize func() int
	// Quotas are the daily reputation budgets, keyed by service name.
	Quotas map[string]*ratelimit.Quota
}

func (c *Collector) Handler(opts HandlerOptions) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		fmt.Fprint(w, "# HELP phishscan_up Whether the phishscan server is running.\n")
		fmt.Fprint(w, "# TYPE phishscan_up gauge\n")
		fmt.Fprint(w, "phishscan_up 1\n")

		fmt.Fprint(w, "# HELP phishscan_uptime_seconds Seconds since the collector was created.\n")
		fmt.Fprint(w, "# TYPE phishscan_uptime_seconds gauge\n")
		fmt.Fprintf(w, "phishscan_uptime_seconds %d\n", int64(time.Since(c.startedAt).Seconds()))

		fmt.Fprint(w, "# HELP phishscan_scans_total Scan passes completed.\n")
		fmt.Fprint(w, "# TYPE phishscan_scans_total counter\n")
		fmt.Fprintf(w, "phishscan_scans_total %d\n", c.scansTotal.Load())

		fmt.Fprint(w, "# HELP phishscan_scans_abandoned_total Scan passes abandoned for a newer scan.\n")
		fmt.Fprint(w, "# TYPE phishscan_scans_abandoned_total counter\n")
		fmt.Fprintf(w, "phishscan_scans_abandoned_total %d\n", c.scansAbandoned.Load())

		fmt.Fprint(w, "# HELP phishscan_feed_syncs_total Threat feed sync rounds by outcome.\n")
		fmt.Fprint(w, "# TYPE phishscan_feed_syncs_total counter\n")
		fmt.Fprintf(w, "phishscan_feed_syncs_total{outcome=\"ok\"} %d\n", c.feedSyncs.Load())
		fmt.Fprintf(w, "phishscan_feed_syncs_total{outcome=\"failed\"} %d\n", c.feedSyncFails.Load())

		fmt.Fprint(w, "# HELP phishscan_snapshot_writes_total Scan snapshots persisted.\n")
		fmt.Fprint(w, "# TYPE phishscan_snapshot_writes_total counter\n")
		fmt.Fprintf(w, "phishscan_snapshot_writes_total %d\n", c.snapshotWrites.Load())

		keys := snapshotKeys(&c.classifications)
		if len(keys) > 0 {
			fmt.Fprint(w, "# HELP phishscan_classifications_total Verdicts produced by deciding source.\n")
			fmt.Fprint(w, "# TYPE phishscan_classifications_total counter\n")
			for _, k := range keys {
				source, verdict, _ := strings.Cut(k, "|")
				fmt.Fprintf(w, "phishscan_classifications_total{source=%q,verdict=%q} %d\n",
					escapeLabelValue(source), escapeLabelValue(verdict), load(&c.classifications, k))
			}
		}

		writeByService(w, &c.reputationCalls, "phishscan_reputation_requests_total", "Requests sent to reputation services.")
		writeByService(w, &c.rateLimited, "phishscan_reputation_rate_limited_total", "Rate limit or quota responses from reputation services.")
		writeByService(w, &c.reputationErrs, "phishscan_reputation_errors_total", "Inconclusive reputation responses (timeouts, HTTP and protocol errors).")
		writeByService(w, &c.cacheHits, "phishscan_verdict_cache_hits_total", "Verdict cache hits.")
		writeByService(w, &c.cacheMisses, "phishscan_verdict_cache_misses_total", "Verdict cache misses.")

		if opts.FeedSize != nil {
			fmt.Fprint(w, "# HELP phishscan_feed_entries Entries in the current threat feed snapshot.\n")
			fmt.Fprint(w, "# TYPE phishscan_feed_entries gauge\n")
			fmt.Fprintf(w, "phishscan_feed_entries %d\n", opts.FeedSize())
		}
		writeQuotas(w, opts.Quotas)
	})
}

func writeQuotas(w http.ResponseWriter, quotas map[string]*ratelimit.Quota) {
	services := make([]string, 0, len(quotas))
	for name, q := range quotas {
		if q != nil {
			services = append(services, name)
		}
	}
	if len(services) == 0 {
		return
	}
	sort.Strings(services)
	fmt.Fprint(w, "# HELP phishscan_reputation_quota_used Daily quota units spent per reputation service.\n")
	fmt.Fprint(w, "# TYPE phishscan_reputation_quota_used gauge\n")
	for _, name := range services {
		used, _, _ := quotas[name].Usage()
		fmt.Fprintf(w, "phishscan_reputation_quota_used{service=%q} %d\n", escapeLabelValue(name), used)
	}
	fmt.Fprint(w, "# HELP phishscan_reputation_quota_limit Daily quota per reputation service.\n")
	fmt.Fprint(w, "# TYPE phishscan_reputation_quota_limit gauge\n")
	for _, name := range services {
		_, limit, _ := quotas[name].Usage()
		fmt.Fprintf(w, "phishscan_reputation_quota_limit{service=%q} %d\n", escapeLabelValue(name), limit)
	}
}

func writeByService(w http.ResponseWriter, m *sync.Map, name, help string) {
	keys := snapshotKeys(m)
	if len(keys) == 0 {
		return
	}
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	for _, k := range keys {
		fmt.Fprintf(w, "%s{service=%q} %d\n", name, escapeLabelValue(k), load(m, k))
	}
}

func load(m *sync.Map, key string) uint64 {
	ptr, ok := m.Load(key)
	if !ok {
		return 0
	}
	return ptr.(*atomic.Uint64).Load()
}

func snapshotKeys(m *sync.Map) []string {
	var out []string
	m.Range(func(k, _ any) bool {
		if s, ok := k.(string); ok {
			out = append(out, s)
		}
		return true
	})
	sort.Strings(out)
	return out
}

func escapeLabelValue(v string) string {
	// Prometheus text format label escaping for " and \ and newlines.
	v = strings.ReplaceAll(v, "\\", "\\\\")
	v = strings.ReplaceAll(v, "\n", "\\n")
	v = strings.ReplaceAll(v, "\"", "\\\"")
	return v
}
