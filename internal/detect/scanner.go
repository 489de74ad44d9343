package detect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Smeet2005/PHISHSCAN/internal/extract"
	"github.com/Smeet2005/PHISHSCAN/internal/metrics"
	"github.com/Smeet2005/PHISHSCAN/internal/store"
	"github.com/Smeet2005/PHISHSCAN/pkg/observability"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

// ErrAbandoned is returned when a newer scan with the same key replaced the
// one in flight. Its partial results are discarded.
var ErrAbandoned = errors.New("scan abandoned")

type ScannerConfig struct {
	BatchSize  int
	BatchDelay time.Duration
	MaxLinks   int
	MaxForms   int
}

// Scanner runs scan passes over the candidate URLs of a page and records a
// snapshot of each pass.
type Scanner struct {
	orch    *Orchestrator
	store   store.Store
	cfg     ScannerConfig
	metrics *metrics.Collector
	logger  *slog.Logger

	mu       sync.Mutex
	inflight map[string]*inflightScan
}

type inflightScan struct {
	cancel context.CancelCauseFunc
}

type candidate struct {
	url  string
	kind types.CandidateKind
}

func NewScanner(orch *Orchestrator, st store.Store, cfg ScannerConfig, m *metrics.Collector, logger *slog.Logger) *Scanner {
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 6
	}
	if logger == nil {
		logger = observability.Discard()
	}
	return &Scanner{
		orch:     orch,
		store:    st,
		cfg:      cfg,
		metrics:  m,
		logger:   logger,
		inflight: make(map[string]*inflightScan),
	}
}

// Limits returns the candidate caps applied to every page.
func (s *Scanner) Limits() extract.Limits {
	return extract.Limits{MaxLinks: s.cfg.MaxLinks, MaxForms: s.cfg.MaxForms}
}

// Scan classifies the links and forms of req in paced batches. emit, when
// non-nil, receives each result as soon as its batch completes. Starting a
// scan with the key of a running one abandons the running one.
func (s *Scanner) Scan(ctx context.Context, req types.ScanRequest, emit func(types.ScanResult)) (types.Snapshot, error) {
	started := time.Now().UTC()
	snap := types.Snapshot{
		ID:        uuid.NewString(),
		PageURL:   req.PageURL,
		Found:     []types.Finding{},
		Clean:     []types.Finding{},
		StartedAt: started,
	}

	settings, err := s.store.GetSettings(ctx)
	if err != nil {
		return snap, fmt.Errorf("load settings: %w", err)
	}
	if !settings.Enabled {
		snap.CompletedAt = &started
		if err := s.store.PutSnapshot(ctx, snap); err != nil {
			return snap, fmt.Errorf("write snapshot: %w", err)
		}
		return snap, ErrDisabled
	}

	page, err := s.page(req)
	if err != nil {
		return snap, err
	}

	scanCtx, done := s.register(ctx, scanKey(req))
	defer done()

	scanCtx, span := observability.TraceStage(scanCtx, observability.StageScan, map[string]string{"page": req.PageURL, "id": snap.ID})
	defer span.End()

	snap.Scanning = true
	if err := s.store.PutSnapshot(ctx, snap); err != nil {
		return snap, fmt.Errorf("write snapshot: %w", err)
	}

	cands := make([]candidate, 0, len(page.Links)+len(page.Forms))
	for _, u := range page.Links {
		cands = append(cands, candidate{url: u, kind: types.CandidateLink})
	}
	for _, u := range page.Forms {
		cands = append(cands, candidate{url: u, kind: types.CandidateForm})
	}
	s.logger.Debug("scan: starting", "id", snap.ID, "page", req.PageURL, "links", len(page.Links), "forms", len(page.Forms))

	pass := NewPass()
	for start := 0; start < len(cands); start += s.cfg.BatchSize {
		if start > 0 && s.cfg.BatchDelay > 0 {
			select {
			case <-scanCtx.Done():
			case <-time.After(s.cfg.BatchDelay):
			}
		}
		if err := s.abandoned(scanCtx, snap.ID); err != nil {
			observability.RecordError(span, err)
			return snap, err
		}

		end := min(start+s.cfg.BatchSize, len(cands))
		results := s.classifyBatch(scanCtx, pass, cands[start:end], req.PageURL)
		if err := s.abandoned(scanCtx, snap.ID); err != nil {
			observability.RecordError(span, err)
			return snap, err
		}

		for _, res := range results {
			record(&snap, res)
			snap.TotalScanned++
			if emit != nil {
				emit(res)
			}
		}
	}

	completed := time.Now().UTC()
	snap.Scanning = false
	snap.RateLimited = pass.RateLimited()
	snap.CompletedAt = &completed
	if err := s.store.PutSnapshot(ctx, snap); err != nil {
		return snap, fmt.Errorf("write snapshot: %w", err)
	}
	s.metrics.IncScan()
	s.logger.Info("scan complete", "id", snap.ID, "page", req.PageURL,
		"scanned", snap.TotalScanned, "found", len(snap.Found), "rate_limited", snap.RateLimited)
	return snap, nil
}

func (s *Scanner) page(req types.ScanRequest) (extract.Page, error) {
	if req.HTML != "" {
		page, err := extract.FromHTML(strings.NewReader(req.HTML), req.PageURL, s.Limits())
		if err != nil {
			return extract.Page{}, fmt.Errorf("extract candidates: %w", err)
		}
		return page, nil
	}
	page, err := extract.FromTargets(req.PageURL, req.Links, req.Forms, s.Limits())
	if err != nil {
		return extract.Page{}, fmt.Errorf("extract candidates: %w", err)
	}
	return page, nil
}

// classifyBatch classifies one batch concurrently. Result i always belongs to
// candidate i.
func (s *Scanner) classifyBatch(ctx context.Context, pass *Pass, batch []candidate, base string) []types.ScanResult {
	results := make([]types.ScanResult, len(batch))
	g, gctx := errgroup.WithContext(ctx)
	for i, c := range batch {
		g.Go(func() error {
			res := types.ScanResult{URL: c.url, Kind: c.kind}
			if v, ok := s.orch.Classify(gctx, pass, c.url, base); ok {
				res.Verdict = &v
			} else {
				res.Skipped = true
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (s *Scanner) abandoned(ctx context.Context, id string) error {
	if ctx.Err() == nil {
		return nil
	}
	cause := context.Cause(ctx)
	if errors.Is(cause, ErrAbandoned) {
		s.metrics.IncScanAbandoned()
		s.logger.Info("scan abandoned", "id", id)
		return ErrAbandoned
	}
	return cause
}

// register cancels any scan running under key and tracks the new one.
func (s *Scanner) register(ctx context.Context, key string) (context.Context, func()) {
	scanCtx, cancel := context.WithCancelCause(ctx)
	entry := &inflightScan{cancel: cancel}

	s.mu.Lock()
	if prev, ok := s.inflight[key]; ok {
		prev.cancel(ErrAbandoned)
	}
	s.inflight[key] = entry
	s.mu.Unlock()

	return scanCtx, func() {
		s.mu.Lock()
		if s.inflight[key] == entry {
			delete(s.inflight, key)
		}
		s.mu.Unlock()
		cancel(nil)
	}
}

// Cancel abandons the scan running under key, if any.
func (s *Scanner) Cancel(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.inflight[key]; ok {
		prev.cancel(ErrAbandoned)
		delete(s.inflight, key)
	}
}

func scanKey(req types.ScanRequest) string {
	if req.Key != "" {
		return req.Key
	}
	return req.PageURL
}

// record files a result into the snapshot. Links land in Found when
// malicious and in Clean when a reputation service confirmed them clean
// with evidence; forms are only reported when malicious.
func record(snap *types.Snapshot, res types.ScanResult) {
	v := res.Verdict
	if v == nil {
		return
	}
	f := types.Finding{
		URL:         res.URL,
		Kind:        res.Kind,
		Reason:      v.Reason,
		Source:      v.Source,
		ThreatType:  v.ThreatType,
		IsShortened: v.IsShortened,
		ResolvedURL: v.ResolvedURL,
		Evidence:    v.Evidence,
	}
	switch {
	case v.Malicious:
		snap.Found = append(snap.Found, f)
	case res.Kind == types.CandidateLink && v.Evidence != nil && v.Evidence.Total > 0 && !v.Evidence.MinorDetections:
		snap.Clean = append(snap.Clean, f)
	}
}
