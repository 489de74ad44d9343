package detect

import (
	"context"

	"github.com/Smeet2005/PHISHSCAN/internal/threatfeed"
	"github.com/Smeet2005/PHISHSCAN/internal/urlnorm"
	"github.com/Smeet2005/PHISHSCAN/pkg/types"
)

// ReputationClient asks an external service whether a URL is malicious.
type ReputationClient interface {
	// Name returns the service identifier used for caching and metrics.
	Name() string

	// Source is the verdict source recorded when this service decides.
	Source() types.Source

	// Configured reports whether the client has the credentials it needs.
	Configured() bool

	// Query looks up a single URL. It must honour ctx and never panic or
	// return an error; failures are expressed in the Result.
	Query(ctx context.Context, url string) Result
}

// VerdictCache memoizes reputation results per (service, URL).
type VerdictCache interface {
	Get(service, url string) (Result, bool)
	Put(service, url string, r Result)
}

// Shortener recognizes and expands URL shortener links.
type Shortener interface {
	IsShortened(u string) bool
	Resolve(ctx context.Context, u string) string
}

// FeedMatcher checks URLs against the known-bad snapshot.
type FeedMatcher interface {
	Match(rec urlnorm.Record) threatfeed.MatchResult
	MatchFallback(rec urlnorm.Record) threatfeed.MatchResult
}

// Service is a reputation client as wired into the orchestrator.
type Service struct {
	Client ReputationClient
	// Metered services are skipped by the gated strategy for low-risk URLs.
	Metered bool
}
