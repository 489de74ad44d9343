// Package shortener recognises URL-shortener links and follows them to
// their destination.
package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Smeet2005/PHISHSCAN/pkg/observability"
)

// DefaultHosts are the shortener services recognised without configuration.
var DefaultHosts = []string{
	"bit.ly", "tinyurl.com", "t.co", "goo.gl", "is.gd", "v.gd", "ow.ly",
	"buff.ly", "adf.ly", "sh.st", "adfly.com", "shorte.st", "shorten.me",
	"shorturl.com", "tiny.cc", "short.to", "snipurl.com", "tr.im", "snipr.com",
	"shortlinks.co",
}

var errTooManyRedirects = errors.New("too many redirects")

type Options struct {
	Timeout      time.Duration
	MaxRedirects int
	ExtraHosts   []string
	// Client overrides the HTTP client; its CheckRedirect is replaced.
	Client *http.Client
	Logger *slog.Logger
}

// Resolver expands shortened URLs with a HEAD request.
type Resolver struct {
	hosts        map[string]struct{}
	client       *http.Client
	timeout      time.Duration
	maxRedirects int
	logger       *slog.Logger
}

func New(opts Options) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.MaxRedirects <= 0 {
		opts.MaxRedirects = 10
	}
	if opts.Logger == nil {
		opts.Logger = observability.Discard()
	}
	hosts := make(map[string]struct{}, len(DefaultHosts)+len(opts.ExtraHosts))
	for _, h := range DefaultHosts {
		hosts[h] = struct{}{}
	}
	for _, h := range opts.ExtraHosts {
		h = strings.ToLower(strings.TrimSpace(h))
		if h != "" {
			hosts[strings.TrimPrefix(h, "www.")] = struct{}{}
		}
	}

	client := &http.Client{}
	if opts.Client != nil {
		c := *opts.Client
		client = &c
	}
	max := opts.MaxRedirects
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) > max {
			return errTooManyRedirects
		}
		return nil
	}

	return &Resolver{
		hosts:        hosts,
		client:       client,
		timeout:      opts.Timeout,
		maxRedirects: max,
		logger:       opts.Logger,
	}
}

// IsShortened reports whether u points at a known shortener host.
func (r *Resolver) IsShortened(u string) bool {
	parsed, err := url.Parse(strings.TrimSpace(u))
	if err != nil || parsed.Host == "" {
		return false
	}
	host := strings.TrimPrefix(strings.ToLower(parsed.Hostname()), "www.")
	_, ok := r.hosts[host]
	return ok
}

// Resolve follows redirects from u and returns the final URL when it differs
// and answered 2xx. Any failure returns u unchanged.
func (r *Resolver) Resolve(ctx context.Context, u string) string {
	ctx, span := observability.TraceStage(ctx, observability.StageShortener, map[string]string{"url": u})
	defer span.End()

	final, err := r.follow(ctx, u)
	if err != nil {
		observability.RecordError(span, err)
		r.logger.DebugContext(ctx, "shortened url not resolved", "url", u, "error", err)
		return u
	}
	if final == u {
		return u
	}
	r.logger.DebugContext(ctx, "shortened url resolved", "url", u, "resolved", final)
	return final
}

func (r *Resolver) follow(ctx context.Context, u string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("final response HTTP %d", resp.StatusCode)
	}
	return resp.Request.URL.String(), nil
}
