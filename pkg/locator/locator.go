package locator

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"knexport/pkg/config"
	errs "knexport/pkg/errors"
	"knexport/pkg/kidsnote"
	"knexport/pkg/logger"
)

// CodeNotFound tags discovery failures.
const CodeNotFound = "NOT_FOUND"

// Options configures a Locator
type Options struct {
	// ServiceURL is the service origin, e.g. https://www.kidsnote.com
	ServiceURL string
	// Log supplies passively observed request URLs; may be nil
	Log        ResourceLog
	Strategies []ChildIDStrategy
}

// Locator finds the collection endpoint and child id for a record kind.
type Locator struct {
	fetcher    kidsnote.Fetcher
	serviceURL string
	host       string
	log        ResourceLog
	strategies []ChildIDStrategy
	logger     logger.Logger
}

// DefaultStrategies returns the alias lookup followed by the configured heuristic scan.
func DefaultStrategies(cfg config.DiscoveryConfig) []ChildIDStrategy {
	return []ChildIDStrategy{
		AliasStrategy{Aliases: DefaultAliases},
		HeuristicStrategy{
			FieldHint: cfg.ChildFieldHint,
			MinValue:  cfg.MinChildID,
			MaxDepth:  cfg.MaxScanDepth,
		},
	}
}

// New creates a Locator. The fetcher must carry the user's session.
func New(fetcher kidsnote.Fetcher, opts Options, log logger.Logger) (*Locator, error) {
	u, err := url.Parse(opts.ServiceURL)
	if err != nil || u.Host == "" {
		return nil, errs.New(errs.ErrorTypeValidation, "locator.New", fmt.Sprintf("invalid service URL %q", opts.ServiceURL))
	}
	strategies := opts.Strategies
	if len(strategies) == 0 {
		strategies = DefaultStrategies(config.DefaultConfig().Discovery)
	}
	return &Locator{
		fetcher:    fetcher,
		serviceURL: strings.TrimRight(opts.ServiceURL, "/"),
		host:       u.Host,
		log:        opts.Log,
		strategies: strategies,
		logger:     logger.OrDefault(log).WithField("component", "locator"),
	}, nil
}

// Locate tries the passive log first and the account-info fallback second.
// Failure is returned as a discovery error with code NOT_FOUND; it is never
// retried here.
func (l *Locator) Locate(ctx context.Context, kind kidsnote.Kind) (*kidsnote.EndpointInfo, error) {
	if info, ok := l.Passive(kind); ok {
		l.logger.InfoWithFields("endpoint found in observed requests", map[string]interface{}{
			"kind":     string(kind),
			"child_id": info.ChildID,
		})
		return info, nil
	}

	info, err := l.Fallback(ctx, kind)
	if err != nil {
		return nil, err
	}
	l.logger.InfoWithFields("endpoint found via account info", map[string]interface{}{
		"kind":     string(kind),
		"child_id": info.ChildID,
	})
	return info, nil
}

// Passive scans the resource log for a request the site itself made.
func (l *Locator) Passive(kind kidsnote.Kind) (*kidsnote.EndpointInfo, bool) {
	if l.log == nil {
		return nil, false
	}
	urls, err := l.log.URLs()
	if err != nil {
		l.logger.WithError(err).Warn("resource log unavailable")
		return nil, false
	}

	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil || !strings.EqualFold(u.Host, l.host) {
			continue
		}
		childID, ok := kidsnote.MatchKindPath(u.Path, kind)
		if !ok {
			continue
		}
		return kidsnote.NewEndpointInfo(l.serviceURL, kind, childID, raw), true
	}
	return nil, false
}

// Fallback asks the account-info endpoint and validates each candidate with a probe.
func (l *Locator) Fallback(ctx context.Context, kind kidsnote.Kind) (*kidsnote.EndpointInfo, error) {
	res, err := l.fetcher.Fetch(ctx, l.serviceURL+kidsnote.AccountInfoPath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, notFound(fmt.Sprintf("account info request failed: %v", err))
	}
	if !res.OK || res.Data == nil {
		return nil, notFound(fmt.Sprintf("account info unavailable (HTTP %d); is the session still signed in?", res.Status))
	}

	tried := map[string]bool{}
	for _, s := range l.strategies {
		id, ok := s.Discover(res.Data)
		if !ok || tried[id] {
			continue
		}
		tried[id] = true

		info := kidsnote.NewEndpointInfo(l.serviceURL, kind, id, "")
		if err := l.Probe(ctx, info); err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			l.logger.WarnWithFields("candidate child id rejected by probe", map[string]interface{}{
				"strategy": s.Name(),
				"child_id": id,
				"error":    err.Error(),
			})
			continue
		}
		l.logger.DebugWithFields("candidate child id accepted", map[string]interface{}{
			"strategy": s.Name(),
			"child_id": id,
		})
		return info, nil
	}

	return nil, notFound("no child id could be determined from account info")
}

// Probe requests a single record from the candidate endpoint; only a 2xx accepts it.
func (l *Locator) Probe(ctx context.Context, info *kidsnote.EndpointInfo) error {
	res, err := l.fetcher.Fetch(ctx, info.ProbeURL())
	if err != nil {
		return err
	}
	if !res.OK {
		return &errs.Error{Type: errs.ErrorTypeHTTP, Op: "probe", Status: res.Status, Message: fmt.Sprintf("HTTP %d", res.Status)}
	}
	return nil
}

func notFound(msg string) error {
	return &errs.Error{Type: errs.ErrorTypeDiscovery, Op: "locate", Code: CodeNotFound, Message: msg}
}
