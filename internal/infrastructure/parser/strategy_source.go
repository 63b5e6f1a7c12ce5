package parser

import (
	"context"
	"fmt"
	"log/slog"

	"RegulatoryRadar/internal/config"
	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/ports"
	"RegulatoryRadar/internal/scanner"
)

// StrategySource implements CandidateSource via registered scanner strategies.
type StrategySource struct {
	registry *scanner.Registry
	sources  []config.SourceConfig
	observer ports.ScanObserver
	logger   *slog.Logger
}

var _ ports.CandidateSource = (*StrategySource)(nil)

// NewStrategySource wires scanner registry with config-defined sources.
func NewStrategySource(reg *scanner.Registry, sources []config.SourceConfig, observer ports.ScanObserver, log *slog.Logger) *StrategySource {
	return &StrategySource{
		registry: reg,
		sources:  sources,
		observer: observer,
		logger:   log,
	}
}

// Fetch reads every configured source. A failing source is logged and
// skipped; only cancellation of ctx aborts the whole fetch.
func (s *StrategySource) Fetch(ctx context.Context) (domain.FetchResult, error) {
	var result domain.FetchResult
	seen := map[string]struct{}{}

	s.debug("fetch sources", "sources", len(s.sources))

	for _, src := range s.sources {
		if err := ctx.Err(); err != nil {
			return domain.FetchResult{}, err
		}

		items, err := s.scanSource(ctx, src)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return domain.FetchResult{}, ctxErr
			}
			s.warn("source skipped", "source", src.Name, "scanner", src.Scanner, "error", err)
			result.Failures = append(result.Failures, domain.SourceFailure{Source: src.Name, Err: err.Error()})
			if s.observer != nil {
				s.observer.SourceFailed(src.Name)
			}
			continue
		}

		added := 0
		for _, item := range items {
			if _, dup := seen[item.Identity]; dup {
				continue
			}
			seen[item.Identity] = struct{}{}
			if item.SourceName == "" {
				item.SourceName = src.Name
			}
			result.Items = append(result.Items, item)
			added++
		}
		s.debug("source produced candidates", "source", src.Name, "count", len(items), "added", added)
	}

	s.debug("strategy source done", "total_candidates", len(result.Items), "failed_sources", len(result.Failures))
	return result, nil
}

func (s *StrategySource) scanSource(ctx context.Context, src config.SourceConfig) ([]domain.CandidateItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("scanner registry is not configured")
	}

	strategy, err := s.registry.Resolve(src.Scanner)
	if err != nil {
		return nil, err
	}

	return strategy.Scan(ctx, scanner.Request{
		SourceName: src.Name,
		URL:        src.URL,
		Options:    src.Options,
	})
}

func (s *StrategySource) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *StrategySource) warn(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}
