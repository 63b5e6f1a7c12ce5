package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/ports"
)

// Run outcomes reported to the observer.
const (
	OutcomeSuccess   = "success"
	OutcomeNoop      = "noop"
	OutcomeSkipped   = "skipped"
	OutcomeCancelled = "cancelled"
	OutcomeFailed    = "failed"
)

// PipelineDeps wires all driven adapters into the scan pipeline.
type PipelineDeps struct {
	Source   ports.CandidateSource
	FullText ports.FullTextFetcher
	Store    ports.Store
	Embedder ports.EmbeddingGateway
	Oracle   ports.ClassificationOracle
	Locker   ports.RunLocker
	Notifier ports.Notifier
	Observer ports.ScanObserver
	Logger   *slog.Logger

	TopK            int
	SimilarityFloor float64
	Workers         int
	OracleTimeout   time.Duration
}

// Pipeline implements one full scan: fetch, dedup, embed once, then rank and
// classify per tenant in a bounded pool, and finally mark the ledger.
type Pipeline struct {
	source     ports.CandidateSource
	fullText   ports.FullTextFetcher
	store      ports.Store
	embedder   ports.EmbeddingGateway
	locker     ports.RunLocker
	notifier   ports.Notifier
	observer   ports.ScanObserver
	ranker     Ranker
	classifier *Classifier
	workers    int
	now        func() time.Time
	logger     *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	workers := deps.Workers
	if workers <= 0 {
		workers = 1
	}

	return &Pipeline{
		source:     deps.Source,
		fullText:   deps.FullText,
		store:      deps.Store,
		embedder:   deps.Embedder,
		locker:     deps.Locker,
		notifier:   deps.Notifier,
		observer:   deps.Observer,
		ranker:     NewRanker(deps.TopK, deps.SimilarityFloor),
		classifier: NewClassifier(deps.Oracle, deps.Store, deps.Observer, deps.OracleTimeout, deps.Logger),
		workers:    workers,
		now:        time.Now,
		logger:     deps.Logger,
	}
}

// Run executes a scan. It returns domain.ErrScanInProgress when another run
// holds the lock. The ledger is written only after every tenant has been
// attempted; a failed or cancelled run leaves it untouched.
func (p *Pipeline) Run(ctx context.Context) (summary domain.RunSummary, err error) {
	summary = domain.RunSummary{RunID: uuid.New(), StartedAt: p.now().UTC()}
	outcome := OutcomeFailed
	defer func() {
		summary.FinishedAt = p.now().UTC()
		if p.observer != nil {
			p.observer.RunFinished(outcome, summary.FinishedAt.Sub(summary.StartedAt))
		}
	}()

	if p.locker != nil {
		release, acquired, lockErr := p.locker.TryLock(ctx)
		if lockErr != nil {
			return summary, fmt.Errorf("acquire run lock: %w", lockErr)
		}
		if !acquired {
			outcome = OutcomeSkipped
			return summary, domain.ErrScanInProgress
		}
		defer release()
	}

	log := p.logger
	if log != nil {
		log = log.With("run_id", summary.RunID.String())
		log.Info("scan started")
	}

	fetched, err := p.source.Fetch(ctx)
	if err != nil {
		outcome = cancelledOr(ctx, OutcomeFailed)
		return summary, fmt.Errorf("fetch candidates: %w", err)
	}
	summary.Fetched = len(fetched.Items)
	summary.SourceFailures = fetched.Failures
	p.seen("fetched", summary.Fetched)

	fresh, err := p.store.FilterNew(ctx, fetched.Items)
	if err != nil {
		outcome = cancelledOr(ctx, OutcomeFailed)
		return summary, fmt.Errorf("filter processed: %w", err)
	}
	summary.New = len(fresh)
	p.seen("new", summary.New)

	if len(fresh) == 0 {
		outcome = OutcomeNoop
		p.info(log, "no new candidates", "fetched", summary.Fetched)
		return summary, nil
	}

	for i := range fresh {
		fresh[i].StampFingerprint()
	}
	if p.fullText != nil {
		fresh = p.fullText.Enrich(ctx, fresh)
	}

	embeddings, err := p.embedAll(ctx, fresh)
	if err != nil {
		outcome = cancelledOr(ctx, OutcomeFailed)
		return summary, err
	}

	profiles, err := p.store.ListProfiles(ctx)
	if err != nil {
		outcome = cancelledOr(ctx, OutcomeFailed)
		return summary, fmt.Errorf("list profiles: %w", err)
	}

	var (
		mu      sync.Mutex
		failed  = map[string]struct{}{}
		created []createdAlert
		g       errgroup.Group
	)
	g.SetLimit(p.workers)

	for _, profile := range profiles {
		if !profile.HasEmbedding() {
			summary.TenantsSkipped++
			p.debug(log, "tenant skipped without embedding", "tenant", profile.TenantID)
			continue
		}
		summary.TenantsScanned++

		profile := profile
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			matches := p.ranker.Rank(profile.Embedding, embeddings)
			p.seen("ranked", len(matches))

			res := p.classifier.Process(ctx, profile, fresh, matches)

			mu.Lock()
			defer mu.Unlock()
			summary.UpdatesRecorded += res.Recorded
			summary.AlertsCreated += res.Alerts
			summary.Discarded += res.Discarded
			for _, id := range res.Failed {
				failed[id] = struct{}{}
			}
			created = append(created, res.Created...)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		outcome = OutcomeCancelled
		return summary, fmt.Errorf("scan interrupted: %w", err)
	}

	toMark := make([]string, 0, len(fresh))
	for _, item := range fresh {
		if _, withheld := failed[item.Identity]; withheld {
			continue
		}
		toMark = append(toMark, item.Identity)
	}
	if len(failed) > 0 {
		p.warn(log, "identities withheld from ledger after storage errors", "count", len(failed))
	}

	if err := p.store.MarkProcessed(ctx, toMark); err != nil {
		outcome = cancelledOr(ctx, OutcomeFailed)
		return summary, fmt.Errorf("mark processed: %w", err)
	}
	summary.Marked = len(toMark)

	p.publishDigest(ctx, log, created)

	outcome = OutcomeSuccess
	p.info(log, "scan finished",
		"fetched", summary.Fetched,
		"new", summary.New,
		"tenants", summary.TenantsScanned,
		"skipped_tenants", summary.TenantsSkipped,
		"updates", summary.UpdatesRecorded,
		"alerts", summary.AlertsCreated,
		"discarded", summary.Discarded,
		"marked", summary.Marked,
		"failed_sources", len(summary.SourceFailures),
	)
	return summary, nil
}

// embedAll computes every candidate embedding in one gateway call; tenant
// work starts only after it returns.
func (p *Pipeline) embedAll(ctx context.Context, items []domain.CandidateItem) ([][]float32, error) {
	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = item.EmbeddingText()
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed candidates: %w", err)
	}
	if len(embeddings) != len(items) {
		return nil, fmt.Errorf("embed candidates: expected %d vectors, got %d", len(items), len(embeddings))
	}
	return embeddings, nil
}

func (p *Pipeline) publishDigest(ctx context.Context, log *slog.Logger, created []createdAlert) {
	if p.notifier == nil || len(created) == 0 {
		return
	}
	if err := p.notifier.PublishDigest(ctx, buildDigestMessage(created)); err != nil {
		p.warn(log, "digest not delivered", "error", err)
	}
}

func buildDigestMessage(alerts []createdAlert) string {
	sorted := append([]createdAlert(nil), alerts...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TenantID != sorted[j].TenantID {
			return sorted[i].TenantID < sorted[j].TenantID
		}
		return sorted[i].DueDate.Before(sorted[j].DueDate)
	})

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d new compliance alert(s)\n\n", len(sorted))
	for _, a := range sorted {
		fmt.Fprintf(&sb, "- [%s] %s / %s: %s\n  due %s\n", a.TenantID, a.Impact, a.Category, a.Title, a.DueDate.Format("2006-01-02"))
		if a.URL != "" {
			fmt.Fprintf(&sb, "  %s\n", a.URL)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func cancelledOr(ctx context.Context, outcome string) string {
	if errors.Is(ctx.Err(), context.Canceled) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return OutcomeCancelled
	}
	return outcome
}

func (p *Pipeline) seen(stage string, n int) {
	if p.observer != nil {
		p.observer.CandidatesSeen(stage, n)
	}
}

func (p *Pipeline) info(log *slog.Logger, msg string, args ...any) {
	if log != nil {
		log.Info(msg, args...)
	}
}

func (p *Pipeline) debug(log *slog.Logger, msg string, args ...any) {
	if log != nil {
		log.Debug(msg, args...)
	}
}

func (p *Pipeline) warn(log *slog.Logger, msg string, args ...any) {
	if log != nil {
		log.Warn(msg, args...)
	}
}
