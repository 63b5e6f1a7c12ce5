package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/ports"
)

// createdAlert is what the run digest reports per new alert.
type createdAlert struct {
	TenantID string
	Title    string
	URL      string
	Impact   domain.ImpactLevel
	Category string
	DueDate  time.Time
}

// tenantOutcome aggregates one tenant's classification results.
type tenantOutcome struct {
	Recorded  int
	Alerts    int
	Discarded int
	// Failed holds identities whose recording hit a storage error.
	Failed  []string
	Created []createdAlert
}

// Classifier runs the oracle over ranked candidates and records accepted ones.
type Classifier struct {
	oracle   ports.ClassificationOracle
	updates  ports.UpdateRepository
	observer ports.ScanObserver
	timeout  time.Duration
	now      func() time.Time
	logger   *slog.Logger
}

// NewClassifier builds the stage; timeout bounds each oracle call.
func NewClassifier(oracle ports.ClassificationOracle, updates ports.UpdateRepository, observer ports.ScanObserver, timeout time.Duration, logger *slog.Logger) *Classifier {
	return &Classifier{
		oracle:   oracle,
		updates:  updates,
		observer: observer,
		timeout:  timeout,
		now:      time.Now,
		logger:   logger,
	}
}

// Process classifies the matched candidates for one tenant.
func (c *Classifier) Process(ctx context.Context, profile domain.TenantProfile, items []domain.CandidateItem, matches []Match) tenantOutcome {
	var out tenantOutcome

	for _, m := range matches {
		if ctx.Err() != nil {
			return out
		}
		item := items[m.Index]

		verdict, err := c.classify(ctx, profile, item)
		if err != nil {
			c.warn("oracle call failed", "tenant", profile.TenantID, "identity", item.Identity, "error", err)
			verdict = domain.Malformed(err.Error())
		}
		c.observeVerdict(verdict.Kind)

		switch verdict.Kind {
		case domain.VerdictNotRelevant:
			out.Discarded++
			continue
		case domain.VerdictMalformed:
			if err == nil {
				c.warn("malformed verdict discarded", "tenant", profile.TenantID, "identity", item.Identity, "reason", verdict.Reason)
			}
			out.Discarded++
			continue
		}

		update := c.buildUpdate(profile.TenantID, item, verdict)
		alert, _ := DeriveAlert(update)

		inserted, err := c.updates.RecordUpdate(ctx, update, alert)
		if err != nil {
			c.logError("record update failed", "tenant", profile.TenantID, "identity", item.Identity, "error", err)
			out.Failed = append(out.Failed, item.Identity)
			continue
		}
		if !inserted {
			c.debug("update already recorded", "tenant", profile.TenantID, "source_url", update.SourceURL)
			continue
		}

		out.Recorded++
		if c.observer != nil {
			c.observer.UpdateRecorded(update.ImpactLevel, alert != nil)
		}
		if alert != nil {
			out.Alerts++
			out.Created = append(out.Created, createdAlert{
				TenantID: profile.TenantID,
				Title:    update.Title,
				URL:      item.Link,
				Impact:   update.ImpactLevel,
				Category: update.Category,
				DueDate:  alert.DueDate,
			})
		}
		c.debug("update recorded", "tenant", profile.TenantID, "identity", item.Identity,
			"impact", update.ImpactLevel, "score", m.Score)
	}

	return out
}

func (c *Classifier) classify(ctx context.Context, profile domain.TenantProfile, item domain.CandidateItem) (domain.Verdict, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	return c.oracle.Classify(ctx, profile, item)
}

func (c *Classifier) buildUpdate(tenantID string, item domain.CandidateItem, verdict domain.Verdict) domain.RegulatoryUpdate {
	return domain.RegulatoryUpdate{
		ID:                 uuid.New(),
		TenantID:           tenantID,
		Title:              item.Title,
		SourceURL:          item.Identity,
		SourceName:         item.SourceName,
		Summary:            verdict.Summary,
		ImpactLevel:        verdict.Impact,
		Category:           verdict.Category,
		ContentFingerprint: item.RawFingerprint(),
		DetectedAt:         c.now().UTC(),
		RawClassification:  verdict.Raw,
	}
}

func (c *Classifier) observeVerdict(kind domain.VerdictKind) {
	if c.observer != nil {
		c.observer.VerdictObserved(kind)
	}
}

func (c *Classifier) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

func (c *Classifier) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Classifier) logError(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Error(msg, args...)
	}
}
