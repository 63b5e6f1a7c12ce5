package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"RegulatoryRadar/internal/domain"
	"RegulatoryRadar/internal/infrastructure/storage/memory"
)

type fakeSource struct {
	result domain.FetchResult
	err    error
	calls  int32
}

func (f *fakeSource) Fetch(context.Context) (domain.FetchResult, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return domain.FetchResult{}, f.err
	}
	return f.result, nil
}

type fakeEmbedder struct {
	vectors    map[string][]float32
	err        error
	batchCalls int32
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := f.embed(text)
	return out, err
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	atomic.AddInt32(&f.batchCalls, 1)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		v, err := f.embed(text)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fakeEmbedder) embed(text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 1}, nil
}

type oracleKey struct{ tenant, identity string }

type fakeOracle struct {
	mu       sync.Mutex
	verdicts map[oracleKey]domain.Verdict
	errs     map[oracleKey]error
	calls    int
	hook     func(ctx context.Context)

	active int32
	peak   int32
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{verdicts: map[oracleKey]domain.Verdict{}, errs: map[oracleKey]error{}}
}

func (f *fakeOracle) set(tenant, identity string, v domain.Verdict) {
	f.verdicts[oracleKey{tenant, identity}] = v
}

func (f *fakeOracle) Classify(ctx context.Context, profile domain.TenantProfile, item domain.CandidateItem) (domain.Verdict, error) {
	cur := atomic.AddInt32(&f.active, 1)
	defer atomic.AddInt32(&f.active, -1)
	for {
		peak := atomic.LoadInt32(&f.peak)
		if cur <= peak || atomic.CompareAndSwapInt32(&f.peak, peak, cur) {
			break
		}
	}

	if f.hook != nil {
		f.hook(ctx)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	key := oracleKey{profile.TenantID, item.Identity}
	if err := f.errs[key]; err != nil {
		return domain.Verdict{}, err
	}
	if v, ok := f.verdicts[key]; ok {
		return v, nil
	}
	return domain.NotRelevant(json.RawMessage(`{"relevant":false}`)), nil
}

func (f *fakeOracle) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func relevant(impact domain.ImpactLevel, category string) domain.Verdict {
	return domain.Verdict{
		Kind:     domain.VerdictRelevant,
		Impact:   impact,
		Category: category,
		Summary:  "what the owner must know",
		Raw:      json.RawMessage(`{"relevant":true}`),
	}
}

// flakyStore fails RecordUpdate for selected identities.
type flakyStore struct {
	*memory.Store
	mu         sync.Mutex
	failRecord map[string]bool
	markErr    error
}

func (s *flakyStore) RecordUpdate(ctx context.Context, u domain.RegulatoryUpdate, a *domain.ComplianceAlert) (bool, error) {
	s.mu.Lock()
	fail := s.failRecord[u.SourceURL]
	s.mu.Unlock()
	if fail {
		return false, errors.New("connection reset by peer")
	}
	return s.Store.RecordUpdate(ctx, u, a)
}

func (s *flakyStore) MarkProcessed(ctx context.Context, ids []string) error {
	if s.markErr != nil {
		return s.markErr
	}
	return s.Store.MarkProcessed(ctx, ids)
}

type fakeNotifier struct {
	mu      sync.Mutex
	digests []string
	err     error
}

func (f *fakeNotifier) PublishDigest(_ context.Context, digest string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.digests = append(f.digests, digest)
	return f.err
}

type recordingObserver struct {
	mu       sync.Mutex
	outcomes []string
	verdicts map[domain.VerdictKind]int
	stages   map[string]int
}

func newRecordingObserver() *recordingObserver {
	return &recordingObserver{verdicts: map[domain.VerdictKind]int{}, stages: map[string]int{}}
}

func (o *recordingObserver) SourceFailed(string) {}

func (o *recordingObserver) CandidatesSeen(stage string, n int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stages[stage] += n
}

func (o *recordingObserver) VerdictObserved(kind domain.VerdictKind) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.verdicts[kind]++
}

func (o *recordingObserver) UpdateRecorded(domain.ImpactLevel, bool) {}

func (o *recordingObserver) RunFinished(outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.outcomes = append(o.outcomes, outcome)
}

type stuckLocker struct{}

func (stuckLocker) TryLock(context.Context) (func(), bool, error) { return nil, false, nil }

type failingExtractor struct{ err error }

func (f failingExtractor) ExtractAttributes(context.Context, string) (domain.ProfileAttributes, error) {
	return domain.ProfileAttributes{}, f.err
}

type staticExtractor struct{ attrs domain.ProfileAttributes }

func (s staticExtractor) ExtractAttributes(context.Context, string) (domain.ProfileAttributes, error) {
	return s.attrs, nil
}

func newProfile(tenant string, embedding []float32) domain.TenantProfile {
	return domain.TenantProfile{TenantID: tenant, Description: tenant, Embedding: embedding}
}

type replacingFullText struct{ body string }

func (r replacingFullText) Enrich(_ context.Context, items []domain.CandidateItem) []domain.CandidateItem {
	out := make([]domain.CandidateItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].BodyText = r.body
	}
	return out
}
