// Package pipeline wires the full speech-to-state path: fragments flow
// through the trigger evaluator, and each trigger runs one asynchronous
// analysis pass (classify, assemble context, dispatch operations).
// Speech ingestion never blocks on analysis.
package pipeline

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"warvox/internal/assembler"
	"warvox/internal/classify"
	"warvox/internal/dispatch"
	"warvox/internal/state"
	"warvox/internal/trigger"
	"warvox/internal/types"
)

// defaultHistoryLimit bounds the retained fragment history; the context
// assembler reads at most 20 of these per pass.
const defaultHistoryLimit = 50

// Analysis is the outcome of one analysis pass, delivered to the
// result callback.
type Analysis struct {
	Decision       types.TriggerDecision
	Classification types.IntentClassification
	Transcript     string
	Batch          *dispatch.Batch

	// Skipped is set when the classifier gated the transcript out as
	// not game related; no dispatch happened.
	Skipped bool

	// Superseded is set when a newer trigger cancelled this pass before
	// it finished; its fragments were folded into the newer pass.
	Superseded bool

	Err error
}

// Pipeline orchestrates one session's speech-to-state flow. A newer
// trigger supersedes any in-flight analysis: the old pass is cancelled
// and its fragments prepended to the new window, so the later, more
// complete transcript wins.
type Pipeline struct {
	sessionID  string
	trigger    *trigger.Evaluator
	classifier *classify.Classifier
	assembler  *assembler.Assembler
	dispatcher *dispatch.Dispatcher
	store      state.Store
	logger     *zap.Logger
	tracer     trace.Tracer
	onResult   func(Analysis)

	historyLimit int
	clock        func() time.Time

	mu             sync.Mutex
	history        []types.Fragment
	inflightCancel context.CancelFunc
	inflightFrags  []types.Fragment
	generation     int

	wg sync.WaitGroup
}

// Options configures a pipeline.
type Options struct {
	SessionID  string
	Trigger    *trigger.Evaluator
	Classifier *classify.Classifier
	Assembler  *assembler.Assembler
	Dispatcher *dispatch.Dispatcher
	Store      state.Store
	Logger     *zap.Logger

	// OnResult receives every finished analysis. Called from the
	// analysis goroutine; must not block for long.
	OnResult func(Analysis)

	// HistoryLimit bounds retained fragments; 0 takes the default.
	HistoryLimit int
}

// New assembles a pipeline from its collaborators.
func New(opts Options) *Pipeline {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = defaultHistoryLimit
	}
	if opts.OnResult == nil {
		opts.OnResult = func(Analysis) {}
	}
	return &Pipeline{
		sessionID:    opts.SessionID,
		trigger:      opts.Trigger,
		classifier:   opts.Classifier,
		assembler:    opts.Assembler,
		dispatcher:   opts.Dispatcher,
		store:        opts.Store,
		logger:       opts.Logger,
		tracer:       otel.Tracer("warvox/pipeline"),
		onResult:     opts.OnResult,
		historyLimit: opts.HistoryLimit,
		clock:        time.Now,
	}
}

// Ingest feeds one finalized speech fragment. It returns the trigger
// decision immediately; any analysis runs on its own goroutine under
// ctx, which should outlive the call (it bounds the analysis, not the
// ingestion).
func (p *Pipeline) Ingest(ctx context.Context, text string) types.TriggerDecision {
	return p.IngestFragment(ctx, types.Fragment{Text: text, Timestamp: p.clock()})
}

// IngestFragment is Ingest with an explicit timestamp, for replaying
// recorded transcripts through the trigger's timing checks.
func (p *Pipeline) IngestFragment(ctx context.Context, frag types.Fragment) types.TriggerDecision {
	if frag.Timestamp.IsZero() {
		frag.Timestamp = p.clock()
	}
	text := frag.Text
	decision := p.trigger.Observe(frag)

	if strings.TrimSpace(text) != "" {
		p.mu.Lock()
		p.history = append(p.history, frag)
		if len(p.history) > p.historyLimit {
			p.history = p.history[len(p.history)-p.historyLimit:]
		}
		p.mu.Unlock()
	}

	if !decision.Triggered {
		return decision
	}

	p.mu.Lock()
	if p.inflightCancel != nil {
		// Supersede: fold the cancelled pass's fragments in front of the
		// new window so nothing spoken is lost.
		p.inflightCancel()
		decision.Fragments = mergeFragments(p.inflightFrags, decision.Fragments)
	}
	p.generation++
	gen := p.generation
	runCtx, cancel := context.WithCancel(ctx)
	p.inflightCancel = cancel
	p.inflightFrags = decision.Fragments
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer cancel()
		p.analyze(runCtx, gen, decision)
	}()
	return decision
}

// Wait blocks until every launched analysis has finished.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

// Close cancels any in-flight analysis and waits for goroutines to
// drain.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if p.inflightCancel != nil {
		p.inflightCancel()
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pipeline) analyze(ctx context.Context, gen int, decision types.TriggerDecision) {
	ctx, span := p.tracer.Start(ctx, "pipeline.analysis",
		trace.WithAttributes(
			attribute.String("trigger.kind", string(decision.Kind)),
			attribute.Int("trigger.fragments", len(decision.Fragments)),
		))
	defer span.End()

	result := Analysis{
		Decision:   decision,
		Transcript: transcript(decision.Fragments),
	}
	defer func() {
		p.settle(gen, &result)
		p.onResult(result)
	}()

	var summary state.Summary
	if snapshot, err := p.store.Snapshot(ctx, p.sessionID); err == nil {
		summary = snapshot.Summarize()
	}

	result.Classification = p.classifier.Classify(ctx, result.Transcript, summary, p.recentHistory(decision.Fragments))
	span.SetAttributes(
		attribute.String("intent", string(result.Classification.Intent)),
		attribute.String("context.tier", string(result.Classification.ContextTier)),
	)
	if !result.Classification.IsGameRelated {
		result.Skipped = true
		p.logger.Debug("transcript gated out as not game related",
			zap.String("transcript", result.Transcript))
		return
	}

	payload, err := p.assembler.Build(ctx, p.sessionID, result.Classification.ContextTier, p.recentHistory(decision.Fragments))
	if err != nil {
		result.Err = err
		return
	}

	batch, err := p.dispatcher.Dispatch(ctx, p.sessionID, result.Transcript, payload)
	if err != nil {
		if ctx.Err() != nil {
			result.Superseded = true
			return
		}
		result.Err = err
		return
	}
	result.Batch = batch
	span.SetAttributes(attribute.Int("operations", len(batch.Results)))
}

// settle clears the in-flight slot if this pass is still the current
// one. A stale-generation pass is superseded no matter how far it got;
// its batch is discarded because the successor's window carries the
// same fragments.
func (p *Pipeline) settle(gen int, result *Analysis) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.generation == gen {
		p.inflightCancel = nil
		p.inflightFrags = nil
		return
	}
	result.Superseded = true
	result.Batch = nil
	result.Err = nil
	result.Skipped = false
}

// recentHistory returns retained fragments older than the current
// window, for classifier and assembler context.
func (p *Pipeline) recentHistory(window []types.Fragment) []types.Fragment {
	cutoff := time.Time{}
	if len(window) > 0 {
		cutoff = window[0].Timestamp
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []types.Fragment
	for _, f := range p.history {
		if cutoff.IsZero() || f.Timestamp.Before(cutoff) {
			out = append(out, f)
		}
	}
	return out
}

// mergeFragments prepends the superseded window, dropping duplicates by
// sequence number.
func mergeFragments(prior, current []types.Fragment) []types.Fragment {
	seen := make(map[int]bool, len(current))
	for _, f := range current {
		seen[f.Seq] = true
	}
	merged := make([]types.Fragment, 0, len(prior)+len(current))
	for _, f := range prior {
		if !seen[f.Seq] {
			merged = append(merged, f)
		}
	}
	return append(merged, current...)
}

func transcript(fragments []types.Fragment) string {
	parts := make([]string, 0, len(fragments))
	for _, f := range fragments {
		parts = append(parts, f.Text)
	}
	return strings.Join(parts, "\n")
}
