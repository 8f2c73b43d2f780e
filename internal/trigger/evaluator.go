// Package trigger decides, per incoming speech fragment, whether enough
// has accumulated to promote the buffer into a full analysis pass.
package trigger

import (
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"warvox/internal/types"
)

// Config holds the evaluator thresholds. Zero values fall back to the
// defaults applied by New.
type Config struct {
	// PriorityKeywords trigger immediately at confidence 1.0: wake
	// phrases, direct queries, corrections.
	PriorityKeywords []string `yaml:"priority_keywords"`

	// CompletionPhrases signal a finished action, confidence 0.9.
	CompletionPhrases []string `yaml:"completion_phrases"`

	// LongSilence is the gap between fragments that forces analysis.
	LongSilence time.Duration `yaml:"long_silence" env:"WARVOX_TRIGGER_LONG_SILENCE"`

	// MinFragments and MinInterval gate the accumulation trigger.
	MinFragments int           `yaml:"min_fragments" env:"WARVOX_TRIGGER_MIN_FRAGMENTS"`
	MinInterval  time.Duration `yaml:"min_interval" env:"WARVOX_TRIGGER_MIN_INTERVAL"`

	// SafetyMax is the hard ceiling: with at least one pending fragment
	// an analysis fires at or before this interval.
	SafetyMax time.Duration `yaml:"safety_max" env:"WARVOX_TRIGGER_SAFETY_MAX"`
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		PriorityKeywords: []string{
			"hey warvox", "warvox",
			"what's the score", "whats the score", "how many", "how much",
			"no wait", "correction", "scratch that", "actually", "undo",
		},
		CompletionPhrases: []string{
			"that's done", "thats done", "all done", "moving on",
			"next phase", "phase over", "end of phase",
			"next turn", "turn over", "end of turn",
			"unit destroyed", "they're dead", "theyre dead", "wiped out",
		},
		LongSilence:  10 * time.Second,
		MinFragments: 3,
		MinInterval:  8 * time.Second,
		SafetyMax:    30 * time.Second,
	}
}

// Evaluator accumulates fragments and applies five checks in strict
// priority order; the first match wins. It is synchronous and never
// blocks: malformed input is treated as non-trigger.
type Evaluator struct {
	cfg    Config
	logger *zap.Logger

	mu             sync.Mutex
	buffer         []types.Fragment
	lastFragmentAt time.Time
	lastAnalysisAt time.Time
	seq            int

	clock func() time.Time
}

// New creates an evaluator. Zero-valued config fields take defaults.
func New(cfg Config, logger *zap.Logger) *Evaluator {
	defaults := DefaultConfig()
	if len(cfg.PriorityKeywords) == 0 {
		cfg.PriorityKeywords = defaults.PriorityKeywords
	}
	if len(cfg.CompletionPhrases) == 0 {
		cfg.CompletionPhrases = defaults.CompletionPhrases
	}
	if cfg.LongSilence <= 0 {
		cfg.LongSilence = defaults.LongSilence
	}
	if cfg.MinFragments <= 0 {
		cfg.MinFragments = defaults.MinFragments
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = defaults.MinInterval
	}
	if cfg.SafetyMax <= 0 {
		cfg.SafetyMax = defaults.SafetyMax
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Evaluator{cfg: cfg, logger: logger, clock: time.Now}
	e.lastAnalysisAt = e.clock()
	return e
}

// SetClock overrides the time source for tests.
func (e *Evaluator) SetClock(clock func() time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock = clock
	e.lastAnalysisAt = clock()
}

// Pending returns the number of buffered fragments.
func (e *Evaluator) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.buffer)
}

// Observe ingests one fragment and returns the trigger decision. On a
// trigger the buffer is flushed into the decision and reset atomically.
func (e *Evaluator) Observe(frag types.Fragment) types.TriggerDecision {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := frag.Timestamp
	if now.IsZero() {
		now = e.clock()
		frag.Timestamp = now
	}

	text := strings.TrimSpace(frag.Text)
	if text == "" {
		// Malformed input: never a trigger, never buffered.
		return types.TriggerDecision{Timestamp: now}
	}

	silence := time.Duration(0)
	if !e.lastFragmentAt.IsZero() {
		silence = now.Sub(e.lastFragmentAt)
	}
	e.lastFragmentAt = now

	e.seq++
	frag.Seq = e.seq
	e.buffer = append(e.buffer, frag)

	lowered := strings.ToLower(text)
	sinceAnalysis := now.Sub(e.lastAnalysisAt)

	switch {
	case containsAny(lowered, e.cfg.PriorityKeywords):
		return e.flush(types.TriggerPriorityKeyword, 1.0, now)
	case containsAny(lowered, e.cfg.CompletionPhrases):
		return e.flush(types.TriggerActionComplete, 0.9, now)
	case silence >= e.cfg.LongSilence:
		return e.flush(types.TriggerLongSilence, 0.85, now)
	case len(e.buffer) >= e.cfg.MinFragments && sinceAnalysis >= e.cfg.MinInterval:
		return e.flush(types.TriggerAccumulation, 0.75, now)
	case sinceAnalysis >= e.cfg.SafetyMax:
		return e.flush(types.TriggerSafetyNet, 0.6, now)
	}

	return types.TriggerDecision{Timestamp: now}
}

// flush hands the buffer to the caller and resets it. Caller holds e.mu.
func (e *Evaluator) flush(kind types.TriggerKind, confidence float64, now time.Time) types.TriggerDecision {
	flushed := e.buffer
	e.buffer = nil
	e.lastAnalysisAt = now

	e.logger.Debug("trigger fired",
		zap.String("kind", string(kind)),
		zap.Float64("confidence", confidence),
		zap.Int("fragments", len(flushed)))

	return types.TriggerDecision{
		Triggered:  true,
		Kind:       kind,
		Confidence: confidence,
		Timestamp:  now,
		Fragments:  flushed,
	}
}

func containsAny(text string, phrases []string) bool {
	for _, phrase := range phrases {
		if phrase != "" && strings.Contains(text, phrase) {
			return true
		}
	}
	return false
}
