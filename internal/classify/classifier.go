// Package classify performs the single external-model call that combines
// relevance gating with intent categorization. One call, not two: the
// classifier gates every utterance, so it runs on the cheapest model
// configuration available.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"warvox/internal/state"
	"warvox/internal/types"
)

const systemPrompt = `You are the intent gate for a voice companion that tracks tabletop
wargame state. You receive a transcript of table talk plus a session
summary. Decide whether the transcript is about the game, what kind of
action it implies, and how much game context the action needs.

Intents:
- SIMPLE_STATE: phase/round/turn changes, CP or VP adjustments, objective control.
- UNIT_OPERATION: anything touching a specific unit: wounds, destruction, status, actions.
- STRATEGIC: advice requests, planning talk, stratagem discussion.
- UNCLEAR: game-related but you cannot tell what is being asked.

Context tiers: minimal (session summary only), medium (adds unit
summaries), full (adds rosters, stratagems, rules). UNCLEAR always
takes full.

Respond with ONLY a JSON object:
{"is_game_related": bool, "intent": "SIMPLE_STATE|UNIT_OPERATION|STRATEGIC|UNCLEAR",
 "context_tier": "minimal|medium|full", "confidence": 0.0-1.0, "reasoning": "one sentence"}`

// Classifier wraps the model call with a bounded timeout and the
// conservative fallback. It never returns an error: a failed call
// degrades to the fallback classification so the utterance is not
// silently dropped.
type Classifier struct {
	client  types.LLMClient
	timeout time.Duration
	logger  *zap.Logger
}

// New creates a classifier. A zero timeout defaults to 10s.
func New(client types.LLMClient, timeout time.Duration, logger *zap.Logger) *Classifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{client: client, timeout: timeout, logger: logger}
}

// Classify analyzes the transcript against the session summary and a
// short recent-history window.
func (c *Classifier) Classify(ctx context.Context, transcript string, summary state.Summary, recent []types.Fragment) types.IntentClassification {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.client.CompleteWithSystem(ctx, systemPrompt, buildUserPrompt(transcript, summary, recent))
	if err != nil {
		c.logger.Warn("classification call failed, using fallback", zap.Error(err))
		return types.FallbackClassification()
	}

	var parsed types.IntentClassification
	if err := json.Unmarshal([]byte(extractJSON(raw)), &parsed); err != nil {
		c.logger.Warn("classification output malformed, using fallback",
			zap.Error(err),
			zap.String("raw", truncate(raw, 200)))
		return types.FallbackClassification()
	}
	return parsed.Normalize()
}

func buildUserPrompt(transcript string, summary state.Summary, recent []types.Fragment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Session: round %d, %s turn, %s phase, CP %d/%d, VP %d/%d.\n",
		summary.Round, summary.Turn, summary.Phase,
		summary.PlayerCP, summary.OpponentCP, summary.PlayerVP, summary.OpponentVP)
	if len(recent) > 0 {
		b.WriteString("Earlier speech:\n")
		for _, f := range recent {
			fmt.Fprintf(&b, "- %s\n", f.Text)
		}
	}
	b.WriteString("Transcript to classify:\n")
	b.WriteString(transcript)
	return b.String()
}

// extractJSON strips markdown fences and clips to the outermost object,
// tolerating chatty models.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1]
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
