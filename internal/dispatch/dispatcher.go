package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"warvox/internal/assembler"
	"warvox/internal/resolver"
	"warvox/internal/state"
	"warvox/internal/types"
	"warvox/internal/validation"
)

const dispatchSystemPrompt = `You are the action dispatcher for a voice companion tracking a tabletop
wargame. You receive the current game state and a transcript of table
talk. Call the provided tools for every game action the transcript
describes; call nothing for table talk that changes no state. Multiple
actions in one transcript mean multiple tool calls. Refer to units by
the names the players spoke; resolution against the roster happens
downstream. If the transcript asks a tactical question, call
get_tactical_advice with the question.`

// maxOperationsPerBatch bounds one analysis pass; a transcript window
// proposing more than this is almost certainly a model runaway.
const maxOperationsPerBatch = 12

// Dispatcher sends the transcript plus assembled context to the model
// and executes the proposed operations concurrently. Operations within
// a batch are independent; results preserve the proposal order.
type Dispatcher struct {
	client    types.LLMClient
	store     state.Store
	resolver  *resolver.Resolver
	validator *validation.Engine
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a dispatcher over the given collaborators.
func New(client types.LLMClient, store state.Store, res *resolver.Resolver, validator *validation.Engine, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		client:    client,
		store:     store,
		resolver:  res,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// SetClock overrides the time source for tests.
func (d *Dispatcher) SetClock(clock func() time.Time) {
	d.now = clock
}

// Batch is the outcome of one dispatch pass.
type Batch struct {
	// Text is the model's plain-text remark, set when it called no tools
	// or added commentary alongside them.
	Text    string              `json:"text,omitempty"`
	Results []OperationResult   `json:"results"`
	Usage   types.UsageMetadata `json:"usage"`
}

type payloadKey struct{}

func payloadFrom(ctx context.Context) *assembler.Payload {
	p, _ := ctx.Value(payloadKey{}).(*assembler.Payload)
	return p
}

// Dispatch runs one analysis pass: one tool-calling model turn over the
// transcript and context payload, then concurrent execution of every
// proposed operation. The model call is retried once on failure; an
// operation failure never aborts its siblings.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID, transcript string, payload *assembler.Payload) (*Batch, error) {
	userPrompt := payload.Render() + "\nTranscript:\n" + transcript

	response, err := d.client.CompleteWithTools(ctx, dispatchSystemPrompt, userPrompt, Catalog())
	if err != nil {
		d.logger.Warn("dispatch call failed, retrying once", zap.Error(err))
		response, err = d.client.CompleteWithTools(ctx, dispatchSystemPrompt, userPrompt, Catalog())
		if err != nil {
			return nil, fmt.Errorf("dispatch call: %w", err)
		}
	}

	// A superseding trigger may have cancelled this pass while the model
	// call was in flight; nothing commits past this point in that case.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("dispatch cancelled: %w", err)
	}

	calls := response.ToolCalls
	if len(calls) > maxOperationsPerBatch {
		d.logger.Warn("operation batch truncated",
			zap.Int("proposed", len(calls)),
			zap.Int("limit", maxOperationsPerBatch))
		calls = calls[:maxOperationsPerBatch]
	}

	batch := &Batch{
		Text:    response.Text,
		Results: make([]OperationResult, len(calls)),
		Usage:   response.Usage,
	}
	if len(calls) == 0 {
		return batch, nil
	}

	ctx = context.WithValue(ctx, payloadKey{}, payload)
	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		g.Go(func() error {
			batch.Results[i] = d.execute(gctx, sessionID, call)
			return nil
		})
	}
	g.Wait()

	for _, res := range batch.Results {
		if res.Success && IsStateChanging(res.Kind) {
			rec := state.NewTimelineRecord(sessionID, string(res.Kind), res.Message, res.Data)
			if err := d.store.AppendTimeline(ctx, sessionID, rec); err != nil {
				d.logger.Warn("timeline append failed",
					zap.String("kind", string(res.Kind)),
					zap.Error(err))
			}
		}
	}
	return batch, nil
}

// execute runs one proposed operation through its handler. A cancelled
// context fails the operation before its handler touches the store.
func (d *Dispatcher) execute(ctx context.Context, sessionID string, call types.ToolCall) OperationResult {
	kind := Kind(call.Name)
	if err := ctx.Err(); err != nil {
		return OperationResult{
			Kind:    kind,
			CallID:  call.ID,
			Success: false,
			Message: fmt.Sprintf("cancelled before execution: %v", err),
		}
	}
	handler, ok := handlers[kind]
	if !ok {
		return OperationResult{
			Kind:    kind,
			CallID:  call.ID,
			Success: false,
			Message: fmt.Sprintf("unknown operation %q", call.Name),
		}
	}

	started := d.now()
	result := handler(d, ctx, sessionID, call.Input)
	result.Kind = kind
	result.CallID = call.ID

	d.logger.Info("operation executed",
		zap.String("kind", string(kind)),
		zap.Bool("success", result.Success),
		zap.Duration("elapsed", d.now().Sub(started)))
	return result
}
