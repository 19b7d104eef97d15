package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/deltapoly/assistant/internal/models"
	"github.com/deltapoly/assistant/internal/prompt"
	"github.com/deltapoly/assistant/internal/providers/llm"
	"github.com/deltapoly/assistant/internal/ratelimit"
	"github.com/deltapoly/assistant/internal/retrieval"
	"github.com/deltapoly/assistant/internal/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Store is the conversation persistence contract the orchestrator needs.
type Store interface {
	GetOrCreate(ctx context.Context, sessionKey string, customerID *string, locale string) (*models.Conversation, error)
	History(ctx context.Context, conversationID string, limit int, includeSystem bool) ([]models.Message, error)
	Append(ctx context.Context, conversationID string, msg models.Message) (*models.Message, error)
}

// Retriever produces ranked context for one query. It degrades internally
// and never fails the request.
type Retriever interface {
	Retrieve(ctx context.Context, query, locale string) retrieval.Results
}

// Sanitizer filters one streamed text fragment for the reply locale.
type Sanitizer interface {
	Filter(chunk, locale string) string
}

type Config struct {
	MaxToolTurns int
	HistoryLimit int
	PromptTier   prompt.Tier

	ShortLimit  int
	ShortWindow time.Duration
	LongLimit   int
	LongWindow  time.Duration
}

func (c *Config) defaults() {
	if c.MaxToolTurns <= 0 {
		c.MaxToolTurns = 4
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 20
	}
	if c.PromptTier == "" {
		c.PromptTier = prompt.TierStandard
	}
	if c.ShortLimit <= 0 {
		c.ShortLimit = 10
	}
	if c.ShortWindow <= 0 {
		c.ShortWindow = time.Minute
	}
	if c.LongLimit <= 0 {
		c.LongLimit = 120
	}
	if c.LongWindow <= 0 {
		c.LongWindow = time.Hour
	}
}

// Request is one validated user turn.
type Request struct {
	Message    string
	SessionKey string
	CustomerID *string
	Locale     string
	CartItems  []CartItem
}

type state int

const (
	stateLoaded state = iota
	stateRetrieving
	statePromptReady
	stateGenerating
	stateToolDispatch
	statePersisting
	stateDone
	stateErrored
)

// Orchestrator drives one chat turn: rate-limit gate, conversation load,
// bounded retrieval, streaming generation with a tool-call loop, output
// sanitization, and final persistence.
type Orchestrator struct {
	cfg       Config
	limiter   ratelimit.Limiter
	store     Store
	retriever Retriever
	executor  Executor
	gen       llm.Streamer
	sanitizer Sanitizer
	log       *logrus.Logger
}

func NewOrchestrator(cfg Config, limiter ratelimit.Limiter, store Store, retriever Retriever,
	executor Executor, gen llm.Streamer, sanitizer Sanitizer, log *logrus.Logger) *Orchestrator {
	cfg.defaults()
	return &Orchestrator{
		cfg:       cfg,
		limiter:   limiter,
		store:     store,
		retriever: retriever,
		executor:  executor,
		gen:       gen,
		sanitizer: sanitizer,
		log:       log,
	}
}

// Run executes one turn, delivering frames through emit. It returns an error
// only when nothing has been emitted yet (quota, validation, storage before
// generation); every later failure is communicated as a terminal error frame
// because the transport has already committed to streaming.
func (o *Orchestrator) Run(ctx context.Context, req Request, emit EmitFunc) error {
	const op = "Orchestrator.Run"

	if err := o.gate(ctx, req); err != nil {
		return err
	}

	// Loaded
	conv, err := o.store.GetOrCreate(ctx, req.SessionKey, req.CustomerID, req.Locale)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to load conversation", err)
	}
	history, err := o.store.History(ctx, conv.ID, o.cfg.HistoryLimit, false)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to load history", err)
	}
	if _, err := o.store.Append(ctx, conv.ID, models.Message{
		Role:    models.RoleUser,
		Content: req.Message,
	}); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to persist user message", err)
	}

	// Retrieving: the single bounded external step; proceeds with empty
	// context rather than blocking past its budget.
	res := o.retriever.Retrieve(ctx, req.Message, req.Locale)

	// PromptReady
	system := prompt.Build(o.cfg.PromptTier, o.profileFor(req), res)
	turns := append(historyTurns(history), llm.Turn{Role: llm.RoleUser, Text: req.Message})

	cc := CallContext{
		SessionKey: req.SessionKey,
		CustomerID: req.CustomerID,
		Locale:     req.Locale,
		CartItems:  req.CartItems,
	}

	// Cancelling releases the backend stream when the caller disconnects
	// or the turn finishes early.
	genCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var full strings.Builder
	var allCalls []models.FunctionCall

	st := stateGenerating
	toolTurns := 0
	for st == stateGenerating {
		events, errs := o.gen.Stream(genCtx, system, turns, o.executor.Schemas())

		var calls []llm.FunctionCall
		emitFailed := false
		for ev := range events {
			if ev.Text != "" && !emitFailed {
				if clean := o.sanitizer.Filter(ev.Text, req.Locale); clean != "" {
					if err := emit(textFrame(clean)); err != nil {
						// caller gone: stop pushing, release the stream
						emitFailed = true
						cancel()
						continue
					}
					full.WriteString(clean)
				}
			}
			calls = append(calls, ev.Calls...)
		}
		if emitFailed {
			o.persistAssistant(ctx, conv.ID, full.String(), allCalls)
			return nil
		}
		if err := <-errs; err != nil {
			st = stateErrored
			o.log.WithError(err).WithField("session", req.SessionKey).Error("generation stream failed")
			_ = emit(errorFrame("generation failed, please try again"))
			// save-what-we-have: text already shown is not retracted
			if full.Len() > 0 {
				o.persistAssistant(ctx, conv.ID, full.String(), allCalls)
			}
			return nil
		}

		if len(calls) == 0 {
			st = statePersisting
			break
		}

		// ToolDispatch → FollowUp, bounded
		st = stateToolDispatch
		toolTurns++
		if toolTurns > o.cfg.MaxToolTurns {
			o.log.WithFields(logrus.Fields{
				"session": req.SessionKey,
				"turns":   toolTurns,
			}).Warn("tool turn depth cap reached")
			st = statePersisting
			break
		}

		results := o.executor.ExecuteAll(genCtx, calls, cc)
		if data, ok := ProjectVisual(results); ok {
			if err := emit(visualFrame(data)); err != nil {
				o.persistAssistant(ctx, conv.ID, full.String(), allCalls)
				return nil
			}
		}

		for _, c := range calls {
			allCalls = append(allCalls, models.FunctionCall{Name: c.Name, Args: c.Args})
		}
		turns = append(turns,
			llm.Turn{Role: llm.RoleModel, Calls: calls},
			llm.Turn{Role: llm.RoleFunction, Responses: toResponses(results)},
		)
		st = stateGenerating
	}

	// Persisting
	o.persistAssistant(ctx, conv.ID, full.String(), allCalls)

	// Done
	_ = emit(doneFrame(req.SessionKey))
	return nil
}

// gate runs the short- and long-window quota checks. Both consume quota;
// either rejection carries a retry hint.
func (o *Orchestrator) gate(ctx context.Context, req Request) error {
	key := req.SessionKey
	if req.CustomerID != nil && *req.CustomerID != "" {
		key = *req.CustomerID
	}

	if res := o.limiter.Check(ctx, "chat-minute", key, o.cfg.ShortLimit, o.cfg.ShortWindow); !res.Allowed {
		return &QuotaError{Limiter: "chat-minute", RetryAfter: res.RetryAfter}
	}
	if res := o.limiter.Check(ctx, "chat-hour", key, o.cfg.LongLimit, o.cfg.LongWindow); !res.Allowed {
		return &QuotaError{Limiter: "chat-hour", RetryAfter: res.RetryAfter}
	}
	return nil
}

// persistAssistant folds the accumulated text of all generation turns into
// one assistant message. Failure here is logged, never surfaced: the stream
// has already been delivered.
func (o *Orchestrator) persistAssistant(ctx context.Context, conversationID, content string, calls []models.FunctionCall) {
	if content == "" && len(calls) == 0 {
		return
	}

	msg := models.Message{Role: models.RoleAssistant, Content: content}
	if len(calls) > 0 {
		if b, err := marshalCalls(calls); err == nil {
			msg.FunctionCalls = b
		}
	}

	if _, err := o.store.Append(ctx, conversationID, msg); err != nil {
		o.log.WithError(err).WithField("conversation", conversationID).
			Error("failed to persist assistant message")
	}
}

func (o *Orchestrator) profileFor(req Request) *prompt.CallerProfile {
	p := &prompt.CallerProfile{Locale: req.Locale}
	if req.CustomerID != nil {
		p.CustomerID = *req.CustomerID
	}
	if n := len(req.CartItems); n > 0 {
		var kg float64
		for _, it := range req.CartItems {
			kg += it.QuantityKg
		}
		p.CartSummary = fmt.Sprintf("%d item(s), %.0f kg total", n, kg)
	}
	return p
}

func historyTurns(msgs []models.Message) []llm.Turn {
	turns := make([]llm.Turn, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleUser:
			turns = append(turns, llm.Turn{Role: llm.RoleUser, Text: m.Content})
		case models.RoleAssistant:
			if m.Content != "" {
				turns = append(turns, llm.Turn{Role: llm.RoleModel, Text: m.Content})
			}
		}
	}
	return turns
}

func marshalCalls(calls []models.FunctionCall) (datatypes.JSON, error) {
	b, err := json.Marshal(calls)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(b), nil
}

// toResponses folds executed tool results into the next generation turn.
// Payloads are round-tripped through JSON first: the backend converts the
// response map to a protobuf struct, which accepts JSON-basic values only,
// so a Go struct slice leaking through here panics the stream goroutine.
func toResponses(results []FunctionResult) []llm.FunctionResponse {
	out := make([]llm.FunctionResponse, 0, len(results))
	for _, r := range results {
		resp := map[string]any{"success": r.Success}
		if r.Success {
			for k, v := range plainValues(r.Data) {
				resp[k] = v
			}
		} else {
			resp["error"] = r.Error
		}
		out = append(out, llm.FunctionResponse{Name: r.Name, Response: resp})
	}
	return out
}

func plainValues(data map[string]any) map[string]any {
	if len(data) == 0 {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return map[string]any{"error": "tool payload not serializable"}
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return map[string]any{"error": "tool payload not serializable"}
	}
	return m
}
