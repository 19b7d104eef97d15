package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/deltapoly/assistant/internal/models"
	"github.com/deltapoly/assistant/internal/providers/llm"
	"github.com/deltapoly/assistant/internal/ratelimit"
	"github.com/deltapoly/assistant/internal/retrieval"
	"github.com/deltapoly/assistant/internal/sanitize"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type fakeLimiter struct {
	deny  string
	retry time.Duration
}

func (f fakeLimiter) Check(_ context.Context, name, _ string, _ int, _ time.Duration) ratelimit.Result {
	if f.deny == name {
		return ratelimit.Result{Allowed: false, RetryAfter: f.retry}
	}
	return ratelimit.Result{Allowed: true}
}

type memStore struct {
	mu   sync.Mutex
	conv *models.Conversation
	msgs []models.Message
}

func (s *memStore) GetOrCreate(_ context.Context, sessionKey string, customerID *string, locale string) (*models.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conv == nil {
		s.conv = &models.Conversation{
			ID:         "conv-1",
			SessionKey: sessionKey,
			CustomerID: customerID,
			Locale:     locale,
			Status:     models.ConversationActive,
		}
	}
	return s.conv, nil
}

func (s *memStore) History(_ context.Context, _ string, limit int, includeSystem bool) ([]models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.msgs {
		if m.Role == models.RoleSystem && !includeSystem {
			continue
		}
		out = append(out, m)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memStore) Append(_ context.Context, conversationID string, msg models.Message) (*models.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg.ID = fmt.Sprintf("msg-%d", len(s.msgs)+1)
	msg.ConversationID = conversationID
	msg.CreatedAt = time.Now().UTC()
	s.msgs = append(s.msgs, msg)
	return &msg, nil
}

func (s *memStore) byRole(role string) []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Message
	for _, m := range s.msgs {
		if m.Role == role {
			out = append(out, m)
		}
	}
	return out
}

type stubRetriever struct{ res retrieval.Results }

func (r stubRetriever) Retrieve(context.Context, string, string) retrieval.Results { return r.res }

type scriptTurn struct {
	events []llm.Event
	err    error
}

// scriptStreamer replays one scripted turn per Stream call; extra calls get
// an empty turn.
type scriptStreamer struct {
	mu        sync.Mutex
	turns     []scriptTurn
	histories [][]llm.Turn
}

func (s *scriptStreamer) Stream(_ context.Context, _ string, history []llm.Turn, _ []llm.ToolSchema) (<-chan llm.Event, <-chan error) {
	s.mu.Lock()
	var t scriptTurn
	if len(s.histories) < len(s.turns) {
		t = s.turns[len(s.histories)]
	}
	s.histories = append(s.histories, history)
	s.mu.Unlock()

	events := make(chan llm.Event, len(t.events))
	errs := make(chan error, 1)
	for _, ev := range t.events {
		events <- ev
	}
	if t.err != nil {
		errs <- t.err
	}
	close(events)
	close(errs)
	return events, errs
}

func (s *scriptStreamer) Close() error { return nil }

func (s *scriptStreamer) streamCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.histories)
}

func budgetTool(runs *int) Tool {
	return Tool{
		Schema: llm.ToolSchema{Name: "calculate_budget_solution", Description: "plan within a budget"},
		Run: func(_ context.Context, args map[string]any, _ CallContext) (map[string]any, error) {
			if runs != nil {
				*runs++
			}
			budget := args["budget"].(float64)
			items := []BudgetItem{{
				Product:    ProductView{ID: "p1", Name: "HDPE BM-5502", PriceEGP: 39.5},
				QuantityKg: 50,
				Subtotal:   1975,
			}}
			return map[string]any{
				"budget": budget, "total": 1975.0, "remaining": budget - 1975.0,
				"totalKg": 50.0, "feasible": true, "items": items,
			}, nil
		},
	}
}

func newTestOrchestrator(cfg Config, limiter ratelimit.Limiter, store Store, streamer llm.Streamer, tools []Tool) *Orchestrator {
	return NewOrchestrator(
		cfg,
		limiter,
		store,
		stubRetriever{},
		NewToolExecutor(tools, quietLogger()),
		streamer,
		sanitize.Default(),
		quietLogger(),
	)
}

func collectFrames(frames *[]Frame) EmitFunc {
	return func(f Frame) error {
		*frames = append(*frames, f)
		return nil
	}
}

// --- tests ---

func TestRunBudgetTurnWithToolFollowUp(t *testing.T) {
	store := &memStore{}
	runs := 0
	streamer := &scriptStreamer{turns: []scriptTurn{
		{events: []llm.Event{{Calls: []llm.FunctionCall{{
			Name: "calculate_budget_solution",
			Args: map[string]any{"budget": 2000.0},
		}}}}},
		{events: []llm.Event{{Text: "Here is a plan within your budget."}}},
	}}
	orch := newTestOrchestrator(Config{}, fakeLimiter{}, store, streamer, []Tool{budgetTool(&runs)})

	var frames []Frame
	err := orch.Run(context.Background(), Request{
		Message:    "I have 2000 EGP, what can I buy?",
		SessionKey: "sess-1",
		Locale:     "en",
	}, collectFrames(&frames))
	require.NoError(t, err)
	require.Equal(t, 1, runs)
	require.Equal(t, 2, streamer.streamCalls())

	// visual payload, then the follow-up text, then exactly one done frame
	require.Len(t, frames, 3)
	require.Equal(t, "visual", frames[0].Type)
	require.Equal(t, "budgetSolution", frames[0].Data["kind"])
	require.Equal(t, "Here is a plan within your budget.", frames[1].Text)
	require.True(t, frames[2].Done)
	require.Equal(t, "sess-1", frames[2].SessionID)

	// follow-up generation saw the function turn, with a payload the
	// backend can convert to protobuf
	second := streamer.histories[1]
	require.Equal(t, llm.RoleFunction, second[len(second)-1].Role)
	for _, fr := range second[len(second)-1].Responses {
		requireJSONBasic(t, fr.Response)
	}

	assistantMsgs := store.byRole(models.RoleAssistant)
	require.Len(t, assistantMsgs, 1)
	require.Equal(t, "Here is a plan within your budget.", assistantMsgs[0].Content)
	require.NotEmpty(t, assistantMsgs[0].FunctionCalls)
	require.Len(t, store.byRole(models.RoleUser), 1)
}

func TestToResponsesCarriesOnlyJSONBasicValues(t *testing.T) {
	results := []FunctionResult{
		{
			Name:    "search_products",
			Success: true,
			Data: map[string]any{
				"products": []ProductView{{ID: "p1", Name: "HDPE BM-5502", PriceEGP: 39.5}},
				"count":    1,
			},
		},
		{
			Name:    "calculate_budget_solution",
			Success: true,
			Data: map[string]any{
				"items":    []BudgetItem{{Product: ProductView{ID: "p1"}, QuantityKg: 50, Subtotal: 1975}},
				"feasible": true,
				"notes":    []string{"only 50 kg in stock"},
			},
		},
		{Name: "broken", Error: "upstream unavailable"},
	}

	responses := toResponses(results)
	require.Len(t, responses, 3)
	for _, r := range responses {
		requireJSONBasic(t, r.Response)
	}

	// struct slices come back as generic maps with their JSON field names
	products := responses[0].Response["products"].([]any)
	require.Len(t, products, 1)
	first := products[0].(map[string]any)
	require.Equal(t, "p1", first["id"])
	require.Equal(t, 39.5, first["priceEgp"])
	require.Equal(t, float64(1), responses[0].Response["count"])

	require.Equal(t, false, responses[2].Response["success"])
	require.Equal(t, "upstream unavailable", responses[2].Response["error"])
}

// requireJSONBasic fails on any value json.Unmarshal could not have
// produced; those are the only types a function-response map may carry on
// its way into the generation backend.
func requireJSONBasic(t *testing.T, v any) {
	t.Helper()
	switch x := v.(type) {
	case nil, bool, float64, string:
	case []any:
		for _, e := range x {
			requireJSONBasic(t, e)
		}
	case map[string]any:
		for _, e := range x {
			requireJSONBasic(t, e)
		}
	default:
		t.Fatalf("value %v has non-JSON type %T", x, x)
	}
}

func TestRunQuotaRejectedBeforeAnyFrame(t *testing.T) {
	store := &memStore{}
	streamer := &scriptStreamer{}
	orch := newTestOrchestrator(Config{},
		fakeLimiter{deny: "chat-minute", retry: 7 * time.Second}, store, streamer, nil)

	var frames []Frame
	err := orch.Run(context.Background(), Request{
		Message:    "hello",
		SessionKey: "sess-1",
		Locale:     "en",
	}, collectFrames(&frames))

	var qe *QuotaError
	require.ErrorAs(t, err, &qe)
	require.Equal(t, "chat-minute", qe.Limiter)
	require.Equal(t, 7*time.Second, qe.RetryAfter)
	require.Empty(t, frames)
	require.Empty(t, store.msgs)
	require.Equal(t, 0, streamer.streamCalls())
}

func TestRunStreamFailureEmitsErrorFrameAndKeepsPartialText(t *testing.T) {
	store := &memStore{}
	streamer := &scriptStreamer{turns: []scriptTurn{
		{
			events: []llm.Event{{Text: "The HDPE grade ships from Alexandria."}},
			err:    errors.New("backend reset"),
		},
	}}
	orch := newTestOrchestrator(Config{}, fakeLimiter{}, store, streamer, nil)

	var frames []Frame
	err := orch.Run(context.Background(), Request{
		Message:    "shipping?",
		SessionKey: "sess-1",
		Locale:     "en",
	}, collectFrames(&frames))
	require.NoError(t, err)

	require.Len(t, frames, 2)
	require.Equal(t, "The HDPE grade ships from Alexandria.", frames[0].Text)
	require.NotEmpty(t, frames[1].Error)
	require.False(t, frames[1].Done)

	assistantMsgs := store.byRole(models.RoleAssistant)
	require.Len(t, assistantMsgs, 1)
	require.Equal(t, "The HDPE grade ships from Alexandria.", assistantMsgs[0].Content)
}

func TestRunToolTurnDepthCap(t *testing.T) {
	callTurn := scriptTurn{events: []llm.Event{{Calls: []llm.FunctionCall{{
		Name: "calculate_budget_solution",
		Args: map[string]any{"budget": 100.0},
	}}}}}

	store := &memStore{}
	runs := 0
	streamer := &scriptStreamer{turns: []scriptTurn{callTurn, callTurn, callTurn, callTurn}}
	orch := newTestOrchestrator(Config{MaxToolTurns: 2}, fakeLimiter{}, store, streamer, []Tool{budgetTool(&runs)})

	var frames []Frame
	err := orch.Run(context.Background(), Request{
		Message:    "loop please",
		SessionKey: "sess-1",
		Locale:     "en",
	}, collectFrames(&frames))
	require.NoError(t, err)

	// initial turn plus two follow-ups; the third call batch hits the cap
	require.Equal(t, 3, streamer.streamCalls())
	require.Equal(t, 2, runs)
	require.True(t, frames[len(frames)-1].Done)

	done := 0
	for _, f := range frames {
		require.Empty(t, f.Error)
		if f.Done {
			done++
		}
	}
	require.Equal(t, 1, done)
}

func TestRunSanitizerFiltersStreamedText(t *testing.T) {
	store := &memStore{}
	streamer := &scriptStreamer{turns: []scriptTurn{
		{events: []llm.Event{
			{Text: "Let me check the catalog for that."},
			{Text: "LDPE FL-2100 is in stock at 42.00 EGP per kg."},
		}},
	}}
	orch := newTestOrchestrator(Config{}, fakeLimiter{}, store, streamer, nil)

	var frames []Frame
	err := orch.Run(context.Background(), Request{
		Message:    "LDPE stock?",
		SessionKey: "sess-1",
		Locale:     "en",
	}, collectFrames(&frames))
	require.NoError(t, err)

	// monologue chunk is discarded, not shown, not persisted
	require.Len(t, frames, 2)
	require.Equal(t, "LDPE FL-2100 is in stock at 42.00 EGP per kg.", frames[0].Text)
	require.True(t, frames[1].Done)

	assistantMsgs := store.byRole(models.RoleAssistant)
	require.Len(t, assistantMsgs, 1)
	require.Equal(t, "LDPE FL-2100 is in stock at 42.00 EGP per kg.", assistantMsgs[0].Content)
}

func TestRunClientDisconnectKeepsPartialPersistence(t *testing.T) {
	store := &memStore{}
	streamer := &scriptStreamer{turns: []scriptTurn{
		{events: []llm.Event{
			{Text: "First part of the answer."},
			{Text: "Second part never delivered."},
		}},
	}}
	orch := newTestOrchestrator(Config{}, fakeLimiter{}, store, streamer, nil)

	var frames []Frame
	emit := func(f Frame) error {
		if len(frames) >= 1 {
			return errors.New("client gone")
		}
		frames = append(frames, f)
		return nil
	}

	err := orch.Run(context.Background(), Request{
		Message:    "tell me",
		SessionKey: "sess-1",
		Locale:     "en",
	}, emit)
	require.NoError(t, err)

	// only the delivered fragment survives; no done frame after disconnect
	require.Len(t, frames, 1)
	require.Equal(t, "First part of the answer.", frames[0].Text)

	assistantMsgs := store.byRole(models.RoleAssistant)
	require.Len(t, assistantMsgs, 1)
	require.Equal(t, "First part of the answer.", assistantMsgs[0].Content)
}

func TestRunReusesConversationAndSendsHistory(t *testing.T) {
	store := &memStore{}
	streamer := &scriptStreamer{turns: []scriptTurn{
		{events: []llm.Event{{Text: "Yes, 1200 kg available."}}},
		{events: []llm.Event{{Text: "It ships within two days."}}},
	}}
	orch := newTestOrchestrator(Config{}, fakeLimiter{}, store, streamer, nil)

	noop := func(Frame) error { return nil }
	req := Request{SessionKey: "sess-1", Locale: "en"}

	req.Message = "Any HDPE in stock?"
	require.NoError(t, orch.Run(context.Background(), req, noop))
	req.Message = "How fast can you deliver?"
	require.NoError(t, orch.Run(context.Background(), req, noop))

	require.Len(t, store.byRole(models.RoleUser), 2)
	require.Len(t, store.byRole(models.RoleAssistant), 2)

	// the second turn carried the first exchange as history
	second := streamer.histories[1]
	require.Len(t, second, 3)
	require.Equal(t, "Any HDPE in stock?", second[0].Text)
	require.Equal(t, "Yes, 1200 kg available.", second[1].Text)
	require.Equal(t, "How fast can you deliver?", second[2].Text)
}
