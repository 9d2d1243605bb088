package llmdecider_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/onlytrade/room-server/internal/decisioncontext"
	"github.com/onlytrade/room-server/internal/llm"
	"github.com/onlytrade/room-server/internal/llmdecider"
	"github.com/onlytrade/room-server/internal/models"
)

func TestDecideReturnsSyntheticHoldVerbatimWhenPresent(t *testing.T) {
	d := llmdecider.New(nil, "gpt-4o-mini", 1000, 200, false)
	dctx := decisioncontext.Context{
		Symbol:      "AAPL",
		CycleNumber: 1,
		SyntheticHold: &models.Decision{
			TraderID: "alice",
			Symbol:   "AAPL",
			Action:   models.ActionHold,
			Reasoning: "opening phase cap",
		},
	}
	dec := d.Decide(context.Background(), "alice", 7, dctx, llmdecider.PortfolioLimits{})
	if dec.Action != models.ActionHold || dec.Reasoning != "opening phase cap" {
		t.Fatalf("expected synthetic hold passthrough, got %+v", dec)
	}
	if dec.CycleNumber != 7 {
		t.Errorf("expected cycle number to be overwritten to 7, got %d", dec.CycleNumber)
	}
}

func TestDecideFallsBackToHoldWhenClientIsNil(t *testing.T) {
	d := llmdecider.New(nil, "gpt-4o-mini", 1000, 200, false)
	dctx := decisioncontext.Context{Symbol: "AAPL", CycleNumber: 1}
	dec := d.Decide(context.Background(), "alice", 1, dctx, llmdecider.PortfolioLimits{})
	if dec.Action != models.ActionHold || dec.Source != models.SourceFallback {
		t.Fatalf("expected deterministic fallback hold, got %+v", dec)
	}
}

func TestDecideFallsBackToHoldWhenClientDisabled(t *testing.T) {
	client := llm.NewOpenAIClient("")
	d := llmdecider.New(client, "gpt-4o-mini", 1000, 200, false)
	dctx := decisioncontext.Context{Symbol: "AAPL", CycleNumber: 1}
	dec := d.Decide(context.Background(), "alice", 1, dctx, llmdecider.PortfolioLimits{})
	if dec.Source != models.SourceFallback {
		t.Fatalf("expected fallback for a disabled client, got %+v", dec)
	}
}

func TestDecideBuildsDecisionFromLLMResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"action\":\"BUY\",\"symbol\":\"AAPL\",\"quantity\":10,\"confidence\":0.8,\"reasoning\":\"momentum\"}"}}]}`))
	}))
	defer ts.Close()

	client := llm.NewOpenAIClientWithBaseURL("test-key", ts.URL)
	d := llmdecider.New(client, "gpt-4o-mini", 1000, 200, false)
	dctx := decisioncontext.Context{Symbol: "AAPL", CycleNumber: 3}
	dec := d.Decide(context.Background(), "alice", 3, dctx, llmdecider.PortfolioLimits{})

	if dec.Action != models.ActionBuy || dec.Quantity != 10 || dec.Source != models.SourceLLM {
		t.Fatalf("unexpected decision: %+v", dec)
	}
	if dec.LLMMeta == nil || dec.LLMMeta.Model != "gpt-4o-mini" {
		t.Errorf("expected LLM metadata to record the model, got %+v", dec.LLMMeta)
	}
}

func TestDecideFallsBackOnMalformedLLMJSON(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"not json"}}]}`))
	}))
	defer ts.Close()

	client := llm.NewOpenAIClientWithBaseURL("test-key", ts.URL)
	d := llmdecider.New(client, "gpt-4o-mini", 1000, 200, false)
	dctx := decisioncontext.Context{Symbol: "AAPL", CycleNumber: 1}
	dec := d.Decide(context.Background(), "alice", 1, dctx, llmdecider.PortfolioLimits{})

	if dec.Source != models.SourceFallback {
		t.Fatalf("expected fallback on malformed LLM JSON, got %+v", dec)
	}
}

func TestDecideEnforcesMaxPositionCountForNewPositions(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"action\":\"BUY\",\"symbol\":\"AAPL\",\"quantity\":10,\"confidence\":0.8,\"reasoning\":\"momentum\"}"}}]}`))
	}))
	defer ts.Close()

	client := llm.NewOpenAIClientWithBaseURL("test-key", ts.URL)
	d := llmdecider.New(client, "gpt-4o-mini", 1000, 200, false)
	dctx := decisioncontext.Context{Symbol: "AAPL", CycleNumber: 1, PositionShares: 0}
	limits := llmdecider.PortfolioLimits{MaxPositionCount: 3, CurrentPositionCount: 3}

	dec := d.Decide(context.Background(), "alice", 1, dctx, limits)
	if dec.Action != models.ActionHold {
		t.Fatalf("expected max_position_count cap to force a hold, got %+v", dec)
	}
}

func TestDecideAllowsAddingToExistingPositionPastMaxCount(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"action\":\"BUY\",\"symbol\":\"AAPL\",\"quantity\":10,\"confidence\":0.8,\"reasoning\":\"momentum\"}"}}]}`))
	}))
	defer ts.Close()

	client := llm.NewOpenAIClientWithBaseURL("test-key", ts.URL)
	d := llmdecider.New(client, "gpt-4o-mini", 1000, 200, false)
	dctx := decisioncontext.Context{Symbol: "AAPL", CycleNumber: 1, PositionShares: 5}
	limits := llmdecider.PortfolioLimits{MaxPositionCount: 3, CurrentPositionCount: 3}

	dec := d.Decide(context.Background(), "alice", 1, dctx, limits)
	if dec.Action != models.ActionBuy {
		t.Fatalf("expected adding to an existing position to bypass the cap, got %+v", dec)
	}
}
