package engine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/faithleysath/aigmbot/internal/broker"
	"github.com/faithleysath/aigmbot/internal/cache"
	"github.com/faithleysath/aigmbot/internal/clock"
	"github.com/faithleysath/aigmbot/internal/engineerr"
	"github.com/faithleysath/aigmbot/internal/llmclient"
	"github.com/faithleysath/aigmbot/internal/ports"
	"github.com/faithleysath/aigmbot/internal/testsupport"
)

// narrativeServer runs an OpenAI-compatible completion endpoint that
// returns a sequentially numbered reply each call, so tests can assert
// which round's content reached the store.
func narrativeServer(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		body, _ := json.Marshal(map[string]any{
			"id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "gpt-4o",
			"choices": []map[string]any{{
				"index": 0, "message": map[string]any{"role": "assistant", "content": "scene " + strconv.Itoa(int(n))},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 1, "completion_tokens": 1, "total_tokens": 2},
		})
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

type testHarness struct {
	engine  *Engine
	cache   *cache.Cache
	broker  *broker.Broker
	llm     *llmclient.Client
	gateway *ports.InMemoryGateway
	calls   *int32
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()
	st := testsupport.NewStore(t)
	c := cache.New(filepath.Join(t.TempDir(), "cache.json"), zerolog.Nop(), clock.Real{})
	t.Cleanup(func() { _ = c.Close(context.Background()) })

	br, err := broker.New(filepath.Join(t.TempDir(), "presets.json"), filepath.Join(t.TempDir(), "cipher.key"), zerolog.Nop(), clock.Real{})
	if err != nil {
		t.Fatalf("broker.New: %v", err)
	}

	srv, calls := narrativeServer(t)
	preset := broker.Preset{OwnerID: "host1", Name: "main", Model: "gpt-4o", BaseURL: srv.URL, APIKey: "sk-0123456789"}
	if err := br.AddPreset(context.Background(), preset); err != nil {
		t.Fatalf("AddPreset: %v", err)
	}
	if err := br.BindActive(context.Background(), "chan1", "host1", "main", ""); err != nil {
		t.Fatalf("BindActive: %v", err)
	}

	llm := llmclient.New(zerolog.Nop(), clock.Real{}, llmclient.RetryConfig{
		MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond, CallTimeout: 5 * time.Second,
	})
	t.Cleanup(llm.Close)

	gw := ports.NewInMemoryGateway()
	eng := New(st, c, br, llm, gw, ports.PlainRenderer{}, zerolog.Nop())

	return &testHarness{engine: eng, cache: c, broker: br, llm: llm, gateway: gw, calls: calls}
}

func TestStartNewGame_CreatesSeedRoundAndPublishesTip(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	gameID, err := h.engine.StartNewGame(ctx, "chan1", "host1", "a dark forest")
	if err != nil {
		t.Fatalf("StartNewGame: %v", err)
	}
	if gameID == "" {
		t.Fatal("expected a non-empty game id")
	}
	if atomic.LoadInt32(h.calls) != 1 {
		t.Errorf("expected exactly one LLM call for the seed round, got %d", *h.calls)
	}
}

func TestCheckoutHead_PostsImageAndResetsCandidates(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	gameID, err := h.engine.StartNewGame(ctx, "chan1", "host1", "a dark forest")
	if err != nil {
		t.Fatalf("StartNewGame: %v", err)
	}

	game, err := h.engine.store.GetGameByGameID(ctx, gameID)
	if err != nil {
		t.Fatalf("GetGameByGameID: %v", err)
	}
	if game.MainMessageID == nil {
		t.Fatal("expected CheckoutHead to have recorded a main_message_id")
	}
	if _, err := h.gateway.FetchMessageText(ctx, "chan1", *game.MainMessageID); err != nil {
		t.Errorf("expected the posted tip image to be retrievable, got %v", err)
	}
	if len(game.CandidateCustomInputIDs) != 0 {
		t.Errorf("expected candidate_custom_input_ids to be reset on checkout, got %v", game.CandidateCustomInputIDs)
	}
}

func TestRevertLastRound_RefusesAtSeed(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	gameID, err := h.engine.StartNewGame(ctx, "chan1", "host1", "a dark forest")
	if err != nil {
		t.Fatalf("StartNewGame: %v", err)
	}

	var validationErr *engineerr.Validation
	if err := h.engine.RevertLastRound(ctx, gameID); !errors.As(err, &validationErr) {
		t.Fatalf("expected a Validation error reverting past the seed round, got %v", err)
	}
}

func TestCreateAndSwitchBranch(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	gameID, err := h.engine.StartNewGame(ctx, "chan1", "host1", "a dark forest")
	if err != nil {
		t.Fatalf("StartNewGame: %v", err)
	}

	branchID, err := h.engine.CreateNewBranch(ctx, gameID, "alt", nil)
	if err != nil {
		t.Fatalf("CreateNewBranch: %v", err)
	}
	if branchID == "" {
		t.Fatal("expected a non-empty branch id")
	}

	if err := h.engine.SwitchBranch(ctx, gameID, "alt"); err != nil {
		t.Fatalf("SwitchBranch: %v", err)
	}
}

func TestResetCurrentBranch(t *testing.T) {
	ctx := context.Background()
	h := newTestHarness(t)

	gameID, err := h.engine.StartNewGame(ctx, "chan1", "host1", "a dark forest")
	if err != nil {
		t.Fatalf("StartNewGame: %v", err)
	}

	rounds, err := h.engine.store.GetAllRoundsForGame(ctx, gameID)
	if err != nil {
		t.Fatalf("GetAllRoundsForGame: %v", err)
	}
	if len(rounds) != 1 {
		t.Fatalf("expected exactly 1 seed round, got %d", len(rounds))
	}

	if err := h.engine.ResetCurrentBranch(ctx, gameID, rounds[0].RoundID); err != nil {
		t.Fatalf("ResetCurrentBranch: %v", err)
	}
}
