package store_test

import (
	"context"
	"errors"
	"testing"

	"github.com/faithleysath/aigmbot/internal/engineerr"
	"github.com/faithleysath/aigmbot/internal/store"
	"github.com/faithleysath/aigmbot/internal/testsupport"
)

func TestCreateAndGetRound(t *testing.T) {
	ctx := context.Background()
	st := testsupport.NewStore(t)
	gameID, _ := st.CreateGame(ctx, "chan1", "host1", "prompt")

	model := "gpt-4o"
	usage := &store.LLMUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}
	roundID, err := st.CreateRound(ctx, gameID, store.ParentSentinel, store.SeedChoice, "you awaken", usage, &model)
	if err != nil {
		t.Fatalf("CreateRound: %v", err)
	}

	r, err := st.GetRoundInfo(ctx, roundID)
	if err != nil {
		t.Fatalf("GetRoundInfo: %v", err)
	}
	if r.ParentID != store.ParentSentinel || r.PlayerChoice != store.SeedChoice {
		t.Errorf("unexpected round: %+v", r)
	}
	if r.LLMUsage == nil || r.LLMUsage.TotalTokens != 15 {
		t.Errorf("expected usage to round-trip, got %+v", r.LLMUsage)
	}
	if r.ModelName == nil || *r.ModelName != "gpt-4o" {
		t.Errorf("expected model name to round-trip, got %+v", r.ModelName)
	}
}

func TestGetRoundInfo_NotFound(t *testing.T) {
	ctx := context.Background()
	st := testsupport.NewStore(t)

	var notFound *engineerr.NotFound
	if _, err := st.GetRoundInfo(ctx, 999); !errors.As(err, &notFound) {
		t.Fatalf("expected a NotFound error, got %v", err)
	}
}

func TestGetRoundAncestors_OldestFirstAndLimit(t *testing.T) {
	ctx := context.Background()
	st := testsupport.NewStore(t)
	gameID, _ := st.CreateGame(ctx, "chan1", "host1", "prompt")

	root, err := st.CreateRound(ctx, gameID, store.ParentSentinel, store.SeedChoice, "round 0", nil, nil)
	if err != nil {
		t.Fatalf("CreateRound root: %v", err)
	}
	r1, err := st.CreateRound(ctx, gameID, root, "go north", "round 1", nil, nil)
	if err != nil {
		t.Fatalf("CreateRound r1: %v", err)
	}
	r2, err := st.CreateRound(ctx, gameID, r1, "go east", "round 2", nil, nil)
	if err != nil {
		t.Fatalf("CreateRound r2: %v", err)
	}

	chain, err := st.GetRoundAncestors(ctx, r2, 10)
	if err != nil {
		t.Fatalf("GetRoundAncestors: %v", err)
	}
	if len(chain) != 3 {
		t.Fatalf("expected 3 ancestors, got %d", len(chain))
	}
	if chain[0].RoundID != root || chain[1].RoundID != r1 || chain[2].RoundID != r2 {
		t.Errorf("expected oldest-first ordering, got %+v", chain)
	}

	limited, err := st.GetRoundAncestors(ctx, r2, 2)
	if err != nil {
		t.Fatalf("GetRoundAncestors limited: %v", err)
	}
	if len(limited) != 2 || limited[len(limited)-1].RoundID != r2 {
		t.Errorf("expected the limit to cap the chain to the 2 most recent ancestors, got %+v", limited)
	}
}

func TestGetAllRoundsForGame(t *testing.T) {
	ctx := context.Background()
	st := testsupport.NewStore(t)
	gameID, _ := st.CreateGame(ctx, "chan1", "host1", "prompt")

	r0, _ := st.CreateRound(ctx, gameID, store.ParentSentinel, store.SeedChoice, "round 0", nil, nil)
	r1, _ := st.CreateRound(ctx, gameID, r0, "go north", "round 1", nil, nil)

	rounds, err := st.GetAllRoundsForGame(ctx, gameID)
	if err != nil {
		t.Fatalf("GetAllRoundsForGame: %v", err)
	}
	if len(rounds) != 2 || rounds[0].RoundID != r0 || rounds[1].RoundID != r1 {
		t.Errorf("unexpected rounds: %+v", rounds)
	}
}
