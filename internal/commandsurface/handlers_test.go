package commandsurface

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/faithleysath/aigmbot/internal/engineerr"
	"github.com/faithleysath/aigmbot/internal/ports"
	"github.com/faithleysath/aigmbot/internal/store"
)

func TestHandleStatus_ReportsNoGameForUnboundChannel(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)

	reply, err := h.surface.Dispatch(ctx, Invocation{Command: "status", ChannelID: "chan1", UserID: "user1"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply != "本频道当前没有进行中的游戏" {
		t.Errorf("reply = %q", reply)
	}
}

func TestHandleStatus_ReportsGameState(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	if _, err := h.store.CreateGame(ctx, "chan1", "host1", "prompt"); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	reply, err := h.surface.Dispatch(ctx, Invocation{Command: "status", ChannelID: "chan1", UserID: "user1"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply == "" {
		t.Error("expected a non-empty status reply")
	}
}

func TestHandleStart_PostsPreviewAndQueuesPendingProposal(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	h.gateway.SetMemberRole("chan1", "host1", ports.RoleOwner)

	reply, err := h.surface.Dispatch(ctx, Invocation{
		Command: "start", Args: []string{"a", "dark", "forest"}, ChannelID: "chan1", UserID: "host1",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply != "" {
		t.Errorf("expected no immediate reply text, got %q", reply)
	}

	msgID, err := h.gateway.PostText(ctx, "chan1", "probe")
	if err != nil {
		t.Fatalf("PostText: %v", err)
	}
	// the preview message posted by handleStart precedes this probe message
	if _, ok := h.cache.GetPendingProposal(ctx, msgID); ok {
		t.Fatal("the probe message should not itself be a pending proposal")
	}
}

func TestHandleStart_RefusesWhenChannelAlreadyHasAGame(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	if _, err := h.store.CreateGame(ctx, "chan1", "host1", "prompt"); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	var conflict *engineerr.Conflict
	_, err := h.surface.Dispatch(ctx, Invocation{
		Command: "start", Args: []string{"another", "game"}, ChannelID: "chan1", UserID: "host1",
	})
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a Conflict error for a busy channel, got %v", err)
	}
}

func TestHandleGameAttach_BindsAndChecksOutHead(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	gameID, err := h.store.CreateGame(ctx, "", "host1", "prompt")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	branchID, err := h.store.CreateBranch(ctx, gameID, "main", nil)
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	roundID, err := h.store.CreateRound(ctx, gameID, 0, "", "seed scene", nil, nil)
	if err != nil {
		t.Fatalf("CreateRound: %v", err)
	}
	if err := h.store.UpdateBranchTip(ctx, branchID, roundID); err != nil {
		t.Fatalf("UpdateBranchTip: %v", err)
	}
	if err := h.store.UpdateGameHeadBranch(ctx, gameID, branchID); err != nil {
		t.Fatalf("UpdateGameHeadBranch: %v", err)
	}
	h.gateway.SetMemberRole("chan1", "host1", ports.RoleOwner)

	reply, err := h.surface.Dispatch(ctx, Invocation{
		Command: "game attach", Args: []string{gameID}, ChannelID: "chan1", UserID: "host1",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply != "已绑定" {
		t.Errorf("reply = %q", reply)
	}

	game, err := h.store.GetGameByGameID(ctx, gameID)
	if err != nil {
		t.Fatalf("GetGameByGameID: %v", err)
	}
	if game.MainMessageID == nil {
		t.Error("expected CheckoutHead to have posted and recorded a main message")
	}
}

func TestHandleGameAttach_RefusesWhenChannelAlreadyBusy(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	if _, err := h.store.CreateGame(ctx, "chan1", "host1", "already running"); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	otherGameID, err := h.store.CreateGame(ctx, "", "host2", "other")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	var conflict *engineerr.Conflict
	_, err = h.surface.Dispatch(ctx, Invocation{
		Command: "game attach", Args: []string{otherGameID}, ChannelID: "chan1", UserID: "host1",
	})
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a Conflict error for a busy channel, got %v", err)
	}
}

func TestHandleBranchDelete_RefusesToDeleteCurrentBranch(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	gameID, err := h.store.CreateGame(ctx, "chan1", "host1", "prompt")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	branchID, err := h.store.CreateBranch(ctx, gameID, "main", nil)
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := h.store.UpdateGameHeadBranch(ctx, gameID, branchID); err != nil {
		t.Fatalf("UpdateGameHeadBranch: %v", err)
	}

	var validationErr *engineerr.Validation
	_, err = h.surface.Dispatch(ctx, Invocation{
		Command: "branch delete", Args: []string{"main"}, ChannelID: "chan1", UserID: "host1",
	})
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected a Validation error deleting the current branch, got %v", err)
	}
}

func TestHandleBranchDelete_SucceedsForNonCurrentBranch(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	gameID, err := h.store.CreateGame(ctx, "chan1", "host1", "prompt")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	mainBranchID, err := h.store.CreateBranch(ctx, gameID, "main", nil)
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if _, err := h.store.CreateBranch(ctx, gameID, "alt", nil); err != nil {
		t.Fatalf("CreateBranch(alt): %v", err)
	}
	if err := h.store.UpdateGameHeadBranch(ctx, gameID, mainBranchID); err != nil {
		t.Fatalf("UpdateGameHeadBranch: %v", err)
	}

	reply, err := h.surface.Dispatch(ctx, Invocation{
		Command: "branch delete", Args: []string{"alt"}, ChannelID: "chan1", UserID: "host1",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply != "已删除分支" {
		t.Errorf("reply = %q", reply)
	}
	if _, err := h.store.GetBranchByName(ctx, gameID, "alt"); err == nil {
		t.Error("expected the alt branch to be gone")
	}
}

func TestHandleTagCreate_DefaultsToHeadTip(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	gameID, err := h.store.CreateGame(ctx, "chan1", "host1", "prompt")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	branchID, err := h.store.CreateBranch(ctx, gameID, "main", nil)
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	roundID, err := h.store.CreateRound(ctx, gameID, 0, "", "seed scene", nil, nil)
	if err != nil {
		t.Fatalf("CreateRound: %v", err)
	}
	if err := h.store.UpdateBranchTip(ctx, branchID, roundID); err != nil {
		t.Fatalf("UpdateBranchTip: %v", err)
	}
	if err := h.store.UpdateGameHeadBranch(ctx, gameID, branchID); err != nil {
		t.Fatalf("UpdateGameHeadBranch: %v", err)
	}

	reply, err := h.surface.Dispatch(ctx, Invocation{
		Command: "tag create", Args: []string{"chapter1"}, ChannelID: "chan1", UserID: "host1",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply != "已创建标签" {
		t.Errorf("reply = %q", reply)
	}

	tag, err := h.store.GetTagByName(ctx, gameID, "chapter1")
	if err != nil {
		t.Fatalf("GetTagByName: %v", err)
	}
	if tag.RoundID != roundID {
		t.Errorf("RoundID = %d, want %d", tag.RoundID, roundID)
	}
}

func TestHandleRoundShow_RejectsNonNumericRoundID(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)

	var validationErr *engineerr.Validation
	_, err := h.surface.Dispatch(ctx, Invocation{
		Command: "round show", Args: []string{"not-a-number"}, ChannelID: "chan1", UserID: "host1",
	})
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected a Validation error for a non-numeric round id, got %v", err)
	}
}

func TestHandleRoundShow_PostsRenderedRoundImage(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	gameID, err := h.store.CreateGame(ctx, "chan1", "host1", "prompt")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	roundID, err := h.store.CreateRound(ctx, gameID, 0, "go east", "a rival path", nil, nil)
	if err != nil {
		t.Fatalf("CreateRound: %v", err)
	}

	before := h.gateway.MessageCount()
	reply, err := h.surface.Dispatch(ctx, Invocation{
		Command: "round show", Args: []string{strconv.FormatInt(roundID, 10)}, ChannelID: "chan1", UserID: "host1",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply != "" {
		t.Errorf("expected an empty reply (the round is posted as an image), got %q", reply)
	}
	if h.gateway.MessageCount() != before+1 {
		t.Errorf("expected the rendered round to be posted to the gateway")
	}
}

func TestHandleBranchShow_PostsTipRoundImage(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	gameID, err := h.store.CreateGame(ctx, "chan1", "host1", "prompt")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	branchID, err := h.store.CreateBranch(ctx, gameID, "main", nil)
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	roundID, err := h.store.CreateRound(ctx, gameID, 0, "", "seed scene", nil, nil)
	if err != nil {
		t.Fatalf("CreateRound: %v", err)
	}
	if err := h.store.UpdateBranchTip(ctx, branchID, roundID); err != nil {
		t.Fatalf("UpdateBranchTip: %v", err)
	}

	before := h.gateway.MessageCount()
	reply, err := h.surface.Dispatch(ctx, Invocation{
		Command: "branch show", Args: []string{"main"}, ChannelID: "chan1", UserID: "host1",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply != "" {
		t.Errorf("expected an empty reply, got %q", reply)
	}
	if h.gateway.MessageCount() != before+1 {
		t.Errorf("expected the branch's tip round to be posted to the gateway")
	}
}

func TestHandleBranchList_PostsBranchGraphImage(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	if _, err := h.store.CreateGame(ctx, "chan1", "host1", "prompt"); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	before := h.gateway.MessageCount()
	reply, err := h.surface.Dispatch(ctx, Invocation{Command: "branch list", ChannelID: "chan1", UserID: "host1"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply != "" {
		t.Errorf("expected an empty reply, got %q", reply)
	}
	if h.gateway.MessageCount() != before+1 {
		t.Errorf("expected a branch graph image to be posted to the gateway")
	}
}

func TestHandleBranchHistory_RespectsLimitCap(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	gameID, err := h.store.CreateGame(ctx, "chan1", "host1", "prompt")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	branchID, err := h.store.CreateBranch(ctx, gameID, "main", nil)
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := h.store.UpdateGameHeadBranch(ctx, gameID, branchID); err != nil {
		t.Fatalf("UpdateGameHeadBranch: %v", err)
	}
	roundID := store.ParentSentinel
	for i := 0; i < 15; i++ {
		roundID, err = h.store.CreateRound(ctx, gameID, roundID, "", "scene", nil, nil)
		if err != nil {
			t.Fatalf("CreateRound: %v", err)
		}
	}
	if err := h.store.UpdateBranchTip(ctx, branchID, roundID); err != nil {
		t.Fatalf("UpdateBranchTip: %v", err)
	}

	before := h.gateway.MessageCount()
	reply, err := h.surface.Dispatch(ctx, Invocation{
		Command: "branch history", Args: []string{"main", "50"}, ChannelID: "chan1", UserID: "host1",
	})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply != "" {
		t.Errorf("expected an empty reply, got %q", reply)
	}
	if h.gateway.MessageCount() != before+1 {
		t.Errorf("expected a single forwarded bundle to be posted regardless of the requested limit")
	}
}

func TestHandleBranchHistory_RejectsNonNumericLimit(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	gameID, err := h.store.CreateGame(ctx, "chan1", "host1", "prompt")
	if err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	branchID, err := h.store.CreateBranch(ctx, gameID, "main", nil)
	if err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	roundID, err := h.store.CreateRound(ctx, gameID, 0, "", "scene", nil, nil)
	if err != nil {
		t.Fatalf("CreateRound: %v", err)
	}
	if err := h.store.UpdateBranchTip(ctx, branchID, roundID); err != nil {
		t.Fatalf("UpdateBranchTip: %v", err)
	}

	var validationErr *engineerr.Validation
	_, err = h.surface.Dispatch(ctx, Invocation{
		Command: "branch history", Args: []string{"main", "not-a-number"}, ChannelID: "chan1", UserID: "host1",
	})
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected a Validation error for a non-numeric limit, got %v", err)
	}
}

func TestHandleLLMBind_RefusesCrossOwnerTakeover(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	// someone-else needs their own "main" preset to get past the
	// preset-existence check before the cross-owner conflict applies.
	_, err := h.surface.Dispatch(ctx, Invocation{
		Command: "llm add", Args: []string{"main", "gpt-4o", "https://api.example.com/v1", "sk-0123456789"},
		UserID: "someone-else", IsDirect: true,
	})
	if err != nil {
		t.Fatalf("llm add: %v", err)
	}

	var conflict *engineerr.Conflict
	_, err = h.surface.Dispatch(ctx, Invocation{
		Command: "llm bind", Args: []string{"main"}, ChannelID: "chan1", UserID: "someone-else", IsDirect: true,
	})
	if !errors.As(err, &conflict) {
		t.Fatalf("expected a Conflict error for a cross-owner rebind, got %v", err)
	}
}

func TestHandleLLMStatus_ReportsCurrentBinding(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)

	reply, err := h.surface.Dispatch(ctx, Invocation{Command: "llm status", ChannelID: "chan1", UserID: "host1"})
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if reply == "" {
		t.Error("expected a non-empty llm status reply")
	}
}

func TestHandleAdvancedMode_EnableDisableStatus(t *testing.T) {
	ctx := context.Background()
	h := newSurfaceHarness(t, nil)
	if _, err := h.store.CreateGame(ctx, "chan1", "host1", "prompt"); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}

	if _, err := h.surface.Dispatch(ctx, Invocation{Command: "advanced-mode enable", ChannelID: "chan1", UserID: "host1"}); err != nil {
		t.Fatalf("enable: %v", err)
	}
	reply, err := h.surface.Dispatch(ctx, Invocation{Command: "advanced-mode status", ChannelID: "chan1", UserID: "host1"})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if reply != "高级模式: 开启" {
		t.Errorf("reply = %q", reply)
	}

	if _, err := h.surface.Dispatch(ctx, Invocation{Command: "advanced-mode disable", ChannelID: "chan1", UserID: "host1"}); err != nil {
		t.Fatalf("disable: %v", err)
	}
	reply, err = h.surface.Dispatch(ctx, Invocation{Command: "advanced-mode status", ChannelID: "chan1", UserID: "host1"})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if reply != "高级模式: 关闭" {
		t.Errorf("reply = %q", reply)
	}
}
