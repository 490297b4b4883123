package commandsurface

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/faithleysath/aigmbot/internal/broker"
	"github.com/faithleysath/aigmbot/internal/cache"
	"github.com/faithleysath/aigmbot/internal/engineerr"
	"github.com/faithleysath/aigmbot/internal/namecheck"
	"github.com/faithleysath/aigmbot/internal/ports"
	"github.com/faithleysath/aigmbot/internal/store"
)

// maxHistoryBundle is the §6 "up to limit (≤ 10)" cap on a forwarded
// history bundle.
const maxHistoryBundle = 10

// historyLimit parses an optional [limit] argument, defaulting to and
// capping at maxHistoryBundle.
func historyLimit(arg string) (int, error) {
	if arg == "" {
		return maxHistoryBundle, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n <= 0 {
		return 0, &engineerr.Validation{Field: "limit", Hint: "必须是正整数"}
	}
	if n > maxHistoryBundle {
		n = maxHistoryBundle
	}
	return n, nil
}

// renderRound turns a round's assistant response into an image via
// Renderer, matching engine.go's checkout_head rendering.
func renderRound(ctx context.Context, s *Surface, round *store.Round) ([]byte, error) {
	image, err := s.renderer.RenderMarkdown(ctx, round.AssistantResponse, "")
	if err != nil {
		return nil, &engineerr.StorageIO{Op: "render_round", Err: err}
	}
	return image, nil
}

// postRoundImage renders and posts a single round (branch show / round
// show / tag show).
func postRoundImage(ctx context.Context, s *Surface, channelID string, round *store.Round) (string, error) {
	image, err := renderRound(ctx, s, round)
	if err != nil {
		return "", err
	}
	if _, err := s.gateway.PostImage(ctx, channelID, image); err != nil {
		return "", &engineerr.StorageIO{Op: "post_round_image", Err: err}
	}
	return "", nil
}

// postRoundBundle renders each round and posts them as a single
// forwarded bundle (branch/round/tag history), per §9's synthetic
// "#<round_id>" author display name.
func postRoundBundle(ctx context.Context, s *Surface, channelID string, rounds []*store.Round) (string, error) {
	entries := make([]ports.ForwardEntry, 0, len(rounds))
	for _, r := range rounds {
		image, err := renderRound(ctx, s, r)
		if err != nil {
			return "", err
		}
		entries = append(entries, ports.ForwardEntry{
			AuthorDisplayName: fmt.Sprintf("#%d", r.RoundID),
			Image:             image,
		})
	}
	if _, err := s.gateway.PostForwardedBundle(ctx, channelID, entries); err != nil {
		return "", &engineerr.StorageIO{Op: "post_round_bundle", Err: err}
	}
	return "", nil
}

// registerCommands builds the full §6 command table.
func registerCommands(r *Registry) {
	r.Register(Definition{Name: "help", Description: "显示帮助图片", Handler: handleHelp})
	r.Register(Definition{Name: "status", Description: "显示当前频道游戏状态", Handler: handleStatus})
	r.Register(Definition{Name: "webui", Description: "获取网页端开局链接", Handler: handleWebUI})
	r.Register(Definition{Name: "start", Args: "[system_prompt]", Description: "发起新游戏", Mutating: true, Handler: handleStart})

	r.Register(Definition{Name: "game list", Description: "列出所有游戏", Handler: handleGameList})
	r.Register(Definition{Name: "game attach", Args: "<game_id>", Description: "将游戏绑定到本频道", Mutating: true, Handler: handleGameAttach})
	r.Register(Definition{Name: "game detach", Description: "解绑本频道的游戏", Mutating: true, Handler: handleGameDetach})
	r.Register(Definition{Name: "game sethost", Args: "<@user>", Description: "转让房主", Mutating: true, Handler: handleGameSetHost})
	r.Register(Definition{Name: "game sethost-by-id", Args: "<user_id>", Description: "按 id 转让房主", Mutating: true, Handler: handleGameSetHost})

	r.Register(Definition{Name: "branch list", Args: "[all]", Description: "列出分支", Handler: handleBranchList})
	r.Register(Definition{Name: "branch show", Args: "<name>", Description: "展示分支最新回合", Handler: handleBranchShow})
	r.Register(Definition{Name: "branch history", Args: "[branch] [limit]", Description: "展示分支历史", Handler: handleBranchHistory})
	r.Register(Definition{Name: "branch create", Args: "<name> [from_round_id]", Description: "创建分支", Mutating: true, Handler: handleBranchCreate})
	r.Register(Definition{Name: "branch rename", Args: "<old> <new>", Description: "重命名分支", Mutating: true, Handler: handleBranchRename})
	r.Register(Definition{Name: "branch delete", Args: "<name>", Description: "删除分支", Mutating: true, Handler: handleBranchDelete})

	r.Register(Definition{Name: "checkout", Args: "head|<branch>", Description: "切换 HEAD 并发布当前回合", Mutating: true, Handler: handleCheckout})
	r.Register(Definition{Name: "co", Args: "<branch>", Description: "checkout 的别名", Mutating: true, Handler: handleCheckout})
	r.Register(Definition{Name: "reset", Args: "<round_id>", Description: "将当前分支强制指向某回合", Mutating: true, Handler: handleReset})

	r.Register(Definition{Name: "round show", Args: "<round_id>", Description: "展示单个回合", Handler: handleRoundShow})
	r.Register(Definition{Name: "round history", Args: "[limit]", Description: "展示当前分支历史", Handler: handleRoundHistory})

	r.Register(Definition{Name: "tag list", Description: "列出标签", Handler: handleTagList})
	r.Register(Definition{Name: "tag show", Args: "<name>", Description: "展示标签指向的回合", Handler: handleTagShow})
	r.Register(Definition{Name: "tag history", Args: "<name> [limit]", Description: "展示标签历史", Handler: handleTagHistory})
	r.Register(Definition{Name: "tag create", Args: "<name> [round_id]", Description: "创建标签", Mutating: true, Handler: handleTagCreate})
	r.Register(Definition{Name: "tag delete", Args: "<name>", Description: "删除标签", Mutating: true, Handler: handleTagDelete})

	r.Register(Definition{Name: "admin unfreeze", Description: "强制解冻本频道游戏", Mutating: true, Handler: handleAdminUnfreeze})
	r.Register(Definition{Name: "admin delete", Args: "<game_id>", Description: "删除游戏", Mutating: true, Handler: handleAdminDelete})
	r.Register(Definition{Name: "admin refresh-tunnel", Description: "刷新公网地址", Mutating: true, Handler: handleAdminRefreshTunnel})
	r.Register(Definition{Name: "admin clear-help-cache", Description: "清除帮助图缓存", Mutating: true, Handler: handleAdminClearHelpCache})

	r.Register(Definition{Name: "advanced-mode enable", Description: "开启高级模式", Mutating: true, Handler: handleAdvancedModeEnable})
	r.Register(Definition{Name: "advanced-mode disable", Description: "关闭高级模式", Mutating: true, Handler: handleAdvancedModeDisable})
	r.Register(Definition{Name: "advanced-mode status", Description: "查看高级模式状态", Handler: handleAdvancedModeStatus})

	r.Register(Definition{Name: "llm add", Args: "<name> <model> <base_url> <api_key>", Description: "新增私人预设", Mutating: true, Handler: handleLLMAdd})
	r.Register(Definition{Name: "llm remove", Args: "<name>", Description: "删除私人预设", Mutating: true, Handler: handleLLMRemove})
	r.Register(Definition{Name: "llm test", Args: "<name>", Description: "测试私人预设", Handler: handleLLMTest})
	r.Register(Definition{Name: "llm list", Description: "列出私人预设", Handler: handleLLMList})
	r.Register(Definition{Name: "llm status", Description: "查看本频道绑定状态", Handler: handleLLMStatus})
	r.Register(Definition{Name: "llm bind", Args: "<name> [duration]", Description: "绑定预设到本频道", Mutating: true, Handler: handleLLMBind})
	r.Register(Definition{Name: "llm unbind", Description: "解除本频道绑定", Mutating: true, Handler: handleLLMUnbind})
	r.Register(Definition{Name: "llm set-fallback", Args: "<name>", Description: "设置兜底预设", Mutating: true, Handler: handleLLMSetFallback})
	r.Register(Definition{Name: "llm clear-fallback", Description: "清除兜底预设", Mutating: true, Handler: handleLLMClearFallback})
}

// --- top-level ---

func handleHelp(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	image, err := s.renderer.RenderHelpPage(ctx)
	if err != nil {
		return "", &engineerr.StorageIO{Op: "render_help", Err: err}
	}
	if _, err := s.gateway.PostImage(ctx, inv.ChannelID, image); err != nil {
		return "", &engineerr.StorageIO{Op: "post_help", Err: err}
	}
	return "", nil
}

func handleStatus(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		var notFound *engineerr.NotFound
		if errors.As(err, &notFound) {
			return "本频道当前没有进行中的游戏", nil
		}
		return "", err
	}
	frozen := "否"
	if game.IsFrozen {
		frozen = "是"
	}
	return fmt.Sprintf("游戏 %s\n房主: %s\n冻结: %s", game.GameID, game.HostUserID, frozen), nil
}

func handleWebUI(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	token := s.cache.MintWebStartToken(ctx, inv.ChannelID, inv.UserID)
	url, err := s.webExposer.MintWebStartURL(ctx, token)
	if err != nil {
		return "", &engineerr.StorageIO{Op: "mint_web_start_url", Err: err}
	}
	return "请在 10 分钟内打开: " + url, nil
}

func handleStart(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	systemPrompt := strings.Join(inv.Args, " ")
	if systemPrompt == "" {
		return handleWebUI(ctx, s, inv)
	}
	if _, err := s.store.GetGameByChannelID(ctx, inv.ChannelID); err == nil {
		return "", &engineerr.Conflict{Kind: engineerr.ConflictChannelBusy, Name: inv.ChannelID}
	}
	messageID, err := s.gateway.PostText(ctx, inv.ChannelID, "准备好了吗? 反应 🎉 确认, ☕ 取消\n"+systemPrompt)
	if err != nil {
		return "", &engineerr.StorageIO{Op: "post_start_preview", Err: err}
	}
	s.cache.PutPendingProposal(ctx, messageID, cache.PendingProposal{
		UserID:       inv.UserID,
		SystemPrompt: systemPrompt,
		MessageID:    messageID,
	})
	return "", nil
}

// --- game ---

func handleGameList(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	games, err := s.store.GetAllGames(ctx)
	if err != nil {
		return "", err
	}
	if len(games) == 0 {
		return "没有任何游戏", nil
	}
	var b strings.Builder
	for _, g := range games {
		channel := "(未绑定)"
		if g.ChannelID != nil {
			channel = *g.ChannelID
		}
		fmt.Fprintf(&b, "%s 房主=%s 频道=%s\n", g.GameID, g.HostUserID, channel)
	}
	return b.String(), nil
}

func handleGameAttach(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "game_id", Hint: "缺少参数"}
	}
	if _, err := s.store.GetGameByChannelID(ctx, inv.ChannelID); err == nil {
		return "", &engineerr.Conflict{Kind: engineerr.ConflictChannelBusy, Name: inv.ChannelID}
	}
	if err := s.store.AttachGameToChannel(ctx, inv.Args[0], inv.ChannelID); err != nil {
		return "", err
	}
	return "已绑定", s.engine.CheckoutHead(ctx, inv.Args[0])
}

func handleGameDetach(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	if err := s.store.DetachGameFromChannel(ctx, game.GameID); err != nil {
		return "", err
	}
	return "已解绑", nil
}

func handleGameSetHost(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "user_id", Hint: "缺少参数"}
	}
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	if err := s.store.UpdateGameHost(ctx, game.GameID, inv.Args[0]); err != nil {
		return "", err
	}
	return "房主已变更", nil
}

// --- branch ---

func handleBranchList(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	full := len(inv.Args) > 0 && inv.Args[0] == "all"
	var image []byte
	if full {
		image, err = s.visualizer.CreateFullBranchGraph(ctx, game.GameID)
	} else {
		image, err = s.visualizer.CreateBranchGraph(ctx, game.GameID)
	}
	if err != nil {
		return "", &engineerr.StorageIO{Op: "render_branch_graph", Err: err}
	}
	if _, err := s.gateway.PostImage(ctx, inv.ChannelID, image); err != nil {
		return "", &engineerr.StorageIO{Op: "post_branch_graph", Err: err}
	}
	return "", nil
}

func handleBranchShow(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "name", Hint: "缺少参数"}
	}
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	br, err := s.store.GetBranchByName(ctx, game.GameID, inv.Args[0])
	if err != nil {
		return "", err
	}
	if br.TipRoundID == nil {
		return "该分支没有任何回合", nil
	}
	round, err := s.store.GetRoundInfo(ctx, *br.TipRoundID)
	if err != nil {
		return "", err
	}
	return postRoundImage(ctx, s, inv.ChannelID, round)
}

func handleBranchHistory(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	branchID := game.HeadBranchID
	limitArg := ""
	if len(inv.Args) > 0 && inv.Args[0] != "" {
		br, err := s.store.GetBranchByName(ctx, game.GameID, inv.Args[0])
		if err != nil {
			return "", err
		}
		branchID = &br.BranchID
	}
	if len(inv.Args) > 1 {
		limitArg = inv.Args[1]
	}
	if branchID == nil {
		return "", &engineerr.NotFound{Kind: engineerr.NotFoundBranch, Key: "head"}
	}
	br, err := s.store.GetBranchByID(ctx, *branchID)
	if err != nil {
		return "", err
	}
	if br.TipRoundID == nil {
		return "该分支没有任何回合", nil
	}
	limit, err := historyLimit(limitArg)
	if err != nil {
		return "", err
	}
	ancestors, err := s.store.GetRoundAncestors(ctx, *br.TipRoundID, limit)
	if err != nil {
		return "", err
	}
	return postRoundBundle(ctx, s, inv.ChannelID, ancestors)
}

func handleBranchCreate(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "name", Hint: "缺少参数"}
	}
	name := inv.Args[0]
	if !namecheck.ValidBranchOrTagName(name) {
		return "", &engineerr.Validation{Field: "name", Hint: "名称不合法"}
	}
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	var fromRoundID *int64
	if len(inv.Args) > 1 {
		id, err := strconv.ParseInt(inv.Args[1], 10, 64)
		if err != nil {
			return "", &engineerr.Validation{Field: "from_round_id", Hint: "必须是数字"}
		}
		fromRoundID = &id
	}
	branchID, err := s.engine.CreateNewBranch(ctx, game.GameID, name, fromRoundID)
	if err != nil {
		return "", err
	}
	return "已创建分支 " + branchID, nil
}

func handleBranchRename(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 2 {
		return "", &engineerr.Validation{Field: "name", Hint: "缺少参数"}
	}
	if !namecheck.ValidBranchOrTagName(inv.Args[1]) {
		return "", &engineerr.Validation{Field: "new_name", Hint: "名称不合法"}
	}
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	br, err := s.store.GetBranchByName(ctx, game.GameID, inv.Args[0])
	if err != nil {
		return "", err
	}
	if err := s.store.RenameBranch(ctx, br.BranchID, inv.Args[1]); err != nil {
		return "", err
	}
	return "已重命名", nil
}

func handleBranchDelete(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "name", Hint: "缺少参数"}
	}
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	br, err := s.store.GetBranchByName(ctx, game.GameID, inv.Args[0])
	if err != nil {
		return "", err
	}
	if game.HeadBranchID != nil && *game.HeadBranchID == br.BranchID {
		return "", &engineerr.Validation{Field: "name", Hint: "不能删除当前所在分支"}
	}
	if err := s.store.DeleteBranch(ctx, br.BranchID); err != nil {
		return "", err
	}
	return "已删除分支", nil
}

// --- checkout / reset ---

func handleCheckout(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "target", Hint: "缺少参数"}
	}
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	if inv.Args[0] == store.HeadReservedName {
		return "", s.engine.CheckoutHead(ctx, game.GameID)
	}
	return "", s.engine.SwitchBranch(ctx, game.GameID, inv.Args[0])
}

func handleReset(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "round_id", Hint: "缺少参数"}
	}
	roundID, err := strconv.ParseInt(inv.Args[0], 10, 64)
	if err != nil {
		return "", &engineerr.Validation{Field: "round_id", Hint: "必须是数字"}
	}
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	return "", s.engine.ResetCurrentBranch(ctx, game.GameID, roundID)
}

// --- round ---

func handleRoundShow(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "round_id", Hint: "缺少参数"}
	}
	roundID, err := strconv.ParseInt(inv.Args[0], 10, 64)
	if err != nil {
		return "", &engineerr.Validation{Field: "round_id", Hint: "必须是数字"}
	}
	round, err := s.store.GetRoundInfo(ctx, roundID)
	if err != nil {
		return "", err
	}
	return postRoundImage(ctx, s, inv.ChannelID, round)
}

func handleRoundHistory(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	if game.HeadBranchID == nil {
		return "", &engineerr.NotFound{Kind: engineerr.NotFoundBranch, Key: "head"}
	}
	branch, err := s.store.GetBranchByID(ctx, *game.HeadBranchID)
	if err != nil {
		return "", err
	}
	if branch.TipRoundID == nil {
		return "该分支没有任何回合", nil
	}
	limitArg := ""
	if len(inv.Args) > 0 {
		limitArg = inv.Args[0]
	}
	limit, err := historyLimit(limitArg)
	if err != nil {
		return "", err
	}
	ancestors, err := s.store.GetRoundAncestors(ctx, *branch.TipRoundID, limit)
	if err != nil {
		return "", err
	}
	return postRoundBundle(ctx, s, inv.ChannelID, ancestors)
}

// --- tag ---

func handleTagList(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	tags, err := s.store.GetAllTagsForGame(ctx, game.GameID)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, t := range tags {
		fmt.Fprintf(&b, "%s -> #%d\n", t.Name, t.RoundID)
	}
	return b.String(), nil
}

func handleTagShow(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "name", Hint: "缺少参数"}
	}
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	tag, err := s.store.GetTagByName(ctx, game.GameID, inv.Args[0])
	if err != nil {
		return "", err
	}
	return handleRoundShow(ctx, s, Invocation{Args: []string{strconv.FormatInt(tag.RoundID, 10)}, ChannelID: inv.ChannelID})
}

func handleTagHistory(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "name", Hint: "缺少参数"}
	}
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	tag, err := s.store.GetTagByName(ctx, game.GameID, inv.Args[0])
	if err != nil {
		return "", err
	}
	limitArg := ""
	if len(inv.Args) > 1 {
		limitArg = inv.Args[1]
	}
	limit, err := historyLimit(limitArg)
	if err != nil {
		return "", err
	}
	ancestors, err := s.store.GetRoundAncestors(ctx, tag.RoundID, limit)
	if err != nil {
		return "", err
	}
	return postRoundBundle(ctx, s, inv.ChannelID, ancestors)
}

func handleTagCreate(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "name", Hint: "缺少参数"}
	}
	name := inv.Args[0]
	if !namecheck.ValidBranchOrTagName(name) {
		return "", &engineerr.Validation{Field: "name", Hint: "名称不合法"}
	}
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	roundID := int64(0)
	if len(inv.Args) > 1 {
		id, err := strconv.ParseInt(inv.Args[1], 10, 64)
		if err != nil {
			return "", &engineerr.Validation{Field: "round_id", Hint: "必须是数字"}
		}
		roundID = id
	} else {
		if game.HeadBranchID == nil {
			return "", &engineerr.NotFound{Kind: engineerr.NotFoundBranch, Key: "head"}
		}
		br, err := s.store.GetBranchByID(ctx, *game.HeadBranchID)
		if err != nil {
			return "", err
		}
		if br.TipRoundID == nil {
			return "", &engineerr.NotFound{Kind: engineerr.NotFoundRound, Key: "tip"}
		}
		roundID = *br.TipRoundID
	}
	if _, err := s.store.CreateTag(ctx, game.GameID, name, roundID); err != nil {
		return "", err
	}
	return "已创建标签", nil
}

func handleTagDelete(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "name", Hint: "缺少参数"}
	}
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	tag, err := s.store.GetTagByName(ctx, game.GameID, inv.Args[0])
	if err != nil {
		return "", err
	}
	if err := s.store.DeleteTag(ctx, tag.TagID); err != nil {
		return "", err
	}
	return "已删除标签", nil
}

// --- admin ---

func handleAdminUnfreeze(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	game, err := s.store.GetGameByChannelID(ctx, inv.ChannelID)
	if err != nil {
		return "", err
	}
	if err := s.store.SetGameFrozenStatus(ctx, game.GameID, false); err != nil {
		return "", err
	}
	return "已解冻", nil
}

func handleAdminDelete(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "game_id", Hint: "缺少参数"}
	}
	if err := s.store.DeleteGame(ctx, inv.Args[0]); err != nil {
		return "", err
	}
	return "已删除游戏", nil
}

func handleAdminRefreshTunnel(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	url, err := s.webExposer.PublicURL(ctx)
	if err != nil {
		return "", &engineerr.StorageIO{Op: "refresh_tunnel", Err: err}
	}
	return "公网地址: " + url, nil
}

func handleAdminClearHelpCache(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	// RenderHelpPage regenerates on demand; this command exists for
	// symmetry with the cached-help design named in the command table.
	if _, err := s.renderer.RenderHelpPage(ctx); err != nil {
		return "", &engineerr.StorageIO{Op: "clear_help_cache", Err: err}
	}
	return "帮助缓存已刷新", nil
}

// --- advanced-mode ---

func handleAdvancedModeEnable(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	return "高级模式已开启", s.channels.SetAdvancedMode(ctx, inv.ChannelID, true)
}

func handleAdvancedModeDisable(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	return "高级模式已关闭", s.channels.SetAdvancedMode(ctx, inv.ChannelID, false)
}

func handleAdvancedModeStatus(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if s.channels.AdvancedMode(inv.ChannelID) {
		return "高级模式: 开启", nil
	}
	return "高级模式: 关闭", nil
}

// --- llm (private-message commands, keyed by the caller's user id) ---

func handleLLMAdd(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 4 {
		return "", &engineerr.Validation{Field: "args", Hint: "用法: llm add <name> <model> <base_url> <api_key>"}
	}
	p := broker.Preset{OwnerID: inv.UserID, Name: inv.Args[0], Model: inv.Args[1], BaseURL: inv.Args[2], APIKey: inv.Args[3]}
	if err := s.broker.AddPreset(ctx, p); err != nil {
		return "", err
	}
	return "预设已保存", nil
}

func handleLLMRemove(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "name", Hint: "缺少参数"}
	}
	if _, err := s.broker.RemovePreset(ctx, inv.UserID, inv.Args[0]); err != nil {
		return "", err
	}
	return "预设已删除", nil
}

func handleLLMTest(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "name", Hint: "缺少参数"}
	}
	p, err := s.broker.GetPreset(inv.UserID, inv.Args[0])
	if err != nil {
		return "", err
	}
	reply, err := broker.TestPreset(ctx, s.llm, p)
	if err != nil {
		return "", err
	}
	return "测试成功: " + reply, nil
}

func handleLLMList(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	presets := s.broker.ListPresets(inv.UserID)
	if len(presets) == 0 {
		return "没有已保存的预设", nil
	}
	var b strings.Builder
	for _, p := range presets {
		fmt.Fprintf(&b, "%s (%s)\n", p.Name, p.Model)
	}
	return b.String(), nil
}

func handleLLMStatus(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	res := s.broker.Resolve(inv.ChannelID)
	ownerID, name, ok := res.Preset()
	if !ok {
		return "本频道未绑定任何预设", nil
	}
	return fmt.Sprintf("当前预设: %s (来自 %s)", name, ownerID), nil
}

func handleLLMBind(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "name", Hint: "缺少参数"}
	}
	duration := ""
	if len(inv.Args) > 1 {
		duration = inv.Args[1]
	}
	if err := s.broker.BindActive(ctx, inv.ChannelID, inv.UserID, inv.Args[0], duration); err != nil {
		return "", err
	}
	return "已绑定预设", nil
}

func handleLLMUnbind(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if err := s.broker.Unbind(ctx, inv.ChannelID); err != nil {
		return "", err
	}
	return "已解除绑定", nil
}

func handleLLMSetFallback(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if len(inv.Args) < 1 {
		return "", &engineerr.Validation{Field: "name", Hint: "缺少参数"}
	}
	if err := s.broker.SetFallback(ctx, inv.ChannelID, inv.UserID, inv.Args[0]); err != nil {
		return "", err
	}
	return "已设置兜底预设", nil
}

func handleLLMClearFallback(ctx context.Context, s *Surface, inv Invocation) (string, error) {
	if err := s.broker.ClearFallback(ctx, inv.ChannelID); err != nil {
		return "", err
	}
	return "已清除兜底预设", nil
}
