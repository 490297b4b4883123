// Package engine implements GameEngine (§4.6): the orchestrator driving
// a game's round-advancement state machine across Store, VolatileCache,
// LLMBroker, LLMClient, and ChatGateway/Renderer.
package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/faithleysath/aigmbot/internal/broker"
	"github.com/faithleysath/aigmbot/internal/cache"
	"github.com/faithleysath/aigmbot/internal/engineerr"
	"github.com/faithleysath/aigmbot/internal/llmclient"
	"github.com/faithleysath/aigmbot/internal/ports"
	"github.com/faithleysath/aigmbot/internal/store"
)

// maxAncestorWindow is the "very-large-limit" §4.6.3 step 6 asks for
// when rebuilding the full LLM conversation from a tip round.
const maxAncestorWindow = 1_000_000

// Engine is GameEngine.
type Engine struct {
	store    *store.Store
	cache    *cache.Cache
	broker   *broker.Broker
	llm      *llmclient.Client
	gateway  ports.ChatGateway
	renderer ports.Renderer
	log      zerolog.Logger
}

// New wires an Engine from its collaborators.
func New(st *store.Store, c *cache.Cache, br *broker.Broker, llm *llmclient.Client, gw ports.ChatGateway, rd ports.Renderer, log zerolog.Logger) *Engine {
	return &Engine{
		store:    st,
		cache:    c,
		broker:   br,
		llm:      llm,
		gateway:  gw,
		renderer: rd,
		log:      log.With().Str("component", "game_engine").Logger(),
	}
}

func (e *Engine) completePreset(ctx context.Context, channelID string, messages []llmclient.Message) (string, *store.LLMUsage, string, error) {
	preset, err := e.broker.ResolvePreset(channelID)
	if err != nil {
		return "", nil, "", err
	}
	content, usage, modelName, err := e.llm.GetCompletion(ctx, messages, llmclient.Credentials{
		Model:   preset.Model,
		BaseURL: preset.BaseURL,
		APIKey:  preset.APIKey,
	})
	if err != nil {
		return "", nil, "", err
	}
	return content, &store.LLMUsage{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
	}, modelName, nil
}

// StartNewGame implements §4.6.1.
func (e *Engine) StartNewGame(ctx context.Context, channelID, userID, systemPrompt string) (string, error) {
	gameID, err := e.store.CreateGame(ctx, channelID, userID, systemPrompt)
	if err != nil {
		return "", err
	}

	content, usage, modelName, err := e.completePreset(ctx, channelID, []llmclient.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: store.SeedChoice},
	})
	if err != nil {
		if delErr := e.store.DeleteGame(ctx, gameID); delErr != nil {
			e.log.Error().Err(delErr).Str("game_id", gameID).Msg("failed to roll back game after seed LLM failure")
		}
		return "", err
	}

	var seedRoundID int64
	err = e.store.Transaction(ctx, func(ctx context.Context) error {
		id, err := e.store.CreateRound(ctx, gameID, store.ParentSentinel, store.SeedChoice, content, usage, &modelName)
		if err != nil {
			return err
		}
		seedRoundID = id

		branchID, err := e.store.CreateBranch(ctx, gameID, "main", &seedRoundID)
		if err != nil {
			return err
		}
		return e.store.UpdateGameHeadBranch(ctx, gameID, branchID)
	})
	if err != nil {
		return "", err
	}

	if err := e.CheckoutHead(ctx, gameID); err != nil {
		return gameID, err
	}
	return gameID, nil
}

// CheckoutHead implements §4.6.2: an idempotent "publish current tip".
func (e *Engine) CheckoutHead(ctx context.Context, gameID string) error {
	game, err := e.store.GetGameByGameID(ctx, gameID)
	if err != nil {
		return err
	}
	if game.ChannelID != nil {
		e.cache.ClearChannelVotes(ctx, *game.ChannelID)
	}
	if game.HeadBranchID == nil {
		return &engineerr.NotFound{Kind: engineerr.NotFoundBranch, Key: "head"}
	}
	branch, err := e.store.GetBranchByID(ctx, *game.HeadBranchID)
	if err != nil {
		return err
	}
	if branch.TipRoundID == nil {
		return &engineerr.NotFound{Kind: engineerr.NotFoundRound, Key: "tip"}
	}
	round, err := e.store.GetRoundInfo(ctx, *branch.TipRoundID)
	if err != nil {
		return err
	}

	image, err := e.renderer.RenderMarkdown(ctx, round.AssistantResponse, "")
	if err != nil {
		return &engineerr.StorageIO{Op: "render_tip", Err: err}
	}
	if game.ChannelID == nil {
		return &engineerr.Validation{Field: "channel_id", Hint: "game is not attached to a channel"}
	}
	messageID, err := e.gateway.PostImage(ctx, *game.ChannelID, image)
	if err != nil {
		return &engineerr.StorageIO{Op: "post_tip_image", Err: err}
	}

	if err := e.store.UpdateGameMainMessage(ctx, gameID, messageID); err != nil {
		return err
	}
	if err := e.store.UpdateCandidateCustomInputIDs(ctx, gameID, nil); err != nil {
		return err
	}

	for _, emojiID := range ports.MainMessageReactions() {
		if err := e.gateway.AttachReaction(ctx, *game.ChannelID, messageID, emojiID); err != nil {
			e.log.Warn().Err(err).Str("game_id", gameID).Int64("emoji_id", emojiID).Msg("failed to attach reaction")
		}
	}
	return nil
}

// RevertLastRound implements §4.6.4.
func (e *Engine) RevertLastRound(ctx context.Context, gameID string) error {
	game, err := e.store.GetGameByGameID(ctx, gameID)
	if err != nil {
		return err
	}
	if game.HeadBranchID == nil {
		return &engineerr.NotFound{Kind: engineerr.NotFoundBranch, Key: "head"}
	}
	branch, err := e.store.GetBranchByID(ctx, *game.HeadBranchID)
	if err != nil {
		return err
	}
	if branch.TipRoundID == nil {
		return &engineerr.NotFound{Kind: engineerr.NotFoundRound, Key: "tip"}
	}
	tip, err := e.store.GetRoundInfo(ctx, *branch.TipRoundID)
	if err != nil {
		return err
	}
	if tip.ParentID == store.ParentSentinel {
		return &engineerr.Validation{Field: "round_id", Hint: "already at the seed round, nothing to revert"}
	}

	if err := e.store.UpdateBranchTip(ctx, branch.BranchID, tip.ParentID); err != nil {
		return err
	}
	if game.ChannelID != nil {
		e.cache.ClearChannelVotes(ctx, *game.ChannelID)
	}
	return e.CheckoutHead(ctx, gameID)
}

// CreateNewBranch implements §4.6.5. fromRoundID of nil defaults to the
// current HEAD tip.
func (e *Engine) CreateNewBranch(ctx context.Context, gameID, name string, fromRoundID *int64) (string, error) {
	roundID := fromRoundID
	if roundID == nil {
		game, err := e.store.GetGameByGameID(ctx, gameID)
		if err != nil {
			return "", err
		}
		if game.HeadBranchID == nil {
			return "", &engineerr.NotFound{Kind: engineerr.NotFoundBranch, Key: "head"}
		}
		branch, err := e.store.GetBranchByID(ctx, *game.HeadBranchID)
		if err != nil {
			return "", err
		}
		if branch.TipRoundID == nil {
			return "", &engineerr.NotFound{Kind: engineerr.NotFoundRound, Key: "tip"}
		}
		roundID = branch.TipRoundID
	}
	return e.store.CreateBranch(ctx, gameID, name, roundID)
}

// SwitchBranch implements §4.6.6.
func (e *Engine) SwitchBranch(ctx context.Context, gameID, branchName string) error {
	branch, err := e.store.GetBranchByName(ctx, gameID, branchName)
	if err != nil {
		return err
	}
	if err := e.store.UpdateGameHeadBranch(ctx, gameID, branch.BranchID); err != nil {
		return err
	}
	return e.CheckoutHead(ctx, gameID)
}

// ResetCurrentBranch implements §4.6.7.
func (e *Engine) ResetCurrentBranch(ctx context.Context, gameID string, roundID int64) error {
	if _, err := e.store.GetRoundInfo(ctx, roundID); err != nil {
		return err
	}
	game, err := e.store.GetGameByGameID(ctx, gameID)
	if err != nil {
		return err
	}
	if game.HeadBranchID == nil {
		return &engineerr.NotFound{Kind: engineerr.NotFoundBranch, Key: "head"}
	}
	if err := e.store.UpdateBranchTip(ctx, *game.HeadBranchID, roundID); err != nil {
		return err
	}
	return e.CheckoutHead(ctx, gameID)
}

// winnerLetterContent is the literal content recorded as player_choice
// for a letter win (§4.6.3 step 4).
func winnerLetterContent(letter string) string {
	return fmt.Sprintf("选择选项 %s", letter)
}
