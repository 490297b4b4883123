package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/faithleysath/aigmbot/internal/engineerr"
	"github.com/faithleysath/aigmbot/internal/llmclient"
	"github.com/faithleysath/aigmbot/internal/store"
	"github.com/faithleysath/aigmbot/internal/votetally"
)

// AdvanceOutcome narrates what TallyAndAdvance actually did, for the
// caller to report to the channel (§4.6.3).
type AdvanceOutcome struct {
	NoVotes    bool
	TipChanged bool
	ResultText string
}

// TallyAndAdvance implements §4.6.3's optimistic-locking advancement.
// tally is the VoteTally result the caller (ReactionRouter) already
// computed for the game's current main message and candidates.
func (e *Engine) TallyAndAdvance(ctx context.Context, gameID string, tally votetally.Result) (AdvanceOutcome, error) {
	if err := e.store.SetGameFrozenStatus(ctx, gameID, true); err != nil {
		return AdvanceOutcome{}, err
	}
	unfreeze := func() {
		if err := e.store.SetGameFrozenStatus(ctx, gameID, false); err != nil {
			e.log.Error().Err(err).Str("game_id", gameID).Msg("failed to unfreeze game")
		}
	}

	game, err := e.store.GetGameByGameID(ctx, gameID)
	if err != nil {
		unfreeze()
		return AdvanceOutcome{}, err
	}
	if game.ChannelID == nil {
		unfreeze()
		return AdvanceOutcome{}, &engineerr.Validation{Field: "channel_id", Hint: "game is not attached to a channel"}
	}
	if game.HeadBranchID == nil {
		unfreeze()
		return AdvanceOutcome{}, &engineerr.NotFound{Kind: engineerr.NotFoundBranch, Key: "head"}
	}
	branch, err := e.store.GetBranchByID(ctx, *game.HeadBranchID)
	if err != nil {
		unfreeze()
		return AdvanceOutcome{}, err
	}
	if branch.TipRoundID == nil {
		unfreeze()
		return AdvanceOutcome{}, &engineerr.NotFound{Kind: engineerr.NotFoundRound, Key: "tip"}
	}
	initialTip := *branch.TipRoundID

	if tally.NoVotesCast() {
		unfreeze()
		return AdvanceOutcome{NoVotes: true}, nil
	}

	winnerContent, resultText, err := e.resolveWinner(ctx, *game.ChannelID, tally)
	if err != nil {
		unfreeze()
		return AdvanceOutcome{}, err
	}

	ancestors, err := e.store.GetRoundAncestors(ctx, initialTip, maxAncestorWindow)
	if err != nil {
		unfreeze()
		return AdvanceOutcome{}, err
	}
	messages := buildLLMMessages(game.SystemPrompt, ancestors, winnerContent)

	content, usage, modelName, err := e.completePreset(ctx, *game.ChannelID, messages)
	if err != nil {
		unfreeze()
		return AdvanceOutcome{}, err
	}

	var outcome AdvanceOutcome
	txnErr := e.store.Transaction(ctx, func(ctx context.Context) error {
		fresh, err := e.store.GetBranchByID(ctx, branch.BranchID)
		if err != nil {
			return err
		}
		if fresh.TipRoundID == nil || *fresh.TipRoundID != initialTip {
			newTip := int64(-1)
			if fresh.TipRoundID != nil {
				newTip = *fresh.TipRoundID
			}
			outcome.TipChanged = true
			return &engineerr.TipChanged{GameID: gameID, OldTip: initialTip, NewTip: newTip}
		}

		newRoundID, err := e.store.CreateRound(ctx, gameID, initialTip, winnerContent, content, usage, &modelName)
		if err != nil {
			return err
		}
		return e.store.UpdateBranchTip(ctx, branch.BranchID, newRoundID)
	})
	if txnErr != nil {
		var tipChanged *engineerr.TipChanged
		if errors.As(txnErr, &tipChanged) {
			unfreeze()
			return outcome, nil
		}
		unfreeze()
		return AdvanceOutcome{}, txnErr
	}

	e.cache.ClearChannelVotes(ctx, *game.ChannelID)
	checkoutErr := e.CheckoutHead(ctx, gameID)
	unfreeze()
	if checkoutErr != nil {
		return outcome, checkoutErr
	}
	outcome.ResultText = resultText
	return outcome, nil
}

// resolveWinner turns a tally result into the literal winner_content
// and the human-readable banner text (§4.6.3 step 4-5). Custom-input
// text not yet cached is lazily fetched through ChatGateway and written
// back to VolatileCache.
func (e *Engine) resolveWinner(ctx context.Context, channelID string, tally votetally.Result) (string, string, error) {
	winners := tally.Winners()
	parts := make([]string, 0, len(winners))
	for _, w := range winners {
		if votetally.IsOptionLetter(w) {
			parts = append(parts, winnerLetterContent(w))
			continue
		}
		text := tally.CustomContent[w]
		if text == "" {
			fetched, err := e.gateway.FetchMessageText(ctx, channelID, w)
			if err != nil {
				return "", "", &engineerr.StorageIO{Op: "fetch_custom_input_text", Err: err}
			}
			text = fetched
			e.cache.SetVoteContent(ctx, channelID, w, text)
		}
		parts = append(parts, text)
	}
	winnerContent := strings.Join(parts, "\n")
	resultText := strings.Join(append(append([]string{}, tally.Lines...), fmt.Sprintf("胜出: %s", winnerContent)), "\n")
	return winnerContent, resultText, nil
}

// buildLLMMessages rebuilds the full conversation from a tip's ancestor
// chain plus the winning choice (§4.6.3 step 6): system prompt, then
// each ancestor round as a (user, assistant) pair in chronological
// order including the seed, then the new user turn. ancestors is
// ordered oldest-first, ending at the tip itself.
func buildLLMMessages(systemPrompt string, ancestors []*store.Round, winnerContent string) []llmclient.Message {
	messages := make([]llmclient.Message, 0, 2*len(ancestors)+2)
	messages = append(messages, llmclient.Message{Role: "system", Content: systemPrompt})
	for _, r := range ancestors {
		messages = append(messages,
			llmclient.Message{Role: "user", Content: r.PlayerChoice},
			llmclient.Message{Role: "assistant", Content: r.AssistantResponse},
		)
	}
	messages = append(messages, llmclient.Message{Role: "user", Content: winnerContent})
	return messages
}
