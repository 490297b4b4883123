// Package reactionrouter implements ReactionRouter (§4.7): classifying
// and dispatching chat-platform reaction and message-recall events
// against pending proposals, a game's main message, and custom-input
// candidates.
package reactionrouter

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/faithleysath/aigmbot/internal/cache"
	"github.com/faithleysath/aigmbot/internal/engine"
	"github.com/faithleysath/aigmbot/internal/engineerr"
	"github.com/faithleysath/aigmbot/internal/ports"
	"github.com/faithleysath/aigmbot/internal/store"
	"github.com/faithleysath/aigmbot/internal/votetally"
)

// Router is ReactionRouter.
type Router struct {
	store   *store.Store
	cache   *cache.Cache
	engine  *engine.Engine
	gateway ports.ChatGateway
	auth    ports.AuthOracle
	log     zerolog.Logger
}

// New wires a Router from its collaborators.
func New(st *store.Store, c *cache.Cache, eng *engine.Engine, gw ports.ChatGateway, auth ports.AuthOracle, log zerolog.Logger) *Router {
	return &Router{
		store:   st,
		cache:   c,
		engine:  eng,
		gateway: gw,
		auth:    auth,
		log:     log.With().Str("component", "reaction_router").Logger(),
	}
}

// HandleReaction implements the §4.7 algorithm steps 1-8 for a single
// reaction-add/remove event.
func (r *Router) HandleReaction(ctx context.Context, groupID, messageID, userID string, emojiID int64, isAdd bool) error {
	if proposal, ok := r.cache.GetPendingProposal(ctx, messageID); ok {
		return r.handlePendingProposal(ctx, groupID, messageID, userID, emojiID, isAdd, proposal)
	}

	game, err := r.store.GetGameByChannelID(ctx, groupID)
	if err != nil {
		var notFound *engineerr.NotFound
		if errors.As(err, &notFound) {
			return nil // no known game for this channel; nothing to do
		}
		return err
	}

	isMain := game.MainMessageID != nil && *game.MainMessageID == messageID
	isCustomInput := false
	for _, id := range game.CandidateCustomInputIDs {
		if id == messageID {
			isCustomInput = true
			break
		}
	}
	if !isMain && !isCustomInput {
		return nil
	}

	r.cache.RecordVote(ctx, groupID, messageID, emojiID, userID, isAdd)
	if game.IsFrozen {
		return nil
	}
	if !isAdd {
		return nil
	}

	privileged, err := r.isPrivileged(ctx, groupID, userID, game.HostUserID)
	if err != nil {
		return err
	}
	if !privileged {
		return nil
	}

	if isMain {
		return r.handleMainMessageReaction(ctx, groupID, game, emojiID)
	}
	return r.handleCustomInputReaction(ctx, groupID, game, messageID, emojiID)
}

func (r *Router) handlePendingProposal(ctx context.Context, groupID, messageID, userID string, emojiID int64, isAdd bool, proposal cache.PendingProposal) error {
	if !isAdd {
		return nil
	}
	removed := r.cache.CleanupExpiredPendingGames(ctx, 0)
	if _, expired := removed[messageID]; expired {
		return nil
	}
	if userID != proposal.UserID {
		return nil
	}

	switch emojiID {
	case ports.EmojiConfirm:
		_, err := r.store.GetGameByChannelID(ctx, groupID)
		var notFound *engineerr.NotFound
		channelBusy := err == nil || !errors.As(err, &notFound)
		if channelBusy {
			if err := r.gateway.AttachReaction(ctx, groupID, messageID, ports.EmojiCoffee); err != nil {
				r.log.Warn().Err(err).Msg("failed to attach busy indicator")
			}
			return nil
		}
		r.cache.RemovePendingProposal(ctx, messageID)
		if err := r.gateway.DetachReaction(ctx, groupID, messageID, ports.EmojiCoffee); err != nil {
			r.log.Warn().Err(err).Msg("failed to clear busy indicator")
		}
		_, err := r.engine.StartNewGame(ctx, groupID, proposal.UserID, proposal.SystemPrompt)
		return err
	case ports.EmojiCoffee:
		if err := r.gateway.DeleteMessage(ctx, groupID, proposal.MessageID); err != nil {
			r.log.Warn().Err(err).Msg("failed to delete cancelled proposal upload")
		}
		r.cache.RemovePendingProposal(ctx, messageID)
		if _, err := r.gateway.PostText(ctx, groupID, "已取消"); err != nil {
			r.log.Warn().Err(err).Msg("failed to post cancellation confirmation")
		}
		return nil
	}
	return nil
}

func (r *Router) isPrivileged(ctx context.Context, groupID, userID, hostUserID string) (bool, error) {
	if userID == hostUserID {
		return true, nil
	}
	isRoot, err := r.auth.HasRole(ctx, userID, "root")
	if err != nil {
		return false, err
	}
	if isRoot {
		return true, nil
	}
	role, err := r.gateway.FetchMemberRole(ctx, groupID, userID)
	if err != nil {
		return false, err
	}
	return role == ports.RoleAdmin || role == ports.RoleOwner, nil
}

func (r *Router) handleMainMessageReaction(ctx context.Context, groupID string, game *store.Game, emojiID int64) error {
	switch emojiID {
	case ports.EmojiConfirm:
		tally := votetally.Tally(ctx, r.cache, groupID, *game.MainMessageID, game.CandidateCustomInputIDs)
		outcome, err := r.engine.TallyAndAdvance(ctx, game.GameID, tally)
		if err != nil {
			return err
		}
		switch {
		case outcome.NoVotes:
			if _, err := r.gateway.PostText(ctx, groupID, "暂无有效投票, 继续计票"); err != nil {
				r.log.Warn().Err(err).Msg("failed to post no-votes notice")
			}
		case outcome.TipChanged:
			if _, err := r.gateway.PostText(ctx, groupID, (&engineerr.TipChanged{}).UserMessage()); err != nil {
				r.log.Warn().Err(err).Msg("failed to post tip-changed notice")
			}
		default:
			if _, err := r.gateway.PostText(ctx, groupID, outcome.ResultText); err != nil {
				r.log.Warn().Err(err).Msg("failed to post advance result")
			}
		}
		return nil
	case ports.EmojiDeny:
		tally := votetally.Tally(ctx, r.cache, groupID, *game.MainMessageID, game.CandidateCustomInputIDs)
		if _, err := r.gateway.PostText(ctx, groupID, fmt.Sprintf("已否决\n%s", joinLines(tally.Lines))); err != nil {
			r.log.Warn().Err(err).Msg("failed to post denial line")
		}
		r.cache.ClearChannelVotes(ctx, groupID)
		return r.engine.CheckoutHead(ctx, game.GameID)
	case ports.EmojiRetract:
		return r.engine.RevertLastRound(ctx, game.GameID)
	}
	return nil
}

func (r *Router) handleCustomInputReaction(ctx context.Context, groupID string, game *store.Game, messageID string, emojiID int64) error {
	if emojiID != ports.EmojiCancel {
		return nil
	}
	return r.removeCustomInput(ctx, groupID, game, messageID, "已取消该自定义输入")
}

// removeCustomInput drops messageID from the game's candidate list and
// its vote cache entry, posting statusText.
func (r *Router) removeCustomInput(ctx context.Context, groupID string, game *store.Game, messageID, statusText string) error {
	remaining := make([]string, 0, len(game.CandidateCustomInputIDs))
	for _, id := range game.CandidateCustomInputIDs {
		if id != messageID {
			remaining = append(remaining, id)
		}
	}
	if err := r.store.UpdateCandidateCustomInputIDs(ctx, game.GameID, remaining); err != nil {
		return err
	}
	r.cache.DropVoteEntry(ctx, groupID, messageID)
	if statusText != "" {
		if _, err := r.gateway.PostText(ctx, groupID, statusText); err != nil {
			r.log.Warn().Err(err).Msg("failed to post custom-input removal notice")
		}
	}
	return nil
}

// HandleMessageRecall implements §4.7 step 9: auto-removing a recalled
// message if it is a current custom-input candidate.
func (r *Router) HandleMessageRecall(ctx context.Context, groupID, messageID string) error {
	game, err := r.store.GetGameByChannelID(ctx, groupID)
	if err != nil {
		return nil
	}
	for _, id := range game.CandidateCustomInputIDs {
		if id == messageID {
			return r.removeCustomInput(ctx, groupID, game, messageID, "该自定义输入已被撤回")
		}
	}
	return nil
}

// HandleCustomInputSubmission implements §4.7's group-message handler
// path: a reply-with-mention to the current main message adds
// messageID to the ballot, caches its text, and pre-attaches the vote
// triplet.
func (r *Router) HandleCustomInputSubmission(ctx context.Context, groupID, messageID, content string) error {
	game, err := r.store.GetGameByChannelID(ctx, groupID)
	if err != nil {
		return err
	}
	if game.MainMessageID == nil {
		return &engineerr.NotFound{Kind: engineerr.NotFoundGame, Key: "main_message"}
	}

	candidates := append(append([]string{}, game.CandidateCustomInputIDs...), messageID)
	if err := r.store.UpdateCandidateCustomInputIDs(ctx, game.GameID, candidates); err != nil {
		return err
	}
	r.cache.SetVoteContent(ctx, groupID, messageID, content)

	for _, emojiID := range ports.CustomInputReactions() {
		if err := r.gateway.AttachReaction(ctx, groupID, messageID, emojiID); err != nil {
			r.log.Warn().Err(err).Int64("emoji_id", emojiID).Msg("failed to pre-attach custom-input reaction")
		}
	}
	return nil
}

func joinLines(lines []string) string {
	out := ""
	for i, l := range lines {
		if i > 0 {
			out += "\n"
		}
		out += l
	}
	return out
}
