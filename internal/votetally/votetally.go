// Package votetally computes VoteTally (§4.5): a deterministic score
// aggregation over a VolatileCache vote snapshot, for one main message's
// option-letter reactions and a game's current custom-input candidates.
package votetally

import (
	"context"
	"fmt"
	"sort"

	"github.com/faithleysath/aigmbot/internal/cache"
	"github.com/faithleysath/aigmbot/internal/ports"
)

// Result is the (scores, result lines) pair VoteTally returns. Scores
// only holds entries that received at least one vote (§4.5 "whether any
// vote at all was cast"); an empty Scores means the whole ballot was
// empty.
type Result struct {
	Scores        map[string]int
	Lines         []string
	CustomContent map[string]string
}

// optionLetterSet lets Winners/callers tell an option-letter key apart
// from a custom-input message id key without relying on emoji id alone
// (§9 "must never rely on emoji id alone to classify the action").
var optionLetterSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(ports.OptionLetters))
	for _, l := range ports.OptionLetters {
		set[l] = struct{}{}
	}
	return set
}()

// IsOptionLetter reports whether key names one of the fixed A..G option
// letters rather than a custom-input message id.
func IsOptionLetter(key string) bool {
	_, ok := optionLetterSet[key]
	return ok
}

// Tally reads groupID's cached votes for the main message and for every
// id in candidateIDs, and computes scores per §4.5.
func Tally(ctx context.Context, c *cache.Cache, groupID, mainMessageID string, candidateIDs []string) Result {
	res := Result{
		Scores:        make(map[string]int),
		CustomContent: make(map[string]string),
	}

	if mainEntry := c.GetVoteEntry(ctx, groupID, mainMessageID); mainEntry != nil {
		for _, letter := range ports.OptionLetters {
			voters := mainEntry.Votes[ports.OptionEmoji[letter]]
			if len(voters) == 0 {
				continue
			}
			res.Scores[letter] = len(voters)
			res.Lines = append(res.Lines, fmt.Sprintf("选项 %s: %d 票", letter, len(voters)))
		}
	}

	for _, msgID := range candidateIDs {
		entry := c.GetVoteEntry(ctx, groupID, msgID)
		if entry == nil {
			continue
		}
		if entry.Content != nil {
			res.CustomContent[msgID] = *entry.Content
		}
		yay := len(entry.Votes[ports.EmojiYay])
		nay := len(entry.Votes[ports.EmojiNay])
		if yay == 0 && nay == 0 {
			continue
		}
		net := yay - nay
		res.Scores[msgID] = net
		label := res.CustomContent[msgID]
		if label == "" {
			label = msgID
		}
		res.Lines = append(res.Lines, fmt.Sprintf("自定义输入 %q: 赞成 %d 反对 %d (净值 %d)", label, yay, nay, net))
	}

	return res
}

// NoVotesCast reports whether the entire ballot received zero
// engagement (§4.5 "no one voted" message).
func (r Result) NoVotesCast() bool {
	return len(r.Scores) == 0
}

// Winners returns the keys tied for the maximum score, sorted for
// deterministic tie-concatenation order. GameEngine turns each winning
// key into display text: the literal "选择选项 X" for an option letter,
// or the (possibly lazily fetched) candidate text otherwise.
func (r Result) Winners() []string {
	if len(r.Scores) == 0 {
		return nil
	}
	best := 0
	first := true
	for _, v := range r.Scores {
		if first || v > best {
			best = v
			first = false
		}
	}
	var winners []string
	for k, v := range r.Scores {
		if v == best {
			winners = append(winners, k)
		}
	}
	sort.Strings(winners)
	return winners
}
