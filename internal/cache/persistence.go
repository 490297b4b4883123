package cache

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	json5 "github.com/yosuke-furukawa/json5/encoding/json5"
)

// fileModel is the JSON-friendly shape of cache.json (§6 "Persisted
// state layout"): sets become sorted string lists, timestamps become
// ISO-8601 strings.
type fileModel struct {
	PendingNewGames map[string]pendingFileEntry          `json:"pending_new_games"`
	VoteCache       map[string]map[string]voteFileEntry   `json:"vote_cache"`
}

type pendingFileEntry struct {
	UserID       string `json:"user_id"`
	SystemPrompt string `json:"system_prompt"`
	MessageID    string `json:"message_id"`
	CreateTime   string `json:"create_time"`
}

type voteFileEntry struct {
	Content   *string           `json:"content,omitempty"`
	Votes     map[string][]string `json:"votes"`
	Timestamp string            `json:"timestamp,omitempty"`
}

// snapshotLocked requires mu held; builds the serializable form of the
// current in-memory state.
func (c *Cache) snapshotLocked() fileModel {
	model := fileModel{
		PendingNewGames: make(map[string]pendingFileEntry, len(c.pending)),
		VoteCache:       make(map[string]map[string]voteFileEntry, len(c.votes)),
	}
	for msgID, p := range c.pending {
		model.PendingNewGames[msgID] = pendingFileEntry{
			UserID:       p.UserID,
			SystemPrompt: p.SystemPrompt,
			MessageID:    p.MessageID,
			CreateTime:   p.CreateTime.Format(time.RFC3339),
		}
	}
	for groupID, byMsg := range c.votes {
		out := make(map[string]voteFileEntry, len(byMsg))
		for msgID, entry := range byMsg {
			votes := make(map[string][]string, len(entry.Votes))
			for emojiID, voters := range entry.Votes {
				var list []string
				for v := range voters {
					list = append(list, v)
				}
				sort.Strings(list)
				votes[emojiIDKey(emojiID)] = list
			}
			out[msgID] = voteFileEntry{
				Content:   entry.Content,
				Votes:     votes,
				Timestamp: entry.Timestamp.Format(time.RFC3339),
			}
		}
		model.VoteCache[groupID] = out
	}
	return model
}

// Load reads cache.json into memory. Load is one-shot and idempotent:
// a second call logs and returns without touching state (§4.2).
func (c *Cache) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		c.log.Info().Msg("volatile cache already loaded; ignoring repeat load")
		return nil
	}
	c.loaded = true

	c.ioMu.Lock()
	data, found, err := readFile(c.path)
	c.ioMu.Unlock()
	if err != nil {
		return err
	}
	if !found {
		return nil
	}

	var model fileModel
	if err := json5.Unmarshal(data, &model); err != nil {
		c.log.Warn().Err(err).Msg("volatile cache file unreadable; starting empty")
		return nil
	}

	for msgID, entry := range model.PendingNewGames {
		createTime, _ := time.Parse(time.RFC3339, entry.CreateTime)
		c.pending[msgID] = &PendingProposal{
			UserID:       entry.UserID,
			SystemPrompt: entry.SystemPrompt,
			MessageID:    entry.MessageID,
			CreateTime:   createTime,
		}
	}
	for groupID, byMsg := range model.VoteCache {
		out := make(map[string]*VoteEntry, len(byMsg))
		for msgID, entry := range byMsg {
			votes := make(map[int64]map[string]struct{}, len(entry.Votes))
			for emojiKey, voters := range entry.Votes {
				emojiID := parseEmojiIDKey(emojiKey)
				voterSet := make(map[string]struct{}, len(voters))
				for _, v := range voters {
					voterSet[v] = struct{}{}
				}
				votes[emojiID] = voterSet
			}
			ts, _ := time.Parse(time.RFC3339, entry.Timestamp)
			out[msgID] = &VoteEntry{Content: entry.Content, Votes: votes, Timestamp: ts}
		}
		c.votes[groupID] = out
	}
	return nil
}

func writeFile(path string, model fileModel) error {
	payload, err := json5.MarshalIndent(model, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readFile(path string) ([]byte, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}
