package cache

import "strconv"

// emojiIDKey/parseEmojiIDKey convert an emoji id to/from the string key
// JSON object maps require (§6's vote_cache votes map is emoji_id -> [user_id...]).
func emojiIDKey(emojiID int64) string {
	return strconv.FormatInt(emojiID, 10)
}

func parseEmojiIDKey(key string) int64 {
	v, _ := strconv.ParseInt(key, 10, 64)
	return v
}
