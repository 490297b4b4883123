package ports

// Emoji ids are fixed by the chat platform's sticker ids; do not rename
// or renumber these (spec.md §6).
const (
	EmojiOptionA int64 = 127822
	EmojiOptionB int64 = 9973
	EmojiOptionC int64 = 128663
	EmojiOptionD int64 = 128054
	EmojiOptionE int64 = 127859
	EmojiOptionF int64 = 128293
	EmojiOptionG int64 = 128123

	EmojiConfirm int64 = 127881
	EmojiDeny    int64 = 128560
	EmojiRetract int64 = 10060

	EmojiYay    int64 = 127881
	EmojiNay    int64 = 128560
	EmojiCancel int64 = 10060

	EmojiCoffee int64 = 9749
)

// OptionLetters returns the fixed A..G option letters in emoji order.
var OptionLetters = []string{"A", "B", "C", "D", "E", "F", "G"}

// OptionEmoji maps option letter to its fixed emoji id.
var OptionEmoji = map[string]int64{
	"A": EmojiOptionA,
	"B": EmojiOptionB,
	"C": EmojiOptionC,
	"D": EmojiOptionD,
	"E": EmojiOptionE,
	"F": EmojiOptionF,
	"G": EmojiOptionG,
}

// MainMessageReactions is the canonical reaction set checkout_head
// attaches to a freshly published main message: the seven option
// letters plus the three admin controls.
func MainMessageReactions() []int64 {
	return []int64{
		EmojiOptionA, EmojiOptionB, EmojiOptionC, EmojiOptionD,
		EmojiOptionE, EmojiOptionF, EmojiOptionG,
		EmojiConfirm, EmojiDeny, EmojiRetract,
	}
}

// CustomInputReactions is the vote-triplet pre-attached to a player's
// custom-input candidate message.
func CustomInputReactions() []int64 {
	return []int64{EmojiYay, EmojiNay, EmojiCancel}
}
