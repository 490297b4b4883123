package store

// ParentSentinel marks a round with no parent — the root of a game's
// round forest (§3).
const ParentSentinel int64 = -1

// SeedChoice is the literal player_choice recorded for a game's first
// round (§3).
const SeedChoice = "开始"

// HeadReservedName is the reserved branch/tag literal that can never be
// created (§3, §4.8).
const HeadReservedName = "head"

// Game mirrors the Game entity of §3.
type Game struct {
	GameID                  string
	ChannelID               *string
	HostUserID              string
	SystemPrompt            string
	MainMessageID           *string
	CandidateCustomInputIDs []string
	HeadBranchID            *string
	IsFrozen                bool
	CreatedAt               int64
	UpdatedAt               int64
}

// Branch mirrors the Branch entity of §3.
type Branch struct {
	BranchID   string
	GameID     string
	Name       string
	TipRoundID *int64
	UpdatedAt  int64
}

// Round mirrors the Round entity of §3. Immutable once written.
type Round struct {
	RoundID           int64
	GameID            string
	ParentID          int64
	PlayerChoice      string
	AssistantResponse string
	LLMUsage          *LLMUsage
	ModelName         *string
	CreatedAt         int64
}

// LLMUsage is the optional token-accounting payload attached to a round.
type LLMUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Tag mirrors the Tag entity of §3.
type Tag struct {
	TagID   string
	GameID  string
	Name    string
	RoundID int64
}
