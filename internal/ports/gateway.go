// Package ports declares the external collaborators the narrative
// engine consumes but does not implement: the chat-platform adapter,
// the RBAC oracle, the Markdown/graph renderers, and the web exposer.
// Per spec.md §1 these are out of scope; only their contracts live here.
package ports

import "context"

// MemberRole is the in-group role ChatGateway reports for a user.
type MemberRole string

const (
	RoleMember MemberRole = "member"
	RoleAdmin  MemberRole = "admin"
	RoleOwner  MemberRole = "owner"
)

// ReplyRef points a structured message at the message it replies to.
type ReplyRef struct {
	MessageID string
	UserID    string
}

// ChatGateway is the opaque chat-platform adapter (§6).
type ChatGateway interface {
	PostText(ctx context.Context, channelID, text string) (messageID string, err error)
	PostImage(ctx context.Context, channelID string, image []byte) (messageID string, err error)
	PostStructured(ctx context.Context, channelID string, mentions []string, text string, reply *ReplyRef) (messageID string, err error)
	PostForwardedBundle(ctx context.Context, channelID string, entries []ForwardEntry) (messageID string, err error)

	AttachReaction(ctx context.Context, channelID, messageID string, emojiID int64) error
	DetachReaction(ctx context.Context, channelID, messageID string, emojiID int64) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error

	FetchMessageText(ctx context.Context, channelID, messageID string) (string, error)
	FetchMemberRole(ctx context.Context, channelID, userID string) (MemberRole, error)
	FetchReactions(ctx context.Context, channelID, messageID string) (map[int64][]string, error)
}

// ForwardEntry is one image-rendered item in a forwarded bundle, with a
// synthetic author display name per spec.md §9 ("#<round_id>").
type ForwardEntry struct {
	AuthorDisplayName string
	Image             []byte
}

// AuthOracle resolves the "root" meta-role; only has_role("root") is
// consulted by the core (§6).
type AuthOracle interface {
	HasRole(ctx context.Context, userID, roleName string) (bool, error)
}

// Renderer turns Markdown into an image (§6).
type Renderer interface {
	RenderMarkdown(ctx context.Context, markdown string, extraHeader string) ([]byte, error)
	RenderHelpPage(ctx context.Context) ([]byte, error)
}

// Visualizer builds branch-graph images from Store state (§6).
type Visualizer interface {
	CreateBranchGraph(ctx context.Context, gameID string) ([]byte, error)
	CreateFullBranchGraph(ctx context.Context, gameID string) ([]byte, error)
}

// WebExposer publishes a public URL routed to a Store-backed handler
// and consumes VolatileCache web-start tokens (§6); out of scope here.
type WebExposer interface {
	PublicURL(ctx context.Context) (string, error)
	MintWebStartURL(ctx context.Context, token string) (string, error)
}
