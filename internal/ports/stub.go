package ports

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/xid"
)

// InMemoryGateway is a minimal, non-networked ChatGateway used to wire
// and exercise the engine end-to-end (e.g. in cmd/aigmbot's demo mode
// and in tests) without any real chat platform. Per §1/§6 the real
// adapter is out of scope for this module.
type InMemoryGateway struct {
	mu        sync.Mutex
	messages  map[string]string            // messageID -> text (images stored as a placeholder string)
	reactions map[string]map[int64]map[string]struct{}
	roles     map[string]map[string]MemberRole // channelID -> userID -> role
}

// NewInMemoryGateway constructs an empty InMemoryGateway.
func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{
		messages:  make(map[string]string),
		reactions: make(map[string]map[int64]map[string]struct{}),
		roles:     make(map[string]map[string]MemberRole),
	}
}

// MessageCount reports how many messages (text, image, or bundle) are
// currently held across all channels (deleted messages are not
// counted), for test assertions that only need to confirm something was
// posted.
func (g *InMemoryGateway) MessageCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.messages)
}

// SetMemberRole lets a demo/test harness seed a user's in-group role.
func (g *InMemoryGateway) SetMemberRole(channelID, userID string, role MemberRole) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.roles[channelID] == nil {
		g.roles[channelID] = make(map[string]MemberRole)
	}
	g.roles[channelID][userID] = role
}

func (g *InMemoryGateway) PostText(ctx context.Context, channelID, text string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := xid.New().String()
	g.messages[id] = text
	return id, nil
}

func (g *InMemoryGateway) PostImage(ctx context.Context, channelID string, image []byte) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := xid.New().String()
	g.messages[id] = fmt.Sprintf("<image:%d bytes>", len(image))
	return id, nil
}

func (g *InMemoryGateway) PostStructured(ctx context.Context, channelID string, mentions []string, text string, reply *ReplyRef) (string, error) {
	return g.PostText(ctx, channelID, text)
}

func (g *InMemoryGateway) PostForwardedBundle(ctx context.Context, channelID string, entries []ForwardEntry) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id := xid.New().String()
	g.messages[id] = fmt.Sprintf("<bundle:%d entries>", len(entries))
	return id, nil
}

func (g *InMemoryGateway) AttachReaction(ctx context.Context, channelID, messageID string, emojiID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reactions[messageID] == nil {
		g.reactions[messageID] = make(map[int64]map[string]struct{})
	}
	if g.reactions[messageID][emojiID] == nil {
		g.reactions[messageID][emojiID] = make(map[string]struct{})
	}
	return nil
}

func (g *InMemoryGateway) DetachReaction(ctx context.Context, channelID, messageID string, emojiID int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.reactions[messageID], emojiID)
	return nil
}

func (g *InMemoryGateway) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.messages, messageID)
	return nil
}

func (g *InMemoryGateway) FetchMessageText(ctx context.Context, channelID, messageID string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	text, ok := g.messages[messageID]
	if !ok {
		return "", fmt.Errorf("message not found: %s", messageID)
	}
	return text, nil
}

func (g *InMemoryGateway) FetchMemberRole(ctx context.Context, channelID, userID string) (MemberRole, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if role, ok := g.roles[channelID][userID]; ok {
		return role, nil
	}
	return RoleMember, nil
}

func (g *InMemoryGateway) FetchReactions(ctx context.Context, channelID, messageID string) (map[int64][]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make(map[int64][]string)
	for emoji, voters := range g.reactions[messageID] {
		for v := range voters {
			out[emoji] = append(out[emoji], v)
		}
	}
	return out, nil
}

// PlainRenderer turns Markdown into a trivial UTF-8 "image" payload
// (the raw bytes), standing in for a real rasterizer.
type PlainRenderer struct{}

func (PlainRenderer) RenderMarkdown(ctx context.Context, markdown string, extraHeader string) ([]byte, error) {
	return []byte(extraHeader + markdown), nil
}

func (PlainRenderer) RenderHelpPage(ctx context.Context) ([]byte, error) {
	return []byte("aigmbot command help"), nil
}

// NullVisualizer produces a placeholder branch-graph payload.
type NullVisualizer struct{}

func (NullVisualizer) CreateBranchGraph(ctx context.Context, gameID string) ([]byte, error) {
	return []byte("branch graph: " + gameID), nil
}

func (NullVisualizer) CreateFullBranchGraph(ctx context.Context, gameID string) ([]byte, error) {
	return []byte("full branch graph: " + gameID), nil
}

// LocalWebExposer returns URLs under its configured BaseURL rather than
// opening a real tunnel.
type LocalWebExposer struct {
	BaseURL string
}

func (e LocalWebExposer) PublicURL(ctx context.Context) (string, error) {
	return e.BaseURL, nil
}

func (e LocalWebExposer) MintWebStartURL(ctx context.Context, token string) (string, error) {
	return fmt.Sprintf("%s/start?token=%s", e.BaseURL, token), nil
}

// StaticAuthOracle grants "root" to a fixed allow-list of user ids,
// standing in for a real RBAC system.
type StaticAuthOracle struct {
	rootUserIDs map[string]struct{}
}

// NewStaticAuthOracle builds a StaticAuthOracle from a root-user id list.
func NewStaticAuthOracle(rootUserIDs []string) *StaticAuthOracle {
	set := make(map[string]struct{}, len(rootUserIDs))
	for _, id := range rootUserIDs {
		set[id] = struct{}{}
	}
	return &StaticAuthOracle{rootUserIDs: set}
}

func (o *StaticAuthOracle) HasRole(ctx context.Context, userID, roleName string) (bool, error) {
	if roleName != "root" {
		return false, nil
	}
	_, ok := o.rootUserIDs[userID]
	return ok, nil
}
