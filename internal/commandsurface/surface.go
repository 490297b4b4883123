// Package commandsurface implements CommandSurface (§4.8, §6): the
// single `/aigm` command namespace, its permission tiers, and dispatch
// to GameEngine/Store/LLMBroker. Grounded on the teacher's
// pkg/connector/commandregistry registry pattern, adapted from a
// mautrix commands.Event handler to this domain's Invocation.
package commandsurface

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/faithleysath/aigmbot/internal/broker"
	"github.com/faithleysath/aigmbot/internal/cache"
	"github.com/faithleysath/aigmbot/internal/channelconfig"
	"github.com/faithleysath/aigmbot/internal/engine"
	"github.com/faithleysath/aigmbot/internal/engineerr"
	"github.com/faithleysath/aigmbot/internal/llmclient"
	"github.com/faithleysath/aigmbot/internal/ports"
	"github.com/faithleysath/aigmbot/internal/store"
)

// Invocation is one parsed `/aigm` command call.
type Invocation struct {
	Command       string
	Args          []string
	ChannelID     string
	UserID        string
	IsDirect      bool // private-message invocation, e.g. `llm add/remove/test/list`
}

// Surface is CommandSurface.
type Surface struct {
	store      *store.Store
	cache      *cache.Cache
	broker     *broker.Broker
	llm        *llmclient.Client
	engine     *engine.Engine
	gateway    ports.ChatGateway
	renderer   ports.Renderer
	visualizer ports.Visualizer
	webExposer ports.WebExposer
	auth       ports.AuthOracle
	channels   *channelconfig.Store
	registry   *Registry
	log        zerolog.Logger
}

// Deps bundles Surface's collaborators.
type Deps struct {
	Store      *store.Store
	Cache      *cache.Cache
	Broker     *broker.Broker
	LLM        *llmclient.Client
	Engine     *engine.Engine
	Gateway    ports.ChatGateway
	Renderer   ports.Renderer
	Visualizer ports.Visualizer
	WebExposer ports.WebExposer
	Auth       ports.AuthOracle
	Channels   *channelconfig.Store
	Log        zerolog.Logger
}

// New builds a Surface with the full command table registered.
func New(d Deps) *Surface {
	s := &Surface{
		store:      d.Store,
		cache:      d.Cache,
		broker:     d.Broker,
		llm:        d.LLM,
		engine:     d.Engine,
		gateway:    d.Gateway,
		renderer:   d.Renderer,
		visualizer: d.Visualizer,
		webExposer: d.WebExposer,
		auth:       d.Auth,
		channels:   d.Channels,
		registry:   NewRegistry(),
		log:        d.Log.With().Str("component", "command_surface").Logger(),
	}
	registerCommands(s.registry)
	return s
}

// Dispatch resolves inv.Command, enforces its permission tier, and runs
// its handler. Unknown commands produce a Validation error; mutating
// commands that the caller lacks permission for produce a Permission
// error (§4.8 "All mutating commands require one of the above; query
// commands are unrestricted").
func (s *Surface) Dispatch(ctx context.Context, inv Invocation) (string, error) {
	def, ok := s.registry.Get(inv.Command)
	if !ok {
		return "", &engineerr.Validation{Field: "command", Hint: "未知指令: " + inv.Command}
	}
	if def.Mutating && !inv.IsDirect {
		allowed, err := s.isMutationAllowed(ctx, inv.ChannelID, inv.UserID)
		if err != nil {
			return "", err
		}
		if !allowed {
			return "", &engineerr.Permission{Requirement: "root / 群管理员 / 游戏房主"}
		}
	}
	return def.Handler(ctx, s, inv)
}

// DispatchRaw parses a raw `/aigm ...` argument line against this
// Surface's own command table and dispatches it, sparing callers (e.g.
// a chat-platform adapter or this module's demo console) from reaching
// into Surface internals to parse commands correctly.
func (s *Surface) DispatchRaw(ctx context.Context, channelID, userID string, isDirect bool, raw string) (string, error) {
	inv := ParseInvocation(s.registry, channelID, userID, isDirect, raw)
	return s.Dispatch(ctx, inv)
}

// isMutationAllowed computes §4.8's permission tiers, highest wins:
// root (AuthOracle), group admin/owner (ChatGateway role), or host of
// the channel's current game.
func (s *Surface) isMutationAllowed(ctx context.Context, channelID, userID string) (bool, error) {
	isRoot, err := s.auth.HasRole(ctx, userID, "root")
	if err != nil {
		return false, err
	}
	if isRoot {
		return true, nil
	}

	role, err := s.gateway.FetchMemberRole(ctx, channelID, userID)
	if err == nil && (role == ports.RoleAdmin || role == ports.RoleOwner) {
		return true, nil
	}

	game, err := s.store.GetGameByChannelID(ctx, channelID)
	if err != nil {
		var notFound *engineerr.NotFound
		if errors.As(err, &notFound) {
			return false, nil
		}
		return false, err
	}
	return game.HostUserID == userID, nil
}
