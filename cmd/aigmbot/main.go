// Command aigmbot wires Store, VolatileCache, LLMBroker, LLMClient,
// GameEngine, ReactionRouter, and CommandSurface into a runnable
// process, backed by in-memory stand-ins for the chat-platform
// collaborators (ChatGateway, Renderer, Visualizer, WebExposer,
// AuthOracle) that are out of scope for this module. Grounded on the
// teacher's cmd/ai-bridge entrypoint: flag-parsed config path, zerolog
// console writer in dev, graceful signal-driven shutdown.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/faithleysath/aigmbot/internal/broker"
	"github.com/faithleysath/aigmbot/internal/cache"
	"github.com/faithleysath/aigmbot/internal/channelconfig"
	"github.com/faithleysath/aigmbot/internal/clock"
	"github.com/faithleysath/aigmbot/internal/commandsurface"
	"github.com/faithleysath/aigmbot/internal/config"
	"github.com/faithleysath/aigmbot/internal/engine"
	"github.com/faithleysath/aigmbot/internal/llmclient"
	"github.com/faithleysath/aigmbot/internal/ports"
	"github.com/faithleysath/aigmbot/internal/reactionrouter"
	"github.com/faithleysath/aigmbot/internal/store"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	dataDir := flag.String("data-dir", "./data", "directory for persisted state")
	flag.Parse()

	cfg, err := config.Load(*configPath, *dataDir)
	if err != nil {
		panic(err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directory")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	realClock := clock.Real{}

	st, err := store.Open(cfg.DataDir+"/aigmbot.db", log, realClock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	c := cache.New(cfg.Cache.Path, log, realClock)
	if err := c.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load cache")
	}
	defer c.Close(ctx)

	br, err := broker.New(cfg.Broker.PresetsPath, cfg.Broker.CipherKeyPath, log, realClock)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to construct broker")
	}
	if err := br.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load broker presets")
	}

	llm := llmclient.New(log, realClock, llmclient.RetryConfig{
		MaxAttempts: cfg.LLM.MaxAttempts,
		BaseDelay:   cfg.LLM.BaseDelay,
		MaxDelay:    cfg.LLM.MaxDelay,
		CallTimeout: cfg.LLM.CallTimeout,
	})
	defer llm.Close()

	channels := channelconfig.New(cfg.DataDir+"/channel_config.json", log)
	if err := channels.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to load channel config")
	}

	gateway := ports.NewInMemoryGateway()
	renderer := ports.PlainRenderer{}
	visualizer := ports.NullVisualizer{}
	webExposer := ports.LocalWebExposer{BaseURL: cfg.Web.PublicBaseURL}
	auth := ports.NewStaticAuthOracle(cfg.RootUserIDs)

	eng := engine.New(st, c, br, llm, gateway, renderer, log)
	_ = reactionrouter.New(st, c, eng, gateway, auth, log) // wired for use by a real event-driven ChatGateway listener

	surface := commandsurface.New(commandsurface.Deps{
		Store:      st,
		Cache:      c,
		Broker:     br,
		LLM:        llm,
		Engine:     eng,
		Gateway:    gateway,
		Renderer:   renderer,
		Visualizer: visualizer,
		WebExposer: webExposer,
		Auth:       auth,
		Channels:   channels,
		Log:        log,
	})

	sched := cron.New()
	if _, err := sched.AddFunc("@hourly", func() {
		sweepCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		c.SweepExpiredVotes(sweepCtx)
		c.CleanupExpiredPendingGames(sweepCtx, 0)
	}); err != nil {
		log.Fatal().Err(err).Msg("failed to schedule sweep job")
	}
	sched.Start()
	defer sched.Stop()

	log.Info().Msg("aigmbot started; type `/aigm <command...>` on stdin (demo channel/user fixed)")
	go runDemoConsole(ctx, surface, log)

	<-ctx.Done()
	log.Info().Msg("aigmbot shutting down")
}

const (
	demoChannelID = "demo-channel"
	demoUserID    = "demo-user"
)

// runDemoConsole reads `/aigm ...` lines from stdin and dispatches them
// through CommandSurface, so this binary is a runnable demo against the
// in-memory ChatGateway stand-in rather than dead-wired scaffolding.
func runDemoConsole(ctx context.Context, surface *commandsurface.Surface, log zerolog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "/aigm")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		reply, err := surface.DispatchRaw(ctx, demoChannelID, demoUserID, false, line)
		if err != nil {
			fmt.Println("error:", err)
			continue
		}
		if reply != "" {
			fmt.Println(reply)
		}
		log.Debug().Str("input", line).Msg("dispatched demo command")
	}
}
