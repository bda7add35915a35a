package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/r3labs/sse/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/vtuber/controlplane/internal/adapter"
	"github.com/vtuber/controlplane/internal/agent"
	"github.com/vtuber/controlplane/internal/asr"
	"github.com/vtuber/controlplane/internal/audit"
	"github.com/vtuber/controlplane/internal/broadcast"
	"github.com/vtuber/controlplane/internal/chatmsg"
	"github.com/vtuber/controlplane/internal/config"
	"github.com/vtuber/controlplane/internal/control"
	"github.com/vtuber/controlplane/internal/ingest"
	"github.com/vtuber/controlplane/internal/model"
	"github.com/vtuber/controlplane/internal/scheduler"
	"github.com/vtuber/controlplane/internal/session"
	"github.com/vtuber/controlplane/internal/tts"
	"github.com/vtuber/controlplane/pkg/response"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control plane's REST and websocket server",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}

	descriptor, err := model.Descriptor(cfg.CharacterName, cfg.EmotionMap, cfg.MotionGroups, cfg.AvatarReference, nil)
	if err != nil {
		logrus.WithError(err).Fatal("failed to build live model descriptor")
	}

	characterAgent, err := buildAgent(cfg)
	if err != nil {
		logrus.WithError(err).Warn("no agent configured, autonomous speech and chat ingest will stay idle")
	}

	defaultCtx := func() *adapter.Context {
		return &adapter.Context{
			Agent:   characterAgent,
			Model:   descriptor,
			TTS:     tts.NoOp{},
			ASR:     asr.NoOp{},
			Speaker: cfg.CharacterName,
		}
	}

	sseServer := sse.New()
	sseServer.AutoReplay = false

	bus, err := broadcast.New(cfg.ValkeyAddr, cfg.ValkeyChannel)
	if err != nil {
		logrus.WithError(err).Warn("distributed broadcast disabled: failed to connect")
	}

	registryOpts := []session.Option{session.WithDispatch(control.Dispatch)}
	if bus != nil {
		registryOpts = append(registryOpts, session.WithBus(bus))
	}
	registry := session.NewRegistry(cfg.OutboundCapacity, defaultCtx, registryOpts...)

	sched := scheduler.New(registry, "default", cfg.AutonomousMinInterval, cfg.AutonomousMaxInterval, cfg.AutonomousPromptPool)
	sched.SetEnabled(cfg.AutonomousEnabled)

	auditStore, err := audit.Open(cfg.AuditDriver, cfg.AuditDSN)
	if err != nil {
		logrus.WithError(err).Warn("audit store disabled: failed to open")
	}

	rootCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sched.Run(rootCtx)
	go func() {
		if err := registry.RunRelay(rootCtx); err != nil && rootCtx.Err() == nil {
			logrus.WithError(err).Warn("distributed broadcast relay exited")
		}
	}()

	retentionJob := audit.NewRetentionJob(auditStore, cfg.AuditRetention)
	if err := retentionJob.Start(rootCtx); err != nil {
		logrus.WithError(err).Warn("failed to start audit retention job")
	}

	var discordSource *ingest.DiscordSource
	if cfg.DiscordBotToken != "" {
		pipeline := ingest.New(registry, "default", cfg.CharacterName)
		src, err := ingest.NewDiscordSource(cfg.DiscordBotToken, cfg.DiscordGuildIDs)
		if err != nil {
			logrus.WithError(err).Warn("failed to start discord source")
		} else {
			discordSource = src
			go func() {
				handle := func(m chatmsg.ChatMessage) { pipeline.Handle(rootCtx, m) }
				if err := src.Listen(rootCtx, handle); err != nil && rootCtx.Err() == nil {
					logrus.WithError(err).Warn("discord source listener exited")
				}
			}()
		}
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(response.Recovery())
	app.Use(cors.New())

	control.SetAuditStore(auditStore)
	router := control.New(registry, sched, sseServer)
	router.Register(app)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		logrus.Info("shutting down")

		cancel()
		sched.Stop()
		retentionJob.Stop()
		bus.Close()
		if discordSource != nil {
			_ = discordSource.Close()
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = app.ShutdownWithContext(shutdownCtx)
	}()

	logrus.WithField("addr", cfg.ListenAddr).Info("control plane listening")
	if err := app.Listen(cfg.ListenAddr); err != nil {
		logrus.WithError(err).Fatal("server stopped")
	}
}

func buildAgent(cfg *config.Config) (agent.Agent, error) {
	var apiKey string
	switch cfg.AgentProvider {
	case "gemini":
		apiKey = cfg.GeminiAPIKey
	case "anthropic":
		apiKey = cfg.AnthropicAPIKey
	default:
		apiKey = cfg.OpenAIAPIKey
	}
	if apiKey == "" {
		return nil, nil
	}
	return agent.New(cfg.AgentProvider, apiKey, "")
}
