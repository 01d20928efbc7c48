package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/vimalinx/vimagram/internal/bus"
	"github.com/vimalinx/vimagram/internal/channels"
	"github.com/vimalinx/vimagram/internal/channels/vimagram"
	"github.com/vimalinx/vimagram/internal/config"
	"github.com/vimalinx/vimagram/internal/sessions"
	"github.com/vimalinx/vimagram/internal/store/sqlite"
)

func runGateway() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Mutable gateway state: pairing requests and store-backed allowlists.
	dataDir := config.ExpandHome(cfg.Data.Dir)
	if dataDir == "" {
		dataDir = config.ExpandHome("~/.vimagram/data")
	}
	os.MkdirAll(dataDir, 0755)

	db, err := sqlite.Open(filepath.Join(dataDir, "vimagram.db"))
	if err != nil {
		slog.Error("failed to open data store", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	sessStore, err := sessions.NewStore(config.ExpandHome(cfg.Sessions.Storage))
	if err != nil {
		slog.Error("failed to open session store", "error", err)
		os.Exit(1)
	}

	msgBus := bus.NewMessageBus()
	registry := channels.NewMachineProfileRegistry()
	limiter := channels.NewSenderRateLimiter()

	// The dispatch boundary: admitted messages become bus traffic. An agent
	// runtime consumes the bus and publishes replies back as outbound
	// messages, which forwardOutbound routes through the session's dispatcher
	// and the pipeline's delivery callback.
	replies := newReplyRouter()
	dispatch := func(ctx context.Context, mc *channels.MsgContext, deliver channels.DeliverFunc) error {
		replies.register(mc, deliver)
		msgBus.PublishInbound(bus.InboundMessage{
			Channel:    mc.Channel,
			AccountID:  mc.AccountID,
			SenderID:   mc.SenderID,
			ChatID:     mc.ChatID,
			Content:    mc.Envelope,
			SessionKey: mc.SessionKey,
			PeerKind:   string(sessions.PeerKindFromChatType(mc.ChatType == channels.ChatGroup)),
			AgentID:    mc.AgentID,
			Metadata: map[string]string{
				"arrival_account": mc.ArrivalAccountID,
				"sender_name":     mc.SenderName,
				"reply_to_id":     mc.ReplyToID,
				"system_prompt":   mc.SystemPrompt,
				"mode":            mc.Mode,
				"mode_label":      mc.ModeLabel,
				"model_hint":      mc.ModelHint,
				"agent_hint":      mc.AgentHint,
				"skills_hint":     mc.SkillsHint,
			},
		})
		return nil
	}

	chans, err := vimagram.BuildChannels(vimagram.Deps{
		Cfg:       cfg,
		Limiter:   limiter,
		AllowFrom: db,
		Registry:  registry,
		Sessions:  sessStore,
		Dispatch:  dispatch,
	})
	if err != nil {
		slog.Error("failed to build channels", "error", err)
		os.Exit(1)
	}
	if len(chans) == 0 {
		slog.Warn("no enabled vimagram accounts configured", "config", cfgPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, ch := range chans {
		if err := ch.Start(ctx); err != nil {
			slog.Error("failed to start channel", "account", ch.AccountID(), "error", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		consumeInbound(gctx, msgBus)
		return nil
	})
	g.Go(func() error {
		forwardOutbound(gctx, msgBus, chans, replies)
		return nil
	})
	g.Go(func() error {
		// Live reload of the channels section; watcher failure degrades to a
		// static config, it does not stop the gateway.
		if err := config.Watch(gctx, cfgPath, cfg, func() {
			slog.Info("channel config reloaded", "config", cfgPath)
		}); err != nil && gctx.Err() == nil {
			slog.Warn("config watcher unavailable", "error", err)
		}
		return nil
	})

	slog.Info("vimagram gateway started",
		"version", Version,
		"accounts", len(chans),
		"data_dir", dataDir,
	)

	<-gctx.Done()
	slog.Info("graceful shutdown initiated")

	for _, ch := range chans {
		if err := ch.Stop(context.Background()); err != nil {
			slog.Warn("channel stop failed", "account", ch.AccountID(), "error", err)
		}
	}
	g.Wait()
}
