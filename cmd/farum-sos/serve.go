package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/PabloGalante/farum-sos/internal/adapters/http"
	"github.com/PabloGalante/farum-sos/internal/adapters/llm"
	"github.com/PabloGalante/farum-sos/internal/adapters/realtime"
	firestorestore "github.com/PabloGalante/farum-sos/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/farum-sos/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-sos/internal/app/conversation"
	"github.com/PabloGalante/farum-sos/internal/app/feedback"
	"github.com/PabloGalante/farum-sos/internal/app/messaging"
	"github.com/PabloGalante/farum-sos/internal/app/scheduling"
	"github.com/PabloGalante/farum-sos/internal/app/sessionstate"
	"github.com/PabloGalante/farum-sos/internal/app/waittime"
	"github.com/PabloGalante/farum-sos/internal/clock"
	"github.com/PabloGalante/farum-sos/internal/config"
	"github.com/PabloGalante/farum-sos/internal/domain"
	"github.com/PabloGalante/farum-sos/internal/observability"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long:  "Starts the conversation loop, the event stream and the HTTP API. Configuration is read from FARUM_* environment variables.",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, port)
		},
	}

	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (overrides FARUM_PORT)")
	return cmd
}

type stores struct {
	sessions domain.SessionStore
	messages domain.MessageStore
	feedback domain.FeedbackStore
	close    func() error
}

func runServe(ctx context.Context, port string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if port != "" {
		cfg.Port = port
	}

	observability.Configure(os.Stdout, cfg.LogLevel)
	log := observability.Logger()

	script, err := config.LoadScript(cfg.ScriptFile)
	if err != nil {
		return err
	}

	llmClient, err := newLLM(ctx, cfg, script)
	if err != nil {
		return err
	}

	st, err := newStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := st.close(); err != nil {
			log.Warn().Err(err).Msg("closing storage")
		}
	}()

	clk := clock.New()
	msgSvc := messaging.NewService(llmClient, st.messages, script.InitialReplies)

	channelOpts := realtime.Options{
		ConnectDelay:       cfg.Timing.ConnectDelay,
		InboundInterval:    cfg.Timing.InboundInterval,
		InboundProbability: cfg.Timing.InboundProbability,
		Candidates:         script.InboundCandidates,
	}
	if cfg.RandomSeed != 0 {
		channelOpts.Random = rand.New(rand.NewPCG(cfg.RandomSeed, cfg.RandomSeed>>1|1))
	}

	orch := conversation.New(conversation.Deps{
		State:     sessionstate.New(st.sessions, clk.Now),
		Counter:   waittime.New(clk, cfg.Timing.WaitTick),
		Channel:   realtime.NewSimulated(clk, channelOpts),
		Messaging: msgSvc,
		Clock:     clk,
		Metrics:   observability.NewMetrics(),
	},
		conversation.WithPolicy(conversation.Policy{
			AIHelpThreshold: cfg.Timing.AIHelpThreshold,
			ReplyDelay:      cfg.Timing.ReplyDelay,
			ReadSettleDelay: cfg.Timing.ReadSettleDelay,
		}),
		conversation.WithScript(script),
	)

	server := httpadapter.NewServer(httpadapter.Deps{
		Conversation: orch,
		Feedback:     feedback.NewService(st.feedback, st.sessions),
		Scheduler:    scheduling.NewService(nil),
		Preferences:  msgSvc,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return orch.Run(gctx) })
	g.Go(func() error { return server.StreamEvents(gctx) })
	g.Go(func() error {
		log.Info().
			Str("addr", httpServer.Addr).
			Str("mode", string(cfg.Mode)).
			Str("storage", cfg.StorageBackend).
			Bool("mock_llm", cfg.MockLLM()).
			Msg("farum-sos listening")
		if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info().Msg("shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLLM(ctx context.Context, cfg *config.Config, script config.Script) (domain.LLMClient, error) {
	log := observability.Logger()
	if cfg.MockLLM() {
		log.Info().Dur("latency", cfg.MockLLMLatency).Msg("using mock LLM client")
		return llm.NewMockLLM(script.ChatReplies, cfg.MockLLMLatency, cfg.RandomSeed), nil
	}

	log.Info().Str("model", cfg.ModelName).Str("location", cfg.GCPLocation).Msg("using Vertex LLM client")
	client, err := llm.NewVertexClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ModelName)
	if err != nil {
		return nil, fmt.Errorf("init vertex client: %w", err)
	}
	return client, nil
}

func newStores(ctx context.Context, cfg *config.Config) (stores, error) {
	log := observability.Logger()
	if cfg.StorageBackend == "firestore" {
		log.Info().Str("project", cfg.GCPProjectID).Msg("using Firestore storage")
		fs, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return stores{}, fmt.Errorf("init firestore store: %w", err)
		}
		// One store implements every port.
		return stores{sessions: fs, messages: fs, feedback: fs, close: fs.Close}, nil
	}

	log.Info().Msg("using in-memory storage")
	return stores{
		sessions: memstore.NewSessionStore(),
		messages: memstore.NewMessageStore(),
		feedback: memstore.NewFeedbackStore(),
		close:    func() error { return nil },
	}, nil
}
