package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/mindecho/backend/internal/client"
	"github.com/mindecho/backend/internal/config"
	"github.com/mindecho/backend/internal/handler"
	"github.com/mindecho/backend/internal/handler/events"
	chatservice "github.com/mindecho/backend/internal/service/chat"
	"github.com/mindecho/backend/internal/service/reply"
	"github.com/mindecho/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	sessionStore, err := openStore(cfg.Chat)
	if err != nil {
		log.Fatalf("failed to open session store: %v", err)
	}
	defer sessionStore.Close()

	var apiClient *client.Client
	if cfg.Chat.RemoteBaseURL != "" {
		token := cfg.Chat.AuthToken
		apiClient = client.New(cfg.Chat.RemoteBaseURL, cfg.Chat.RemoteTimeout, func() (string, bool) {
			return token, token != ""
		})
		log.Printf("remote chat API configured at %s", cfg.Chat.RemoteBaseURL)
	}

	strategy, err := buildStrategy(ctx, cfg, apiClient)
	if err != nil {
		log.Fatalf("failed to build reply strategy: %v", err)
	}

	hub := events.NewHub()

	managerCfg := chatservice.Config{
		Store:    sessionStore,
		Strategy: strategy,
		Notifier: hub,
	}
	if apiClient != nil {
		managerCfg.Remote = apiClient
		managerCfg.History = apiClient
	}

	manager, err := chatservice.NewManager(ctx, managerCfg)
	if err != nil {
		log.Fatalf("failed to initialize session manager: %v", err)
	}
	log.Printf("session manager loaded %d session(s)", len(manager.Sessions()))

	router := handler.NewRouter(manager, hub)
	startServer(ctx, cfg.Server, router)
}

func openStore(cfg config.ChatConfig) (store.Store, error) {
	if cfg.DataDir == "" {
		log.Println("DATA_DIR not set, using in-memory session store")
		return store.NewMemoryStore(), nil
	}
	log.Printf("opening session store at %s", cfg.DataDir)
	return store.OpenBadger(store.DefaultBadgerConfig(cfg.DataDir))
}

func buildStrategy(ctx context.Context, cfg *config.Config, apiClient *client.Client) (reply.Strategy, error) {
	switch cfg.Chat.Strategy {
	case config.StrategyRemote:
		if apiClient == nil {
			return nil, errors.New("remote strategy requires CHAT_API_BASE_URL")
		}
		log.Println("using remote reply strategy")
		return reply.NewRemoteStrategy(apiClient, cfg.Chat.UserID), nil

	case config.StrategyLLM:
		chatModel, err := cfg.AI.NewChatModel(ctx)
		if err != nil {
			return nil, err
		}
		strategy, err := reply.NewLLMStrategy(ctx, chatModel)
		if err != nil {
			return nil, err
		}
		log.Println("using llm reply strategy")
		return strategy, nil

	default:
		log.Println("using local reply strategy")
		return reply.NewLocalStrategy(cfg.Chat.LocalReplyDelay, nil), nil
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("MindEcho chat backend listening on %s", serverCfg.Addr)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
