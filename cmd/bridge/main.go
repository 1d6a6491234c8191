package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/shatool-dad/group-bridge/internal/api"
	"github.com/shatool-dad/group-bridge/internal/biz"
	"github.com/shatool-dad/group-bridge/internal/conf"
	"github.com/shatool-dad/group-bridge/internal/data"
	"github.com/shatool-dad/group-bridge/internal/infra/session"
	"github.com/shatool-dad/group-bridge/internal/server"
	"github.com/shatool-dad/group-bridge/internal/service"
)

func main() {
	app := &cli.App{
		Name:  "group-bridge",
		Usage: "Route chat session messages into registered groups",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Path to a .env file",
				Value: ".env",
			},
			&cli.StringFlag{
				Name:  "api-token",
				Usage: "Shared API token (overrides API_TOKEN)",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "HTTP port (overrides PORT)",
			},
			&cli.StringFlag{
				Name:  "registry",
				Usage: "Group registry file (overrides REGISTRY_PATH)",
			},
		},
		Before: func(c *cli.Context) error {
			if err := godotenv.Load(c.String("env-file")); err != nil && c.IsSet("env-file") {
				return fmt.Errorf("failed to load env file: %w", err)
			}
			return nil
		},
		Action: run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	// Load configuration
	cfg := conf.LoadFromEnv()
	if c.IsSet("api-token") {
		cfg.Server.APIToken = c.String("api-token")
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if c.IsSet("registry") {
		cfg.Registry.Path = c.String("registry")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	log := conf.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize repository layer
	repos, err := data.NewRepositories(data.Options{
		RegistryPath:  cfg.Registry.Path,
		Retention:     cfg.Store.Retention,
		MessageDBPath: cfg.Store.DBPath,
		OpenAI:        cfg.OpenAI.ToRepoConfig(),
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create repositories: %w", err)
	}
	defer repos.Close()

	sessionClient := session.NewClient(session.DefaultConfig(cfg.Session.URL), log)
	broadcaster := service.NewBroadcaster(log)

	prompts, promptsPath, err := conf.LoadPromptsConfig(cfg.PromptsPath)
	if err != nil {
		return fmt.Errorf("failed to load prompts: %w", err)
	}
	if repos.Completion == nil {
		log.Info().Msg("OPENAI_API_KEY not set, digest disabled")
	} else if promptsPath != "" {
		log.Info().Str("path", promptsPath).Msg("Loaded digest prompts")
	}

	// Initialize usecase layer
	ucs, err := biz.NewUsecases(ctx, repos.Groups, repos.Messages, repos.Completion, sessionClient, broadcaster, biz.Options{
		Cache:        cfg.Cache.ToCacheConfig(),
		Digest:       prompts.ToDigestConfig(),
		LegacyActive: cfg.Registry.LegacyActiveChats,
	}, log)
	if err != nil {
		return err
	}

	// Initialize service layer
	refresher := service.NewCacheRefresher(ucs.Chats, cfg.Cache.RefreshInterval, log)

	// Initialize servers
	addr := net.JoinHostPort(cfg.Server.ListenAddr, strconv.Itoa(cfg.Server.Port))
	apiServer := api.NewServer(addr, cfg.Server.APIToken, api.Deps{
		Groups:      ucs.Groups,
		Chats:       ucs.Chats,
		Digest:      ucs.Digest,
		Session:     sessionClient,
		Broadcaster: broadcaster,
	}, log)

	if err := sessionClient.Start(ctx); err != nil {
		return fmt.Errorf("failed to start session client: %w", err)
	}
	bridge := server.NewBridgeServer(sessionClient, ucs.Router, refresher, log)
	bridge.Start(ctx)

	apiErr := make(chan error, 1)
	go func() {
		apiErr <- apiServer.Start()
	}()

	log.Info().Str("addr", addr).Str("session", cfg.Session.URL).
		Int("retention", cfg.Store.Retention).Msg("Group bridge started")

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down...")
	case err = <-apiErr:
		if err != nil {
			log.Err(err).Msg("API server error")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if stopErr := apiServer.Stop(shutdownCtx); stopErr != nil && !errors.Is(stopErr, context.DeadlineExceeded) {
		log.Err(stopErr).Msg("API server shutdown failed")
	}
	bridge.Stop()
	sessionClient.Stop()

	return err
}
