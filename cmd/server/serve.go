package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arrakis-sim/dune-server-go/internal/game"
	"github.com/arrakis-sim/dune-server-go/internal/repository"
	"github.com/arrakis-sim/dune-server-go/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the battle service",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting dune battle server",
		zap.String("version", version),
		zap.String("config", configPath),
	)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler, board, err := newHandler(cfg.Rules, logger)
	if err != nil {
		return err
	}

	opts := []game.EngineOption{}
	if cfg.Database.URL != "" {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer db.Close()

		snapshots := repository.NewSnapshotRepository(db)
		if err := snapshots.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("prepare snapshot schema: %w", err)
		}
		stats := db.Stats()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
		opts = append(opts, game.WithSnapshotStore(snapshots))
	} else {
		logger.Warn("database url not configured; snapshots kept in memory")
	}
	if cfg.Replay.Enabled {
		if err := os.MkdirAll(cfg.Replay.Directory, 0o755); err != nil {
			return fmt.Errorf("create replay directory: %w", err)
		}
		opts = append(opts, game.WithReplayRecorder(game.NewReplayRecorder(logger, cfg.Replay.Directory)))
	}
	engine := game.NewBattleEngine(logger, handler, opts...)

	if cfg.Server.WebSocket.Enabled {
		hub := server.NewHub(cfg.Server.WebSocket, logger)
		go hub.Run(ctx)
		engine.SetNotificationHandler(hub.Notify)

		wsServer, err := server.StartWebSocketServer(cfg.Server.WebSocket, hub, logger)
		if err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = wsServer.Shutdown(shutdownCtx)
		}()
	}

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(server.ChainUnaryInterceptors(
			server.RecoveryInterceptor(logger),
			server.LoggingInterceptor(logger),
		)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    cfg.Server.GRPC.KeepaliveTime,
			Timeout: cfg.Server.GRPC.KeepaliveTimeout,
		}),
		grpc.MaxConcurrentStreams(uint32(cfg.Server.GRPC.MaxConcurrentStreams)),
	)
	server.RegisterBattleService(grpcServer, server.NewBattleServer(engine, board, cfg.Server.MaxSessions, logger))

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.GRPC.Address, err)
	}
	go func() {
		logger.Info("starting gRPC server", zap.String("address", lis.Addr().String()))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	logger.Info("dune battle server initialized",
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.Bool("websocket", cfg.Server.WebSocket.Enabled),
		zap.Int("max_sessions", cfg.Server.MaxSessions),
		zap.Bool("replays", cfg.Replay.Enabled),
	)

	<-ctx.Done()
	logger.Info("shutting down gracefully", zap.Int("loaded_sessions", len(engine.Sessions())))
	grpcServer.GracefulStop()
	logger.Info("dune battle server stopped")
	return nil
}
