package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corrosion/corrosion-server-go/internal/config"
	"github.com/corrosion/corrosion-server-go/internal/game"
	"github.com/corrosion/corrosion-server-go/internal/game/effects"
	"github.com/corrosion/corrosion-server-go/internal/game/rules"
	"github.com/corrosion/corrosion-server-go/internal/game/sequence"
	"github.com/corrosion/corrosion-server-go/internal/game/visibility"
	"github.com/corrosion/corrosion-server-go/internal/repository"
	"github.com/corrosion/corrosion-server-go/internal/server"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/crypto/bcrypt"
)

var (
	configPath = flag.String("config", "config/config.yaml", "path to configuration file")
	version    = "dev" // set via ldflags during build
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting corrosion server",
		zap.String("version", version),
		zap.String("config", *configPath),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	turns, err := cfg.Game.TurnStructure()
	if err != nil {
		logger.Fatal("invalid turn structure", zap.Error(err))
	}

	// The action log is optional
	var recorder game.ActionRecorder
	if cfg.Database.Enabled() {
		db, err := repository.NewDB(ctx, cfg.Database, logger)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		actionLog := repository.NewActionLogRepository(db)
		if err := actionLog.Migrate(ctx); err != nil {
			logger.Fatal("failed to migrate action log", zap.Error(err))
		}
		recorder = actionLog

		stats := db.Stat()
		logger.Info("database connection pool initialized",
			zap.Int32("total_conns", stats.TotalConns()),
			zap.Int32("idle_conns", stats.IdleConns()),
		)
	} else {
		logger.Warn("database not configured; action log disabled")
	}

	engine := game.NewEngine(logger, game.EngineConfig{
		Counters:      sequence.NewCounters(),
		TurnStructure: turns,
		MaxGames:      cfg.Game.MaxGames,
		NewResolver: func() game.ObjectResolver {
			return effects.NewLayerSystem()
		},
		Projector: visibility.HiddenHands{},
		Recorder:  recorder,
	})
	logger.Info("game engine initialized",
		zap.Stringers("phases", turns),
		zap.Int("max_games", cfg.Game.MaxGames),
	)

	tokens := server.NewSeatTokens(bcrypt.DefaultCost)

	hub := server.NewHub(engine, tokens, cfg.Server.WebSocket, logger)
	go hub.Run(ctx)
	engine.SetNotificationHandler(hub.Notify)
	engine.Events().Subscribe(logEvents(logger.Named("events")))

	svc := server.NewGameService(engine, tokens, hub, logger)
	grpcServer, healthServer := server.NewGRPCServer(cfg.Server.GRPC, svc, logger)

	lis, err := net.Listen("tcp", cfg.Server.GRPC.Address)
	if err != nil {
		logger.Fatal("failed to listen", zap.Error(err))
	}

	go func() {
		logger.Info("starting gRPC server", zap.String("address", cfg.Server.GRPC.Address))
		if serveErr := grpcServer.Serve(lis); serveErr != nil {
			logger.Error("gRPC server error", zap.Error(serveErr))
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	wsServer := &http.Server{
		Addr:              cfg.Server.WebSocket.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("starting WebSocket server", zap.String("address", cfg.Server.WebSocket.Address))
		if wsErr := wsServer.ListenAndServe(); wsErr != nil && !errors.Is(wsErr, http.ErrServerClosed) {
			logger.Error("WebSocket server error", zap.Error(wsErr))
		}
	}()

	logger.Info("corrosion server initialized",
		zap.String("version", version),
		zap.String("grpc_address", cfg.Server.GRPC.Address),
		zap.String("websocket_address", cfg.Server.WebSocket.Address),
		zap.Bool("action_log", recorder != nil),
	)

	sig := <-sigChan
	logger.Info("received shutdown signal", zap.String("signal", sig.String()))

	logger.Info("shutting down gracefully...")
	healthServer.Shutdown()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("WebSocket server shutdown error", zap.Error(err))
	}

	cancel()
	grpcServer.GracefulStop()

	for _, gameID := range engine.Games() {
		if err := engine.EndGame(gameID); err != nil {
			logger.Debug("game already removed", zap.String("game_id", gameID))
		}
	}

	logger.Info("corrosion server stopped")
}

// initLogger builds a JSON production logger or a colored console one.
// Unknown levels fall back to info.
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	zapCfg := zap.NewDevelopmentConfig()
	zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		level = zapcore.InfoLevel
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}

// logEvents writes every rules event at debug level.
func logEvents(logger *zap.Logger) rules.Listener {
	return func(e rules.Event) {
		logger.Debug("rules event",
			zap.String("game_id", e.GameID),
			zap.String("type", string(e.Type)),
			zap.Uint64("player_id", uint64(e.PlayerID)),
			zap.Uint64("object_id", uint64(e.ObjectID)),
		)
	}
}
