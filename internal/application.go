package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/apperror"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/catalog"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/config"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/protocol"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/repository"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/repository/storage"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/session"
	"github.com/AnahoretN/newavalon-skirmish-WebRTC-sub002/internal/transport/ws"
)

var ErrUnknownMode = errors.New("unknown mode")

// RunApp - runs a session node in the role the config picks: a host that
// owns a table or a guest that joins one.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	cat, err := catalog.Load(conf.CatalogPath)
	if err != nil {
		return fmt.Errorf("could not load card catalog: %w", err)
	}

	switch conf.Mode {
	case "host":
		return runHost(ctx, logger, conf, cat)
	case "guest":
		return runGuest(ctx, logger, conf, cat)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownMode, conf.Mode)
	}
}

func runHost(ctx context.Context, logger *slog.Logger, conf *config.Config, cat *catalog.Catalog) error {
	log := logger.With("component", "app")

	repo := repository.NewNoop()
	if addr := conf.Redis.GetRedisAddr(); addr != "" {
		redisStorage, err := storage.New(ctx, addr)
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		repo = repository.NewSessionRepository(redisStorage.Connection)
	}

	sessionID := conf.Session.ID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	hostCfg := session.HostConfig{
		SessionID:       sessionID,
		Name:            conf.Player.Name,
		Color:           conf.Player.Color,
		Deck:            conf.Player.Deck,
		MaxPlayers:      conf.Session.MaxPlayers,
		BoardRows:       conf.Session.BoardRows,
		BoardCols:       conf.Session.BoardCols,
		HandSize:        conf.Session.HandSize,
		DisconnectGrace: conf.Session.DisconnectGrace,
		InactivityLimit: conf.Session.InactivityLimit,
		CleanupDelay:    conf.Session.CleanupDelay,
		TurnLimit:       conf.Session.TurnLimit,
		BinaryThreshold: conf.BinaryThreshold,
	}

	codec := protocol.NewCodec(conf.MaxMessageBytes)
	// the host itself holds one seat, the rest may dial in
	server := ws.NewServer(logger, codec, conf.Session.MaxPlayers-1, conf.MaxMessageBytes)

	var host *session.Host
	record, err := repo.Load(ctx, sessionID)
	switch {
	case err == nil && record.IsHost:
		log.Info("Resuming saved session", "session_id", sessionID, "version", record.Version)
		host = session.RestoreHost(logger, server, repo, cat, hostCfg, record)
	case err == nil:
		log.Warn("Saved record belongs to a guest, starting fresh", "session_id", sessionID)
		host, err = session.NewHost(logger, server, repo, cat, hostCfg)
	case errors.Is(err, apperror.ErrSessionNotFound):
		host, err = session.NewHost(logger, server, repo, cat, hostCfg)
	default:
		log.Warn("Could not load saved session, starting fresh", "error", err)
		host, err = session.NewHost(logger, server, repo, cat, hostCfg)
	}
	if err != nil {
		return fmt.Errorf("could not create session: %w", err)
	}

	// run peer endpoint
	serverErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting peer endpoint", "port", conf.HTTPPort)
		if serveErr := server.Start(ctx, conf.HTTPPort); serveErr != nil {
			log.Error("Peer endpoint error", "error", serveErr)
			serverErrCh <- serveErr
		}
	}()

	// run session orchestrator
	hostErrCh := make(chan error, 1)
	go func() {
		hostErrCh <- host.Run(ctx)
	}()

	select {
	case err = <-serverErrCh:
		return fmt.Errorf("peer endpoint error: %w", err)
	case err = <-hostErrCh:
		if err != nil {
			return fmt.Errorf("session error: %w", err)
		}
		log.Info("Session closed")
		return nil
	}
}

func runGuest(ctx context.Context, logger *slog.Logger, conf *config.Config, _ *catalog.Catalog) error {
	log := logger.With("component", "app")

	codec := protocol.NewCodec(conf.MaxMessageBytes)
	client := ws.NewClient(logger, codec, conf.MaxMessageBytes)

	guest := session.NewGuest(logger, client, session.GuestConfig{
		Name:  conf.Player.Name,
		Color: conf.Player.Color,
		Deck:  conf.Player.Deck,
		Reconnect: session.ReconnectConfig{
			Window:          conf.Reconnect.Window,
			DialTimeout:     conf.Reconnect.DialTimeout,
			InitialInterval: conf.Reconnect.InitialInterval,
			MaxInterval:     conf.Reconnect.MaxInterval,
		},
	})

	done := make(chan string, 1)
	guest.OnSessionTerminated(func(reason string) {
		select {
		case done <- "session terminated: " + reason:
		default:
		}
	})
	guest.OnConnStateChanged(func(state session.ConnState) {
		log.Info("Connection state changed", "state", state)
		if state == session.ConnStateFailed {
			select {
			case done <- "connection lost for good":
			default:
			}
		}
	})

	log.Info("Joining session", "url", conf.HostURL)

	joinCtx, cancelJoin := context.WithTimeout(ctx, conf.Reconnect.DialTimeout)
	defer cancelJoin()

	if err := guest.Join(joinCtx, conf.HostURL); err != nil {
		return fmt.Errorf("could not join session: %w", err)
	}

	log.Info("Joined session",
		"session_id", guest.SessionID(),
		"player_id", guest.PlayerID(),
		"version", guest.Version(),
	)

	select {
	case reason := <-done:
		log.Info("Leaving", "reason", reason)
		return guest.Close()
	case <-ctx.Done():
		log.Info("Leaving", "reason", "shutdown requested")
		return guest.Close()
	}
}
