package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rdv2go/rdv2go/internal/adminapi"
	"github.com/rdv2go/rdv2go/internal/config"
	"github.com/rdv2go/rdv2go/internal/crypto"
	"github.com/rdv2go/rdv2go/internal/db"
	"github.com/rdv2go/rdv2go/internal/prudp"
	"github.com/rdv2go/rdv2go/internal/registry"
	"github.com/rdv2go/rdv2go/internal/rendezvous"
	"github.com/rdv2go/rdv2go/internal/rmc"
	"github.com/rdv2go/rdv2go/internal/ticket"
)

const ConfigPath = "config/rdv2go.yaml"

// receiveBufferSize bounds a single UDP datagram; PRUDP fragments
// anything larger at L4 (spec §3 "fragmentation").
const receiveBufferSize = 2048

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("shutting down", "signal", sig)
		cancel()
	}()

	if err := run(ctx); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfgPath := ConfigPath
	if p := os.Getenv("RDV2GO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	})))
	slog.Info("rdv2go starting", "bind", cfg.BindAddress, "port", cfg.Port)

	database, err := db.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected")

	if err := db.RunMigrations(ctx, cfg.Database.DSN()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	slog.Info("database migrations applied")

	adminToken := cfg.AdminBearerToken
	if adminToken == "" {
		adminToken, err = randomToken()
		if err != nil {
			return fmt.Errorf("generating admin bearer token: %w", err)
		}
	}
	slog.Info("admin bearer token", "token", adminToken)

	tickets := ticket.NewEngine([]byte(cfg.TicketKey))
	reg := registry.New()
	teardown := &rendezvous.SessionTeardown{Store: database, Logger: slog.Default()}

	handlers := &rendezvous.Handlers{
		Store:              database,
		Tickets:            tickets,
		PasswordIterations: cfg.PasswordIterations,
		SecureStationURL:   fmt.Sprintf("prudps;address=%s;port=%d", cfg.BindAddress, cfg.Port),
		Logger:             slog.Default(),
	}
	dispatch := rmc.NewRegistry()
	handlers.RegisterOn(dispatch)

	engine := &prudp.Engine{
		Table:           prudp.NewTable(),
		Tickets:         tickets,
		Dispatcher:      dispatch,
		Observer:        prudp.DisconnectObservers{reg, teardown},
		ConnectObserver: prudp.ConnectObservers{reg, teardown},
		Logger:          slog.Default(),
		AccessKeyByte:   crypto.AccessKeyByte(cfg.AccessKey),
		SessionTimeout:  cfg.SessionTimeout,
	}

	adminServer := &adminapi.Server{
		Store:       database,
		BearerToken: adminToken,
		Version:     "rdv2go-dev",
		StartedAt:   time.Now(),
		Online:      reg,
		Logger:      slog.Default(),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("starting PRUDP receive loop", "bind", cfg.BindAddress, "port", cfg.Port)
		return runPRUDP(gctx, engine, cfg.BindAddress, cfg.Port)
	})

	g.Go(func() error {
		slog.Info("starting idle-sweep loop", "interval", "1s")
		return runIdleSweep(gctx, engine)
	})

	g.Go(func() error {
		slog.Info("starting admin HTTP plane", "bind", cfg.AdminBindAddress)
		return runAdminHTTP(gctx, adminServer, cfg.AdminBindAddress)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// runPRUDP owns the UDP socket and the single-threaded receive loop
// (spec §5 "Concurrency & Resource Model": the connection table is
// mutated only from this loop).
func runPRUDP(ctx context.Context, engine *prudp.Engine, bindAddress string, port int) error {
	addr := &net.UDPAddr{IP: net.ParseIP(bindAddress), Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("binding UDP socket: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	bufs := prudp.NewBytePool(receiveBufferSize)
	for {
		buf := bufs.Get(receiveBufferSize)
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			bufs.Put(buf)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading UDP packet: %w", err)
		}

		raw := append([]byte(nil), buf[:n]...)
		bufs.Put(buf)

		replies, err := engine.HandlePacket(ctx, raw, prudp.Endpoint{IP: from.IP.String(), Port: from.Port}, time.Now())
		if err != nil {
			slog.Warn("handling PRUDP packet", "from", from, "error", err)
			continue
		}
		for _, reply := range replies {
			if _, err := conn.WriteToUDP(reply, from); err != nil {
				slog.Warn("writing PRUDP reply", "to", from, "error", err)
			}
		}
	}
}

// runIdleSweep periodically evicts connections idle past the session
// timeout (spec §4.3 "Idle sweep", §5 "≈1 s read-timeout idle-sweep
// trigger").
func runIdleSweep(ctx context.Context, engine *prudp.Engine) error {
	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-ticker.C:
			engine.SweepIdle(now)
		}
	}
}

func runAdminHTTP(ctx context.Context, server *adminapi.Server, bindAddress string) error {
	httpServer := &http.Server{
		Addr:    bindAddress,
		Handler: server.Router(),
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("admin HTTP server: %w", err)
	}
	return nil
}

func randomToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// parseLogLevel converts a string log level to slog.Level, defaulting
// to Info if invalid or empty.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
