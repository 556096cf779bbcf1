package main

import (
	"context"
	"crypto/ed25519"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/ksuid"
	"github.com/sethvargo/go-envconfig"
	"golang.org/x/exp/slog"

	"manualpilot/drawsrv/impl"
	"manualpilot/drawsrv/internal"
	"manualpilot/drawsrv/internal/server"
)

type Env struct {
	Port             int                   `env:"PORT,default=27750"`
	HTTPPort         int                   `env:"HTTP_PORT,default=8080"`
	InstanceID       string                `env:"INSTANCE_ID"`
	PublicAddress    string                `env:"PUBLIC_ADDRESS"`
	SessionTitle     string                `env:"SESSION_TITLE"`
	SessionPassword  string                `env:"SESSION_PASSWORD"`
	MaxUsers         int                   `env:"MAX_USERS,default=255"`
	HistoryLimit     int                   `env:"HISTORY_LIMIT,default=0"`
	HardHistoryLimit int                   `env:"HARD_HISTORY_LIMIT,default=0"`
	LogLevel         slog.Level            `env:"LOG_LEVEL,default=DEBUG"`
	RedisURL         string                `env:"REDIS_URL"`
	AdminPublicKey   envconfig.Base64Bytes `env:"ADMIN_PUBLIC_KEY"`
	TLSDomain        string                `env:"TLS_DOMAIN"`
	PorkbunAPIKey    string                `env:"PORKBUN_API_KEY"`
	PorkbunAPISecret string                `env:"PORKBUN_API_SECRET"`
	WSOrigins        []string              `env:"WS_ORIGINS"`
}

const listingTTL = 90 * time.Second

func doMain(logger *slog.Logger, level *slog.LevelVar) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	env := Env{}
	if err := envconfig.Process(ctx, &env); err != nil {
		return err
	}
	level.Set(env.LogLevel)

	if env.InstanceID == "" {
		env.InstanceID = ksuid.New().String()
	}
	logger = logger.With(slog.String("instance", env.InstanceID))

	var adminKey ed25519.PublicKey
	if len(env.AdminPublicKey) > 0 {
		if len(env.AdminPublicKey) != ed25519.PublicKeySize {
			return fmt.Errorf("admin public key must be %d bytes", ed25519.PublicKeySize)
		}
		adminKey = ed25519.PublicKey(env.AdminPublicKey)
	}

	var rdb *redis.Client
	if env.RedisURL != "" {
		rOpts, err := redis.ParseURL(env.RedisURL)
		if err != nil {
			return err
		}

		rdb = redis.NewClient(rOpts)
		if err := rdb.Info(ctx).Err(); err != nil {
			return err
		}

		//goland:noinspection GoUnhandledErrorResult
		defer rdb.Close()
	}

	cfg := server.Config{
		Title:            env.SessionTitle,
		Password:         env.SessionPassword,
		MaxUsers:         env.MaxUsers,
		HistoryLimit:     env.HistoryLimit,
		HardHistoryLimit: env.HardHistoryLimit,
	}

	var publisher *internal.Publisher
	if rdb != nil {
		publisher = internal.NewPublisher(logger, rdb, env.InstanceID)
		cfg.Events = publisher
	}

	srv := server.New(logger, cfg)

	var tlsConfig *tls.Config
	if env.TLSDomain != "" {
		if rdb == nil {
			return errors.New("TLS_DOMAIN requires REDIS_URL for certificate storage")
		}

		var err error
		tlsConfig, err = impl.TLSConfig(env.TLSDomain, env.PorkbunAPIKey, env.PorkbunAPISecret, rdb)
		if err != nil {
			return err
		}
	}

	var ln net.Listener
	var err error
	addr := fmt.Sprintf(":%v", env.Port)
	if tlsConfig != nil {
		ln, err = tls.Listen("tcp", addr, tlsConfig)
	} else {
		ln, err = net.Listen("tcp", addr)
	}
	if err != nil {
		return err
	}

	ec := make(chan error, 3)

	go func() {
		logger.Debug("starting...", slog.String("address", ln.Addr().String()), slog.Bool("tls", tlsConfig != nil))
		if err := srv.Serve(ctx, ln); err != nil {
			ec <- err
		}
	}()

	if env.HTTPPort != 0 {
		httpServer := &http.Server{
			Addr:    fmt.Sprintf(":%v", env.HTTPPort),
			Handler: internal.Main(logger, env.InstanceID, srv, adminKey, env.WSOrigins),
		}

		//goland:noinspection GoUnhandledErrorResult
		defer httpServer.Close()

		go func() {
			logger.Debug("starting http...", slog.String("address", httpServer.Addr))
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				ec <- err
			}
		}()
	}

	if rdb != nil {
		go publisher.Run(ctx)
		go internal.SubscribeControl(ctx, logger, srv, rdb, env.InstanceID)

		address := env.PublicAddress
		if address == "" {
			address = ln.Addr().String()
			if env.TLSDomain != "" {
				address = fmt.Sprintf("%v:%v", env.TLSDomain, env.Port)
			}
		}

		announcer := internal.NewAnnouncer(logger, rdb, srv, env.InstanceID, address, listingTTL)
		go func() {
			if err := announcer.Run(ctx); err != nil {
				ec <- err
			}
		}()
	}

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sc:
		logger.Warn("shutdown signal", slog.String("signal", sig.String()))
	case err := <-ec:
		return err
	}

	return nil
}

func main() {
	level := &slog.LevelVar{}
	handler := slog.HandlerOptions{AddSource: true, Level: level}
	logger := slog.New(handler.NewTextHandler(os.Stdout))

	if err := doMain(logger, level); err != nil {
		logger.Error("failed to start", err)
		os.Exit(1)
	}
}
