package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/tempohq/tempo/internal/channel"
	"github.com/tempohq/tempo/internal/channel/adapters/imessage"
	"github.com/tempohq/tempo/internal/channel/adapters/sendgrid"
	"github.com/tempohq/tempo/internal/channel/adapters/telegram"
	"github.com/tempohq/tempo/internal/channel/adapters/twilio"
	"github.com/tempohq/tempo/internal/channel/adapters/web"
	"github.com/tempohq/tempo/internal/config"
	"github.com/tempohq/tempo/internal/directory"
	"github.com/tempohq/tempo/internal/handlers"
	"github.com/tempohq/tempo/internal/logger"
	"github.com/tempohq/tempo/internal/server"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideRegistry,
			channel.NewRouter,
			provideDirectory,
			provideDispatcher,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideInboundHandler),
			provideServer,
		),
		fx.Invoke(
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfgPath := os.Getenv("CONFIG_PATH")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

// provideRegistry registers an adapter for every channel with credentials in
// the config. The web channel is first party and always on.
func provideRegistry(log *slog.Logger, cfg config.Config) *channel.Registry {
	registry := channel.NewRegistry(log)
	registry.MustRegister(web.New(log))

	if cfg.Channels.SMS.Enabled() {
		registry.MustRegister(twilio.NewSMSAdapter(log, twilio.Config{
			AccountSID: cfg.Channels.SMS.AccountSID,
			AuthToken:  cfg.Channels.SMS.AuthToken,
		}))
	}
	if cfg.Channels.WhatsApp.Enabled() {
		registry.MustRegister(twilio.NewWhatsAppAdapter(log, twilio.Config{
			AccountSID:  cfg.Channels.WhatsApp.AccountSID,
			AuthToken:   cfg.Channels.WhatsApp.AuthToken,
			VerifyToken: cfg.Channels.WhatsApp.VerifyToken,
		}))
	}
	if cfg.Channels.Telegram.Enabled() {
		registry.MustRegister(telegram.New(log, telegram.Config{
			SecretToken: cfg.Channels.Telegram.SecretToken,
		}))
	}
	if cfg.Channels.Email.Enabled() {
		registry.MustRegister(sendgrid.New(log, sendgrid.Config{
			VerificationKey: cfg.Channels.Email.VerificationKey,
			SigningKey:      cfg.Channels.Email.SigningKey,
		}))
	}
	if cfg.Channels.IMessage.Enabled() {
		registry.MustRegister(imessage.New(log, imessage.Config{
			PublicKeyPEM: cfg.Channels.IMessage.PublicKeyPEM,
		}))
	}
	return registry
}

func provideDirectory(log *slog.Logger, cfg config.Config) directory.Resolver {
	bindings := make([]directory.Binding, 0, len(cfg.Directory.Users))
	for _, u := range cfg.Directory.Users {
		ch, ok := channel.ParseChannelID(u.Channel)
		if !ok {
			log.Warn("directory binding skipped: unknown channel", slog.String("channel", u.Channel))
			continue
		}
		bindings = append(bindings, directory.Binding{
			Channel: ch,
			Address: u.Address,
			UserID:  u.UserID,
		})
	}
	return directory.NewStaticResolver(log, bindings)
}

func provideDispatcher(log *slog.Logger) handlers.Dispatcher {
	return handlers.NewLogDispatcher(log)
}

func provideInboundHandler(log *slog.Logger, router *channel.Router, registry *channel.Registry, resolver directory.Resolver, dispatcher handlers.Dispatcher) *handlers.InboundHandler {
	return handlers.NewInboundHandler(log, router, registry, resolver, dispatcher)
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Config.Server.Addr, params.Config.Auth.JWTSecret, params.Logger, params.ServerHandlers)
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	})
}
