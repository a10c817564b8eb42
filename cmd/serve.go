package cmd

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/fx"

	cfgpkg "github.com/KaramelBytes/tabletalk/internal/config"
	"github.com/KaramelBytes/tabletalk/internal/dataset"
	"github.com/KaramelBytes/tabletalk/internal/dispatch"
	"github.com/KaramelBytes/tabletalk/internal/scheduler"
	"github.com/KaramelBytes/tabletalk/internal/server"
	"github.com/KaramelBytes/tabletalk/internal/session"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the session API over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		if serveAddr != "" {
			cfg.ListenAddr = serveAddr
		}
		app := newServeApp(cfg)

		startCtx, cancelStart := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancelStart()
		if err := app.Start(startCtx); err != nil {
			return err
		}
		<-app.Done()

		stopCtx, cancelStop := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancelStop()
		log.Info().Msg("shutting down")
		return app.Stop(stopCtx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config, :8080)")
}

func newServeApp(c *cfgpkg.Global, extra ...fx.Option) *fx.App {
	opts := []fx.Option{
		fx.NopLogger,
		fx.Supply(c),
		fx.Provide(
			func() zerolog.Logger { return log.Logger },
			newDispatcher,
			session.NewStore,
			newGinEngine,
			newSessionController,
			newSweeper,
		),
		fx.Invoke(registerAPIRoutes, scheduler.Register),
	}
	return fx.New(append(opts, extra...)...)
}

func newGinEngine(c *cfgpkg.Global, logger zerolog.Logger) *gin.Engine {
	return server.NewEngine(server.Options{CORSOrigins: c.CORSOrigins, Logger: logger})
}

func newSessionController(c *cfgpkg.Global, store *session.Store, d *dispatch.Dispatcher, logger zerolog.Logger) *server.SessionController {
	opt := dataset.DefaultOptions()
	if c.MaxRows > 0 {
		opt.MaxRows = c.MaxRows
	}
	return server.NewSessionController(store, d, opt, logger)
}

func newSweeper(c *cfgpkg.Global, store *session.Store, logger zerolog.Logger) (*cron.Cron, error) {
	return scheduler.New(c.SweepSchedule, c.SessionIdle(), store, logger)
}

func registerAPIRoutes(lc fx.Lifecycle, router *gin.Engine, c *cfgpkg.Global, ctrl *server.SessionController, logger zerolog.Logger) {
	server.RegisterRoutes(router, ctrl)

	srv := &http.Server{
		Addr:              c.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", c.ListenAddr)
			if err != nil {
				return err
			}
			logger.Info().Str("addr", ln.Addr().String()).Msg("starting HTTP server")
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error().Err(err).Msg("HTTP server Serve error")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info().Msg("shutting down HTTP server")
			return srv.Shutdown(ctx)
		},
	})
}
