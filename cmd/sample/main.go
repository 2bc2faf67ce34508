// Command sample serves a small demo built from views: a notes REST
// resource, an echo websocket, a chat room and a clock event stream.
//
// Run:
//
//	go run ./cmd/sample serve
//	go run ./cmd/sample serve --config sample.yaml --addr :9000
//
// Then explore:
//
//	GET    /notes          list notes
//	POST   /notes          create a note {"text": "..."}
//	GET    /notes/{id}     get a note
//	PATCH  /notes/{id}     update a note
//	DELETE /notes/{id}     delete a note
//	GET    /clock          server-sent ticks
//	ws://  /ws/echo        echoes text frames
//	ws://  /ws/room        broadcasts text frames to every member
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/bjaus/views"
)

func main() {
	root := &cobra.Command{
		Use:           "sample",
		Short:         "Demo server for the views package",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("sample failed")
		os.Exit(1)
	}
}

func newServeCommand() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo HTTP and websocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := views.DefaultConfig()
			if configPath != "" {
				loaded, err := views.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}
			if addr != "" {
				cfg.Addr = addr
			}

			logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
				Level(cfg.Level()).
				With().Timestamp().Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, logger)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides the config file")
	return cmd
}

func serve(ctx context.Context, cfg views.Config, logger zerolog.Logger) error {
	room := views.NewHub("room").WithLogger(logger)
	r := newRouter(cfg, logger, newNoteStore(), room)

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Info().Str("addr", cfg.Addr).Strs("patterns", r.Patterns()).Msg("starting server")
		if err := r.ListenAndServe(ctx, cfg.Addr); err != nil {
			return errors.Wrap(err, "listen")
		}
		logger.Info().Msg("server stopped")
		return nil
	})

	// Keep idle room members informed of the head count.
	eg.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				if n := room.Count(); n > 0 {
					room.Broadcast(presence(n))
				}
			}
		}
	})

	return eg.Wait()
}

func newRouter(cfg views.Config, logger zerolog.Logger, store *noteStore, room *views.Hub) *views.Router {
	r := views.New(cfg.RouterOptions(logger)...)
	r.Use(cfg.Middleware(logger)...)

	r.Mount("/notes", func(req *views.Request, res any, tail []string) views.View {
		nv := &notesView{Base: views.NewBase(req, res, tail), store: store}
		return views.NewRESTView(nv.Base, views.MethodHandlers(nv))
	})
	r.Mount("/notes/{id}", func(req *views.Request, res any, tail []string) views.View {
		nv := &noteView{Base: views.NewBase(req, res, tail), store: store}
		return views.NewRESTView(nv.Base, views.MethodHandlers(nv))
	}, views.WithResource(store.resolve))

	r.Mount("/clock", func(req *views.Request, res any, tail []string) views.View {
		return views.NewRESTView(views.NewBase(req, res, tail), views.Handlers{
			views.MethodGet: clock,
		})
	})

	sockets := r.Group("/ws")
	sockOpts := cfg.SocketOptions(logger)
	sockets.Mount("/echo", func(req *views.Request, res any, tail []string) views.View {
		return views.NewWebsocketView(views.NewBase(req, res, tail), echo{}, sockOpts...)
	})
	sockets.Mount("/room", func(req *views.Request, res any, tail []string) views.View {
		return views.NewWebsocketView(views.NewBase(req, res, tail), &chat{room: room}, sockOpts...)
	})

	return r
}
