package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/thomasboom/portfolio"
	"github.com/thomasboom/portfolio/internal/chat"
	"github.com/thomasboom/portfolio/internal/handlers"
	"github.com/thomasboom/portfolio/internal/services"
	"golang.org/x/sync/errgroup"
)

const pruneInterval = time.Minute

func newServeCmd(opts *rootOptions) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the portfolio site",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			if port != "" {
				cfg.Port = port
			}
			return serve(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "port to listen on, overriding the config")

	return cmd
}

func serve(ctx context.Context, cfg config, logger *slog.Logger) error {
	llm, err := cfg.LLM.llm(logger)
	if err != nil {
		return fmt.Errorf("error creating llm: %w", err)
	}

	dbPath, err := cfg.dbPath()
	if err != nil {
		return err
	}
	boltDB, err := services.NewBoltDB(dbPath)
	if err != nil {
		return err
	}
	defer boltDB.Close()

	if cfg.Blog.PostsFile != "" {
		posts, err := services.LoadPosts(cfg.Blog.PostsFile)
		if err != nil {
			return err
		}
		n, err := boltDB.ImportPosts(ctx, posts)
		if err != nil {
			return err
		}
		logger.Info("Seeded blog posts", slog.String("file", cfg.Blog.PostsFile), slog.Int("count", n))
	}

	sessions := chat.NewRegistry(cfg.Persona)

	m, err := handlers.NewMain(llm, sessions, boltDB, cfg.Site, logger)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           routes(m),
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			logger.Error("Failed to shutdown sse server", slog.String("err", err.Error()))
		}
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Info("Server starting", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		pruneSessions(ctx, sessions, cfg.SessionIdleTimeout, logger)
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		logger.Info("Start shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", slog.String("err", err.Error()))
			return srv.Close()
		}
		return nil
	})

	return eg.Wait()
}

func routes(m handlers.Main) http.Handler {
	staticFS, err := fs.Sub(portfolio.StaticFS, "static")
	if err != nil {
		// The embedded tree always has a static directory.
		panic(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("GET /static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/chat", m.HandleChat)
	mux.HandleFunc("/chat/new", m.HandleNewChat)
	mux.HandleFunc("GET /sse", m.HandleSSE)
	mux.HandleFunc("GET /blog", m.HandleBlog)
	mux.HandleFunc("GET /blog/new", m.HandleEditor)
	mux.HandleFunc("POST /blog/new", m.HandleEditor)
	mux.HandleFunc("GET /blog/{slug}", m.HandlePost)
	mux.HandleFunc("GET /links", m.HandleLinks)

	return mux
}

// pruneSessions drops idle visitor sessions until ctx is done.
func pruneSessions(ctx context.Context, sessions *chat.Registry, maxIdle time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Prune(maxIdle); n > 0 {
				logger.Debug("Pruned idle sessions", slog.Int("count", n), slog.Int("live", sessions.Len()))
			}
		}
	}
}
