package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"pagesmith/internal/deploy"
	"pagesmith/internal/generator"
	"pagesmith/internal/server"
	"pagesmith/internal/store"
)

const shutdownTimeout = 15 * time.Second

func runServe(ctx context.Context, cmd *cli.Command) (err error) {
	env := envFromContext(ctx)
	cfg := env.Cfg
	if port := cmd.Int("port"); port > 0 {
		cfg.Server.Port = port
	}
	if path := cmd.String("db"); path != "" {
		cfg.Store.Path = path
	}

	st, err := store.Open(cfg.Store.Path, env.Log)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, st.Close()) }()

	if cfg.Generator.APIKey == "" {
		env.Log.Warn("GEMINI_API_KEY is not set, generation is disabled")
	}
	if cfg.Deploy.Token == "" {
		env.Log.Warn("NETLIFY_ACCESS_TOKEN is not set, deployment is disabled")
	}

	api := server.New(cfg, server.Deps{
		Store:     st,
		Generator: generator.New(cfg.Generator, env.Log),
		Deployer:  deploy.New(cfg.Deploy, env.Log),
	}, env.Log)

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	failed := make(chan error, 1)
	go func() {
		env.Log.Info("Server running", zap.Int("port", cfg.Server.Port), zap.String("environment", cfg.Server.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			failed <- err
		}
		close(failed)
	}()

	select {
	case err := <-failed:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		env.Log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err = multierr.Append(err, srv.Shutdown(shutdownCtx))
	err = multierr.Append(err, api.Close(shutdownCtx))
	if err == nil {
		env.Log.Info("Server stopped")
	}
	return err
}
