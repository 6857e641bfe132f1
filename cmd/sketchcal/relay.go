package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/astromechza/sketchy-calendar/pkg/docstore"
	"github.com/astromechza/sketchy-calendar/pkg/relay"
)

func newRelayCmd() *cobra.Command {
	var dumpDir string
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Serve scene documents and sync them between clients",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Relay.Addr = addr
			}
			return runRelay(dumpDir)
		},
	}
	cmd.Flags().String("addr", "", "the address to listen on (default: relay.addr)")
	cmd.Flags().StringVar(&dumpDir, "dump-dir", os.TempDir(), "where to dump every scene and its history on shutdown")
	return cmd
}

func runRelay(dumpDir string) error {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	db, err := docstore.Open(cfg.Relay.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := signalContext()
	defer cancel()

	s, err := relay.NewServer(ctx, db)
	if err != nil {
		return err
	}
	if err := s.EnsureScene(ctx, "default"); err != nil {
		return fmt.Errorf("failed to create default scene: %w", err)
	}

	wg := new(sync.WaitGroup)
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.RunBackups(ctx, cfg.Relay.BackupInterval)
	}()

	httpServer := &http.Server{Addr: cfg.Relay.Addr, Handler: s.Handler()}
	wg.Add(1)
	go func() {
		defer wg.Done()
		slog.Info("listening", "addr", cfg.Relay.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server listen failed", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	_ = httpServer.Close()
	wg.Wait()

	s.Backup(context.Background())
	s.Dump(dumpDir)
	return nil
}
