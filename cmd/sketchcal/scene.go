package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/astromechza/sketchy-calendar/pkg/relay"
	"github.com/astromechza/sketchy-calendar/pkg/scene"
	"github.com/astromechza/sketchy-calendar/pkg/tool"
	"github.com/astromechza/sketchy-calendar/pkg/viz"
)

func newSceneCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "Work with scene document files",
	}
	cmd.PersistentFlags().String("relay", "", "relay address (default: relay.addr)")
	cmd.AddCommand(
		newSceneNewCmd(),
		newSceneInfoCmd(),
		newSceneReplayCmd(),
		newScenePullCmd(),
		newSceneSyncCmd(),
		newSceneVizCmd(),
	)
	return cmd
}

func loadSceneFile(path string) (*scene.Store, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file: %w", err)
	}
	return scene.Load(raw)
}

func saveSceneFile(path string, store *scene.Store) error {
	if err := os.WriteFile(path, store.Save(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

func newSceneNewCmd() *cobra.Command {
	var title string
	var force bool
	cmd := &cobra.Command{
		Use:   "new <file>",
		Short: "Create an empty scene with one page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", args[0])
			}
			store, err := scene.New()
			if err != nil {
				return err
			}
			if title != "" {
				if err := store.SetTitle(title); err != nil {
					return err
				}
			}
			return saveSceneFile(args[0], store)
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "scene title")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func newSceneInfoCmd() *cobra.Command {
	var history bool
	cmd := &cobra.Command{
		Use:   "info <file>",
		Short: "Summarise a scene and optionally its change history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadSceneFile(args[0])
			if err != nil {
				return err
			}
			sc, err := store.Snapshot()
			if err != nil {
				return err
			}
			printSceneSummary(cmd.OutOrStdout(), sc)
			slog.Debug("loaded heads", "heads", store.Heads())
			if !history {
				return nil
			}
			doc, err := store.ForkDoc()
			if err != nil {
				return err
			}
			entries, err := viz.History(doc)
			if err != nil {
				return err
			}
			tbl := newTable()
			tbl.AddRow("HASH", "ACTOR", "SEQ", "MESSAGE", "PAGES", "CARDS", "INSTANCES")
			for _, e := range entries {
				tbl.AddRow(e.Hash[:8], e.Actor, e.Seq, e.Message, e.Pages, e.Cards, e.Instances)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return err
		},
	}
	cmd.Flags().BoolVar(&history, "history", false, "list every change")
	return cmd
}

func printSceneSummary(out io.Writer, sc *scene.Scene) {
	fmt.Fprintf(out, "title: %s\n", sc.Title)
	fmt.Fprintf(out, "cards: %d\n", len(sc.Cards))
	tbl := newTable()
	tbl.AddRow("#", "PAGE", "STROKES", "INSTANCES")
	for i, id := range sc.PageOrder {
		page, ok := sc.Page(id)
		if !ok {
			continue
		}
		tbl.AddRow(i, id, len(page.Strokes), len(sc.InstancesOnPage(id)))
	}
	fmt.Fprintln(out, tbl)
}

func newTable() *uitable.Table {
	tbl := uitable.New()
	tbl.Separator = "  "
	return tbl
}

func newSceneReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <file> <script>",
		Short: "Apply a recorded pointer input script to a scene file",
		Long: `Apply a recorded pointer input script to a scene file, creating the file
when it does not exist. Script lines are "tool <name> [calendar ids]",
"down|move|up <x> <y>", "next" and "prev". Use - to read the script from stdin.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadSceneFile(args[0])
			if errors.Is(err, os.ErrNotExist) {
				store, err = scene.New()
			}
			if err != nil {
				return err
			}

			var script io.Reader = cmd.InOrStdin()
			if args[1] != "-" {
				f, err := os.Open(args[1])
				if err != nil {
					return fmt.Errorf("failed to open script: %w", err)
				}
				defer f.Close()
				script = f
			}

			nav, err := scene.NewNavigator(store)
			if err != nil {
				return err
			}
			d := tool.NewDispatcher(store, nav, scene.NewSelection(store))
			n, err := tool.Replay(d, script)
			if err != nil {
				return err
			}
			slog.Info("replayed", "commands", n, "page", nav.CurrentPage())
			return saveSceneFile(args[0], store)
		},
	}
	return cmd
}

func newRelayClient(cmd *cobra.Command) (*relay.Client, error) {
	if addr, _ := cmd.Flags().GetString("relay"); addr != "" {
		return relay.NewClient(addr)
	}
	return relay.NewClient(cfg.Relay.Addr)
}

func newScenePullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull <scene> <file>",
		Short: "Download the latest copy of a scene from the relay",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newRelayClient(cmd)
			if err != nil {
				return err
			}
			raw, err := c.Latest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			store, err := scene.Load(raw)
			if err != nil {
				return err
			}
			slog.Info("established base doc", "heads", store.Heads())
			return saveSceneFile(args[1], store)
		},
	}
}

func newSceneSyncCmd() *cobra.Command {
	var saveInterval time.Duration
	var create bool
	cmd := &cobra.Command{
		Use:   "sync <scene> <file>",
		Short: "Keep a local scene file in sync with the relay until interrupted",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sceneID, path := args[0], args[1]
			store, err := loadSceneFile(path)
			if err != nil {
				return err
			}
			c, err := newRelayClient(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()

			if create {
				if err := c.Create(ctx, sceneID, store.Save()); err != nil && !errors.Is(err, relay.ErrSceneExists) {
					return err
				}
			}

			done := make(chan struct{})
			go func() {
				defer close(done)
				c.SyncContinuously(ctx, sceneID, func() relay.Peer { return store.NewSyncPeer() })
			}()

			t := time.NewTicker(saveInterval)
			defer t.Stop()
			for {
				select {
				case <-t.C:
					if err := saveSceneFile(path, store); err != nil {
						slog.Error("failed to save", "err", err)
					}
				case <-done:
					slog.Info("dumped", "dump", path, "heads", store.Heads())
					return saveSceneFile(path, store)
				}
			}
		},
	}
	cmd.Flags().DurationVar(&saveInterval, "save-interval", 5*time.Second, "how often to write the file while syncing")
	cmd.Flags().BoolVar(&create, "create", false, "upload the file as a new scene first")
	return cmd
}

func newSceneVizCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "viz <file>",
		Short: "Render the change history of a scene as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := loadSceneFile(args[0])
			if err != nil {
				return err
			}
			doc, err := store.ForkDoc()
			if err != nil {
				return err
			}
			if out == "" {
				if out, err = viz.RenderToTemp(doc); err != nil {
					return err
				}
			} else if err := viz.RenderToFile(doc, out); err != nil {
				return err
			}
			slog.Info("rendered", "path", "file://"+out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "output path (default: a temp file)")
	return cmd
}
