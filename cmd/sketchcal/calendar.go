package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/astromechza/sketchy-calendar/pkg/calendar"
)

func newCalendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Sync and query the local calendar cache",
	}
	cmd.AddCommand(newCalendarSyncCmd(), newCalendarDayCmd(), newCalendarListCmd(), newCalendarAuthCmd())
	return cmd
}

func openCache() (*calendar.Cache, error) {
	if err := os.MkdirAll(cfg.Calendar.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return calendar.OpenCache(cfg.Calendar.CacheDir)
}

func oauthConfig() *oauth2.Config {
	c := calendar.OAuthConfig(cfg.Calendar.ClientID, cfg.Calendar.ClientSecret)
	c.RedirectURL = "http://localhost"
	return c
}

func newEngine(ctx context.Context, cache *calendar.Cache) (*calendar.Engine, error) {
	ts, err := cache.Tokens().TokenSource(ctx, oauthConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: run 'sketchcal calendar auth' first", err)
	}
	src, err := calendar.NewGoogleSource(ctx, ts, cfg.Calendar.PageSize)
	if err != nil {
		return nil, err
	}
	return calendar.NewEngine(src, cache,
		calendar.WithMaxPages(cfg.Calendar.MaxPages),
		calendar.WithConcurrency(cfg.Calendar.Concurrency),
	), nil
}

func newCalendarSyncCmd() *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Bring the local cache up to date with the remote calendars",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			ctx, cancel := signalContext()
			defer cancel()
			engine, err := newEngine(ctx, cache)
			if err != nil {
				return err
			}
			if watch {
				r := &calendar.Runner{Engine: engine, Interval: cfg.Calendar.SyncInterval}
				r.Run(ctx)
				return nil
			}
			results, err := engine.SyncAll(ctx)
			tbl := newTable()
			tbl.AddRow("CALENDAR", "REQUESTS", "EVENTS", "FULL")
			for _, r := range results {
				tbl.AddRow(r.CalendarID, r.Requests, r.Events, r.FullResync)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return err
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "keep syncing on calendar.sync_interval until interrupted")
	return cmd
}

func newCalendarListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cached calendars",
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			tbl := newTable()
			tbl.AddRow("ID", "SUMMARY", "EVENTS", "SYNCED")
			for _, m := range cache.Calendars() {
				tbl.AddRow(m.ID, m.Summary, cache.EventCount(m.ID), cache.Cursor(m.ID) != "")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), tbl)
			return err
		},
	}
}

func newCalendarDayCmd() *cobra.Command {
	var date string
	var ids []string
	cmd := &cobra.Command{
		Use:   "day",
		Short: "Print the events of one local day",
		RunE: func(cmd *cobra.Command, args []string) error {
			day := time.Now()
			if date != "" {
				d, err := time.ParseInLocation(time.DateOnly, date, time.Local)
				if err != nil {
					return fmt.Errorf("invalid --date: %w", err)
				}
				day = d
			}
			cache, err := openCache()
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				for _, m := range cache.Calendars() {
					ids = append(ids, m.ID)
				}
			}
			printEvents(cmd.OutOrStdout(), calendar.NewDayQuery(cache).Query(ids, day))
			return nil
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day as YYYY-MM-DD (default: today)")
	cmd.Flags().StringSliceVar(&ids, "calendars", nil, "calendar ids (default: all cached)")
	return cmd
}

func printEvents(out io.Writer, events []calendar.Event) {
	if len(events) == 0 {
		return
	}
	tbl := newTable()
	for _, e := range events {
		when := "all day"
		if !e.Start.IsAllDay() {
			start, _ := e.Start.Resolve(time.Local)
			end, _ := e.End.Resolve(time.Local)
			when = start.Format("15:04") + "-" + end.Format("15:04")
		}
		tbl.AddRow(when, e.Summary, e.CalendarID)
	}
	fmt.Fprintln(out, tbl)
}

func newCalendarAuthCmd() *cobra.Command {
	var tokenFile string
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Store calendar credentials",
		Long: `Store calendar credentials, either by importing an OAuth token JSON file
with --token-file or by pasting the authorization code shown after visiting the
printed URL.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := openCache()
			if err != nil {
				return err
			}
			var tok *oauth2.Token
			if tokenFile != "" {
				if tok, err = readToken(tokenFile); err != nil {
					return err
				}
			} else if tok, err = exchangeCode(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			if err := cache.Tokens().Save(tok); err != nil {
				return err
			}
			slog.Info("saved calendar credentials", "expiry", tok.Expiry)
			return nil
		},
	}
	cmd.Flags().StringVar(&tokenFile, "token-file", "", "import an OAuth token JSON file")
	return cmd
}

func readToken(path string) (*oauth2.Token, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	tok := &oauth2.Token{}
	if err := json.Unmarshal(raw, tok); err != nil {
		return nil, fmt.Errorf("failed to decode token file: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("token file has neither an access nor a refresh token")
	}
	return tok, nil
}

func exchangeCode(ctx context.Context, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	if cfg.Calendar.ClientID == "" {
		return nil, fmt.Errorf("calendar.client_id is not configured")
	}
	c := oauthConfig()
	fmt.Fprintf(out, "Visit this URL and paste the code parameter of the page you are sent to:\n%s\n> ",
		c.AuthCodeURL("sketchcal", oauth2.AccessTypeOffline))
	code, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && code == "" {
		return nil, fmt.Errorf("failed to read code: %w", err)
	}
	tok, err := c.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return tok, nil
}
