package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Dolu89/ghost-relay/internal/nostr"
	"github.com/Dolu89/ghost-relay/internal/store"
)

// EventsOptions holds flags for the events command.
type EventsOptions struct {
	*RootOptions
	Database string
	Limit    int
	ID       string
}

// EventsResult is the JSON payload of the events command.
type EventsResult struct {
	Database string        `json:"database"`
	Count    int           `json:"count"`
	Total    int           `json:"total"`
	Events   []nostr.Event `json:"events"`
}

// NewEventsCommand creates the events command.
func NewEventsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EventsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "events",
		Short: "List events waiting for a subscriber",
		Long: `List the events currently held in a relay database, newest first.

Only events that no subscription has consumed yet are listed.

Exit codes:
  0 - Listed successfully
  1 - Event given by --id is not stored
  2 - Command error (database not found, etc.)

Examples:
  ghost-relay events --db ./ghost.db
  ghost-relay events --db ./ghost.db --limit 10 --format json
  ghost-relay events --db ./ghost.db --id <event id>`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of events to list (0 = all)")
	cmd.Flags().StringVar(&opts.ID, "id", "", "show only the event with this id")

	return cmd
}

func runEvents(opts *EventsOptions, cmd *cobra.Command) error {
	if opts.Limit < 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid limit %d: must not be negative", opts.Limit))
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if _, err := os.Stat(opts.Database); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return formatter.Fail(ExitCommandError, ErrCodeDatabaseNotFound,
				fmt.Sprintf("database not found: %s", opts.Database),
				map[string]string{"path": opts.Database})
		}
		return WrapExitError(ExitCommandError, "failed to stat database", err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()
	formatter.VerboseLog("opened %s", opts.Database)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	total, err := st.CountEvents(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to count events", err)
	}

	events, err := readEvents(ctx, st, opts)
	if errors.Is(err, sql.ErrNoRows) {
		return formatter.Fail(ExitFailure, ErrCodeEventNotFound,
			fmt.Sprintf("event not found: %s", opts.ID),
			map[string]string{"id": opts.ID})
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read events", err)
	}

	if opts.Format == "json" {
		return formatter.Success(EventsResult{
			Database: opts.Database,
			Count:    len(events),
			Total:    total,
			Events:   events,
		})
	}

	if len(events) == 0 {
		return formatter.Success("No events stored.")
	}
	if err := writeEventsTable(cmd.OutOrStdout(), events); err != nil {
		return err
	}
	if opts.ID == "" && len(events) < total {
		fmt.Fprintf(cmd.OutOrStdout(), "Showing %d of %d events.\n", len(events), total)
	}
	return nil
}

// readEvents returns the single event named by --id, or the newest events
// up to --limit. The result is never nil.
func readEvents(ctx context.Context, st *store.Store, opts *EventsOptions) ([]nostr.Event, error) {
	if opts.ID != "" {
		ev, err := st.ReadEvent(ctx, opts.ID)
		if err != nil {
			return nil, err
		}
		return []nostr.Event{ev}, nil
	}
	return st.ReadRecentEvents(ctx, opts.Limit)
}

const contentPreview = 40

func writeEventsTable(w io.Writer, events []nostr.Event) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED_AT\tKIND\tPUBKEY\tCONTENT")
	for _, ev := range events {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%q\n", ev.ID, ev.CreatedAt, ev.Kind, ev.PubKey, preview(ev.Content))
	}
	return tw.Flush()
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= contentPreview {
		return s
	}
	return string(r[:contentPreview]) + "..."
}
