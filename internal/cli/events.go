package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/opencode-ai/missionctl/internal/db"
	"github.com/opencode-ai/missionctl/internal/models"
	"github.com/spf13/cobra"
)

var (
	eventsType   string
	eventsEntity string
	eventsID     string
	eventsSince  string
	eventsUntil  string
	eventsLimit  int
	eventsCursor string

	eventsPruneOlderThan string
)

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsPruneCmd)

	eventsCmd.Flags().StringVar(&eventsType, "type", "", "filter by event type (e.g. mission.started)")
	eventsCmd.Flags().StringVar(&eventsEntity, "entity", "", "filter by entity type: mission, sequence, system")
	eventsCmd.Flags().StringVar(&eventsID, "id", "", "filter by entity id")
	eventsCmd.Flags().StringVar(&eventsSince, "since", "", "only events newer than a duration (1h) or timestamp (RFC3339)")
	eventsCmd.Flags().StringVar(&eventsUntil, "until", "", "only events older than a duration or timestamp")
	eventsCmd.Flags().IntVar(&eventsLimit, "limit", 50, "maximum number of events")
	eventsCmd.Flags().StringVar(&eventsCursor, "cursor", "", "continue after this event id")

	eventsPruneCmd.Flags().StringVar(&eventsPruneOlderThan, "older-than", "720h", "delete events older than a duration or timestamp")
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show the mission journal",
	Long:  "Query the journal of mission state changes, sequence progress and rejected requests.",
	Example: `  missionctl events --type mission.finished
  missionctl events --entity sequence --since 1h
  missionctl events --jsonl --limit 500`,
	RunE: func(cmd *cobra.Command, args []string) error {
		query, err := buildEventQuery(time.Now())
		if err != nil {
			return err
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		page, err := db.NewEventRepository(database).Query(context.Background(), query)
		if err != nil {
			return fmt.Errorf("failed to query events: %w", err)
		}

		if IsJSONLOutput() {
			return WriteOutput(os.Stdout, page.Events)
		}
		if IsJSONOutput() {
			return WriteOutput(os.Stdout, map[string]any{
				"events":      page.Events,
				"next_cursor": page.NextCursor,
			})
		}

		if len(page.Events) == 0 {
			fmt.Fprintln(os.Stdout, "No events found.")
			return nil
		}

		rows := make([][]string, 0, len(page.Events))
		for _, event := range page.Events {
			rows = append(rows, []string{
				event.Timestamp.Local().Format("2006-01-02 15:04:05.000"),
				string(event.Type),
				string(event.EntityType),
				orDash(event.EntityID),
				formatMetadata(event.Metadata),
			})
		}
		if err := writeTable(os.Stdout, []string{"TIME", "TYPE", "ENTITY", "ID", "DETAILS"}, rows); err != nil {
			return err
		}
		if page.NextCursor != "" {
			fmt.Fprintf(os.Stdout, "\nMore events: missionctl events --cursor %s\n", page.NextCursor)
		}
		return nil
	},
}

var eventsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old journal entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		before, err := parseTimeFlag(eventsPruneOlderThan, time.Now())
		if err != nil {
			return fmt.Errorf("invalid --older-than: %w", err)
		}

		database, err := openDatabase()
		if err != nil {
			return err
		}
		defer database.Close()

		removed, err := db.NewEventRepository(database).Prune(context.Background(), before)
		if err != nil {
			return fmt.Errorf("failed to prune events: %w", err)
		}

		if IsJSONOutput() || IsJSONLOutput() {
			return WriteOutput(os.Stdout, map[string]any{"removed": removed, "before": before})
		}
		fmt.Fprintf(os.Stdout, "Removed %d event(s) older than %s\n", removed, before.Local().Format(time.RFC3339))
		return nil
	},
}

func buildEventQuery(now time.Time) (db.EventQuery, error) {
	query := db.EventQuery{
		Cursor: strings.TrimSpace(eventsCursor),
		Limit:  eventsLimit,
	}

	if v := strings.TrimSpace(eventsType); v != "" {
		t := models.EventType(v)
		query.Type = &t
	}
	if v := strings.TrimSpace(eventsEntity); v != "" {
		entity, err := parseEntityType(v)
		if err != nil {
			return query, err
		}
		query.EntityType = &entity
	}
	if v := strings.TrimSpace(eventsID); v != "" {
		query.EntityID = &v
	}
	if eventsSince != "" {
		since, err := parseTimeFlag(eventsSince, now)
		if err != nil {
			return query, fmt.Errorf("invalid --since: %w", err)
		}
		query.Since = &since
	}
	if eventsUntil != "" {
		until, err := parseTimeFlag(eventsUntil, now)
		if err != nil {
			return query, fmt.Errorf("invalid --until: %w", err)
		}
		query.Until = &until
	}
	return query, nil
}

func parseEntityType(value string) (models.EntityType, error) {
	switch models.EntityType(strings.ToLower(value)) {
	case models.EntityTypeMission:
		return models.EntityTypeMission, nil
	case models.EntityTypeSequence:
		return models.EntityTypeSequence, nil
	case models.EntityTypeSystem:
		return models.EntityTypeSystem, nil
	default:
		return "", fmt.Errorf("unknown entity type %q (expected mission, sequence or system)", value)
	}
}

// parseTimeFlag accepts a duration counted back from now, or an RFC3339 timestamp.
func parseTimeFlag(value string, now time.Time) (time.Time, error) {
	value = strings.TrimSpace(value)
	if d, err := time.ParseDuration(value); err == nil {
		if d < 0 {
			return time.Time{}, fmt.Errorf("duration must not be negative")
		}
		return now.Add(-d), nil
	}
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("expected a duration or RFC3339 timestamp, got %q", value)
	}
	return t, nil
}

func formatMetadata(meta map[string]string) string {
	if len(meta) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+meta[k])
	}
	return strings.Join(parts, " ")
}
