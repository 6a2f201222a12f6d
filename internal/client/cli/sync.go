package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ordokr/LMS-sub004/internal/client/iocli"
	"github.com/ordokr/LMS-sub004/pkg/api"
)

func (c *Cli) runSync(ctx context.Context, args []string) error {
	if _, err := parse(c.flags("sync", ""), args, 0); err != nil {
		return err
	}

	c.io.Println("Running full sync...")

	summary, err := c.apiClient.RunSync(ctx)
	if err != nil {
		return fmt.Errorf("sync failed: %w", err)
	}

	printSummary(c.io, summary)
	if !summary.Success && !summary.Skipped {
		return fmt.Errorf("sync finished with %d error(s)", len(summary.Errors))
	}
	return nil
}

func printSummary(out iocli.IO, s *api.SyncSummary) {
	if s.Skipped {
		out.Printf("Sync skipped: %s\n", s.SkipReason)
		return
	}

	out.Printf("Started:  %s\n", s.StartedAt.Format(time.RFC3339))
	out.Printf("Duration: %s\n", s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
	out.Println()

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TYPE\tSYNCED\tFAILED\tSKIPPED\tQUEUED")
	for _, k := range s.Kinds {
		_, _ = fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", k.Kind, k.Succeeded, k.Failed, k.Skipped, k.Queued)
	}
	_ = tw.Flush()

	if len(s.Errors) > 0 {
		out.Println()
		out.Println("Errors:")
		for _, e := range s.Errors {
			out.Printf("  - %s\n", e)
		}
		return
	}

	out.Println()
	out.Println("✓ All entities synchronized")
}

func printSyncStatus(out iocli.IO, st *api.SyncStatus) {
	switch {
	case st.Running:
		out.Printf("Full sync in progress since %s\n", st.LastStartedAt.Format(time.RFC3339))
	case st.LastFullSync.IsZero():
		out.Println("No full sync has completed yet")
	default:
		out.Printf("Last full sync: %s\n", st.LastFullSync.Format(time.RFC3339))
	}

	if st.LastSummary != nil && st.LastSummary.Skipped {
		out.Printf("Last run skipped: %s\n", st.LastSummary.SkipReason)
	}

	statuses := make([]string, 0, len(st.Queue))
	for status := range st.Queue {
		statuses = append(statuses, status)
	}
	sort.Strings(statuses)

	parts := make([]string, 0, len(statuses))
	for _, status := range statuses {
		parts = append(parts, fmt.Sprintf("%s=%d", status, st.Queue[status]))
	}
	if len(parts) == 0 {
		parts = append(parts, "empty")
	}
	out.Printf("Retry queue: %s\n", strings.Join(parts, " "))

	if len(st.RecentErrors) > 0 {
		out.Println("Recent errors:")
		for _, e := range st.RecentErrors {
			out.Printf("  - %s\n", e)
		}
	}
}
