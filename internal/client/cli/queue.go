package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/pkg/api"
)

func (c *Cli) runEnqueue(ctx context.Context, args []string) error {
	fs := c.flags("enqueue", "<type> <id> [-direction D] [-max-attempts N]")
	direction := fs.String("direction", string(models.DirectionCourseToForum), "course_to_forum or forum_to_course")
	maxAttempts := fs.Int("max-attempts", 0, "attempt limit (0 - server default)")
	pos, err := parse(fs, args, 2)
	if err != nil {
		return err
	}

	item, err := c.apiClient.Enqueue(ctx, api.EnqueueRequest{
		Kind:        pos[0],
		EntityID:    pos[1],
		Direction:   *direction,
		MaxAttempts: *maxAttempts,
	})
	if err != nil {
		return err
	}

	c.io.Printf("✓ Queued %s:%s as %s (max attempts: %d)\n", item.Kind, item.EntityID, item.ID, item.MaxAttempts)
	return nil
}

func (c *Cli) runQueue(ctx context.Context, args []string) error {
	if len(args) > 0 && args[0] == "stats" {
		return c.runQueueStats(ctx, args[1:])
	}

	fs := c.flags("queue", "[-status S] [-limit N] | stats")
	status := fs.String("status", "", "status filter (pending, processing, completed, failed)")
	limit := fs.Int("limit", 50, "maximum number of items")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	items, err := c.apiClient.ListQueue(ctx, *status, *limit)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		c.io.Println("Retry queue is empty.")
		return nil
	}

	tw := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tENTITY\tDIRECTION\tSTATUS\tATTEMPTS\tUPDATED\tERROR")
	for _, it := range items {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			it.ID, models.StateKey(it.Kind, it.EntityID), it.Direction, it.Status,
			it.Attempts, it.MaxAttempts, it.UpdatedAt.Format(time.RFC3339), it.LastError)
	}
	_ = tw.Flush()
	return nil
}

func (c *Cli) runQueueStats(ctx context.Context, args []string) error {
	if _, err := parse(c.flags("queue stats", ""), args, 0); err != nil {
		return err
	}

	stats, err := c.apiClient.QueueStats(ctx)
	if err != nil {
		return err
	}

	for _, status := range []models.QueueStatus{models.QueuePending, models.QueueProcessing, models.QueueCompleted, models.QueueFailed} {
		c.io.Printf("%-11s %d\n", status, stats[string(status)])
	}
	return nil
}

func (c *Cli) runRetry(ctx context.Context, args []string) error {
	pos, err := parse(c.flags("retry", "<queue-id>"), args, 1)
	if err != nil {
		return err
	}

	item, err := c.apiClient.RetryQueueItem(ctx, pos[0])
	if err != nil {
		return err
	}

	c.io.Printf("✓ Queue item %s is %s again\n", item.ID, item.Status)
	return nil
}

func (c *Cli) runDrain(ctx context.Context, args []string) error {
	if _, err := parse(c.flags("drain", ""), args, 0); err != nil {
		return err
	}

	res, err := c.apiClient.DrainQueue(ctx)
	if err != nil {
		return err
	}

	c.io.Printf("Claimed %d: completed %d, retried %d, failed %d\n", res.Claimed, res.Completed, res.Retried, res.Failed)
	if res.Released > 0 {
		c.io.Printf("Released %d interrupted item(s) back to pending\n", res.Released)
	}
	return nil
}
