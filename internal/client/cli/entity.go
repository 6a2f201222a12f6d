package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ordokr/LMS-sub004/internal/client/iocli"
	"github.com/ordokr/LMS-sub004/internal/models"
	"github.com/ordokr/LMS-sub004/internal/vclock"
	"github.com/ordokr/LMS-sub004/pkg/api"
)

func (c *Cli) runEntities(ctx context.Context, args []string) error {
	fs := c.flags("entities", "[-type T] [-status S] [-limit N]")
	kind := fs.String("type", "", "entity type filter")
	status := fs.String("status", "", "status filter (pending_sync, synced, conflict, error)")
	limit := fs.Int("limit", 0, "maximum number of entities")
	if _, err := parse(fs, args, 0); err != nil {
		return err
	}

	states, err := c.apiClient.ListEntities(ctx, *kind, *status, *limit)
	if err != nil {
		return err
	}
	if len(states) == 0 {
		c.io.Println("No entities found.")
		return nil
	}

	tw := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TYPE\tID\tSTATUS\tLAST SYNC")
	for _, s := range states {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Kind, s.EntityID, s.Status, s.LastSync.Format(time.RFC3339))
	}
	_ = tw.Flush()
	c.io.Printf("\nTotal: %d\n", len(states))
	return nil
}

func (c *Cli) runEntity(ctx context.Context, args []string) error {
	pos, err := parse(c.flags("entity", "<type> <id>"), args, 2)
	if err != nil {
		return err
	}

	state, err := c.apiClient.GetEntity(ctx, pos[0], pos[1])
	if err != nil {
		return err
	}

	printState(c.io, state)
	return nil
}

func (c *Cli) runDetect(ctx context.Context, args []string) error {
	fs := c.flags("detect", "<type> <id> [-course-file F] [-forum-file F]")
	courseFile := fs.String("course-file", "", "course content to compare instead of fetching it")
	forumFile := fs.String("forum-file", "", "forum content to compare instead of fetching it")
	pos, err := parse(fs, args, 2)
	if err != nil {
		return err
	}

	var req *api.DetectRequest
	if *courseFile != "" || *forumFile != "" {
		req = &api.DetectRequest{}
		if req.Course, err = readOptionalFile(*courseFile); err != nil {
			return err
		}
		if req.Forum, err = readOptionalFile(*forumFile); err != nil {
			return err
		}
	}

	resp, err := c.apiClient.Detect(ctx, pos[0], pos[1], req)
	if err != nil {
		return err
	}

	if resp.Conflict {
		c.io.Printf("⚠️  %s:%s is in conflict\n", resp.Kind, resp.EntityID)
		c.io.Printf("Run 'lmssync resolve %s %s <strategy>' to resolve it.\n", resp.Kind, resp.EntityID)
		return nil
	}
	c.io.Printf("✓ %s:%s has no conflict (status: %s)\n", resp.Kind, resp.EntityID, resp.Status)
	return nil
}

func (c *Cli) runEvent(ctx context.Context, args []string) error {
	fs := c.flags("event", "<type> <id> -source SYSTEM [-op OPERATION]")
	source := fs.String("source", "", "system where the change happened (local, course, forum)")
	op := fs.String("op", "update", "operation (create, update, delete, custom)")
	pos, err := parse(fs, args, 2)
	if err != nil {
		return err
	}

	state, err := c.apiClient.RecordEvent(ctx, pos[0], pos[1], api.EventRequest{Source: *source, Operation: *op})
	if err != nil {
		return err
	}

	c.io.Printf("✓ Recorded %s on %s\n", *op, *source)
	printState(c.io, state)
	return nil
}

func (c *Cli) runResolve(ctx context.Context, args []string) error {
	pos, err := parse(c.flags("resolve", "<type> <id> <prefer_course|prefer_forum|merge>"), args, 3)
	if err != nil {
		return err
	}

	state, err := c.apiClient.Resolve(ctx, pos[0], pos[1], pos[2])
	if err != nil {
		return err
	}

	c.io.Printf("✓ Conflict resolved with %s\n", pos[2])
	printState(c.io, state)
	return nil
}

func (c *Cli) runTransfer(ctx context.Context, args []string) error {
	fs := c.flags("transfer", "<type> <id> [-direction D]")
	direction := fs.String("direction", string(models.DirectionCourseToForum), "course_to_forum or forum_to_course")
	pos, err := parse(fs, args, 2)
	if err != nil {
		return err
	}

	res, err := c.apiClient.Transfer(ctx, pos[0], pos[1], *direction)
	if err != nil {
		return err
	}

	c.io.Printf("✓ Transferred %d bytes of %s:%s (%s)\n", res.Bytes, res.Kind, res.EntityID, res.Direction)
	return nil
}

func (c *Cli) runHistory(ctx context.Context, args []string) error {
	fs := c.flags("history", "<type> <id> [-limit N]")
	limit := fs.Int("limit", 20, "maximum number of transactions")
	pos, err := parse(fs, args, 2)
	if err != nil {
		return err
	}

	txs, err := c.apiClient.Transactions(ctx, pos[0], pos[1], *limit)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		c.io.Println("No transactions recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "STARTED\tOPERATION\tSOURCE\tTARGET\tSTATUS\tERROR")
	for _, tx := range txs {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tx.StartedAt.Format(time.RFC3339), tx.Operation, tx.Source, tx.Target, tx.Status, tx.Error)
	}
	_ = tw.Flush()
	return nil
}

func printState(out iocli.IO, s *models.EntityVersionState) {
	out.Printf("Entity:    %s:%s\n", s.Kind, s.EntityID)
	out.Printf("Status:    %s\n", s.Status)
	out.Printf("Last sync: %s\n", s.LastSync.Format(time.RFC3339))
	out.Printf("Local:     %s\n", formatVector(s.Local))
	out.Printf("Course:    %s\n", formatVector(s.Course))
	out.Printf("Forum:     %s\n", formatVector(s.Forum))
}

// formatVector печатает вектор с узлами в лексикографическом порядке
func formatVector(v vclock.VersionVector) string {
	if len(v) == 0 {
		return "{}"
	}

	nodes := make([]string, 0, len(v))
	for node := range v {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	parts := make([]string, 0, len(nodes))
	for _, node := range nodes {
		parts = append(parts, fmt.Sprintf("%s:%d", node, v[node]))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func readOptionalFile(path string) (*string, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	content := string(data)
	return &content, nil
}
