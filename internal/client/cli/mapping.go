package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/ordokr/LMS-sub004/pkg/api"
)

func (c *Cli) runMap(ctx context.Context, args []string) error {
	fs := c.flags("map", "<type> <id> [-course ID] [-forum ID]")
	course := fs.String("course", "", "identifier on the course platform")
	forum := fs.String("forum", "", "identifier on the forum platform")
	pos, err := parse(fs, args, 2)
	if err != nil {
		return err
	}

	m, err := c.apiClient.PutMapping(ctx, pos[0], pos[1], api.MappingRequest{
		CourseRemoteID: *course,
		ForumRemoteID:  *forum,
	})
	if err != nil {
		return err
	}

	c.io.Printf("✓ %s:%s -> course %q, forum %q\n", m.Kind, m.EntityID, m.CourseRemoteID, m.ForumRemoteID)
	return nil
}

func (c *Cli) runMappings(ctx context.Context, args []string) error {
	pos, err := parse(c.flags("mappings", "<type>"), args, 1)
	if err != nil {
		return err
	}

	mappings, err := c.apiClient.ListMappings(ctx, pos[0])
	if err != nil {
		return err
	}
	if len(mappings) == 0 {
		c.io.Printf("No %s mappings.\n", pos[0])
		return nil
	}

	tw := tabwriter.NewWriter(c.io, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tCOURSE\tFORUM")
	for _, m := range mappings {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", m.EntityID, m.CourseRemoteID, m.ForumRemoteID)
	}
	_ = tw.Flush()
	return nil
}
