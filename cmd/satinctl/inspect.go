package main

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Print document counts per collection",
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	s, err := openStack(false)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	counters := []struct {
		name  string
		count func() (int, error)
	}{
		{"projects", func() (int, error) { return s.repos.Projects.Count(ctx, nil) }},
		{"images", func() (int, error) { return s.repos.Images.Count(ctx, nil) }},
		{"annotations", func() (int, error) { return s.repos.Annotations.Count(ctx, nil) }},
		{"tags", func() (int, error) { return s.repos.Tags.Count(ctx, nil) }},
		{"tasks", func() (int, error) { return s.repos.Tasks.Count(ctx, nil) }},
		{"ml jobs", func() (int, error) { return s.repos.MLJobs.Count(ctx, nil) }},
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Store: %s (%s)\n\n", s.cfg.Store.Path, s.cfg.Store.Driver)

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "COLLECTION\tDOCUMENTS")
	for _, c := range counters {
		n, err := c.count()
		if err != nil {
			return fmt.Errorf("count %s: %w", c.name, err)
		}
		fmt.Fprintf(w, "%s\t%d\n", c.name, n)
	}
	return w.Flush()
}
