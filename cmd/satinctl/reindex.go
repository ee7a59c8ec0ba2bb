package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the search index from the store",
	RunE:  runReindex,
}

func runReindex(cmd *cobra.Command, args []string) error {
	s, err := openStack(true)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	start := time.Now()
	if err := s.search.ReindexAll(ctx); err != nil {
		return fmt.Errorf("reindex: %w", err)
	}
	count, err := s.search.DocumentCount()
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d documents in %s\n", count, time.Since(start).Round(time.Millisecond))
	return nil
}
