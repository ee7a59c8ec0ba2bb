package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ilbumi/satin/internal/service"
)

var treeRootID string

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Work with the tag hierarchy",
}

var tagsTreeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Print the tag hierarchy",
	RunE:  runTagsTree,
}

func init() {
	tagsTreeCmd.Flags().StringVar(&treeRootID, "root", "", "Only print the subtree under this tag ID")
	tagsCmd.AddCommand(tagsTreeCmd)
}

func runTagsTree(cmd *cobra.Command, args []string) error {
	s, err := openStack(false)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	tags := service.NewTagService(s.repos, s.deps())
	roots, err := tags.GetTree(ctx, treeRootID)
	if err != nil {
		return err
	}
	if len(roots) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no tags")
		return nil
	}
	for _, root := range roots {
		printTagNode(cmd.OutOrStdout(), root, 0)
	}
	return nil
}

func printTagNode(w io.Writer, node *service.TagNode, level int) {
	fmt.Fprintf(w, "%s%s  (%s, used %d)\n", strings.Repeat("  ", level), node.Name, node.ID, node.UsageCount)
	for _, child := range node.Children {
		printTagNode(w, child, level+1)
	}
}
