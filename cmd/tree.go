package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voidreamer/maya-usd-author/internal/editor"
	"github.com/voidreamer/maya-usd-author/internal/scene"
	"github.com/voidreamer/maya-usd-author/internal/treeview"
)

var treeCmd = &cobra.Command{
	Use:   "tree [path]",
	Short: "Print the stage hierarchy",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		depth, _ := cmd.Flags().GetInt("depth")
		needle, _ := cmd.Flags().GetString("filter")

		start := scene.RootPath
		if len(args) == 1 {
			p, err := scene.ParsePath(args[0])
			if err != nil {
				return err
			}
			start = p
		}

		ed, err := openEditor()
		if err != nil {
			return err
		}
		defer func() { _ = ed.Close() }()

		proj := ed.Projection()
		if needle != "" {
			if err := proj.Filter(cmd.Context(), needle); err != nil {
				return fmt.Errorf("filter: %w", err)
			}
		} else if err := expandBelow(proj, start, depth); err != nil {
			return err
		}

		fmt.Println(start)
		printRows(os.Stdout, proj.Rows(), start, ed)
		return nil
	},
}

// expandBelow expands start, its ancestors and every populated node up
// to levels below start, so the refreshed rows render that subtree.
func expandBelow(pr *treeview.Projection, start scene.Path, levels int) error {
	n := pr.NodeAt(start)
	if n == nil {
		return fmt.Errorf("no prim at %s", start)
	}
	for _, a := range start.Ancestors() {
		pr.TrackExpanded(a, true)
	}
	pr.TrackExpanded(start, true)

	// Nodes at depth d expand to reveal rows at d+1, so stop one
	// tier short of the bound.
	max := start.Depth() + levels
	var walk func(*treeview.Node) error
	walk = func(n *treeview.Node) error {
		if n.Path().Depth()+1 >= max {
			return nil
		}
		children, err := n.Children()
		if err != nil {
			return err
		}
		for _, c := range children {
			has, err := c.HasChildren()
			if err != nil || !has {
				continue
			}
			pr.TrackExpanded(c.Path(), true)
			if err := walk(c); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(n); err != nil {
		return err
	}
	return pr.Refresh()
}

// printRows renders the visible rows under start with box-drawing
// connectors. open tracks, per depth, whether a later sibling still
// follows, which decides the continuation bars in the prefix.
func printRows(w io.Writer, rows []treeview.Row, start scene.Path, ed *editor.Editor) {
	base := start.Depth()
	open := map[int]bool{}
	for i, row := range rows {
		if !start.IsAncestorOf(row.Path) {
			continue
		}
		isLast := true
		for _, later := range rows[i+1:] {
			if later.Depth < row.Depth {
				break
			}
			if later.Depth == row.Depth {
				isLast = false
				break
			}
		}

		var b strings.Builder
		for d := base + 1; d < row.Depth; d++ {
			if open[d] {
				b.WriteString("│   ")
			} else {
				b.WriteString("    ")
			}
		}
		if isLast {
			b.WriteString("└── ")
		} else {
			b.WriteString("├── ")
		}
		open[row.Depth] = !isLast

		label := row.Name
		if info, err := ed.Info(row.Path); err == nil && info.TypeName != "" {
			label = fmt.Sprintf("%s [%s]", row.Name, info.TypeName)
		}
		if row.HasChildren && !row.Expanded {
			label += " ..."
		}
		fmt.Fprintf(w, "%s%s\n", b.String(), label)
	}
}

func init() {
	treeCmd.Flags().Int("depth", 3, "levels to expand below the start path")
	treeCmd.Flags().String("filter", "", "show only nodes whose name contains this substring, plus their ancestors")
	rootCmd.AddCommand(treeCmd)
}
