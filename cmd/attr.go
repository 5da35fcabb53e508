package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voidreamer/maya-usd-author/internal/editor"
	"github.com/voidreamer/maya-usd-author/internal/scene"
	"github.com/voidreamer/maya-usd-author/internal/sdftext"
)

var attrCmd = &cobra.Command{
	Use:   "attr",
	Short: "Add and remove attributes",
}

var attrAddCmd = &cobra.Command{
	Use:   "add <path> <name> <type> [value]",
	Short: "Add an attribute, optionally with an initial value",
	Args:  cobra.RangeArgs(3, 4),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := scene.ParsePath(args[0])
		if err != nil {
			return err
		}
		var value any
		if len(args) == 4 {
			v, err := sdftext.ParseValue(args[3])
			if err != nil {
				return fmt.Errorf("parse value: %w", err)
			}
			value = v
		}
		return runEdit(func(ed *editor.Editor) editor.Result {
			return ed.AddAttribute(p, args[1], args[2], value)
		})
	},
}

var attrRmCmd = &cobra.Command{
	Use:   "rm <path> <name>",
	Short: "Remove an attribute",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := scene.ParsePath(args[0])
		if err != nil {
			return err
		}
		return runEdit(func(ed *editor.Editor) editor.Result {
			return ed.RemoveAttribute(p, args[1])
		})
	},
}

func init() {
	attrCmd.AddCommand(attrAddCmd, attrRmCmd)
	rootCmd.AddCommand(attrCmd)
}
