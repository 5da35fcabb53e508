package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voidreamer/maya-usd-author/internal/editor"
	"github.com/voidreamer/maya-usd-author/internal/scene"
	"github.com/voidreamer/maya-usd-author/internal/sdftext"
)

var setCmd = &cobra.Command{
	Use:   "set",
	Short: "Author node metadata and attribute values",
}

var setKindCmd = &cobra.Command{
	Use:   "kind <path> <kind>",
	Short: "Set the kind of a prim (component, subcomponent, assembly, group)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := scene.ParsePath(args[0])
		if err != nil {
			return err
		}
		return runEdit(func(ed *editor.Editor) editor.Result {
			return ed.SetKind(p, args[1])
		})
	},
}

var setPurposeCmd = &cobra.Command{
	Use:   "purpose <path> <purpose>",
	Short: "Set the purpose of a prim (default, render, proxy, guide)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := scene.ParsePath(args[0])
		if err != nil {
			return err
		}
		return runEdit(func(ed *editor.Editor) editor.Result {
			return ed.SetPurpose(p, args[1])
		})
	},
}

var setVariantCmd = &cobra.Command{
	Use:   "variant <path> <set> <variant>",
	Short: "Select a variant in one of the prim's variant sets",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := scene.ParsePath(args[0])
		if err != nil {
			return err
		}
		return runEdit(func(ed *editor.Editor) editor.Result {
			return ed.SelectVariant(p, args[1], args[2])
		})
	},
}

var setAttrCmd = &cobra.Command{
	Use:   "attr <path> <name> <value>",
	Short: "Set an attribute value from a usda literal",
	Long: `Set an attribute's default value, or with --time one time sample.
The value is a usda literal: 0.5, "name", true, (1, 0, 0), [1, 2, 3].`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := scene.ParsePath(args[0])
		if err != nil {
			return err
		}
		value, err := sdftext.ParseValue(args[2])
		if err != nil {
			return fmt.Errorf("parse value: %w", err)
		}
		var at *float64
		if cmd.Flags().Changed("time") {
			t, _ := cmd.Flags().GetFloat64("time")
			at = &t
		}
		return runEdit(func(ed *editor.Editor) editor.Result {
			return ed.SetAttributeValue(p, args[1], value, at)
		})
	},
}

func init() {
	setAttrCmd.Flags().Float64("time", 0, "author a time sample at this time instead of the default value")
	setCmd.AddCommand(setKindCmd, setPurposeCmd, setVariantCmd, setAttrCmd)
	rootCmd.AddCommand(setCmd)
}
