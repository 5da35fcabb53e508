package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voidreamer/maya-usd-author/internal/editor"
	"github.com/voidreamer/maya-usd-author/internal/scene"
	"github.com/voidreamer/maya-usd-author/internal/sdftext"
)

var primvarCmd = &cobra.Command{
	Use:   "primvar",
	Short: "Add and remove primvars",
}

var primvarAddCmd = &cobra.Command{
	Use:   "add <path> <name> <type> <value>",
	Short: "Add a primvar with a value and interpolation",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := scene.ParsePath(args[0])
		if err != nil {
			return err
		}
		value, err := sdftext.ParseValue(args[3])
		if err != nil {
			return fmt.Errorf("parse value: %w", err)
		}
		interp, _ := cmd.Flags().GetString("interpolation")
		return runEdit(func(ed *editor.Editor) editor.Result {
			return ed.AddPrimvar(p, args[1], args[2], value, interp)
		})
	},
}

var primvarRmCmd = &cobra.Command{
	Use:   "rm <path> <name>",
	Short: "Remove a primvar",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := scene.ParsePath(args[0])
		if err != nil {
			return err
		}
		return runEdit(func(ed *editor.Editor) editor.Result {
			return ed.RemovePrimvar(p, args[1])
		})
	},
}

func init() {
	primvarAddCmd.Flags().StringP("interpolation", "i", "constant",
		"interpolation: constant, uniform, vertex, varying or faceVarying")
	primvarCmd.AddCommand(primvarAddCmd, primvarRmCmd)
	rootCmd.AddCommand(primvarCmd)
}
