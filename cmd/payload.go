package cmd

import (
	"github.com/spf13/cobra"

	"github.com/voidreamer/maya-usd-author/internal/editor"
	"github.com/voidreamer/maya-usd-author/internal/scene"
)

var payloadCmd = &cobra.Command{
	Use:   "payload",
	Short: "Load and unload payload arcs",
}

var payloadLoadCmd = &cobra.Command{
	Use:   "load <path>",
	Short: "Load the payload on a prim, revealing its descendants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := scene.ParsePath(args[0])
		if err != nil {
			return err
		}
		return runEdit(func(ed *editor.Editor) editor.Result {
			return ed.LoadPayload(p)
		})
	},
}

var payloadUnloadCmd = &cobra.Command{
	Use:   "unload <path>",
	Short: "Unload the payload on a prim, hiding its descendants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := scene.ParsePath(args[0])
		if err != nil {
			return err
		}
		return runEdit(func(ed *editor.Editor) editor.Result {
			return ed.UnloadPayload(p)
		})
	},
}

func init() {
	payloadCmd.AddCommand(payloadLoadCmd, payloadUnloadCmd)
	rootCmd.AddCommand(payloadCmd)
}
