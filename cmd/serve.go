package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/voidreamer/maya-usd-author/internal/config"
	"github.com/voidreamer/maya-usd-author/internal/editor"
	"github.com/voidreamer/maya-usd-author/internal/mcpserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the stage to MCP clients over stdio",
	Long: `Expose browsing and authoring as MCP tools on stdin/stdout, for use
as an agent tool server. --stage is optional here: a client can open a
stage later with the stage_open tool.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := config.Load(configPath)
		if err != nil {
			return err
		}
		ed, err := editor.New(opts)
		if err != nil {
			return err
		}
		defer func() { _ = ed.Close() }()

		if stageFile != "" {
			if res := ed.LoadFile(stageFile); !res.OK {
				return fmt.Errorf("open stage: %s", res.Message)
			}
		}
		return mcpserver.Serve(ed)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
