// Package cmd wires the authoring engine to its command line. Every
// command opens the stage named by --stage, so the flags live on the
// root command and subcommands share one editor bootstrap.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/voidreamer/maya-usd-author/internal/config"
	"github.com/voidreamer/maya-usd-author/internal/editor"
)

var (
	configPath string
	stageFile  string
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "HCL config file (default ~/.usdauthor/config.hcl)")
	rootCmd.PersistentFlags().StringVarP(&stageFile, "stage", "f", "", "stage file to open (.usda text, or .db/.sqlite)")
}

var rootCmd = &cobra.Command{
	Use:   "usd-author",
	Short: "Browse and edit scene hierarchies without opening a DCC",
	Long: `usd-author projects a stage file as a lazily loaded hierarchy and
lets you inspect and edit it: print the tree, read node info, author
kinds, purposes, variants, attributes and primvars, and serve the
stage as a filesystem mount or an MCP server.

Stages load from usda text files or from SQLite stage databases
(.db/.sqlite); edits are saved back to the same file.`,
}

// openEditor builds an editor from the effective config and loads the
// --stage file into it. The caller owns Close.
func openEditor() (*editor.Editor, error) {
	if stageFile == "" {
		return nil, fmt.Errorf("no stage file; use --stage")
	}
	opts, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	ed, err := editor.New(opts)
	if err != nil {
		return nil, err
	}
	if res := ed.LoadFile(stageFile); !res.OK {
		_ = ed.Close()
		return nil, fmt.Errorf("open stage: %s", res.Message)
	}
	return ed, nil
}

// runEdit opens the stage, applies one mutation and saves the result
// back to the stage file. The mutation's message goes to stdout.
func runEdit(op func(*editor.Editor) editor.Result) error {
	ed, err := openEditor()
	if err != nil {
		return err
	}
	defer func() { _ = ed.Close() }()

	res := op(ed)
	if !res.OK {
		return fmt.Errorf("%s", res.Message)
	}
	if saved := ed.Save(); !saved.OK {
		return fmt.Errorf("save: %s", saved.Message)
	}
	fmt.Println(res.Message)
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
