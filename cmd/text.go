package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voidreamer/maya-usd-author/internal/control"
	"github.com/voidreamer/maya-usd-author/internal/editor"
	"github.com/voidreamer/maya-usd-author/internal/scene"
	"github.com/voidreamer/maya-usd-author/internal/sdftext"
)

var textCmd = &cobra.Command{
	Use:   "text",
	Short: "Work with the stage text directly",
}

var textExportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the stage as usda text to stdout or a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ed, err := openEditor()
		if err != nil {
			return err
		}
		defer func() { _ = ed.Close() }()

		text, err := ed.ExportText()
		if err != nil {
			return err
		}
		if len(args) == 1 {
			return sdftext.WriteFileAtomic(args[0], []byte(text))
		}
		fmt.Print(text)
		return nil
	},
}

var textImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the stage content from a usda text file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		return runEdit(func(ed *editor.Editor) editor.Result {
			return ed.ReplaceFromText(string(data))
		})
	},
}

var textExtractCmd = &cobra.Command{
	Use:   "extract <path>",
	Short: "Print one prim block from the stage file",
	Long: `Print the usda block of a single prim. The block keeps its nested
indentation but starts at column zero, so it can be edited and handed
back to splice unchanged.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := scene.ParsePath(args[0])
		if err != nil {
			return err
		}
		_, doc, err := parseStageFile()
		if err != nil {
			return err
		}
		prim := doc.Find(p.String())
		if prim == nil {
			return fmt.Errorf("no prim at %s", p)
		}
		block := sdftext.FormatPrim(prim, p.Depth()-1)
		fmt.Println(strings.TrimLeft(block, " "))
		return nil
	},
}

var textSpliceCmd = &cobra.Command{
	Use:   "splice <path> <file>",
	Short: "Replace one prim block in the stage file",
	Long: `Replace the usda block of a single prim with the content of file,
leaving every other byte of the stage file untouched. With --control,
bump the control block afterwards so a live host reloads the stage.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := scene.ParsePath(args[0])
		if err != nil {
			return err
		}
		replacement, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		_, doc, err := parseStageFile()
		if err != nil {
			return err
		}
		prim := doc.Find(p.String())
		if prim == nil {
			return fmt.Errorf("no prim at %s", p)
		}
		if err := sdftext.SplicePrim(stageFile, prim.Origin, []byte(strings.TrimRight(string(replacement), "\n"))); err != nil {
			return err
		}
		fmt.Printf("spliced %s into %s\n", p, stageFile)

		if ctlPath, _ := cmd.Flags().GetString("control"); ctlPath != "" {
			ctl, err := control.OpenOrCreate(ctlPath)
			if err != nil {
				return err
			}
			defer func() { _ = ctl.Close() }()
			fmt.Printf("control generation now %d\n", ctl.Bump())
		}
		return nil
	},
}

// parseStageFile reads and parses the --stage file as text, bypassing
// the editor. extract and splice work on the file's bytes so the rest
// of it survives untouched.
func parseStageFile() (string, *sdftext.Document, error) {
	if stageFile == "" {
		return "", nil, fmt.Errorf("no stage file; use --stage")
	}
	src, err := os.ReadFile(stageFile)
	if err != nil {
		return "", nil, err
	}
	doc, err := sdftext.Parse(string(src))
	if err != nil {
		return "", nil, fmt.Errorf("parse %s: %w", stageFile, err)
	}
	return string(src), doc, nil
}

func init() {
	textSpliceCmd.Flags().String("control", "", "control block file to bump after splicing")
	textCmd.AddCommand(textExportCmd, textImportCmd, textExtractCmd, textSpliceCmd)
	rootCmd.AddCommand(textCmd)
}
