package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/voidreamer/maya-usd-author/internal/scene"
	"github.com/voidreamer/maya-usd-author/internal/sdftext"
)

var infoCmd = &cobra.Command{
	Use:   "info <path>",
	Short: "Show node info, attributes, primvars and variants",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")
		attrs, _ := cmd.Flags().GetBool("attributes")
		primvars, _ := cmd.Flags().GetBool("primvars")
		variants, _ := cmd.Flags().GetBool("variants")

		p, err := scene.ParsePath(args[0])
		if err != nil {
			return err
		}

		ed, err := openEditor()
		if err != nil {
			return err
		}
		defer func() { _ = ed.Close() }()

		// No section flag means the info block alone.
		if !attrs && !primvars && !variants {
			return printSection(ed.Reader(), p, scene.VFileInfo, asJSON)
		}

		sections := []struct {
			on   bool
			file string
		}{
			{attrs, scene.VFileAttributes},
			{primvars, scene.VFilePrimvars},
			{variants, scene.VFileVariants},
		}
		for _, s := range sections {
			if !s.on {
				continue
			}
			if err := printSection(ed.Reader(), p, s.file, asJSON); err != nil {
				return err
			}
		}
		return nil
	},
}

// printSection writes one info section, either as the same JSON
// document the mounts serve or as a table.
func printSection(r scene.Reader, p scene.Path, file string, asJSON bool) error {
	if asJSON {
		data, err := scene.RenderVirtual(r, p, file)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	switch file {
	case scene.VFileInfo:
		info, err := r.Info(p)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "path\t%s\n", info.Path)
		fmt.Fprintf(w, "name\t%s\n", info.Name)
		fmt.Fprintf(w, "type\t%s\n", info.TypeName)
		fmt.Fprintf(w, "specifier\t%s\n", info.Specifier)
		fmt.Fprintf(w, "kind\t%s\n", info.Kind)
		fmt.Fprintf(w, "purpose\t%s\n", info.Purpose)
		fmt.Fprintf(w, "active\t%v\n", info.Active)
		fmt.Fprintf(w, "defined\t%v\n", info.Defined)
		fmt.Fprintf(w, "abstract\t%v\n", info.Abstract)
		fmt.Fprintf(w, "instance\t%v\n", info.Instance)
		fmt.Fprintf(w, "hasVariants\t%v\n", info.HasVariants)
		fmt.Fprintf(w, "hasPayload\t%v\n", info.HasPayload)
		if info.HasPayload {
			fmt.Fprintf(w, "payloadLoaded\t%v\n", info.PayloadLoaded)
		}

	case scene.VFileAttributes:
		list, err := r.Attributes(p)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "NAME\tTYPE\tVALUE")
		for _, a := range list {
			value := ""
			if a.Authored {
				value = sdftext.FormatValue(a.Value, a.TypeName)
			}
			if len(a.TimeSamples) > 0 {
				value = fmt.Sprintf("%d time samples", len(a.TimeSamples))
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name, a.TypeName, value)
		}

	case scene.VFilePrimvars:
		list, err := r.Primvars(p)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "NAME\tTYPE\tINTERPOLATION\tVALUE")
		for _, pv := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				pv.Name, pv.TypeName, pv.Interpolation, sdftext.FormatValue(pv.Value, pv.TypeName))
		}

	case scene.VFileVariants:
		list, err := r.VariantSets(p)
		if err != nil {
			return err
		}
		fmt.Fprintln(w, "SET\tSELECTION\tVARIANTS")
		for _, vs := range list {
			fmt.Fprintf(w, "%s\t%s\t%v\n", vs.Name, vs.Selection, vs.Variants)
		}
	}
	return nil
}

func init() {
	infoCmd.Flags().Bool("json", false, "emit the same JSON documents the mounts serve")
	infoCmd.Flags().BoolP("attributes", "a", false, "list attributes")
	infoCmd.Flags().BoolP("primvars", "p", false, "list primvars")
	infoCmd.Flags().BoolP("variants", "v", false, "list variant sets")
	rootCmd.AddCommand(infoCmd)
}
