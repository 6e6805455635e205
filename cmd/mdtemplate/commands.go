package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"github.com/spf13/cobra"
)

var compileCmd = cobra.Command{
	Use:     "compile <template>",
	Aliases: []string{"c"},
	Short:   "Compile a template into a " + compiledExt + " file",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := args[0]
		t, err := app.parse(cmd.Context(), src)
		if err != nil {
			return fmt.Errorf("compiling %s: %w", src, err)
		}
		if verbose {
			fmt.Fprint(cmd.ErrOrStderr(), mdtemplate.Pretty(t.Root))
		}
		blob, err := t.Encode()
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = compiledPath(src)
		}
		if err := writeOutput(cmd, out, string(blob)); err != nil {
			return err
		}
		app.logger.Info("compiled", "template", src, "output", out, "bytes", len(blob))
		return nil
	},
}

var applyCmd = cobra.Command{
	Use:     "apply <data> <compiled> [output]",
	Aliases: []string{"a"},
	Short:   "Render a compiled template against a data file",
	Args:    cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		blob, err := os.ReadFile(args[1])
		if err != nil {
			return err
		}
		t, err := app.env.Decode(blob)
		if err != nil {
			return fmt.Errorf("loading %s: %w", args[1], err)
		}
		return renderTo(cmd, t, args[0], optionalArg(args, 2))
	},
}

var renderCmd = cobra.Command{
	Use:   "render <template> <data> [output]",
	Short: "Compile and render a template in one step",
	Args:  cobra.RangeArgs(2, 3),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := app.parse(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("compiling %s: %w", args[0], err)
		}
		return renderTo(cmd, t, args[1], optionalArg(args, 2))
	},
}

var filtersCmd = cobra.Command{
	Use:   "filters",
	Short: "List the available filters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), strings.Join(app.env.Filters.Names(), "\n"))
		return err
	},
}

func renderTo(cmd *cobra.Command, t *mdtemplate.Template, dataSrc, out string) error {
	data, err := app.loader.Load(cmd.Context(), dataSrc)
	if err != nil {
		return err
	}
	text, err := app.render(cmd.Context(), t, data)
	if err != nil {
		return err
	}
	return writeOutput(cmd, out, text)
}

func optionalArg(args []string, i int) string {
	if i < len(args) {
		return args[i]
	}
	return ""
}
