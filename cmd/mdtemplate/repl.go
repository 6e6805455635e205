package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

const (
	prompt             = "md> "
	continuationPrompt = "... "
)

var replCmd = cobra.Command{
	Use:   "repl [data]",
	Short: "Render templates typed at a prompt against a data file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data := mdtemplate.Context{}
		if len(args) == 1 {
			var err error
			if data, err = app.loader.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
		}
		repl(cmd, data)
		return nil
	},
}

// repl reads templates line by line. A line ending in a backslash continues
// on the next one; ":tree" before a template prints its tree instead of
// rendering it.
func repl(cmd *cobra.Command, data mdtemplate.Context) {
	out := cmd.OutOrStdout()
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(l string) []string {
		return completeFilter(l, app.env.Filters.Names())
	})

	historyFile := filepath.Join(os.TempDir(), ".mdtemplate_history")
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
	}()

	var buf strings.Builder
	for {
		p := prompt
		if buf.Len() > 0 {
			p = continuationPrompt
		}
		input, err := line.Prompt(p)
		if errors.Is(err, liner.ErrPromptAborted) {
			buf.Reset()
			continue
		}
		if err == io.EOF {
			fmt.Fprintln(out)
			return
		}
		if err != nil {
			fmt.Fprintf(out, "error reading input: %v\n", err)
			continue
		}
		if buf.Len() == 0 && strings.TrimSpace(input) == "" {
			continue
		}
		if strings.HasSuffix(input, `\`) {
			buf.WriteString(strings.TrimSuffix(input, `\`))
			buf.WriteByte('\n')
			continue
		}
		buf.WriteString(input)
		src := buf.String()
		buf.Reset()
		line.AppendHistory(src)
		fmt.Fprintln(out, evalLine(cmd, src, data))
	}
}

func evalLine(cmd *cobra.Command, src string, data mdtemplate.Context) string {
	src, tree := strings.CutPrefix(src, ":tree ")
	t, err := app.env.Parse(src)
	if err != nil {
		return err.Error()
	}
	if tree {
		return strings.TrimSuffix(mdtemplate.Pretty(t.Root), "\n")
	}
	text, err := app.render(cmd.Context(), t, data)
	if err != nil {
		return err.Error()
	}
	return text
}

// completeFilter completes the filter name being typed after the last "|".
func completeFilter(l string, names []string) []string {
	i := strings.LastIndex(l, "|")
	if i < 0 {
		return nil
	}
	prefix := strings.TrimLeft(l[i+1:], " ")
	var out []string
	for _, n := range names {
		if strings.HasPrefix(n, prefix) {
			out = append(out, l[:len(l)-len(prefix)]+n)
		}
	}
	return out
}
