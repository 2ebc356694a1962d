package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"localchat/internal/artifact"
	"localchat/internal/gguf"
	"localchat/internal/prompt"
)

func newInspectCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "inspect <file.gguf>",
		Short: "Print GGUF header facts for a model file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd.OutOrStdout(), args[0], all)
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Also list every metadata key")
	return cmd
}

func inspect(out io.Writer, path string, all bool) error {
	ref, err := artifact.FromPath(path)
	if err != nil {
		return err
	}
	art, err := artifact.Select(ref)
	if err != nil {
		return err
	}
	f, err := gguf.ReadFile(art.Path())
	if err != nil {
		return fmt.Errorf("read %s: %w", art.Name, err)
	}
	fi, err := os.Stat(art.Path())
	if err != nil {
		return err
	}

	tmpl := prompt.Detect(f.Architecture(), f.ChatTemplate())
	fmt.Fprintf(out, "file:           %s\n", art.Path())
	fmt.Fprintf(out, "size:           %s (%s)\n", art.HumanSize(), art.DisplaySize())
	fmt.Fprintf(out, "modified:       %s\n", humanize.Time(fi.ModTime()))
	fmt.Fprintf(out, "gguf version:   %d\n", f.Version)
	fmt.Fprintf(out, "tensors:        %s\n", humanize.Comma(int64(f.TensorCount)))
	fmt.Fprintf(out, "architecture:   %s\n", orUnknown(f.Architecture()))
	fmt.Fprintf(out, "name:           %s\n", orUnknown(f.ModelName()))
	if n := f.ContextLength(); n > 0 {
		fmt.Fprintf(out, "context length: %s\n", humanize.Comma(int64(n)))
	}
	fmt.Fprintf(out, "template:       %s\n", tmpl.Name)
	fmt.Fprintf(out, "metadata keys:  %d\n", len(f.Keys))

	if all {
		fmt.Fprintln(out)
		for _, k := range f.Keys {
			fmt.Fprintf(out, "  %s = %s\n", k, formatValue(f.KV[k]))
		}
	}
	return nil
}

func formatValue(v gguf.Value) string {
	if v.Type == gguf.TypeArray {
		return fmt.Sprintf("[%s x %d]", v.ElemType, v.Len)
	}
	s := fmt.Sprint(v.Scalar)
	if v.Type == gguf.TypeString {
		s = strings.ReplaceAll(s, "\n", `\n`)
		if len(s) > 80 {
			s = s[:77] + "..."
		}
		return fmt.Sprintf("%q", s)
	}
	return s
}
