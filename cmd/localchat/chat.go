package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"localchat/internal/artifact"
	"localchat/internal/chaterr"
	"localchat/internal/conversation"
	"localchat/internal/manager"
)

const errMarker = "!!"

func newChatCmd(root *rootOpts) *cobra.Command {
	var system string
	cmd := &cobra.Command{
		Use:   "chat <file.gguf>",
		Short: "Load a model file and chat with it in the terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("system") {
				cfg.SystemPrompt = system
			}
			// Only warnings and errors by default so log lines don't
			// interleave with streamed tokens.
			lvl := cfg.LogLevel
			if root.logLevel == "" {
				lvl = "warn"
			}
			log, err := newLogger(os.Stderr, lvl)
			if err != nil {
				return err
			}
			mgr, err := newManager(cfg, "", nil, log)
			if err != nil {
				return err
			}
			defer mgr.Close()

			out := cmd.OutOrStdout()
			if err := loadForChat(cmd.Context(), mgr, args[0], out); err != nil {
				return err
			}

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)
			return runREPL(cmd.Context(), mgr, line, out, cmd.ErrOrStderr())
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "System prompt prepended to every request")
	return cmd
}

// loadForChat validates and loads path, reporting what was loaded.
func loadForChat(ctx context.Context, mgr *manager.Manager, path string, out io.Writer) error {
	ref, err := artifact.FromPath(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "loading %s (%s)...\n", ref.Name, artifact.Artifact{Name: ref.Name, Size: ref.Size}.HumanSize())
	if _, err := mgr.LoadModel(ctx, ref); err != nil {
		return err
	}
	st := mgr.Status()
	if st.Model != nil {
		fmt.Fprintf(out, "ready: %s [%s, template %s]\n", st.Model.Name, orUnknown(st.Model.Architecture), st.Model.Template)
	}
	fmt.Fprintln(out, "type /reset to clear, /history to show the transcript, /load <file> to switch models, /quit to exit")
	return nil
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// lineReader is the part of liner.State the REPL needs.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// runREPL reads lines until /quit, EOF or Ctrl+C at the prompt. Ctrl+C while
// a reply is streaming cancels that reply only.
func runREPL(ctx context.Context, mgr *manager.Manager, in lineReader, out, errOut io.Writer) error {
	for {
		text, err := in.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return nil
			}
			return err
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		in.AppendHistory(text)

		switch text {
		case "/quit", "/exit":
			return nil
		case "/reset":
			mgr.ResetHistory()
			fmt.Fprintln(out, "(conversation cleared)")
			continue
		case "/history":
			printHistory(out, mgr.History())
			continue
		}
		if path, ok := strings.CutPrefix(text, "/load"); ok && (path == "" || path[0] == ' ') {
			err := loadForChat(ctx, mgr, strings.TrimSpace(path), out)
			switch {
			case errors.Is(err, artifact.ErrNoSelection):
				fmt.Fprintln(out, "(no file given)")
			case err != nil:
				printError(errOut, err)
			}
			continue
		}

		turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
		fmt.Fprint(out, "bot> ")
		_, err = mgr.SubmitStream(turnCtx, text, func(tok string) error {
			_, werr := io.WriteString(out, tok)
			return werr
		})
		stop()
		fmt.Fprintln(out)
		if err != nil {
			printError(errOut, err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func printHistory(out io.Writer, turns []conversation.Turn) {
	if len(turns) == 0 {
		fmt.Fprintln(out, "(empty)")
		return
	}
	for _, t := range turns {
		fmt.Fprintf(out, "%3d %-9s %s\n", t.Seq, t.Role, t.Text)
	}
}

func printError(w io.Writer, err error) {
	if k := chaterr.KindOf(err); k != "" {
		fmt.Fprintf(w, "%s [%s] %v\n", errMarker, k, err)
		return
	}
	fmt.Fprintf(w, "%s %v\n", errMarker, err)
}
