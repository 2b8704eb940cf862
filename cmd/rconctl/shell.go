package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/danmuck/rconctl/internal/protocol/frame"
	"github.com/danmuck/rconctl/internal/rcon"
	"github.com/ergochat/readline"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	historyFileName = ".rconctl_history"
	historySize     = 500
	shellPrompt     = "rcon> "
)

func shellCmd() *cobra.Command {
	var (
		tf  targetFlags
		raw bool
	)

	cmd := &cobra.Command{
		Use:   "shell",
		Short: "Interactive console against one server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := tf.resolve()
			if err != nil {
				return err
			}
			client, err := t.connect(nil)
			if err != nil {
				return err
			}
			defer client.Close()

			editor := newLineEditor(os.Stdin, cmd.OutOrStdout())
			defer editor.Close()
			if editor.interactive {
				fmt.Fprintf(cmd.OutOrStdout(), "connected to %s, type exit to leave\n", client.Address())
			}
			return runShell(commandContext(cmd), client, editor, cmd.OutOrStdout(), raw)
		},
	}

	tf.bind(cmd)
	cmd.Flags().BoolVar(&raw, "raw", false, "keep color codes in the output")

	return cmd
}

type execer interface {
	Exec(ctx context.Context, typ frame.MessageType, command string) (rcon.Answer, error)
	Reconfigure(ctx context.Context) error
}

// execRecovering runs one command. A client left unconfigured by a failed
// reconnect is set up again with its last target and the command retried once.
func execRecovering(ctx context.Context, client execer, command string) (rcon.Answer, error) {
	ans, err := client.Exec(ctx, frame.Command, command)
	if f, ok := rcon.FailureOf(err); ok && f.Kind == rcon.FailureNotConfigured {
		if rerr := client.Reconfigure(ctx); rerr != nil {
			return ans, rerr
		}
		return client.Exec(ctx, frame.Command, command)
	}
	return ans, err
}

// runShell reads commands until EOF or exit/quit. Failed commands are reported
// and the loop continues.
func runShell(ctx context.Context, client execer, editor *lineEditor, out io.Writer, raw bool) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		line, err := editor.GetLine(shellPrompt)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		}

		ans, err := execRecovering(ctx, client, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if text := render(ans, raw); text != "" {
			fmt.Fprintln(out, text)
		}
	}
}

// lineEditor uses readline on a terminal and a plain scanner otherwise.
type lineEditor struct {
	interactive bool
	rl          *readline.Instance
	scanner     *bufio.Scanner
	out         io.Writer
}

func newLineEditor(in *os.File, out io.Writer) *lineEditor {
	if !term.IsTerminal(int(in.Fd())) || os.Getenv("INSIDE_EMACS") != "" {
		return newScannerEditor(in, out)
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:            historyPath(),
		HistoryLimit:           historySize,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "readline init failed (%v), using basic input\n", err)
		return newScannerEditor(in, out)
	}
	return &lineEditor{interactive: true, rl: rl, out: out}
}

func newScannerEditor(in io.Reader, out io.Writer) *lineEditor {
	return &lineEditor{scanner: bufio.NewScanner(in), out: out}
}

func (le *lineEditor) GetLine(prompt string) (string, error) {
	if le.interactive {
		le.rl.SetPrompt(prompt)
		line, err := le.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				return "", io.EOF
			}
			return "", err
		}
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			le.rl.SaveToHistory(trimmed)
		}
		return line, nil
	}

	fmt.Fprint(le.out, prompt)
	if !le.scanner.Scan() {
		if err := le.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return le.scanner.Text(), nil
}

func (le *lineEditor) Close() {
	if le.rl != nil {
		le.rl.Close()
		le.rl = nil
	}
}

func historyPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, historyFileName)
}
