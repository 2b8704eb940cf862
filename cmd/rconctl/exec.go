package main

import (
	"fmt"
	"strings"

	"github.com/danmuck/rconctl/internal/protocol/frame"
	"github.com/danmuck/rconctl/internal/rcon"
	"github.com/spf13/cobra"
)

func execCmd() *cobra.Command {
	var (
		tf  targetFlags
		raw bool
	)

	cmd := &cobra.Command{
		Use:   "exec <command...>",
		Short: "Run one command and print the answer",
		Example: `  rconctl exec list
  rconctl exec --addr 127.0.0.1:25575 --password secret "say hello"`,
		Args: cobra.MinimumNArgs(1),
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

			ans, err := client.Exec(commandContext(cmd), frame.Command, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render(ans, raw))
			return nil
		},
	}

	tf.bind(cmd)
	cmd.Flags().BoolVar(&raw, "raw", false, "keep color codes in the output")

	return cmd
}

func render(ans rcon.Answer, raw bool) string {
	out := ans.Text()
	if !raw {
		out = rcon.StripColorCodes(out)
	}
	return strings.TrimRight(out, "\n")
}
