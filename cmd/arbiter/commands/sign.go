package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func (c *cli) signCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "sign NAME [FILE|-]",
		Short: "Sign a file (or stdin) as NAME and print the armoured signature",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := c.wire.User(args[0], c.passphrase)
			if err != nil {
				return err
			}
			src := "-"
			if len(args) == 2 {
				src = args[1]
			}
			msg, err := readInput(cmd, src)
			if err != nil {
				return err
			}
			sig, err := c.wire.Arbiter.Sign(h, msg)
			if err != nil {
				return err
			}
			if out != "" {
				return os.WriteFile(out, sig, 0o644)
			}
			_, err = cmd.OutOrStdout().Write(sig)
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the signature to this file")
	return cmd
}

// readInput reads a file, or stdin for "-".
func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return b, nil
}
