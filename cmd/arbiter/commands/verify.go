package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"arbiter/internal/arbiter"
	"arbiter/internal/domain"
)

// errBogus makes a non-matching signature exit non-zero.
var errBogus = errors.New("signature does not match")

func (c *cli) verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify NAME SIGNER FILE SIGFILE",
		Short: "Verify SIGFILE over FILE as NAME; SIGNER is self, #<target index> or a fingerprint",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := c.wire.User(args[0], "")
			if err != nil {
				return err
			}
			ref, err := arbiter.ParseSignerRef(args[1])
			if err != nil {
				return err
			}
			msg, err := readInput(cmd, args[2])
			if err != nil {
				return err
			}
			sig, err := readInput(cmd, args[3])
			if err != nil {
				return err
			}
			outcome, err := c.wire.Arbiter.Verify(h, ref, msg, sig)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), outcome)
			if outcome != domain.Good {
				return errBogus
			}
			return nil
		},
	}
}
