package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"arbiter/internal/domain"
)

func (c *cli) addTargetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-target NAME FINGERPRINT",
		Short: "Trust a registered fingerprint when verifying as NAME",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := c.wire.User(args[0], "")
			if err != nil {
				return err
			}
			fp, err := domain.ParseFingerprint(args[1])
			if err != nil {
				return err
			}
			if err := c.wire.Arbiter.AddTarget(h, fp); err != nil {
				return err
			}
			targets, err := c.wire.Arbiter.Targets(h)
			if err != nil {
				return err
			}
			for i, t := range targets {
				if t == fp {
					fmt.Fprintf(cmd.OutOrStdout(), "Target #%d: %s\n", i, fp)
				}
			}
			return nil
		},
	}
}
