package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"arbiter/internal/domain"
)

func (c *cli) addKeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-key FILE FINGERPRINT LABEL",
		Short: "Register a PEM public key (FILE or - for stdin) under its fingerprint",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pub, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}
			fp, err := domain.ParseFingerprint(args[1])
			if err != nil {
				return err
			}
			id, err := c.wire.Arbiter.AddKey(pub, fp, args[2])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key registered.\nEntry: %s\n", id)
			return nil
		},
	}
}
