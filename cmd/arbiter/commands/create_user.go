package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"arbiter/internal/domain"
)

func (c *cli) createUserCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create-user NAME",
		Short: "Generate an identity key pair sealed under --passphrase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if c.passphrase == "" {
				return fmt.Errorf("passphrase required (-p)")
			}
			h, err := c.wire.Arbiter.CreateUser(args[0], c.passphrase, c.wire.Algorithm)
			if err != nil {
				return err
			}
			fp, err := c.wire.Arbiter.UserInfo(h, domain.FieldFingerprint)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Identity %q created.\nAlgorithm: %s\nFingerprint: %s\n",
				args[0], c.wire.Algorithm, fp)
			return nil
		},
	}
}
