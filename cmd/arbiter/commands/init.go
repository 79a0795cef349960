package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Open or create the configuration directory and register known keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := c.wire.Arbiter.Users()
			if err != nil {
				return err
			}
			keys, err := c.wire.Arbiter.Keys()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized %s\nIdentities: %d\nKeys: %d\n",
				c.wire.Arbiter.Dir(), len(users), len(keys))
			return nil
		},
	}
}
