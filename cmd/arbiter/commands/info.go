package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"arbiter/internal/domain"
)

func (c *cli) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info NAME FIELD",
		Short: "Print fingerprint, public_key, display_name, algorithm or id of an identity",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := c.wire.User(args[0], "")
			if err != nil {
				return err
			}
			v, err := c.wire.Arbiter.UserInfo(h, domain.Field(args[1]))
			if err != nil {
				return err
			}
			out := string(v)
			if !strings.HasSuffix(out, "\n") {
				out += "\n"
			}
			fmt.Fprint(cmd.OutOrStdout(), out)
			return nil
		},
	}
}
