package commands

import (
	"errors"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"arbiter/internal/app"
	"arbiter/internal/util/logging"
)

// cli carries the state shared by one command tree.
type cli struct {
	config     *app.Config
	viper      *viper.Viper
	wire       *app.Wire
	passphrase string
	logOut     io.Writer
}

// Execute runs the arbiter CLI with os.Args.
func Execute() error {
	return Run(os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes one command line, writing results to out and logs to logOut.
// The arbiter is closed afterwards even when the command fails.
func Run(args []string, out, logOut io.Writer) error {
	c := &cli{config: app.NewDefaultConfig(), viper: viper.New(), logOut: logOut}
	root := c.rootCmd()
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(logOut)

	err := root.Execute()
	if c.wire != nil {
		if cerr := c.wire.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "arbiter",
		Short:        "Identity and trust arbiter: local keys, trusted fingerprints, sign and verify",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := c.bindFlagsLoadViper(cmd); err != nil {
				return err
			}
			w, err := app.NewWire(c.config, c.logOut)
			if err != nil {
				return err
			}
			c.wire = w
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("home", c.config.Home, "config dir")
	pf.String("log", c.config.LogLevel, "debug, info, warn, error, fatal, panic")
	pf.String("algorithm", c.config.Algorithm, "scheme for new identities: ed25519, rsa2048, rsa4096, dilithium3")
	pf.String("kdf", c.config.KDF, "passphrase KDF for new keys: argon2id or scrypt")
	pf.Bool("strict", c.config.StrictPassphrase, "require strong passphrases for new identities")
	pf.String("known-keys", c.config.KnownKeys, "JSON file of public keys to register at init")
	pf.StringVarP(&c.passphrase, "passphrase", "p", "", "passphrase protecting the identity's private key")

	root.AddCommand(
		c.initCmd(),
		c.createUserCmd(),
		c.usersCmd(),
		c.infoCmd(),
		c.addKeyCmd(),
		c.addTargetCmd(),
		c.signCmd(),
		c.verifyCmd(),
	)
	return root
}

// bindFlagsLoadViper fills c.config from flags, ARBITER_* environment
// variables and an optional arbiter config file in the home directory.
func (c *cli) bindFlagsLoadViper(cmd *cobra.Command) error {
	v := c.viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	v.SetEnvPrefix("arbiter")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// First unmarshal to learn the home directory.
	if err := v.Unmarshal(c.config); err != nil {
		return err
	}

	log := logging.New(c.config.LogLevel, c.logOut)
	v.SetConfigName("arbiter")
	v.AddConfigPath(c.config.Home)
	if err := v.ReadInConfig(); err == nil {
		log.Debugf("Using config file: %s", v.ConfigFileUsed())
	} else if errors.As(err, new(viper.ConfigFileNotFoundError)) {
		log.Debugf("No config file found in: %s", c.config.Home)
	} else {
		return err
	}

	// Second unmarshal picks up the config file.
	return v.Unmarshal(c.config)
}
