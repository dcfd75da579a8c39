// Command nupidentity-example is a service protected by nupidentity. The
// serve command runs the HTTP API with cookie login routes; the login
// command runs the public-client flow from a terminal.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/kbukum/nupidentity/logger"
	"github.com/kbukum/nupidentity/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logger.Error("command failed", logger.ErrorFields("execute", err))
		os.Exit(1)
	}
}

type globalFlags struct {
	configFile string
	envFile    string
}

func newRootCmd() *cobra.Command {
	var flags globalFlags
	cmd := &cobra.Command{
		Use:           serviceName,
		Short:         "Example service protected by nupidentity",
		Version:       version.Get().String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "path to config.yml")
	cmd.PersistentFlags().StringVar(&flags.envFile, "env-file", "", "path to a .env file")

	cmd.AddCommand(newServeCmd(&flags), newLoginCmd(&flags))
	return cmd
}
