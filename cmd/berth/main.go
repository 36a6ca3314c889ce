package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/berthport/berth/internal/config"
	"github.com/berthport/berth/internal/log"
	"github.com/berthport/berth/internal/provision"
)

// version is stamped by the release build.
var version = "dev"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "berth",
		Short:   "berth provisions single-instance Docker hosts on AWS",
		Version: version,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Show help by default when no subcommand is provided.
			return cmd.Help()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "berth.yaml", "Path to the deployment configuration")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().String("log-file", "", "Tee logs to a JSON file")

	cmd.PersistentPreRunE = func(c *cobra.Command, _ []string) error {
		verbose, _ := c.Flags().GetBool("verbose")
		logFile, _ := c.Flags().GetString("log-file")
		ctx, cleanup, err := log.Setup(c.Context(), log.Options{
			Verbose:  verbose,
			FilePath: logFile,
		})
		if err != nil {
			return err
		}
		cobra.OnFinalize(cleanup)
		c.SetContext(ctx)
		return nil
	}

	cmd.AddCommand(newCmdUp())
	cmd.AddCommand(newCmdPlan())
	cmd.AddCommand(newCmdDown())
	cmd.AddCommand(newCmdOutput())
	cmd.AddCommand(newCmdVerify())
	cmd.AddCommand(newCmdRenderUserdata())
	return cmd
}

// loadConfig resolves and loads the configuration named by the --config flag.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, err := cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}
	return config.Load(path)
}

func newProvisioner(cmd *cobra.Command) (*provision.Provisioner, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return provision.New(cmd.Context(), cfg)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
