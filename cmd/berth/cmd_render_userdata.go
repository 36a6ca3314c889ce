package main

import (
	"github.com/spf13/cobra"

	"github.com/berthport/berth/internal/bootstrap"
)

// render-userdata exists for inspection: the exact script the next up would
// hand to the instance, printed instead of executed.
func newCmdRenderUserdata() *cobra.Command {
	return &cobra.Command{
		Use:   "render-userdata",
		Short: "Print the bootstrap script the instance would run at first boot",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			script, err := bootstrap.Render(bootstrap.Params{
				OperatorUser:   cfg.Bootstrap.OperatorUser,
				AppDir:         cfg.Bootstrap.AppDir,
				ComposeVersion: cfg.Bootstrap.ComposeVersion,
			})
			if err != nil {
				return err
			}
			cmd.Print(script)
			return nil
		},
	}
}
