package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCmdDown() *cobra.Command {
	var autoApprove bool
	c := &cobra.Command{
		Use:   "down",
		Short: "Destroy every resource of the deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner(cmd)
			if err != nil {
				return err
			}
			if !autoApprove {
				if !confirm(cmd, "Destroy the deployment, including the artifact bucket and its contents?") {
					return fmt.Errorf("destroy cancelled")
				}
			}
			return p.Destroy(cmd.Context())
		},
	}
	c.Flags().BoolVar(&autoApprove, "auto-approve", false, "Destroy without interactive confirmation")
	return c
}
