package main

import (
	"github.com/spf13/cobra"
)

func newCmdPlan() *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show the changes an up would make, without making them",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner(cmd)
			if err != nil {
				return err
			}
			changes, err := p.Plan(cmd.Context())
			if err != nil {
				return err
			}
			printPlan(cmd, changes)
			return nil
		},
	}
}
