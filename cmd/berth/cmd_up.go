package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berthport/berth/internal/provision"
)

func newCmdUp() *cobra.Command {
	var autoApprove bool
	c := &cobra.Command{
		Use:   "up",
		Short: "Converge the deployment to its declared state",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner(cmd)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			changes, err := p.Plan(ctx)
			if err != nil {
				return err
			}
			printPlan(cmd, changes)
			if len(changes) > 0 && !autoApprove {
				if !confirm(cmd, "Apply these changes?") {
					return fmt.Errorf("apply cancelled")
				}
			}

			outputs, err := p.Apply(ctx)
			if err != nil {
				return err
			}
			return printOutputs(cmd, outputs, false)
		},
	}
	c.Flags().BoolVar(&autoApprove, "auto-approve", false, "Apply without interactive confirmation")
	return c
}

func printPlan(cmd *cobra.Command, changes []provision.Change) {
	if len(changes) == 0 {
		cmd.Println("No changes. The deployment matches the configuration.")
		return
	}
	cmd.Printf("Plan: %d change(s)\n", len(changes))
	for _, change := range changes {
		cmd.Println("  +", change.String())
	}
}

// confirm asks for an explicit "yes" on stdin. Anything else declines.
func confirm(cmd *cobra.Command, prompt string) bool {
	cmd.Printf("%s Only 'yes' is accepted: ", prompt)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	return strings.TrimSpace(line) == "yes"
}
