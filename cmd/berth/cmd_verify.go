package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berthport/berth/internal/provision"
)

func newCmdVerify() *cobra.Command {
	var sshKeyPath string
	c := &cobra.Command{
		Use:   "verify",
		Short: "Audit the live deployment's security posture and reachability",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner(cmd)
			if err != nil {
				return err
			}
			findings, err := p.Verify(cmd.Context())
			if err != nil {
				return err
			}
			if sshKeyPath != "" {
				deep, err := p.VerifyBootstrap(cmd.Context(), sshKeyPath)
				if err != nil {
					return err
				}
				findings = append(findings, deep...)
			}
			if len(findings) == 0 {
				cmd.Println("All checks passed.")
				return nil
			}
			critical := 0
			for _, finding := range findings {
				cmd.Println(finding.String())
				if finding.Severity == provision.SeverityCritical {
					critical++
				}
			}
			if critical > 0 {
				return fmt.Errorf("verification failed with %d critical finding(s)", critical)
			}
			return nil
		},
	}
	c.Flags().StringVar(&sshKeyPath, "ssh-key", "", "Private key path; enables in-instance bootstrap checks over SSH")
	return c
}
