package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/berthport/berth/internal/provision"
)

func newCmdOutput() *cobra.Command {
	var asJSON bool
	c := &cobra.Command{
		Use:   "output",
		Short: "Print the connection outputs of the converged deployment",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := newProvisioner(cmd)
			if err != nil {
				return err
			}
			outputs, err := p.Outputs(cmd.Context())
			if err != nil {
				return err
			}
			return printOutputs(cmd, outputs, asJSON)
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "Print outputs as JSON")
	return c
}

func printOutputs(cmd *cobra.Command, outputs *provision.Outputs, asJSON bool) error {
	if asJSON {
		encoded, err := json.MarshalIndent(outputs, "", "  ")
		if err != nil {
			return err
		}
		cmd.Println(string(encoded))
		return nil
	}
	cmd.Println("vpc_id      =", outputs.VPCID)
	cmd.Println("subnet_ids  =", strings.Join(outputs.SubnetIDs, ", "))
	cmd.Println("instance_id =", outputs.InstanceID)
	cmd.Println("public_ip   =", outputs.PublicIP)
	cmd.Println("bucket_name =", outputs.BucketName)
	return nil
}
