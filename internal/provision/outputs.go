package provision

import (
	"context"
	"fmt"
)

// Outputs are the connection facts of a converged deployment, in the shape
// downstream tooling (and humans) consume them.
type Outputs struct {
	VPCID      string   `json:"vpc_id"`
	SubnetIDs  []string `json:"subnet_ids"`
	InstanceID string   `json:"instance_id"`
	PublicIP   string   `json:"public_ip"`
	BucketName string   `json:"bucket_name"`
}

var ErrNotProvisioned = fmt.Errorf("deployment has no provisioned resources")

// Outputs rebuilds the output set from live state, so it works on any
// converged deployment regardless of which machine ran the apply.
func (p *Provisioner) Outputs(ctx context.Context) (*Outputs, error) {
	state, err := p.Discover(ctx)
	if err != nil {
		return nil, err
	}
	if state.VPCID == "" && state.InstanceID == "" {
		return nil, ErrNotProvisioned
	}

	subnetIDs := make([]string, 0, len(p.cfg.Network.SubnetCIDRs))
	for _, cidr := range p.cfg.Network.SubnetCIDRs {
		if id, ok := state.SubnetsByCIDR[cidr]; ok {
			subnetIDs = append(subnetIDs, id)
		}
	}
	return &Outputs{
		VPCID:      state.VPCID,
		SubnetIDs:  subnetIDs,
		InstanceID: state.InstanceID,
		PublicIP:   state.Address.PublicIP,
		BucketName: p.BucketName(),
	}, nil
}
