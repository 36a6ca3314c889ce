package provision

import (
	"context"
	"fmt"
	"slices"
)

// Change is one action convergence would take to close the gap between the
// declared deployment and the discovered state.
type Change struct {
	Resource string
	Action   string
}

func (c Change) String() string {
	return fmt.Sprintf("%s %s", c.Action, c.Resource)
}

const (
	actionCreate    = "create"
	actionAttach    = "attach"
	actionAuthorize = "authorize"
	actionAllocate  = "allocate"
	actionAssociate = "associate"
	actionBind      = "bind"
)

// Plan discovers the current state and returns the pending changes. An empty
// plan means the deployment is converged and an apply would touch nothing.
func (p *Provisioner) Plan(ctx context.Context) ([]Change, error) {
	state, err := p.Discover(ctx)
	if err != nil {
		return nil, err
	}
	return p.BuildPlan(state), nil
}

// BuildPlan diffs the declared deployment against a discovered state. It is
// pure: no API calls, no side effects, deterministic output order matching
// the order apply creates things in.
func (p *Provisioner) BuildPlan(state State) []Change {
	var changes []Change

	if state.VPCID == "" {
		changes = append(changes, Change{"vpc " + p.cfg.Network.VPCCIDR, actionCreate})
	}
	for _, cidr := range p.cfg.Network.SubnetCIDRs {
		if _, ok := state.SubnetsByCIDR[cidr]; !ok {
			changes = append(changes, Change{"subnet " + cidr, actionCreate})
		}
	}
	if state.GatewayID == "" {
		changes = append(changes, Change{"internet gateway", actionCreate})
	}
	if !state.GatewayAttached {
		changes = append(changes, Change{"internet gateway", actionAttach})
	}
	if !state.DefaultRouted {
		changes = append(changes, Change{"default route " + defaultRouteCIDR, actionCreate})
	}
	if state.SecurityGroupID == "" {
		changes = append(changes, Change{"security group", actionCreate})
	}
	for _, rule := range p.desiredIngress() {
		if !slices.Contains(state.Ingress, rule) {
			changes = append(changes, Change{
				fmt.Sprintf("ingress tcp/%d from %s", rule.Port, rule.CIDR),
				actionAuthorize,
			})
		}
	}
	if !state.BucketExists {
		changes = append(changes, Change{"bucket " + p.BucketName(), actionCreate})
	}
	if state.KeyPairName == "" {
		changes = append(changes, Change{"key pair " + p.resourceName("kp"), actionCreate})
	}
	if !state.ProfileBound {
		changes = append(changes, Change{"instance profile " + p.profileName(), actionBind})
	}
	if state.InstanceID == "" {
		changes = append(changes, Change{"instance " + p.cfg.Instance.Type, actionCreate})
	}
	if state.Address.AllocationID == "" {
		changes = append(changes, Change{"elastic IP", actionAllocate})
	}
	if state.InstanceID == "" || state.Address.InstanceID != state.InstanceID {
		changes = append(changes, Change{"elastic IP", actionAssociate})
	}
	return changes
}
