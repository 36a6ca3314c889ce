package provision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berthport/berth/internal/config"
)

func planTestProvisioner(t *testing.T) *Provisioner {
	t.Helper()
	cfg := &config.Config{
		Project:     "shipserver",
		Environment: "prod",
		Region:      "eu-west-1",
		Network: config.Network{
			VPCCIDR:     "10.0.0.0/16",
			SubnetCIDRs: []string{"10.0.1.0/24", "10.0.2.0/24"},
		},
		Instance: config.Instance{
			Type: "t3.medium",
			AMI:  "ami-0123456789abcdef0",
		},
		Access: config.Access{
			AdminCIDRs: []string{"198.51.100.0/24"},
		},
	}
	cfg.ApplyDefaults()
	return &Provisioner{
		Deployment: Deployment{Project: cfg.Project, Environment: cfg.Environment},
		cfg:        cfg,
	}
}

// convergedState mirrors what Discover returns right after a successful
// apply of the configuration above.
func convergedState(p *Provisioner) State {
	return State{
		VPCID: "vpc-01",
		SubnetsByCIDR: map[string]string{
			"10.0.1.0/24": "subnet-01",
			"10.0.2.0/24": "subnet-02",
		},
		GatewayID:       "igw-01",
		GatewayAttached: true,
		RouteTableID:    "rtb-01",
		DefaultRouted:   true,
		SecurityGroupID: "sg-01",
		Ingress: []ingressRule{
			{Port: 80, CIDR: "0.0.0.0/0"},
			{Port: 443, CIDR: "0.0.0.0/0"},
			{Port: 22, CIDR: "198.51.100.0/24"},
		},
		KeyPairName:  "shipserver-prod-kp",
		ProfileBound: true,
		InstanceID:   "i-01",
		Address: addressState{
			AllocationID:  "eipalloc-01",
			AssociationID: "eipassoc-01",
			PublicIP:      "203.0.113.10",
			InstanceID:    "i-01",
		},
		BucketExists: true,
	}
}

func TestBuildPlanEmptyState(t *testing.T) {
	p := planTestProvisioner(t)

	changes := p.BuildPlan(State{})

	resources := make(map[string]bool, len(changes))
	for _, change := range changes {
		resources[change.String()] = true
	}
	for _, want := range []string{
		"create vpc 10.0.0.0/16",
		"create subnet 10.0.1.0/24",
		"create subnet 10.0.2.0/24",
		"create internet gateway",
		"attach internet gateway",
		"create default route 0.0.0.0/0",
		"create security group",
		"authorize ingress tcp/80 from 0.0.0.0/0",
		"authorize ingress tcp/443 from 0.0.0.0/0",
		"authorize ingress tcp/22 from 198.51.100.0/24",
		"create bucket shipserver-prod-artifacts",
		"create key pair shipserver-prod-kp",
		"bind instance profile shipserver-prod-profile",
		"create instance t3.medium",
		"allocate elastic IP",
		"associate elastic IP",
	} {
		assert.True(t, resources[want], "missing planned change: %s", want)
	}
	assert.Len(t, changes, 16)
}

func TestBuildPlanConverged(t *testing.T) {
	p := planTestProvisioner(t)
	require.Empty(t, p.BuildPlan(convergedState(p)))
}

func TestBuildPlanPartialState(t *testing.T) {
	p := planTestProvisioner(t)

	// A run that died after the network layer: everything up to the security
	// group exists, nothing after it does.
	state := convergedState(p)
	state.KeyPairName = ""
	state.ProfileBound = false
	state.InstanceID = ""
	state.Address = addressState{}
	state.BucketExists = false

	changes := p.BuildPlan(state)
	require.Len(t, changes, 6)
	assert.Equal(t, "create bucket shipserver-prod-artifacts", changes[0].String())
	assert.Equal(t, "create key pair shipserver-prod-kp", changes[1].String())
	assert.Equal(t, "bind instance profile shipserver-prod-profile", changes[2].String())
	assert.Equal(t, "create instance t3.medium", changes[3].String())
	assert.Equal(t, "allocate elastic IP", changes[4].String())
	assert.Equal(t, "associate elastic IP", changes[5].String())
}

func TestBuildPlanDriftedIngress(t *testing.T) {
	p := planTestProvisioner(t)

	// An admin CIDR rule someone removed by hand comes back as exactly one
	// authorize.
	state := convergedState(p)
	state.Ingress = state.Ingress[:2]

	changes := p.BuildPlan(state)
	require.Len(t, changes, 1)
	assert.Equal(t, "authorize ingress tcp/22 from 198.51.100.0/24", changes[0].String())
}

func TestBuildPlanReplacedInstance(t *testing.T) {
	p := planTestProvisioner(t)

	// Terminated instance, surviving elastic IP: plan relaunches and re-points
	// the address without reallocating it.
	state := convergedState(p)
	state.InstanceID = ""
	state.Address.InstanceID = ""
	state.Address.AssociationID = ""

	changes := p.BuildPlan(state)
	require.Len(t, changes, 2)
	assert.Equal(t, "create instance t3.medium", changes[0].String())
	assert.Equal(t, "associate elastic IP", changes[1].String())
}
