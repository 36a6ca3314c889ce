package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/iam"
)

// State is a read-only snapshot of what actually exists in AWS for the
// deployment. Planning and teardown both work from it, so discovery lives in
// one place and the decisions taken on top of it stay pure.
type State struct {
	VPCID           string
	SubnetsByCIDR   map[string]string
	GatewayID       string
	GatewayAttached bool
	RouteTableID    string
	DefaultRouted   bool
	SecurityGroupID string
	Ingress         []ingressRule
	KeyPairName     string
	ProfileBound    bool
	InstanceID      string
	Address         addressState
	BucketExists    bool
}

// Discover snapshots the deployment's current resources. Resources that do
// not exist come back as zero values, never as errors.
func (p *Provisioner) Discover(ctx context.Context) (State, error) {
	var state State

	var err error
	state.VPCID, err = p.findVPC(ctx)
	if err != nil {
		return state, err
	}
	if state.VPCID != "" {
		state.SubnetsByCIDR, err = p.findSubnets(ctx, state.VPCID)
		if err != nil {
			return state, err
		}
		state.GatewayID, state.GatewayAttached, err = p.findInternetGateway(ctx, state.VPCID)
		if err != nil {
			return state, err
		}
		state.RouteTableID, state.DefaultRouted, err = p.mainRouteTable(ctx, state.VPCID, state.GatewayID)
		if err != nil {
			return state, err
		}
		state.SecurityGroupID, err = p.findSecurityGroup(ctx, state.VPCID)
		if err != nil {
			return state, err
		}
		if state.SecurityGroupID != "" {
			state.Ingress, err = p.securityGroupIngress(ctx, state.SecurityGroupID)
			if err != nil {
				return state, err
			}
		}
	}

	state.KeyPairName, err = p.findKeyPair(ctx)
	if err != nil {
		return state, err
	}
	state.ProfileBound, err = p.instanceProfileBound(ctx)
	if err != nil {
		return state, err
	}
	state.InstanceID, err = p.findInstance(ctx)
	if err != nil {
		return state, err
	}
	state.Address, err = p.findAddress(ctx)
	if err != nil {
		return state, err
	}
	state.BucketExists, err = p.bucketExists(ctx, p.BucketName())
	if err != nil {
		return state, err
	}
	return state, nil
}

// securityGroupIngress flattens the group's inbound permission set into the
// same single-port TCP rule shape convergence works with. Port ranges and
// non-TCP protocols flatten to one rule per covered CIDR using the range's
// FromPort so drift still shows up in plans.
func (p *Provisioner) securityGroupIngress(ctx context.Context, sgID string) ([]ingressRule, error) {
	result, err := p.ec2c.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		GroupIds: []string{sgID},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSecurityGroupFind, err)
	}
	if len(result.SecurityGroups) == 0 {
		return nil, nil
	}
	return flattenIngress(result.SecurityGroups[0].IpPermissions), nil
}

func flattenIngress(perms []types.IpPermission) []ingressRule {
	var rules []ingressRule
	for _, perm := range perms {
		for _, ipRange := range perm.IpRanges {
			rules = append(rules, ingressRule{
				Port: aws.ToInt32(perm.FromPort),
				CIDR: aws.ToString(ipRange.CidrIp),
			})
		}
	}
	return rules
}

// instanceProfileBound reports whether the instance profile exists with the
// deployment role already bound.
func (p *Provisioner) instanceProfileBound(ctx context.Context) (bool, error) {
	profile, err := p.iamc.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{
		InstanceProfileName: aws.String(p.profileName()),
	})
	if err != nil {
		if errorCodeIs(err, codeRoleNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrProfileBind, err)
	}
	for _, role := range profile.InstanceProfile.Roles {
		if aws.ToString(role.RoleName) == p.roleName() {
			return true, nil
		}
	}
	return false, nil
}
