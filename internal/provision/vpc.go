package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

var (
	ErrVPCFind   = fmt.Errorf("failed VPC lookup")
	ErrVPCCreate = fmt.Errorf("failed VPC creation")
	ErrNilVPCID  = fmt.Errorf("received no error in VPC create, but the VPC ID returned was nil")
	ErrVPCDelete = fmt.Errorf("failed to delete VPC")
)

// findVPC locates the deployment's VPC by identity tags. An empty string
// means no VPC exists yet.
func (p *Provisioner) findVPC(ctx context.Context) (string, error) {
	result, err := p.ec2c.DescribeVpcs(ctx, &ec2.DescribeVpcsInput{
		Filters: p.identityFilters(),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrVPCFind, err)
	}
	if len(result.Vpcs) == 0 {
		return "", nil
	}
	return aws.ToString(result.Vpcs[0].VpcId), nil
}

func (p *Provisioner) ensureVPC(ctx context.Context) (string, error) {
	log := clog.FromContext(ctx)

	if id, err := p.findVPC(ctx); err != nil {
		return "", err
	} else if id != "" {
		log.Info("VPC already exists", "id", id)
		return id, nil
	}

	name := p.resourceName("vpc")
	log.Debug("creating VPC", "name", name, "cidr", p.cfg.Network.VPCCIDR)
	result, err := p.ec2c.CreateVpc(ctx, &ec2.CreateVpcInput{
		CidrBlock:         aws.String(p.cfg.Network.VPCCIDR),
		TagSpecifications: p.tagSpecification(types.ResourceTypeVpc, name),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrVPCCreate, err)
	}
	if result.Vpc == nil || result.Vpc.VpcId == nil {
		return "", ErrNilVPCID
	}
	id := *result.Vpc.VpcId

	// DNS hostnames are off by default but the instance's public DNS name (and
	// the S3 endpoint resolution from inside the VPC) needs them.
	for _, attr := range []ec2.ModifyVpcAttributeInput{
		{
			VpcId:            &id,
			EnableDnsSupport: &types.AttributeBooleanValue{Value: aws.Bool(true)},
		},
		{
			VpcId:              &id,
			EnableDnsHostnames: &types.AttributeBooleanValue{Value: aws.Bool(true)},
		},
	} {
		if _, err := p.ec2c.ModifyVpcAttribute(ctx, &attr); err != nil {
			return "", fmt.Errorf("%w: %w", ErrVPCCreate, err)
		}
	}

	log.Info("created VPC", "id", id)
	return id, nil
}

func (p *Provisioner) deleteVPC(ctx context.Context, vpcID string) error {
	_, err := p.ec2c.DeleteVpc(ctx, &ec2.DeleteVpcInput{
		VpcId: aws.String(vpcID),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrVPCDelete, err)
	}
	return nil
}
