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
	ErrSubnetFind   = fmt.Errorf("failed subnet lookup")
	ErrSubnetCreate = fmt.Errorf("failed to create subnet")
	ErrNilSubnetID  = fmt.Errorf("received no error in subnet create, but the subnet ID returned was nil")
	ErrSubnetDelete = fmt.Errorf("failed to delete subnet")
)

// findSubnets maps the deployment's existing subnets by CIDR block.
func (p *Provisioner) findSubnets(ctx context.Context, vpcID string) (map[string]string, error) {
	filters := append(p.identityFilters(), types.Filter{
		Name:   aws.String("vpc-id"),
		Values: []string{vpcID},
	})
	result, err := p.ec2c.DescribeSubnets(ctx, &ec2.DescribeSubnetsInput{
		Filters: filters,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubnetFind, err)
	}
	byCIDR := make(map[string]string, len(result.Subnets))
	for _, subnet := range result.Subnets {
		byCIDR[aws.ToString(subnet.CidrBlock)] = aws.ToString(subnet.SubnetId)
	}
	return byCIDR, nil
}

// ensureSubnets converges one subnet per configured CIDR, returning subnet
// IDs in configuration order.
func (p *Provisioner) ensureSubnets(ctx context.Context, vpcID string) ([]string, error) {
	log := clog.FromContext(ctx)

	existing, err := p.findSubnets(ctx, vpcID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(p.cfg.Network.SubnetCIDRs))
	for i, cidr := range p.cfg.Network.SubnetCIDRs {
		if id, ok := existing[cidr]; ok {
			log.Info("subnet already exists", "id", id, "cidr", cidr)
			ids = append(ids, id)
			continue
		}

		name := p.resourceName(fmt.Sprintf("subnet-%d", i))
		result, err := p.ec2c.CreateSubnet(ctx, &ec2.CreateSubnetInput{
			VpcId:             aws.String(vpcID),
			CidrBlock:         aws.String(cidr),
			TagSpecifications: p.tagSpecification(types.ResourceTypeSubnet, name),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSubnetCreate, err)
		}
		if result.Subnet == nil || result.Subnet.SubnetId == nil {
			return nil, fmt.Errorf("%w: %w", ErrSubnetCreate, ErrNilSubnetID)
		}
		id := *result.Subnet.SubnetId

		// The instance picks up its (pre-elastic-IP) public address at launch.
		_, err = p.ec2c.ModifySubnetAttribute(ctx, &ec2.ModifySubnetAttributeInput{
			SubnetId:            aws.String(id),
			MapPublicIpOnLaunch: &types.AttributeBooleanValue{Value: aws.Bool(true)},
		})
		if err != nil {
			return nil, fmt.Errorf("enabling auto-assign public IP: %w", err)
		}

		log.Info("created subnet", "id", id, "cidr", cidr)
		ids = append(ids, id)
	}
	return ids, nil
}

func (p *Provisioner) deleteSubnet(ctx context.Context, subnetID string) error {
	_, err := p.ec2c.DeleteSubnet(ctx, &ec2.DeleteSubnetInput{
		SubnetId: aws.String(subnetID),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSubnetDelete, err)
	}
	return nil
}
