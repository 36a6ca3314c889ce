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
	ErrInternetGatewayFind   = fmt.Errorf("failed internet gateway lookup")
	ErrInternetGatewayCreate = fmt.Errorf("failed to create internet gateway")
	ErrNilInternetGatewayID  = fmt.Errorf("received no error in internet gateway create, but the internet gateway ID returned was nil")
	ErrInternetGatewayAttach = fmt.Errorf("failed to attach internet gateway to VPC")
	ErrInternetGatewayDetach = fmt.Errorf("failed to detach internet gateway")
	ErrInternetGatewayDelete = fmt.Errorf("failed to delete internet gateway")
)

// findInternetGateway locates the deployment's internet gateway and reports
// whether it is already attached to 'vpcID'.
func (p *Provisioner) findInternetGateway(ctx context.Context, vpcID string) (id string, attached bool, err error) {
	result, err := p.ec2c.DescribeInternetGateways(ctx, &ec2.DescribeInternetGatewaysInput{
		Filters: p.identityFilters(),
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrInternetGatewayFind, err)
	}
	if len(result.InternetGateways) == 0 {
		return "", false, nil
	}
	igw := result.InternetGateways[0]
	for _, attachment := range igw.Attachments {
		if aws.ToString(attachment.VpcId) == vpcID {
			attached = true
			break
		}
	}
	return aws.ToString(igw.InternetGatewayId), attached, nil
}

func (p *Provisioner) ensureInternetGateway(ctx context.Context, vpcID string) (string, error) {
	log := clog.FromContext(ctx)

	id, attached, err := p.findInternetGateway(ctx, vpcID)
	if err != nil {
		return "", err
	}
	if id == "" {
		name := p.resourceName("igw")
		result, err := p.ec2c.CreateInternetGateway(ctx, &ec2.CreateInternetGatewayInput{
			TagSpecifications: p.tagSpecification(types.ResourceTypeInternetGateway, name),
		})
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInternetGatewayCreate, err)
		}
		if result.InternetGateway == nil || result.InternetGateway.InternetGatewayId == nil {
			return "", ErrNilInternetGatewayID
		}
		id = *result.InternetGateway.InternetGatewayId
		log.Info("created internet gateway", "id", id)
	} else {
		log.Info("internet gateway already exists", "id", id)
	}

	if !attached {
		_, err := p.ec2c.AttachInternetGateway(ctx, &ec2.AttachInternetGatewayInput{
			VpcId:             aws.String(vpcID),
			InternetGatewayId: aws.String(id),
		})
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrInternetGatewayAttach, err)
		}
		log.Info("attached internet gateway to VPC", "internet_gateway_id", id, "vpc_id", vpcID)
	}
	return id, nil
}

func (p *Provisioner) detachInternetGateway(ctx context.Context, vpcID, igwID string) error {
	_, err := p.ec2c.DetachInternetGateway(ctx, &ec2.DetachInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
		VpcId:             aws.String(vpcID),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInternetGatewayDetach, err)
	}
	return nil
}

func (p *Provisioner) deleteInternetGateway(ctx context.Context, igwID string) error {
	_, err := p.ec2c.DeleteInternetGateway(ctx, &ec2.DeleteInternetGatewayInput{
		InternetGatewayId: aws.String(igwID),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInternetGatewayDelete, err)
	}
	return nil
}
