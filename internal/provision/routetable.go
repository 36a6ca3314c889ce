package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

const defaultRouteCIDR = "0.0.0.0/0"

var (
	ErrRouteTableGetForVPC   = fmt.Errorf("failed to fetch route table for VPC")
	ErrNoRouteTable          = fmt.Errorf("found no route tables for the provided VPC ID")
	ErrNilRouteTableID       = fmt.Errorf("received no error in describe route table call, but the route table ID returned was nil")
	ErrRouteTableRouteCreate = fmt.Errorf("failed to add route to route table")
	ErrRouteTableRouteDelete = fmt.Errorf("failed to delete route table route")
)

// mainRouteTable locates the VPC's main route table (created automatically
// with the VPC) and reports whether a default route to 'igwID' exists yet.
//
// Unfortunately, the object returned from the VPC creation contains no
// information about the route table, so this is always a separate describe.
func (p *Provisioner) mainRouteTable(ctx context.Context, vpcID, igwID string) (id string, routed bool, err error) {
	result, err := p.ec2c.DescribeRouteTables(ctx, &ec2.DescribeRouteTablesInput{
		Filters: []types.Filter{
			{
				Name:   aws.String("vpc-id"),
				Values: []string{vpcID},
			},
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("%w: %w", ErrRouteTableGetForVPC, err)
	}
	if len(result.RouteTables) == 0 {
		return "", false, ErrNoRouteTable
	}
	rtb := result.RouteTables[0]
	if rtb.RouteTableId == nil {
		return "", false, ErrNilRouteTableID
	}
	for _, route := range rtb.Routes {
		if aws.ToString(route.DestinationCidrBlock) == defaultRouteCIDR &&
			aws.ToString(route.GatewayId) == igwID {
			routed = true
			break
		}
	}
	return *rtb.RouteTableId, routed, nil
}

// ensureDefaultRoute converges the 0.0.0.0/0 route through the internet
// gateway in the VPC's main route table. Subnets associate with the main
// table implicitly, so no per-subnet association is needed.
func (p *Provisioner) ensureDefaultRoute(ctx context.Context, vpcID, igwID string) (string, error) {
	log := clog.FromContext(ctx)

	rtbID, routed, err := p.mainRouteTable(ctx, vpcID, igwID)
	if err != nil {
		return "", err
	}
	if routed {
		log.Info("default route already exists", "rtb_id", rtbID)
		return rtbID, nil
	}

	result, err := p.ec2c.CreateRoute(ctx, &ec2.CreateRouteInput{
		RouteTableId:         aws.String(rtbID),
		GatewayId:            aws.String(igwID),
		DestinationCidrBlock: aws.String(defaultRouteCIDR),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRouteTableRouteCreate, err)
	}
	if result.Return == nil || !*result.Return {
		return "", ErrRouteTableRouteCreate
	}
	log.Info("created default route to internet gateway", "rtb_id", rtbID)
	return rtbID, nil
}

func (p *Provisioner) deleteDefaultRoute(ctx context.Context, rtbID string) error {
	_, err := p.ec2c.DeleteRoute(ctx, &ec2.DeleteRouteInput{
		RouteTableId:         aws.String(rtbID),
		DestinationCidrBlock: aws.String(defaultRouteCIDR),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRouteTableRouteDelete, err)
	}
	return nil
}
