package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

const (
	portSSH   = int32(22)
	portHTTP  = int32(80)
	portHTTPS = int32(443)

	anywhereCIDR = "0.0.0.0/0"
)

var (
	ErrSecurityGroupFind       = fmt.Errorf("failed security group lookup")
	ErrSecurityGroupCreate     = fmt.Errorf("failed to create security group")
	ErrNilSecurityGroupID      = fmt.Errorf("received no error in security group create, but the group ID returned was nil")
	ErrSecurityGroupRuleCreate = fmt.Errorf("failed to add security group rule")
	ErrSecurityGroupDelete     = fmt.Errorf("failed to delete security group")
)

// ingressRule is one inbound TCP allowance.
type ingressRule struct {
	Port int32
	CIDR string
}

// desiredIngress is the full inbound rule set: the application ports open to
// the world, management SSH restricted to the admin allow-list. SSH from
// 0.0.0.0/0 is never part of this set; config validation already rejects a
// world-open admin CIDR.
func (p *Provisioner) desiredIngress() []ingressRule {
	rules := []ingressRule{
		{Port: portHTTP, CIDR: anywhereCIDR},
		{Port: portHTTPS, CIDR: anywhereCIDR},
	}
	for _, cidr := range p.cfg.Access.AdminCIDRs {
		rules = append(rules, ingressRule{Port: portSSH, CIDR: cidr})
	}
	return rules
}

func (p *Provisioner) findSecurityGroup(ctx context.Context, vpcID string) (string, error) {
	filters := append(p.identityFilters(), types.Filter{
		Name:   aws.String("vpc-id"),
		Values: []string{vpcID},
	})
	result, err := p.ec2c.DescribeSecurityGroups(ctx, &ec2.DescribeSecurityGroupsInput{
		Filters: filters,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrSecurityGroupFind, err)
	}
	if len(result.SecurityGroups) == 0 {
		return "", nil
	}
	return aws.ToString(result.SecurityGroups[0].GroupId), nil
}

func (p *Provisioner) ensureSecurityGroup(ctx context.Context, vpcID string) (string, error) {
	log := clog.FromContext(ctx)

	id, err := p.findSecurityGroup(ctx, vpcID)
	if err != nil {
		return "", err
	}
	if id == "" {
		name := p.resourceName("sg")
		result, err := p.ec2c.CreateSecurityGroup(ctx, &ec2.CreateSecurityGroupInput{
			GroupName:         aws.String(name),
			Description:       aws.String("berth docker host security group"),
			VpcId:             aws.String(vpcID),
			TagSpecifications: p.tagSpecification(types.ResourceTypeSecurityGroup, name),
		})
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrSecurityGroupCreate, err)
		}
		if result.GroupId == nil {
			return "", ErrNilSecurityGroupID
		}
		id = *result.GroupId
		log.Info("created security group", "id", id)
	} else {
		log.Info("security group already exists", "id", id)
	}

	// Rules can't ride along on the create call, and re-authorizing an
	// existing rule fails with a duplicate code, which is exactly the signal
	// that there is nothing left to do for it.
	for _, rule := range p.desiredIngress() {
		_, err := p.ec2c.AuthorizeSecurityGroupIngress(ctx, &ec2.AuthorizeSecurityGroupIngressInput{
			GroupId:    aws.String(id),
			IpProtocol: aws.String("tcp"),
			FromPort:   aws.Int32(rule.Port),
			ToPort:     aws.Int32(rule.Port),
			CidrIp:     aws.String(rule.CIDR),
		})
		if err != nil {
			if errorCodeIs(err, codePermissionDup) {
				log.Debug("ingress rule already exists", "port", rule.Port, "from", rule.CIDR)
				continue
			}
			return "", fmt.Errorf("%w: %w", ErrSecurityGroupRuleCreate, err)
		}
		log.Info("authorized ingress", "port", rule.Port, "from", rule.CIDR, "proto", "tcp")
	}
	return id, nil
}

func (p *Provisioner) deleteSecurityGroup(ctx context.Context, sgID string) error {
	_, err := p.ec2c.DeleteSecurityGroup(ctx, &ec2.DeleteSecurityGroupInput{
		GroupId: aws.String(sgID),
	})
	if err != nil && !errorCodeIs(err, codeGroupNotFound) {
		return fmt.Errorf("%w: %w", ErrSecurityGroupDelete, err)
	}
	return nil
}
