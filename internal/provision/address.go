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
	ErrAddressFind      = fmt.Errorf("failed elastic IP lookup")
	ErrAddressAllocate  = fmt.Errorf("failed to allocate elastic IP")
	ErrNilAllocationID  = fmt.Errorf("encountered no error in elastic IP allocation, but the returned allocation ID was nil")
	ErrAddressAssociate = fmt.Errorf("failed to associate elastic IP")
	ErrAddressRelease   = fmt.Errorf("failed to release elastic IP")
)

// addressState is the discovered shape of the deployment's elastic IP.
type addressState struct {
	AllocationID  string
	AssociationID string
	PublicIP      string
	InstanceID    string
}

func (p *Provisioner) findAddress(ctx context.Context) (addressState, error) {
	var addr addressState
	result, err := p.ec2c.DescribeAddresses(ctx, &ec2.DescribeAddressesInput{
		Filters: p.identityFilters(),
	})
	if err != nil {
		return addr, fmt.Errorf("%w: %w", ErrAddressFind, err)
	}
	if len(result.Addresses) == 0 {
		return addr, nil
	}
	found := result.Addresses[0]
	addr.AllocationID = aws.ToString(found.AllocationId)
	addr.AssociationID = aws.ToString(found.AssociationId)
	addr.PublicIP = aws.ToString(found.PublicIp)
	addr.InstanceID = aws.ToString(found.InstanceId)
	return addr, nil
}

// ensureAddress converges the deployment's stable public IP: one tagged
// elastic IP, associated with the instance. An address left dangling by an
// earlier replaced instance is re-pointed rather than re-allocated, which is
// what keeps the public IP stable across instance replacement.
func (p *Provisioner) ensureAddress(ctx context.Context, instanceID string) (string, error) {
	log := clog.FromContext(ctx)

	addr, err := p.findAddress(ctx)
	if err != nil {
		return "", err
	}
	if addr.AllocationID == "" {
		name := p.resourceName("eip")
		result, err := p.ec2c.AllocateAddress(ctx, &ec2.AllocateAddressInput{
			Domain:            types.DomainTypeVpc,
			TagSpecifications: p.tagSpecification(types.ResourceTypeElasticIp, name),
		})
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrAddressAllocate, err)
		}
		if result.AllocationId == nil {
			return "", ErrNilAllocationID
		}
		addr.AllocationID = *result.AllocationId
		addr.PublicIP = aws.ToString(result.PublicIp)
		log.Info("allocated elastic IP", "allocation_id", addr.AllocationID, "public_ip", addr.PublicIP)
	}

	if addr.InstanceID == instanceID {
		log.Info("elastic IP already associated", "public_ip", addr.PublicIP)
		return addr.PublicIP, nil
	}
	_, err = p.ec2c.AssociateAddress(ctx, &ec2.AssociateAddressInput{
		AllocationId: aws.String(addr.AllocationID),
		InstanceId:   aws.String(instanceID),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAddressAssociate, err)
	}
	log.Info("associated elastic IP", "public_ip", addr.PublicIP, "instance_id", instanceID)
	return addr.PublicIP, nil
}

// releaseAddress disassociates (when associated) and releases the elastic IP.
func (p *Provisioner) releaseAddress(ctx context.Context, addr addressState) error {
	if addr.AssociationID != "" {
		_, err := p.ec2c.DisassociateAddress(ctx, &ec2.DisassociateAddressInput{
			AssociationId: aws.String(addr.AssociationID),
		})
		// The association dies with the instance, so termination-first teardown
		// usually finds it already gone.
		if err != nil && !errorCodeIs(err, codeAssociationExpired) {
			return fmt.Errorf("%w: %w", ErrAddressRelease, err)
		}
	}
	_, err := p.ec2c.ReleaseAddress(ctx, &ec2.ReleaseAddressInput{
		AllocationId: aws.String(addr.AllocationID),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrAddressRelease, err)
	}
	return nil
}
