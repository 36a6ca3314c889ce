package provision

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

// Destroy tears down everything Discover can still find, in the reverse of
// creation order. Absent resources are skipped, so a partially provisioned
// (or partially destroyed) deployment converges to fully gone. Errors do not
// stop the teardown; they come back joined.
func (p *Provisioner) Destroy(ctx context.Context) error {
	log := clog.FromContext(ctx).With(
		"project", p.Project,
		"environment", p.Environment,
	)
	ctx = clog.WithLogger(ctx, log)
	log.Info("beginning teardown")

	state, err := p.Discover(ctx)
	if err != nil {
		return err
	}

	// Destructors push in creation order; the stack runs them in reverse, so
	// dependents always go before their dependencies.
	var stack Stack
	if state.VPCID != "" {
		vpcID := state.VPCID
		stack.Push(func(ctx context.Context) error {
			log.Info("deleting VPC", "id", vpcID)
			return p.deleteVPC(ctx, vpcID)
		})
		for cidr, id := range state.SubnetsByCIDR {
			cidr, id := cidr, id
			stack.Push(func(ctx context.Context) error {
				log.Info("deleting subnet", "id", id, "cidr", cidr)
				return p.deleteSubnet(ctx, id)
			})
		}
	}
	if state.GatewayID != "" {
		igwID, attached, vpcID := state.GatewayID, state.GatewayAttached, state.VPCID
		stack.Push(func(ctx context.Context) error {
			if attached {
				log.Info("detaching internet gateway", "id", igwID)
				if err := p.detachInternetGateway(ctx, vpcID, igwID); err != nil {
					return err
				}
			}
			log.Info("deleting internet gateway", "id", igwID)
			return p.deleteInternetGateway(ctx, igwID)
		})
	}
	if state.DefaultRouted {
		rtbID := state.RouteTableID
		stack.Push(func(ctx context.Context) error {
			log.Info("deleting default route", "rtb_id", rtbID)
			return p.deleteDefaultRoute(ctx, rtbID)
		})
	}
	if state.SecurityGroupID != "" {
		sgID := state.SecurityGroupID
		stack.Push(func(ctx context.Context) error {
			log.Info("deleting security group", "id", sgID)
			return p.deleteSecurityGroup(ctx, sgID)
		})
	}
	if state.BucketExists {
		bucket := p.BucketName()
		stack.Push(func(ctx context.Context) error {
			log.Info("deleting bucket", "bucket", bucket)
			return p.deleteBucket(ctx, bucket)
		})
	}
	if state.KeyPairName != "" {
		keyName := state.KeyPairName
		stack.Push(func(ctx context.Context) error {
			log.Info("deleting key pair", "name", keyName)
			return p.deleteKeyPair(ctx, keyName)
		})
	}
	stack.Push(func(ctx context.Context) error {
		log.Info("deleting instance profile and role")
		return p.deleteInstanceProfile(ctx)
	})
	if state.InstanceID != "" {
		instanceID := state.InstanceID
		stack.Push(func(ctx context.Context) error {
			log.Info("terminating instance", "instance_id", instanceID)
			if err := p.deleteInstance(ctx, instanceID); err != nil {
				return err
			}
			// The network can't come down under a live instance, so the wait is
			// part of the destructor.
			waitCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			return p.awaitInstanceState(waitCtx, instanceID, types.InstanceStateNameTerminated)
		})
	}
	if state.Address.AllocationID != "" {
		addr := state.Address
		stack.Push(func(ctx context.Context) error {
			log.Info("releasing elastic IP", "public_ip", addr.PublicIP)
			return p.releaseAddress(ctx, addr)
		})
	}

	if err := stack.Destroy(ctx); err != nil {
		return err
	}
	log.Info("teardown complete")
	return nil
}
