package provision

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
)

var (
	ErrInstanceState               = fmt.Errorf("failed to fetch instance state")
	ErrInstanceStateNoReservations = fmt.Errorf("describe instances call " +
		"produced no errors, but returned no reservations")
	ErrInstanceStateNoInstances = fmt.Errorf("describe instances call produced " +
		"no errors, but returned no instances")
	ErrInstanceStateStateNil = fmt.Errorf("describe instances call produced no " +
		"errors, but the returned instance state was nil")
)

func (p *Provisioner) instanceState(ctx context.Context, instanceID string) (types.InstanceStateName, error) {
	result, err := p.ec2c.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInstanceState, err)
	}
	if len(result.Reservations) == 0 {
		return "", ErrInstanceStateNoReservations
	}
	reservation := result.Reservations[0]
	if len(reservation.Instances) == 0 {
		return "", ErrInstanceStateNoInstances
	}
	instance := reservation.Instances[0]
	if instance.State == nil {
		return "", ErrInstanceStateStateNil
	}
	return instance.State.Name, nil
}

func (p *Provisioner) awaitInstanceState(
	ctx context.Context,
	instanceID string,
	desiredState types.InstanceStateName,
) error {
	log := clog.FromContext(ctx)
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("deadlined waiting for EC2 instance state %q", desiredState)
		case <-time.After(5 * time.Second):
			currentState, err := p.instanceState(ctx, instanceID)
			if err != nil {
				return err
			}
			if currentState == desiredState {
				return nil
			}
			log.Debug("instance state transition still pending", "state", currentState, "want", desiredState)
		}
	}
}

// awaitInstanceReady blocks until the launched instance is "ready":
//  1. The instance 'State' is 'Running'.
//  2. The instance 'Status' summary is 'Ok'.
//
// The order matters: querying the 'Status' before the 'State' is 'Running'
// errors, so the two waits can't be collapsed into one.
func (p *Provisioner) awaitInstanceReady(ctx context.Context, instanceID string) error {
	log := clog.FromContext(ctx)

	log.Info("waiting for instance to enter the 'running' state")
	if err := p.awaitInstanceState(ctx, instanceID, types.InstanceStateNameRunning); err != nil {
		return err
	}
	log.Info("instance entered the 'running' state")

	log.Info("waiting for instance to enter the 'ok' status")
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("deadlined waiting for EC2 instance status 'ok'")
		case <-time.After(5 * time.Second):
			result, err := p.ec2c.DescribeInstanceStatus(ctx, &ec2.DescribeInstanceStatusInput{
				InstanceIds: []string{instanceID},
			})
			if err != nil {
				return fmt.Errorf("%w: %w", ErrInstanceState, err)
			}
			if len(result.InstanceStatuses) == 0 || result.InstanceStatuses[0].InstanceStatus == nil {
				continue
			}
			if result.InstanceStatuses[0].InstanceStatus.Status == types.SummaryStatusOk {
				log.Info("instance entered the 'ok' status")
				return nil
			}
			log.Debug("instance status checks still pending")
		}
	}
}
