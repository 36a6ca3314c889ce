package provision

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"
	"github.com/google/uuid"

	"github.com/berthport/berth/internal/bootstrap"
)

var (
	ErrInstanceFind              = fmt.Errorf("failed instance lookup")
	ErrInstanceCreate            = fmt.Errorf("failed to create EC2 instance")
	ErrInstanceCreateNoInstances = fmt.Errorf("encountered no error during " +
		"instance launch, but no instance was actually created")
	ErrInstanceCreateIDNil = fmt.Errorf("encountered no error during instance " +
		"launch, but the returned instance ID was nil")
	ErrInstanceDelete = fmt.Errorf("failed to delete EC2 instance")
)

// liveInstanceStates are the states in which an instance still counts as the
// deployment's instance. Terminated (and terminating) instances are invisible
// to discovery so a replaced host converges cleanly.
var liveInstanceStates = []string{"pending", "running", "stopping", "stopped"}

func (p *Provisioner) findInstance(ctx context.Context) (string, error) {
	filters := append(p.identityFilters(), types.Filter{
		Name:   aws.String("instance-state-name"),
		Values: liveInstanceStates,
	})
	result, err := p.ec2c.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: filters,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInstanceFind, err)
	}
	for _, reservation := range result.Reservations {
		for _, instance := range reservation.Instances {
			return aws.ToString(instance.InstanceId), nil
		}
	}
	return "", nil
}

// ensureInstance converges the deployment's single EC2 instance: the
// configured type and AMI, the rendered bootstrap script as user data, the
// instance profile for bucket access, and the deployment security group.
// Returns once the instance is running and passing its status checks.
func (p *Provisioner) ensureInstance(ctx context.Context, net networkState, keyName, profileName string) (string, error) {
	log := clog.FromContext(ctx)

	if id, err := p.findInstance(ctx); err != nil {
		return "", err
	} else if id != "" {
		log.Info("instance already exists", "instance_id", id)
		return id, nil
	}

	script, err := bootstrap.Render(bootstrap.Params{
		OperatorUser:   p.cfg.Bootstrap.OperatorUser,
		AppDir:         p.cfg.Bootstrap.AppDir,
		ComposeVersion: p.cfg.Bootstrap.ComposeVersion,
	})
	if err != nil {
		return "", err
	}

	name := p.resourceName("instance")
	input := &ec2.RunInstancesInput{
		ImageId:      aws.String(p.cfg.Instance.AMI),
		MinCount:     aws.Int32(1),
		MaxCount:     aws.Int32(1),
		InstanceType: types.InstanceType(p.cfg.Instance.Type),
		KeyName:      aws.String(keyName),
		// The launch call is the one create we can't discovery-guard against a
		// crash between request and response, so let AWS dedupe it.
		ClientToken: aws.String(uuid.NewString()),
		UserData:    aws.String(base64.StdEncoding.EncodeToString([]byte(script))),
		IamInstanceProfile: &types.IamInstanceProfileSpecification{
			Name: aws.String(profileName),
		},
		NetworkInterfaces: []types.InstanceNetworkInterfaceSpecification{
			{
				DeviceIndex:              aws.Int32(0),
				SubnetId:                 aws.String(net.SubnetIDs[0]),
				AssociatePublicIpAddress: aws.Bool(true),
				Groups:                   []string{net.SecurityGroupID},
			},
		},
		BlockDeviceMappings: []types.BlockDeviceMapping{
			{
				DeviceName: aws.String("/dev/sda1"),
				Ebs: &types.EbsBlockDevice{
					VolumeSize:          aws.Int32(p.cfg.Instance.RootVolumeGiB),
					VolumeType:          types.VolumeTypeGp3,
					DeleteOnTermination: aws.Bool(true),
				},
			},
		},
		TagSpecifications: p.tagSpecification(types.ResourceTypeInstance, name),
	}

	log.Info(
		"launching EC2 instance",
		"instance_type", p.cfg.Instance.Type,
		"ami", p.cfg.Instance.AMI,
	)
	// A freshly created instance profile takes a few seconds to propagate to
	// EC2; the launch rejects it with InvalidParameterValue until then.
	var launchResult *ec2.RunInstancesOutput
	launchCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	for {
		launchResult, err = p.ec2c.RunInstances(launchCtx, input)
		if err == nil {
			break
		}
		if !errorCodeIs(err, "InvalidParameterValue") {
			return "", fmt.Errorf("%w: %w", ErrInstanceCreate, err)
		}
		log.Debug("instance profile not yet visible to EC2, retrying launch")
		select {
		case <-launchCtx.Done():
			return "", fmt.Errorf("%w: %w", ErrInstanceCreate, err)
		case <-time.After(5 * time.Second):
		}
	}
	if len(launchResult.Instances) < 1 {
		return "", ErrInstanceCreateNoInstances
	}
	instance := &launchResult.Instances[0]
	if instance.InstanceId == nil {
		return "", ErrInstanceCreateIDNil
	}
	id := *instance.InstanceId
	log.Info("EC2 instance launched", "instance_id", id)

	if err := p.awaitInstanceReady(ctx, id); err != nil {
		return "", err
	}
	return id, nil
}

func (p *Provisioner) deleteInstance(ctx context.Context, instanceID string) error {
	_, err := p.ec2c.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInstanceDelete, err)
	}
	return nil
}
