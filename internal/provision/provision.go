package provision

import (
	"context"
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/chainguard-dev/clog"
	"github.com/gosimple/slug"
	"golang.org/x/sync/errgroup"

	"github.com/berthport/berth/internal/config"
)

// Deployment is the identity a resource set is discovered and tagged by.
type Deployment struct {
	Project     string
	Environment string
}

// Provisioner converges, audits and destroys the AWS resources of one
// deployment.
type Provisioner struct {
	Deployment

	cfg  *config.Config
	ec2c *ec2.Client
	s3c  *s3.Client
	iamc *iam.Client
}

var ErrAWSConfig = fmt.Errorf("failed to assemble AWS client configuration")

// New builds a Provisioner with clients authenticated per the configured
// auth mode.
func New(ctx context.Context, cfg *config.Config) (*Provisioner, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	switch cfg.Auth.Mode {
	case config.AuthModeStatic:
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(
				cfg.Auth.AccessKeyID, cfg.Auth.SecretAccessKey, "",
			),
		))
	case config.AuthModeChain:
		if cfg.Auth.Profile != "" {
			opts = append(opts, awsconfig.WithSharedConfigProfile(cfg.Auth.Profile))
		}
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAWSConfig, err)
	}
	return &Provisioner{
		Deployment: Deployment{
			Project:     cfg.Project,
			Environment: cfg.Environment,
		},
		cfg:  cfg,
		ec2c: ec2.NewFromConfig(awsCfg),
		s3c:  s3.NewFromConfig(awsCfg),
		iamc: iam.NewFromConfig(awsCfg),
	}, nil
}

// BucketName resolves the artifact bucket name: the configured override, or
// the deterministic slugged name derived from the deployment identity.
func (p *Provisioner) BucketName() string {
	if p.cfg.Storage.BucketName != "" {
		return p.cfg.Storage.BucketName
	}
	return slug.Make(p.Project+"-"+p.Environment) + "-artifacts"
}

// Apply converges the deployment to its declared state and returns the
// resulting outputs.
func (p *Provisioner) Apply(ctx context.Context) (*Outputs, error) {
	log := clog.FromContext(ctx).With(
		"project", p.Project,
		"environment", p.Environment,
	)
	ctx = clog.WithLogger(ctx, log)
	log.Info("beginning convergence")

	// The network chain and the storage branch are independent; converge them
	// concurrently. Compute waits on both.
	var net networkState
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		net, err = p.ensureNetwork(gctx)
		return err
	})
	g.Go(func() error {
		return p.ensureBucket(gctx)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	log.Info("network and storage convergence complete")

	keyName, err := p.ensureKeyPair(ctx)
	if err != nil {
		return nil, err
	}

	profileName, err := p.ensureInstanceProfile(ctx)
	if err != nil {
		return nil, err
	}

	instanceID, err := p.ensureInstance(ctx, net, keyName, profileName)
	if err != nil {
		return nil, err
	}

	publicIP, err := p.ensureAddress(ctx, instanceID)
	if err != nil {
		return nil, err
	}
	log.Info("convergence complete", "instance_id", instanceID, "public_ip", publicIP)

	return &Outputs{
		VPCID:      net.VPCID,
		SubnetIDs:  net.SubnetIDs,
		InstanceID: instanceID,
		PublicIP:   publicIP,
		BucketName: p.BucketName(),
	}, nil
}

// networkState is the converged network layer handed to the compute steps.
type networkState struct {
	VPCID           string
	SubnetIDs       []string
	GatewayID       string
	RouteTableID    string
	SecurityGroupID string
}

func (p *Provisioner) ensureNetwork(ctx context.Context) (networkState, error) {
	var net networkState

	var err error
	net.VPCID, err = p.ensureVPC(ctx)
	if err != nil {
		return net, err
	}
	net.SubnetIDs, err = p.ensureSubnets(ctx, net.VPCID)
	if err != nil {
		return net, err
	}
	net.GatewayID, err = p.ensureInternetGateway(ctx, net.VPCID)
	if err != nil {
		return net, err
	}
	net.RouteTableID, err = p.ensureDefaultRoute(ctx, net.VPCID, net.GatewayID)
	if err != nil {
		return net, err
	}
	net.SecurityGroupID, err = p.ensureSecurityGroup(ctx, net.VPCID)
	if err != nil {
		return net, err
	}
	return net, nil
}
