package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iam"
	iamtypes "github.com/aws/aws-sdk-go-v2/service/iam/types"
	"github.com/chainguard-dev/clog"
)

var (
	ErrRoleCreate    = fmt.Errorf("failed to create IAM role")
	ErrRolePolicy    = fmt.Errorf("failed to attach IAM role policy")
	ErrProfileCreate = fmt.Errorf("failed to create instance profile")
	ErrProfileBind   = fmt.Errorf("failed to bind role to instance profile")
	ErrProfileDelete = fmt.Errorf("failed to delete instance profile")
)

const ec2TrustPolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "ec2.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

// bucketPolicyDocument scopes the instance role to the artifact bucket: list
// on the bucket itself, object read/write/delete underneath it, nothing else.
func bucketPolicyDocument(bucket string) string {
	return fmt.Sprintf(`{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Action": ["s3:ListBucket", "s3:GetBucketLocation"],
      "Resource": "arn:aws:s3:::%s"
    },
    {
      "Effect": "Allow",
      "Action": ["s3:GetObject", "s3:PutObject", "s3:DeleteObject"],
      "Resource": "arn:aws:s3:::%s/*"
    }
  ]
}`, bucket, bucket)
}

func (p *Provisioner) roleName() string    { return p.resourceName("role") }
func (p *Provisioner) profileName() string { return p.resourceName("profile") }

// ensureInstanceProfile converges the IAM plumbing that lets the instance
// reach the artifact bucket without static credentials on disk: an EC2
// assumable role, an inline policy scoped to the bucket, and the instance
// profile binding the role. Returns the profile name for the launch call.
func (p *Provisioner) ensureInstanceProfile(ctx context.Context) (string, error) {
	log := clog.FromContext(ctx)
	roleName, profileName := p.roleName(), p.profileName()

	_, err := p.iamc.CreateRole(ctx, &iam.CreateRoleInput{
		RoleName:                 aws.String(roleName),
		AssumeRolePolicyDocument: aws.String(ec2TrustPolicy),
		Description:              aws.String("berth docker host role"),
		Tags: []iamtypes.Tag{
			{Key: aws.String(tagKeyProject), Value: aws.String(p.Project)},
			{Key: aws.String(tagKeyEnvironment), Value: aws.String(p.Environment)},
			{Key: aws.String(tagKeyManagedBy), Value: aws.String(tagValueManagedBy)},
		},
	})
	switch {
	case err == nil:
		log.Info("created IAM role", "role", roleName)
	case errorCodeIs(err, codeRoleExists):
		log.Info("IAM role already exists", "role", roleName)
	default:
		return "", fmt.Errorf("%w: %w", ErrRoleCreate, err)
	}

	// PutRolePolicy overwrites, so drift in the policy document heals here.
	_, err = p.iamc.PutRolePolicy(ctx, &iam.PutRolePolicyInput{
		RoleName:       aws.String(roleName),
		PolicyName:     aws.String(p.resourceName("bucket-access")),
		PolicyDocument: aws.String(bucketPolicyDocument(p.BucketName())),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrRolePolicy, err)
	}

	_, err = p.iamc.CreateInstanceProfile(ctx, &iam.CreateInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
	})
	switch {
	case err == nil:
		log.Info("created instance profile", "profile", profileName)
	case errorCodeIs(err, codeRoleExists):
		log.Info("instance profile already exists", "profile", profileName)
	default:
		return "", fmt.Errorf("%w: %w", ErrProfileCreate, err)
	}

	profile, err := p.iamc.GetInstanceProfile(ctx, &iam.GetInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProfileBind, err)
	}
	for _, role := range profile.InstanceProfile.Roles {
		if aws.ToString(role.RoleName) == roleName {
			return profileName, nil
		}
	}
	_, err = p.iamc.AddRoleToInstanceProfile(ctx, &iam.AddRoleToInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
		RoleName:            aws.String(roleName),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrProfileBind, err)
	}
	log.Info("bound role to instance profile", "role", roleName, "profile", profileName)
	return profileName, nil
}

// deleteInstanceProfile unwinds the IAM plumbing in dependency order. Every
// step tolerates absence so a partially torn down deployment converges to
// fully gone.
func (p *Provisioner) deleteInstanceProfile(ctx context.Context) error {
	roleName, profileName := p.roleName(), p.profileName()

	_, err := p.iamc.RemoveRoleFromInstanceProfile(ctx, &iam.RemoveRoleFromInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
		RoleName:            aws.String(roleName),
	})
	if err != nil && !errorCodeIs(err, codeRoleNotFound) {
		return fmt.Errorf("%w: %w", ErrProfileDelete, err)
	}
	_, err = p.iamc.DeleteInstanceProfile(ctx, &iam.DeleteInstanceProfileInput{
		InstanceProfileName: aws.String(profileName),
	})
	if err != nil && !errorCodeIs(err, codeRoleNotFound) {
		return fmt.Errorf("%w: %w", ErrProfileDelete, err)
	}
	_, err = p.iamc.DeleteRolePolicy(ctx, &iam.DeleteRolePolicyInput{
		RoleName:   aws.String(roleName),
		PolicyName: aws.String(p.resourceName("bucket-access")),
	})
	if err != nil && !errorCodeIs(err, codeRoleNotFound) {
		return fmt.Errorf("%w: %w", ErrProfileDelete, err)
	}
	_, err = p.iamc.DeleteRole(ctx, &iam.DeleteRoleInput{
		RoleName: aws.String(roleName),
	})
	if err != nil && !errorCodeIs(err, codeRoleNotFound) {
		return fmt.Errorf("%w: %w", ErrProfileDelete, err)
	}
	return nil
}
