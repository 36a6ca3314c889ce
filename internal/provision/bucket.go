package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/chainguard-dev/clog"
)

var (
	ErrBucketFind   = fmt.Errorf("failed bucket lookup")
	ErrBucketCreate = fmt.Errorf("failed to create S3 bucket")
	ErrBucketLock   = fmt.Errorf("failed to block public access on S3 bucket")
	ErrBucketTag    = fmt.Errorf("failed to tag S3 bucket")
	ErrBucketDelete = fmt.Errorf("failed to delete S3 bucket")
)

func (p *Provisioner) bucketExists(ctx context.Context, name string) (bool, error) {
	_, err := p.s3c.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		if errorCodeIs(err, codeBucketNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %w", ErrBucketFind, err)
	}
	return true, nil
}

// ensureBucket converges the artifact bucket: created in the deployment
// region, tagged with the deployment identity, and with every public access
// vector blocked. The access block and tags are re-applied on every run, so a
// bucket drifted open converges back shut.
func (p *Provisioner) ensureBucket(ctx context.Context) error {
	log := clog.FromContext(ctx)
	name := p.BucketName()

	exists, err := p.bucketExists(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		log.Info("bucket already exists", "bucket", name)
	} else {
		input := &s3.CreateBucketInput{
			Bucket: aws.String(name),
		}
		// us-east-1 is the one region S3 rejects as an explicit location
		// constraint.
		if p.cfg.Region != "us-east-1" {
			input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
				LocationConstraint: s3types.BucketLocationConstraint(p.cfg.Region),
			}
		}
		if _, err := p.s3c.CreateBucket(ctx, input); err != nil {
			if !errorCodeIs(err, codeBucketOwnedByYou) {
				return fmt.Errorf("%w: %w", ErrBucketCreate, err)
			}
		}
		log.Info("created bucket", "bucket", name, "region", p.cfg.Region)
	}

	_, err = p.s3c.PutPublicAccessBlock(ctx, &s3.PutPublicAccessBlockInput{
		Bucket: aws.String(name),
		PublicAccessBlockConfiguration: &s3types.PublicAccessBlockConfiguration{
			BlockPublicAcls:       aws.Bool(true),
			BlockPublicPolicy:     aws.Bool(true),
			IgnorePublicAcls:      aws.Bool(true),
			RestrictPublicBuckets: aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBucketLock, err)
	}

	_, err = p.s3c.PutBucketTagging(ctx, &s3.PutBucketTaggingInput{
		Bucket: aws.String(name),
		Tagging: &s3types.Tagging{
			TagSet: []s3types.Tag{
				{Key: aws.String(tagKeyName), Value: aws.String(name)},
				{Key: aws.String(tagKeyProject), Value: aws.String(p.Project)},
				{Key: aws.String(tagKeyEnvironment), Value: aws.String(p.Environment)},
				{Key: aws.String(tagKeyManagedBy), Value: aws.String(tagValueManagedBy)},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBucketTag, err)
	}
	return nil
}

// deleteBucket removes the artifact bucket, emptying it first. S3 refuses to
// delete a non-empty bucket, and a teardown that stops short of the bucket
// keeps billing the deployment forever.
func (p *Provisioner) deleteBucket(ctx context.Context, name string) error {
	log := clog.FromContext(ctx)

	var continuation *string
	for {
		page, err := p.s3c.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(name),
			ContinuationToken: continuation,
		})
		if err != nil {
			return fmt.Errorf("%w: %w", ErrBucketDelete, err)
		}
		if len(page.Contents) > 0 {
			objects := make([]s3types.ObjectIdentifier, 0, len(page.Contents))
			for _, object := range page.Contents {
				objects = append(objects, s3types.ObjectIdentifier{Key: object.Key})
			}
			_, err := p.s3c.DeleteObjects(ctx, &s3.DeleteObjectsInput{
				Bucket: aws.String(name),
				Delete: &s3types.Delete{
					Objects: objects,
					Quiet:   aws.Bool(true),
				},
			})
			if err != nil {
				return fmt.Errorf("%w: %w", ErrBucketDelete, err)
			}
			log.Info("deleted objects from bucket", "bucket", name, "count", len(objects))
		}
		if page.IsTruncated == nil || !*page.IsTruncated {
			break
		}
		continuation = page.NextContinuationToken
	}

	_, err := p.s3c.DeleteBucket(ctx, &s3.DeleteBucketInput{
		Bucket: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBucketDelete, err)
	}
	return nil
}
