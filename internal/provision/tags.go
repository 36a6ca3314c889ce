package provision

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/gosimple/slug"
)

const (
	// These are some well-known AWS tag keys.
	//
	// 'Name' is well-known within AWS itself, the rest identify resources as
	// belonging to a berth deployment so discovery (and teardown) can find them
	// again on later runs.
	tagKeyName        = "Name"
	tagKeyProject     = "berth:project"
	tagKeyEnvironment = "berth:environment"
	tagKeyManagedBy   = "ManagedBy"

	tagValueManagedBy = "berth"
)

// tagSpecification produces a tag specification carrying the deployment's
// identity tags plus a 'Name' tag.
//
// A 'TagSpecification' is just AWS' term for metadata, defined as key-value
// pairs, associated with a particular 'types.ResourceType' (EC2 instances,
// VPCs, VPC subnets and so on).
func (d *Deployment) tagSpecification(rt types.ResourceType, name string) []types.TagSpecification {
	return []types.TagSpecification{
		{
			ResourceType: rt,
			Tags:         d.tags(name),
		},
	}
}

// tags produces the standard key-value pairs associated to every created
// resource. Discovery filters on the same three identity keys, so these must
// never change between runs of the same deployment.
func (d *Deployment) tags(name string) []types.Tag {
	return []types.Tag{
		{
			Key:   aws.String(tagKeyName),
			Value: aws.String(name),
		},
		{
			Key:   aws.String(tagKeyProject),
			Value: aws.String(d.Project),
		},
		{
			Key:   aws.String(tagKeyEnvironment),
			Value: aws.String(d.Environment),
		},
		{
			Key:   aws.String(tagKeyManagedBy),
			Value: aws.String(tagValueManagedBy),
		},
	}
}

// identityFilters produces the Describe* filters matching the deployment's
// identity tags.
func (d *Deployment) identityFilters() []types.Filter {
	return []types.Filter{
		{
			Name:   aws.String("tag:" + tagKeyProject),
			Values: []string{d.Project},
		},
		{
			Name:   aws.String("tag:" + tagKeyEnvironment),
			Values: []string{d.Environment},
		},
		{
			Name:   aws.String("tag:" + tagKeyManagedBy),
			Values: []string{tagValueManagedBy},
		},
	}
}

// resourceName derives the deterministic resource name for a resource kind,
// ex. 'shipserver-prod-vpc'. Slugified so arbitrary project names stay legal
// in every AWS name field.
func (d *Deployment) resourceName(kind string) string {
	return slug.Make(d.Project+"-"+d.Environment) + "-" + kind
}
