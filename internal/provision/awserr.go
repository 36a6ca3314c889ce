package provision

import (
	"errors"

	"github.com/aws/smithy-go"
)

// Duplicate-resource and not-found API error codes are the idempotence
// signals this package keys on. Everything else propagates verbatim.
const (
	codeKeyPairNotFound           = "InvalidKeyPair.NotFound"
	codeGroupNotFound             = "InvalidGroup.NotFound"
	codePermissionDup             = "InvalidPermission.Duplicate"
	codeBucketOwnedByYou          = "BucketAlreadyOwnedByYou"
	codeBucketNotFound            = "NotFound"
	codePublicAccessBlockNotFound = "NoSuchPublicAccessBlockConfiguration"
	codeRoleExists                = "EntityAlreadyExists"
	codeRoleNotFound              = "NoSuchEntity"
	codeAssociationExpired        = "InvalidAssociationID.NotFound"
)

// errorCodeIs reports whether 'err' carries the given smithy API error code.
func errorCodeIs(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}
