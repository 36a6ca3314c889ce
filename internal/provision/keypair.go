package provision

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/chainguard-dev/clog"

	"github.com/berthport/berth/internal/ssh"
)

var (
	ErrKeyPairFind   = fmt.Errorf("failed key pair lookup")
	ErrKeyPairImport = fmt.Errorf("failed to import key pair")
	ErrNilKeyPairID  = fmt.Errorf("encountered no error in key pair import, but the returned key pair ID was nil")
	ErrKeyPairDelete = fmt.Errorf("failed to delete key pair")
)

// findKeyPair looks the deployment's key pair up by name. An empty string
// means it does not exist.
func (p *Provisioner) findKeyPair(ctx context.Context) (string, error) {
	name := p.resourceName("kp")
	result, err := p.ec2c.DescribeKeyPairs(ctx, &ec2.DescribeKeyPairsInput{
		KeyNames: []string{name},
	})
	if err != nil {
		if errorCodeIs(err, codeKeyPairNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %w", ErrKeyPairFind, err)
	}
	if len(result.KeyPairs) == 0 {
		return "", nil
	}
	return aws.ToString(result.KeyPairs[0].KeyName), nil
}

// ensureKeyPair converges the instance key pair and returns its name.
//
// The public key comes from the operator configuration; when the deployment
// opted into local generation instead, a fresh ED25519 pair is created and
// the private half written next to the config as '<name>.pem'.
func (p *Provisioner) ensureKeyPair(ctx context.Context) (string, error) {
	log := clog.FromContext(ctx)
	name := p.resourceName("kp")

	if found, err := p.findKeyPair(ctx); err != nil {
		return "", err
	} else if found != "" {
		log.Info("key pair already exists", "name", found)
		return found, nil
	}

	material, err := p.cfg.PublicKeyMaterial()
	if err != nil {
		return "", err
	}
	if material == nil {
		keys, err := ssh.NewED25519KeyPair()
		if err != nil {
			return "", err
		}
		material, err = keys.MarshalPublicOpenSSH()
		if err != nil {
			return "", err
		}
		keyPath := name + ".pem"
		if err := keys.SavePrivate(keyPath, name); err != nil {
			return "", err
		}
		log.Info("generated ED25519 key pair", "private_key_path", keyPath)
	}

	result, err := p.ec2c.ImportKeyPair(ctx, &ec2.ImportKeyPairInput{
		KeyName:           aws.String(name),
		PublicKeyMaterial: material,
		TagSpecifications: p.tagSpecification(types.ResourceTypeKeyPair, name),
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrKeyPairImport, err)
	}
	if result.KeyPairId == nil {
		return "", ErrNilKeyPairID
	}
	log.Info("imported key pair", "id", *result.KeyPairId, "name", name)
	return name, nil
}

func (p *Provisioner) deleteKeyPair(ctx context.Context, name string) error {
	_, err := p.ec2c.DeleteKeyPair(ctx, &ec2.DeleteKeyPairInput{
		KeyName: aws.String(name),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrKeyPairDelete, err)
	}
	return nil
}
