package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/chainifynet/aws-encryption-sdk-go/pkg/client"
	"github.com/chainifynet/aws-encryption-sdk-go/pkg/clientconfig"
	"github.com/chainifynet/aws-encryption-sdk-go/pkg/materials"
	"github.com/chainifynet/aws-encryption-sdk-go/pkg/model"
	"github.com/chainifynet/aws-encryption-sdk-go/pkg/providers/kmsprovider"
	"github.com/chainifynet/aws-encryption-sdk-go/pkg/suite"
)

// EnvelopeDecrypter decrypts AWS Encryption SDK messages whose data key is
// wrapped by KeyID. The SDK client and materials manager are built on first
// use and shared by later calls.
type EnvelopeDecrypter struct {
	KeyID string

	once   sync.Once
	client *client.Client
	cmm    model.CryptoMaterialsManager
	err    error
}

func (d *EnvelopeDecrypter) setup() {
	cfg, err := clientconfig.NewConfigWithOpts(
		clientconfig.WithCommitmentPolicy(suite.CommitmentPolicyForbidEncryptAllowDecrypt),
	)
	if err != nil {
		d.err = fmt.Errorf("client config setup failed: %w", err)
		return
	}

	kmsKeyProvider, err := kmsprovider.New(d.KeyID)
	if err != nil {
		d.err = fmt.Errorf("kms key provider setup failed: %w", err)
		return
	}

	cmm, err := materials.NewDefault(kmsKeyProvider)
	if err != nil {
		d.err = fmt.Errorf("materials manager setup failed: %w", err)
		return
	}

	d.client = client.NewClientWithConfig(cfg)
	d.cmm = cmm
}

// Decrypt decodes a base64 encryption SDK message and returns its plaintext.
// Malformed input is rejected before any key material is requested.
func (d *EnvelopeDecrypter) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	if strings.TrimSpace(d.KeyID) == "" {
		return "", errors.New("envelope decryption requires a key id")
	}
	if strings.TrimSpace(ciphertext) == "" {
		return "", errors.New("ciphertext is empty")
	}

	message, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("ciphertext is not valid base64: %w", err)
	}

	d.once.Do(d.setup)
	if d.err != nil {
		return "", d.err
	}

	plaintext, _, err := d.client.Decrypt(ctx, message, d.cmm)
	if err != nil {
		return "", fmt.Errorf("decryption failed: %w", err)
	}

	return string(plaintext), nil
}
