package aws

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/kms"
)

// KMSAPI is the part of the KMS client used for decryption.
type KMSAPI interface {
	Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error)
}

type KMSClient struct {
	Client KMSAPI
}

func NewKMSClient(cfg aws.Config) *KMSClient {
	return &KMSClient{Client: kms.NewFromConfig(cfg)}
}

// Decrypt decrypts a base64 encoded KMS ciphertext. keyId may be empty for
// symmetric keys, where KMS reads the key from the ciphertext.
func (c *KMSClient) Decrypt(ctx context.Context, keyId, encodedEncryptedStr string) (string, error) {
	if encodedEncryptedStr == "" {
		return "", nil
	}

	decodedCode, err := base64.StdEncoding.DecodeString(encodedEncryptedStr)
	if err != nil {
		return "", fmt.Errorf("ciphertext is not valid base64: %w", err)
	}

	decryptInput := &kms.DecryptInput{CiphertextBlob: decodedCode}
	if keyId != "" {
		decryptInput.KeyId = aws.String(keyId)
	}
	decryptOutput, err := c.Client.Decrypt(ctx, decryptInput)
	if err != nil {
		return "", fmt.Errorf("kms decrypt failed: %w", err)
	}
	if decryptOutput.Plaintext == nil {
		return "", errors.New("kms decrypt returned no plaintext")
	}

	return string(decryptOutput.Plaintext), nil
}
