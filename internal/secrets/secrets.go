// Package secrets decrypts sensitive parameter values that arrive encrypted
// in invocation events.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"sort"

	awsinternal "github.com/cruxstack/pinpoint-dispatch-go/internal/aws"
)

// Secrets modes accepted by New.
const (
	ModeNone     = "none"
	ModeKMS      = "kms"
	ModeEnvelope = "envelope"
)

// MockedKeyID selects the passthrough decrypter in debug mode.
const MockedKeyID = "MOCKED_KEY_ID"

// ErrDisabled is returned when encrypted parameters arrive but no secrets
// mode is configured.
var ErrDisabled = errors.New("encrypted parameters are not accepted, set APP_SECRETS_MODE")

// Decrypter turns a base64 ciphertext into plaintext.
type Decrypter interface {
	Decrypt(ctx context.Context, ciphertext string) (string, error)
}

// DecryptError reports which parameter failed to decrypt. The ciphertext is
// never included.
type DecryptError struct {
	Parameter string
	Err       error
}

func (e *DecryptError) Error() string {
	return fmt.Sprintf("failed to decrypt parameter %s: %v", e.Parameter, e.Err)
}

func (e *DecryptError) Unwrap() error { return e.Err }

func (e *DecryptError) Code() string { return "DECRYPTION_FAILED" }

// New returns the decrypter for mode. ModeNone returns a nil Decrypter.
func New(mode, keyID string, kmsClient *awsinternal.KMSClient, debug bool) (Decrypter, error) {
	if debug && keyID == MockedKeyID {
		return Passthrough{}, nil
	}

	switch mode {
	case "", ModeNone:
		return nil, nil
	case ModeKMS:
		if kmsClient == nil {
			return nil, errors.New("kms client is required for kms secrets mode")
		}
		return &KMSDecrypter{Client: kmsClient, KeyID: keyID}, nil
	case ModeEnvelope:
		if keyID == "" {
			return nil, errors.New("APP_SECRETS_KMS_KEY_ID is required for envelope secrets mode")
		}
		return &EnvelopeDecrypter{KeyID: keyID}, nil
	}
	return nil, fmt.Errorf("unknown secrets mode %q", mode)
}

// KMSDecrypter decrypts values encrypted directly with kms:Encrypt.
type KMSDecrypter struct {
	Client *awsinternal.KMSClient
	KeyID  string
}

func (d *KMSDecrypter) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	return d.Client.Decrypt(ctx, d.KeyID, ciphertext)
}

// Passthrough returns ciphertext unchanged. Only used for local debugging.
type Passthrough struct{}

func (Passthrough) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	return ciphertext, nil
}

// DecryptParameters decrypts every value in encrypted. Parameters are
// processed in name order so failures are reported deterministically.
func DecryptParameters(ctx context.Context, d Decrypter, encrypted map[string]string) (map[string]any, error) {
	if len(encrypted) == 0 {
		return nil, nil
	}
	if d == nil {
		return nil, ErrDisabled
	}

	names := make([]string, 0, len(encrypted))
	for name := range encrypted {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(encrypted))
	for _, name := range names {
		plaintext, err := d.Decrypt(ctx, encrypted[name])
		if err != nil {
			return nil, &DecryptError{Parameter: name, Err: err}
		}
		out[name] = plaintext
	}
	return out, nil
}
