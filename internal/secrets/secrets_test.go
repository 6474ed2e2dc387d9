package secrets

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"

	awsinternal "github.com/cruxstack/pinpoint-dispatch-go/internal/aws"
)

type mockDecrypter struct {
	failOn    string
	callCount int
}

func (m *mockDecrypter) Decrypt(ctx context.Context, ciphertext string) (string, error) {
	m.callCount++
	if ciphertext == m.failOn {
		return "", errors.New("InvalidCiphertextException")
	}
	return "plain:" + ciphertext, nil
}

type mockKMS struct {
	callCount int
}

func (m *mockKMS) Decrypt(ctx context.Context, params *kms.DecryptInput, optFns ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	m.callCount++
	return &kms.DecryptOutput{Plaintext: append([]byte("kms:"), params.CiphertextBlob...)}, nil
}

func TestNew(t *testing.T) {
	kmsClient := &awsinternal.KMSClient{Client: &mockKMS{}}

	testCases := []struct {
		name    string
		mode    string
		keyID   string
		debug   bool
		want    any
		wantErr bool
	}{
		{name: "disabled", mode: ModeNone, want: nil},
		{name: "unset mode", mode: "", want: nil},
		{name: "kms", mode: ModeKMS, want: &KMSDecrypter{}},
		{name: "envelope", mode: ModeEnvelope, keyID: "alias/dispatch", want: &EnvelopeDecrypter{}},
		{name: "envelope without key", mode: ModeEnvelope, wantErr: true},
		{name: "mocked key in debug", mode: ModeKMS, keyID: MockedKeyID, debug: true, want: Passthrough{}},
		{name: "mocked key outside debug", mode: ModeKMS, keyID: MockedKeyID, want: &KMSDecrypter{}},
		{name: "unknown mode", mode: "vault", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := New(tc.mode, tc.keyID, kmsClient, tc.debug)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			switch tc.want.(type) {
			case nil:
				if d != nil {
					t.Errorf("expected no decrypter, got %T", d)
				}
			case *KMSDecrypter:
				if _, ok := d.(*KMSDecrypter); !ok {
					t.Errorf("expected *KMSDecrypter, got %T", d)
				}
			case *EnvelopeDecrypter:
				if _, ok := d.(*EnvelopeDecrypter); !ok {
					t.Errorf("expected *EnvelopeDecrypter, got %T", d)
				}
			case Passthrough:
				if _, ok := d.(Passthrough); !ok {
					t.Errorf("expected Passthrough, got %T", d)
				}
			}
		})
	}
}

func TestDecryptParameters(t *testing.T) {
	ctx := context.Background()

	out, err := DecryptParameters(ctx, &mockDecrypter{}, map[string]string{"ApiKey": "abc"})
	if err != nil {
		t.Fatal(err)
	}
	if out["ApiKey"] != "plain:abc" {
		t.Errorf("expected decrypted value, got %v", out["ApiKey"])
	}

	out, err = DecryptParameters(ctx, nil, nil)
	if err != nil || out != nil {
		t.Errorf("expected nothing to do, got %v, %v", out, err)
	}

	if _, err := DecryptParameters(ctx, nil, map[string]string{"ApiKey": "abc"}); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}

	m := &mockDecrypter{failOn: "bad"}
	_, err = DecryptParameters(ctx, m, map[string]string{"A": "ok", "B": "bad", "C": "ok"})
	var decErr *DecryptError
	if !errors.As(err, &decErr) {
		t.Fatalf("expected DecryptError, got %v", err)
	}
	if decErr.Parameter != "B" || decErr.Code() != "DECRYPTION_FAILED" {
		t.Errorf("unexpected error %+v", decErr)
	}
	if m.callCount != 2 {
		t.Errorf("expected decryption to stop at the failing parameter, got %d calls", m.callCount)
	}
}

func TestKMSDecrypter(t *testing.T) {
	api := &mockKMS{}
	d := &KMSDecrypter{Client: &awsinternal.KMSClient{Client: api}}

	got, err := d.Decrypt(context.Background(), base64.StdEncoding.EncodeToString([]byte("key")))
	if err != nil {
		t.Fatal(err)
	}
	if got != "kms:key" {
		t.Errorf("expected kms:key, got %q", got)
	}
	if api.callCount != 1 {
		t.Errorf("expected one kms call, got %d", api.callCount)
	}
}

func TestEnvelopeDecrypter_RejectsMalformedInput(t *testing.T) {
	testCases := []struct {
		name       string
		keyID      string
		ciphertext string
		want       string
	}{
		{name: "invalid base64", keyID: "arn:aws:kms:us-east-1:123456789012:key/test", ciphertext: "not base64!", want: "not valid base64"},
		{name: "empty ciphertext", keyID: "arn:aws:kms:us-east-1:123456789012:key/test", ciphertext: "  ", want: "ciphertext is empty"},
		{name: "missing key", ciphertext: "aGVsbG8=", want: "requires a key id"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			d := &EnvelopeDecrypter{KeyID: tc.keyID}

			_, err := d.Decrypt(context.Background(), tc.ciphertext)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("expected error containing %q, got %v", tc.want, err)
			}
			if d.client != nil {
				t.Error("expected no encryption client to be built")
			}
		})
	}
}
