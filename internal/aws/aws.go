package aws

import (
	"github.com/aws/aws-sdk-go-v2/aws"
)

type AWSClient struct {
	Pinpoint *PinpointClient
	KMS      *KMSClient
}

// NewAWSClient builds the service clients from an already-loaded AWS config.
// A non-empty endpoint overrides the Pinpoint endpoint only.
func NewAWSClient(cfg aws.Config, pinpointEndpoint string) *AWSClient {
	return &AWSClient{
		Pinpoint: NewPinpointClient(cfg, pinpointEndpoint),
		KMS:      NewKMSClient(cfg),
	}
}
