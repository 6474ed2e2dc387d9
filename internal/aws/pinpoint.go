package aws

import (
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/pinpoint"

	"github.com/cruxstack/pinpoint-dispatch-go/internal/dispatch"
)

const pinpointService = "pinpoint"

type PinpointClient struct {
	Client   *pinpoint.Client
	endpoint string
	region   string
}

func NewPinpointClient(cfg aws.Config, endpoint string) *PinpointClient {
	client := pinpoint.NewFromConfig(cfg, func(o *pinpoint.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return &PinpointClient{Client: client, endpoint: endpoint, region: cfg.Region}
}

// Connection describes where calls are sent, for error reporting.
func (c *PinpointClient) Connection() dispatch.Connection {
	return dispatch.Connection{
		Service:  pinpointService,
		Region:   c.region,
		Endpoint: c.endpoint,
	}
}
