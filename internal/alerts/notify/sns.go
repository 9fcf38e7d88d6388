package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"

	alerts "smart-maintenance/internal/alerts/domain"
)

// SNSPublisher is the subset of the SNS client used for alerts.
type SNSPublisher interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSTransport publishes alerts to an SNS topic.
type SNSTransport struct {
	client   SNSPublisher
	topicARN string
}

// NewSNSTransport constructs a transport around an existing publisher.
func NewSNSTransport(client SNSPublisher, topicARN string) (*SNSTransport, error) {
	if client == nil {
		return nil, errors.New("sns transport: nil client")
	}
	if topicARN == "" {
		return nil, errors.New("sns transport: empty topic arn")
	}
	return &SNSTransport{client: client, topicARN: topicARN}, nil
}

// NewSNSTransportFromRegion loads the default AWS config and builds a transport.
func NewSNSTransportFromRegion(ctx context.Context, region, topicARN string) (*SNSTransport, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}
	return NewSNSTransport(sns.NewFromConfig(cfg), topicARN)
}

// Send publishes the message with the device id as a message attribute.
func (s *SNSTransport) Send(ctx context.Context, n alerts.Notification) error {
	if s == nil || s.client == nil {
		return errors.New("sns transport: not configured")
	}
	input := &sns.PublishInput{
		TopicArn: aws.String(s.topicARN),
		Subject:  aws.String(fmt.Sprintf("Predictive Maintenance Alert: %s", n.DeviceID)),
		Message:  aws.String(n.Message),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"device_id": {
				DataType:    aws.String("String"),
				StringValue: aws.String(n.DeviceID),
			},
			"risk_score": {
				DataType:    aws.String("Number"),
				StringValue: aws.String(formatFloat(n.RiskScore)),
			},
		},
	}
	if _, err := s.client.Publish(ctx, input); err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	return nil
}
