package cloud

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/aquatracking/aquatracking/internal/domain"
)

type snsPublisher interface {
	Publish(ctx context.Context, in *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSClient wraps AWS SNS client for notification operations
type SNSClient struct {
	svc      snsPublisher
	topicArn string
}

// NewSNSClient creates a new SNS client instance
func NewSNSClient(ctx context.Context, region, topicArn string) (*SNSClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load SDK config: %w", err)
	}

	return &SNSClient{
		svc:      sns.NewFromConfig(cfg),
		topicArn: topicArn,
	}, nil
}

// SendAlert publishes a message to the topic
func (c *SNSClient) SendAlert(ctx context.Context, subject, message string) error {
	input := &sns.PublishInput{
		TopicArn: aws.String(c.topicArn),
		Subject:  aws.String(subject),
		Message:  aws.String(message),
	}

	if _, err := c.svc.Publish(ctx, input); err != nil {
		return fmt.Errorf("failed to publish to SNS: %w", err)
	}
	return nil
}

// Notify formats a consumption alert for human subscribers (email/SMS).
func (c *SNSClient) Notify(ctx context.Context, a domain.Alert) error {
	subject := fmt.Sprintf("AquaTracking: %s for home %s", a.Type, a.HomeID)
	message := fmt.Sprintf(
		"Water Consumption Alert\n\n"+
			"Home: %s\n"+
			"Type: %s\n"+
			"Day: %s\n"+
			"Detail: %s\n"+
			"Triggered: %s\n",
		a.HomeID,
		a.Type,
		a.Date,
		a.Message,
		a.TriggeredAt.Format(time.RFC3339),
	)
	return c.SendAlert(ctx, subject, message)
}
