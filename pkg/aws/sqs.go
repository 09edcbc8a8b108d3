package aws

import (
	"context"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
)

// SQSAPI is the part of the SQS client used here.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// SQSSender sends messages to a single queue.
type SQSSender struct {
	client   SQSAPI
	queueURL string
}

func NewSQSSender(cfg sdkaws.Config, queueURL string) *SQSSender {
	return &SQSSender{client: sqs.NewFromConfig(cfg), queueURL: queueURL}
}

func NewSQSSenderWithAPI(api SQSAPI, queueURL string) *SQSSender {
	return &SQSSender{client: api, queueURL: queueURL}
}

// Send enqueues body with an event_type message attribute.
func (s *SQSSender) Send(ctx context.Context, eventType string, body []byte) error {
	if s.queueURL == "" {
		return fmt.Errorf("empty queueURL")
	}
	_, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    sdkaws.String(s.queueURL),
		MessageBody: sdkaws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"event_type": {DataType: sdkaws.String("String"), StringValue: sdkaws.String(eventType)},
		},
	})
	if err != nil {
		return fmt.Errorf("sqs send failed for queue %s: %w", s.queueURL, err)
	}
	return nil
}
