// Package queue publishes "readings ingested" events to SQS for the forecast
// worker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	sqsTypes "github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"parkwatch/internal/types"
)

// SQSSender abstracts the SQS SendMessage operation for testability.
// Production code uses the *sqs.Client from aws-sdk-go-v2.
type SQSSender interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

// IngestNotifier announces stored scrape batches.
type IngestNotifier struct {
	client   SQSSender
	queueURL string
	logger   *slog.Logger
}

func NewIngestNotifier(client SQSSender, queueURL string, logger *slog.Logger) *IngestNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestNotifier{client: client, queueURL: queueURL, logger: logger}
}

// NotifyIngested sends msg as JSON with its source hash as a message
// attribute so consumers can filter without decoding the body.
func (n *IngestNotifier) NotifyIngested(ctx context.Context, msg types.ReadingsIngestedMessage) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalQueue, "failed to encode ingest message", err)
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    aws.String(n.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]sqsTypes.MessageAttributeValue{
			"source_hash": {
				DataType:    aws.String("String"),
				StringValue: aws.String(msg.SourceHash),
			},
		},
	}

	if _, err := n.client.SendMessage(ctx, input); err != nil {
		return types.NewAppError(types.ErrCodeInternalQueue, fmt.Sprintf("failed to send ingest message to %s", n.queueURL), err)
	}

	n.logger.InfoContext(ctx, "ingest message sent",
		"queue_url", n.queueURL,
		"batch_id", msg.BatchID,
		"trace_id", msg.TraceID,
		"garages", len(msg.GarageIDs),
	)
	return nil
}
