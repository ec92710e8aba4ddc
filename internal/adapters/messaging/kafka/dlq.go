package kafka

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/twmb/franz-go/pkg/kgo"
)

// DLQ header keys.
const (
	HeaderErrorType     = "error_type"
	HeaderErrorString   = "error_string"
	HeaderOriginalTopic = "original_topic"
)

// DeadLetter builds the DLQ copy of a record that could not be processed.
func DeadLetter(dlqTopic string, original *kgo.Record, errorType, errorString string) *kgo.Record {
	return &kgo.Record{
		Topic: dlqTopic,
		Key:   original.Key,
		Value: original.Value,
		Headers: []kgo.RecordHeader{
			{Key: HeaderErrorType, Value: []byte(errorType)},
			{Key: HeaderErrorString, Value: []byte(errorString)},
			{Key: HeaderOriginalTopic, Value: []byte(original.Topic)},
		},
	}
}

// SendToDLQ produces the dead letter synchronously; losing it would lose the event.
func SendToDLQ(ctx context.Context, client *kgo.Client, dlqTopic string, original *kgo.Record, errorType, errorString string) error {
	if err := client.ProduceSync(ctx, DeadLetter(dlqTopic, original, errorType, errorString)).FirstErr(); err != nil {
		return fmt.Errorf("failed to send record to %s: %w", dlqTopic, err)
	}
	return nil
}

// ErrorHeaders extracts error_type and error_string, "N/A" when absent.
func ErrorHeaders(headers []kgo.RecordHeader) (errorType, errorString string) {
	errorType, errorString = "N/A", "N/A"
	for _, h := range headers {
		switch h.Key {
		case HeaderErrorType:
			errorType = string(h.Value)
		case HeaderErrorString:
			errorString = string(h.Value)
		}
	}
	return errorType, errorString
}

// ParsePartitionOffset parses "partition:offset".
func ParsePartitionOffset(arg string) (int32, int64, error) {
	partStr, offStr, ok := strings.Cut(arg, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid format %q, expected partition:offset such as 0:123", arg)
	}
	partition, err := strconv.ParseInt(partStr, 10, 32)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid partition: %w", err)
	}
	offset, err := strconv.ParseInt(offStr, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid offset: %w", err)
	}
	return int32(partition), offset, nil
}
