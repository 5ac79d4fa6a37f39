// Package decoder turns the payload of a CloudWatch Logs subscription
// delivery into CloudTrail records.
//
// The payload is base64(gzip(JSON)). The JSON document carries a logEvents
// array whose message fields each hold one CloudTrail event serialized as JSON.
// Decoding is all-or-nothing: the first malformed stage or message aborts the
// batch with a *types.DecodeError and no records.
package decoder

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-lambda-go/events"
	"github.com/klauspost/compress/gzip"

	"trailnotify/internal/types"
)

// maxDecompressedBytes caps the inflated payload. CloudWatch Logs delivers at
// most 1 MiB compressed per subscription batch.
const maxDecompressedBytes = 64 << 20

var errPayloadTooLarge = fmt.Errorf("decompressed payload exceeds %d bytes", maxDecompressedBytes)

// Decode decodes the awslogs.data string into records, in log event order.
func Decode(data string) ([]types.Record, error) {
	logData, err := DecodeLogData(data)
	if err != nil {
		return nil, err
	}
	return Records(logData)
}

// DecodeLogData decodes the envelope without parsing the individual messages.
func DecodeLogData(data string) (events.CloudwatchLogsData, error) {
	var logData events.CloudwatchLogsData

	compressed, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return logData, envelopeError(types.DecodeStageBase64, err)
	}

	raw, err := gunzip(compressed)
	if err != nil {
		return logData, envelopeError(types.DecodeStageGzip, err)
	}

	if err := json.Unmarshal(raw, &logData); err != nil {
		return logData, envelopeError(types.DecodeStageJSON, err)
	}
	return logData, nil
}

// Records parses each log event message into a record. A message that is not
// a JSON object fails the whole batch.
func Records(logData events.CloudwatchLogsData) ([]types.Record, error) {
	records := make([]types.Record, 0, len(logData.LogEvents))
	for i, ev := range logData.LogEvents {
		var rec types.Record
		if err := json.Unmarshal([]byte(ev.Message), &rec); err != nil {
			return nil, &types.DecodeError{Stage: types.DecodeStageMessage, Index: i, EventID: ev.ID, Err: err}
		}
		if rec == nil {
			return nil, &types.DecodeError{
				Stage:   types.DecodeStageMessage,
				Index:   i,
				EventID: ev.ID,
				Err:     errors.New("message is not a JSON object"),
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// Encode builds an awslogs.data string from logData. It is the inverse of
// DecodeLogData and is used to craft sample envelopes.
func Encode(logData events.CloudwatchLogsData) (string, error) {
	raw, err := json.Marshal(logData)
	if err != nil {
		return "", fmt.Errorf("marshal log data: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return "", fmt.Errorf("gzip write: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("gzip close: %w", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// EncodeRecords wraps records as the messages of a single DATA_MESSAGE batch.
// Log event ids are their position in records.
func EncodeRecords(records []types.Record) (string, error) {
	logData := events.CloudwatchLogsData{
		MessageType:         "DATA_MESSAGE",
		Owner:               "000000000000",
		LogGroup:            "CloudTrail/DefaultLogGroup",
		LogStream:           "000000000000_CloudTrail_us-east-1",
		SubscriptionFilters: []string{"cis-notifier"},
		LogEvents:           make([]events.CloudwatchLogsLogEvent, 0, len(records)),
	}
	for i, rec := range records {
		msg, err := json.Marshal(rec)
		if err != nil {
			return "", fmt.Errorf("marshal record %d: %w", i, err)
		}
		logData.LogEvents = append(logData.LogEvents, events.CloudwatchLogsLogEvent{
			ID:      fmt.Sprintf("%d", i),
			Message: string(msg),
		})
	}
	return Encode(logData)
}

func gunzip(compressed []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	raw, err := io.ReadAll(io.LimitReader(zr, maxDecompressedBytes+1))
	if err != nil {
		return nil, err
	}
	if len(raw) > maxDecompressedBytes {
		return nil, errPayloadTooLarge
	}
	return raw, nil
}

func envelopeError(stage types.DecodeStage, err error) *types.DecodeError {
	return &types.DecodeError{Stage: stage, Index: -1, Err: err}
}
