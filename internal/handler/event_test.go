package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ab0utbla-k/lambda-errors-alarm/internal/alarm"
	"github.com/ab0utbla-k/lambda-errors-alarm/internal/lifecycle"
)

func setupHandler(t *testing.T) (*CloudWatchAPIMock, *bytes.Buffer, *EventHandler) {
	t.Helper()

	mockCW := new(CloudWatchAPIMock)
	logs := new(bytes.Buffer)
	logger := slog.New(slog.NewJSONHandler(logs, nil))

	reconciler := alarm.NewReconciler(alarm.NewClient(mockCW), alarm.Actions{})

	return mockCW, logs, NewEventHandler(reconciler, time.Minute, logger)
}

func newEvent(detail string) events.CloudWatchEvent {
	return events.CloudWatchEvent{
		ID:         "7bf73129-1428-4cd3-a780-95db273d1602",
		DetailType: lifecycle.DetailType,
		Source:     lifecycle.Source,
		AccountID:  "123456789012",
		Region:     "us-east-1",
		Detail:     json.RawMessage(detail),
	}
}

func logLines(t *testing.T, logs *bytes.Buffer) []map[string]any {
	t.Helper()

	var lines []map[string]any
	for line := range strings.Lines(logs.String()) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func assertNoCalls(t *testing.T, mockCW *CloudWatchAPIMock) {
	t.Helper()

	mockCW.AssertNotCalled(t, "PutMetricAlarm", mock.Anything, mock.Anything, mock.Anything)
	mockCW.AssertNotCalled(t, "DeleteAlarms", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleRequest_FunctionCreated(t *testing.T) {
	mockCW, logs, h := setupHandler(t)

	mockCW.On("PutMetricAlarm",
		mock.MatchedBy(func(ctx context.Context) bool { return ctx != nil }),
		mock.MatchedBy(func(input *cloudwatch.PutMetricAlarmInput) bool {
			return aws.ToString(input.AlarmName) == "f1/Errors" &&
				aws.ToFloat64(input.Threshold) == 0 &&
				aws.ToInt32(input.Period) == 60 &&
				input.ComparisonOperator == types.ComparisonOperatorGreaterThanThreshold
		}),
		mock.AnythingOfType("[]func(*cloudwatch.Options)"),
	).Return(&cloudwatch.PutMetricAlarmOutput{}, nil).Once()

	err := h.HandleRequest(context.Background(), newEvent(
		`{"eventName":"CreateFunction20150331","requestParameters":{"functionName":"f1"}}`))
	require.NoError(t, err)

	mockCW.AssertExpectations(t)
	mockCW.AssertNotCalled(t, "DeleteAlarms", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, logs.String())
}

func TestHandleRequest_FunctionDeleted(t *testing.T) {
	mockCW, logs, h := setupHandler(t)

	mockCW.On("DeleteAlarms",
		mock.MatchedBy(func(ctx context.Context) bool { return ctx != nil }),
		&cloudwatch.DeleteAlarmsInput{AlarmNames: []string{"f1/Errors"}},
		mock.AnythingOfType("[]func(*cloudwatch.Options)"),
	).Return(&cloudwatch.DeleteAlarmsOutput{}, nil).Once()

	err := h.HandleRequest(context.Background(), newEvent(
		`{"eventName":"DeleteFunction20150331","requestParameters":{"functionName":"f1"}}`))
	require.NoError(t, err)

	mockCW.AssertExpectations(t)
	mockCW.AssertNotCalled(t, "PutMetricAlarm", mock.Anything, mock.Anything, mock.Anything)
	assert.Empty(t, logs.String())
}

func TestHandleRequest_UntrackedEvent(t *testing.T) {
	mockCW, logs, h := setupHandler(t)

	err := h.HandleRequest(context.Background(), newEvent(
		`{"eventName":"ResourceUpdated","requestParameters":{"functionName":"f1"}}`))
	require.NoError(t, err)

	assertNoCalls(t, mockCW)
	assert.Empty(t, logs.String())
}

func TestHandleRequest_VersionDeleted(t *testing.T) {
	mockCW, logs, h := setupHandler(t)

	err := h.HandleRequest(context.Background(), newEvent(
		`{"eventName":"DeleteFunction20150331","requestParameters":{"functionName":"arn:aws:lambda:us-east-1:123456789012:function:f1:3"}}`))
	require.NoError(t, err)

	assertNoCalls(t, mockCW)
	assert.Empty(t, logs.String())
}

func TestHandleRequest_FailedAPICall(t *testing.T) {
	mockCW, _, h := setupHandler(t)

	err := h.HandleRequest(context.Background(), newEvent(
		`{"errorCode":"AccessDenied","eventName":"CreateFunction20150331","requestParameters":{"functionName":"f1"}}`))
	require.NoError(t, err)

	err = h.HandleRequest(context.Background(), newEvent(
		`{"errorCode":"ResourceNotFoundException","eventName":"DeleteFunction20150331","requestParameters":{"functionName":"f1"}}`))
	require.NoError(t, err)

	err = h.HandleRequest(context.Background(), newEvent(`{"errorCode":"AccessDenied"}`))
	require.NoError(t, err)

	assertNoCalls(t, mockCW)
}

func TestHandleRequest_PutMetricAlarmRejected(t *testing.T) {
	mockCW, logs, h := setupHandler(t)

	mockCW.On("PutMetricAlarm",
		mock.Anything,
		mock.AnythingOfType("*cloudwatch.PutMetricAlarmInput"),
		mock.Anything,
	).Return((*cloudwatch.PutMetricAlarmOutput)(nil), &smithy.GenericAPIError{
		Code:    "Throttling",
		Message: "Rate exceeded",
	}).Once()

	err := h.HandleRequest(context.Background(), newEvent(
		`{"eventID":"e-1","eventName":"CreateFunction20150331","requestParameters":{"functionName":"f1"}}`))
	require.NoError(t, err)

	mockCW.AssertNumberOfCalls(t, "PutMetricAlarm", 1)
	mockCW.AssertNotCalled(t, "DeleteAlarms", mock.Anything, mock.Anything, mock.Anything)

	lines := logLines(t, logs)
	require.Len(t, lines, 1)
	assert.Equal(t, "ERROR", lines[0]["level"])
	assert.Equal(t, "cannot reconcile alarm", lines[0]["msg"])
	assert.Equal(t, "e-1", lines[0]["eventID"])
	assert.Equal(t, "ensure", lines[0]["action"])
	assert.Equal(t, "f1", lines[0]["functionName"])
	assert.Equal(t, "f1/Errors", lines[0]["alarmName"])
	assert.Equal(t, "Throttling", lines[0]["serviceErrorCode"])
	assert.Contains(t, lines[0]["error"], "Rate exceeded")
}

func TestHandleRequest_DeleteAlarmsRejected(t *testing.T) {
	mockCW, logs, h := setupHandler(t)

	mockCW.On("DeleteAlarms",
		mock.Anything,
		mock.AnythingOfType("*cloudwatch.DeleteAlarmsInput"),
		mock.Anything,
	).Return((*cloudwatch.DeleteAlarmsOutput)(nil), &types.ResourceNotFound{
		Message: aws.String("alarm f1/Errors does not exist"),
	}).Once()

	err := h.HandleRequest(context.Background(), newEvent(
		`{"eventName":"DeleteFunction20150331","requestParameters":{"functionName":"f1"}}`))
	require.NoError(t, err)

	mockCW.AssertNumberOfCalls(t, "DeleteAlarms", 1)

	lines := logLines(t, logs)
	require.Len(t, lines, 1)
	assert.Equal(t, "remove", lines[0]["action"])
	assert.Equal(t, "ResourceNotFound", lines[0]["serviceErrorCode"])
}

func TestHandleRequest_MalformedDetail(t *testing.T) {
	mockCW, logs, h := setupHandler(t)

	err := h.HandleRequest(context.Background(), newEvent(`{"eventName":`))
	require.NoError(t, err)

	assertNoCalls(t, mockCW)

	lines := logLines(t, logs)
	require.Len(t, lines, 1)
	assert.Equal(t, "cannot parse lifecycle event", lines[0]["msg"])
}

func TestHandleRequest_IgnoredEventLoggedAtDebug(t *testing.T) {
	logs := new(bytes.Buffer)
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	reconciler := new(ReconcilerMock)
	h := NewEventHandler(reconciler, 0, logger)

	err := h.HandleRequest(context.Background(), newEvent(
		`{"errorCode":"AccessDenied","eventName":"CreateFunction20150331","requestParameters":{"functionName":"f1"}}`))
	require.NoError(t, err)

	reconciler.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything)

	lines := logLines(t, logs)
	require.Len(t, lines, 1)
	assert.Equal(t, "DEBUG", lines[0]["level"])
	assert.Equal(t, lifecycle.ReasonAPICallFailed, lines[0]["reason"])
	assert.Equal(t, "AccessDenied", lines[0]["errorCode"])
}

func TestHandleRequest_CallTimeoutApplied(t *testing.T) {
	reconciler := new(ReconcilerMock)
	h := NewEventHandler(reconciler, 5*time.Second, slog.New(slog.DiscardHandler))

	reconciler.On("Apply",
		mock.MatchedBy(func(ctx context.Context) bool {
			deadline, ok := ctx.Deadline()
			return ok && time.Until(deadline) <= 5*time.Second
		}),
		lifecycle.Ensure("f1"),
	).Return(nil).Once()

	err := h.HandleRequest(context.Background(), newEvent(
		`{"eventName":"CreateFunction20150331","requestParameters":{"functionName":"f1"}}`))
	require.NoError(t, err)
	reconciler.AssertExpectations(t)
}

func TestHandleRequest_PanicIsContained(t *testing.T) {
	logs := new(bytes.Buffer)
	reconciler := new(ReconcilerMock)
	h := NewEventHandler(reconciler, 0, slog.New(slog.NewJSONHandler(logs, nil)))

	reconciler.On("Apply", mock.Anything, mock.Anything).Panic("boom").Once()

	var err error
	require.NotPanics(t, func() {
		err = h.HandleRequest(context.Background(), newEvent(
			`{"eventName":"DeleteFunction20150331","requestParameters":{"functionName":"f1"}}`))
	})
	require.NoError(t, err)

	lines := logLines(t, logs)
	require.Len(t, lines, 1)
	assert.Equal(t, "reconcile panicked", lines[0]["msg"])
}

func TestServiceErrorCode(t *testing.T) {
	assert.Empty(t, serviceErrorCode(errors.New("plain")))
	assert.Equal(t, "AccessDenied", serviceErrorCode(
		&smithy.GenericAPIError{Code: "AccessDenied", Message: "no"}))
}
