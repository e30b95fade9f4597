package handler

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/mock"

	"github.com/ab0utbla-k/lambda-errors-alarm/internal/lifecycle"
)

// CloudWatchAPIMock is a mock implementation of the alarm.CloudWatchAPI interface.
type CloudWatchAPIMock struct {
	mock.Mock
}

func (m *CloudWatchAPIMock) PutMetricAlarm(ctx context.Context, params *cloudwatch.PutMetricAlarmInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricAlarmOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cloudwatch.PutMetricAlarmOutput), args.Error(1)
}

func (m *CloudWatchAPIMock) DeleteAlarms(ctx context.Context, params *cloudwatch.DeleteAlarmsInput, optFns ...func(*cloudwatch.Options)) (*cloudwatch.DeleteAlarmsOutput, error) {
	args := m.Called(ctx, params, optFns)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cloudwatch.DeleteAlarmsOutput), args.Error(1)
}

// ReconcilerMock is a mock implementation of the Reconciler interface.
type ReconcilerMock struct {
	mock.Mock
}

func (m *ReconcilerMock) Apply(ctx context.Context, decision lifecycle.Decision) error {
	return m.Called(ctx, decision).Error(0)
}
