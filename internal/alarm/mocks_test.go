package alarm

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/stretchr/testify/mock"
)

// CloudWatchAPIMock is a mock implementation of the CloudWatchAPI interface.
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

// ServiceMock is a mock implementation of the Service interface.
type ServiceMock struct {
	mock.Mock
}

func (m *ServiceMock) PutAlarm(ctx context.Context, spec *Spec) error {
	return m.Called(ctx, spec).Error(0)
}

func (m *ServiceMock) DeleteAlarms(ctx context.Context, names ...string) error {
	return m.Called(ctx, names).Error(0)
}
