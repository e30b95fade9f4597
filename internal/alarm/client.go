package alarm

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
)

// ErrNoAlarmNames is returned when DeleteAlarms is called without names.
var ErrNoAlarmNames = errors.New("no alarm names to delete")

// CloudWatchAPI defines the CloudWatch operations required to manage alarms.
type CloudWatchAPI interface {
	PutMetricAlarm(
		ctx context.Context,
		input *cloudwatch.PutMetricAlarmInput,
		optFns ...func(*cloudwatch.Options)) (*cloudwatch.PutMetricAlarmOutput, error)

	DeleteAlarms(
		ctx context.Context,
		input *cloudwatch.DeleteAlarmsInput,
		optFns ...func(*cloudwatch.Options)) (*cloudwatch.DeleteAlarmsOutput, error)
}

// Client manages alarms in CloudWatch.
//
// PutMetricAlarm replaces an existing alarm of the same name, so PutAlarm is
// idempotent. Deleting an alarm that does not exist is reported by CloudWatch
// as an error and surfaces here unchanged.
type Client struct {
	cw CloudWatchAPI
}

// NewClient creates a new Client instance.
func NewClient(cw CloudWatchAPI) *Client {
	return &Client{
		cw: cw,
	}
}

// PutAlarm creates the alarm described by spec or replaces it.
func (c *Client) PutAlarm(ctx context.Context, spec *Spec) error {
	if _, err := c.cw.PutMetricAlarm(ctx, spec.PutMetricAlarmInput()); err != nil {
		return fmt.Errorf("cannot put metric alarm %q: %w", spec.Name, err)
	}

	return nil
}

// DeleteAlarms deletes the named alarms in a single call.
func (c *Client) DeleteAlarms(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return ErrNoAlarmNames
	}

	_, err := c.cw.DeleteAlarms(ctx, &cloudwatch.DeleteAlarmsInput{
		AlarmNames: names,
	})
	if err != nil {
		return fmt.Errorf("cannot delete alarms %q: %w", names, err)
	}

	return nil
}
