// Package alarm derives and manages the per-function Lambda error alarm.
package alarm

import (
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch/types"
)

const (
	Namespace     = "AWS/Lambda"
	MetricName    = "Errors"
	DimensionName = "FunctionName"

	nameSuffix = "/" + MetricName

	period            = 60
	evaluationPeriods = 1
	threshold         = 0
	treatMissingData  = "notBreaching"
)

// Name returns the alarm name of a function. Distinct function names always
// produce distinct alarm names, so no lookup table is needed.
func Name(functionName string) string {
	return functionName + nameSuffix
}

// Actions holds the notification targets attached to every alarm.
// Either list may be empty.
type Actions struct {
	// Alarm targets are notified on the transition to ALARM.
	Alarm []string
	// OK targets are notified on the transition back to OK.
	OK []string
}

// Spec is the desired state of a function's error alarm.
type Spec struct {
	Name               string
	FunctionName       string
	Namespace          string
	MetricName         string
	Statistic          types.Statistic
	Period             int32
	EvaluationPeriods  int32
	Threshold          float64
	ComparisonOperator types.ComparisonOperator
	TreatMissingData   string
	AlarmActions       []string
	OKActions          []string
}

// NewSpec builds the error alarm for functionName: any error within a
// one-minute window puts the alarm into ALARM, and no data counts as OK.
func NewSpec(functionName string, actions Actions) *Spec {
	return &Spec{
		Name:               Name(functionName),
		FunctionName:       functionName,
		Namespace:          Namespace,
		MetricName:         MetricName,
		Statistic:          types.StatisticSum,
		Period:             period,
		EvaluationPeriods:  evaluationPeriods,
		Threshold:          threshold,
		ComparisonOperator: types.ComparisonOperatorGreaterThanThreshold,
		TreatMissingData:   treatMissingData,
		AlarmActions:       slices.Clone(actions.Alarm),
		OKActions:          slices.Clone(actions.OK),
	}
}

// PutMetricAlarmInput converts the spec into a CloudWatch request.
func (s *Spec) PutMetricAlarmInput() *cloudwatch.PutMetricAlarmInput {
	return &cloudwatch.PutMetricAlarmInput{
		AlarmName:  aws.String(s.Name),
		Namespace:  aws.String(s.Namespace),
		MetricName: aws.String(s.MetricName),
		Dimensions: []types.Dimension{{
			Name:  aws.String(DimensionName),
			Value: aws.String(s.FunctionName),
		}},
		Statistic:          s.Statistic,
		Period:             aws.Int32(s.Period),
		EvaluationPeriods:  aws.Int32(s.EvaluationPeriods),
		Threshold:          aws.Float64(s.Threshold),
		ComparisonOperator: s.ComparisonOperator,
		TreatMissingData:   aws.String(s.TreatMissingData),
		AlarmActions:       s.AlarmActions,
		OKActions:          s.OKActions,
	}
}
