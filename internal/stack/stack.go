// Package stack defines the CloudFormation stack that deploys the alarm
// reconciler and routes Lambda lifecycle events to it.
package stack

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatchactions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awseventstargets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3assets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssns"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/ab0utbla-k/lambda-errors-alarm/internal/alarm"
	"github.com/ab0utbla-k/lambda-errors-alarm/internal/lifecycle"
)

const (
	Name = "lambda-errors-alarm"

	AlarmTopicContextKey = "alarm-topic"
	OKTopicContextKey    = "ok-topic"

	DefaultAssetPath = "dist/reconciler"
)

type Props struct {
	awscdk.StackProps
	// AssetPath is the directory holding the compiled bootstrap binary.
	AssetPath string
}

// New builds the stack. Topic names are read from the alarm-topic and
// ok-topic context keys; either may be omitted.
func New(scope constructs.Construct, id string, props *Props) awscdk.Stack {
	var sprops awscdk.StackProps
	assetPath := DefaultAssetPath
	if props != nil {
		sprops = props.StackProps
		if props.AssetPath != "" {
			assetPath = props.AssetPath
		}
	}
	if sprops.StackName == nil {
		sprops.StackName = jsii.String(Name)
	}

	stack := awscdk.NewStack(scope, &id, &sprops)

	alarmTopic := topicFromContext(stack, "AlarmTopic", AlarmTopicContextKey)
	okTopic := topicFromContext(stack, "OkTopic", OKTopicContextKey)

	handler := newHandler(stack, assetPath, alarmTopic, okTopic)
	grantAlarmAccess(stack, handler)

	selfAlarm := newErrorsAlarm(handler)
	if alarmTopic != nil {
		selfAlarm.AddAlarmAction(awscloudwatchactions.NewSnsAction(alarmTopic))
	}
	if okTopic != nil {
		selfAlarm.AddOkAction(awscloudwatchactions.NewSnsAction(okTopic))
	}

	awslogs.NewLogGroup(handler, jsii.String("LogGroup"), &awslogs.LogGroupProps{
		LogGroupName:  jsii.String(fmt.Sprintf("/aws/lambda/%s", *handler.FunctionName())),
		Retention:     awslogs.RetentionDays_ONE_DAY,
		RemovalPolicy: awscdk.RemovalPolicy_DESTROY,
	})

	newLifecycleRule(stack, handler)

	return stack
}

func topicFromContext(stack awscdk.Stack, id, key string) awssns.ITopic {
	name, ok := stack.Node().TryGetContext(jsii.String(key)).(string)
	if !ok || name == "" {
		return nil
	}

	topicARN := stack.FormatArn(&awscdk.ArnComponents{
		Service:  jsii.String("sns"),
		Resource: jsii.String(name),
	})

	return awssns.Topic_FromTopicArn(stack, jsii.String(id), topicARN)
}

func topicARN(topic awssns.ITopic) *string {
	if topic == nil {
		return jsii.String("")
	}
	return topic.TopicArn()
}

func newHandler(stack awscdk.Stack, assetPath string, alarmTopic, okTopic awssns.ITopic) awslambda.Function {
	return awslambda.NewFunction(stack, jsii.String("Handler"), &awslambda.FunctionProps{
		Runtime:       awslambda.Runtime_PROVIDED_AL2023(),
		Handler:       jsii.String("bootstrap"),
		Code:          awslambda.Code_FromAsset(jsii.String(assetPath), &awss3assets.AssetOptions{}),
		Architecture:  awslambda.Architecture_ARM_64(),
		Timeout:       awscdk.Duration_Minutes(jsii.Number(1)),
		MaxEventAge:   awscdk.Duration_Minutes(jsii.Number(1)),
		RetryAttempts: jsii.Number(0),
		Tracing:       awslambda.Tracing_ACTIVE,
		Environment: &map[string]*string{
			"ALARM_ACTIONS": topicARN(alarmTopic),
			"OK_ACTIONS":    topicARN(okTopic),
		},
	})
}

func grantAlarmAccess(stack awscdk.Stack, handler awslambda.Function) {
	handler.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Effect: awsiam.Effect_ALLOW,
		Actions: jsii.Strings(
			"cloudwatch:PutMetricAlarm",
			"cloudwatch:DeleteAlarms",
		),
		Resources: jsii.Strings(*stack.FormatArn(&awscdk.ArnComponents{
			Service:      jsii.String("cloudwatch"),
			Resource:     jsii.String("alarm"),
			ResourceName: jsii.String("*"),
			ArnFormat:    awscdk.ArnFormat_COLON_RESOURCE_NAME,
		})),
	}))
}

// newErrorsAlarm gives the handler the same alarm it manages for every
// other function.
func newErrorsAlarm(handler awslambda.Function) awscloudwatch.Alarm {
	spec := alarm.NewSpec(*handler.FunctionName(), alarm.Actions{})

	metric := awscloudwatch.NewMetric(&awscloudwatch.MetricProps{
		Namespace:  jsii.String(spec.Namespace),
		MetricName: jsii.String(spec.MetricName),
		Statistic:  jsii.String(string(spec.Statistic)),
		Period:     awscdk.Duration_Seconds(jsii.Number(float64(spec.Period))),
		DimensionsMap: &map[string]*string{
			alarm.DimensionName: handler.FunctionName(),
		},
	})

	return metric.CreateAlarm(handler, jsii.String("Alarm"), &awscloudwatch.CreateAlarmOptions{
		AlarmName:          jsii.String(spec.Name),
		ComparisonOperator: awscloudwatch.ComparisonOperator_GREATER_THAN_THRESHOLD,
		Threshold:          jsii.Number(spec.Threshold),
		EvaluationPeriods:  jsii.Number(float64(spec.EvaluationPeriods)),
		TreatMissingData:   awscloudwatch.TreatMissingData_NOT_BREACHING,
	})
}

func newLifecycleRule(stack awscdk.Stack, handler awslambda.Function) awsevents.Rule {
	return awsevents.NewRule(stack, jsii.String("Rule"), &awsevents.RuleProps{
		EventPattern: &awsevents.EventPattern{
			Source:     jsii.Strings(lifecycle.Source),
			DetailType: jsii.Strings(lifecycle.DetailType),
			Detail: &map[string]any{
				"eventSource": []string{lifecycle.EventSource},
				"eventName":   lifecycle.TrackedEventNames,
			},
		},
		Targets: &[]awsevents.IRuleTarget{
			awseventstargets.NewLambdaFunction(handler, &awseventstargets.LambdaFunctionProps{
				MaxEventAge:   awscdk.Duration_Minutes(jsii.Number(1)),
				RetryAttempts: jsii.Number(0),
			}),
		},
	})
}
