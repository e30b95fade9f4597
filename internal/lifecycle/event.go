// Package lifecycle interprets CloudTrail audit events for Lambda functions
// and decides whether they require an alarm change.
package lifecycle

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	// Source is the EventBridge source of Lambda CloudTrail events.
	Source = "aws.lambda"
	// DetailType is the EventBridge detail type of CloudTrail API calls.
	DetailType = "AWS API Call via CloudTrail"
	// EventSource is the CloudTrail event source of the Lambda API.
	EventSource = "lambda.amazonaws.com"

	CreateFunctionEventName = "CreateFunction20150331"
	DeleteFunctionEventName = "DeleteFunction20150331"
)

// TrackedEventNames lists the CloudTrail event names the rule forwards.
var TrackedEventNames = []string{CreateFunctionEventName, DeleteFunctionEventName}

// EventName is the closed set of lifecycle events the reconciler understands.
// Any event name it does not know maps to EventOther.
type EventName int

const (
	EventOther EventName = iota
	EventFunctionCreated
	EventFunctionDeleted
)

// ParseEventName maps a CloudTrail event name onto EventName.
func ParseEventName(name string) EventName {
	switch name {
	case CreateFunctionEventName:
		return EventFunctionCreated
	case DeleteFunctionEventName:
		return EventFunctionDeleted
	default:
		return EventOther
	}
}

func (n EventName) String() string {
	switch n {
	case EventFunctionCreated:
		return "FunctionCreated"
	case EventFunctionDeleted:
		return "FunctionDeleted"
	default:
		return "Other"
	}
}

// Detail is the subset of a CloudTrail record delivered in the EventBridge detail field.
type Detail struct {
	EventID           string            `json:"eventID"`
	EventName         string            `json:"eventName"`
	EventSource       string            `json:"eventSource"`
	ErrorCode         string            `json:"errorCode,omitempty"`
	ErrorMessage      string            `json:"errorMessage,omitempty"`
	RequestParameters RequestParameters `json:"requestParameters"`
}

// RequestParameters holds the Lambda API request fields the reconciler reads.
type RequestParameters struct {
	FunctionName string `json:"functionName"`
}

// Parse decodes the detail payload of an EventBridge event.
func Parse(raw json.RawMessage) (Detail, error) {
	var detail Detail
	if len(raw) == 0 {
		return detail, errors.New("cannot parse event detail: empty payload")
	}

	if err := json.Unmarshal(raw, &detail); err != nil {
		return detail, fmt.Errorf("cannot parse event detail: %w", err)
	}

	return detail, nil
}

// FunctionName splits a Lambda function reference into the function name and
// its version or alias qualifier. The Lambda API accepts a name, a partial
// ARN (123456789012:function:name) or a full ARN, each optionally followed by
// ":qualifier".
func FunctionName(ref string) (name, qualifier string) {
	parts := strings.Split(ref, ":")

	switch {
	case len(parts) >= 7 && parts[0] == "arn" && parts[5] == "function":
		parts = parts[6:]
	case len(parts) >= 3 && parts[1] == "function":
		parts = parts[2:]
	}

	if len(parts) > 1 {
		qualifier = strings.Join(parts[1:], ":")
	}

	return parts[0], qualifier
}
