package lifecycle

// Action is what the reconciler should do for a function.
type Action int

const (
	ActionIgnore Action = iota
	ActionEnsure
	ActionRemove
)

func (a Action) String() string {
	switch a {
	case ActionEnsure:
		return "ensure"
	case ActionRemove:
		return "remove"
	default:
		return "ignore"
	}
}

// Reasons reported for ignored events.
const (
	ReasonAPICallFailed       = "api call failed"
	ReasonUntrackedEvent      = "untracked event"
	ReasonMissingFunctionName = "missing function name"
	ReasonVersionDeleted      = "version deleted"
)

// Decision is the outcome of classifying a lifecycle event.
type Decision struct {
	Action       Action
	FunctionName string
	// Reason explains an ActionIgnore decision.
	Reason string
}

// Ensure reports a decision to create or replace the alarm of functionName.
func Ensure(functionName string) Decision {
	return Decision{Action: ActionEnsure, FunctionName: functionName}
}

// Remove reports a decision to delete the alarm of functionName.
func Remove(functionName string) Decision {
	return Decision{Action: ActionRemove, FunctionName: functionName}
}

// Ignore reports a decision to leave alarms untouched.
func Ignore(reason string) Decision {
	return Decision{Action: ActionIgnore, Reason: reason}
}

// Classify decides what a lifecycle event means for the function's alarm.
// A failed API call never changes anything, whatever the event name.
func Classify(detail Detail) Decision {
	if detail.ErrorCode != "" {
		return Ignore(ReasonAPICallFailed)
	}

	kind := ParseEventName(detail.EventName)
	if kind == EventOther {
		return Ignore(ReasonUntrackedEvent)
	}

	name, qualifier := FunctionName(detail.RequestParameters.FunctionName)
	if name == "" {
		return Ignore(ReasonMissingFunctionName)
	}

	if kind == EventFunctionDeleted {
		// A qualified delete removes one version; the function and its
		// alarm remain.
		if qualifier != "" {
			return Ignore(ReasonVersionDeleted)
		}
		return Remove(name)
	}

	return Ensure(name)
}
