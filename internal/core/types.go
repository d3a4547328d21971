package core

// StatusState is the state of a request's status message.
type StatusState int

const (
	// StatusCreated means the processing notice was sent.
	StatusCreated StatusState = iota
	// StatusDownloading means the notice shows the track being downloaded.
	StatusDownloading
	// StatusDeleted means the notice was removed after a successful upload.
	StatusDeleted
	// StatusFallbackShown means the notice shows the direct download link.
	StatusFallbackShown
	// StatusResolutionFailedShown means the notice shows the resolution failure.
	StatusResolutionFailedShown
	// StatusErrorShown means the generic error was sent as a new message.
	StatusErrorShown
)

var statusStateNames = map[StatusState]string{
	StatusCreated:               "created",
	StatusDownloading:           "downloading",
	StatusDeleted:               "deleted",
	StatusFallbackShown:         "fallback_shown",
	StatusResolutionFailedShown: "resolution_failed_shown",
	StatusErrorShown:            "error_shown",
}

func (s StatusState) String() string {
	if name, ok := statusStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsTerminal reports whether no further transition is allowed.
func (s StatusState) IsTerminal() bool {
	switch s {
	case StatusDeleted, StatusFallbackShown, StatusResolutionFailedShown, StatusErrorShown:
		return true
	default:
		return false
	}
}

// statusTransitions lists the allowed target states per state.
var statusTransitions = map[StatusState][]StatusState{
	StatusCreated:     {StatusDownloading, StatusResolutionFailedShown, StatusErrorShown},
	StatusDownloading: {StatusDeleted, StatusFallbackShown, StatusErrorShown},
}

func (s StatusState) canTransitionTo(next StatusState) bool {
	for _, allowed := range statusTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// DeliveryOutcome is the result of the delivery pipeline.
type DeliveryOutcome int

const (
	// Delivered means the audio file was uploaded.
	Delivered DeliveryOutcome = iota
	// FallbackLink means the direct link was shown instead.
	FallbackLink
)

func (o DeliveryOutcome) String() string {
	if o == Delivered {
		return "delivered"
	}
	return "fallback_link"
}

// RequestOutcome is how a single inbound message was handled.
type RequestOutcome int

const (
	// OutcomeNoMatch means the message carried no track link.
	OutcomeNoMatch RequestOutcome = iota
	// OutcomeDelivered means the audio file reached the chat.
	OutcomeDelivered
	// OutcomeFallbackLink means the chat got the direct link instead.
	OutcomeFallbackLink
	// OutcomeResolutionFailed means no provider produced a result.
	OutcomeResolutionFailed
	// OutcomeError means the request failed unexpectedly.
	OutcomeError
)

var requestOutcomeNames = map[RequestOutcome]string{
	OutcomeNoMatch:          "no_match",
	OutcomeDelivered:        "delivered",
	OutcomeFallbackLink:     "fallback_link",
	OutcomeResolutionFailed: "resolution_failed",
	OutcomeError:            "error",
}

func (o RequestOutcome) String() string {
	if name, ok := requestOutcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

func outcomeFromDelivery(o DeliveryOutcome) RequestOutcome {
	if o == Delivered {
		return OutcomeDelivered
	}
	return OutcomeFallbackLink
}
