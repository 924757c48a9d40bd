package model

// Phase is the lifecycle of a video set as seen by a consumer. The four
// variants are mutually exclusive: a set is loading, known-empty, populated,
// or failed.
type Phase string

const (
	PhaseLoading Phase = "loading"
	PhaseEmpty   Phase = "empty"
	PhaseSuccess Phase = "success"
	PhaseError   Phase = "error"
)

// VideoSetState is a snapshot of the video set at the facade boundary.
// Videos and TotalCount are only meaningful in the success phase, Message
// only in the error phase.
type VideoSetState struct {
	Phase      Phase   `json:"phase"`
	Videos     []Video `json:"videos,omitempty"`
	TotalCount int     `json:"totalCount"`
	Message    string  `json:"message,omitempty"`
}

func LoadingState() VideoSetState {
	return VideoSetState{Phase: PhaseLoading}
}

func EmptyState() VideoSetState {
	return VideoSetState{Phase: PhaseEmpty}
}

func SuccessState(videos []Video, total int) VideoSetState {
	if len(videos) == 0 {
		return EmptyState()
	}
	return VideoSetState{Phase: PhaseSuccess, Videos: videos, TotalCount: total}
}

func ErrorState(message string) VideoSetState {
	return VideoSetState{Phase: PhaseError, Message: message}
}
