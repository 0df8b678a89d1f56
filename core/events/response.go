package events

const (
	// KindResponseStarted identifies a newly opened speaker response stream.
	KindResponseStarted Kind = "response.started"
	// KindResponseUpdated identifies a fragment appended to a response stream.
	KindResponseUpdated Kind = "response.updated"
	// KindResponseCompleted identifies a closed response stream.
	KindResponseCompleted Kind = "response.completed"
)

// ResponseStarted marks a speaker starting a new response.
type ResponseStarted struct {
	Base
	SpeakerID string
}

// NewResponseStarted creates a response started event.
func NewResponseStarted(speakerID string) ResponseStarted {
	return ResponseStarted{Base: NewBase(KindResponseStarted), SpeakerID: speakerID}
}

// ResponseUpdated carries one appended fragment and the text accumulated so
// far, fragment included. Sequence is -1 when the fragment carried no
// sequence number.
type ResponseUpdated struct {
	Base
	SpeakerID string
	Fragment  string
	Text      string
	Sequence  int64
}

// NewResponseUpdated creates a response update event.
func NewResponseUpdated(speakerID, fragment, text string, sequence int64) ResponseUpdated {
	return ResponseUpdated{
		Base:      NewBase(KindResponseUpdated),
		SpeakerID: speakerID,
		Fragment:  fragment,
		Text:      text,
		Sequence:  sequence,
	}
}

// ResponseCompleted carries the final text of a response stream.
type ResponseCompleted struct {
	Base
	SpeakerID   string
	Text        string
	Interrupted bool
}

// NewResponseCompleted creates a response completed event.
func NewResponseCompleted(speakerID, text string, interrupted bool) ResponseCompleted {
	return ResponseCompleted{
		Base:        NewBase(KindResponseCompleted),
		SpeakerID:   speakerID,
		Text:        text,
		Interrupted: interrupted,
	}
}
