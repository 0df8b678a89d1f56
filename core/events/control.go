package events

const (
	// KindMetadata identifies advisory stream format metadata.
	KindMetadata Kind = "control.metadata"
	// KindInterrupt identifies an interruption of the current output.
	KindInterrupt Kind = "control.interrupt"
	// KindErrorNotice identifies a non-fatal fault.
	KindErrorNotice Kind = "control.error_notice"
)

// Metadata carries audio format descriptors announced by the backend.
type Metadata struct {
	Base
	SampleRate int
	Channels   int
	Encoding   string
}

// NewMetadata creates a metadata event.
func NewMetadata(sampleRate, channels int, encoding string) Metadata {
	return Metadata{Base: NewBase(KindMetadata), SampleRate: sampleRate, Channels: channels, Encoding: encoding}
}

type InterruptSource string

const (
	InterruptSourceServer InterruptSource = "server"
	InterruptSourceUser   InterruptSource = "user"
)

// Interrupt tells playback collaborators to stop and drop queued audio.
type Interrupt struct {
	Base
	Source  InterruptSource
	Message string
}

// NewInterrupt creates an interrupt event.
func NewInterrupt(source InterruptSource, message string) Interrupt {
	return Interrupt{Base: NewBase(KindInterrupt), Source: source, Message: message}
}

type ErrorSource string

const (
	// ErrorSourceServer is an error envelope sent by the backend.
	ErrorSourceServer ErrorSource = "server"
	// ErrorSourceProtocol is an inbound frame that could not be decoded.
	ErrorSourceProtocol ErrorSource = "protocol"
	// ErrorSourceOrdering is a sequence number regression.
	ErrorSourceOrdering ErrorSource = "ordering"
)

// ErrorNotice reports a fault that did not end the session.
type ErrorNotice struct {
	Base
	Source    ErrorSource
	Message   string
	Code      string
	SpeakerID string
	Err       error
}

// NewErrorNotice creates an error notice event.
func NewErrorNotice(source ErrorSource, message string, opts ...ErrorNoticeOption) ErrorNotice {
	notice := ErrorNotice{Base: NewBase(KindErrorNotice), Source: source, Message: message}
	for _, opt := range opts {
		opt(&notice)
	}
	return notice
}

type ErrorNoticeOption func(*ErrorNotice)

func WithErrorCode(code string) ErrorNoticeOption {
	return func(n *ErrorNotice) { n.Code = code }
}

func WithErrorSpeaker(speakerID string) ErrorNoticeOption {
	return func(n *ErrorNotice) { n.SpeakerID = speakerID }
}

func WithErrorCause(err error) ErrorNoticeOption {
	return func(n *ErrorNotice) { n.Err = err }
}
