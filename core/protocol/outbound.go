package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Command is a client-to-server control message.
type Command interface {
	CommandType() MessageType
}

type StartListening struct{}

func (StartListening) CommandType() MessageType { return TypeStartListening }

type StopListening struct{}

func (StopListening) CommandType() MessageType { return TypeStopListening }

type InterruptRequest struct{}

func (InterruptRequest) CommandType() MessageType { return TypeInterrupt }

type UserMessage struct {
	Content    string
	Model      string
	Parameters ModelParameters
}

func (UserMessage) CommandType() MessageType { return TypeUserMessage }

// ControlEnvelope is the wire shape of payload-less commands.
type ControlEnvelope struct {
	Type MessageType `json:"type"`
}

// UserMessageEnvelope is the wire shape of a user message. Model parameters
// are flattened next to the content.
type UserMessageEnvelope struct {
	Type    MessageType `json:"type"`
	Content string      `json:"content"`
	Model   string      `json:"model,omitempty"`
	ModelParameters
}

// Encode renders cmd as a flat JSON envelope. Model parameters that are
// absent or not finite are left out of the payload.
func Encode(cmd Command) ([]byte, error) {
	var envelope any
	switch c := cmd.(type) {
	case StartListening, StopListening, InterruptRequest:
		envelope = ControlEnvelope{Type: c.CommandType()}
	case UserMessage:
		envelope = UserMessageEnvelope{
			Type:            TypeUserMessage,
			Content:         c.Content,
			Model:           strings.TrimSpace(c.Model),
			ModelParameters: c.Parameters.Sanitized(),
		}
	case nil:
		return nil, fmt.Errorf("%w: nil command", ErrUnsupportedType)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedType, cmd)
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s: %w", cmd.CommandType(), err)
	}
	return data, nil
}
