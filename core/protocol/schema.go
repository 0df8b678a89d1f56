package protocol

import "github.com/invopop/jsonschema"

// Schemas returns a JSON schema per envelope type, keyed by type.
func Schemas() map[MessageType]*jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}

	envelopes := map[MessageType]any{
		TypeMetadata:       Metadata{},
		TypeTextChunk:      TextChunk{},
		TypeSpeakerChange:  SpeakerChange{},
		TypeStreamEnd:      StreamEnd{},
		TypeInterrupt:      Interrupt{},
		TypeError:          ErrorMessage{},
		TypeUserMessage:    UserMessageEnvelope{},
		TypeStartListening: ControlEnvelope{},
		TypeStopListening:  ControlEnvelope{},
	}

	schemas := make(map[MessageType]*jsonschema.Schema, len(envelopes))
	for messageType, envelope := range envelopes {
		schema := reflector.Reflect(envelope)
		schema.Title = string(messageType)
		schemas[messageType] = schema
	}
	return schemas
}
