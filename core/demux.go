package session

import (
	"github.com/koscakluka/ema-session/core/events"
	"github.com/koscakluka/ema-session/core/protocol"
	"github.com/koscakluka/ema-session/core/transport"
)

// handleFrame classifies one inbound frame. Binary frames are audio, text
// frames are JSON envelopes.
func (c *Client) handleFrame(id uint64, frame transport.Frame) {
	if id != c.attemptID || c.State() != StateConnected {
		return
	}

	switch frame.Type {
	case transport.FrameBinary:
		c.instruments.frameReceived(c.options.baseContext, "audio")
		c.publish(c.cursor.Deliver(frame.Data))

	case transport.FrameText:
		msg, err := protocol.Decode(frame.Data)
		if err != nil {
			c.instruments.frameReceived(c.options.baseContext, "invalid")
			logger.Warn("dropping inbound frame", "client_id", c.id, "error", err)
			c.publish(events.NewErrorNotice(events.ErrorSourceProtocol, err.Error(), events.WithErrorCause(err)))
			return
		}
		c.instruments.frameReceived(c.options.baseContext, string(msg.MessageType()))
		c.dispatch(msg)
	}
}

func (c *Client) dispatch(msg protocol.Inbound) {
	switch m := msg.(type) {
	case protocol.Metadata:
		c.publish(events.NewMetadata(m.SampleRate, m.Channels, m.Encoding))

	case protocol.TextChunk:
		c.publishAll(c.streams.AppendChunk(m))

	case protocol.SpeakerChange:
		c.publishAll(c.streams.SpeakerChange(m))

	case protocol.StreamEnd:
		c.publishAll(c.streams.End(m.SpeakerID))

	case protocol.Interrupt:
		c.interrupt(events.InterruptSourceServer, m.Message)

	case protocol.ErrorMessage:
		logger.Warn("backend reported an error", "client_id", c.id, "message", m.Message, "code", m.Code())
		c.publish(events.NewErrorNotice(events.ErrorSourceServer, m.Message, events.WithErrorCode(m.Code())))
	}
}

// interrupt completes every open stream as interrupted, stops the audio
// cursor and then announces the interrupt.
func (c *Client) interrupt(source events.InterruptSource, message string) {
	c.publishAll(c.streams.Interrupt())
	c.cursor.Interrupt()
	c.publish(events.NewInterrupt(source, message))
}
