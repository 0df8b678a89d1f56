package session

import (
	"fmt"
	"strings"

	"github.com/koscakluka/ema-session/core/events"
	"github.com/koscakluka/ema-session/core/protocol"
	"github.com/koscakluka/ema-session/core/transport"
)

// SendUserMessage sends a chat message. params are merged over the client's
// default parameters; absent and non-finite values are left out.
func (c *Client) SendUserMessage(content string, params protocol.ModelParameters, opts ...MessageOption) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}

	conn, err := c.connectedConn()
	if err != nil {
		return err
	}

	msg := protocol.UserMessage{
		Content:    content,
		Model:      c.options.defaultModel,
		Parameters: c.options.defaultParameters.Merge(params),
	}
	for _, opt := range opts {
		opt(&msg)
	}

	return sendCommand(conn, msg)
}

// SendAudioChunk sends raw microphone audio as one binary frame.
func (c *Client) SendAudioChunk(audio []byte) error {
	if len(audio) == 0 {
		return ErrEmptyAudio
	}

	conn, err := c.connectedConn()
	if err != nil {
		return err
	}

	if err := conn.SendBinary(audio); err != nil {
		return fmt.Errorf("failed to send audio chunk: %w", err)
	}
	return nil
}

// SendInterrupt asks the backend to stop the current response. Open streams
// are completed as interrupted and playback state is reset locally.
func (c *Client) SendInterrupt() error {
	conn, err := c.connectedConn()
	if err != nil {
		return err
	}

	if err := sendCommand(conn, protocol.InterruptRequest{}); err != nil {
		return err
	}

	c.loop.Post("user interrupt", func() { c.interrupt(events.InterruptSourceUser, "") })
	return nil
}

// SendListeningState tells the backend whether the microphone is open.
func (c *Client) SendListeningState(listening bool) error {
	conn, err := c.connectedConn()
	if err != nil {
		return err
	}

	if listening {
		return sendCommand(conn, protocol.StartListening{})
	}
	return sendCommand(conn, protocol.StopListening{})
}

func (c *Client) connectedConn() (transport.Conn, error) {
	if c.closed.Load() {
		return nil, ErrClientClosed
	}
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}

	live := c.sendConn.Load()
	if live == nil {
		return nil, ErrNotConnected
	}
	return live.Conn, nil
}

func sendCommand(conn transport.Conn, cmd protocol.Command) error {
	data, err := protocol.Encode(cmd)
	if err != nil {
		return err
	}

	if err := conn.SendText(data); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd.CommandType(), err)
	}
	return nil
}
