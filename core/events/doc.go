// Package events defines the typed session event contract and the bus that
// delivers it to presentation code.
//
// Event kinds are grouped by receiver-facing namespaces:
//
//   - connection.*
//   - response.*
//   - audio.*
//   - control.*
//
// Semantics used across the package:
//
//   - Frame: binary audio payload, delivered untouched in arrival order.
//   - Started: a speaker's response stream was opened.
//   - Updated: a fragment was appended; carries the fragment and a snapshot
//     of the accumulated text.
//   - Completed: terminal text for the stream; Interrupted reports whether
//     the stream was force-completed instead of finished by the backend.
//
// connection events
//
//   - ConnectionConnecting (connection.connecting): an attempt was started.
//   - ConnectionConnected (connection.connected): the transport opened.
//   - ConnectionDisconnected (connection.disconnected): the session was
//     closed on request and will not reconnect on its own.
//   - ConnectionReconnecting (connection.reconnecting): the transport failed
//     and a new attempt is scheduled after Delay.
//   - ConnectionError (connection.error): the reconnect ceiling was reached;
//     the client stays offline until Connect is called again.
//
// response events
//
//   - ResponseStarted (response.started): stream opened for a speaker.
//   - ResponseUpdated (response.updated): fragment appended to a stream.
//   - ResponseCompleted (response.completed): stream closed.
//
// audio events
//
//   - AudioFrame (audio.frame): inbound audio frame.
//
// control events
//
//   - Metadata (control.metadata): advisory audio format descriptors.
//   - Interrupt (control.interrupt): playback must stop and queued audio be
//     discarded; open streams were already force-completed.
//   - ErrorNotice (control.error_notice): non-fatal fault reported by the
//     server, or detected while decoding or ordering inbound frames.
package events
