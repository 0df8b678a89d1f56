// Package protocol describes the JSON envelopes exchanged with the voice
// backend over the session transport.
//
// Every structured frame is a flat JSON object carrying a "type"
// discriminant next to its fields. Binary frames are raw audio and never
// pass through this package.
package protocol
