package session

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidSession = errors.New("invalid session")

// Session identifies the conversation a client connects to. The same value
// is reused for every reconnect attempt.
type Session struct {
	TransportURL   string
	ConversationID string
	// SpeakerIDs is an ordered set, the first occurrence of an id wins.
	SpeakerIDs []string
}

// NewSession returns a validated session. An empty conversation id is
// replaced with a generated one.
func NewSession(transportURL, conversationID string, speakerIDs ...string) (Session, error) {
	s, err := Session{
		TransportURL:   transportURL,
		ConversationID: conversationID,
		SpeakerIDs:     speakerIDs,
	}.normalized()
	if err != nil {
		return Session{}, err
	}
	return s.withConversationID(), nil
}

func (s Session) normalized() (Session, error) {
	s.TransportURL = strings.TrimSpace(s.TransportURL)
	s.ConversationID = strings.TrimSpace(s.ConversationID)
	s.SpeakerIDs = uniqueSpeakerIDs(s.SpeakerIDs)

	if _, err := transportURL(s.TransportURL); err != nil {
		return Session{}, err
	}
	return s, nil
}

func (s Session) withConversationID() Session {
	if s.ConversationID == "" {
		s.ConversationID = uuid.NewString()
	}
	return s
}

// Equal reports whether both sessions address the same conversation with
// the same speakers.
func (s Session) Equal(other Session) bool {
	return s.TransportURL == other.TransportURL &&
		s.ConversationID == other.ConversationID &&
		slices.Equal(s.SpeakerIDs, other.SpeakerIDs)
}

// URI returns the transport address for the session: the transport URL with
// conversation_id and speaker_ids query parameters. http and https URLs are
// rewritten to ws and wss.
func (s Session) URI() (string, error) {
	u, err := transportURL(s.TransportURL)
	if err != nil {
		return "", err
	}

	query := u.Query()
	if s.ConversationID != "" {
		query.Set("conversation_id", s.ConversationID)
	}
	if speakers := uniqueSpeakerIDs(s.SpeakerIDs); len(speakers) > 0 {
		query.Set("speaker_ids", strings.Join(speakers, ","))
	}
	u.RawQuery = query.Encode()

	return u.String(), nil
}

func transportURL(raw string) (*url.URL, error) {
	if raw == "" {
		return nil, fmt.Errorf("%w: empty transport url", ErrInvalidSession)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}

	switch strings.ToLower(u.Scheme) {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidSession, u.Scheme)
	}

	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidSession)
	}
	return u, nil
}

func uniqueSpeakerIDs(ids []string) []string {
	unique := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || slices.Contains(unique, id) {
			continue
		}
		unique = append(unique, id)
	}
	return unique
}
