package asok

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// HeaderSize is the length of the fixed header preceding every admin socket response.
const HeaderSize = 4

// Session is one live client session reported by "client ls".
type Session struct {
	Inst                 string
	Root                 string
	Metadata             map[string]string
	NumCompletedFlushes  uint64
	NumCompletedRequests uint64
	RequestsInFlight     uint64
}

type rawSession struct {
	Inst                 *string        `json:"inst"`
	ClientMetadata       map[string]any `json:"client_metadata"`
	NumCompletedFlushes  *uint64        `json:"num_completed_flushes"`
	NumCompletedRequests *uint64        `json:"num_completed_requests"`
	RequestsInFlight     *uint64        `json:"requests_in_flight"`
}

// ParseClientList strips the response header and decodes the session list.
// Any missing required field fails the whole payload.
func ParseClientList(payload []byte) ([]Session, error) {
	if len(payload) < HeaderSize {
		return nil, &MalformedPayloadError{Reason: fmt.Sprintf("payload shorter than %d byte header", HeaderSize)}
	}
	body := bytes.TrimRight(payload[HeaderSize:], "\x00")

	var raw []rawSession
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, &MalformedPayloadError{Reason: "invalid JSON", Err: err}
	}

	sessions := make([]Session, 0, len(raw))
	for i, r := range raw {
		s, err := r.toSession()
		if err != nil {
			return nil, &MalformedPayloadError{Reason: fmt.Sprintf("session %d", i), Err: err}
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (r rawSession) toSession() (Session, error) {
	switch {
	case r.Inst == nil:
		return Session{}, fmt.Errorf("missing inst")
	case r.NumCompletedFlushes == nil:
		return Session{}, fmt.Errorf("missing num_completed_flushes")
	case r.NumCompletedRequests == nil:
		return Session{}, fmt.Errorf("missing num_completed_requests")
	case r.RequestsInFlight == nil:
		return Session{}, fmt.Errorf("missing requests_in_flight")
	}

	root, ok := r.ClientMetadata["root"].(string)
	if !ok {
		return Session{}, fmt.Errorf("missing client_metadata.root")
	}

	// Newer clients nest feature maps in client_metadata; only scalar strings are kept.
	meta := make(map[string]string, len(r.ClientMetadata))
	for k, v := range r.ClientMetadata {
		if s, ok := v.(string); ok {
			meta[k] = s
		}
	}

	return Session{
		Inst:                 *r.Inst,
		Root:                 root,
		Metadata:             meta,
		NumCompletedFlushes:  *r.NumCompletedFlushes,
		NumCompletedRequests: *r.NumCompletedRequests,
		RequestsInFlight:     *r.RequestsInFlight,
	}, nil
}
