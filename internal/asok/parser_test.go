package asok

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClientList(t *testing.T) {
	body := []byte(`[{"id": 4512, "inst": "client.1 1.2.3.4:0/1",
		"client_metadata": {"root": "/vol/a", "hostname": "node-1", "client_features": {"feature_bits": "0x3bff"}},
		"num_completed_flushes": 5, "num_completed_requests": 10, "requests_in_flight": 2}]`)

	sessions, err := ParseClientList(Frame(body))
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	s := sessions[0]
	assert.Equal(t, "client.1 1.2.3.4:0/1", s.Inst)
	assert.Equal(t, "/vol/a", s.Root)
	assert.Equal(t, uint64(5), s.NumCompletedFlushes)
	assert.Equal(t, uint64(10), s.NumCompletedRequests)
	assert.Equal(t, uint64(2), s.RequestsInFlight)
	assert.Equal(t, map[string]string{"root": "/vol/a", "hostname": "node-1"}, s.Metadata)
}

func TestParseClientList_Empty(t *testing.T) {
	sessions, err := ParseClientList(Frame([]byte("[]")))
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestParseClientList_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "short header", payload: []byte{0, 0}},
		{name: "not json", payload: Frame([]byte("client ls failed"))},
		{name: "object instead of list", payload: Frame([]byte(`{"inst": "client.1 1.2.3.4:0/1"}`))},
		{name: "missing root", payload: Frame([]byte(`[{"inst": "client.1 1.2.3.4:0/1", "client_metadata": {},
			"num_completed_flushes": 1, "num_completed_requests": 1, "requests_in_flight": 0}]`))},
		{name: "missing counter", payload: Frame([]byte(`[{"inst": "client.1 1.2.3.4:0/1", "client_metadata": {"root": "/"},
			"num_completed_flushes": 1, "requests_in_flight": 0}]`))},
		{name: "missing inst", payload: Frame([]byte(`[{"client_metadata": {"root": "/"},
			"num_completed_flushes": 1, "num_completed_requests": 1, "requests_in_flight": 0}]`))},
		{name: "negative counter", payload: Frame([]byte(`[{"inst": "client.1 1.2.3.4:0/1", "client_metadata": {"root": "/"},
			"num_completed_flushes": -1, "num_completed_requests": 1, "requests_in_flight": 0}]`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sessions, err := ParseClientList(tt.payload)
			require.Nil(t, sessions)
			require.Error(t, err)

			var malformed *MalformedPayloadError
			require.True(t, errors.As(err, &malformed))
		})
	}
}
