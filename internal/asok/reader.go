package asok

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"time"
)

// ListClientsPrefix is the admin socket command that reports live sessions.
const ListClientsPrefix = "client ls"

type command struct {
	Prefix string `json:"prefix"`
}

// EncodeCommand renders an admin socket request: a JSON object terminated by a NUL byte.
func EncodeCommand(prefix string) ([]byte, error) {
	b, err := json.Marshal(command{Prefix: prefix})
	if err != nil {
		return nil, err
	}
	return append(b, 0), nil
}

// Reader talks to ceph client admin sockets.
type Reader struct {
	timeout time.Duration
	dialer  net.Dialer
}

// NewReader creates a Reader. A zero timeout leaves reads bounded only by
// the caller's context.
func NewReader(timeout time.Duration) *Reader {
	return &Reader{timeout: timeout}
}

// Read sends "client ls" to the socket at path and returns the full raw
// response, read until the peer closes the connection.
func (r *Reader) Read(ctx context.Context, path string) ([]byte, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	conn, err := r.dialer.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, &ConnectionError{Target: path, Err: err}
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, &ReadError{Target: path, Err: err}
		}
	}
	// Unblock any pending read when the caller gives up.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	req, err := EncodeCommand(ListClientsPrefix)
	if err != nil {
		return nil, &ReadError{Target: path, Err: err}
	}
	if _, err := conn.Write(req); err != nil {
		return nil, &ReadError{Target: path, Err: err}
	}

	data, err := io.ReadAll(conn)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return nil, &ReadError{Target: path, Err: err}
	}
	return data, nil
}
