package asok

import (
	"bufio"
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"testing"
)

// serveOnce starts a fake admin socket that records the request and replies
// with a length-prefixed body, then closes.
func serveOnce(t *testing.T, body []byte) (string, <-chan []byte) {
	t.Helper()
	dir, err := os.MkdirTemp("", "asok")
	if err != nil {
		t.Fatalf("mkdir temp: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "client.asok")
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	got := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req, err := bufio.NewReader(conn).ReadBytes(0)
		if err != nil {
			return
		}
		got <- req
		conn.Write(Frame(body))
	}()
	return path, got
}

// Frame prepends the 4 byte big-endian length header used by the admin socket.
func Frame(body []byte) []byte {
	out := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(out, uint32(len(body)))
	copy(out[HeaderSize:], body)
	return out
}
