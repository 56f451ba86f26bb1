package discord

import (
	"encoding/binary"
	"encoding/json"
	"io"
	"net"
	"path/filepath"
	"strings"
	"testing"
)

// readRawFrame reads one frame from the fake Discord side.
func readRawFrame(t *testing.T, r io.Reader) (uint32, []byte) {
	t.Helper()
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	body := make([]byte, binary.LittleEndian.Uint32(header[4:8]))
	if _, err := io.ReadFull(r, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	return binary.LittleEndian.Uint32(header[0:4]), body
}

func writeRawFrame(w io.Writer, opcode uint32, payload []byte) {
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], opcode)
	binary.LittleEndian.PutUint32(header[4:8], uint32(len(payload)))
	_, _ = w.Write(append(header, payload...))
}

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	c := &ipcConn{conn: client}

	payload := `{"cmd":"SET_ACTIVITY","nonce":"abc123"}`
	go func() {
		if err := c.writeFrame(opFrame, []byte(payload)); err != nil {
			t.Errorf("writeFrame: %v", err)
		}
	}()

	opcode, body := readRawFrame(t, server)
	if opcode != opFrame {
		t.Errorf("opcode = %d, want %d", opcode, opFrame)
	}
	if string(body) != payload {
		t.Errorf("body = %q, want %q", body, payload)
	}
}

func TestReadFrameLargePayload(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	c := &ipcConn{conn: server}
	large := []byte(strings.Repeat("x", 2048))
	go writeRawFrame(client, opFrame, large)

	opcode, payload, err := c.readFrame()
	if err != nil {
		t.Fatalf("readFrame: %v", err)
	}
	if opcode != opFrame || len(payload) != len(large) {
		t.Errorf("readFrame() = %d, %d bytes; want %d, %d bytes", opcode, len(payload), opFrame, len(large))
	}
}

func TestSetActivity(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	c := &ipcConn{conn: client}
	errc := make(chan error, 1)
	go func() { errc <- c.SetActivity(Activity{Type: ActivityListening, Details: "Reckoner"}) }()

	opcode, body := readRawFrame(t, server)
	if opcode != opFrame {
		t.Fatalf("opcode = %d, want %d", opcode, opFrame)
	}
	var req struct {
		Cmd   string `json:"cmd"`
		Nonce string `json:"nonce"`
		Args  struct {
			Activity *Activity `json:"activity"`
		} `json:"args"`
	}
	if err := json.Unmarshal(body, &req); err != nil {
		t.Fatalf("unmarshal request: %v", err)
	}
	if req.Cmd != "SET_ACTIVITY" || req.Nonce == "" {
		t.Errorf("request = %+v", req)
	}
	if req.Args.Activity == nil || req.Args.Activity.Details != "Reckoner" {
		t.Errorf("activity = %+v", req.Args.Activity)
	}

	writeRawFrame(server, opFrame, []byte(`{"cmd":"SET_ACTIVITY","evt":null}`))
	if err := <-errc; err != nil {
		t.Errorf("SetActivity() error = %v", err)
	}
}

func TestSetActivity_Error(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	c := &ipcConn{conn: client}
	errc := make(chan error, 1)
	go func() { errc <- c.SetActivity(Activity{}) }()

	_, body := readRawFrame(t, server)
	if strings.Contains(string(body), `"activity"`) {
		t.Errorf("clear request carries an activity: %s", body)
	}
	writeRawFrame(server, opFrame, []byte(`{"evt":"ERROR","data":{"code":4000,"message":"bad"}}`))

	err := <-errc
	if err == nil || !strings.Contains(err.Error(), "4000") {
		t.Errorf("SetActivity() error = %v, want discord error 4000", err)
	}
}

func TestDialSocket(t *testing.T) {
	dir := t.TempDir()
	ln, err := net.Listen("unix", filepath.Join(dir, "discord-ipc-3"))
	if err != nil {
		t.Skipf("unix sockets unavailable: %v", err)
	}
	defer ln.Close()

	conn, err := dialSocket([]string{filepath.Join(dir, "missing"), dir})
	if err != nil {
		t.Fatalf("dialSocket() error = %v", err)
	}
	_ = conn.Close()

	if _, err := dialSocket([]string{filepath.Join(dir, "missing")}); err == nil {
		t.Error("dialSocket() expected error without a socket")
	}
}
