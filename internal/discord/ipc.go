package discord

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Discord IPC opcodes.
const (
	opHandshake uint32 = 0
	opFrame     uint32 = 1
	opClose     uint32 = 2
)

// ActivityListening is the "Listening to" activity type.
const ActivityListening = 2

// Activity is the Rich Presence payload of SET_ACTIVITY.
type Activity struct {
	Type       int         `json:"type,omitempty"`
	Name       string      `json:"name,omitempty"`
	Details    string      `json:"details,omitempty"`
	State      string      `json:"state,omitempty"`
	Timestamps *Timestamps `json:"timestamps,omitempty"`
	Assets     *Assets     `json:"assets,omitempty"`
	Instance   bool        `json:"instance"`
}

type Timestamps struct {
	Start *int64 `json:"start,omitempty"`
	End   *int64 `json:"end,omitempty"`
}

type Assets struct {
	LargeImage string `json:"large_image,omitempty"`
	LargeText  string `json:"large_text,omitempty"`
	SmallImage string `json:"small_image,omitempty"`
	SmallText  string `json:"small_text,omitempty"`
}

// ipcConn speaks the local Discord RPC protocol over its unix socket.
type ipcConn struct {
	conn net.Conn
}

// dialIPC connects to the first Discord socket found and performs the
// handshake for appID.
func dialIPC(appID string) (rpcClient, error) {
	conn, err := dialSocket(socketDirs())
	if err != nil {
		return nil, err
	}
	c := &ipcConn{conn: conn}
	if err := c.handshake(appID); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return c, nil
}

// socketDirs lists the directories Discord creates its socket in.
func socketDirs() []string {
	var dirs []string
	for _, env := range []string{"XDG_RUNTIME_DIR", "TMPDIR", "TMP", "TEMP"} {
		if dir := os.Getenv(env); dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return append(dirs, os.TempDir(), "/tmp")
}

func dialSocket(dirs []string) (net.Conn, error) {
	var errs []error
	for _, dir := range dirs {
		for i := 0; i <= 9; i++ {
			path := filepath.Join(dir, fmt.Sprintf("discord-ipc-%d", i))
			conn, err := net.DialTimeout("unix", path, time.Second)
			if err == nil {
				return conn, nil
			}
			if i == 0 {
				errs = append(errs, err)
			}
		}
	}
	return nil, fmt.Errorf("no discord socket found: %w", errors.Join(errs...))
}

func (c *ipcConn) handshake(appID string) error {
	payload, err := json.Marshal(map[string]any{"v": 1, "client_id": appID})
	if err != nil {
		return err
	}
	if err := c.writeFrame(opHandshake, payload); err != nil {
		return fmt.Errorf("handshake write: %w", err)
	}
	if _, _, err := c.readFrame(); err != nil {
		return fmt.Errorf("handshake read: %w", err)
	}
	return nil
}

// SetActivity replaces the presence. An empty Activity clears it.
func (c *ipcConn) SetActivity(a Activity) error {
	args := map[string]any{"pid": os.Getpid()}
	if a != (Activity{}) {
		args["activity"] = a
	}
	payload, err := json.Marshal(map[string]any{
		"cmd":   "SET_ACTIVITY",
		"args":  args,
		"nonce": uuid.NewString(),
	})
	if err != nil {
		return err
	}
	if err := c.writeFrame(opFrame, payload); err != nil {
		return err
	}

	op, data, err := c.readFrame()
	if err != nil {
		return err
	}
	if op == opClose {
		return fmt.Errorf("discord closed the connection: %s", data)
	}
	return parseResponse(data)
}

func parseResponse(data []byte) error {
	var resp struct {
		Evt  string `json:"evt"`
		Data struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"data"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	if resp.Evt == "ERROR" {
		return fmt.Errorf("discord error %d: %s", resp.Data.Code, resp.Data.Message)
	}
	return nil
}

func (c *ipcConn) Close() error {
	_ = c.writeFrame(opClose, []byte("{}"))
	return c.conn.Close()
}

// writeFrame sends [opcode LE u32][length LE u32][payload].
func (c *ipcConn) writeFrame(opcode uint32, payload []byte) error {
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], opcode)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	_, err := c.conn.Write(buf)
	return err
}

// readFrame reads one frame, sized by its header.
func (c *ipcConn) readFrame() (uint32, []byte, error) {
	var header [8]byte
	if _, err := io.ReadFull(c.conn, header[:]); err != nil {
		return 0, nil, err
	}
	opcode := binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])

	payload := make([]byte, length)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return 0, nil, err
	}
	return opcode, payload, nil
}
