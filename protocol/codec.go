package protocol

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// maxMessageSize bounds a single encoded message (payloads are base64 in JSON).
const maxMessageSize = 64 << 20

// Encoder writes newline-delimited JSON messages. Safe for concurrent use.
type Encoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{enc: json.NewEncoder(w)}
}

// Encode writes v followed by a newline.
func (e *Encoder) Encode(v any) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enc.Encode(v)
}

// Decoder reads newline-delimited JSON messages. Not safe for concurrent use.
type Decoder struct {
	sc *bufio.Scanner
}

func NewDecoder(r io.Reader) *Decoder {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64<<10), maxMessageSize)
	return &Decoder{sc: sc}
}

// DecodeCommand reads the next command. It returns io.EOF at end of stream.
// A line that is not a valid message yields an error wrapping ErrMalformed;
// decoding may continue with the next line.
func (d *Decoder) DecodeCommand() (Command, error) {
	var c Command
	err := d.next(&c)
	return c, err
}

// DecodeReply reads the next reply. It returns io.EOF at end of stream.
func (d *Decoder) DecodeReply() (Reply, error) {
	var r Reply
	err := d.next(&r)
	return r, err
}

func (d *Decoder) next(v any) error {
	for d.sc.Scan() {
		line := d.sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := json.Unmarshal(line, v); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		return nil
	}
	if err := d.sc.Err(); err != nil {
		return err
	}
	return io.EOF
}
