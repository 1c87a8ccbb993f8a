package wire

import (
	"bufio"
	"fmt"
	"io"
)

// Command is the one-byte opcode that opens every request frame.
type Command byte

const (
	CmdPut      Command = 1
	CmdGet      Command = 2
	CmdExit     Command = 3
	CmdLogin    Command = 4
	CmdRegister Command = 5
	CmdMultiPut Command = 6
	CmdMultiGet Command = 7
	CmdGetWhen  Command = 8
)

var commandNames = map[Command]string{
	CmdPut:      "PUT",
	CmdGet:      "GET",
	CmdExit:     "EXIT",
	CmdLogin:    "LOGIN",
	CmdRegister: "REGISTER",
	CmdMultiPut: "MULTIPUT",
	CmdMultiGet: "MULTIGET",
	CmdGetWhen:  "GETWHEN",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", byte(c))
}

// Valid reports whether c is a known command code.
func (c Command) Valid() bool {
	_, ok := commandNames[c]
	return ok
}

// Pair is one key/value element of a MULTIPUT request or MULTIGET response.
type Pair struct {
	Key   string
	Value []byte
}

// Request is a decoded request frame. Only the fields used by Cmd are set.
type Request struct {
	Cmd Command

	// LOGIN, REGISTER
	Username string
	Password string

	// PUT, GET, GETWHEN
	Key   string
	Value []byte

	// GETWHEN
	CondKey   string
	CondValue []byte

	// MULTIPUT
	Pairs []Pair

	// MULTIGET
	Keys []string
}

// ReadRequest reads one complete request frame. It returns io.EOF only when
// the stream ends cleanly before the command byte; a frame cut short yields
// io.ErrUnexpectedEOF. An unknown command byte is ErrProtocol.
func ReadRequest(r *bufio.Reader) (*Request, error) {
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	req := &Request{Cmd: Command(b)}
	if !req.Cmd.Valid() {
		return nil, fmt.Errorf("%w: unknown command %d", ErrProtocol, b)
	}
	if err := readPayload(r, req); err != nil {
		return nil, noEOF(err)
	}
	return req, nil
}

func readPayload(r *bufio.Reader, req *Request) error {
	var err error
	switch req.Cmd {
	case CmdLogin, CmdRegister:
		if req.Username, err = ReadString(r); err != nil {
			return err
		}
		req.Password, err = ReadString(r)
		return err

	case CmdPut:
		if req.Key, err = ReadString(r); err != nil {
			return err
		}
		req.Value, err = ReadBytes(r)
		return err

	case CmdGet:
		req.Key, err = ReadString(r)
		return err

	case CmdMultiPut:
		n, err := readCount(r)
		if err != nil {
			return err
		}
		req.Pairs = make([]Pair, 0, n)
		total := 0
		for i := 0; i < n; i++ {
			var p Pair
			if p.Key, err = ReadString(r); err != nil {
				return err
			}
			if p.Value, err = ReadBytes(r); err != nil {
				return err
			}
			total += len(p.Value)
			if total > MaxBatchBytes {
				return fmt.Errorf("%w: batch size exceeds limit %d", ErrLimitExceeded, MaxBatchBytes)
			}
			req.Pairs = append(req.Pairs, p)
		}
		return nil

	case CmdMultiGet:
		n, err := readCount(r)
		if err != nil {
			return err
		}
		req.Keys = make([]string, 0, n)
		for i := 0; i < n; i++ {
			k, err := ReadString(r)
			if err != nil {
				return err
			}
			req.Keys = append(req.Keys, k)
		}
		return nil

	case CmdGetWhen:
		if req.Key, err = ReadString(r); err != nil {
			return err
		}
		if req.CondKey, err = ReadString(r); err != nil {
			return err
		}
		req.CondValue, err = ReadBytes(r)
		return err

	case CmdExit:
		return nil
	}
	return fmt.Errorf("%w: unknown command %d", ErrProtocol, byte(req.Cmd))
}

// WriteRequest encodes req. The caller flushes w.
func WriteRequest(w *bufio.Writer, req *Request) error {
	if !req.Cmd.Valid() {
		return fmt.Errorf("%w: unknown command %d", ErrProtocol, byte(req.Cmd))
	}
	if err := w.WriteByte(byte(req.Cmd)); err != nil {
		return err
	}

	switch req.Cmd {
	case CmdLogin, CmdRegister:
		if err := WriteString(w, req.Username); err != nil {
			return err
		}
		return WriteString(w, req.Password)

	case CmdPut:
		if err := WriteString(w, req.Key); err != nil {
			return err
		}
		return WriteBytes(w, req.Value)

	case CmdGet:
		return WriteString(w, req.Key)

	case CmdMultiPut:
		return WritePairs(w, req.Pairs)

	case CmdMultiGet:
		if err := writeCount(w, len(req.Keys)); err != nil {
			return err
		}
		for _, k := range req.Keys {
			if err := WriteString(w, k); err != nil {
				return err
			}
		}
		return nil

	case CmdGetWhen:
		if err := WriteString(w, req.Key); err != nil {
			return err
		}
		if err := WriteString(w, req.CondKey); err != nil {
			return err
		}
		return WriteBytes(w, req.CondValue)
	}
	return nil
}

// WriteValue writes the GET / GETWHEN response: a presence flag followed by
// the value when present.
func WriteValue(w *bufio.Writer, v []byte, ok bool) error {
	if err := WriteBool(w, ok); err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return WriteBytes(w, v)
}

// ReadValue reads a response written by WriteValue.
func ReadValue(r io.Reader) ([]byte, bool, error) {
	ok, err := ReadBool(r)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	v, err := ReadBytes(r)
	if err != nil {
		return nil, false, noEOF(err)
	}
	return v, true, nil
}

// WritePairs writes a count followed by that many key/value pairs. It is the
// MULTIPUT request payload and the MULTIGET response.
func WritePairs(w *bufio.Writer, pairs []Pair) error {
	if err := writeCount(w, len(pairs)); err != nil {
		return err
	}
	for _, p := range pairs {
		if err := WriteString(w, p.Key); err != nil {
			return err
		}
		if err := WriteBytes(w, p.Value); err != nil {
			return err
		}
	}
	return nil
}

// ReadPairs reads a response written by WritePairs.
func ReadPairs(r io.Reader) ([]Pair, error) {
	n, err := readCount(r)
	if err != nil {
		return nil, err
	}
	out := make([]Pair, 0, n)
	for i := 0; i < n; i++ {
		var p Pair
		if p.Key, err = ReadString(r); err != nil {
			return nil, noEOF(err)
		}
		if p.Value, err = ReadBytes(r); err != nil {
			return nil, noEOF(err)
		}
		out = append(out, p)
	}
	return out, nil
}
