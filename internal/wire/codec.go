package wire

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

// Protocol limits to prevent memory exhaustion from hostile peers.
const (
	// MaxStringLen is the largest string the uint16 prefix can describe.
	MaxStringLen = math.MaxUint16

	// MaxValueLen limits a single byte payload (16MB).
	MaxValueLen = 16 << 20

	// MaxBatchLen limits the element count of MULTIPUT and MULTIGET.
	MaxBatchLen = 65536

	// MaxBatchBytes limits the summed value bytes of one MULTIPUT (64MB).
	MaxBatchBytes = 64 << 20
)

var (
	ErrProtocol      = errors.New("wire: protocol error")
	ErrLimitExceeded = errors.New("wire: limit exceeded")
)

// ReadString reads a uint16-prefixed string.
func ReadString(r io.Reader) (string, error) {
	var hdr [2]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint16(hdr[:])
	if n == 0 {
		return "", nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", noEOF(err)
	}
	return string(buf), nil
}

// WriteString writes s with a uint16 length prefix.
func WriteString(w *bufio.Writer, s string) error {
	if len(s) > MaxStringLen {
		return fmt.Errorf("%w: string length %d exceeds limit %d", ErrLimitExceeded, len(s), MaxStringLen)
	}
	var hdr [2]byte
	binary.BigEndian.PutUint16(hdr[:], uint16(len(s)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	_, err := w.WriteString(s)
	return err
}

// ReadBytes reads an int32-prefixed byte payload. A zero length yields a
// non-nil empty slice.
func ReadBytes(r io.Reader) ([]byte, error) {
	n, err := ReadInt32(r)
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: negative payload length %d", ErrProtocol, n)
	}
	if n > MaxValueLen {
		return nil, fmt.Errorf("%w: payload length %d exceeds limit %d", ErrLimitExceeded, n, MaxValueLen)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, noEOF(err)
	}
	return buf, nil
}

// WriteBytes writes b with an int32 length prefix.
func WriteBytes(w *bufio.Writer, b []byte) error {
	if len(b) > MaxValueLen {
		return fmt.Errorf("%w: payload length %d exceeds limit %d", ErrLimitExceeded, len(b), MaxValueLen)
	}
	if err := WriteInt32(w, int32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

// ReadBool reads a one-byte boolean.
func ReadBool(r io.Reader) (bool, error) {
	var b [1]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return false, err
	}
	return b[0] != 0, nil
}

// WriteBool writes v as 1 or 0.
func WriteBool(w *bufio.Writer, v bool) error {
	if v {
		return w.WriteByte(1)
	}
	return w.WriteByte(0)
}

// ReadInt32 reads a big-endian int32.
func ReadInt32(r io.Reader) (int32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b[:])), nil
}

// WriteInt32 writes n big-endian.
func WriteInt32(w *bufio.Writer, n int32) error {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(n))
	_, err := w.Write(b[:])
	return err
}

// readCount reads a batch element count and enforces MaxBatchLen.
func readCount(r io.Reader) (int, error) {
	n, err := ReadInt32(r)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: negative count %d", ErrProtocol, n)
	}
	if n > MaxBatchLen {
		return 0, fmt.Errorf("%w: count %d exceeds limit %d", ErrLimitExceeded, n, MaxBatchLen)
	}
	return int(n), nil
}

func writeCount(w *bufio.Writer, n int) error {
	if n > MaxBatchLen {
		return fmt.Errorf("%w: count %d exceeds limit %d", ErrLimitExceeded, n, MaxBatchLen)
	}
	return WriteInt32(w, int32(n))
}

// noEOF turns a clean EOF inside a frame into io.ErrUnexpectedEOF.
func noEOF(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
