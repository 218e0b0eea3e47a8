package tape

import (
	"errors"
	"fmt"
	"io"
)

// ErrInputExhausted is returned when an Input operation finds no byte.
var ErrInputExhausted = errors.New("InputExhausted: input operator found no byte to read")

// ReadByte reads exactly one byte from r, blocking until it is available.
// End of input is reported as ErrInputExhausted.
func ReadByte(r io.Reader) (byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		b, err := br.ReadByte()
		if err != nil {
			return 0, inputError(err)
		}
		return b, nil
	}
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, inputError(err)
	}
	return buf[0], nil
}

func inputError(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return ErrInputExhausted
	}
	return fmt.Errorf("read input: %w", err)
}

// WriteByte writes exactly one byte to w.
func WriteByte(w io.Writer, b byte) error {
	if bw, ok := w.(io.ByteWriter); ok {
		if err := bw.WriteByte(b); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		return nil
	}
	if _, err := w.Write([]byte{b}); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
