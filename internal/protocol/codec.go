package protocol

import (
	"bufio"
	"bytes"
	"io"
)

// frameDelimiter is the single byte that terminates every wire frame.
const frameDelimiter = 0x00

// ReadFrame reads bytes from r up to and including the next NUL
// delimiter, returning the frame without the delimiter. It returns
// io.EOF (possibly wrapped) when the stream ends before a delimiter is
// found.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	frame, err := r.ReadBytes(frameDelimiter)
	if err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(frame, []byte{frameDelimiter}), nil
}

// WriteFrame writes body followed by the NUL frame delimiter.
func WriteFrame(w io.Writer, body []byte) error {
	if _, err := w.Write(body); err != nil {
		return err
	}
	_, err := w.Write([]byte{frameDelimiter})
	return err
}
