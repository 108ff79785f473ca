package socket

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Frames are a big-endian uint32 length followed by the protobuf payload.
// 4 MiB comfortably covers the largest export pass a source can produce.
const (
	MaxFrameSize   = 4 << 20
	frameHeaderLen = 4
)

func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) == 0 {
		return fmt.Errorf("refusing to write empty frame")
	}
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("frame exceeds %d bytes: %d", MaxFrameSize, len(payload))
	}
	var header [frameHeaderLen]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func ReadFrame(r *bufio.Reader) ([]byte, error) {
	var header [frameHeaderLen]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	sz := binary.BigEndian.Uint32(header[:])
	switch {
	case sz == 0:
		return nil, fmt.Errorf("empty frame")
	case sz > MaxFrameSize:
		return nil, fmt.Errorf("frame exceeds %d bytes: %d", MaxFrameSize, sz)
	}
	payload := make([]byte, int(sz))
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, err
	}
	return payload, nil
}
