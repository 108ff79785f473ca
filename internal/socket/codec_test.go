package socket

import (
	"bufio"
	"bytes"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	in := []byte("payload")
	var b bytes.Buffer
	if err := WriteFrame(&b, in); err != nil {
		t.Fatal(err)
	}
	out, err := ReadFrame(bufio.NewReader(&b))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, in) {
		t.Fatalf("got %q", out)
	}
}

func TestFrameRejectsEmptyAndOversized(t *testing.T) {
	var b bytes.Buffer
	if err := WriteFrame(&b, nil); err == nil {
		t.Fatal("expected empty frame rejected")
	}
	if err := WriteFrame(&b, make([]byte, MaxFrameSize+1)); err == nil {
		t.Fatal("expected oversized frame rejected")
	}
	// An oversized length header must be rejected before allocation.
	if _, err := ReadFrame(bufio.NewReader(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff}))); err == nil {
		t.Fatal("expected oversized header rejected")
	}
}

func TestProtoRoundTrip(t *testing.T) {
	req := &SocketRequest{
		RequestId: "1",
		Operation: int32(OperationRecord),
		Record: &RecordRequest{Read: &Read{
			Pool: "tank", Objset: 0x36, Object: 21, Level: -1, Blkid: 128,
			Origin: "zfs_read", Aflags: 0x4, Pid: 4512, Comm: "dbench",
		}},
	}
	payload, err := MarshalMessage(req)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := UnmarshalRequest(payload)
	if err != nil {
		t.Fatal(err)
	}
	rd := decoded.Record.Read
	if rd.Pool != "tank" || rd.Level != -1 || rd.Aflags != 0x4 || rd.Comm != "dbench" {
		t.Fatalf("bad decode: %+v", rd)
	}
}

func TestValidateRequest(t *testing.T) {
	if err := ValidateRequest(nil); err == nil {
		t.Fatal("expected nil request rejected")
	}
	if err := ValidateRequest(&SocketRequest{}); err == nil {
		t.Fatal("expected missing operation rejected")
	}
	if err := ValidateRequest(&SocketRequest{Operation: int32(OperationPing)}); err != nil {
		t.Fatal(err)
	}
}
