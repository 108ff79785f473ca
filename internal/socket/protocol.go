package socket

import (
	"fmt"

	"github.com/golang/protobuf/proto"
)

type Operation int32

const (
	OperationUnknown     Operation = 0
	OperationRecord      Operation = 1
	OperationRecordBatch Operation = 2
	OperationPing        Operation = 3
	OperationReadStats   Operation = 4
	OperationClearStats  Operation = 5
	OperationListSources Operation = 6
	OperationClosePool   Operation = 7
	OperationHealth      Operation = 8
)

type ErrorCode int32

const (
	ErrorCodeOK              ErrorCode = 0
	ErrorCodeBadRequest      ErrorCode = 1
	ErrorCodeUnauthenticated ErrorCode = 2
	ErrorCodeNotFound        ErrorCode = 3
	ErrorCodeOverloaded      ErrorCode = 4
	// ErrorCodeInternal is reserved for server-side faults. Nothing emits
	// it today; clients should still handle it as non-retryable.
	ErrorCodeInternal ErrorCode = 5
)

type SocketRequest struct {
	RequestId   string              `protobuf:"bytes,1,opt,name=request_id,json=requestId,proto3"`
	AuthToken   string              `protobuf:"bytes,2,opt,name=auth_token,json=authToken,proto3"`
	Operation   int32               `protobuf:"varint,3,opt,name=operation,proto3"`
	Record      *RecordRequest      `protobuf:"bytes,4,opt,name=record,proto3"`
	RecordBatch *RecordBatchRequest `protobuf:"bytes,5,opt,name=record_batch,json=recordBatch,proto3"`
	ReadStats   *SourceQuery        `protobuf:"bytes,6,opt,name=read_stats,json=readStats,proto3"`
	ClearStats  *SourceQuery        `protobuf:"bytes,7,opt,name=clear_stats,json=clearStats,proto3"`
	ClosePool   *PoolQuery          `protobuf:"bytes,8,opt,name=close_pool,json=closePool,proto3"`
}

func (*SocketRequest) Reset()         {}
func (*SocketRequest) String() string { return "SocketRequest" }
func (*SocketRequest) ProtoMessage()  {}

type SocketResponse struct {
	RequestId    string             `protobuf:"bytes,1,opt,name=request_id,json=requestId,proto3"`
	ErrorCode    int32              `protobuf:"varint,2,opt,name=error_code,json=errorCode,proto3"`
	ErrorMessage string             `protobuf:"bytes,3,opt,name=error_message,json=errorMessage,proto3"`
	Record       *RecordResponse    `protobuf:"bytes,4,opt,name=record,proto3"`
	Pong         *PongResponse      `protobuf:"bytes,5,opt,name=pong,proto3"`
	Stats        *StatsResponse     `protobuf:"bytes,6,opt,name=stats,proto3"`
	Sources      *SourcesResponse   `protobuf:"bytes,7,opt,name=sources,proto3"`
	Closed       *ClosePoolResponse `protobuf:"bytes,8,opt,name=closed,proto3"`
	Health       *HealthResponse    `protobuf:"bytes,9,opt,name=health,proto3"`
}

func (*SocketResponse) Reset()         {}
func (*SocketResponse) String() string { return "SocketResponse" }
func (*SocketResponse) ProtoMessage()  {}

// Read describes one block read observed by an instrumented storage
// process. Pid and Comm identify the task that issued it.
type Read struct {
	Pool   string `protobuf:"bytes,1,opt,name=pool,proto3"`
	Objset uint64 `protobuf:"varint,2,opt,name=objset,proto3"`
	Object uint64 `protobuf:"varint,3,opt,name=object,proto3"`
	Level  int64  `protobuf:"varint,4,opt,name=level,proto3"`
	Blkid  int64  `protobuf:"varint,5,opt,name=blkid,proto3"`
	Origin string `protobuf:"bytes,6,opt,name=origin,proto3"`
	Aflags uint32 `protobuf:"varint,7,opt,name=aflags,proto3"`
	Pid    int32  `protobuf:"varint,8,opt,name=pid,proto3"`
	Comm   string `protobuf:"bytes,9,opt,name=comm,proto3"`
}

func (*Read) Reset()         {}
func (*Read) String() string { return "Read" }
func (*Read) ProtoMessage()  {}

type RecordRequest struct {
	Read *Read `protobuf:"bytes,1,opt,name=read,proto3"`
}

func (*RecordRequest) Reset()         {}
func (*RecordRequest) String() string { return "RecordRequest" }
func (*RecordRequest) ProtoMessage()  {}

type RecordBatchRequest struct {
	Reads []*Read `protobuf:"bytes,1,rep,name=reads,proto3"`
}

func (*RecordBatchRequest) Reset()         {}
func (*RecordBatchRequest) String() string { return "RecordBatchRequest" }
func (*RecordBatchRequest) ProtoMessage()  {}

type SourceQuery struct {
	Source string `protobuf:"bytes,1,opt,name=source,proto3"`
}

func (*SourceQuery) Reset()         {}
func (*SourceQuery) String() string { return "SourceQuery" }
func (*SourceQuery) ProtoMessage()  {}

type PoolQuery struct {
	Pool string `protobuf:"bytes,1,opt,name=pool,proto3"`
}

func (*PoolQuery) Reset()         {}
func (*PoolQuery) String() string { return "PoolQuery" }
func (*PoolQuery) ProtoMessage()  {}

type RecordResponse struct {
	Accepted bool   `protobuf:"varint,1,opt,name=accepted,proto3"`
	Recorded uint32 `protobuf:"varint,2,opt,name=recorded,proto3"`
}

func (*RecordResponse) Reset()         {}
func (*RecordResponse) String() string { return "RecordResponse" }
func (*RecordResponse) ProtoMessage()  {}

type PongResponse struct {
	UnixTimeNs int64 `protobuf:"varint,1,opt,name=unix_time_ns,json=unixTimeNs,proto3"`
}

func (*PongResponse) Reset()         {}
func (*PongResponse) String() string { return "PongResponse" }
func (*PongResponse) ProtoMessage()  {}

// StatsResponse carries one export pass: the counters observed at lock
// acquisition plus the formatted header and rows.
type StatsResponse struct {
	Found     bool   `protobuf:"varint,1,opt,name=found,proto3"`
	Rows      int64  `protobuf:"varint,2,opt,name=rows,proto3"`
	SizeBytes int64  `protobuf:"varint,3,opt,name=size_bytes,json=sizeBytes,proto3"`
	Text      []byte `protobuf:"bytes,4,opt,name=text,proto3"`
}

func (*StatsResponse) Reset()         {}
func (*StatsResponse) String() string { return "StatsResponse" }
func (*StatsResponse) ProtoMessage()  {}

type SourcesResponse struct {
	Names []string `protobuf:"bytes,1,rep,name=names,proto3"`
}

func (*SourcesResponse) Reset()         {}
func (*SourcesResponse) String() string { return "SourcesResponse" }
func (*SourcesResponse) ProtoMessage()  {}

type ClosePoolResponse struct {
	Found bool `protobuf:"varint,1,opt,name=found,proto3"`
}

func (*ClosePoolResponse) Reset()         {}
func (*ClosePoolResponse) String() string { return "ClosePoolResponse" }
func (*ClosePoolResponse) ProtoMessage()  {}

type HealthResponse struct {
	Ok      bool   `protobuf:"varint,1,opt,name=ok,proto3"`
	Message string `protobuf:"bytes,2,opt,name=message,proto3"`
}

func (*HealthResponse) Reset()         {}
func (*HealthResponse) String() string { return "HealthResponse" }
func (*HealthResponse) ProtoMessage()  {}

func MarshalMessage(msg proto.Message) ([]byte, error) { return proto.Marshal(msg) }

func UnmarshalRequest(payload []byte) (*SocketRequest, error) {
	var req SocketRequest
	if err := proto.Unmarshal(payload, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

func UnmarshalResponse(payload []byte) (*SocketResponse, error) {
	var res SocketResponse
	if err := proto.Unmarshal(payload, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func ValidateRequest(req *SocketRequest) error {
	if req == nil {
		return fmt.Errorf("nil request")
	}
	if req.Operation == int32(OperationUnknown) {
		return fmt.Errorf("operation is required")
	}
	return nil
}

// Retryable reports whether a failed request may be retried as-is.
func Retryable(code int32) bool {
	return ErrorCode(code) == ErrorCodeOverloaded
}
