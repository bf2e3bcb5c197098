// Package response builds the uniform success/failure envelope that every
// snapshot is wrapped in before being persisted. The JSON shape is a stable
// contract consumed by external analysis tooling; do not change field names
// or the timestamp format.
package response

import "time"

// TaskType classifies what a snapshot samples. Only STATE is produced today;
// EVENT and INTERRUPT are reserved in the taxonomy.
type TaskType string

const (
	TaskTypeState     TaskType = "STATE"
	TaskTypeEvent     TaskType = "EVENT"
	TaskTypeInterrupt TaskType = "INTERRUPT"
)

// Status is the top-level outcome of a snapshot.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// ErrorCode is the closed set of failure classes carried on the wire.
// Integer values are part of the output contract.
type ErrorCode int

const (
	// CodeInvalidArguments covers bad caller-supplied parameters such as a
	// non-positive frequency or an unparsable regex.
	CodeInvalidArguments ErrorCode = 1

	// CodeToolNotAvailable marks an absent optional external dependency
	// (e.g. bpftool). It is an expected environment condition, not a fault.
	CodeToolNotAvailable ErrorCode = 1000

	// CodeExecutionFailure is the default for unexpected errors during
	// collection or parsing.
	CodeExecutionFailure ErrorCode = 1001

	// CodeIOFailure covers missing files, permission errors, and unmounted
	// pseudo-filesystems.
	CodeIOFailure ErrorCode = 1002
)

func (c ErrorCode) String() string {
	switch c {
	case CodeInvalidArguments:
		return "INVALID_ARGUMENTS"
	case CodeToolNotAvailable:
		return "TOOL_NOT_AVAILABLE"
	case CodeExecutionFailure:
		return "EXECUTION_FAILURE"
	case CodeIOFailure:
		return "IO_FAILURE"
	}
	return "UNKNOWN"
}

// Metadata identifies which monitor produced an envelope.
type Metadata struct {
	TaskType TaskType `json:"task_type"`
	Subtype  string   `json:"subtype"`
}

// Detail is the error payload of a failure envelope.
type Detail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

// Envelope is the uniform wrapper written to every snapshot file. Exactly one
// of Data or Error is set. Data is always a struct value, never a bare map,
// so that success envelopes serialize a "data" key even when empty.
type Envelope struct {
	Timestamp string   `json:"timestamp"`
	Status    Status   `json:"status"`
	Metadata  Metadata `json:"metadata"`
	Data      any      `json:"data,omitempty"`
	Error     *Detail  `json:"error,omitempty"`
}

// timestampLayout renders an ISO 8601 UTC timestamp with microsecond
// precision, e.g. "2025-09-10T09:42:13.123456Z".
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// Timestamp returns the current UTC time in the envelope's wire format.
func Timestamp() string {
	return time.Now().UTC().Format(timestampLayout)
}

// Success constructs a SUCCESS envelope carrying data.
func Success(taskType TaskType, subtype string, data any) *Envelope {
	return &Envelope{
		Timestamp: Timestamp(),
		Status:    StatusSuccess,
		Metadata:  Metadata{TaskType: taskType, Subtype: subtype},
		Data:      data,
	}
}

// Failure constructs a FAILURE envelope carrying an error code and message.
func Failure(taskType TaskType, subtype string, code ErrorCode, message string) *Envelope {
	return &Envelope{
		Timestamp: Timestamp(),
		Status:    StatusFailure,
		Metadata:  Metadata{TaskType: taskType, Subtype: subtype},
		Error:     &Detail{Code: code, Message: message},
	}
}
