package models

type RunStatus int8

const (
	RunStatusOk RunStatus = iota
	RunStatusRunningError
	RunStatusTimeout
	RunStatusOutOfMemory
	RunStatusOutputOverflow
)

func (s RunStatus) String() string {
	switch s {
	case RunStatusOk:
		return "ok"
	case RunStatusRunningError:
		return "running_error"
	case RunStatusTimeout:
		return "timeout"
	case RunStatusOutOfMemory:
		return "out_of_memory"
	case RunStatusOutputOverflow:
		return "output_overflow"
	default:
		return "unknown"
	}
}
