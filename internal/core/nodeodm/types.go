package nodeodm

import "fmt"

// Task status codes as reported by the processing server.
const (
	StatusQueued    = 10
	StatusRunning   = 20
	StatusFailed    = 30
	StatusCompleted = 40
	StatusCanceled  = 50
)

// StatusName maps a NodeODM status code to a readable label.
func StatusName(code int) string {
	switch code {
	case StatusQueued:
		return "queued"
	case StatusRunning:
		return "running"
	case StatusFailed:
		return "failed"
	case StatusCompleted:
		return "completed"
	case StatusCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("unknown(%d)", code)
	}
}

// ServerInfo is the /info payload of the processing server.
type ServerInfo struct {
	Version            string `json:"version"`
	TaskQueueCount     int    `json:"taskQueueCount"`
	MaxImages          int    `json:"maxImages"`
	MaxParallelTasks   int    `json:"maxParallelTasks"`
	AvailableMemory    int64  `json:"availableMemory"`
	TotalMemory        int64  `json:"totalMemory"`
	EngineVersion      string `json:"engineVersion"`
	Engine             string `json:"engine"`
	OdmVersion         string `json:"odmVersion"`
	CPUCores           int    `json:"cpuCores"`
}

// TaskStatus is the nested status object of a task.
type TaskStatus struct {
	Code int `json:"code"`
}

// TaskInfo is the /task/{uuid}/info payload.
type TaskInfo struct {
	UUID            string         `json:"uuid"`
	Name            string         `json:"name"`
	DateCreated     int64          `json:"dateCreated"`
	ProcessingTime  int64          `json:"processingTime"`
	Status          TaskStatus     `json:"status"`
	Options         []TaskOption   `json:"options"`
	ImagesCount     int            `json:"imagesCount"`
	Progress        float64        `json:"progress"`
}

// TaskOption is a single processing option forwarded to the engine.
type TaskOption struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// TaskRef is one element of the /task/list payload.
type TaskRef struct {
	UUID string `json:"uuid"`
}

// NewTaskResponse is returned by POST /task/new.
type NewTaskResponse struct {
	UUID  string `json:"uuid"`
	Error string `json:"error,omitempty"`
}

// StatusError reports a non-2xx response from the processing server.
type StatusError struct {
	Code int
	Op   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: processing server returned HTTP %d", e.Op, e.Code)
}
