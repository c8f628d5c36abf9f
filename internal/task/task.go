package task

import "time"

// Status represents the lifecycle stage of an analysis task.
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Task is the durable record of one analysis request. TaskID is supplied by
// the caller and is the store's primary key; the service treats collisions as
// a continuation of the existing task, never as a conflict.
//
// Exactly one of Results/Error is set once the task is terminal:
// completed tasks carry Results, failed tasks carry Error, processing
// tasks carry neither.
type Task struct {
	TaskID    string                 `bson:"task_id" json:"task_id"`
	Status    Status                 `bson:"status" json:"status" jsonschema:"required,enum=processing,enum=completed,enum=failed"`
	Results   map[string]interface{} `bson:"results,omitempty" json:"results,omitempty"`
	Error     string                 `bson:"error,omitempty" json:"error,omitempty"`
	OwnerRef  string                 `bson:"owner_ref,omitempty" json:"owner_ref,omitempty"`
	CreatedAt time.Time              `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time              `bson:"updated_at" json:"updated_at"`
}

// Projection is the reduced shape returned by list queries. It deliberately
// omits result payloads, which can be large.
type Projection struct {
	TaskID    string    `bson:"task_id" json:"task_id"`
	Status    Status    `bson:"status" json:"status"`
	OwnerRef  string    `bson:"owner_ref,omitempty" json:"owner_ref,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}
