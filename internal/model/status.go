package model

// Status is the lifecycle state of a queued record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusConverting Status = "converting"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

func (s Status) String() string {
	return string(s)
}

// IsFinished reports whether no further transition other than removal is possible.
func (s Status) IsFinished() bool {
	return s == StatusCompleted || s == StatusError
}
