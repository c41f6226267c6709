package game

// SessionStatus represents the lifecycle stage of a match session
type SessionStatus string

const (
	StatusWaiting    SessionStatus = "WAITING"
	StatusInProgress SessionStatus = "IN_PROGRESS"
	StatusCompleted  SessionStatus = "COMPLETED"
	StatusCancelled  SessionStatus = "CANCELLED"
)
