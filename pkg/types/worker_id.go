package types

import "fmt"

// Role is the part a worker plays in a run
type Role int

const (
	// RoleProducer pushes items into a queue
	RoleProducer Role = iota
	// RoleConsumer pops items from a queue until it is closed
	RoleConsumer
	// RoleTask computes a single value reported through a result channel
	RoleTask
)

// String returns the string representation of Role
func (r Role) String() string {
	switch r {
	case RoleProducer:
		return "producer"
	case RoleConsumer:
		return "consumer"
	case RoleTask:
		return "task"
	default:
		return "unknown"
	}
}

// WorkerID identifies a worker within one orchestrator
type WorkerID struct {
	Seq  int
	Role Role
	Name string
}

// String returns a tag such as "producer-3" or "consumer-1(sink)".
func (id WorkerID) String() string {
	if id.Name == "" {
		return fmt.Sprintf("%s-%d", id.Role, id.Seq)
	}
	return fmt.Sprintf("%s-%d(%s)", id.Role, id.Seq, id.Name)
}
