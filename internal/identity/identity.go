package identity

import (
	"fmt"
	"strconv"
)

// Class is one of the two participant classes the platform knows about.
// Requester and provider ids live in separate tables, so the same numeric
// id can exist in both classes and mean two different people. Every lookup
// and map key must carry the full (Class, ID) pair.
type Class string

const (
	Requester Class = "requester"
	Provider  Class = "provider"
)

func ParseClass(s string) (Class, error) {
	switch Class(s) {
	case Requester, Provider:
		return Class(s), nil
	}
	return "", fmt.Errorf("unknown participant class %q", s)
}

// Participant identifies one party of a conversation.
type Participant struct {
	Class Class `json:"class"`
	ID    int   `json:"id"`
}

func (p Participant) Valid() bool {
	return p.ID > 0 && (p.Class == Requester || p.Class == Provider)
}

// Key is the canonical map/pubsub key, e.g. "requester:7".
func (p Participant) Key() string {
	return string(p.Class) + ":" + strconv.Itoa(p.ID)
}

func (p Participant) String() string {
	return p.Key()
}
