// Package session tracks the multi-step operation each actor is in the middle
// of. State is an explicit per-actor record with an expiry rather than being
// inferred from the text of the bot's previous prompt, so reworded prompts
// cannot break routing and concurrent actors never share staging data.
package session

import (
	"regexp"
	"sync"
	"time"
)

// Kind tags the pending multi-step operation.
type Kind int

const (
	// KindNone means the actor has no operation in flight.
	KindNone Kind = iota
	// KindAddGroup awaits the title of the new group.
	KindAddGroup
	// KindAttachChat awaits a group choice, then the chat id to add.
	KindAttachChat
	// KindBroadcast awaits a group choice, then the message to fan out.
	KindBroadcast
	// KindDetachChat awaits a group choice, then the chat id to remove.
	KindDetachChat
	// KindEnrollID awaits the id of the new user.
	KindEnrollID
	// KindEnrollName awaits the full name of the new user.
	KindEnrollName
	// KindEnrollRole awaits the role button for the new user.
	KindEnrollRole
	// KindDeleteUser awaits the id of the user to delete.
	KindDeleteUser
)

// DefaultTTL bounds how long an unanswered prompt keeps its pending record.
const DefaultTTL = 15 * time.Minute

var idPattern = regexp.MustCompile(`^-?[0-9]+$`)

// ValidIDText reports whether the reply text is acceptable as a chat or user
// id. A failed validation must not consume the pending step.
func ValidIDText(text string) bool {
	return idPattern.MatchString(text)
}

// Pending is the tagged record of one actor's in-flight operation.
type Pending struct {
	Kind       Kind
	GroupTitle string // set once a group button was chosen
	UserID     int64  // enrollment stash, step 1
	FullName   string // enrollment stash, step 2
	ExpiresAt  time.Time
}

// AwaitingGroupChoice reports whether the operation still needs a group button
// press before it can accept a text reply.
func (p Pending) AwaitingGroupChoice() bool {
	switch p.Kind {
	case KindAttachChat, KindBroadcast, KindDetachChat:
		return p.GroupTitle == ""
	default:
		return false
	}
}

// Store holds the pending operation per actor id.
type Store struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	pending map[int64]Pending
}

// NewStore constructs a Store with the given record lifetime; ttl <= 0 falls
// back to DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &Store{
		ttl:     ttl,
		now:     time.Now,
		pending: make(map[int64]Pending),
	}
}

// Begin replaces the actor's pending operation, stamping a fresh expiry.
func (s *Store) Begin(actorID int64, p Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.ExpiresAt = s.now().Add(s.ttl)
	s.pending[actorID] = p
}

// Get returns the actor's pending operation. Expired records are dropped and
// reported as absent.
func (s *Store) Get(actorID int64) (Pending, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pending[actorID]
	if !ok {
		return Pending{}, false
	}

	if !s.now().Before(p.ExpiresAt) {
		delete(s.pending, actorID)
		return Pending{}, false
	}

	return p, true
}

// Advance updates the actor's record in place, keeping the remaining lifetime.
func (s *Store) Advance(actorID int64, p Pending) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.pending[actorID]; ok {
		p.ExpiresAt = existing.ExpiresAt
	} else {
		p.ExpiresAt = s.now().Add(s.ttl)
	}
	s.pending[actorID] = p
}

// Clear drops the actor's pending operation.
func (s *Store) Clear(actorID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.pending, actorID)
}
