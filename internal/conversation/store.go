package conversation

import (
	"sync"

	"medchat/internal/models"
)

// MaxHistory bounds the number of messages retained per conversation.
const MaxHistory = 50

type conversation struct {
	mu       sync.Mutex
	messages []models.Message
}

// Store owns every conversation for the lifetime of the process.
// Conversations are created on first reference and never destroyed; Clear
// only truncates them.
type Store struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	max           int
}

// NewStore returns an empty store bounded at MaxHistory messages per conversation.
func NewStore() *Store {
	return NewStoreWithLimit(MaxHistory)
}

// NewStoreWithLimit returns an empty store with a custom bound.
func NewStoreWithLimit(max int) *Store {
	if max <= 0 {
		max = MaxHistory
	}
	return &Store{
		conversations: make(map[string]*conversation),
		max:           max,
	}
}

// lookup returns the conversation for id, creating it when create is set.
// The bool reports whether the conversation already existed.
func (s *Store) lookup(id string, create bool) (*conversation, bool) {
	s.mu.RLock()
	conv, ok := s.conversations[id]
	s.mu.RUnlock()
	if ok || !create {
		return conv, ok
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if conv, ok = s.conversations[id]; ok {
		return conv, true
	}
	conv = &conversation{}
	s.conversations[id] = conv
	return conv, false
}

// Append adds messages to the conversation, creating it if needed, then
// evicts from the front until the bound holds. Timestamps are clamped so they
// never go backwards within a conversation.
func (s *Store) Append(id string, msgs ...models.Message) {
	conv, _ := s.lookup(id, true)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	for _, msg := range msgs {
		if n := len(conv.messages); n > 0 {
			if last := conv.messages[n-1].Timestamp; msg.Timestamp.Before(last) {
				msg.Timestamp = last
			}
		}
		conv.messages = append(conv.messages, msg)
	}
	if over := len(conv.messages) - s.max; over > 0 {
		// copy so the evicted prefix can be collected
		kept := make([]models.Message, s.max, s.max+1)
		copy(kept, conv.messages[over:])
		conv.messages = kept
	}
}

// Get returns a copy of the conversation's messages. Unknown ids yield an
// empty slice and are not created.
func (s *Store) Get(id string) []models.Message {
	conv, ok := s.lookup(id, false)
	if !ok {
		return []models.Message{}
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return cloneMessages(conv.messages)
}

// GetOrSeed returns the conversation's messages. When the conversation has
// never been referenced it is created holding the single message produced by
// seed, so seeding happens at most once per id. A conversation emptied by
// Clear is not reseeded.
func (s *Store) GetOrSeed(id string, seed func() models.Message) []models.Message {
	conv, existed := s.lookup(id, true)
	conv.mu.Lock()
	defer conv.mu.Unlock()
	if !existed && len(conv.messages) == 0 && seed != nil {
		conv.messages = append(conv.messages, seed())
	}
	return cloneMessages(conv.messages)
}

// Clear truncates the conversation to zero messages. It is idempotent and
// also registers unknown ids.
func (s *Store) Clear(id string) {
	conv, _ := s.lookup(id, true)
	conv.mu.Lock()
	conv.messages = nil
	conv.mu.Unlock()
}

// RecentWindow returns up to the last n messages in their original order.
func (s *Store) RecentWindow(id string, n int) []models.Message {
	if n <= 0 {
		return []models.Message{}
	}
	conv, ok := s.lookup(id, false)
	if !ok {
		return []models.Message{}
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	start := len(conv.messages) - n
	if start < 0 {
		start = 0
	}
	return cloneMessages(conv.messages[start:])
}

// Len reports the number of retained messages.
func (s *Store) Len(id string) int {
	conv, ok := s.lookup(id, false)
	if !ok {
		return 0
	}
	conv.mu.Lock()
	defer conv.mu.Unlock()
	return len(conv.messages)
}

func cloneMessages(in []models.Message) []models.Message {
	out := make([]models.Message, len(in))
	copy(out, in)
	return out
}
