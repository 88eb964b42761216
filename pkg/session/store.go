// Package session holds the in-memory record of every in-flight automation
// task. The store is the only shared mutable state in the engine: step
// handlers read a copy, mutate through partial updates, and never see
// another task's record.
package session

import (
	"sync"
	"time"
)

// Store is a concurrent map of task sessions. All operations are O(1);
// operations on different task IDs only contend on the map lock, never on
// each other's records.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
	}
}

// Create registers a fresh session for the task. An existing record for the
// same task ID is overwritten: a caller restarting a task after a crash
// expects a clean slate, not a conflict.
func (s *Store) Create(taskID, carrier string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	sess := &Session{
		TaskID:    taskID,
		Carrier:   carrier,
		Status:    StatusInitializing,
		Answers:   make(map[string]string),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[taskID] = sess
	return sess.clone()
}

// Get returns a copy of the session, or nil if the task is unknown.
func (s *Store) Get(taskID string) *Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[taskID]
	if !ok {
		return nil
	}
	return sess.clone()
}

// Update merges the partial update into the session and refreshes its
// last-activity timestamp. Returns the updated copy, or nil (with no
// mutation performed) if the task is unknown.
func (s *Store) Update(taskID string, upd Update) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[taskID]
	if !ok {
		return nil
	}

	if upd.Status != nil {
		sess.Status = *upd.Status
	}
	if upd.StepIndex != nil {
		sess.StepIndex = *upd.StepIndex
	}
	if upd.StepName != nil {
		sess.StepName = *upd.StepName
	}
	for k, v := range upd.Answers {
		sess.Answers[k] = v
	}
	if upd.RemoteToken != nil {
		sess.RemoteToken = *upd.RemoteToken
	}
	if upd.LastError != nil {
		sess.LastError = *upd.LastError
	}
	if upd.Quote != nil {
		sess.Quote = upd.Quote
	}
	sess.UpdatedAt = time.Now()

	return sess.clone()
}

// Delete evicts the session record. Deleting an unknown task is a no-op.
func (s *Store) Delete(taskID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, taskID)
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
