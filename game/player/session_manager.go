package player

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// SessionManager maintains the registry of all connected trainer sessions.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[int64]*Session // trainerID → session
	logger   *zap.Logger
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(logger *zap.Logger) *SessionManager {
	return &SessionManager{
		sessions: make(map[int64]*Session),
		logger:   logger,
	}
}

// Register adds an authenticated session. If a previous session exists
// for the same trainer, it is closed first (duplicate login / reconnect).
func (sm *SessionManager) Register(s *Session) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	id := s.TrainerID()
	if old, ok := sm.sessions[id]; ok {
		old.Close()
		sm.logger.Info("duplicate session displaced",
			zap.Int64("trainer_id", id))
	}
	sm.sessions[id] = s
	sm.logger.Info("trainer session registered",
		zap.Int64("trainer_id", id),
		zap.String("username", s.Username()))
}

// Unregister removes the session for a trainer.
func (sm *SessionManager) Unregister(trainerID int64) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	delete(sm.sessions, trainerID)
	sm.logger.Info("trainer session unregistered", zap.Int64("trainer_id", trainerID))
}

// Get returns the session for a trainer, or nil if not found.
func (sm *SessionManager) Get(trainerID int64) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessions[trainerID]
}

// GetByName finds the session for a trainer by username (case-insensitive).
func (sm *SessionManager) GetByName(username string) *Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	nameLower := strings.ToLower(username)
	for _, s := range sm.sessions {
		if strings.ToLower(s.Username()) == nameLower {
			return s
		}
	}
	return nil
}

// IsOnline reports whether a trainer is currently connected.
func (sm *SessionManager) IsOnline(trainerID int64) bool {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	_, ok := sm.sessions[trainerID]
	return ok
}

// Count returns the number of currently connected sessions.
func (sm *SessionManager) Count() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// All returns a snapshot slice of all current sessions.
func (sm *SessionManager) All() []*Session {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	out := make([]*Session, 0, len(sm.sessions))
	for _, s := range sm.sessions {
		out = append(out, s)
	}
	return out
}

// BroadcastAll sends a raw pre-encoded packet to every connected session.
// Uses non-blocking send to prevent slow connections from blocking the broadcast.
func (sm *SessionManager) BroadcastAll(data []byte) {
	sessions := sm.All()
	for _, s := range sessions {
		select {
		case s.SendChan <- data:
		default:
			sm.logger.Warn("broadcast dropped packet for slow client",
				zap.Int64("trainer_id", s.TrainerID()))
		}
	}
}

// BroadcastToAll sends a packet to every connected session (typed version).
func (sm *SessionManager) BroadcastToAll(pkt *Packet) {
	data, err := json.Marshal(pkt)
	if err != nil {
		sm.logger.Error("failed to marshal broadcast packet", zap.Error(err))
		return
	}
	sm.BroadcastAll(data)
}

// BroadcastSystemMessage sends a system message to all online trainers.
func (sm *SessionManager) BroadcastSystemMessage(message string) {
	type systemPayload struct {
		From    string `json:"from"`
		Message string `json:"message"`
	}
	payload, _ := json.Marshal(systemPayload{
		From:    "system",
		Message: message,
	})
	sm.BroadcastToAll(&Packet{Type: "SYSTEM_MESSAGE", Payload: payload})
}

// CloseAllSessions gracefully closes all connected sessions.
func (sm *SessionManager) CloseAllSessions() {
	sessions := sm.All()
	sm.logger.Info("closing all sessions", zap.Int("count", len(sessions)))
	for _, s := range sessions {
		s.Close()
	}

	// Wait for unregistration to drain, bounded.
	maxWait := 10 * time.Second
	start := time.Now()
	for time.Since(start) < maxWait {
		if sm.Count() == 0 {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
}
