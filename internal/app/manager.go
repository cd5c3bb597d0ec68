package app

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/scrumdeck/scrumdeck/internal/core"
	"github.com/scrumdeck/scrumdeck/internal/domain"
)

// SessionManager is the room registry: a concurrency-safe map from
// room code to its session service. The map guards only membership;
// per-room serialization lives inside each SessionService.
type SessionManager struct {
	mu       sync.RWMutex
	sessions map[domain.RoomCode]*core.SessionService
	clock    clockwork.Clock
}

func NewSessionManager(clock clockwork.Clock) *SessionManager {
	return &SessionManager{
		sessions: make(map[domain.RoomCode]*core.SessionService),
		clock:    clock,
	}
}

// Create allocates a session for code with its moderator as the first
// participant. Fails if the code is already live.
func (m *SessionManager) Create(code domain.RoomCode, moderatorName string, system domain.VotingSystem) (*core.SessionService, domain.PlayerID, error) {
	if system == "" {
		system = domain.DefaultVotingSystem
	}
	if !system.Known() {
		return nil, "", domain.ErrUnknownSystem
	}
	moderator, err := domain.NewParticipant("", moderatorName, false, m.clock.Now())
	if err != nil {
		return nil, "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[code]; ok {
		return nil, "", domain.ErrRoomExists
	}
	svc := core.NewSessionService(code, moderator, system, m.clock)
	m.sessions[code] = svc
	log.Info().Str("module", "app.manager").Str("room", string(code)).
		Str("moderator", moderator.Name).Str("system", string(system)).Msg("session created")
	return svc, moderator.ID, nil
}

func (m *SessionManager) Get(code domain.RoomCode) (*core.SessionService, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	svc, ok := m.sessions[code]
	return svc, ok
}

// RemoveIfEmpty deletes the session iff its player set is empty.
func (m *SessionManager) RemoveIfEmpty(code domain.RoomCode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	svc, ok := m.sessions[code]
	if !ok || !svc.Empty() {
		return false
	}
	delete(m.sessions, code)
	log.Info().Str("module", "app.manager").Str("room", string(code)).Msg("empty session removed")
	return true
}

// Count is observable for diagnostics only.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *SessionManager) List() []core.SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]core.SessionInfo, 0, len(m.sessions))
	for _, svc := range m.sessions {
		out = append(out, svc.Info())
	}
	return out
}

// Sweep reclaims sessions that are empty or whose participants have
// all been gone longer than ttl. Returns the number removed.
func (m *SessionManager) Sweep(now time.Time, ttl time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for code, svc := range m.sessions {
		if svc.Reclaimable(now, ttl) {
			delete(m.sessions, code)
			count++
		}
	}
	return count
}
