package db

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/kube-rca/authd/internal/model"
)

// Memory is an in-process Store for tests and single-node development.
// WithinTx holds the store lock for the duration of fn and applies the
// changes only when fn succeeds.
type Memory struct {
	mu    sync.Mutex
	state *memState
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{state: newMemState()}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Ping(context.Context) error { return nil }

func (m *Memory) WithinTx(ctx context.Context, fn func(ctx context.Context, repo Repository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	draft := m.state.clone()
	if err := fn(ctx, draft); err != nil {
		return err
	}
	m.state = draft
	return nil
}

func (m *Memory) CreateUser(ctx context.Context, user model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateUser(ctx, user)
}

func (m *Memory) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetUserByID(ctx, id)
}

func (m *Memory) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetUserByEmail(ctx, email)
}

func (m *Memory) EmailExists(ctx context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.EmailExists(ctx, email)
}

func (m *Memory) LockUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.LockUser(ctx, id)
}

func (m *Memory) SetUserVerified(ctx context.Context, id string, now time.Time) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.SetUserVerified(ctx, id, now)
}

func (m *Memory) UpdateUserPassword(ctx context.Context, id, passwordHash string, now time.Time) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.UpdateUserPassword(ctx, id, passwordHash, now)
}

func (m *Memory) CreateSession(ctx context.Context, session model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateSession(ctx, session)
}

func (m *Memory) GetSession(ctx context.Context, id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.GetSession(ctx, id)
}

func (m *Memory) ExtendSessionExpiry(ctx context.Context, id string, expiresAt time.Time) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ExtendSessionExpiry(ctx, id, expiresAt)
}

func (m *Memory) DeleteSession(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteSession(ctx, id)
}

func (m *Memory) DeleteUserSession(ctx context.Context, id, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteUserSession(ctx, id, userID)
}

func (m *Memory) DeleteUserSessions(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteUserSessions(ctx, userID)
}

func (m *Memory) ListActiveSessions(ctx context.Context, userID string, now time.Time) ([]model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ListActiveSessions(ctx, userID, now)
}

func (m *Memory) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteExpiredSessions(ctx, now)
}

func (m *Memory) CreateCode(ctx context.Context, code model.VerificationCode) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CreateCode(ctx, code)
}

func (m *Memory) FindValidCode(ctx context.Context, id string, kind model.CodeKind, now time.Time) (*model.VerificationCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.FindValidCode(ctx, id, kind, now)
}

func (m *Memory) CountCodesSince(ctx context.Context, userID string, kind model.CodeKind, since time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.CountCodesSince(ctx, userID, kind, since)
}

func (m *Memory) ConsumeCode(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.ConsumeCode(ctx, id)
}

func (m *Memory) DeleteExpiredCodes(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DeleteExpiredCodes(ctx, now)
}

// memState is the unlocked record set. The caller holds Memory.mu.
type memState struct {
	users    map[string]model.User
	emails   map[string]string
	sessions map[string]model.Session
	codes    map[string]model.VerificationCode
}

func newMemState() *memState {
	return &memState{
		users:    map[string]model.User{},
		emails:   map[string]string{},
		sessions: map[string]model.Session{},
		codes:    map[string]model.VerificationCode{},
	}
}

func (s *memState) clone() *memState {
	out := &memState{
		users:    make(map[string]model.User, len(s.users)),
		emails:   make(map[string]string, len(s.emails)),
		sessions: make(map[string]model.Session, len(s.sessions)),
		codes:    make(map[string]model.VerificationCode, len(s.codes)),
	}
	for k, v := range s.users {
		out.users[k] = v
	}
	for k, v := range s.emails {
		out.emails[k] = v
	}
	for k, v := range s.sessions {
		out.sessions[k] = v
	}
	for k, v := range s.codes {
		out.codes[k] = v
	}
	return out
}

func (s *memState) CreateUser(_ context.Context, user model.User) error {
	if _, ok := s.users[user.ID]; ok {
		return ErrConflict
	}
	if _, ok := s.emails[user.Email]; ok {
		return ErrConflict
	}
	s.users[user.ID] = user
	s.emails[user.Email] = user.ID
	return nil
}

func (s *memState) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (s *memState) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	id, ok := s.emails[email]
	if !ok {
		return nil, ErrNotFound
	}
	return s.GetUserByID(ctx, id)
}

func (s *memState) EmailExists(_ context.Context, email string) (bool, error) {
	_, ok := s.emails[email]
	return ok, nil
}

func (s *memState) LockUser(_ context.Context, id string) error {
	if _, ok := s.users[id]; !ok {
		return ErrNotFound
	}
	return nil
}

func (s *memState) SetUserVerified(_ context.Context, id string, now time.Time) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.Verified = true
	u.UpdatedAt = now
	s.users[id] = u
	return &u, nil
}

func (s *memState) UpdateUserPassword(_ context.Context, id, passwordHash string, now time.Time) (*model.User, error) {
	u, ok := s.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	u.PasswordHash = passwordHash
	u.UpdatedAt = now
	s.users[id] = u
	return &u, nil
}

func (s *memState) CreateSession(_ context.Context, session model.Session) error {
	if _, ok := s.sessions[session.ID]; ok {
		return ErrConflict
	}
	if _, ok := s.users[session.UserID]; !ok {
		return ErrNotFound
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *memState) GetSession(_ context.Context, id string) (*model.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sess, nil
}

func (s *memState) ExtendSessionExpiry(_ context.Context, id string, expiresAt time.Time) (*model.Session, error) {
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	if expiresAt.After(sess.ExpiresAt) {
		sess.ExpiresAt = expiresAt
		s.sessions[id] = sess
	}
	return &sess, nil
}

func (s *memState) DeleteSession(_ context.Context, id string) (bool, error) {
	if _, ok := s.sessions[id]; !ok {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func (s *memState) DeleteUserSession(_ context.Context, id, userID string) (bool, error) {
	sess, ok := s.sessions[id]
	if !ok || sess.UserID != userID {
		return false, nil
	}
	delete(s.sessions, id)
	return true, nil
}

func (s *memState) DeleteUserSessions(_ context.Context, userID string) ([]string, error) {
	ids := []string{}
	for id, sess := range s.sessions {
		if sess.UserID == userID {
			ids = append(ids, id)
			delete(s.sessions, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *memState) ListActiveSessions(_ context.Context, userID string, now time.Time) ([]model.Session, error) {
	out := []model.Session{}
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.Live(now) {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *memState) DeleteExpiredSessions(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, sess := range s.sessions {
		if !sess.Live(now) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *memState) CreateCode(_ context.Context, code model.VerificationCode) error {
	if _, ok := s.codes[code.ID]; ok {
		return ErrConflict
	}
	if _, ok := s.users[code.UserID]; !ok {
		return ErrNotFound
	}
	s.codes[code.ID] = code
	return nil
}

func (s *memState) FindValidCode(_ context.Context, id string, kind model.CodeKind, now time.Time) (*model.VerificationCode, error) {
	c, ok := s.codes[id]
	if !ok || c.Kind != kind || !c.ExpiresAt.After(now) {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *memState) CountCodesSince(_ context.Context, userID string, kind model.CodeKind, since time.Time) (int, error) {
	n := 0
	for _, c := range s.codes {
		if c.UserID == userID && c.Kind == kind && c.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (s *memState) ConsumeCode(_ context.Context, id string) error {
	if _, ok := s.codes[id]; !ok {
		return ErrNotFound
	}
	delete(s.codes, id)
	return nil
}

func (s *memState) DeleteExpiredCodes(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, c := range s.codes {
		if !c.ExpiresAt.After(now) {
			delete(s.codes, id)
			n++
		}
	}
	return n, nil
}
