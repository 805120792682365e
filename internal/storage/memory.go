package storage

import (
	"context"
	"sort"
	"sync"

	"go-hh-autoreply/internal/models"
)

type memoryQueue struct {
	items  []models.Vacancy
	cursor int
}

// Memory is an in-process Backend guarded by a single mutex.
type Memory struct {
	mu       sync.Mutex
	settings map[int64]map[string]string
	queues   map[int64]*memoryQueue
	users    map[int64]*models.User
}

// NewMemory creates an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		settings: make(map[int64]map[string]string),
		queues:   make(map[int64]*memoryQueue),
		users:    make(map[int64]*models.User),
	}
}

func (m *Memory) Get(ctx context.Context, userID int64, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.settings[userID][key]
	return v, ok, nil
}

func (m *Memory) Set(ctx context.Context, userID int64, key string, value *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(userID, key, value)
	return nil
}

func (m *Memory) setLocked(userID int64, key string, value *string) {
	if value == nil {
		delete(m.settings[userID], key)
		return
	}
	kv, ok := m.settings[userID]
	if !ok {
		kv = make(map[string]string)
		m.settings[userID] = kv
	}
	kv[key] = *value
}

func (m *Memory) Update(ctx context.Context, userID int64, key string, fn UpdateFunc) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.settings[userID][key]
	next := fn(cur, ok)
	m.setLocked(userID, key, next)
	if next == nil {
		return "", nil
	}
	return *next, nil
}

func (m *Memory) All(ctx context.Context, userID int64) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(m.settings[userID]))
	for k, v := range m.settings[userID] {
		out[k] = v
	}
	return out, nil
}

func (m *Memory) Replace(ctx context.Context, userID int64, items []models.Vacancy) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queues[userID] = &memoryQueue{items: append([]models.Vacancy(nil), items...)}
	return nil
}

func (m *Memory) Next(ctx context.Context, userID int64) (*models.Vacancy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[userID]
	if !ok || q.cursor >= len(q.items) {
		return nil, nil
	}
	v := q.items[q.cursor]
	q.cursor++
	return &v, nil
}

func (m *Memory) Peek(ctx context.Context, userID int64, limit int) ([]models.Vacancy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[userID]
	if !ok || limit <= 0 {
		return nil, nil
	}
	end := q.cursor + limit
	if end > len(q.items) {
		end = len(q.items)
	}
	return append([]models.Vacancy(nil), q.items[q.cursor:end]...), nil
}

func (m *Memory) Cursor(ctx context.Context, userID int64) (int, int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[userID]
	if !ok {
		return 0, 0, false, nil
	}
	return q.cursor, len(q.items), true, nil
}

func (m *Memory) Clear(ctx context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.queues, userID)
	return nil
}

func (m *Memory) userLocked(userID int64) *models.User {
	u, ok := m.users[userID]
	if !ok {
		u = &models.User{ID: userID}
		m.users[userID] = u
	}
	return u
}

func (m *Memory) SaveChat(ctx context.Context, userID, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userLocked(userID).ChatID = chatID
	return nil
}

func (m *Memory) User(ctx context.Context, userID int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *u
	if u.Token != nil {
		tok := *u.Token
		cp.Token = &tok
	}
	return &cp, nil
}

func (m *Memory) SaveToken(ctx context.Context, userID int64, token models.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userLocked(userID).Token = &token
	return nil
}

func (m *Memory) SetResume(ctx context.Context, userID int64, resumeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.userLocked(userID).ResumeID = resumeID
	return nil
}

func (m *Memory) Authorized(ctx context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for id, u := range m.users {
		if u.Authorized() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *Memory) Close() error {
	return nil
}

var _ Backend = (*Memory)(nil)
