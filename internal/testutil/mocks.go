// Package testutil provides shared test utilities, mocks, and fixtures
// for testing the dchat application.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"dchat/internal/domain"
)

// Common test errors
var (
	ErrMockNotImplemented = errors.New("mock function not implemented")
	ErrMockNotFound       = errors.New("mock: not found")
)

// MockUserRepository implements domain.UserRepository for testing
type MockUserRepository struct {
	mu sync.RWMutex

	// Function overrides - set these to customize behavior
	CreateFunc            func(ctx context.Context, user *domain.User) error
	GetByIDFunc           func(ctx context.Context, id string) (*domain.User, error)
	GetByUsernameFunc     func(ctx context.Context, username string) (*domain.User, error)
	UpdateDefaultRoomFunc func(ctx context.Context, userID, room string) error

	// In-memory storage for simple tests
	Users map[string]*domain.User
}

// NewMockUserRepository creates a new MockUserRepository with initialized maps
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		Users: make(map[string]*domain.User),
	}
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Users == nil {
		m.Users = make(map[string]*domain.User)
	}

	for _, u := range m.Users {
		if u.Username == user.Username {
			return domain.ErrUsernameExists
		}
	}

	if user.ID == "" {
		user.ID = "user-" + user.Username
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	m.Users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if user, ok := m.Users[id]; ok {
		return user, nil
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, user := range m.Users {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, domain.ErrUserNotFound
}

func (m *MockUserRepository) UpdateDefaultRoom(ctx context.Context, userID, room string) error {
	if m.UpdateDefaultRoomFunc != nil {
		return m.UpdateDefaultRoomFunc(ctx, userID, room)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.Users[userID]
	if !ok {
		return domain.ErrUserNotFound
	}
	user.DefaultRoom = room
	return nil
}

// MockSessionRepository implements domain.SessionRepository for testing
type MockSessionRepository struct {
	mu sync.RWMutex

	// Function overrides
	CreateFunc        func(ctx context.Context, session *domain.Session) error
	GetByTokenFunc    func(ctx context.Context, token string) (*domain.Session, error)
	DeleteFunc        func(ctx context.Context, token string) error
	DeleteExpiredFunc func(ctx context.Context) (int64, error)

	// In-memory storage
	Sessions map[string]*domain.Session
}

// NewMockSessionRepository creates a new MockSessionRepository with initialized maps
func NewMockSessionRepository() *MockSessionRepository {
	return &MockSessionRepository{
		Sessions: make(map[string]*domain.Session),
	}
}

func (m *MockSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, session)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Sessions == nil {
		m.Sessions = make(map[string]*domain.Session)
	}
	m.Sessions[session.Token] = session
	return nil
}

func (m *MockSessionRepository) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.GetByTokenFunc != nil {
		return m.GetByTokenFunc(ctx, token)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if session, ok := m.Sessions[token]; ok {
		if session.ExpiresAt.Before(time.Now()) {
			return nil, domain.ErrSessionNotFound
		}
		return session, nil
	}
	return nil, domain.ErrSessionNotFound
}

func (m *MockSessionRepository) Delete(ctx context.Context, token string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, token)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.Sessions, token)
	return nil
}

func (m *MockSessionRepository) DeleteExpired(ctx context.Context) (int64, error) {
	if m.DeleteExpiredFunc != nil {
		return m.DeleteExpiredFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var count int64
	now := time.Now()
	for token, session := range m.Sessions {
		if session.ExpiresAt.Before(now) {
			delete(m.Sessions, token)
			count++
		}
	}
	return count, nil
}

// MockMessageRepository implements domain.MessageRepository for testing.
// The in-memory store assigns per-room sequential ids the way the
// Postgres repository does.
type MockMessageRepository struct {
	mu sync.RWMutex

	// Function overrides
	AppendFunc func(ctx context.Context, message *domain.Message) error
	BeforeFunc func(ctx context.Context, room string, beforeID *int64, count int) ([]*domain.MessageView, error)
	AfterFunc  func(ctx context.Context, room string, afterID int64, limit int) ([]*domain.MessageView, error)

	// In-memory storage, per room
	Messages map[string][]*domain.Message

	// Display names used when building views, keyed by sender id
	DisplayNames map[string]string
}

// NewMockMessageRepository creates a new MockMessageRepository with initialized maps
func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		Messages:     make(map[string][]*domain.Message),
		DisplayNames: make(map[string]string),
	}
}

func (m *MockMessageRepository) Append(ctx context.Context, message *domain.Message) error {
	if m.AppendFunc != nil {
		return m.AppendFunc(ctx, message)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Messages == nil {
		m.Messages = make(map[string][]*domain.Message)
	}
	message.ID = int64(len(m.Messages[message.Room]) + 1)
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	m.Messages[message.Room] = append(m.Messages[message.Room], message)
	return nil
}

func (m *MockMessageRepository) Before(ctx context.Context, room string, beforeID *int64, count int) ([]*domain.MessageView, error) {
	if m.BeforeFunc != nil {
		return m.BeforeFunc(ctx, room, beforeID, count)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.MessageView, 0, count)
	for _, msg := range m.Messages[room] {
		if beforeID != nil && msg.ID >= *beforeID {
			continue
		}
		result = append(result, m.view(msg))
	}
	// Newest first
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	if len(result) > count {
		result = result[:count]
	}
	return result, nil
}

func (m *MockMessageRepository) After(ctx context.Context, room string, afterID int64, limit int) ([]*domain.MessageView, error) {
	if m.AfterFunc != nil {
		return m.AfterFunc(ctx, room, afterID, limit)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*domain.MessageView, 0, limit)
	for _, msg := range m.Messages[room] {
		if msg.ID <= afterID {
			continue
		}
		result = append(result, m.view(msg))
	}
	// Oldest first
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockMessageRepository) view(msg *domain.Message) *domain.MessageView {
	displayName := m.DisplayNames[msg.SenderID]
	if displayName == "" {
		displayName = msg.SenderID
	}
	return &domain.MessageView{
		Room:              msg.Room,
		ID:                msg.ID,
		SenderID:          msg.SenderID,
		SenderDisplayName: displayName,
		HTML:              msg.HTML,
		Timestamp:         msg.CreatedAt.UnixMilli(),
	}
}

// MockPublisher implements service.Publisher for testing
type MockPublisher struct {
	mu sync.RWMutex

	// Function overrides
	PublishFunc func(ctx context.Context, view *domain.MessageView) error

	// Call tracking
	Published []*domain.MessageView
}

// NewMockPublisher creates a new MockPublisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Published: make([]*domain.MessageView, 0),
	}
}

func (m *MockPublisher) Publish(ctx context.Context, view *domain.MessageView) error {
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, view)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Published = append(m.Published, view)
	return nil
}

// GetPublished returns all recorded published views
func (m *MockPublisher) GetPublished() []*domain.MessageView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]*domain.MessageView{}, m.Published...)
}

// MockIdentity implements domain.Identity for testing
type MockIdentity struct {
	mu sync.RWMutex

	// Function overrides
	ResolveDisplayNameFunc func(ctx context.Context, userID string) string
	DefaultRoomFunc        func(ctx context.Context, userID string) (string, error)
	SetDefaultRoomFunc     func(ctx context.Context, userID, room string) error

	// In-memory state
	DisplayNames map[string]string
	DefaultRooms map[string]string
}

// NewMockIdentity creates a new MockIdentity with initialized maps
func NewMockIdentity() *MockIdentity {
	return &MockIdentity{
		DisplayNames: make(map[string]string),
		DefaultRooms: make(map[string]string),
	}
}

func (m *MockIdentity) ResolveDisplayName(ctx context.Context, userID string) string {
	if m.ResolveDisplayNameFunc != nil {
		return m.ResolveDisplayNameFunc(ctx, userID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	if name, ok := m.DisplayNames[userID]; ok && name != "" {
		return name
	}
	return userID
}

func (m *MockIdentity) DefaultRoom(ctx context.Context, userID string) (string, error) {
	if m.DefaultRoomFunc != nil {
		return m.DefaultRoomFunc(ctx, userID)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.DefaultRooms[userID], nil
}

func (m *MockIdentity) SetDefaultRoom(ctx context.Context, userID, room string) error {
	if m.SetDefaultRoomFunc != nil {
		return m.SetDefaultRoomFunc(ctx, userID, room)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.DefaultRooms == nil {
		m.DefaultRooms = make(map[string]string)
	}
	m.DefaultRooms[userID] = room
	return nil
}
