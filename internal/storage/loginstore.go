package storage

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/linemk/topup-shop/internal/domain/models"
)

var (
	ErrLoginExists       = errors.New("login code already in use")
	ErrLoginStateChanged = errors.New("login session state changed")
)

// LoginStore хранит ожидающие входы через Telegram по короткому коду.
type LoginStore interface {
	// Create сохраняет новую сессию; занятый код дает ErrLoginExists.
	Create(ctx context.Context, session *models.LoginSession) error
	Get(ctx context.Context, code string) (*models.LoginSession, error)
	// Transition атомарно перезаписывает сессию, только если ее текущий статус равен from.
	// Отсутствующая сессия дает ErrLoginNotFound, другой статус дает ErrLoginStateChanged.
	Transition(ctx context.Context, from string, session *models.LoginSession) error
	Delete(ctx context.Context, code string) error
}

// memoryLoginStore: хранилище в памяти процесса, старые записи удаляет Sweep
type memoryLoginStore struct {
	mu       sync.Mutex
	sessions map[string]models.LoginSession
}

func NewMemoryLoginStore() *memoryLoginStore {
	return &memoryLoginStore{sessions: make(map[string]models.LoginSession)}
}

func (s *memoryLoginStore) Create(_ context.Context, session *models.LoginSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.Code]; ok {
		return ErrLoginExists
	}
	s.sessions[session.Code] = copySession(session)
	return nil
}

func (s *memoryLoginStore) Get(_ context.Context, code string) (*models.LoginSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[code]
	if !ok {
		return nil, ErrLoginNotFound
	}
	out := copySession(&session)
	return &out, nil
}

func (s *memoryLoginStore) Transition(_ context.Context, from string, session *models.LoginSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.sessions[session.Code]
	if !ok {
		return ErrLoginNotFound
	}
	if current.Status != from {
		return ErrLoginStateChanged
	}
	s.sessions[session.Code] = copySession(session)
	return nil
}

func (s *memoryLoginStore) Delete(_ context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, code)
	return nil
}

// Sweep удаляет сессии, созданные раньше olderThan, и возвращает их количество
func (s *memoryLoginStore) Sweep(olderThan time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for code, session := range s.sessions {
		if session.CreatedAt.Before(olderThan) {
			delete(s.sessions, code)
			removed++
		}
	}
	return removed
}

// Len: количество сессий в хранилище
func (s *memoryLoginStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// copySession не дает вызывающему коду менять данные под мьютексом через указатели
func copySession(session *models.LoginSession) models.LoginSession {
	out := *session
	if session.RequesterUserID != nil {
		id := *session.RequesterUserID
		out.RequesterUserID = &id
	}
	if session.Identity != nil {
		identity := *session.Identity
		out.Identity = &identity
	}
	return out
}
