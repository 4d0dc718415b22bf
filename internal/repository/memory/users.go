package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/iliyamo/evently/internal/model"
	"github.com/iliyamo/evently/internal/repository"
)

func (s *Store) CreateUser(_ context.Context, u *model.User) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.users {
		if existing.Email == u.Email {
			return repository.ErrDuplicate
		}
	}
	s.nextUser++
	u.ID = s.nextUser
	s.users[u.ID] = *u
	return nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (s *Store) GetUserByID(_ context.Context, id uint64) (model.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, repository.ErrNotFound
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context, role string) ([]model.User, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	out := []model.User{}
	for _, u := range s.users {
		if role == "" || u.Role == role {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateUserRole(_ context.Context, id uint64, role string) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Role = role
	s.users[id] = u
	return nil
}

func (s *Store) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if _, ok := s.tokens[tokenHash]; ok {
		return repository.ErrDuplicate
	}
	s.tokens[tokenHash] = refreshToken{userID: userID, expires: exp}
	return nil
}

func (s *Store) ValidateRefresh(_ context.Context, tokenHash string, now time.Time) (uint64, error) {
	s.usersMu.RLock()
	defer s.usersMu.RUnlock()
	tok, ok := s.tokens[tokenHash]
	if !ok || tok.revoked || now.After(tok.expires) {
		return 0, repository.ErrNotFound
	}
	return tok.userID, nil
}

func (s *Store) RevokeRefresh(_ context.Context, tokenHash string) error {
	s.usersMu.Lock()
	defer s.usersMu.Unlock()
	if tok, ok := s.tokens[tokenHash]; ok {
		tok.revoked = true
		s.tokens[tokenHash] = tok
	}
	return nil
}
