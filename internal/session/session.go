// Package session keeps the logged-in user, the bearer token and the
// locally selected company, persisted in the key-value state.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/Paulobirribarra/Facturas-App-Movil/internal/api"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/logging"
	"github.com/Paulobirribarra/Facturas-App-Movil/internal/storage"

	"go.uber.org/zap"
)

const (
	keyToken     = "token"
	keyUser      = "user"
	keyCompanyID = "empresa_id"
)

var ErrUnknownCompany = errors.New("company is not available to this user")

// Store is the single session of the process. A token is present exactly
// when IsLoggedIn is true.
type Store struct {
	mu        sync.RWMutex
	kv        storage.KV
	logger    *zap.Logger
	token     string
	user      *api.User
	companyID *int64
}

var _ api.Credentials = (*Store)(nil)

func New(kv storage.KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		kv:     kv,
		logger: logger.Named("session"),
	}
}

// Load restores the persisted session. Without a token nothing else is
// kept.
func (s *Store) Load(ctx context.Context) error {
	token, err := s.get(ctx, keyToken)
	if err != nil {
		return err
	}
	rawUser, err := s.get(ctx, keyUser)
	if err != nil {
		return err
	}
	rawCompany, err := s.get(ctx, keyCompanyID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.token, s.user, s.companyID = "", nil, nil
	if strings.TrimSpace(token) == "" {
		return nil
	}
	s.token = token

	if rawUser != "" {
		var user api.User
		if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
			s.logger.Warn("ignoring unreadable stored user", zap.Error(err))
		} else {
			s.user = &user
		}
	}
	if rawCompany != "" {
		if id, err := strconv.ParseInt(rawCompany, 10, 64); err == nil && id > 0 {
			s.companyID = &id
		}
	}

	s.logger.Debug("session restored",
		zap.String("token", logging.RedactToken(s.token)),
		zap.Bool("has_user", s.user != nil),
		zap.Bool("has_company", s.companyID != nil),
	)
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	value, err := s.kv.Get(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load session %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

func (s *Store) SelectedCompanyID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.companyID == nil {
		return 0, false
	}
	return *s.companyID, true
}

func (s *Store) User() (api.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return api.User{}, false
	}
	return *s.user, true
}

func (s *Store) IsLoggedIn() bool {
	return s.Token() != ""
}

// Save replaces the whole session. A nil companyID leaves no company
// selected.
func (s *Store) Save(ctx context.Context, token string, user api.User, companyID *int64) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("session token is empty")
	}
	rawUser, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.user = &user
	s.companyID = nil
	if companyID != nil {
		id := *companyID
		s.companyID = &id
	}
	s.mu.Unlock()

	if err := s.kv.Set(ctx, keyToken, token); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if err := s.kv.Set(ctx, keyUser, string(rawUser)); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	if companyID != nil {
		if err := s.kv.Set(ctx, keyCompanyID, strconv.FormatInt(*companyID, 10)); err != nil {
			return fmt.Errorf("persist session: %w", err)
		}
	} else if err := s.kv.Delete(ctx, keyCompanyID); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	s.logger.Info("session saved",
		zap.Int64("user_id", user.ID),
		zap.String("token", logging.RedactToken(token)),
	)
	return nil
}

// SetSelectedCompany switches the local company selection. The company must
// be one of the user's companies when the user is known.
func (s *Store) SetSelectedCompany(ctx context.Context, companyID int64) error {
	s.mu.Lock()
	if s.token == "" {
		s.mu.Unlock()
		return api.ErrNoSession
	}
	if s.user != nil && len(s.user.Companies) > 0 && !hasCompany(s.user.Companies, companyID) {
		s.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrUnknownCompany, companyID)
	}
	id := companyID
	s.companyID = &id
	s.mu.Unlock()

	if err := s.kv.Set(ctx, keyCompanyID, strconv.FormatInt(companyID, 10)); err != nil {
		return fmt.Errorf("persist company: %w", err)
	}
	s.logger.Info("company selected", zap.Int64("company_id", companyID))
	return nil
}

// Company returns the selected company's details, when the user lists it.
func (s *Store) Company() (api.Company, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil || s.companyID == nil {
		return api.Company{}, false
	}
	for _, company := range s.user.Companies {
		if company.ID == *s.companyID {
			return company, true
		}
	}
	return api.Company{}, false
}

// Clear forgets the session in memory and in storage.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.token, s.user, s.companyID = "", nil, nil
	s.mu.Unlock()

	if err := s.kv.Delete(ctx, keyToken, keyUser, keyCompanyID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info("session cleared")
	return nil
}

func hasCompany(companies []api.Company, id int64) bool {
	for _, company := range companies {
		if company.ID == id {
			return true
		}
	}
	return false
}
