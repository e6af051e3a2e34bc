package service

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"querygate/internal/core"
)

const keyPrefixLen = 8

// AuthService is the auth gate: it issues API keys and validates presented
// credentials against stored bcrypt hashes. The plaintext prefix only narrows
// the candidate set; bcrypt's comparison is constant-time, so an attacker
// cannot distinguish near-miss tokens by latency.
type AuthService struct {
	keys core.ApiKeyRepository
}

func NewAuthService(keys core.ApiKeyRepository) *AuthService {
	return &AuthService{keys: keys}
}

// CreateKey generates a key for the given role and returns the plaintext
// token. The token is shown exactly once; only its hash is stored.
func (s *AuthService) CreateKey(role string) (string, *core.ApiKey, error) {
	if role != core.RoleAdmin && role != core.RoleConsumer {
		return "", nil, core.ValidationError("role must be %q or %q", core.RoleAdmin, core.RoleConsumer)
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, err
	}
	token := hex.EncodeToString(raw)

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return "", nil, err
	}

	key := &core.ApiKey{
		ID:        uuid.New().String(),
		KeyPrefix: token[:keyPrefixLen],
		KeyHash:   string(hash),
		Role:      role,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.keys.Create(key); err != nil {
		return "", nil, err
	}
	return token, key, nil
}

// Validate resolves a presented key to its role. An absent or unrecognized
// key fails closed with an auth error.
func (s *AuthService) Validate(presented string) (string, error) {
	if len(presented) < keyPrefixLen {
		return "", core.AuthError("missing or invalid api key")
	}
	candidates, err := s.keys.GetByPrefix(presented[:keyPrefixLen])
	if err != nil {
		return "", err
	}
	for _, k := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(presented)) == nil {
			return k.Role, nil
		}
	}
	return "", core.AuthError("missing or invalid api key")
}

// ValidateAdmin additionally requires the admin role.
func (s *AuthService) ValidateAdmin(presented string) error {
	role, err := s.Validate(presented)
	if err != nil {
		return err
	}
	if role != core.RoleAdmin {
		return core.AuthError("admin only")
	}
	return nil
}
