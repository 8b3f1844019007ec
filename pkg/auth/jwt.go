package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jwalitptl/careflow-api/internal/model"
)

type Config struct {
	Secret   string
	Issuer   string
	TokenTTL time.Duration
}

// Claims carries the authenticated actor. Role comes from the identity
// directory at token issuance; the workflow core trusts it for routing
// but still re-checks entity-level ownership on every operation.
type Claims struct {
	jwt.RegisteredClaims
	ActorID uuid.UUID  `json:"actor_id"`
	Role    model.Role `json:"role"`
}

type Service struct {
	cfg Config
}

func NewService(cfg Config) *Service {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	return &Service{cfg: cfg}
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.cfg.TokenTTL
}

func (s *Service) GenerateToken(actor model.Actor) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			Subject:   actor.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TokenTTL)),
		},
		ActorID: actor.ID,
		Role:    actor.Role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

func (s *Service) ValidateToken(tokenString string) (model.Actor, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return model.Actor{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid || claims.ActorID == uuid.Nil {
		return model.Actor{}, fmt.Errorf("invalid token")
	}
	return model.Actor{ID: claims.ActorID, Role: claims.Role}, nil
}
