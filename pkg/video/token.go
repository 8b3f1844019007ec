package video

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/careflow-api/internal/model"
	apperrors "github.com/jwalitptl/careflow-api/pkg/errors"
)

// Config holds the signing material for call-channel tokens. An empty
// secret means video calling is not configured for this deployment.
type Config struct {
	AppID  string
	Secret string
}

// Issuer mints signed channel credentials for video consultations.
type Issuer struct {
	cfg Config
}

func NewIssuer(cfg Config) *Issuer {
	return &Issuer{cfg: cfg}
}

type channelClaims struct {
	jwt.RegisteredClaims
	Channel string `json:"channel"`
	Role    string `json:"role"`
}

// Issue signs a token scoped to one channel. A deployment without
// signing material gets a configuration error so callers can tell
// misconfiguration apart from transient failures.
func (i *Issuer) Issue(channelName, role string, ttl time.Duration) (model.VideoCredentials, error) {
	if i == nil || i.cfg.Secret == "" {
		return model.VideoCredentials{}, apperrors.NewConfiguration("video calling")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(ttl)
	claims := channelClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.cfg.AppID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Channel: channelName,
		Role:    role,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.Secret))
	if err != nil {
		return model.VideoCredentials{}, apperrors.NewUnexpected(err)
	}

	return model.VideoCredentials{
		ChannelName: channelName,
		Token:       token,
		ExpiresAt:   expiresAt,
	}, nil
}
