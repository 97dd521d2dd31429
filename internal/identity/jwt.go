package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"pledgeit/internal/identity/models"
	"pledgeit/internal/platform/middleware"
	dErrors "pledgeit/pkg/domain-errors"
)

// Claims are the JWT claims carried by issued bearer tokens.
type Claims struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// JWTService issues and validates bearer tokens.
type JWTService struct {
	signingKey []byte
	tokenTTL   time.Duration
}

func NewJWTService(signingKey string) *JWTService {
	return &JWTService{
		signingKey: []byte(signingKey),
		tokenTTL:   24 * time.Hour,
	}
}

// GenerateToken issues a signed token for the given identity.
func (s *JWTService) GenerateToken(userID uuid.UUID, role models.Role, name string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: userID.String(),
		Role:   string(role),
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "pledgeit",
			ID:        uuid.NewString(),
		},
	})
	return token.SignedString(s.signingKey)
}

// ValidateToken resolves a bearer token into middleware claims. It
// implements middleware.TokenValidator.
func (s *JWTService) ValidateToken(tokenString string) (*middleware.Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "token has expired")
		}
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
	return &middleware.Claims{
		UserID: claims.UserID,
		Role:   claims.Role,
		Name:   claims.Name,
	}, nil
}
