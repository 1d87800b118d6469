package jwt

import (
	"fmt"
	"time"

	"github.com/IlyasAtabaev731/sweet-shop/internal/domain/models"
	"github.com/golang-jwt/jwt/v4"
)

// Claims is the payload carried by a bearer token.
type Claims struct {
	UserID string      `json:"userId"`
	Role   models.Role `json:"role"`
	jwt.RegisteredClaims
}

type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
	parser *jwt.Parser
}

func New(secret string, ttl time.Duration) *Service {
	return &Service{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
		// expiry is checked in Verify against s.now
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithoutClaimsValidation(),
		),
	}
}

// WithClock replaces the clock used for issuing and verifying tokens.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) NewToken(userID string, role models.Role) (string, error) {
	now := s.now()

	claims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

// Verify checks signature, algorithm and expiry. Any failure yields (nil, false).
func (s *Service) Verify(tokenString string) (*Claims, bool) {
	var claims Claims

	token, err := s.parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	if !claims.VerifyExpiresAt(s.now(), true) {
		return nil, false
	}
	if claims.UserID == "" {
		return nil, false
	}
	if _, err := models.ParseRole(string(claims.Role)); err != nil {
		return nil, false
	}

	return &claims, true
}
