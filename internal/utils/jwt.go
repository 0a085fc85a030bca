package utils

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// telegramNamespace derives stable actor ids from Telegram user ids.
var telegramNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://t.me/skillswap"))

// JWTService issues and validates HS256 identity tokens carrying user_id.
type JWTService struct {
	secretKey []byte
	ttl       time.Duration
	now       func() time.Time
}

func NewJWTService(secretKey string, ttl time.Duration) *JWTService {
	return &JWTService{secretKey: []byte(secretKey), ttl: ttl, now: time.Now}
}

// GenerateToken creates a token for actorID.
func (s *JWTService) GenerateToken(actorID string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id": actorID,
		"iat":     now.Unix(),
		"exp":     now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secretKey)
}

// ValidateToken checks the signature, the algorithm and the expiry.
func (s *JWTService) ValidateToken(tokenString string) (*jwt.Token, error) {
	return jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secretKey, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(s.now))
}

// ExtractUserID validates the token and returns its user_id claim.
func (s *JWTService) ExtractUserID(tokenString string) (string, error) {
	token, err := s.ValidateToken(tokenString)
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", errors.New("unexpected claims type")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", errors.New("token has no user_id")
	}
	return userID, nil
}

// TelegramActorID maps a Telegram user id to an actor id.
func TelegramActorID(telegramUserID int64) string {
	return uuid.NewSHA1(telegramNamespace, fmt.Appendf(nil, "%d", telegramUserID)).String()
}
