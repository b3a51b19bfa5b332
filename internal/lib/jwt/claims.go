package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnknownRole роль в токене не из списка известных
var ErrUnknownRole = errors.New("unknown role")

// CustomClaims данные вызывающего сервиса в токене.
type CustomClaims struct {
	Caller string `json:"caller"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin true для токенов административного интерфейса
func (c *CustomClaims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

// GenerateToken создает токен для caller с ролью role.
func (j *MakerImpl) GenerateToken(caller, role string) (string, error) {
	const op = "jwt.GenerateToken"
	if role != RoleService && role != RoleAdmin {
		return "", fmt.Errorf("%s: %w: %q", op, ErrUnknownRole, role)
	}
	now := time.Now()
	claims := CustomClaims{
		Caller: caller,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   caller,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.tokenTTL)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secretKey))
}

// ParseToken проверяет подпись и срок действия токена и возвращает его claims.
func (j *MakerImpl) ParseToken(tokenStr string) (*CustomClaims, error) {
	const op = "jwt.ParseToken"
	token, err := jwt.ParseWithClaims(tokenStr, &CustomClaims{}, func(_ *jwt.Token) (any, error) {
		return []byte(j.secretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	claims, ok := token.Claims.(*CustomClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("%s: invalid token", op)
	}
	if claims.Role != RoleService && claims.Role != RoleAdmin {
		return nil, fmt.Errorf("%s: %w", op, ErrUnknownRole)
	}
	return claims, nil
}
