// Package jwt выпускает и проверяет сервисные JWT-токены, которыми
// фронтенды (бот, админка) подписывают запросы к HTTP API.
package jwt

import (
	"time"
)

// Роли вызывающей стороны
const (
	RoleService = "service"
	RoleAdmin   = "admin"
)

// Maker описывает интерфейс для генерации и парсинга токенов.
type Maker interface {
	GenerateToken(caller, role string) (string, error)
	ParseToken(tokenStr string) (*CustomClaims, error)
}

// MakerImpl подписывает токены секретным ключом HS256 и выдает их на tokenTTL.
type MakerImpl struct {
	secretKey string
	tokenTTL  time.Duration
}

// NewJWTMaker создаёт MakerImpl на основе секретного ключа и TTL.
func NewJWTMaker(secretKey string, ttl time.Duration) *MakerImpl {
	return &MakerImpl{
		secretKey: secretKey,
		tokenTTL:  ttl,
	}
}
