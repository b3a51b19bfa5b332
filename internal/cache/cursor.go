package cache

import (
	"context"
	"errors"
	"fmt"
)

// CursorKey ключ общего счетчика ротации серверов
const CursorKey = "selector:cursor"

// Cursor общий для всех реплик счетчик выборов сервера.
// Хранится в redis, поэтому переживает рестарт процесса
type Cursor struct {
	cache *Cache
	key   string
}

func NewCursor(c *Cache) *Cursor {
	return &Cursor{cache: c, key: CursorKey}
}

// Advance атомарно сдвигает счетчик и возвращает индекс (cursor+1) mod n.
// Пустой ключ считается нулевым курсором
func (c *Cursor) Advance(ctx context.Context, n int) (int, error) {
	const op = "cache.Cursor.Advance"
	if n <= 0 {
		return 0, fmt.Errorf("%s: %w", op, errors.New("empty server list"))
	}
	v, err := c.cache.Db.Incr(ctx, c.key).Result()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return int(v % int64(n)), nil
}
