package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// KeyStore reads provider credentials. The routing engine only lists keys;
// administration of the rows happens elsewhere.
type KeyStore struct {
	pool *pgxpool.Pool
}

func NewKeyStore(pool *pgxpool.Pool) *KeyStore {
	return &KeyStore{pool: pool}
}

// ListByGroupAndType returns the keys of a credential group ordered by
// creation id, which fixes the rotation order.
func (s *KeyStore) ListByGroupAndType(ctx context.Context, group, typ string) ([]ProviderKey, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, group_name, key_type, api_key, created_at
		 FROM provider_keys
		 WHERE group_name = $1 AND key_type = $2
		 ORDER BY id ASC`,
		group, typ)
	if err != nil {
		return nil, fmt.Errorf("list provider keys: %w", err)
	}
	defer rows.Close()

	var keys []ProviderKey
	for rows.Next() {
		var k ProviderKey
		if err := rows.Scan(&k.ID, &k.GroupName, &k.Type, &k.APIKey, &k.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan provider key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}
