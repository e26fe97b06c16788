package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/doorman/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// Lookup implements ports.ScriptLookup over Redis. Each caller's script is a
// JSON payload stored under <prefix>script:<caller>.
type Lookup struct {
	client *backend.Client
	prefix string
}

// NewLookup creates a Lookup reading keys under prefix (DefaultPrefix if empty).
func NewLookup(client *backend.Client, prefix string) *Lookup {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Lookup{client: client, prefix: prefix}
}

func (l *Lookup) key(caller string) string {
	return l.prefix + "script:" + caller
}

// Lookup returns the script for caller or domain.ErrScriptNotFound.
func (l *Lookup) Lookup(ctx context.Context, caller string) (domain.Script, error) {
	val, err := l.client.Get(ctx, l.key(caller)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, domain.ErrScriptNotFound
		}
		return nil, fmt.Errorf("failed to get script from redis: %w", err)
	}
	return domain.ParseScript(val)
}

// Put stores script for caller.
func (l *Lookup) Put(ctx context.Context, caller string, script domain.Script) error {
	data, err := json.Marshal(script)
	if err != nil {
		return fmt.Errorf("failed to marshal script: %w", err)
	}
	return l.client.Set(ctx, l.key(caller), data, 0).Err()
}

// Callers lists callers that have a script, by scanning keys.
func (l *Lookup) Callers(ctx context.Context) ([]string, error) {
	var callers []string
	iter := l.client.Scan(ctx, 0, l.key("*"), 100).Iterator()
	for iter.Next(ctx) {
		callers = append(callers, strings.TrimPrefix(iter.Val(), l.key("")))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan scripts: %w", err)
	}
	sort.Strings(callers)
	return callers, nil
}
