package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/planexec/planexec/pkg/exec"
)

// LookupCache is a durable exec.StateCache: Query/Set read and write the
// lookups table, while subscription bookkeeping (which Lookup expressions
// want to hear about a fresh value) stays in memory, matching the split the
// teacher's in-process MemoryStateCache makes between value storage and
// listener fan-out.
type LookupCache struct {
	store *Store

	mu   sync.Mutex
	subs map[string][]exec.ChangeListener
}

// NewLookupCache wraps an already-migrated Store as an exec.StateCache.
func NewLookupCache(s *Store) *LookupCache {
	return &LookupCache{
		store: s,
		subs:  make(map[string][]exec.ChangeListener),
	}
}

func argsKey(name string, args []exec.Value) (string, string) {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.String()
	}
	joined := name + "\x1f" + strings.Join(parts, "\x1f")
	sum := sha256.Sum256([]byte(joined))
	return joined, hex.EncodeToString(sum[:])
}

// Query resolves (name, args) from the lookups table, returning UNKNOWN if
// no row has ever been written for that key.
func (c *LookupCache) Query(ctx context.Context, name string, args []exec.Value) (exec.Value, error) {
	argsStr, hash := argsKey(name, args)

	var kind, value string
	row := c.store.db.QueryRowContext(ctx,
		`SELECT value_kind, value FROM lookups WHERE name = ? AND args_hash = ?`, name, hash)
	if err := row.Scan(&kind, &value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return exec.Unknown(), nil
		}
		return exec.Unknown(), fmt.Errorf("store: query lookup %s: %w", name, err)
	}

	_ = argsStr
	return decodeValue(kind, value)
}

// Set installs a new value for (name, args), persists it, and notifies every
// subscriber — the durable equivalent of MemoryStateCache.Set.
func (c *LookupCache) Set(ctx context.Context, name string, args []exec.Value, v exec.Value) error {
	argsStr, hash := argsKey(name, args)
	kind, value, err := encodeValue(v)
	if err != nil {
		return fmt.Errorf("store: encode lookup %s: %w", name, err)
	}

	_, err = c.store.db.ExecContext(ctx, `
		INSERT INTO lookups (name, args_hash, args, value_kind, value, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(name, args_hash) DO UPDATE SET
			value_kind = excluded.value_kind,
			value = excluded.value,
			updated_at = excluded.updated_at
	`, name, hash, argsStr, kind, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("store: set lookup %s: %w", name, err)
	}

	c.mu.Lock()
	listeners := make([]exec.ChangeListener, len(c.subs[hash]))
	copy(listeners, c.subs[hash])
	c.mu.Unlock()

	for _, l := range listeners {
		l.NotifyChanged()
	}

	return nil
}

// Subscribe registers l to be notified when (name, args) next changes.
func (c *LookupCache) Subscribe(name string, args []exec.Value, l exec.ChangeListener) {
	_, hash := argsKey(name, args)
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.subs[hash] {
		if existing == l {
			return
		}
	}
	c.subs[hash] = append(c.subs[hash], l)
}

// Unsubscribe removes l from the (name, args) subscription.
func (c *LookupCache) Unsubscribe(name string, args []exec.Value, l exec.ChangeListener) {
	_, hash := argsKey(name, args)
	c.mu.Lock()
	defer c.mu.Unlock()
	listeners := c.subs[hash]
	for i, existing := range listeners {
		if existing == l {
			c.subs[hash] = append(listeners[:i], listeners[i+1:]...)
			return
		}
	}
}

func encodeValue(v exec.Value) (kind, value string, err error) {
	switch v.Kind() {
	case exec.KindBool:
		b, _ := v.Bool()
		return "bool", strconv.FormatBool(b), nil
	case exec.KindInt:
		i, _ := v.Int()
		return "int", strconv.FormatInt(i, 10), nil
	case exec.KindFloat:
		f, _ := v.Float()
		return "float", strconv.FormatFloat(f, 'g', -1, 64), nil
	case exec.KindString:
		s, _ := v.StrValue()
		return "string", s, nil
	default:
		return "", "", fmt.Errorf("unsupported value kind %v for durable storage", v.Kind())
	}
}

func decodeValue(kind, value string) (exec.Value, error) {
	switch kind {
	case "bool":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return exec.Unknown(), err
		}
		return exec.BoolValue(b), nil
	case "int":
		i, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return exec.Unknown(), err
		}
		return exec.IntValue(i), nil
	case "float":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return exec.Unknown(), err
		}
		return exec.FloatValue(f), nil
	case "string":
		return exec.StringValue(value), nil
	default:
		return exec.Unknown(), fmt.Errorf("unrecognized stored value kind %q", kind)
	}
}
