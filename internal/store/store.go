package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/eigerco/isel/internal/encoding"
	"github.com/eigerco/isel/pkg/db"
	"github.com/eigerco/isel/pkg/db/pebble"
	"github.com/eigerco/isel/pkg/log"
)

var (
	ErrConfigNotFound = errors.New("configuration not found")
	ErrTablesNotFound = errors.New("tables not found")
	ErrCorrupt        = errors.New("stored record is corrupt")
	ErrBadName        = errors.New("invalid configuration name")
	ErrStoreClosed    = errors.New("store is closed")
)

const configVersion byte = 1

// Config is a persisted target configuration.
type Config struct {
	Isa  string
	Mode string
	// Shared and Target are raw settings bytes as returned by settings.Flags.Bytes.
	Shared []byte
	Target []byte
	// Tables names a stored table blob. The zero digest selects the built-in tables.
	Tables Digest
}

// Store manages configurations and table blobs using a key-value store
type Store struct {
	db     db.KVStore
	closed atomic.Bool
}

func New(kv db.KVStore) *Store {
	return &Store{db: kv}
}

// PutTables stores the serialized tables under their digest. Storing the same tables twice is a
// no-op.
func (s *Store) PutTables(t *encoding.Tables) (Digest, error) {
	if s.closed.Load() {
		return Digest{}, ErrStoreClosed
	}
	blob, err := t.MarshalBinary()
	if err != nil {
		return Digest{}, fmt.Errorf("marshal tables: %w", err)
	}
	d := DigestOf(blob)
	key := makeKey(prefixTables, d[:])
	if ok, err := s.db.Has(key); err != nil {
		return Digest{}, fmt.Errorf("check tables: %w", err)
	} else if ok {
		return d, nil
	}
	if err := s.db.Put(key, blob); err != nil {
		return Digest{}, fmt.Errorf("store tables: %w", err)
	}
	log.Store.Debug().Str("digest", d.String()).Int("bytes", len(blob)).Msg("tables stored")
	return d, nil
}

// GetTables loads and decodes a blob. The content is checked against its digest; callers
// still validate the tables against their target before use.
func (s *Store) GetTables(d Digest) (*encoding.Tables, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	blob, err := s.db.Get(makeKey(prefixTables, d[:]))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, ErrTablesNotFound
		}
		return nil, fmt.Errorf("get tables: %w", err)
	}
	if DigestOf(blob) != d {
		return nil, fmt.Errorf("%w: tables %s", ErrCorrupt, d)
	}
	t, err := encoding.UnmarshalTables(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return t, nil
}

// PutConfig stores a configuration under name. When tables is not nil it is stored in the same
// batch and c.Tables is set to its digest.
func (s *Store) PutConfig(name string, c Config, tables *encoding.Tables) (Config, error) {
	if s.closed.Load() {
		return Config{}, ErrStoreClosed
	}
	if name == "" || len(name) > 255 {
		return Config{}, fmt.Errorf("%w: %q", ErrBadName, name)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if tables != nil {
		blob, err := tables.MarshalBinary()
		if err != nil {
			return Config{}, fmt.Errorf("marshal tables: %w", err)
		}
		c.Tables = DigestOf(blob)
		if err := batch.Put(makeKey(prefixTables, c.Tables[:]), blob); err != nil {
			return Config{}, fmt.Errorf("store tables: %w", err)
		}
	}
	if err := batch.Put(makeKey(prefixConfig, []byte(name)), marshalConfig(c)); err != nil {
		return Config{}, fmt.Errorf("store config: %w", err)
	}
	if err := batch.Commit(); err != nil {
		return Config{}, fmt.Errorf("commit batch: %w", err)
	}
	log.Store.Debug().Str("name", name).Str("isa", c.Isa).Str("mode", c.Mode).Msg("config stored")
	return c, nil
}

// GetConfig retrieves a configuration by name
func (s *Store) GetConfig(name string) (Config, error) {
	if s.closed.Load() {
		return Config{}, ErrStoreClosed
	}
	raw, err := s.db.Get(makeKey(prefixConfig, []byte(name)))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return Config{}, ErrConfigNotFound
		}
		return Config{}, fmt.Errorf("get config: %w", err)
	}
	c, err := unmarshalConfig(raw)
	if err != nil {
		return Config{}, fmt.Errorf("%w: config %s: %w", ErrCorrupt, name, err)
	}
	return c, nil
}

func (s *Store) DeleteConfig(name string) error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return s.db.Delete(makeKey(prefixConfig, []byte(name)))
}

// ListConfigs returns the stored configuration names in key order.
func (s *Store) ListConfigs() ([]string, error) {
	if s.closed.Load() {
		return nil, ErrStoreClosed
	}
	var names []string
	err := s.db.Scan([]byte{prefixConfig}, func(key, _ []byte) error {
		names = append(names, string(key[1:]))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list configs: %w", err)
	}
	return names, nil
}

// Close closes the store and its database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func marshalConfig(c Config) []byte {
	var w encoding.Writer
	w.WriteByte(configVersion)
	w.WriteString(c.Isa)
	w.WriteString(c.Mode)
	w.WriteString(string(c.Shared))
	w.WriteString(string(c.Target))
	w.Write(c.Tables[:])
	return w.Bytes()
}

func unmarshalConfig(raw []byte) (Config, error) {
	r := encoding.NewReader(bytes.NewReader(raw))
	version, err := r.ReadByte()
	if err != nil {
		return Config{}, err
	}
	if version != configVersion {
		return Config{}, fmt.Errorf("unsupported version %d", version)
	}
	var c Config
	fields := []*string{&c.Isa, &c.Mode}
	for _, f := range fields {
		if *f, err = r.ReadString(); err != nil {
			return Config{}, err
		}
	}
	for _, b := range []*[]byte{&c.Shared, &c.Target} {
		v, err := r.ReadString()
		if err != nil {
			return Config{}, err
		}
		*b = []byte(v)
	}
	if _, err := io.ReadFull(r, c.Tables[:]); err != nil {
		return Config{}, err
	}
	if r.Position() != int64(len(raw)) {
		return Config{}, fmt.Errorf("%d trailing bytes", int64(len(raw))-r.Position())
	}
	return c, nil
}
