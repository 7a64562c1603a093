package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"

	"github.com/kbukum/flowkit/component"
	apperrors "github.com/kbukum/flowkit/errors"
	"github.com/kbukum/flowkit/logger"
	"github.com/kbukum/flowkit/stream"
)

const componentName = "user-store"

var (
	userPrefix = []byte("user/")
	// userUpper is the first key after every user key.
	userUpper = []byte("user0")
	probeKey  = []byte("meta/probe")
)

// User is a cached user record.
type User struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Avatar string `json:"avatar"`
}

// Config selects where the cache lives.
type Config struct {
	// Dir is the database directory. Ignored when InMemory is set.
	Dir string `yaml:"dir" mapstructure:"dir" validate:"required_if=InMemory false"`
	// InMemory keeps the database in memory.
	InMemory bool `yaml:"in_memory" mapstructure:"in_memory"`
}

// Store is the user cache. It is also a component: Start opens the
// database and Stop closes it.
type Store struct {
	cfg Config
	db  *component.Lazy[*pebble.DB]
	log *logger.Logger
}

// New returns a store that opens its database on first use.
func New(cfg Config) *Store {
	s := &Store{cfg: cfg, log: logger.Get("demo.store")}
	s.db = component.NewLazy(componentName, s.open, (*pebble.DB).Close)
	return s
}

// Open returns a store with its database already open.
func Open(cfg Config) (*Store, error) {
	s := New(cfg)
	if _, err := s.db.Get(context.Background()); err != nil {
		return nil, apperrors.DatabaseError(err)
	}
	return s, nil
}

func (s *Store) open(context.Context) (*pebble.DB, error) {
	opts := &pebble.Options{}
	dir := s.cfg.Dir
	if s.cfg.InMemory {
		opts.FS = vfs.NewMem()
		dir = "users"
	}
	if dir == "" {
		return nil, errors.New("store: Dir is required unless InMemory is set")
	}
	return pebble.Open(dir, opts)
}

// Users emits every cached user once, in key order.
func (s *Store) Users() *stream.Source[[]User] {
	return stream.FromFunc(func(ctx context.Context) ([]User, error) {
		db, err := s.db.Get(ctx)
		if err != nil {
			return nil, apperrors.DatabaseError(err)
		}
		users, err := readUsers(db)
		if err != nil {
			return nil, apperrors.DatabaseError(err)
		}
		return users, nil
	}).Named("store.users")
}

// InsertAll writes users in one batch and emits how many were written.
// Existing records with the same ID are replaced.
func (s *Store) InsertAll(users []User) *stream.Source[int] {
	return stream.FromFunc(func(ctx context.Context) (int, error) {
		db, err := s.db.Get(ctx)
		if err != nil {
			return 0, apperrors.DatabaseError(err)
		}
		b := db.NewBatch()
		defer b.Close()
		for _, u := range users {
			value, err := json.Marshal(u)
			if err != nil {
				return 0, apperrors.Internal(err)
			}
			if err := b.Set(userKey(u.ID), value, nil); err != nil {
				return 0, apperrors.DatabaseError(err)
			}
		}
		if err := b.Commit(pebble.Sync); err != nil {
			return 0, apperrors.DatabaseError(err)
		}
		s.log.Debug("Users cached", logger.Fields("count", len(users)))
		return len(users), nil
	}).Named("store.insert-all")
}

func readUsers(db *pebble.DB) ([]User, error) {
	iter, err := db.NewIter(&pebble.IterOptions{LowerBound: userPrefix, UpperBound: userUpper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var users []User
	for iter.First(); iter.Valid(); iter.Next() {
		var u User
		if err := json.Unmarshal(iter.Value(), &u); err != nil {
			return nil, fmt.Errorf("decode %s: %w", iter.Key(), err)
		}
		users = append(users, u)
	}
	return users, iter.Error()
}

func userKey(id string) []byte {
	return append(append([]byte(nil), userPrefix...), id...)
}

// Name implements component.Component.
func (s *Store) Name() string { return componentName }

// Start opens the database.
func (s *Store) Start(ctx context.Context) error {
	if _, err := s.db.Get(ctx); err != nil {
		return apperrors.DatabaseError(err)
	}
	s.log.Info("User store opened", logger.Fields("in_memory", s.cfg.InMemory, "dir", s.cfg.Dir))
	return nil
}

// Stop closes the database.
func (s *Store) Stop(context.Context) error {
	return s.db.Close()
}

// Health reads a probe key to check the database answers.
func (s *Store) Health(ctx context.Context) component.Health {
	return s.db.Health(ctx, func(_ context.Context, db *pebble.DB) error {
		_, closer, err := db.Get(probeKey)
		if errors.Is(err, pebble.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return closer.Close()
	})
}

// Describe implements component.Describable.
func (s *Store) Describe() component.Description {
	details := "dir=" + s.cfg.Dir
	if s.cfg.InMemory {
		details = "in-memory"
	}
	return component.Description{Name: "User Store", Type: "store", Details: "pebble " + details}
}
