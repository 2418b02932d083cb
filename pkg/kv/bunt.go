package kv

import (
	"context"
	"time"

	"github.com/tidwall/buntdb"
)

type BuntStore struct {
	db *buntdb.DB
}

// OpenBunt opens a buntdb file; ":memory:" keeps everything in memory.
func OpenBunt(path string) (*BuntStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, err
	}
	return &BuntStore{db: db}, nil
}

func (s *BuntStore) Get(_ context.Context, key string) (string, error) {
	var v string
	err := s.db.View(func(tx *buntdb.Tx) error {
		var err error
		v, err = tx.Get(key)
		return err
	})
	if err == buntdb.ErrNotFound {
		return "", ErrNotFound
	}
	return v, err
}

func (s *BuntStore) Set(_ context.Context, key, value string, ttl time.Duration) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		var opts *buntdb.SetOptions
		if ttl > 0 {
			opts = &buntdb.SetOptions{Expires: true, TTL: ttl}
		}
		_, _, err := tx.Set(key, value, opts)
		return err
	})
}

func (s *BuntStore) Del(_ context.Context, key string) error {
	err := s.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
	if err == buntdb.ErrNotFound {
		return nil
	}
	return err
}

func (s *BuntStore) Take(_ context.Context, key string) (string, error) {
	var v string
	err := s.db.Update(func(tx *buntdb.Tx) error {
		var err error
		v, err = tx.Delete(key)
		return err
	})
	if err == buntdb.ErrNotFound {
		return "", ErrNotFound
	}
	return v, err
}

func (s *BuntStore) Close() error {
	return s.db.Close()
}
