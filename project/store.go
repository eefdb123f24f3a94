package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

var ErrNotExist = errors.New("project does not exist")

// Store is the persistence surface consumed by the sync engine.
type Store interface {
	Get(id ID) (*Project, error)
	List() ([]Project, error)
	Upsert(p *Project) error
	Update(req UpdateRequest) error
	Delete(id ID) error
}

const bucketProjects = "projects"

// BoltStore persists projects in a bbolt database, one JSON record per
// project keyed by the binary form of its id. A BoltStore is safe for
// concurrent use; writes are serialised by bbolt's single update
// transaction.
type BoltStore struct {
	db *bbolt.DB
}

// NewBoltStore opens (creating if needed) the store database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("unable to open store db err:%w", err)
	}

	if err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketProjects))
		return err
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("unable to create store bucket err:%w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}

func (s *BoltStore) Get(id ID) (*Project, error) {
	key, err := id.MarshalBinary()
	if err != nil {
		return nil, err
	}

	var p *Project
	err = s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(bucketProjects)).Get(key)
		if v == nil {
			return ErrNotExist
		}

		var rec Project
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("unable to decode project record err:%w", err)
		}
		p = &rec
		return nil
	})
	return p, err
}

func (s *BoltStore) List() ([]Project, error) {
	var out []Project

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketProjects)).ForEach(func(k, v []byte) error {
			var rec Project
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("unable to decode project record err:%w", err)
			}
			out = append(out, rec)
			return nil
		})
	})
	return out, err
}

// Upsert writes the full project record, preserving CreatedAt and the
// existing PushState when the caller did not set one.
func (s *BoltStore) Upsert(p *Project) error {
	if p.ID.IsNil() {
		return errors.New("project id is required")
	}

	key, err := p.ID.MarshalBinary()
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketProjects))

		rec := *p
		now := time.Now().UTC()
		rec.UpdatedAt = now
		rec.CreatedAt = now

		if v := bucket.Get(key); v != nil {
			var old Project
			if err := json.Unmarshal(v, &old); err != nil {
				return fmt.Errorf("unable to decode project record err:%w", err)
			}
			rec.CreatedAt = old.CreatedAt
			if rec.PushState == nil {
				rec.PushState = old.PushState
			}
		}

		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}

// Update applies a partial update. The read-modify-write happens inside a
// single transaction so the stored record is replaced atomically.
func (s *BoltStore) Update(req UpdateRequest) error {
	key, err := req.ID.MarshalBinary()
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketProjects))

		v := bucket.Get(key)
		if v == nil {
			return ErrNotExist
		}

		var rec Project
		if err := json.Unmarshal(v, &rec); err != nil {
			return fmt.Errorf("unable to decode project record err:%w", err)
		}

		if req.RepoPath != nil {
			rec.RepoPath = *req.RepoPath
		}
		if req.CodeGitURL != nil {
			rec.CodeGitURL = *req.CodeGitURL
		}
		if req.SyncEnabled != nil {
			rec.SyncEnabled = *req.SyncEnabled
		}
		if req.PushState != nil {
			state := *req.PushState
			rec.PushState = &state
		}
		rec.UpdatedAt = time.Now().UTC()

		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return bucket.Put(key, data)
	})
}

func (s *BoltStore) Delete(id ID) error {
	key, err := id.MarshalBinary()
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(bucketProjects)).Delete(key)
	})
}
