// Package boltstore keeps files in a local BoltDB database with the same
// compare-and-swap contract as the GitHub contents API, for running the
// service without a remote repository.
package boltstore

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/zeebo/blake3"

	"github.com/delta-silence/ticket-intake/internal/store"
)

const (
	bucketName    = "files"
	commitsBucket = "commits"
)

// Commit records one successful PutFile.
type Commit struct {
	Path        string    `json:"path"`
	Message     string    `json:"message"`
	SHA         string    `json:"sha"`
	CommittedAt time.Time `json:"committedAt"`
}

// Store wraps a BoltDB database keyed by file path.
type Store struct {
	db *bolt.DB
}

// New opens (or creates) the database at path and ensures the buckets exist.
func New(path string) (*Store, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketName, commitsBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close releases the database file lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Hash returns the version hash of content.
func Hash(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// GetFile returns the stored content and its hash. A missing path yields a
// 404 APIError, as the remote API does.
func (s *Store) GetFile(ctx context.Context, path string) (*store.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var content []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketName)).Get([]byte(path))
		if v == nil {
			return notFound(path)
		}
		content = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &store.File{Content: content, SHA: Hash(content)}, nil
}

// PutFile replaces path when expectedSHA matches the stored hash. An empty
// expectedSHA creates the file and fails if it already exists. The message is
// recorded in the commit log in the same transaction.
func (s *Store) PutFile(ctx context.Context, path string, content []byte, expectedSHA, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		current := b.Get([]byte(path))
		switch {
		case current == nil && expectedSHA != "":
			return notFound(path)
		case current != nil && expectedSHA == "":
			return conflict(fmt.Sprintf("%s already exists", path))
		case current != nil && Hash(current) != expectedSHA:
			return conflict(fmt.Sprintf("%s does not match %s", path, expectedSHA))
		}
		if err := b.Put([]byte(path), content); err != nil {
			return err
		}
		return appendCommit(tx, Commit{
			Path:        path,
			Message:     message,
			SHA:         Hash(content),
			CommittedAt: time.Now().UTC(),
		})
	})
}

// Commits returns the commit log for path, oldest first.
func (s *Store) Commits(path string) ([]Commit, error) {
	var commits []Commit
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(commitsBucket)).ForEach(func(_, v []byte) error {
			var c Commit
			if err := json.Unmarshal(v, &c); err != nil {
				return err
			}
			if c.Path == path {
				commits = append(commits, c)
			}
			return nil
		})
	})
	return commits, err
}

func appendCommit(tx *bolt.Tx, c Commit) error {
	b := tx.Bucket([]byte(commitsBucket))
	seq, err := b.NextSequence()
	if err != nil {
		return err
	}
	value, err := json.Marshal(c)
	if err != nil {
		return err
	}
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return b.Put(key, value)
}

// Ensure creates path with content unless it already exists.
func (s *Store) Ensure(path string, content []byte) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b.Get([]byte(path)) != nil {
			return nil
		}
		return b.Put([]byte(path), content)
	})
}

// Ping checks that the database is open.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("bolt store not configured")
	}
	return s.db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(bucketName)) == nil {
			return errors.New("bolt store bucket missing")
		}
		return nil
	})
}

func notFound(path string) error {
	return &store.APIError{
		StatusCode: http.StatusNotFound,
		Body:       fmt.Sprintf(`{"message":"Not Found","path":%q}`, path),
	}
}

func conflict(message string) error {
	return &store.APIError{
		StatusCode: http.StatusConflict,
		Body:       fmt.Sprintf(`{"message":%q}`, message),
	}
}
