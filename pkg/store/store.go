package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/go-go-golems/parley/pkg/conversation"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

var ErrNotFound = errors.New("snapshot not found")

var snapshotsBucket = []byte("snapshots")

// Store persists conversation snapshots under opaque ids.
type Store interface {
	Save(ctx context.Context, snapshot conversation.Snapshot) (string, error)
	Load(ctx context.Context, id string) (*conversation.Snapshot, error)
	Close() error
}

// BoltStore keeps snapshots as JSON values in a single bbolt file.
type BoltStore struct {
	db  *bolt.DB
	now func() time.Time
}

var _ Store = (*BoltStore)(nil)

func OpenBoltStore(path string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "could not open %s", path)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(snapshotsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	log.Debug().Str("path", path).Msg("opened snapshot store")
	return &BoltStore{db: db, now: time.Now}, nil
}

// Save stores snapshot under a new id and returns it. ID and CreatedAt of
// the argument are ignored.
func (s *BoltStore) Save(ctx context.Context, snapshot conversation.Snapshot) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	snapshot.ID = uuid.NewString()
	snapshot.CreatedAt = s.now().UTC()
	if snapshot.History == nil {
		snapshot.History = []string{}
	}
	if snapshot.Agents == nil {
		snapshot.Agents = []conversation.Agent{}
	}

	enc, err := json.Marshal(snapshot)
	if err != nil {
		return "", err
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(snapshotsBucket).Put([]byte(snapshot.ID), enc)
	})
	if err != nil {
		return "", errors.Wrap(err, "could not save snapshot")
	}
	return snapshot.ID, nil
}

func (s *BoltStore) Load(ctx context.Context, id string) (*conversation.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var ret *conversation.Snapshot
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(snapshotsBucket).Get([]byte(id))
		if v == nil {
			return errors.Wrap(ErrNotFound, id)
		}
		ret = &conversation.Snapshot{}
		return json.Unmarshal(v, ret)
	})
	if err != nil {
		return nil, err
	}
	return ret, nil
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
