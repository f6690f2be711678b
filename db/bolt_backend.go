package db

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/callummance/marshal/guildmodels"
	bolt "go.etcd.io/bbolt"
)

var policiesBucket = []byte("guild_policies")

//BoltBackend stores policies as JSON values in a single bolt bucket, keyed on guild ID
type BoltBackend struct {
	db *bolt.DB
}

//OpenBolt opens (or creates) the bolt database at path
func OpenBolt(path string) (*BoltBackend, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create directory for bolt database: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database %v: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(policiesBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create policies bucket: %w", err)
	}
	return &BoltBackend{db: db}, nil
}

func (b *BoltBackend) LoadPolicies(_ context.Context) ([]*guildmodels.GuildPolicy, error) {
	var policies []*guildmodels.GuildPolicy
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(policiesBucket)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(k, v []byte) error {
			var p guildmodels.GuildPolicy
			if err := json.Unmarshal(v, &p); err != nil {
				return fmt.Errorf("failed to decode policy %s: %w", k, err)
			}
			if p.GuildID == "" {
				p.GuildID = string(k)
			}
			policies = append(policies, &p)
			return nil
		})
	})
	return policies, err
}

//SavePolicy puts the encoded policy in a single transaction, so readers see either the old or new value
func (b *BoltBackend) SavePolicy(_ context.Context, policy *guildmodels.GuildPolicy) error {
	raw, err := json.Marshal(policy)
	if err != nil {
		return fmt.Errorf("failed to encode policy: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(policiesBucket)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(policy.GuildID), raw)
	})
}

func (b *BoltBackend) Close() error {
	return b.db.Close()
}
