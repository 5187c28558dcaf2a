// Package scriptdb persists revealed script pre-images so that nested hash
// commitments can be re-resolved later without the spending data at hand.
// Every stored script is indexed under both of its commitment hashes, the
// hash160 used by P2SH outputs and the sha256 used by version 0 witness
// programs.
package scriptdb

import (
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightninglabs/neutrino/cache/lru"
	"go.etcd.io/bbolt"
)

const (
	// dbFilePermission is the file mode of a newly created store.
	dbFilePermission = 0600

	// defaultCacheSize is the total byte size of pre-images kept in
	// memory in front of the database.
	defaultCacheSize = 1 << 20
)

var (
	hash160BucketName = []byte("hash160")
	sha256BucketName  = []byte("sha256")
)

// cachedScript wraps a pre-image for the LRU cache, sized by its byte
// length.
type cachedScript struct {
	script []byte
}

func (c *cachedScript) Size() (uint64, error) {
	return uint64(len(c.script)), nil
}

// Store is a bolt-backed pre-image store. It is safe for concurrent use;
// both bolt and the cache carry their own synchronization.
type Store struct {
	db    *bbolt.DB
	cache *lru.Cache[string, *cachedScript]
}

// Open opens the store at the given path, creating it if needed.
func Open(path string, timeout time.Duration) (*Store, error) {
	db, err := bbolt.Open(path, dbFilePermission, &bbolt.Options{
		Timeout: timeout,
	})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(
			hash160BucketName); err != nil {

			return err
		}
		_, err := tx.CreateBucketIfNotExists(sha256BucketName)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create pre-image "+
			"buckets: %w", err)
	}

	return &Store{
		db:    db,
		cache: lru.NewCache[string, *cachedScript](defaultCacheSize),
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Put stores a revealed script under both of its commitment hashes. The
// hashes are recomputed from the script on every insert, so the store can
// never hold a pre-image filed under a commitment it does not match.
func (s *Store) Put(script []byte) error {
	scriptHash := btcutil.Hash160(script)
	witnessHash := chainhash.HashB(script)

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(hash160BucketName).Put(
			scriptHash, script); err != nil {

			return err
		}
		return tx.Bucket(sha256BucketName).Put(witnessHash, script)
	})
	if err != nil {
		return err
	}

	log.Debugf("stored pre-image for script hash %x / witness "+
		"program %x", scriptHash, witnessHash)
	return nil
}

// fetch reads a pre-image from the given bucket, going through the LRU
// cache first.
func (s *Store) fetch(bucketName, hash []byte) ([]byte, bool) {
	cacheKey := string(bucketName) + string(hash)

	cached, err := s.cache.Get(cacheKey)
	if err == nil && cached != nil {
		return cached.script, true
	}

	var script []byte
	dbErr := s.db.View(func(tx *bbolt.Tx) error {
		value := tx.Bucket(bucketName).Get(hash)
		if value != nil {
			script = make([]byte, len(value))
			copy(script, value)
		}
		return nil
	})
	if dbErr != nil {
		log.Errorf("failed to read pre-image for %x: %v", hash, dbErr)
		return nil, false
	}
	if script == nil {
		return nil, false
	}

	_, _ = s.cache.Put(cacheKey, &cachedScript{script: script})

	return script, true
}

// Script returns the script whose hash160 equals scriptHash, if stored.
// Together with WitnessScript this makes the store usable as a pre-image
// source for lock script resolution.
func (s *Store) Script(scriptHash [20]byte) ([]byte, bool) {
	return s.fetch(hash160BucketName, scriptHash[:])
}

// WitnessScript returns the script whose sha256 equals witnessScriptHash,
// if stored.
func (s *Store) WitnessScript(witnessScriptHash [32]byte) ([]byte, bool) {
	return s.fetch(sha256BucketName, witnessScriptHash[:])
}
