// Package cache implements the local, persistent record of AniDB
// lookups this client has already made: known file identities,
// cached field values, and a negative cache of lookups that are known
// (for a while) not to exist — all backed by a single bbolt file, the
// same embedded-KV pattern the teacher uses for its own local-durable
// cache in front of a remote (backend/cache/storage_persistent.go).
package cache

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	bolt "go.etcd.io/bbolt"
)

// Bucket names. Four logical tables live in one bbolt file.
const (
	bucketIdentity = "identity" // "<ed2k>:<size>" -> fid
	bucketField    = "field"    // "f<fid>:<name>" -> json(fieldRecord)
	bucketNegative = "negative" // "<ed2k>:<size>" -> json(negativeRecord)
	bucketMeta     = "meta"     // schema/version bookkeeping
)

// FieldTTL is how long a cached field value is trusted before a fresh
// network lookup is preferred, matching the source's 300-day
// metadata expiration.
const FieldTTL = 300 * 24 * time.Hour

// NegativeExpiration is how long a negative-cache row is kept at all
// before it is purged outright, matching the source's 300-day
// anidb_file_negative_cache expiration.
const NegativeExpiration = 300 * 24 * time.Hour

// NegativeBackoffCap bounds how far the backoff on a negative record
// can push its next-retry time past the record's first failure.
const NegativeBackoffCap = 30 * 24 * time.Hour

// Store is a bbolt-backed cache of AniDB lookups.
type Store struct {
	db *bolt.DB
}

// Open connects to (creating if absent) the bbolt file at path and
// ensures all four buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "cache: open")
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketIdentity, bucketField, bucketNegative, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return errors.Wrapf(err, "cache: create bucket %s", name)
			}
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying bbolt file.
func (s *Store) Close() error {
	return s.db.Close()
}

func identityKey(ed2k string, size int64) []byte {
	return []byte(ed2k + ":" + formatInt(size))
}

func fieldKey(fid int64, name string) []byte {
	return []byte("f" + formatInt(fid) + ":" + name)
}

func formatInt(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// RecordIdentity remembers that the file identified by ed2k/size has
// the given file ID, so future lookups by hash can skip straight to
// field service without a network round trip.
func (s *Store) RecordIdentity(ed2k string, size int64, fid int64) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketIdentity))
		return b.Put(identityKey(ed2k, size), []byte(formatInt(fid)))
	})
}

// LookupFID returns the file ID previously recorded for ed2k/size, if
// any.
func (s *Store) LookupFID(ed2k string, size int64) (fid int64, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketIdentity))
		v := b.Get(identityKey(ed2k, size))
		if v == nil {
			return nil
		}
		ok = true
		fid = parseInt(string(v))
		return nil
	})
	return fid, ok, err
}

func parseInt(s string) int64 {
	var neg bool
	if len(s) > 0 && s[0] == '-' {
		neg = true
		s = s[1:]
	}
	var n int64
	for _, c := range s {
		n = n*10 + int64(c-'0')
	}
	if neg {
		n = -n
	}
	return n
}

// fieldRecord is the value stored for one cached field of one file.
type fieldRecord struct {
	Value    string    `json:"value"`
	CachedAt time.Time `json:"cached_at"`
}

// RecordFields stores a batch of field values for a file, all under
// the same transaction. Values are the raw (already-unescaped) wire
// strings; typed re-decoding happens on the read side, in the
// planner.
func (s *Store) RecordFields(fid int64, values map[string]string) error {
	now := time.Now()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketField))
		for name, v := range values {
			rec := fieldRecord{Value: v, CachedAt: now}
			data, err := json.Marshal(rec)
			if err != nil {
				return errors.Wrap(err, "cache: marshal field record")
			}
			if err := b.Put(fieldKey(fid, name), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// LookupFields returns whichever of names are cached and not expired
// for fid.
func (s *Store) LookupFields(fid int64, names []string) (map[string]string, error) {
	out := make(map[string]string)
	now := time.Now()
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketField))
		for _, name := range names {
			v := b.Get(fieldKey(fid, name))
			if v == nil {
				continue
			}
			var rec fieldRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return errors.Wrap(err, "cache: unmarshal field record")
			}
			if now.Sub(rec.CachedAt) > FieldTTL {
				continue
			}
			out[name] = rec.Value
		}
		return nil
	})
	return out, err
}

// negativeRecord is the value stored per ed2k/size in the negative
// cache: how many consecutive NO SUCH FILE responses have been seen,
// when the first one was, and until when a cache hit should be
// synthesized instead of re-querying the network.
type negativeRecord struct {
	FailureCount           int       `json:"failure_count"`
	FailedOn               time.Time `json:"failed_on"`
	SynthesizeFailureUntil time.Time `json:"synthesize_failure_until"`
	Expiration             time.Time `json:"expiration"`
}

// RecordNegative upserts a negative-cache row for ed2k/size,
// incrementing its failure count and advancing the synthesize-until
// time to min(firstFailure+NegativeBackoffCap, now+1h*failureCount) —
// the same backoff as the source's
// _inject_negative_cache_record_file_key_ed2k: it grows linearly, one
// hour per recorded failure, and never reaches past 30 days after
// this record's own first failure.
func (s *Store) RecordNegative(ed2k string, size int64) error {
	now := time.Now()
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketNegative))
		key := identityKey(ed2k, size)
		var rec negativeRecord
		if existing := b.Get(key); existing != nil {
			if err := json.Unmarshal(existing, &rec); err != nil {
				return errors.Wrap(err, "cache: unmarshal negative record")
			}
		} else {
			rec.FailedOn = now
		}
		rec.FailureCount++
		rec.Expiration = now.Add(NegativeExpiration)

		byCount := now.Add(time.Hour * time.Duration(rec.FailureCount))
		backoffCap := rec.FailedOn.Add(NegativeBackoffCap)
		if byCount.Before(backoffCap) {
			rec.SynthesizeFailureUntil = byCount
		} else {
			rec.SynthesizeFailureUntil = backoffCap
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return errors.Wrap(err, "cache: marshal negative record")
		}
		return b.Put(key, data)
	})
}

// CheckNegative reports whether ed2k/size should be treated as a
// known-absent file right now without going to the network. Expired
// rows are deleted lazily as they're encountered, per spec's
// lazy-expiry-on-read model.
func (s *Store) CheckNegative(ed2k string, size int64) (bool, error) {
	now := time.Now()
	var negative bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketNegative))
		key := identityKey(ed2k, size)
		v := b.Get(key)
		if v == nil {
			return nil
		}
		var rec negativeRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return errors.Wrap(err, "cache: unmarshal negative record")
		}
		if now.After(rec.Expiration) {
			return b.Delete(key)
		}
		negative = now.Before(rec.SynthesizeFailureUntil)
		return nil
	})
	return negative, err
}
