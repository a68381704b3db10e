package devkit

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"
)

const bucketEntries = "entries"

// ErrStoreClosed is returned by operations on a closed LogStore.
var ErrStoreClosed = errors.New("devkit: log store closed")

// Entry is one stored devkit message.
type Entry struct {
	Seq    uint64          `json:"-"`
	Time   time.Time       `json:"time"`
	Device int             `json:"device"`
	Cmd    Command         `json:"cmd"`
	Data   json.RawMessage `json:"data,omitempty"`
}

// Message returns the entry as the message it was received as.
func (e Entry) Message() Message {
	return Message{Cmd: e.Cmd, Data: e.Data}
}

// LogStore persists devkit messages in a bbolt database, keyed by a
// monotonically increasing sequence number.
type LogStore struct {
	db *bolt.DB
}

// OpenLogStore opens or creates the store at path, creating parent
// directories as needed.
func OpenLogStore(path string) (*LogStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("devkit: create log store dir: %w", err)
	}
	db, err := bolt.Open(path, 0o644, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("devkit: open log store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketEntries))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("devkit: init log store: %w", err)
	}
	return &LogStore{db: db}, nil
}

// Path returns the database file path.
func (s *LogStore) Path() string {
	return s.db.Path()
}

// Append stores e and sets its sequence number.
func (s *LogStore) Append(e *Entry) error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketEntries))
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		v, err := json.Marshal(e)
		if err != nil {
			return err
		}
		if err := b.Put(marshalSeq(seq), v); err != nil {
			return err
		}
		e.Seq = seq
		return nil
	})
	return storeErr(err)
}

// Iterate calls f for every entry with a sequence number of at least from,
// in order, until f returns false.
func (s *LogStore) Iterate(from uint64, f func(Entry) bool) error {
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketEntries)).Cursor()
		for k, v := c.Seek(marshalSeq(from)); k != nil; k, v = c.Next() {
			e, err := unmarshalEntry(k, v)
			if err != nil {
				return err
			}
			if !f(e) {
				return nil
			}
		}
		return nil
	})
	return storeErr(err)
}

// Tail returns the last n entries, oldest first.
func (s *LogStore) Tail(n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	entries := make([]Entry, 0, n)
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(bucketEntries)).Cursor()
		for k, v := c.Last(); k != nil && len(entries) < n; k, v = c.Prev() {
			e, err := unmarshalEntry(k, v)
			if err != nil {
				return err
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

// Count returns the number of stored entries.
func (s *LogStore) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket([]byte(bucketEntries)).Stats().KeyN
		return nil
	})
	return n, storeErr(err)
}

// Clear removes every entry. Sequence numbers keep increasing.
func (s *LogStore) Clear() error {
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketEntries))
		seq := b.Sequence()
		if err := tx.DeleteBucket([]byte(bucketEntries)); err != nil {
			return err
		}
		nb, err := tx.CreateBucket([]byte(bucketEntries))
		if err != nil {
			return err
		}
		return nb.SetSequence(seq)
	})
	return storeErr(err)
}

// Close closes the database.
func (s *LogStore) Close() error {
	return s.db.Close()
}

func storeErr(err error) error {
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return ErrStoreClosed
	}
	return err
}

func unmarshalEntry(k, v []byte) (Entry, error) {
	var e Entry
	if err := json.Unmarshal(v, &e); err != nil {
		return Entry{}, fmt.Errorf("devkit: corrupt entry %d: %w", unmarshalSeq(k), err)
	}
	e.Seq = unmarshalSeq(k)
	return e, nil
}

func marshalSeq(seq uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, seq)
	return b
}

func unmarshalSeq(key []byte) uint64 {
	return binary.BigEndian.Uint64(key)
}
