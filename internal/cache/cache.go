// Package cache provides the file-backed key/value cache behind search
// results and derived assets. It is generational for search contexts
// (an entry is readable only while the caller's version stamp equals
// the stamp stored at write time) and TTL-based for derived-asset
// contexts; the version parameter serves both disciplines. Callers must
// stay consistent about which discipline a context uses.
//
// The cache is best-effort throughout: a damaged or unreadable entry is
// a miss, a failed write is ignored. Cache trouble never fails a
// request.
package cache

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/kimhsiao/refnexus/internal/logging"
)

// Store is a single-node, file-backed cache. One directory per context;
// one gzip-compressed JSON envelope per key. Contexts are independent:
// clearing one never affects another.
type Store struct {
	root string
	log  *logging.Logger
}

// envelope is the on-disk entry format.
type envelope struct {
	Version    string          `json:"version,omitempty"`
	WrittenAt  int64           `json:"written_at"`
	TTLSeconds int64           `json:"ttl_seconds,omitempty"`
	Payload    json.RawMessage `json:"payload"`
}

var safeName = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// New creates a Store rooted at dir.
func New(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &Store{root: dir, log: logging.Get()}, nil
}

// Get returns the payload stored under (context, key) if it is still
// valid for the caller's current version. A stamp mismatch, an elapsed
// TTL, and a missing or unreadable entry are all the same thing: a
// miss.
func (s *Store) Get(context, key, version string) ([]byte, bool) {
	path, ok := s.entryPath(context, key)
	if !ok {
		return nil, false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, false
	}

	gz, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false
	}
	raw, err := io.ReadAll(gz)
	if err != nil {
		return nil, false
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, false
	}

	if env.TTLSeconds > 0 {
		if time.Now().Unix()-env.WrittenAt > env.TTLSeconds {
			return nil, false
		}
	} else if env.Version != version {
		return nil, false
	}

	return env.Payload, true
}

// Set stores a generational entry: readable while the index version
// stamp stays equal to version. Write failures are logged and ignored.
func (s *Store) Set(context, key string, payload []byte, version string) {
	s.write(context, key, envelope{
		Version:   version,
		WrittenAt: time.Now().Unix(),
		Payload:   payload,
	})
}

// SetTTL stores a TTL entry: readable until ttl elapses, regardless of
// any version stamp.
func (s *Store) SetTTL(context, key string, payload []byte, ttl time.Duration) {
	s.write(context, key, envelope{
		WrittenAt:  time.Now().Unix(),
		TTLSeconds: int64(ttl.Seconds()),
		Payload:    payload,
	})
}

func (s *Store) write(context, key string, env envelope) {
	path, ok := s.entryPath(context, key)
	if !ok {
		return
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		s.log.Warn("cache write skipped", map[string]interface{}{"context": context, "error": err.Error()})
		return
	}

	raw, err := json.Marshal(env)
	if err != nil {
		return
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(raw); err != nil {
		return
	}
	if err := gz.Close(); err != nil {
		return
	}

	// atomic publish: write beside the target, then rename
	tmp, err := os.CreateTemp(filepath.Dir(path), ".cache-*")
	if err != nil {
		s.log.Warn("cache write skipped", map[string]interface{}{"context": context, "error": err.Error()})
		return
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		s.log.Warn("cache write skipped", map[string]interface{}{"context": context, "error": err.Error()})
	}
}

// Delete removes one entry. Missing entries are fine.
func (s *Store) Delete(context, key string) {
	if path, ok := s.entryPath(context, key); ok {
		os.Remove(path)
	}
}

// Clear removes every entry of one context. Other contexts are
// untouched.
func (s *Store) Clear(context string) {
	if !safeName.MatchString(context) {
		return
	}
	os.RemoveAll(filepath.Join(s.root, context))
}

func (s *Store) entryPath(context, key string) (string, bool) {
	if !safeName.MatchString(context) || !safeName.MatchString(key) {
		return "", false
	}
	return filepath.Join(s.root, context, key+".gz"), true
}
