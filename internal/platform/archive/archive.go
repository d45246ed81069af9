// Package archive stores issued letter PDFs. It defines the Store interface,
// an in-memory implementation for development and tests, and a MinIO backed
// implementation for deployments.
package archive

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNotFound   = errors.New("archived letter not found")
	ErrEmpty      = errors.New("letter content is empty")
	ErrInvalidKey = errors.New("invalid archive key")
	ErrExists     = errors.New("archive key already in use")
)

// ContentTypePDF is the content type of every archived letter.
const ContentTypePDF = "application/pdf"

// Metadata describes an archived letter.
type Metadata struct {
	Key            string    `json:"key"`
	ConsultationID uuid.UUID `json:"consultation_id"`
	FileName       string    `json:"file_name"`
	ContentType    string    `json:"content_type"`
	Size           int64     `json:"size"`
	Hash           string    `json:"hash"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store is the contract for letter archive backends.
type Store interface {
	Put(ctx context.Context, meta Metadata, content []byte) (*Metadata, error)
	Get(ctx context.Context, key string) ([]byte, *Metadata, error)
	Stat(ctx context.Context, key string) (*Metadata, error)
	List(ctx context.Context, consultationID uuid.UUID) ([]*Metadata, error)
}

const stampLayout = "20060102150405"

// Key is the object key of one archived version of a letter:
// letters/<consultation-id>/<yyyymmddhhmmss>-<version>.pdf. The version id
// keeps letters archived within the same second apart.
func Key(consultationID uuid.UUID, t time.Time, version uuid.UUID) string {
	return prefix(consultationID) + t.UTC().Format(stampLayout) + "-" + version.String() + ".pdf"
}

func prefix(consultationID uuid.UUID) string {
	return "letters/" + consultationID.String() + "/"
}

// ValidKey reports whether key has the shape produced by Key.
func ValidKey(key string) bool {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "letters" {
		return false
	}
	if _, err := uuid.Parse(parts[1]); err != nil {
		return false
	}
	name, ok := strings.CutSuffix(parts[2], ".pdf")
	if !ok {
		return false
	}
	stamp, version, ok := strings.Cut(name, "-")
	if !ok {
		return false
	}
	if _, err := uuid.Parse(version); err != nil {
		return false
	}
	_, err := time.Parse(stampLayout, stamp)
	return err == nil
}

// prepare fills the derived metadata fields for content.
func prepare(meta Metadata, content []byte, now time.Time) (Metadata, error) {
	if len(content) == 0 {
		return meta, ErrEmpty
	}
	if meta.ConsultationID == uuid.Nil {
		return meta, fmt.Errorf("%w: missing consultation id", ErrInvalidKey)
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.CreatedAt = meta.CreatedAt.UTC().Truncate(time.Second)
	meta.Key = Key(meta.ConsultationID, meta.CreatedAt, uuid.New())
	meta.ContentType = ContentTypePDF
	meta.Size = int64(len(content))
	meta.Hash = fmt.Sprintf("%x", sha256.Sum256(content))
	return meta, nil
}

type storedLetter struct {
	metadata Metadata
	content  []byte
}

// MemoryStore is a thread-safe, in-memory Store.
type MemoryStore struct {
	mu      sync.RWMutex
	letters map[string]*storedLetter
	now     func() time.Time
}

// NewMemoryStore returns a ready-to-use MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		letters: make(map[string]*storedLetter),
		now:     time.Now,
	}
}

// Put stores a copy of content under the key derived from meta.
func (s *MemoryStore) Put(_ context.Context, meta Metadata, content []byte) (*Metadata, error) {
	meta, err := prepare(meta, content, s.now())
	if err != nil {
		return nil, err
	}
	data := make([]byte, len(content))
	copy(data, content)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.letters[meta.Key]; ok {
		return nil, fmt.Errorf("%w: %s already archived", ErrExists, meta.Key)
	}
	s.letters[meta.Key] = &storedLetter{metadata: meta, content: data}

	out := meta
	return &out, nil
}

// Get returns the content and metadata stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, *Metadata, error) {
	s.mu.RLock()
	l, ok := s.letters[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrNotFound
	}
	data := make([]byte, len(l.content))
	copy(data, l.content)
	meta := l.metadata
	return data, &meta, nil
}

// Stat returns the metadata stored under key.
func (s *MemoryStore) Stat(_ context.Context, key string) (*Metadata, error) {
	s.mu.RLock()
	l, ok := s.letters[key]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	meta := l.metadata
	return &meta, nil
}

// List returns every letter archived for a consultation, oldest first.
func (s *MemoryStore) List(_ context.Context, consultationID uuid.UUID) ([]*Metadata, error) {
	p := prefix(consultationID)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []*Metadata{}
	for key, l := range s.letters {
		if !strings.HasPrefix(key, p) {
			continue
		}
		m := l.metadata
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Key < out[j].Key
	})
	return out, nil
}
