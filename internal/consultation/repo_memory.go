package consultation

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Bundle is a consultation together with everything its collaborators would
// return for it. It is the on-disk format read by LoadDir.
type Bundle struct {
	Consultation              Record                                      `json:"consultation"`
	RecommendedLabs           []LabOrder                                  `json:"recommended_labs,omitempty"`
	PerformedLabs             []LabResultPanel                            `json:"performed_labs,omitempty"`
	RecommendedInvestigations map[InvestigationKind][]InvestigationOrder  `json:"recommended_investigations,omitempty"`
	PerformedInvestigations   map[InvestigationKind][]InvestigationResult `json:"performed_investigations,omitempty"`
}

// MemoryStore serves bundles from memory. It backs the offline CLI commands
// and DATA_DIR deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	bundles map[uuid.UUID]*Bundle
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bundles: make(map[uuid.UUID]*Bundle)}
}

// LoadDir reads every *.json bundle in dir.
func LoadDir(dir string) (*MemoryStore, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read data directory %s: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	s := NewMemoryStore()
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read bundle %s: %w", name, err)
		}
		var b Bundle
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, fmt.Errorf("decode bundle %s: %w", name, err)
		}
		if b.Consultation.ID == uuid.Nil {
			return nil, fmt.Errorf("bundle %s: consultation id is required", name)
		}
		s.Put(b)
	}
	return s, nil
}

// Put stores a copy of b, replacing any bundle with the same consultation id.
func (s *MemoryStore) Put(b Bundle) {
	s.mu.Lock()
	s.bundles[b.Consultation.ID] = &b
	s.mu.Unlock()
}

// Len returns the number of stored consultations.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.bundles)
}

func (s *MemoryStore) get(id uuid.UUID) (*Bundle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bundles[id]
	return b, ok
}

// Consultations exposes the store as a ConsultationRepository.
func (s *MemoryStore) Consultations() ConsultationRepository { return memConsultations{s} }

// Labs exposes the store as a LabRepository.
func (s *MemoryStore) Labs() LabRepository { return memLabs{s} }

// Investigations exposes the store as an InvestigationRepository.
func (s *MemoryStore) Investigations() InvestigationRepository { return memInvestigations{s} }

type memConsultations struct{ s *MemoryStore }

func (m memConsultations) GetByID(_ context.Context, id uuid.UUID) (*Record, error) {
	b, ok := m.s.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	rec := b.Consultation
	return &rec, nil
}

type memLabs struct{ s *MemoryStore }

func (m memLabs) ListRecommended(_ context.Context, id uuid.UUID) ([]LabOrder, error) {
	b, ok := m.s.get(id)
	if !ok {
		return nil, nil
	}
	return append([]LabOrder(nil), b.RecommendedLabs...), nil
}

func (m memLabs) ListPerformed(_ context.Context, id uuid.UUID) ([]LabResultPanel, error) {
	b, ok := m.s.get(id)
	if !ok {
		return nil, nil
	}
	return append([]LabResultPanel(nil), b.PerformedLabs...), nil
}

type memInvestigations struct{ s *MemoryStore }

func (m memInvestigations) ListRecommended(_ context.Context, kind InvestigationKind, id uuid.UUID) ([]InvestigationOrder, error) {
	b, ok := m.s.get(id)
	if !ok {
		return nil, nil
	}
	return append([]InvestigationOrder(nil), b.RecommendedInvestigations[kind]...), nil
}

func (m memInvestigations) ListPerformed(_ context.Context, kind InvestigationKind, id uuid.UUID) ([]InvestigationResult, error) {
	b, ok := m.s.get(id)
	if !ok {
		return nil, nil
	}
	return append([]InvestigationResult(nil), b.PerformedInvestigations[kind]...), nil
}
