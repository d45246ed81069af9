// Package pipeline wires aggregation, composition and rendering into the
// operations served over HTTP and the command line.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ehr/medletter/internal/consultation"
	"github.com/ehr/medletter/internal/letter"
	"github.com/ehr/medletter/internal/letter/compose"
	"github.com/ehr/medletter/internal/letter/render"
	"github.com/ehr/medletter/internal/platform/archive"
)

// ErrArchiveDisabled is returned by archive operations when no store is
// configured.
var ErrArchiveDisabled = errors.New("letter archive is not configured")

// Aggregator assembles canonical letters. *aggregate.Aggregator satisfies it.
type Aggregator interface {
	Aggregate(ctx context.Context, consultationID uuid.UUID) (*letter.CanonicalLetter, error)
	AggregateDraft(ctx context.Context, draft *consultation.Record) (*letter.CanonicalLetter, error)
}

// Recorder receives the duration and outcome of pipeline operations.
// *telemetry.Provider satisfies it.
type Recorder interface {
	ObserveLetter(operation, outcome string, d time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveLetter(string, string, time.Duration) {}

// Document is a rendered letter.
type Document struct {
	FileName string
	Content  []byte
}

// Service runs the letter pipeline. It holds no per-request state.
type Service struct {
	agg      Aggregator
	renderer *render.Renderer
	store    archive.Store
	metrics  Recorder
	logger   zerolog.Logger
}

// NewService creates a Service. store may be nil to disable archiving.
func NewService(agg Aggregator, renderer *render.Renderer, store archive.Store, logger zerolog.Logger) *Service {
	return &Service{
		agg:      agg,
		renderer: renderer,
		store:    store,
		metrics:  nopRecorder{},
		logger:   logger.With().Str("component", "letter_pipeline").Logger(),
	}
}

// Instrument reports every PDF, preview and archive operation to r.
func (s *Service) Instrument(r Recorder) {
	if r == nil {
		r = nopRecorder{}
	}
	s.metrics = r
}

func (s *Service) observe(operation string, start time.Time, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, letter.ErrCancelled):
		outcome = "cancelled"
	case err != nil:
		outcome = "error"
	}
	s.metrics.ObserveLetter(operation, outcome, time.Since(start))
}

// Letter assembles the canonical letter of a stored consultation.
func (s *Service) Letter(ctx context.Context, id uuid.UUID) (*letter.CanonicalLetter, error) {
	return s.agg.Aggregate(ctx, id)
}

// DraftLetter assembles a letter from unsaved consultation data.
func (s *Service) DraftLetter(ctx context.Context, rec *consultation.Record) (*letter.CanonicalLetter, error) {
	return s.agg.AggregateDraft(ctx, rec)
}

// Compose assembles and composes a stored consultation's letter.
func (s *Service) Compose(ctx context.Context, id uuid.UUID) (compose.Document, error) {
	l, err := s.Letter(ctx, id)
	if err != nil {
		return compose.Document{}, err
	}
	return compose.Compose(l), nil
}

// PDF renders the letter of a stored consultation.
func (s *Service) PDF(ctx context.Context, id uuid.UUID) (doc *Document, err error) {
	defer func(start time.Time) { s.observe("pdf", start, err) }(time.Now())
	l, err := s.Letter(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.renderPDF(ctx, l)
}

// DraftPDF renders a letter from unsaved consultation data.
func (s *Service) DraftPDF(ctx context.Context, rec *consultation.Record) (doc *Document, err error) {
	defer func(start time.Time) { s.observe("draft_pdf", start, err) }(time.Now())
	l, err := s.DraftLetter(ctx, rec)
	if err != nil {
		return nil, err
	}
	return s.renderPDF(ctx, l)
}

func (s *Service) renderPDF(ctx context.Context, l *letter.CanonicalLetter) (*Document, error) {
	doc := compose.Compose(l)
	start := time.Now()
	out, err := s.renderer.Render(doc)
	if err != nil {
		s.logger.Error().Err(err).Str("consultation_id", l.ConsultationID.String()).Msg("render failed")
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", letter.ErrCancelled, err)
	}
	s.logger.Debug().
		Str("consultation_id", l.ConsultationID.String()).
		Int("sections", len(doc.Sections)).
		Int("bytes", len(out)).
		Dur("elapsed", time.Since(start)).
		Msg("letter rendered")
	return &Document{FileName: doc.FileName, Content: out}, nil
}

// PagePreview renders page (1-based) of a stored consultation's letter as a
// PNG scaled to width pixels.
func (s *Service) PagePreview(ctx context.Context, id uuid.UUID, page, width int) (img []byte, err error) {
	defer func(start time.Time) { s.observe("preview", start, err) }(time.Now())
	doc, err := s.Compose(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.renderer.RenderPNG(doc, page, width)
}

// PageCount reports how many pages the letter of a stored consultation has.
func (s *Service) PageCount(ctx context.Context, id uuid.UUID) (int, error) {
	doc, err := s.Compose(ctx, id)
	if err != nil {
		return 0, err
	}
	return s.renderer.PageCount(doc)
}

// Save renders the letter of a stored consultation and archives the PDF.
func (s *Service) Save(ctx context.Context, id uuid.UUID) (meta *archive.Metadata, err error) {
	if s.store == nil {
		return nil, ErrArchiveDisabled
	}
	defer func(start time.Time) { s.observe("archive", start, err) }(time.Now())
	l, err := s.Letter(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := s.renderPDF(ctx, l)
	if err != nil {
		return nil, err
	}
	// CreatedAt is left to the store clock; IssuedAt repeats across versions.
	meta, err = s.store.Put(ctx, archive.Metadata{
		ConsultationID: l.ConsultationID,
		FileName:       doc.FileName,
	}, doc.Content)
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("consultation_id", id.String()).
		Str("key", meta.Key).
		Str("sha256", meta.Hash).
		Msg("letter archived")
	return meta, nil
}

// Archived returns a previously archived letter.
func (s *Service) Archived(ctx context.Context, key string) ([]byte, *archive.Metadata, error) {
	if s.store == nil {
		return nil, nil, ErrArchiveDisabled
	}
	return s.store.Get(ctx, key)
}

// ArchivedFor lists the letters archived for a consultation.
func (s *Service) ArchivedFor(ctx context.Context, id uuid.UUID) ([]*archive.Metadata, error) {
	if s.store == nil {
		return nil, ErrArchiveDisabled
	}
	return s.store.List(ctx, id)
}
