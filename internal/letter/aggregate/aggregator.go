// Package aggregate assembles a CanonicalLetter from a consultation record
// and its independent collaborator read models.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ehr/medletter/internal/consultation"
	"github.com/ehr/medletter/internal/letter"
)

// Sources are the read-only collaborators the aggregator depends on.
type Sources struct {
	Consultations  consultation.ConsultationRepository
	Labs           consultation.LabRepository
	Investigations consultation.InvestigationRepository
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the clock used for the issue date of letters whose
// record carries none.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// WithFetchTimeout bounds every collaborator sub-fetch. Zero disables it.
func WithFetchTimeout(d time.Duration) Option {
	return func(a *Aggregator) { a.fetchTimeout = d }
}

// WithConcurrency limits how many sub-fetches run at once.
func WithConcurrency(n int) Option {
	return func(a *Aggregator) { a.concurrency = n }
}

// Aggregator builds letters. It holds no per-request state and is safe for
// concurrent use.
type Aggregator struct {
	src          Sources
	clinic       letter.ClinicIdentity
	logger       zerolog.Logger
	now          func() time.Time
	fetchTimeout time.Duration
	concurrency  int
}

// New returns an Aggregator reading from src. clinic is copied into every
// letter.
func New(src Sources, clinic letter.ClinicIdentity, logger zerolog.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		src:         src,
		clinic:      clinic,
		logger:      logger.With().Str("component", "letter_aggregator").Logger(),
		now:         time.Now,
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate loads the consultation and builds its letter. A missing
// consultation yields letter.ErrNotFound; any other load failure an
// *letter.AggregationError. Failed sub-fetches degrade to empty lists.
func (a *Aggregator) Aggregate(ctx context.Context, consultationID uuid.UUID) (*letter.CanonicalLetter, error) {
	rec, err := a.src.Consultations.GetByID(ctx, consultationID)
	switch {
	case errors.Is(err, consultation.ErrNotFound):
		return nil, fmt.Errorf("%w: %s", letter.ErrNotFound, consultationID)
	case err != nil && ctx.Err() != nil:
		return nil, fmt.Errorf("%w: %w", letter.ErrCancelled, ctx.Err())
	case err != nil:
		return nil, &letter.AggregationError{
			ConsultationID: consultationID.String(),
			Reason:         "load consultation",
			Err:            err,
		}
	case rec == nil:
		return nil, fmt.Errorf("%w: %s", letter.ErrNotFound, consultationID)
	}
	return a.build(ctx, rec)
}

// AggregateDraft builds a letter from an unsaved consultation. Collaborator
// data is fetched by the draft's id; a draft without an id has none.
func (a *Aggregator) AggregateDraft(ctx context.Context, draft *consultation.Record) (*letter.CanonicalLetter, error) {
	if draft == nil {
		return nil, &letter.AggregationError{ConsultationID: uuid.Nil.String(), Reason: "draft consultation is nil"}
	}
	rec := *draft
	return a.build(ctx, &rec)
}

func (a *Aggregator) build(ctx context.Context, rec *consultation.Record) (*letter.CanonicalLetter, error) {
	log := a.logger.With().Str("consultation_id", rec.ID.String()).Logger()

	l, issues := a.fromRecord(rec)
	for _, is := range issues {
		log.Warn().Str("field", is.Field).Str("reason", is.Reason).Msg("consultation data quality issue")
	}

	var f fetched
	if rec.ID != uuid.Nil {
		a.fanOut(ctx, log, rec.ID, &f)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", letter.ErrCancelled, err)
	}

	f.mergeInto(l)
	return l, nil
}

// fetched has one slot per sub-fetch. Each slot is written by exactly one
// goroutine and read only after all of them have finished.
type fetched struct {
	recommendedLabs []consultation.LabOrder
	performedLabs   []consultation.LabResultPanel
	recommended     [3][]consultation.InvestigationOrder
	performed       [3][]consultation.InvestigationResult
}

type subFetch struct {
	source string
	run    func(ctx context.Context) error
}

func (a *Aggregator) subFetches(id uuid.UUID, f *fetched) []subFetch {
	fetches := []subFetch{
		{"recommended_labs", func(ctx context.Context) error {
			rows, err := a.src.Labs.ListRecommended(ctx, id)
			if err != nil {
				return err
			}
			f.recommendedLabs = rows
			return nil
		}},
		{"performed_labs", func(ctx context.Context) error {
			rows, err := a.src.Labs.ListPerformed(ctx, id)
			if err != nil {
				return err
			}
			f.performedLabs = rows
			return nil
		}},
	}
	for i, kind := range consultation.InvestigationKinds {
		i, kind := i, kind
		fetches = append(fetches,
			subFetch{"recommended_" + string(kind), func(ctx context.Context) error {
				rows, err := a.src.Investigations.ListRecommended(ctx, kind, id)
				if err != nil {
					return err
				}
				f.recommended[i] = rows
				return nil
			}},
			subFetch{"performed_" + string(kind), func(ctx context.Context) error {
				rows, err := a.src.Investigations.ListPerformed(ctx, kind, id)
				if err != nil {
					return err
				}
				f.performed[i] = rows
				return nil
			}},
		)
	}
	return fetches
}

// fanOut runs every sub-fetch concurrently. Failures never abort the group:
// each is logged and its slot reset to empty.
func (a *Aggregator) fanOut(ctx context.Context, log zerolog.Logger, id uuid.UUID, f *fetched) {
	var g errgroup.Group
	if a.concurrency > 0 {
		g.SetLimit(a.concurrency)
	}
	for _, sf := range a.subFetches(id, f) {
		sf := sf
		g.Go(func() error {
			if err := a.runIsolated(ctx, sf); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Warn().Err(err).Str("source", sf.source).Msg("sub-fetch failed; using empty result")
			}
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Aggregator) runIsolated(parent context.Context, sf subFetch) (err error) {
	ctx := parent
	if a.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, a.fetchTimeout)
		defer cancel()
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
		if err != nil {
			err = &letter.PartialDataError{Source: sf.source, Err: err}
		}
	}()
	if err := ctx.Err(); err != nil {
		return err
	}
	return sf.run(ctx)
}
