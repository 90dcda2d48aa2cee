package monitoring

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/smukkama/water-quality-server/internal/alerting"
	"github.com/smukkama/water-quality-server/internal/database"
	"github.com/smukkama/water-quality-server/internal/quality"
	"github.com/smukkama/water-quality-server/internal/risk"
	"github.com/smukkama/water-quality-server/internal/simulator"
)

// Service accepts readings, evaluates them and serves the derived state
type Service struct {
	store           Store
	dispatcher      Dispatcher
	cache           Cache
	summaries       SummarySource
	alertSinks      []AlertSink
	readingSinks    []ReadingSink
	sampler         *simulator.Sampler
	confidence      risk.ConfidenceFunc
	defaultLocation string
	now             func() time.Time
	logger          *zap.Logger
}

// Option configures a Service
type Option func(*Service)

// WithCache puts a latest-state cache in front of the store
func WithCache(c Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithSummaries enables the hourly and daily rollup queries
func WithSummaries(src SummarySource) Option {
	return func(s *Service) { s.summaries = src }
}

func WithAlertSink(sink AlertSink) Option {
	return func(s *Service) { s.alertSinks = append(s.alertSinks, sink) }
}

func WithReadingSink(sink ReadingSink) Option {
	return func(s *Service) { s.readingSinks = append(s.readingSinks, sink) }
}

func WithSampler(sampler *simulator.Sampler) Option {
	return func(s *Service) { s.sampler = sampler }
}

func WithConfidence(f risk.ConfidenceFunc) Option {
	return func(s *Service) { s.confidence = f }
}

func WithDefaultLocation(location string) Option {
	return func(s *Service) {
		if location != "" {
			s.defaultLocation = location
		}
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a service. A nil dispatcher means readings are
// persisted but never evaluated automatically.
func NewService(store Store, dispatcher Dispatcher, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:           store,
		dispatcher:      dispatcher,
		defaultLocation: DefaultLocation,
		now:             time.Now,
		logger:          logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.sampler == nil {
		s.sampler = simulator.NewSampler(0)
	}
	if s.confidence == nil {
		s.confidence = risk.RandomConfidence(nil)
	}
	return s
}

// SubmitReading validates and persists a reading, then hands it off for
// evaluation. It returns as soon as the reading is stored; a failed
// hand-off is logged and does not fail the submission.
func (s *Service) SubmitReading(ctx context.Context, in ReadingInput) (uuid.UUID, error) {
	if err := in.Validate(); err != nil {
		return uuid.Nil, err
	}

	location := strings.TrimSpace(in.Location)
	if location == "" {
		location = s.defaultLocation
	}

	r := &database.Reading{
		ID:              uuid.New(),
		Timestamp:       s.now().UTC(),
		Location:        location,
		PH:              in.PH,
		Turbidity:       in.Turbidity,
		Temperature:     in.Temperature,
		DissolvedOxygen: in.DissolvedOxygen,
		TotalColiform:   in.TotalColiform,
		EColi:           in.EColi,
		Chlorine:        in.Chlorine,
	}

	log := s.logger.With(zap.String("reading_id", r.ID.String()), zap.String("location", location))
	log.Debug("Reading received")

	if err := s.store.InsertReading(ctx, r); err != nil {
		return uuid.Nil, fmt.Errorf("failed to persist reading: %w", err)
	}
	log.Debug("Reading persisted")

	if s.cache != nil {
		if err := s.cache.SetLatestReading(ctx, r); err != nil {
			log.Warn("Failed to update latest reading cache", zap.Error(err))
		}
	}

	for _, sink := range s.readingSinks {
		if err := sink.PublishReading(ctx, r); err != nil {
			log.Warn("Failed to publish reading", zap.Error(err))
		}
	}

	if s.dispatcher != nil {
		if err := s.dispatcher.Dispatch(ctx, r); err != nil {
			log.Error("Failed to dispatch evaluation", zap.Error(err))
		}
	}

	return r.ID, nil
}

// SubmitSimulatedReading submits a synthetic reading for location, or the
// default location when empty
func (s *Service) SubmitSimulatedReading(ctx context.Context, location string) (uuid.UUID, error) {
	in, err := FromData(s.sampler.Sample(location))
	if err != nil {
		return uuid.Nil, err
	}
	return s.SubmitReading(ctx, in)
}

// EvaluateReading classifies a stored reading, persists its alerts and its
// risk prediction, and raises the outbreak alert when overall risk is high.
// A reading that does not exist is silently ignored. A write failure stops
// the evaluation and leaves earlier writes in place.
func (s *Service) EvaluateReading(ctx context.Context, id uuid.UUID) error {
	r, err := s.store.GetReading(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to load reading %s: %w", id, err)
	}
	if r == nil {
		s.logger.Debug("Skipping evaluation of unknown reading", zap.String("reading_id", id.String()))
		return nil
	}

	log := s.logger.With(zap.String("reading_id", id.String()), zap.String("location", r.Location))

	report := quality.Evaluate(r)
	log.Debug("Reading evaluated",
		zap.String("overall_status", string(report.Worst())),
		zap.Strings("breaches", report.Breaches()))

	now := s.now().UTC()

	for _, draft := range alerting.Generate(r) {
		if err := s.persistAlert(ctx, r, draft, now); err != nil {
			return fmt.Errorf("%w: alerts: %v", ErrPartialEvaluation, err)
		}
	}
	log.Debug("Alerts persisted")

	prediction := risk.Score(r, s.confidence)
	prediction.ID = uuid.New()
	prediction.Timestamp = now
	if err := s.store.InsertPrediction(ctx, prediction); err != nil {
		return fmt.Errorf("%w: risk prediction: %v", ErrPartialEvaluation, err)
	}
	log.Debug("Risk prediction persisted", zap.String("overall_risk", string(prediction.OverallRisk)))

	if s.cache != nil {
		if err := s.cache.SetLatestPrediction(ctx, prediction); err != nil {
			log.Warn("Failed to update latest prediction cache", zap.Error(err))
		}
	}

	if prediction.OverallRisk == database.RiskHigh {
		if err := s.persistAlert(ctx, r, alerting.OutbreakAlert(), now); err != nil {
			return fmt.Errorf("%w: outbreak alert: %v", ErrPartialEvaluation, err)
		}
		log.Warn("Outbreak risk is high")
	}

	log.Debug("Evaluation done")
	return nil
}

func (s *Service) persistAlert(ctx context.Context, r *database.Reading, a *database.Alert, at time.Time) error {
	readingID := r.ID
	a.ID = uuid.New()
	a.ReadingID = &readingID
	a.Timestamp = at

	if err := s.store.InsertAlert(ctx, a); err != nil {
		return err
	}

	for _, sink := range s.alertSinks {
		if err := sink.PublishAlert(ctx, a, r.Location); err != nil {
			s.logger.Warn("Failed to publish alert",
				zap.String("alert_id", a.ID.String()),
				zap.Error(err))
		}
	}
	return nil
}

// AcknowledgeAlert marks an alert as handled. Repeating it is harmless.
func (s *Service) AcknowledgeAlert(ctx context.Context, id uuid.UUID) error {
	if err := s.store.AcknowledgeAlert(ctx, id, s.now().UTC()); err != nil {
		return err
	}
	s.logger.Info("Alert acknowledged", zap.String("alert_id", id.String()))
	return nil
}
