// Package intake accepts lead submissions: it enforces external id
// uniqueness, persists the raw payload, and answers with the follow-up links
// for the lead's funnel stage.
package intake

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/NonStopMan/vamo-heatos/internal/funnel"
	"github.com/NonStopMan/vamo-heatos/internal/metrics"
	"github.com/NonStopMan/vamo-heatos/internal/model"
	"github.com/NonStopMan/vamo-heatos/internal/store"
)

// ErrConflict is returned when a lead with the same external id already exists.
var ErrConflict = eris.New("lead already exists")

// Links are the follow-up URLs returned to the submitter.
type Links struct {
	DataAcquisition    string `yaml:"data_acquisition" mapstructure:"data_acquisition"`
	AppointmentBooking string `yaml:"appointment_booking" mapstructure:"appointment_booking"`
}

// DefaultLinks returns the production follow-up URLs.
func DefaultLinks() Links {
	return Links{
		DataAcquisition:    "https://www.vamo-energy.com/rechner",
		AppointmentBooking: "https://www.vamo-energy.com/termin",
	}
}

// Service creates leads.
type Service struct {
	store   store.Store
	links   Links
	metrics *metrics.Metrics
	log     *zap.Logger
}

// NewService creates an intake Service. m may be nil.
func NewService(st store.Store, links Links, m *metrics.Metrics) *Service {
	return &Service{
		store:   st,
		links:   links,
		metrics: m,
		log:     zap.L().With(zap.String("component", "intake")),
	}
}

// CreateLead persists a validated submission and returns its funnel stage with
// the matching follow-up link. raw is stored verbatim; payload is its decoded
// form.
func (s *Service) CreateLead(ctx context.Context, payload *model.LeadPayload, raw []byte, reqCtx *model.RequestContext) (*model.CreationResult, error) {
	externalID := payload.ExternalID()

	if externalID != nil {
		existing, err := s.store.FindByExternalID(ctx, *externalID)
		if err != nil {
			return nil, eris.Wrap(err, "intake: check external id")
		}
		if existing != nil {
			s.log.Info("rejected duplicate lead", zap.String("external_id", *externalID))
			return nil, ErrConflict
		}
	}

	lead, err := s.store.CreateLead(ctx, externalID, raw, reqCtx)
	if errors.Is(err, store.ErrDuplicateExternalID) {
		s.log.Info("rejected duplicate lead on insert", zap.Stringp("external_id", externalID))
		return nil, ErrConflict
	}
	if err != nil {
		return nil, eris.Wrap(err, "intake: persist lead")
	}

	stage := funnel.Classify(payload)
	s.metrics.LeadCreated(string(stage))

	fields := []zap.Field{
		zap.String("lead_id", lead.ID),
		zap.String("stage", string(stage)),
	}
	if externalID != nil {
		fields = append(fields, zap.String("external_id", *externalID))
	}
	if reqCtx != nil && reqCtx.RequestID != "" {
		fields = append(fields, zap.String("request_id", reqCtx.RequestID))
	}
	s.log.Info("lead created", fields...)
	if stage != model.StageSelling {
		s.log.Debug("lead below selling stage",
			zap.String("lead_id", lead.ID),
			zap.Strings("missing_discovery", funnel.MissingDiscovery(payload)),
			zap.Strings("missing_selling", funnel.MissingSelling(payload)),
		)
	}

	return s.result(stage), nil
}

func (s *Service) result(stage model.Stage) *model.CreationResult {
	if stage == model.StageSelling {
		booking := s.links.AppointmentBooking
		return &model.CreationResult{LeadStage: stage, AppointmentBookingLink: &booking}
	}
	acquisition := s.links.DataAcquisition
	return &model.CreationResult{LeadStage: stage, DataAcquisitionLink: &acquisition}
}
