package repository

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

// DefaultOfflineQueue carries registration bundles captured without connectivity
const DefaultOfflineQueue = "asha.registrations.offline"

// OfflineRegistrationHandler replays offline bundles through the registration service.
// Bundles that fail validation or the workflow are dropped; store failures are requeued.
type OfflineRegistrationHandler struct {
	service ports.RegistrationService
	logger  *zap.Logger
}

var _ MessageHandler = (*OfflineRegistrationHandler)(nil)

func NewOfflineRegistrationHandler(service ports.RegistrationService, logger *zap.Logger) *OfflineRegistrationHandler {
	return &OfflineRegistrationHandler{service: service, logger: logger}
}

func (h *OfflineRegistrationHandler) Handle(ctx context.Context, body []byte) Outcome {
	var bundle domain.RegistrationBundle
	if err := json.Unmarshal(body, &bundle); err != nil {
		h.logger.Warn("invalid registration bundle", zap.Error(err))
		return OutcomeReject
	}
	if bundle.BundleID == "" || bundle.WorkerID == "" {
		h.logger.Warn("registration bundle missing bundle_id or worker_id",
			zap.String("bundle_id", bundle.BundleID))
		return OutcomeReject
	}

	log := h.logger.With(
		zap.String("bundle_id", bundle.BundleID),
		zap.String("worker_id", bundle.WorkerID),
		zap.Int("members", len(bundle.Members)),
	)
	log.Info("received registration bundle")

	result, err := h.service.SubmitBundle(ctx, &bundle)
	if err != nil {
		var verr *domain.ValidationError
		switch {
		case errors.As(err, &verr), errors.Is(err, domain.ErrInvalidTransition):
			log.Warn("registration bundle rejected", zap.Error(err))
			return OutcomeReject
		default:
			log.Error("registration bundle failed, requeueing", zap.Error(err))
			return OutcomeRequeue
		}
	}

	log.Info("registration bundle stored",
		zap.String("family_id", result.FamilyID),
		zap.Int("referrals", result.Referrals))
	return OutcomeAck
}

// ReferralBroadcaster fans referral events out to connected supervisors
type ReferralBroadcaster interface {
	BroadcastReferral(event *domain.ReferralEvent)
}

// ReferralFeedHandler forwards queued referral events to a broadcaster
type ReferralFeedHandler struct {
	broadcaster ReferralBroadcaster
	logger      *zap.Logger
}

var _ MessageHandler = (*ReferralFeedHandler)(nil)

func NewReferralFeedHandler(b ReferralBroadcaster, logger *zap.Logger) *ReferralFeedHandler {
	return &ReferralFeedHandler{broadcaster: b, logger: logger}
}

func (h *ReferralFeedHandler) Handle(_ context.Context, body []byte) Outcome {
	var event domain.ReferralEvent
	if err := json.Unmarshal(body, &event); err != nil {
		h.logger.Warn("invalid referral event", zap.Error(err))
		return OutcomeReject
	}
	if !event.Validate() {
		h.logger.Warn("referral event failed validation", zap.String("referral_id", event.ID.String()))
		return OutcomeReject
	}
	h.broadcaster.BroadcastReferral(&event)
	h.logger.Info("referral forwarded",
		zap.String("referral_id", event.ID.String()),
		zap.String("village", event.Village),
		zap.Int("priority", event.Priority))
	return OutcomeAck
}
