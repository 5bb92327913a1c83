package handler

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/adapters/middleware"
	"github.com/umeed-health/asha-service/internal/adapters/websocket"
)

// ReferralFeed attaches an upgraded connection to the live referral stream
type ReferralFeed interface {
	Serve(w http.ResponseWriter, r *http.Request, sub websocket.Subscriber) error
}

// ReferralFeedHandler handles GET /ws/referrals for supervisors.
// Auth and role checks run in middleware before the upgrade.
type ReferralFeedHandler struct {
	feed   ReferralFeed
	logger *zap.Logger
}

func NewReferralFeedHandler(feed ReferralFeed, logger *zap.Logger) *ReferralFeedHandler {
	return &ReferralFeedHandler{feed: feed, logger: logger}
}

// Subscribe watches the village given in the query, else the supervisor's own village.
// "all" watches every village.
func (h *ReferralFeedHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id, ok := middleware.GetIdentity(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		return
	}
	village := id.Village
	if q := strings.TrimSpace(r.URL.Query().Get("village")); q != "" {
		village = q
	}
	if strings.EqualFold(village, "all") {
		village = ""
	}

	sub := websocket.Subscriber{UserID: id.WorkerID, Role: id.Role, Village: village}
	if err := h.feed.Serve(w, r, sub); err != nil {
		h.logger.Warn("referral feed subscription failed",
			zap.String("user_id", id.WorkerID),
			zap.Error(err))
	}
}
