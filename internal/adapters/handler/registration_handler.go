package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/adapters/middleware"
	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

// RegistrationHandler handles HTTP requests for registration sessions
type RegistrationHandler struct {
	service ports.RegistrationService
	logger  *zap.Logger
}

func NewRegistrationHandler(service ports.RegistrationService, logger *zap.Logger) *RegistrationHandler {
	return &RegistrationHandler{service: service, logger: logger}
}

// Routes mounts the registration endpoints under the given router
func (h *RegistrationHandler) Routes(r chi.Router) {
	r.Post("/registrations", h.Start)
	r.Route("/registrations/{id}", func(r chi.Router) {
		r.Get("/", h.Get)
		r.Delete("/", h.Discard)
		r.Put("/family", h.SaveFamily)
		r.Post("/members", h.SaveMember)
		r.Put("/members/{index}", h.EditMember)
		r.Post("/members/next", h.AddAnotherMember)
		r.Post("/pregnancy-prompt", h.AnswerPregnancyPrompt)
		r.Put("/pregnancy", h.SavePregnancy)
		r.Patch("/pregnancy", h.UpdatePregnancyDraft)
		r.Put("/child", h.SaveChild)
		r.Patch("/child", h.UpdateChildDraft)
		r.Post("/submit", h.Submit)
	})
	r.Post("/assessments/preview", h.Preview)
}

// MemberBadge is the overview line of one saved member
type MemberBadge struct {
	Index    int              `json:"index"`
	Name     string           `json:"name"`
	Age      int              `json:"age"`
	Category domain.Category  `json:"category"`
	Level    domain.RiskLevel `json:"level"`
	Label    string           `json:"label"`
	Reasons  []string         `json:"reasons"`
	Priority int              `json:"priority"`
}

// SessionView is the registration as the worker sees it
type SessionView struct {
	ID      uuid.UUID            `json:"id"`
	State   domain.WorkflowState `json:"state"`
	Family  domain.Family        `json:"family"`
	Draft   *domain.Member       `json:"draft,omitempty"`
	Badges  []MemberBadge        `json:"badges"`
	Banner  *domain.Banner       `json:"banner,omitempty"`
	Updated time.Time            `json:"updated_at"`
}

func newSessionView(s *domain.Session) SessionView {
	v := SessionView{
		ID:      s.ID,
		State:   s.State,
		Family:  s.Family,
		Draft:   s.Draft,
		Badges:  make([]MemberBadge, 0, len(s.Family.Members)),
		Updated: s.UpdatedAt,
	}
	for i, m := range s.Family.Members {
		reasons := make([]string, len(m.Risk.Reasons))
		for j, r := range m.Risk.Reasons {
			reasons[j] = string(r)
		}
		v.Badges = append(v.Badges, MemberBadge{
			Index:    i,
			Name:     m.Name,
			Age:      m.Age,
			Category: m.Category,
			Level:    m.Risk.Level,
			Label:    m.Risk.Level.Label(),
			Reasons:  reasons,
			Priority: domain.MemberPriority(m),
		})
	}
	if s.Draft != nil {
		switch {
		case s.Draft.Pregnancy != nil:
			b := domain.PregnancyBanner(s.Draft.Pregnancy)
			v.Banner = &b
		case s.Draft.Child != nil:
			b := domain.ChildBanner(s.Draft.Child)
			v.Banner = &b
		}
	}
	return v
}

// sessionCall runs one operation on the session named in the path for the
// authenticated worker and writes the resulting view
func (h *RegistrationHandler) sessionCall(
	w http.ResponseWriter,
	r *http.Request,
	endpoint string,
	op func(id uuid.UUID, workerID string) (*domain.Session, error),
) {
	start := time.Now()
	reqID := requestID(r)
	status := http.StatusOK
	defer func() { logStructured(h.logger, reqID, r, endpoint, status, time.Since(start)) }()

	workerID, ok := middleware.GetWorkerID(r.Context())
	if !ok {
		status = http.StatusUnauthorized
		writeError(w, status, ErrorResponse{Error: "unauthorized", RequestID: reqID})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		status = http.StatusBadRequest
		writeError(w, status, ErrorResponse{Error: "invalid registration id", RequestID: reqID})
		return
	}

	sess, err := op(id, workerID)
	if err != nil {
		status = fail(h.logger, w, reqID, err)
		return
	}
	writeJSON(w, status, newSessionView(sess))
}

// Start handles POST /registrations
func (h *RegistrationHandler) Start(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestID(r)
	status := http.StatusCreated
	defer func() { logStructured(h.logger, reqID, r, "/registrations", status, time.Since(start)) }()

	workerID, ok := middleware.GetWorkerID(r.Context())
	if !ok {
		status = http.StatusUnauthorized
		writeError(w, status, ErrorResponse{Error: "unauthorized", RequestID: reqID})
		return
	}
	sess, err := h.service.Start(r.Context(), workerID)
	if err != nil {
		status = fail(h.logger, w, reqID, err)
		return
	}
	writeJSON(w, status, newSessionView(sess))
}

// Get handles GET /registrations/{id}
func (h *RegistrationHandler) Get(w http.ResponseWriter, r *http.Request) {
	h.sessionCall(w, r, "/registrations/{id}", func(id uuid.UUID, workerID string) (*domain.Session, error) {
		return h.service.Get(r.Context(), id, workerID)
	})
}

// SaveFamily handles PUT /registrations/{id}/family
func (h *RegistrationHandler) SaveFamily(w http.ResponseWriter, r *http.Request) {
	h.sessionCall(w, r, "/registrations/{id}/family", func(id uuid.UUID, workerID string) (*domain.Session, error) {
		var in domain.FamilyInput
		if err := decodeJSON(r, &in); err != nil {
			return nil, err
		}
		return h.service.SaveFamily(r.Context(), id, workerID, in)
	})
}

// SaveMember handles POST /registrations/{id}/members
func (h *RegistrationHandler) SaveMember(w http.ResponseWriter, r *http.Request) {
	h.sessionCall(w, r, "/registrations/{id}/members", func(id uuid.UUID, workerID string) (*domain.Session, error) {
		in, err := decodeMember(r)
		if err != nil {
			return nil, err
		}
		return h.service.SaveMember(r.Context(), id, workerID, in)
	})
}

// EditMember handles PUT /registrations/{id}/members/{index}
func (h *RegistrationHandler) EditMember(w http.ResponseWriter, r *http.Request) {
	h.sessionCall(w, r, "/registrations/{id}/members/{index}", func(id uuid.UUID, workerID string) (*domain.Session, error) {
		index, err := strconv.Atoi(chi.URLParam(r, "index"))
		if err != nil || index < 0 {
			return nil, domain.ErrMemberNotFound
		}
		in, err := decodeMember(r)
		if err != nil {
			return nil, err
		}
		return h.service.EditMember(r.Context(), id, workerID, index, in)
	})
}

// PregnancyPromptRequest answers "Is she currently pregnant?"
type PregnancyPromptRequest struct {
	Pregnant formValue `json:"pregnant"`
}

// AnswerPregnancyPrompt handles POST /registrations/{id}/pregnancy-prompt
func (h *RegistrationHandler) AnswerPregnancyPrompt(w http.ResponseWriter, r *http.Request) {
	h.sessionCall(w, r, "/registrations/{id}/pregnancy-prompt", func(id uuid.UUID, workerID string) (*domain.Session, error) {
		var req PregnancyPromptRequest
		if err := decodeJSON(r, &req); err != nil {
			return nil, err
		}
		return h.service.AnswerPregnancyPrompt(r.Context(), id, workerID, domain.ParseYesNo(string(req.Pregnant)))
	})
}

// SavePregnancy handles PUT /registrations/{id}/pregnancy
func (h *RegistrationHandler) SavePregnancy(w http.ResponseWriter, r *http.Request) {
	h.sessionCall(w, r, "/registrations/{id}/pregnancy", func(id uuid.UUID, workerID string) (*domain.Session, error) {
		var form PregnancyForm
		if err := decodeJSON(r, &form); err != nil {
			return nil, err
		}
		p, err := form.Specialization()
		if err != nil {
			return nil, err
		}
		return h.service.SavePregnancy(r.Context(), id, workerID, p)
	})
}

// SaveChild handles PUT /registrations/{id}/child
func (h *RegistrationHandler) SaveChild(w http.ResponseWriter, r *http.Request) {
	h.sessionCall(w, r, "/registrations/{id}/child", func(id uuid.UUID, workerID string) (*domain.Session, error) {
		var form ChildForm
		if err := decodeJSON(r, &form); err != nil {
			return nil, err
		}
		c, err := form.Specialization()
		if err != nil {
			return nil, err
		}
		return h.service.SaveChild(r.Context(), id, workerID, c)
	})
}

// UpdatePregnancyDraft handles PATCH /registrations/{id}/pregnancy
func (h *RegistrationHandler) UpdatePregnancyDraft(w http.ResponseWriter, r *http.Request) {
	h.sessionCall(w, r, "/registrations/{id}/pregnancy", func(id uuid.UUID, workerID string) (*domain.Session, error) {
		var form PregnancyForm
		if err := decodeJSON(r, &form); err != nil {
			return nil, err
		}
		p, err := form.Specialization()
		if err != nil {
			return nil, err
		}
		return h.service.UpdatePregnancyDraft(r.Context(), id, workerID, p)
	})
}

// UpdateChildDraft handles PATCH /registrations/{id}/child
func (h *RegistrationHandler) UpdateChildDraft(w http.ResponseWriter, r *http.Request) {
	h.sessionCall(w, r, "/registrations/{id}/child", func(id uuid.UUID, workerID string) (*domain.Session, error) {
		var form ChildForm
		if err := decodeJSON(r, &form); err != nil {
			return nil, err
		}
		c, err := form.Specialization()
		if err != nil {
			return nil, err
		}
		return h.service.UpdateChildDraft(r.Context(), id, workerID, c)
	})
}

// AddAnotherMember handles POST /registrations/{id}/members/next
func (h *RegistrationHandler) AddAnotherMember(w http.ResponseWriter, r *http.Request) {
	h.sessionCall(w, r, "/registrations/{id}/members/next", func(id uuid.UUID, workerID string) (*domain.Session, error) {
		return h.service.AddAnotherMember(r.Context(), id, workerID)
	})
}

// Submit handles POST /registrations/{id}/submit
func (h *RegistrationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestID(r)
	status := http.StatusCreated
	defer func() { logStructured(h.logger, reqID, r, "/registrations/{id}/submit", status, time.Since(start)) }()

	workerID, ok := middleware.GetWorkerID(r.Context())
	if !ok {
		status = http.StatusUnauthorized
		writeError(w, status, ErrorResponse{Error: "unauthorized", RequestID: reqID})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		status = http.StatusBadRequest
		writeError(w, status, ErrorResponse{Error: "invalid registration id", RequestID: reqID})
		return
	}

	result, err := h.service.Submit(r.Context(), id, workerID)
	if err != nil {
		status = fail(h.logger, w, reqID, err)
		return
	}
	writeJSON(w, status, result)
}

// Discard handles DELETE /registrations/{id}
func (h *RegistrationHandler) Discard(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestID(r)
	status := http.StatusNoContent
	defer func() { logStructured(h.logger, reqID, r, "/registrations/{id}", status, time.Since(start)) }()

	workerID, ok := middleware.GetWorkerID(r.Context())
	if !ok {
		status = http.StatusUnauthorized
		writeError(w, status, ErrorResponse{Error: "unauthorized", RequestID: reqID})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		status = http.StatusBadRequest
		writeError(w, status, ErrorResponse{Error: "invalid registration id", RequestID: reqID})
		return
	}
	if err := h.service.Discard(r.Context(), id, workerID); err != nil {
		status = fail(h.logger, w, reqID, err)
		return
	}
	w.WriteHeader(status)
}

// PreviewForm is an ad hoc member with an optional specialization form
type PreviewForm struct {
	Member    MemberForm     `json:"member"`
	Pregnancy *PregnancyForm `json:"pregnancy"`
	Child     *ChildForm     `json:"child"`
}

// Preview handles POST /assessments/preview
func (h *RegistrationHandler) Preview(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqID := requestID(r)
	status := http.StatusOK
	defer func() { logStructured(h.logger, reqID, r, "/assessments/preview", status, time.Since(start)) }()

	var form PreviewForm
	if err := decodeJSON(r, &form); err != nil {
		status = fail(h.logger, w, reqID, err)
		return
	}
	req, err := form.request()
	if err != nil {
		status = fail(h.logger, w, reqID, err)
		return
	}
	writeJSON(w, status, h.service.Preview(req))
}

func (f *PreviewForm) request() (ports.PreviewRequest, error) {
	var req ports.PreviewRequest
	in, err := f.Member.Input()
	if err != nil {
		return req, err
	}
	req.Member = in
	if f.Pregnancy != nil {
		p, err := f.Pregnancy.Specialization()
		if err != nil {
			return req, err
		}
		req.Pregnancy = &p
	}
	if f.Child != nil {
		c, err := f.Child.Specialization()
		if err != nil {
			return req, err
		}
		req.Child = &c
	}
	return req, nil
}

func decodeMember(r *http.Request) (domain.MemberInput, error) {
	var form MemberForm
	if err := decodeJSON(r, &form); err != nil {
		return domain.MemberInput{}, err
	}
	return form.Input()
}
