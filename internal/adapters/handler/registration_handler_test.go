package handler_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/umeed-health/asha-service/internal/adapters/handler"
	"github.com/umeed-health/asha-service/internal/adapters/middleware"
	"github.com/umeed-health/asha-service/internal/core/domain"
	"github.com/umeed-health/asha-service/internal/core/ports"
)

var asha = &middleware.Identity{WorkerID: "asha-1", Role: middleware.RoleASHA, Village: "Mavli"}

func registrationRouter(svc *MockRegistrationService, id *middleware.Identity) http.Handler {
	h := handler.NewRegistrationHandler(svc, zap.NewNop())
	return newRouter(id, h.Routes)
}

func do(t *testing.T, h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var resp handler.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	return resp
}

func TestRegistrationHandler_Start(t *testing.T) {
	svc := new(MockRegistrationService)
	sess := domain.NewWorkflow(nil).NewSession("asha-1")
	svc.On("Start", mock.Anything, "asha-1").Return(sess, nil)

	rr := do(t, registrationRouter(svc, asha), http.MethodPost, "/registrations", "")

	assert.Equal(t, http.StatusCreated, rr.Code)
	var view handler.SessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, sess.ID, view.ID)
	assert.Equal(t, domain.StateAddFamily, view.State)
	assert.Empty(t, view.Badges)
	svc.AssertExpectations(t)
}

func TestRegistrationHandler_RequiresIdentity(t *testing.T) {
	svc := new(MockRegistrationService)
	rr := do(t, registrationRouter(svc, nil), http.MethodPost, "/registrations", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	svc.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}

func TestRegistrationHandler_InvalidSessionID(t *testing.T) {
	svc := new(MockRegistrationService)
	rr := do(t, registrationRouter(svc, asha), http.MethodGet, "/registrations/not-a-uuid", "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegistrationHandler_SaveMemberFlexibleForm(t *testing.T) {
	svc := new(MockRegistrationService)
	id := uuid.New()

	want := domain.DefaultMemberInput()
	want.Name = "Rajesh"
	want.Age = "45"
	want.Gender = domain.GenderMale
	want.WeightKg = 0
	want.SystolicBP = 150
	want.Symptoms = domain.GeneralSymptoms{PersistentCough: true, ChestPain: true}
	want.History = domain.MedicalHistory{Hypertension: true}

	sess := domain.NewWorkflow(nil).NewSession("asha-1")
	svc.On("SaveMember", mock.Anything, id, "asha-1", want).Return(sess, nil)

	body := `{
		"name": "Rajesh",
		"age": 45,
		"gender": "M",
		"weight_kg": "",
		"systolic_bp": "150",
		"symptoms": {"persistent_cough": true, "chest_pain": "Yes", "fever": "No"},
		"history": {"hypertension": "Yes"}
	}`
	rr := do(t, registrationRouter(svc, asha), http.MethodPost, "/registrations/"+id.String()+"/members", body)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestRegistrationHandler_SaveMemberRejectsNonNumeric(t *testing.T) {
	svc := new(MockRegistrationService)
	id := uuid.New()

	rr := do(t, registrationRouter(svc, asha), http.MethodPost, "/registrations/"+id.String()+"/members",
		`{"name":"Sita","age":"30","systolic_bp":"high","glucose":"1O0"}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	resp := decodeError(t, rr)
	assert.Contains(t, resp.Fields, "systolic_bp")
	assert.Contains(t, resp.Fields, "glucose")
	svc.AssertNotCalled(t, "SaveMember", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistrationHandler_EditMember(t *testing.T) {
	svc := new(MockRegistrationService)
	id := uuid.New()
	sess := domain.NewWorkflow(nil).NewSession("asha-1")
	svc.On("EditMember", mock.Anything, id, "asha-1", 1, mock.AnythingOfType("domain.MemberInput")).Return(sess, nil)

	r := registrationRouter(svc, asha)
	rr := do(t, r, http.MethodPut, "/registrations/"+id.String()+"/members/1", `{"name":"Sita","age":"30"}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodPut, "/registrations/"+id.String()+"/members/x", `{"name":"Sita"}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	svc.AssertNumberOfCalls(t, "EditMember", 1)
}

func TestRegistrationHandler_PregnancyPromptAndForm(t *testing.T) {
	svc := new(MockRegistrationService)
	id := uuid.New()
	sess := domain.NewWorkflow(nil).NewSession("asha-1")
	svc.On("AnswerPregnancyPrompt", mock.Anything, id, "asha-1", true).Return(sess, nil)

	lmp := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	byForm := mock.MatchedBy(func(p domain.PregnancySpecialization) bool {
		return p.Trimester == domain.TrimesterSecond &&
			p.Gravida == 2 &&
			p.LMP != nil && p.LMP.Equal(lmp) &&
			p.Vitals.SystolicBP == 150 &&
			p.Vitals.DiastolicBP == 80 &&
			p.DangerSigns.Bleeding &&
			!p.Compliance.IronAdherent
	})
	svc.On("SavePregnancy", mock.Anything, id, "asha-1", byForm).Return(sess, nil)

	r := registrationRouter(svc, asha)
	rr := do(t, r, http.MethodPost, "/registrations/"+id.String()+"/pregnancy-prompt", `{"pregnant":"Yes"}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodPut, "/registrations/"+id.String()+"/pregnancy", `{
		"gravida": "2",
		"trimester": "2nd",
		"lmp": "2026-06-01",
		"vitals": {"systolic_bp": 150},
		"danger_signs": {"bleeding": "Yes"},
		"compliance": {"iron_adherent": "No"}
	}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(t, r, http.MethodPut, "/registrations/"+id.String()+"/pregnancy", `{"lmp":"01/06/2026"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	assert.Contains(t, decodeError(t, rr).Fields, "pregnancy.lmp")
	svc.AssertExpectations(t)
}

func TestRegistrationHandler_SaveChildDefaults(t *testing.T) {
	svc := new(MockRegistrationService)
	id := uuid.New()
	sess := domain.NewWorkflow(nil).NewSession("asha-1")

	want := domain.DefaultChild()
	want.Growth.MUACCm = 11
	want.Symptoms.Convulsions = true
	svc.On("SaveChild", mock.Anything, id, "asha-1", want).Return(sess, nil)

	rr := do(t, registrationRouter(svc, asha), http.MethodPut, "/registrations/"+id.String()+"/child",
		`{"growth":{"muac_cm":"11"},"symptoms":{"convulsions":"Yes"}}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestRegistrationHandler_UpdateChildDraft(t *testing.T) {
	svc := new(MockRegistrationService)
	wf := domain.NewWorkflow(nil)
	sess := wf.NewSession("asha-1")
	require.NoError(t, wf.SaveFamily(sess, domain.FamilyInput{Village: "Mavli", HeadName: "Rajesh Kumar"}))
	child := domain.DefaultMemberInput()
	child.Name, child.Age = "Arjun", "2"
	_, err := wf.SaveMember(sess, child)
	require.NoError(t, err)

	want := domain.DefaultChild()
	want.Growth.MUACCm = 11
	svc.On("UpdateChildDraft", mock.Anything, sess.ID, "asha-1", want).Return(sess, nil).Run(func(args mock.Arguments) {
		assert.NoError(t, wf.UpdateChildDraft(sess, args.Get(3).(domain.ChildSpecialization)))
	})

	rr := do(t, registrationRouter(svc, asha), http.MethodPatch, "/registrations/"+sess.ID.String()+"/child",
		`{"growth":{"muac_cm":11}}`)

	require.Equal(t, http.StatusOK, rr.Code)
	var view handler.SessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	assert.Equal(t, domain.StateChildForm, view.State)
	require.NotNil(t, view.Banner)
	assert.True(t, view.Banner.HighRisk())
	svc.AssertExpectations(t)
}

func TestRegistrationHandler_CountOutOfRange(t *testing.T) {
	svc := new(MockRegistrationService)
	id := uuid.New()

	rr := do(t, registrationRouter(svc, asha), http.MethodPut, "/registrations/"+id.String()+"/child",
		`{"vitals":{"respiratory_rate":1e30}}`)

	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
	var body handler.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Contains(t, body.Fields, "child.vitals.respiratory_rate")
	svc.AssertNotCalled(t, "SaveChild", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestRegistrationHandler_SubmitErrors(t *testing.T) {
	tests := []struct {
		name    string
		result  *ports.SubmitResult
		err     error
		want    int
		message string
	}{
		{"stored", &ports.SubmitResult{FamilyID: "12", MemberIDs: []string{"40"}}, nil, http.StatusCreated, ""},
		{"missing fields", nil, domain.NewValidationError("registration is incomplete", map[string]string{"family.village": "required"}), http.StatusUnprocessableEntity, "registration is incomplete"},
		{"store failure", nil, &domain.PersistenceError{Table: ports.TableMembers, Err: errors.New("connection refused to 10.0.0.4")}, http.StatusBadGateway, "failed to save registration, please retry"},
		{"duplicate submit", nil, domain.ErrSubmissionInProgress, http.StatusConflict, domain.ErrSubmissionInProgress.Error()},
		{"unknown session", nil, domain.ErrSessionNotFound, http.StatusNotFound, domain.ErrSessionNotFound.Error()},
		{"wrong state", nil, domain.ErrInvalidTransition, http.StatusConflict, domain.ErrInvalidTransition.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockRegistrationService)
			id := uuid.New()
			svc.On("Submit", mock.Anything, id, "asha-1").Return(tt.result, tt.err)

			rr := do(t, registrationRouter(svc, asha), http.MethodPost, "/registrations/"+id.String()+"/submit", "")

			assert.Equal(t, tt.want, rr.Code)
			if tt.err == nil {
				var got ports.SubmitResult
				require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
				assert.Equal(t, "12", got.FamilyID)
				return
			}
			resp := decodeError(t, rr)
			assert.Equal(t, tt.message, resp.Error)
			assert.NotContains(t, rr.Body.String(), "10.0.0.4")
		})
	}
}

func TestRegistrationHandler_Discard(t *testing.T) {
	svc := new(MockRegistrationService)
	id := uuid.New()
	svc.On("Discard", mock.Anything, id, "asha-1").Return(nil)

	rr := do(t, registrationRouter(svc, asha), http.MethodDelete, "/registrations/"+id.String(), "")
	assert.Equal(t, http.StatusNoContent, rr.Code)
	svc.AssertExpectations(t)
}

func TestRegistrationHandler_ViewShowsBadgesAndBanner(t *testing.T) {
	svc := new(MockRegistrationService)
	wf := domain.NewWorkflow(nil)
	sess := wf.NewSession("asha-1")
	require.NoError(t, wf.SaveFamily(sess, domain.FamilyInput{Village: "Mavli", HeadName: "Rajesh Kumar"}))

	in := domain.DefaultMemberInput()
	in.Name, in.Age, in.Gender, in.SystolicBP = "Rajesh", "45", domain.GenderMale, 150
	_, err := wf.SaveMember(sess, in)
	require.NoError(t, err)
	require.NoError(t, wf.AddAnotherMember(sess))

	child := domain.DefaultMemberInput()
	child.Name, child.Age = "Arjun", "2"
	_, err = wf.SaveMember(sess, child)
	require.NoError(t, err)
	require.Equal(t, domain.StateChildForm, sess.State)
	c := domain.DefaultChild()
	c.Symptoms.Convulsions = true
	require.NoError(t, wf.UpdateChildDraft(sess, c))

	svc.On("Get", mock.Anything, sess.ID, "asha-1").Return(sess, nil)
	rr := do(t, registrationRouter(svc, asha), http.MethodGet, "/registrations/"+sess.ID.String(), "")

	require.Equal(t, http.StatusOK, rr.Code)
	var view handler.SessionView
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &view))
	require.Len(t, view.Badges, 1)
	assert.Equal(t, "Rajesh", view.Badges[0].Name)
	assert.Equal(t, domain.RiskOrange, view.Badges[0].Level)
	require.NotNil(t, view.Banner)
	assert.True(t, view.Banner.HighRisk())
}

func TestRegistrationHandler_Preview(t *testing.T) {
	svc := new(MockRegistrationService)
	byRequest := mock.MatchedBy(func(req ports.PreviewRequest) bool {
		return req.Member.Name == "Sita" && req.Pregnancy != nil && req.Pregnancy.Vitals.SystolicBP == 160 && req.Child == nil
	})
	svc.On("Preview", byRequest).Return(&ports.AssessmentPreview{
		Category:   domain.CategoryPregnancy,
		Assessment: domain.Assessment{Level: domain.RiskRed},
		Advice:     domain.FollowUpAdvice(domain.RiskRed),
	})

	rr := do(t, registrationRouter(svc, asha), http.MethodPost, "/assessments/preview",
		`{"member":{"name":"Sita","age":"26","gender":"Female"},"pregnancy":{"vitals":{"systolic_bp":"160"}}}`)

	require.Equal(t, http.StatusOK, rr.Code)
	var got ports.AssessmentPreview
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, domain.RiskRed, got.Assessment.Level)
	svc.AssertExpectations(t)
}
