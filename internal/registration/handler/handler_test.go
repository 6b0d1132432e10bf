package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"podium/internal/platform/middleware"
	"podium/internal/registration/handler/mocks"
	"podium/internal/registration/models"
	"podium/internal/registration/service"
	"podium/internal/registration/store"
	id "podium/pkg/domain"
	dErrors "podium/pkg/domain-errors"
	"podium/pkg/testutil"
)

// =============================================================================
// Registration Handler Test Suite
// =============================================================================
// Justification for unit tests: handlers own request parsing, the PATCH
// dispatch rules, status codes and response shapes. They run against the real
// in-memory services so the HTTP contract is checked end to end.

const (
	adminToken  = "admin-token"
	viewerToken = "viewer-token"
)

var testAdmin = id.NewAdminID()

type stubValidator struct{}

func (stubValidator) ValidateToken(token string) (*middleware.AdminClaims, error) {
	switch token {
	case adminToken:
		return &middleware.AdminClaims{AdminID: testAdmin, Role: middleware.RoleAdmin}, nil
	case viewerToken:
		return &middleware.AdminClaims{AdminID: id.NewAdminID(), Role: "viewer"}, nil
	default:
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid token")
	}
}

type HandlerSuite struct {
	suite.Suite
	router chi.Router
	svc    *service.Services
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.svc = service.New(store.NewMemory())
	h := New(s.svc.Gateway, s.svc.Engine, s.svc.Admin, stubValidator{}, slog.New(slog.DiscardHandler))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) admin(method, path string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = testutil.NewJSONRequest(s.T(), method, path, body)
	} else {
		req = testutil.NewRequest(s.T(), method, path)
	}
	return s.do(testutil.WithBearer(req, adminToken))
}

func (s *HandlerSuite) createEvent(maxParticipants int) string {
	rr := s.admin(http.MethodPost, "/admin/events", map[string]any{
		"name":            "Robotics Cup",
		"kind":            "competition",
		"maxParticipants": maxParticipants,
		"deadline":        time.Now().Add(24 * time.Hour).UTC(),
	})
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	event := testutil.UnmarshalResponse[models.ParentEvent](s.T(), rr)
	s.True(event.RegistrationOpen, "registration opens by default")
	return event.ID.String()
}

func submitBody(team string) map[string]any {
	return map[string]any{
		"kind":        "registration",
		"title":       team,
		"institution": "Northside High",
		"contact":     map[string]string{"name": "Grace Hopper", "email": "grace@example.com"},
		"members": []map[string]string{
			{"name": "Grace Hopper", "identifier": team + "-lead", "role": "leader"},
			{"name": "Alan Turing", "identifier": team + "-m1"},
		},
	}
}

func (s *HandlerSuite) submit(eventID, team string) string {
	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/events/"+eventID+"/submissions", submitBody(team)))
	s.Require().Equal(http.StatusCreated, rr.Code, rr.Body.String())
	resp := testutil.UnmarshalResponse[SubmitResponse](s.T(), rr)
	s.Equal(models.StatusPending, resp.Status)
	return resp.ID.String()
}

func (s *HandlerSuite) TestSubmitAndCapacity() {
	eventID := s.createEvent(1)
	s.submit(eventID, "alpha")

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/events/"+eventID+"/submissions", submitBody("beta")))
	testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeCapacityExceeded))
}

func (s *HandlerSuite) TestSubmitValidation() {
	eventID := s.createEvent(0)
	body := submitBody("alpha")
	body["contact"] = map[string]string{"name": "", "email": "nope"}

	rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/events/"+eventID+"/submissions", body))
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	errResp := testutil.UnmarshalErrorResponse(s.T(), rr)
	s.Contains(errResp.Errors, "contact.email")
	s.Contains(errResp.Errors, "contact.name")
}

func (s *HandlerSuite) TestSubmitRejectsBadRequests() {
	eventID := s.createEvent(0)

	s.Run("unknown field", func() {
		rr := s.do(testutil.NewRequestWithBody(s.T(), http.MethodPost, "/events/"+eventID+"/submissions", `{"title":"x","bogus":1}`))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeBadRequest))
	})
	s.Run("malformed event id", func() {
		rr := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/events/not-a-uuid/submissions", submitBody("x")))
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})
	s.Run("wrong content type", func() {
		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/events/"+eventID+"/submissions", "title=x")
		req.Header.Set("Content-Type", "text/plain")
		testutil.AssertStatus(s.T(), s.do(req), http.StatusUnsupportedMediaType)
	})
}

func (s *HandlerSuite) TestSubmitIdempotentReplay() {
	eventID := s.createEvent(0)
	send := func() *httptest.ResponseRecorder {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/events/"+eventID+"/submissions", submitBody("alpha"))
		req.Header.Set(idempotencyKeyHeader, "retry-1")
		return s.do(req)
	}

	first := send()
	s.Require().Equal(http.StatusCreated, first.Code)
	second := send()
	s.Require().Equal(http.StatusOK, second.Code)
	s.Equal("true", second.Header().Get(replayedHeader))

	a := testutil.UnmarshalResponse[SubmitResponse](s.T(), first)
	b := testutil.UnmarshalResponse[SubmitResponse](s.T(), second)
	s.Equal(a.ID, b.ID)
}

func (s *HandlerSuite) TestWindowAndParticipants() {
	eventID := s.createEvent(3)
	subID := s.submit(eventID, "alpha")
	s.submit(eventID, "beta")

	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/events/"+eventID))
	s.Require().Equal(http.StatusOK, rr.Code)
	window := testutil.UnmarshalResponse[WindowResponse](s.T(), rr)
	s.True(window.Open)
	s.Require().NotNil(window.RemainingSlots)
	s.Equal(1, *window.RemainingSlots)

	rr = s.admin(http.MethodPatch, "/admin/submissions/"+subID, map[string]any{"status": "verified"})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/events/"+eventID+"/participants"))
	s.Require().Equal(http.StatusOK, rr.Code)
	list := testutil.UnmarshalResponse[ListResponse[ParticipantResponse]](s.T(), rr)
	s.Require().Len(list.Data, 1)
	s.Equal("alpha", list.Data[0].Title)
	s.Equal("Grace Hopper", list.Data[0].Leader)
	s.Equal([]string{"Alan Turing"}, list.Data[0].Members)
	s.Equal(1, list.Meta.Total)
}

func (s *HandlerSuite) TestAdminRequiresAdminRole() {
	rr := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/admin/events"))
	testutil.AssertStatus(s.T(), rr, http.StatusUnauthorized)

	rr = s.do(testutil.WithBearer(testutil.NewRequest(s.T(), http.MethodGet, "/admin/events"), viewerToken))
	testutil.AssertStatus(s.T(), rr, http.StatusForbidden)

	rr = s.admin(http.MethodGet, "/admin/events", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)
}

func (s *HandlerSuite) TestPatchSubmissionDispatch() {
	eventID := s.createEvent(0)
	subID := s.submit(eventID, "alpha")
	path := "/admin/submissions/" + subID

	s.Run("mixed lifecycle and moderation rejected", func() {
		rr := s.admin(http.MethodPatch, path, map[string]any{"status": "verified", "isDeleted": true})
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
		testutil.AssertFieldError(s.T(), rr, "isDeleted")
	})
	s.Run("notes without status rejected", func() {
		rr := s.admin(http.MethodPatch, path, map[string]any{"reviewerNotes": "hm"})
		testutil.AssertFieldError(s.T(), rr, "status")
	})
	s.Run("empty patch rejected", func() {
		rr := s.admin(http.MethodPatch, path, map[string]any{})
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
	s.Run("contact edit", func() {
		rr := s.admin(http.MethodPatch, path, map[string]any{"contactEmail": "new@example.com"})
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		detail := testutil.UnmarshalResponse[SubmissionDetailResponse](s.T(), rr)
		s.Equal("new@example.com", detail.ContactEmail)
	})
	s.Run("moderation with notes", func() {
		rr := s.admin(http.MethodPatch, path, map[string]any{"status": "rejected", "reviewerNotes": "late"})
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		detail := testutil.UnmarshalResponse[SubmissionDetailResponse](s.T(), rr)
		s.Equal(models.StatusRejected, detail.Status)
		s.Require().Len(detail.History, 1)
		s.Equal(testAdmin, *detail.History[0].ChangedBy)
	})
	s.Run("second decision conflicts", func() {
		rr := s.admin(http.MethodPatch, path, map[string]any{"status": "verified"})
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, string(dErrors.CodeConflict))
	})
	s.Run("soft delete and restore", func() {
		rr := s.admin(http.MethodPatch, path, map[string]any{"isDeleted": true})
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		detail := testutil.UnmarshalResponse[SubmissionDetailResponse](s.T(), rr)
		s.True(detail.IsDeleted)

		rr = s.admin(http.MethodPatch, path, map[string]any{"isDeleted": false})
		s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
		detail = testutil.UnmarshalResponse[SubmissionDetailResponse](s.T(), rr)
		s.False(detail.IsDeleted)
	})
}

func (s *HandlerSuite) TestListSubmissions() {
	eventID := s.createEvent(0)
	s.submit(eventID, "alpha")
	deleted := s.submit(eventID, "beta")
	s.Require().Equal(http.StatusNoContent, s.admin(http.MethodDelete, "/admin/submissions/"+deleted, nil).Code)

	rr := s.admin(http.MethodGet, "/admin/submissions?limit=10", nil)
	s.Require().Equal(http.StatusOK, rr.Code)
	list := testutil.UnmarshalResponse[ListResponse[models.Submission]](s.T(), rr)
	s.Len(list.Data, 1)
	s.Equal(10, list.Meta.Limit)

	rr = s.admin(http.MethodGet, "/admin/submissions?include_deleted=true&event_id="+eventID, nil)
	list = testutil.UnmarshalResponse[ListResponse[models.Submission]](s.T(), rr)
	s.Len(list.Data, 2)

	rr = s.admin(http.MethodGet, "/admin/submissions?page=x&include_deleted=maybe", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	errResp := testutil.UnmarshalErrorResponse(s.T(), rr)
	s.Contains(errResp.Errors, "page")
	s.Contains(errResp.Errors, "include_deleted")
}

func (s *HandlerSuite) TestBatchTransition() {
	eventID := s.createEvent(0)
	a := s.submit(eventID, "alpha")
	b := s.submit(eventID, "beta")
	s.Require().Equal(http.StatusOK, s.admin(http.MethodPatch, "/admin/submissions/"+b, map[string]any{"status": "verified"}).Code)

	rr := s.admin(http.MethodPost, "/admin/submissions/batch", map[string]any{
		"ids":    []string{a, b},
		"status": "rejected",
	})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())
	report := testutil.UnmarshalResponse[BatchResponse](s.T(), rr)
	s.Require().Len(report.Items, 2)
	s.True(report.Items[0].OK)
	s.False(report.Items[1].OK)
	s.Equal(string(dErrors.CodeConflict), report.Items[1].Error.Code)
	s.Equal(1, report.Succeeded)

	rr = s.admin(http.MethodPost, "/admin/submissions/batch", map[string]any{"ids": []string{"nope"}, "status": "verified"})
	testutil.AssertFieldError(s.T(), rr, "ids[0]")
}

func (s *HandlerSuite) TestEventLifecycleRoutes() {
	eventID := s.createEvent(2)
	path := "/admin/events/" + eventID

	rr := s.admin(http.MethodPatch, path, map[string]any{"maxParticipants": 5, "name": "Renamed"})
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	rr = s.admin(http.MethodGet, path, nil)
	detail := testutil.UnmarshalResponse[EventResponse](s.T(), rr)
	s.Equal("Renamed", detail.Name)
	s.Equal(5, *detail.RemainingSlots)

	rr = s.admin(http.MethodDelete, path+"?permanent=true", nil)
	testutil.AssertStatus(s.T(), rr, http.StatusConflict)

	s.Require().Equal(http.StatusNoContent, s.admin(http.MethodDelete, path, nil).Code)
	rr = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/events/"+eventID))
	testutil.AssertStatus(s.T(), rr, http.StatusNotFound)

	rr = s.admin(http.MethodPost, path+"/restore", nil)
	s.Require().Equal(http.StatusOK, rr.Code, rr.Body.String())

	s.Require().Equal(http.StatusNoContent, s.admin(http.MethodDelete, path, nil).Code)
	s.Require().Equal(http.StatusNoContent, s.admin(http.MethodDelete, path+"?permanent=true", nil).Code)
	testutil.AssertStatus(s.T(), s.admin(http.MethodGet, path, nil), http.StatusNotFound)
}

// =============================================================================
// Gateway error mapping (mocked service)
// =============================================================================

func TestSubmitInternalErrorIsOpaque(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockSubmissionGateway(ctrl)
	gateway.EXPECT().Submit(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.Wrap(errors.New("pq: connection refused"), dErrors.CodeInternal, "failed to admit submission"))

	h := New(gateway, nil, nil, stubValidator{}, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	h.Register(r)

	rr := testutil.DoRequest(r, testutil.NewJSONRequest(t, http.MethodPost, "/events/"+id.NewEventID().String()+"/submissions", submitBody("alpha")))
	testutil.AssertStatus(t, rr, http.StatusInternalServerError)
	assert.NotContains(t, rr.Body.String(), "pq:")
}

func TestSubmitPassesIdempotencyKey(t *testing.T) {
	ctrl := gomock.NewController(t)
	gateway := mocks.NewMockSubmissionGateway(ctrl)
	eventID := id.NewEventID()
	subID := id.NewSubmissionID()
	gateway.EXPECT().Submit(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, cmd service.SubmitCommand) (*service.SubmitResult, error) {
			assert.Equal(t, eventID, cmd.EventID)
			assert.Equal(t, "key-1", cmd.IdempotencyKey)
			assert.Equal(t, models.RoleLeader, cmd.Members[0].Role)
			return &service.SubmitResult{Submission: &models.Submission{ID: subID, Status: models.StatusPending}}, nil
		})

	h := New(gateway, nil, nil, stubValidator{}, slog.New(slog.DiscardHandler))
	r := chi.NewRouter()
	h.Register(r)

	req := testutil.NewJSONRequest(t, http.MethodPost, fmt.Sprintf("/events/%s/submissions", eventID), submitBody("alpha"))
	req.Header.Set(idempotencyKeyHeader, "  key-1 ")
	rr := testutil.DoRequest(r, req)
	require.Equal(t, http.StatusCreated, rr.Code)
	resp := testutil.UnmarshalResponse[SubmitResponse](t, rr)
	assert.Equal(t, subID, resp.ID)
}
