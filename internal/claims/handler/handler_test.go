package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ezclaim/internal/auth"
	"ezclaim/internal/claims/handler/mocks"
	"ezclaim/internal/claims/models"
	dErrors "ezclaim/pkg/domain-errors"
	"ezclaim/pkg/testutil"
)

type HandlerSuite struct {
	suite.Suite
	ctrl    *gomock.Controller
	service *mocks.MockService
	router  chi.Router
	scopes  []string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.service = mocks.NewMockService(s.ctrl)
	s.scopes = nil

	r := chi.NewRouter()
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if s.scopes != nil {
		req = testutil.WithPrincipal(req, "tester", s.scopes...)
	}
	return testutil.DoRequest(s.router, req)
}

func (s *HandlerSuite) TestList() {
	s.Run("needs read scope", func() {
		s.Equal(http.StatusUnauthorized, s.do(http.MethodGet, "/api/claims", "").Code)
	})

	s.scopes = []string{auth.ScopeClaimRead}

	s.Run("all claims", func() {
		claims := []*models.Claim{{ID: "c1"}}
		s.service.EXPECT().FindAll(gomock.Any()).Return(claims, nil)
		s.service.EXPECT().ResolveAll(gomock.Any(), claims).
			Return([]*models.ClaimView{{ID: "c1", Status: models.StatusSubmitted}}, nil)

		rec := s.do(http.MethodGet, "/api/claims", "")
		s.Require().Equal(http.StatusOK, rec.Code)
		var views []models.ClaimView
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&views))
		s.Require().Len(views, 1)
		s.Equal("c1", views[0].ID)
	})

	s.Run("paged search", func() {
		s.service.EXPECT().Search(gomock.Any(), models.Filter{Status: models.StatusPaid}, 2, 10).
			Return(&models.Page{Items: []*models.ClaimView{}, Total: 0, Page: 2, Size: 10}, nil)

		rec := s.do(http.MethodGet, "/api/claims?status=paid&page=2&size=10", "")
		s.Require().Equal(http.StatusOK, rec.Code)
		s.JSONEq(`{"items":[],"total":0,"page":2,"size":10}`, rec.Body.String())
	})

	s.Run("bad parameters", func() {
		s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/api/claims?status=LOST", "").Code)
		s.Equal(http.StatusBadRequest, s.do(http.MethodGet, "/api/claims?page=x", "").Code)
	})
}

func (s *HandlerSuite) TestGetPassesPassword() {
	s.service.EXPECT().Get(gomock.Any(), "c1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, caller auth.Caller) (*models.ClaimView, error) {
			s.Require().NotNil(caller.Password)
			s.Equal("s3cret", *caller.Password)
			s.True(caller.Anonymous())
			return &models.ClaimView{ID: "c1"}, nil
		})
	s.Equal(http.StatusOK, s.do(http.MethodGet, "/api/claims/c1?password=s3cret", "").Code)

	s.service.EXPECT().Get(gomock.Any(), "c1", gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeLocked, "too many failed password attempts, retry in 60 seconds"))
	s.Equal(http.StatusTooManyRequests, s.do(http.MethodGet, "/api/claims/c1", "").Code)
}

func (s *HandlerSuite) TestCreate() {
	s.Run("anonymous submit", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, req *models.CreateRequest) (*models.ClaimView, error) {
				s.Equal("Hotel", req.Title)
				s.Equal("EUR", req.Currency)
				return &models.ClaimView{ID: "c1", Title: req.Title, Status: models.StatusSubmitted}, nil
			})

		rec := s.do(http.MethodPost, "/api/claims", `{
			"title":" Hotel ","amount":"120.00","currency":"eur",
			"payout":{"iban":"CH93"},"expenseAt":"2024-03-01T00:00:00Z"
		}`)
		s.Require().Equal(http.StatusOK, rec.Code)
	})

	s.Run("invalid amount", func() {
		rec := s.do(http.MethodPost, "/api/claims", `{
			"title":"Hotel","amount":"-1","payout":{},"expenseAt":"2024-03-01T00:00:00Z"
		}`)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown photo", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.New(dErrors.CodeNotFound, "Unknown photo id(s): p9"))
		rec := s.do(http.MethodPost, "/api/claims", `{
			"title":"Hotel","amount":"1","payout":{},"expenseAt":"2024-03-01T00:00:00Z","photoIds":["p9"]
		}`)
		s.Equal(http.StatusNotFound, rec.Code)
		s.JSONEq(`{"error":"not_found","error_description":"Unknown photo id(s): p9"}`, rec.Body.String())
	})
}

func (s *HandlerSuite) TestPatch() {
	s.scopes = []string{auth.ScopeClaimWrite}
	s.service.EXPECT().Patch(gomock.Any(), "c1", gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, req *models.PatchRequest, caller auth.Caller) (*models.ClaimView, error) {
			s.Require().NotNil(req.Status)
			s.Equal(models.StatusApproved, *req.Status)
			s.True(caller.HasScope(auth.ScopeClaimWrite))
			return &models.ClaimView{ID: "c1", Status: models.StatusApproved}, nil
		})
	s.Equal(http.StatusOK, s.do(http.MethodPatch, "/api/claims/c1", `{"status":"approved"}`).Code)

	s.service.EXPECT().Patch(gomock.Any(), "c1", gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeForbidden, "status transition not allowed"))
	s.Equal(http.StatusForbidden, s.do(http.MethodPatch, "/api/claims/c1", `{"status":"PAID"}`).Code)

	s.Equal(http.StatusBadRequest, s.do(http.MethodPatch, "/api/claims/c1", `{"status":"LOST"}`).Code)
}

func (s *HandlerSuite) TestDelete() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodDelete, "/api/claims/c1", "").Code)

	s.scopes = []string{auth.ScopeClaimRead}
	s.Equal(http.StatusForbidden, s.do(http.MethodDelete, "/api/claims/c1", "").Code)

	s.scopes = []string{auth.ScopeClaimWrite}
	s.service.EXPECT().Delete(gomock.Any(), "c1", gomock.Any()).Return(nil)
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/api/claims/c1", "").Code)
}
