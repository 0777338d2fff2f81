package handler

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"ezclaim/internal/auth"
	"ezclaim/internal/tags/handler/mocks"
	"ezclaim/internal/tags/models"
	dErrors "ezclaim/pkg/domain-errors"
	"ezclaim/pkg/requestcontext"
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
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.scopes != nil {
				r = r.WithContext(requestcontext.WithPrincipal(r.Context(), "tester", s.scopes))
			}
			next.ServeHTTP(w, r)
		})
	})
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	s.router = r
}

func (s *HandlerSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *HandlerSuite) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, httptest.NewRequest(method, path, bytes.NewBufferString(body)))
	return rec
}

func (s *HandlerSuite) TestReadsArePublic() {
	s.service.EXPECT().List(gomock.Any()).Return(nil, nil)
	rec := s.do(http.MethodGet, "/api/tags", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`[]`, rec.Body.String())

	s.service.EXPECT().Get(gomock.Any(), "t1").Return(&models.Tag{ID: "t1", Label: "travel"}, nil)
	rec = s.do(http.MethodGet, "/api/tags/t1", "")
	s.Require().Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"id":"t1","label":"travel"}`, rec.Body.String())

	s.service.EXPECT().Get(gomock.Any(), "nope").Return(nil, dErrors.New(dErrors.CodeNotFound, "Tag not found: nope"))
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/api/tags/nope", "").Code)
}

func (s *HandlerSuite) TestWritesNeedScope() {
	s.Equal(http.StatusUnauthorized, s.do(http.MethodPost, "/api/tags", `{"label":"x"}`).Code)

	s.scopes = []string{auth.ScopeTagRead}
	s.Equal(http.StatusForbidden, s.do(http.MethodPut, "/api/tags/t1", `{"label":"x"}`).Code)
	s.Equal(http.StatusForbidden, s.do(http.MethodDelete, "/api/tags/t1", "").Code)
}

func (s *HandlerSuite) TestCreate() {
	s.scopes = []string{auth.ScopeTagWrite}

	s.Run("trims and forwards", func() {
		s.service.EXPECT().Create(gomock.Any(), &models.TagRequest{Label: "meals", Color: "#ff0"}).
			Return(&models.Tag{ID: "t1", Label: "meals", Color: "#ff0"}, nil)

		rec := s.do(http.MethodPost, "/api/tags", `{"label":"  meals ","color":"#ff0"}`)
		s.Require().Equal(http.StatusOK, rec.Code)
		var tag models.Tag
		s.Require().NoError(json.NewDecoder(rec.Body).Decode(&tag))
		s.Equal("t1", tag.ID)
	})

	s.Run("blank label", func() {
		s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/api/tags", `{"label":"  "}`).Code)
	})

	s.Run("malformed body", func() {
		s.Equal(http.StatusBadRequest, s.do(http.MethodPost, "/api/tags", `{`).Code)
	})

	s.Run("store failure hides details", func() {
		s.service.EXPECT().Create(gomock.Any(), gomock.Any()).
			Return(nil, dErrors.Wrap(errors.New("disk"), dErrors.CodeInternal, "failed to save tag"))
		rec := s.do(http.MethodPost, "/api/tags", `{"label":"x"}`)
		s.Equal(http.StatusInternalServerError, rec.Code)
		s.JSONEq(`{"error":"internal_error"}`, rec.Body.String())
	})
}

func (s *HandlerSuite) TestUpdateAndDelete() {
	s.scopes = []string{auth.ScopeTagWrite}

	s.service.EXPECT().Update(gomock.Any(), "t1", &models.TagRequest{Label: "hotel"}).
		Return(&models.Tag{ID: "t1", Label: "hotel"}, nil)
	s.Equal(http.StatusOK, s.do(http.MethodPut, "/api/tags/t1", `{"label":"hotel"}`).Code)

	s.service.EXPECT().Delete(gomock.Any(), "t1").Return(nil)
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, "/api/tags/t1", "").Code)
}
