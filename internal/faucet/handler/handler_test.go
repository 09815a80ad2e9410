package handler

import (
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"concord/internal/faucet"
	"concord/internal/faucet/handler/mocks"
	id "concord/pkg/domain"
	dErrors "concord/pkg/domain-errors"
	"concord/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks Service
type FaucetHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestFaucetHandlerSuite(t *testing.T) {
	suite.Run(t, new(FaucetHandlerSuite))
}

func (s *FaucetHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	New(s.service, testutil.DiscardLogger()).Register(s.router)
}

func (s *FaucetHandlerSuite) TestGet() {
	f := &faucet.Faucet{ID: id.NewFaucetID(), Status: faucet.StatusActive, MaxRate: 10, CurrentRate: 10}

	s.Run("returns faucet", func() {
		s.service.EXPECT().Get(gomock.Any(), f.ID).Return(f, nil)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/faucets/"+f.ID.String()))
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "status", "active")
	})

	s.Run("malformed id is bad request", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/faucets/not-a-uuid"))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeInvalidInput))
	})

	s.Run("unknown faucet is not found", func() {
		other := id.NewFaucetID()
		s.service.EXPECT().Get(gomock.Any(), other).Return(nil, dErrors.New(dErrors.CodeNotFound, "faucet not found"))
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/faucets/"+other.String()))
		testutil.AssertStatus(s.T(), rr, http.StatusNotFound)
	})
}

func (s *FaucetHandlerSuite) TestList() {
	s.Run("passes filters", func() {
		s.service.EXPECT().
			List(gomock.Any(), faucet.Filter{Domain: id.Energy, Status: faucet.StatusClosed}).
			Return([]*faucet.Faucet{{ID: id.NewFaucetID()}}, nil)
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/faucets?domain=energy&status=closed"))
		testutil.AssertStatusOK(s.T(), rr)
		resp := testutil.UnmarshalResponse[ListResponse](s.T(), rr)
		assert.Len(s.T(), resp.Faucets, 1)
	})

	s.Run("rejects unknown status", func() {
		rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/faucets?status=leaking"))
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *FaucetHandlerSuite) TestScale() {
	fid := id.NewFaucetID()

	s.Run("scales", func() {
		s.service.EXPECT().Scale(gomock.Any(), fid, 25.0).
			Return(&faucet.Faucet{ID: fid, MaxRate: 50, CurrentRate: 25}, nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/faucets/"+fid.String()+"/scale", map[string]any{"rate": 25})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusOK(s.T(), rr)
		testutil.AssertJSONContains(s.T(), rr, "current_rate", 25.0)
	})

	s.Run("missing rate is rejected before the service", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/faucets/"+fid.String()+"/scale", map[string]any{})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, string(dErrors.CodeValidation))
	})

	s.Run("closed faucet is conflict", func() {
		s.service.EXPECT().Scale(gomock.Any(), fid, 5.0).
			Return(nil, dErrors.New(dErrors.CodeConflict, "faucet is closed"))
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/faucets/"+fid.String()+"/scale", map[string]any{"rate": 5})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusConflict)
	})
}

func (s *FaucetHandlerSuite) TestClose() {
	fid := id.NewFaucetID()
	s.service.EXPECT().Close(gomock.Any(), fid, faucet.ReasonClosed).
		Return(&faucet.Faucet{ID: fid, Status: faucet.StatusClosed}, nil)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/faucets/"+fid.String()+"/close"))
	testutil.AssertStatusOK(s.T(), rr)
	testutil.AssertJSONContains(s.T(), rr, "status", "closed")
}

func (s *FaucetHandlerSuite) TestDraw() {
	fid := id.NewFaucetID()

	s.Run("rate exceeded maps to unprocessable", func() {
		s.service.EXPECT().Draw(gomock.Any(), fid, 500.0).
			Return(nil, dErrors.New(dErrors.CodeResourceUnavailable, "draw exceeds faucet rate"))
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/faucets/"+fid.String()+"/draw", map[string]any{"amount": 500})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusUnprocessableEntity, string(dErrors.CodeResourceUnavailable))
	})

	s.Run("non-positive amount", func() {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/faucets/"+fid.String()+"/draw", map[string]any{"amount": 0})
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusBadRequest)
	})
}

func (s *FaucetHandlerSuite) TestOperationsRequireOwningDomain() {
	f := &faucet.Faucet{ID: id.NewFaucetID(), FromDomain: id.Energy, ToDomain: id.Transport, Status: faucet.StatusActive, MaxRate: 50, CurrentRate: 50}
	base := "/faucets/" + f.ID.String()

	s.Run("source domain controls are forbidden to others", func() {
		for _, path := range []string{"/pause", "/resume", "/close"} {
			s.service.EXPECT().Get(gomock.Any(), f.ID).Return(f, nil)
			req := testutil.NewRequest(s.T(), http.MethodPost, base+path)
			rr := testutil.DoRequest(s.router, testutil.WithCallerDomain(req, id.Transport))
			testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
		}

		s.service.EXPECT().Get(gomock.Any(), f.ID).Return(f, nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/scale", map[string]any{"rate": 10})
		rr := testutil.DoRequest(s.router, testutil.WithCallerDomain(req, id.Food))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})

	s.Run("source domain can scale", func() {
		s.service.EXPECT().Get(gomock.Any(), f.ID).Return(f, nil)
		s.service.EXPECT().Scale(gomock.Any(), f.ID, 10.0).Return(f, nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/scale", map[string]any{"rate": 10})
		rr := testutil.DoRequest(s.router, testutil.WithCallerDomain(req, id.Energy))
		testutil.AssertStatusOK(s.T(), rr)
	})

	s.Run("either end can draw", func() {
		s.service.EXPECT().Get(gomock.Any(), f.ID).Return(f, nil)
		s.service.EXPECT().Draw(gomock.Any(), f.ID, 5.0).Return(f, nil)
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/draw", map[string]any{"amount": 5})
		rr := testutil.DoRequest(s.router, testutil.WithCallerDomain(req, id.Transport))
		testutil.AssertStatusOK(s.T(), rr)

		s.service.EXPECT().Get(gomock.Any(), f.ID).Return(f, nil)
		req = testutil.NewJSONRequest(s.T(), http.MethodPost, base+"/draw", map[string]any{"amount": 5})
		rr = testutil.DoRequest(s.router, testutil.WithCallerDomain(req, id.Food))
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, string(dErrors.CodeForbidden))
	})
}

func (s *FaucetHandlerSuite) TestPauseResume() {
	fid := id.NewFaucetID()
	gomock.InOrder(
		s.service.EXPECT().Pause(gomock.Any(), fid).Return(&faucet.Faucet{ID: fid, Status: faucet.StatusPaused}, nil),
		s.service.EXPECT().Resume(gomock.Any(), fid).Return(&faucet.Faucet{ID: fid, Status: faucet.StatusActive}, nil),
	)
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/faucets/"+fid.String()+"/pause"))
	testutil.AssertJSONContains(s.T(), rr, "status", "paused")
	rr = testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodPost, "/faucets/"+fid.String()+"/resume"))
	testutil.AssertJSONContains(s.T(), rr, "status", "active")
}
