package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokapasar/sambatan/internal/domain"
	"github.com/lokapasar/sambatan/internal/service"
)

type stubJoiner struct {
	participant domain.Participant
	err         error
	got         service.JoinInput
}

func (s *stubJoiner) Join(_ context.Context, in service.JoinInput) (domain.Participant, error) {
	s.got = in
	return s.participant, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func joinRequestFor(t *testing.T, campaignID, body string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/campaigns/"+campaignID+"/join", strings.NewReader(body))
	req.SetPathValue("id", campaignID)
	return req
}

func TestJoinCampaignCreated(t *testing.T) {
	joiner := &stubJoiner{
		participant: domain.Participant{
			ID:           "p-1",
			CampaignID:   "c-1",
			BuyerID:      "buyer-1",
			SlotCount:    2,
			ContributionAmount: 200_000,
			Status:       domain.ParticipantStatusConfirmed,
			JoinedAt:     time.Now(),
		},
	}
	h := NewParticipantHandler(joiner, discardLogger())

	rec := httptest.NewRecorder()
	h.JoinCampaign(rec, joinRequestFor(t, "c-1", `{"buyer_id":"buyer-1","slot_count":2}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"id":"p-1"`)
	assert.Equal(t, "c-1", joiner.got.CampaignID)
	assert.Equal(t, 2, joiner.got.SlotCount)
}

func TestJoinCampaignRejectsBadBody(t *testing.T) {
	h := NewParticipantHandler(&stubJoiner{}, discardLogger())

	rec := httptest.NewRecorder()
	h.JoinCampaign(rec, joinRequestFor(t, "c-1", `{not json`))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestJoinCampaignErrorMapping(t *testing.T) {
	cases := map[string]struct {
		err        error
		wantStatus int
	}{
		"validation":         {domain.ErrValidation, http.StatusBadRequest},
		"not found":          {domain.ErrNotFound, http.StatusNotFound},
		"not active":         {domain.ErrCampaignNotActive, http.StatusConflict},
		"slots exhausted":    {domain.ErrSlotsExhausted, http.StatusConflict},
		"insufficient funds": {domain.ErrInsufficientFunds, http.StatusPaymentRequired},
		"busy":               {domain.ErrBusy, http.StatusTooManyRequests},
		"rate limited":       {domain.ErrRateLimited, http.StatusTooManyRequests},
		"settlement failure": {domain.ErrSettlementFailure, http.StatusBadGateway},
		"unclassified":       {io.ErrUnexpectedEOF, http.StatusInternalServerError},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewParticipantHandler(&stubJoiner{err: tc.err}, discardLogger())

			rec := httptest.NewRecorder()
			h.JoinCampaign(rec, joinRequestFor(t, "c-1", `{"buyer_id":"b","slot_count":1}`))

			assert.Equal(t, tc.wantStatus, rec.Code)
			assert.Contains(t, rec.Body.String(), "error")
			if tc.wantStatus == http.StatusTooManyRequests {
				assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			}
		})
	}
}
