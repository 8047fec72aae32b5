package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const reportID = "5d4c3b2a-1f0e-4d9c-8b7a-6f5e4d3c2b05"

func TestModerationHandler_CreateReport(t *testing.T) {
	t.Run("created", func(t *testing.T) {
		var got services.ReportInput
		svc := &MockModerationService{
			CreateReportFunc: func(_ context.Context, caller models.CallerContext, in services.ReportInput) (*models.Report, error) {
				got = in
				return &models.Report{ID: reportID, ReporterID: caller.MemberID, ReportedUserID: in.ReportedUserID, Type: in.Type, Status: models.ReportStatusPending, Severity: models.SeverityLow}, nil
			},
		}
		h := NewModerationHandler(svc)

		body := CreateReportRequest{ReportedUserID: sisterID, Type: models.ReportTypeSpam, Description: "repeated links", Evidence: []string{"msg:1"}}
		req := WithCaller(NewTestRequest(t, http.MethodPost, "/reports", body), brotherCaller)
		w := httptest.NewRecorder()
		h.CreateReport(w, req)

		var resp ReportResponse
		AssertJSONResponse(t, w, http.StatusCreated, &resp)
		assert.Equal(t, "pending", resp.Status)
		assert.Equal(t, []string{"msg:1"}, got.Evidence)
		assert.Empty(t, got.Severity)
	})

	t.Run("unknown type", func(t *testing.T) {
		h := NewModerationHandler(&MockModerationService{})
		body := CreateReportRequest{ReportedUserID: sisterID, Type: "rude", Description: "x"}
		req := WithCaller(NewTestRequest(t, http.MethodPost, "/reports", body), brotherCaller)
		w := httptest.NewRecorder()
		h.CreateReport(w, req)
		AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	})
}

func TestModerationHandler_ListReports(t *testing.T) {
	svc := &MockModerationService{
		ListReportsFunc: func(_ context.Context, _ models.CallerContext, status models.ReportStatus, _, _ int) ([]*models.Report, error) {
			assert.Equal(t, models.ReportStatusInvestigating, status)
			return []*models.Report{{ID: reportID, Status: status}}, nil
		},
	}
	h := NewModerationHandler(svc)

	w := httptest.NewRecorder()
	h.ListReports(w, WithCaller(httptest.NewRequest(http.MethodGet, "/admin/reports?status=investigating", nil), modCaller))

	var resp struct {
		Reports []ReportResponse `json:"reports"`
	}
	AssertJSONResponse(t, w, http.StatusOK, &resp)
	require.Len(t, resp.Reports, 1)
	assert.Empty(t, resp.Reports[0].Evidence)

	w = httptest.NewRecorder()
	h.ListReports(w, WithCaller(httptest.NewRequest(http.MethodGet, "/admin/reports?status=open", nil), modCaller))
	AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
}

func TestModerationHandler_ReportTransitions(t *testing.T) {
	svc := &MockModerationService{
		InvestigateReportFunc: func(_ context.Context, _ models.CallerContext, id string, severity models.ReportSeverity) (*models.Report, error) {
			assert.Empty(t, severity)
			return &models.Report{ID: id, Status: models.ReportStatusInvestigating}, nil
		},
		ApproveReportFunc: func(_ context.Context, _ models.CallerContext, id string, in services.ResolveInput) (*models.Report, error) {
			assert.Equal(t, models.ActionWarning, in.Action)
			return &models.Report{ID: id, Status: models.ReportStatusResolved, ActionTaken: in.Action, Resolution: in.Resolution}, nil
		},
		DismissReportFunc: func(context.Context, models.CallerContext, string, string) (*models.Report, error) {
			return nil, models.ErrInvalidState
		},
	}
	h := NewModerationHandler(svc)
	params := map[string]string{"id": reportID}

	t.Run("investigate without body", func(t *testing.T) {
		req := WithURLParams(WithCaller(httptest.NewRequest(http.MethodPost, "/admin/reports/"+reportID+"/investigate", nil), modCaller), params)
		w := httptest.NewRecorder()
		h.InvestigateReport(w, req)

		var resp ReportResponse
		AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, "investigating", resp.Status)
	})

	t.Run("approve with warning", func(t *testing.T) {
		body := ApproveReportRequest{Resolution: "confirmed", Action: "warning"}
		req := WithURLParams(WithCaller(NewTestRequest(t, http.MethodPost, "/admin/reports/"+reportID+"/approve", body), modCaller), params)
		w := httptest.NewRecorder()
		h.ApproveReport(w, req)

		var resp ReportResponse
		AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.Equal(t, "resolved", resp.Status)
		assert.Equal(t, "warning", resp.ActionTaken)
	})

	t.Run("dismiss of a closed report conflicts", func(t *testing.T) {
		req := WithURLParams(WithCaller(NewTestRequest(t, http.MethodPost, "/admin/reports/"+reportID+"/dismiss", DismissReportRequest{Resolution: "no evidence"}), modCaller), params)
		w := httptest.NewRecorder()
		h.DismissReport(w, req)
		AssertErrorResponse(t, w, http.StatusConflict, "conflict")
	})
}

func TestModerationHandler_Enforcement(t *testing.T) {
	adminCaller := models.CallerContext{MemberID: "admin-1", Role: models.RoleAdmin}
	until := time.Now().Add(7 * 24 * time.Hour)
	svc := &MockModerationService{
		SuspendMemberFunc: func(_ context.Context, _ models.CallerContext, id, _ string, days int) (*models.Member, error) {
			assert.Equal(t, 7, days)
			return &models.Member{ID: id, IsActive: false, SuspendUntil: &until}, nil
		},
		WarnMemberFunc: func(_ context.Context, caller models.CallerContext, id, reason string) (*models.Member, error) {
			if caller.MemberID == id {
				return nil, models.ErrForbidden
			}
			return &models.Member{ID: id, IsActive: true, Warnings: []models.Warning{{Reason: reason, IssuedBy: caller.MemberID}}}, nil
		},
		BanMemberFunc: func(_ context.Context, _ models.CallerContext, id, _ string) (*services.BanResult, error) {
			return &services.BanResult{
				Member:   &models.Member{ID: id, IsBanned: true},
				Cascade:  &models.BanCascade{MemberID: id, StepsCompleted: []string{models.CascadeStepMessagesSent}},
				Warnings: []string{"conversations: connection reset"},
			}, nil
		},
		UnblockMemberFunc: func(_ context.Context, _ models.CallerContext, id string) (*models.Member, error) {
			return &models.Member{ID: id, IsActive: true}, nil
		},
	}
	h := NewModerationHandler(svc)
	params := map[string]string{"id": sisterID}

	t.Run("suspend", func(t *testing.T) {
		req := WithURLParams(WithCaller(NewTestRequest(t, http.MethodPost, "/", SuspendMemberRequest{Reason: "spam", DurationDays: 7}), modCaller), params)
		w := httptest.NewRecorder()
		h.SuspendMember(w, req)

		var resp MemberResponse
		AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.False(t, resp.IsActive)
		assert.NotNil(t, resp.SuspendUntil)
	})

	t.Run("suspend needs a duration", func(t *testing.T) {
		req := WithURLParams(WithCaller(NewTestRequest(t, http.MethodPost, "/", map[string]any{"reason": "spam"}), modCaller), params)
		w := httptest.NewRecorder()
		h.SuspendMember(w, req)
		AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	})

	t.Run("warn self is forbidden", func(t *testing.T) {
		req := WithURLParams(WithCaller(NewTestRequest(t, http.MethodPost, "/", ReasonRequest{Reason: "x"}), modCaller), map[string]string{"id": modCaller.MemberID})
		w := httptest.NewRecorder()
		h.WarnMember(w, req)
		AssertErrorResponse(t, w, http.StatusForbidden, "forbidden")
	})

	t.Run("warn self in upper case is forbidden", func(t *testing.T) {
		req := WithURLParams(WithCaller(NewTestRequest(t, http.MethodPost, "/", ReasonRequest{Reason: "x"}), modCaller), map[string]string{"id": strings.ToUpper(modCaller.MemberID)})
		w := httptest.NewRecorder()
		h.WarnMember(w, req)
		AssertErrorResponse(t, w, http.StatusForbidden, "forbidden")
	})

	t.Run("non-uuid id is rejected", func(t *testing.T) {
		req := WithURLParams(WithCaller(NewTestRequest(t, http.MethodPost, "/", ReasonRequest{Reason: "x"}), modCaller), map[string]string{"id": "mod-1"})
		w := httptest.NewRecorder()
		h.WarnMember(w, req)
		AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request")
	})

	t.Run("ban reports cascade warnings", func(t *testing.T) {
		req := WithURLParams(WithCaller(NewTestRequest(t, http.MethodPost, "/", ReasonRequest{Reason: "scam"}), adminCaller), params)
		w := httptest.NewRecorder()
		h.BanMember(w, req)

		var resp BanResponse
		AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.True(t, resp.Member.IsBanned)
		assert.False(t, resp.CascadeComplete)
		assert.Equal(t, []string{models.CascadeStepMessagesSent}, resp.StepsCompleted)
		assert.Len(t, resp.Warnings, 1)
	})

	t.Run("unblock", func(t *testing.T) {
		req := WithURLParams(WithCaller(httptest.NewRequest(http.MethodPost, "/", nil), adminCaller), params)
		w := httptest.NewRecorder()
		h.UnblockMember(w, req)

		var resp MemberResponse
		AssertJSONResponse(t, w, http.StatusOK, &resp)
		assert.True(t, resp.IsActive)
	})
}
