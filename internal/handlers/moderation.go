package handlers

import (
	"context"
	"net/http"

	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/internal/services"
	pkghttp "github.com/BradenHooton/mithaq/pkg/http"
)

// ModerationServiceInterface defines the report lifecycle and enforcement operations
type ModerationServiceInterface interface {
	CreateReport(ctx context.Context, caller models.CallerContext, in services.ReportInput) (*models.Report, error)
	ListReports(ctx context.Context, caller models.CallerContext, status models.ReportStatus, limit, offset int) ([]*models.Report, error)
	InvestigateReport(ctx context.Context, caller models.CallerContext, reportID string, severity models.ReportSeverity) (*models.Report, error)
	ApproveReport(ctx context.Context, caller models.CallerContext, reportID string, in services.ResolveInput) (*models.Report, error)
	DismissReport(ctx context.Context, caller models.CallerContext, reportID, resolution string) (*models.Report, error)
	SuspendMember(ctx context.Context, caller models.CallerContext, memberID, reason string, durationDays int) (*models.Member, error)
	WarnMember(ctx context.Context, caller models.CallerContext, memberID, reason string) (*models.Member, error)
	BanMember(ctx context.Context, caller models.CallerContext, memberID, reason string) (*services.BanResult, error)
	UnblockMember(ctx context.Context, caller models.CallerContext, memberID string) (*models.Member, error)
}

// ModerationHandler handles reports and member enforcement
type ModerationHandler struct {
	service ModerationServiceInterface
}

// NewModerationHandler creates a new ModerationHandler
func NewModerationHandler(service ModerationServiceInterface) *ModerationHandler {
	return &ModerationHandler{service: service}
}

// CreateReportRequest represents the request body for filing a report
type CreateReportRequest struct {
	ReportedUserID string   `json:"reportedUserId" validate:"required,uuid"`
	Type           string   `json:"type" validate:"required,oneof=harassment spam inappropriate_content fake_profile scam other"`
	Description    string   `json:"description" validate:"required,max=2000"`
	Evidence       []string `json:"evidence" validate:"max=10,dive,max=2048"`
	Severity       string   `json:"severity" validate:"omitempty,oneof=low medium high"`
}

// InvestigateReportRequest optionally reclassifies severity
type InvestigateReportRequest struct {
	Severity string `json:"severity" validate:"omitempty,oneof=low medium high"`
}

// ApproveReportRequest represents the request body for resolving a report
type ApproveReportRequest struct {
	Resolution   string `json:"resolution" validate:"required,max=2000"`
	Action       string `json:"action" validate:"omitempty,oneof=warning temporary_ban permanent_ban none"`
	DurationDays int    `json:"durationDays" validate:"gte=0,lte=365"`
}

// DismissReportRequest represents the request body for dismissing a report
type DismissReportRequest struct {
	Resolution string `json:"resolution" validate:"required,max=2000"`
}

// SuspendMemberRequest represents the request body for suspending a member
type SuspendMemberRequest struct {
	Reason       string `json:"reason" validate:"required,max=500"`
	DurationDays int    `json:"durationDays" validate:"required,gte=1,lte=365"`
}

// ReasonRequest carries a reason for warn and ban
type ReasonRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// CreateReport handles POST /reports
func (h *ModerationHandler) CreateReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req CreateReportRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rep, err := h.service.CreateReport(r.Context(), caller, services.ReportInput{
		ReportedUserID: req.ReportedUserID,
		Type:           req.Type,
		Description:    req.Description,
		Evidence:       req.Evidence,
		Severity:       models.ReportSeverity(req.Severity),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusCreated, reportToResponse(rep))
}

// ListReports handles GET /admin/reports
func (h *ModerationHandler) ListReports(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}

	status := models.ReportStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.ReportStatusPending, models.ReportStatusInvestigating, models.ReportStatusResolved, models.ReportStatusDismissed:
	default:
		pkghttp.WriteBadRequest(w, "invalid status filter")
		return
	}

	limit, offset := pagination(r)
	reports, err := h.service.ListReports(r.Context(), caller, status, limit, offset)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, map[string]any{
		"reports": mapSlice(reports, reportToResponse),
		"limit":   limit,
		"offset":  offset,
	})
}

// InvestigateReport handles POST /admin/reports/{id}/investigate
func (h *ModerationHandler) InvestigateReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req InvestigateReportRequest
	if r.ContentLength != 0 && !decodeAndValidate(w, r, &req) {
		return
	}

	rep, err := h.service.InvestigateReport(r.Context(), caller, id, models.ReportSeverity(req.Severity))
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, reportToResponse(rep))
}

// ApproveReport handles POST /admin/reports/{id}/approve
func (h *ModerationHandler) ApproveReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req ApproveReportRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rep, err := h.service.ApproveReport(r.Context(), caller, id, services.ResolveInput{
		Resolution:   req.Resolution,
		Action:       models.ReportAction(req.Action),
		DurationDays: req.DurationDays,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, reportToResponse(rep))
}

// DismissReport handles POST /admin/reports/{id}/dismiss
func (h *ModerationHandler) DismissReport(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req DismissReportRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	rep, err := h.service.DismissReport(r.Context(), caller, id, req.Resolution)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, reportToResponse(rep))
}

// SuspendMember handles POST /admin/members/{id}/suspend
func (h *ModerationHandler) SuspendMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req SuspendMemberRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	member, err := h.service.SuspendMember(r.Context(), caller, id, req.Reason, req.DurationDays)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, memberToResponse(member))
}

// WarnMember handles POST /admin/members/{id}/warn
func (h *ModerationHandler) WarnMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req ReasonRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	member, err := h.service.WarnMember(r.Context(), caller, id, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, memberToResponse(member))
}

// BanMember handles POST /admin/members/{id}/ban. Cascade failures are
// reported as warnings on a 200.
func (h *ModerationHandler) BanMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req ReasonRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.BanMember(r.Context(), caller, id, req.Reason)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := BanResponse{
		Member:         memberToResponse(result.Member),
		StepsCompleted: []string{},
		Warnings:       result.Warnings,
	}
	if result.Cascade != nil {
		resp.CascadeComplete = result.Cascade.IsComplete()
		if result.Cascade.StepsCompleted != nil {
			resp.StepsCompleted = result.Cascade.StepsCompleted
		}
	}
	pkghttp.WriteJSON(w, http.StatusOK, resp)
}

// UnblockMember handles POST /admin/members/{id}/unblock
func (h *ModerationHandler) UnblockMember(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerOrUnauthorized(w, r)
	if !ok {
		return
	}
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	member, err := h.service.UnblockMember(r.Context(), caller, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, memberToResponse(member))
}
