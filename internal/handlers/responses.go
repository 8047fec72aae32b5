package handlers

import (
	"time"

	"github.com/BradenHooton/mithaq/internal/models"
)

// Response DTOs. Timestamps are RFC 3339 in UTC.

type MemberResponse struct {
	ID           string            `json:"id"`
	Email        string            `json:"email,omitempty"`
	Name         string            `json:"name"`
	Gender       string            `json:"gender"`
	Role         string            `json:"role"`
	IsActive     bool              `json:"isActive"`
	IsBanned     bool              `json:"isBanned"`
	SuspendUntil *string           `json:"suspendUntil,omitempty"`
	Warnings     []WarningResponse `json:"warnings,omitempty"`
}

type WarningResponse struct {
	Reason   string `json:"reason"`
	IssuedBy string `json:"issuedBy"`
	IssuedAt string `json:"issuedAt"`
}

type SessionResponse struct {
	AccessToken string          `json:"accessToken"`
	ExpiresAt   string          `json:"expiresAt"`
	Member      *MemberResponse `json:"member,omitempty"`
}

type ConversationResponse struct {
	ID               string   `json:"id"`
	Participants     []string `json:"participants"`
	LastMessage      string   `json:"lastMessage"`
	LastMessageAt    *string  `json:"lastMessageAt,omitempty"`
	IsApprovedByWali bool     `json:"isApprovedByWali"`
	CreatedAt        string   `json:"createdAt"`
}

type MessageResponse struct {
	ID             string  `json:"id"`
	ConversationID string  `json:"conversationId"`
	SenderID       string  `json:"senderId"`
	Text           string  `json:"text"`
	IsBlocked      bool    `json:"isBlocked"`
	IsDeleted      bool    `json:"isDeleted"`
	IsRead         bool    `json:"isRead"`
	ReadAt         *string `json:"readAt,omitempty"`
	CreatedAt      string  `json:"createdAt"`
}

// ModeratedMessageResponse exposes stored text and block reason to staff.
type ModeratedMessageResponse struct {
	MessageResponse
	OriginalText string  `json:"originalText"`
	BlockReason  *string `json:"blockReason,omitempty"`
}

type ReportResponse struct {
	ID             string   `json:"id"`
	ReporterID     string   `json:"reporterId"`
	ReportedUserID string   `json:"reportedUserId"`
	Type           string   `json:"type"`
	Description    string   `json:"description"`
	Evidence       []string `json:"evidence"`
	Status         string   `json:"status"`
	Severity       string   `json:"severity"`
	Resolution     string   `json:"resolution,omitempty"`
	ActionTaken    string   `json:"actionTaken,omitempty"`
	ReviewedBy     *string  `json:"reviewedBy,omitempty"`
	ReviewedAt     *string  `json:"reviewedAt,omitempty"`
	CreatedAt      string   `json:"createdAt"`
}

type BanResponse struct {
	Member          *MemberResponse `json:"member"`
	CascadeComplete bool            `json:"cascadeComplete"`
	StepsCompleted  []string        `json:"stepsCompleted"`
	Warnings        []string        `json:"warnings,omitempty"`
}

type LikeResponse struct {
	ID             string `json:"id"`
	From           string `json:"from"`
	To             string `json:"to"`
	MutualMatch    bool   `json:"mutualMatch"`
	ApprovedByWali *bool  `json:"approvedByWali"`
	CreatedAt      string `json:"createdAt"`
}

type GuardianResponse struct {
	ID                   string  `json:"id"`
	UserID               string  `json:"userId"`
	Name                 string  `json:"name"`
	Email                string  `json:"email"`
	Relationship         string  `json:"relationship"`
	Type                 string  `json:"type"`
	Status               string  `json:"status"`
	HasAccessToDashboard bool    `json:"hasAccessToDashboard"`
	PlatformServicePaid  bool    `json:"platformServicePaid"`
	NotifyOnNewMessage   bool    `json:"notifyOnNewMessage"`
	HasAuthenticator     bool    `json:"hasAuthenticator"`
	ReviewedAt           *string `json:"reviewedAt,omitempty"`
	CreatedAt            string  `json:"createdAt"`
}

type AuditLogResponse struct {
	ID            string         `json:"id"`
	EventType     string         `json:"eventType"`
	ActorID       *string        `json:"actorId,omitempty"`
	TargetID      *string        `json:"targetId,omitempty"`
	ResourceType  *string        `json:"resourceType,omitempty"`
	ResourceID    *string        `json:"resourceId,omitempty"`
	Action        string         `json:"action"`
	Success       bool           `json:"success"`
	FailureReason *string        `json:"failureReason,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     string         `json:"createdAt"`
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func memberToResponse(m *models.Member) *MemberResponse {
	if m == nil {
		return nil
	}
	resp := &MemberResponse{
		ID:           m.ID,
		Email:        m.Email,
		Name:         m.Name,
		Gender:       string(m.Gender),
		Role:         string(m.Role),
		IsActive:     m.IsActive,
		IsBanned:     m.IsBanned,
		SuspendUntil: formatTimePtr(m.SuspendUntil),
	}
	for _, w := range m.Warnings {
		resp.Warnings = append(resp.Warnings, WarningResponse{Reason: w.Reason, IssuedBy: w.IssuedBy, IssuedAt: formatTime(w.CreatedAt)})
	}
	return resp
}

func conversationToResponse(c *models.Conversation) *ConversationResponse {
	return &ConversationResponse{
		ID:               c.ID,
		Participants:     []string{c.ParticipantLow, c.ParticipantHigh},
		LastMessage:      c.LastMessage,
		LastMessageAt:    formatTimePtr(c.LastMessageAt),
		IsApprovedByWali: c.IsApprovedByWali,
		CreatedAt:        formatTime(c.CreatedAt),
	}
}

// messageToResponse never exposes the stored text of blocked or deleted messages.
func messageToResponse(m *models.Message) *MessageResponse {
	return &MessageResponse{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Text:           m.DisplayText(),
		IsBlocked:      m.IsBlocked && !m.IsDeleted(),
		IsDeleted:      m.IsDeleted(),
		IsRead:         m.IsRead,
		ReadAt:         formatTimePtr(m.ReadAt),
		CreatedAt:      formatTime(m.CreatedAt),
	}
}

func moderatedMessageToResponse(m *models.Message) *ModeratedMessageResponse {
	return &ModeratedMessageResponse{
		MessageResponse: *messageToResponse(m),
		OriginalText:    m.Text,
		BlockReason:     m.BlockReason,
	}
}

func reportToResponse(r *models.Report) *ReportResponse {
	evidence := r.Evidence
	if evidence == nil {
		evidence = []string{}
	}
	return &ReportResponse{
		ID:             r.ID,
		ReporterID:     r.ReporterID,
		ReportedUserID: r.ReportedUserID,
		Type:           r.Type,
		Description:    r.Description,
		Evidence:       evidence,
		Status:         string(r.Status),
		Severity:       string(r.Severity),
		Resolution:     r.Resolution,
		ActionTaken:    string(r.ActionTaken),
		ReviewedBy:     r.ReviewedBy,
		ReviewedAt:     formatTimePtr(r.ReviewedAt),
		CreatedAt:      formatTime(r.CreatedAt),
	}
}

func likeToResponse(l *models.Like) *LikeResponse {
	return &LikeResponse{
		ID:             l.ID,
		From:           l.FromID,
		To:             l.ToID,
		MutualMatch:    l.MutualMatch,
		ApprovedByWali: l.ApprovedByWali,
		CreatedAt:      formatTime(l.CreatedAt),
	}
}

func guardianToResponse(g *models.Guardian) *GuardianResponse {
	return &GuardianResponse{
		ID:                   g.ID,
		UserID:               g.UserID,
		Name:                 g.Name,
		Email:                g.Email,
		Relationship:         g.Relationship,
		Type:                 string(g.Type),
		Status:               string(g.Status),
		HasAccessToDashboard: g.HasAccessToDashboard,
		PlatformServicePaid:  g.PlatformServicePaid,
		NotifyOnNewMessage:   g.NotifyOnNewMessage,
		HasAuthenticator:     g.HasAuthenticator(),
		ReviewedAt:           formatTimePtr(g.ReviewedAt),
		CreatedAt:            formatTime(g.CreatedAt),
	}
}

func auditLogToResponse(log *models.AuditLog) *AuditLogResponse {
	return &AuditLogResponse{
		ID:            log.ID,
		EventType:     log.EventType,
		ActorID:       log.ActorID,
		TargetID:      log.TargetID,
		ResourceType:  log.ResourceType,
		ResourceID:    log.ResourceID,
		Action:        log.Action,
		Success:       log.Success,
		FailureReason: log.FailureReason,
		Metadata:      log.Metadata,
		CreatedAt:     formatTime(log.CreatedAt),
	}
}

// mapSlice converts a slice of models with fn, never returning nil.
func mapSlice[T any, R any](in []T, fn func(T) R) []R {
	out := make([]R, 0, len(in))
	for _, v := range in {
		out = append(out, fn(v))
	}
	return out
}
