package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/BradenHooton/mithaq/internal/metrics"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/internal/realtime"
	"github.com/BradenHooton/mithaq/internal/repositories"
)

// ConversationStore owns conversations
type ConversationStore interface {
	GetOrCreate(ctx context.Context, memberA, memberB string, approvedByWali bool) (*models.Conversation, bool, error)
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	ListByMember(ctx context.Context, memberID string, limit, offset int) ([]*models.Conversation, error)
	RefreshLastMessage(ctx context.Context, id string) error
}

// MessageStore owns messages
type MessageStore interface {
	Append(ctx context.Context, msg *models.Message, preview string, check repositories.PriorCountCheck) (*models.Message, error)
	GetByID(ctx context.Context, id string) (*models.Message, error)
	ListByConversation(ctx context.Context, conversationID string, limit, offset int) ([]*models.Message, error)
	MarkRead(ctx context.Context, conversationID, readerID string, at time.Time) (int64, error)
	SetBlocked(ctx context.Context, id string, blocked bool, reason *string) (*models.Message, error)
	SoftDelete(ctx context.Context, id string) (*models.Message, error)
}

// MessageNotifier is told about every persisted message
type MessageNotifier interface {
	NotifyNewMessage(conv *models.Conversation, senderID, text string)
}

// EventPublisher fans conversation events out to live sessions
type EventPublisher interface {
	Publish(ctx context.Context, conversationID string, event realtime.Event) error
}

// MessagingService runs the send path (gate, screen, store, notify) and the
// conversation lifecycle
type MessagingService struct {
	members       MemberReader
	guardians     ActiveGuardianFinder
	conversations ConversationStore
	messages      MessageStore
	gate          *MessagingGate
	notifier      MessageNotifier
	events        EventPublisher
	audit         AuditRecorder
	maxLength     int
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

// MessagingDeps groups the collaborators of MessagingService
type MessagingDeps struct {
	Members       MemberReader
	Guardians     ActiveGuardianFinder
	Conversations ConversationStore
	Messages      MessageStore
	Gate          *MessagingGate
	Notifier      MessageNotifier
	Events        EventPublisher
	Audit         AuditRecorder
}

func NewMessagingService(deps MessagingDeps, maxLength int, m *metrics.Metrics, logger *slog.Logger) *MessagingService {
	return &MessagingService{
		members:       deps.Members,
		guardians:     deps.Guardians,
		conversations: deps.Conversations,
		messages:      deps.Messages,
		gate:          deps.Gate,
		notifier:      deps.Notifier,
		events:        deps.Events,
		audit:         deps.Audit,
		maxLength:     maxLength,
		metrics:       m,
		logger:        logger,
	}
}

// authorizeSender loads the caller and applies the guardian gate.
func (s *MessagingService) authorizeSender(ctx context.Context, caller models.CallerContext) (*models.Member, error) {
	if caller.IsGuardian() {
		return nil, models.ErrForbidden
	}

	sender, err := s.members.GetByID(ctx, caller.MemberID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrUnauthorized
		}
		s.logger.Error("failed to load sender", slog.String("member_id", caller.MemberID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if err := s.gate.Authorize(ctx, sender); err != nil {
		return nil, err
	}
	return sender, nil
}

// StartConversation returns the conversation between the caller and
// participantID, creating it on first contact.
func (s *MessagingService) StartConversation(ctx context.Context, caller models.CallerContext, participantID string) (*models.Conversation, error) {
	if participantID == "" {
		return nil, models.NewValidationError("participantId is required")
	}
	if participantID == caller.MemberID {
		return nil, models.NewValidationError("cannot start a conversation with yourself")
	}

	sender, err := s.authorizeSender(ctx, caller)
	if err != nil {
		return nil, err
	}

	participant, err := s.members.GetByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("failed to load participant", slog.String("member_id", participantID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if participant.IsBanned {
		return nil, models.ErrNotFound
	}

	approved, err := s.guardiansApprove(ctx, sender, participant)
	if err != nil {
		return nil, err
	}

	conv, created, err := s.conversations.GetOrCreate(ctx, sender.ID, participant.ID, approved)
	if err != nil {
		s.logger.Error("failed to get or create conversation", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if created {
		s.logger.Info("conversation created", slog.String("conversation_id", conv.ID))
	}
	return conv, nil
}

// guardiansApprove reports whether every female participant has an active guardian.
func (s *MessagingService) guardiansApprove(ctx context.Context, members ...*models.Member) (bool, error) {
	for _, m := range members {
		if m.Gender != models.GenderFemale {
			continue
		}
		g, err := s.guardians.FindActive(ctx, m.ID)
		if errors.Is(err, models.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			s.logger.Error("failed to resolve guardian", slog.String("member_id", m.ID), slog.Any("error", err))
			return false, models.ErrInternalServer
		}
		if !g.IsServiceActive() {
			return false, nil
		}
	}
	return true, nil
}

// SendMessage authorizes the caller, screens text and appends the message.
// The guardian notification and live event are emitted after the write and
// never affect the result.
func (s *MessagingService) SendMessage(ctx context.Context, caller models.CallerContext, conversationID, text string) (*models.Message, error) {
	start := time.Now()

	text = strings.TrimSpace(text)
	if conversationID == "" {
		return nil, models.NewValidationError("conversationId is required")
	}
	if text == "" {
		return nil, models.NewValidationError("text is required")
	}
	if utf8.RuneCountInString(text) > s.maxLength {
		return nil, models.NewValidationError("text must be at most %d characters", s.maxLength)
	}

	sender, err := s.authorizeSender(ctx, caller)
	if err != nil {
		return nil, err
	}

	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, lookupError(s.logger, err, "conversation", conversationID)
	}
	if !conv.HasParticipant(sender.ID) {
		return nil, models.NewNotParticipantError()
	}

	msg, err := s.messages.Append(ctx, &models.Message{
		ConversationID: conv.ID,
		SenderID:       sender.ID,
		Text:           text,
	}, Preview(text), s.gate.Screen(text))
	if err != nil {
		if _, ok := models.AsPolicyError(err); ok {
			return nil, err
		}
		s.logger.Error("failed to append message", slog.String("conversation_id", conv.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.metrics.IncMessagesSent()
	s.metrics.ObserveSendLatency(time.Since(start))

	s.notifier.NotifyNewMessage(conv, sender.ID, text)
	s.publish(ctx, realtime.EventMessageCreated, msg)

	return msg, nil
}

// ListConversations returns the caller's conversations, most recent activity first.
func (s *MessagingService) ListConversations(ctx context.Context, caller models.CallerContext, limit, offset int) ([]*models.Conversation, error) {
	convs, err := s.conversations.ListByMember(ctx, caller.MemberID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list conversations", slog.String("member_id", caller.MemberID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return convs, nil
}

// FetchMessages returns a page of messages, newest first. For participants it
// also marks the other participant's messages read. Staff may read any
// conversation without changing read state.
func (s *MessagingService) FetchMessages(ctx context.Context, caller models.CallerContext, conversationID string, limit, offset int) ([]*models.Message, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, lookupError(s.logger, err, "conversation", conversationID)
	}

	participant := conv.HasParticipant(caller.MemberID) && !caller.IsGuardian()
	if !participant && !caller.IsStaff() {
		return nil, models.NewNotParticipantError()
	}

	if participant {
		now := time.Now().UTC()
		n, err := s.messages.MarkRead(ctx, conv.ID, caller.MemberID, now)
		if err != nil {
			s.logger.Error("failed to mark messages read", slog.String("conversation_id", conv.ID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		if n > 0 {
			s.emit(ctx, conv.ID, realtime.Event{
				Type:           realtime.EventConversationRead,
				ConversationID: conv.ID,
				ReaderID:       caller.MemberID,
				At:             now,
			})
		}
	}

	msgs, err := s.messages.ListByConversation(ctx, conv.ID, limit, offset)
	if err != nil {
		s.logger.Error("failed to list messages", slog.String("conversation_id", conv.ID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return msgs, nil
}

// LiveConversation authorizes a live session on conversationID. Only
// participants may subscribe.
func (s *MessagingService) LiveConversation(ctx context.Context, caller models.CallerContext, conversationID string) (*models.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, lookupError(s.logger, err, "conversation", conversationID)
	}
	if !conv.HasParticipant(caller.MemberID) || caller.IsGuardian() {
		return nil, models.NewNotParticipantError()
	}
	return conv, nil
}

// DeleteMessage redacts one of the caller's own messages.
func (s *MessagingService) DeleteMessage(ctx context.Context, caller models.CallerContext, messageID string) (*models.Message, error) {
	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, lookupError(s.logger, err, "message", messageID)
	}
	if msg.SenderID != caller.MemberID || caller.IsGuardian() {
		return nil, models.ErrForbidden
	}
	if msg.IsDeleted() {
		return msg, nil
	}

	msg, err = s.messages.SoftDelete(ctx, messageID)
	if err != nil {
		return nil, lookupError(s.logger, err, "message", messageID)
	}

	s.refreshPreview(ctx, msg.ConversationID)
	s.publish(ctx, realtime.EventMessageUpdated, msg)
	return msg, nil
}

// ModerateMessage blocks or unblocks a message. Staff only.
func (s *MessagingService) ModerateMessage(ctx context.Context, caller models.CallerContext, messageID string, blocked bool, reason string) (*models.Message, error) {
	if !caller.IsStaff() {
		return nil, models.ErrForbidden
	}
	if reason == models.BlockReasonDeletedBySender {
		return nil, models.NewValidationError("reason %q is reserved", reason)
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		return nil, lookupError(s.logger, err, "message", messageID)
	}
	if msg.IsDeleted() {
		return nil, models.ErrConflict
	}

	var reasonPtr *string
	if blocked && reason != "" {
		reasonPtr = &reason
	}

	msg, err = s.messages.SetBlocked(ctx, messageID, blocked, reasonPtr)
	if err != nil {
		return nil, lookupError(s.logger, err, "message", messageID)
	}

	action := models.AuditActionBlock
	if !blocked {
		action = models.AuditActionUnblockMsg
	}
	s.audit.Record(ctx, AuditEntry{
		EventType:    models.AuditEventMessage,
		Action:       action,
		ActorID:      caller.MemberID,
		TargetID:     msg.SenderID,
		ResourceType: models.AuditResourceMessage,
		ResourceID:   msg.ID,
		Success:      true,
		Metadata:     models.NewEnforcementMetadata(reason, 0, "", nil),
	})
	s.metrics.IncModerationAction(action)

	s.refreshPreview(ctx, msg.ConversationID)
	s.publish(ctx, realtime.EventMessageUpdated, msg)
	return msg, nil
}

func (s *MessagingService) refreshPreview(ctx context.Context, conversationID string) {
	if err := s.conversations.RefreshLastMessage(ctx, conversationID); err != nil {
		s.logger.Error("failed to refresh conversation preview",
			slog.String("conversation_id", conversationID),
			slog.Any("error", err))
	}
}

func (s *MessagingService) publish(ctx context.Context, kind realtime.EventType, msg *models.Message) {
	s.emit(ctx, msg.ConversationID, realtime.Event{
		Type:           kind,
		ConversationID: msg.ConversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		Text:           msg.DisplayText(),
		IsBlocked:      msg.IsBlocked,
		At:             msg.CreatedAt,
	})
}

func (s *MessagingService) emit(ctx context.Context, conversationID string, event realtime.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, conversationID, event); err != nil {
		s.logger.Warn("failed to publish live event",
			slog.String("conversation_id", conversationID),
			slog.String("type", string(event.Type)),
			slog.Any("error", err))
	}
}
