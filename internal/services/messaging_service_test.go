package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/mithaq/internal/metrics"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/internal/realtime"
	"github.com/BradenHooton/mithaq/internal/repositories"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type messagingFixture struct {
	members       *MockMemberStore
	guardians     *MockGuardianStore
	conversations *MockConversationStore
	messages      *MockMessageStore
	notifier      *MockNotifier
	events        *MockEventPublisher
	audit         *MockAuditRecorder
	metrics       *metrics.Metrics
	svc           *MessagingService
}

var (
	brother = &models.Member{ID: "a-brother", Name: "Bilal", Gender: models.GenderMale, Role: models.RoleSeeker, IsActive: true}
	sister  = &models.Member{ID: "b-sister", Name: "Khadija", Gender: models.GenderFemale, Role: models.RoleSeeker, IsActive: true}
	mod     = &models.Member{ID: "c-mod", Gender: models.GenderMale, Role: models.RoleModerator, IsActive: true}
	admin   = &models.Member{ID: "d-admin", Gender: models.GenderMale, Role: models.RoleAdmin, IsActive: true}
)

func callerOf(m *models.Member) models.CallerContext {
	return models.CallerContext{MemberID: m.ID, Role: m.Role}
}

func newMessagingFixture(guardians ...*models.Guardian) *messagingFixture {
	f := &messagingFixture{
		members:   &MockMemberStore{GetByIDFunc: membersByID(brother, sister, mod, admin)},
		guardians: &MockGuardianStore{FindActiveFunc: activeGuardians(guardians...)},
		conversations: &MockConversationStore{
			GetByIDFunc: func(_ context.Context, id string) (*models.Conversation, error) {
				if id != "conv-1" {
					return nil, models.ErrNotFound
				}
				return &models.Conversation{ID: "conv-1", ParticipantLow: brother.ID, ParticipantHigh: sister.ID}, nil
			},
		},
		messages: &MockMessageStore{},
		notifier: &MockNotifier{},
		events:   &MockEventPublisher{},
		audit:    &MockAuditRecorder{},
		metrics:  metrics.New(prometheus.NewRegistry()),
	}

	logger := testLogger()
	gate := NewMessagingGate(f.guardians, 3, f.metrics, logger)
	f.svc = NewMessagingService(MessagingDeps{
		Members:       f.members,
		Guardians:     f.guardians,
		Conversations: f.conversations,
		Messages:      f.messages,
		Gate:          gate,
		Notifier:      f.notifier,
		Events:        f.events,
		Audit:         f.audit,
	}, 2000, f.metrics, logger)
	return f
}

func TestMessagingService_StartConversation(t *testing.T) {
	ctx := context.Background()

	t.Run("approved when every female participant has an active guardian", func(t *testing.T) {
		f := newMessagingFixture(approvedGuardian(sister.ID))

		conv, err := f.svc.StartConversation(ctx, callerOf(brother), sister.ID)

		require.NoError(t, err)
		assert.True(t, conv.IsApprovedByWali)
		assert.True(t, conv.HasParticipant(brother.ID))
		assert.True(t, conv.HasParticipant(sister.ID))
	})

	t.Run("female initiator without guardian is denied", func(t *testing.T) {
		f := newMessagingFixture()

		_, err := f.svc.StartConversation(ctx, callerOf(sister), brother.ID)

		pe, ok := models.AsPolicyError(err)
		require.True(t, ok)
		assert.Equal(t, models.CodeNoValidMahram, pe.Code)
	})

	t.Run("male to unsupervised female is created but not approved", func(t *testing.T) {
		f := newMessagingFixture()

		conv, err := f.svc.StartConversation(ctx, callerOf(brother), sister.ID)

		require.NoError(t, err)
		assert.False(t, conv.IsApprovedByWali)
	})

	t.Run("validation", func(t *testing.T) {
		f := newMessagingFixture()

		_, err := f.svc.StartConversation(ctx, callerOf(brother), brother.ID)
		assert.ErrorIs(t, err, models.ErrBadRequest)

		_, err = f.svc.StartConversation(ctx, callerOf(brother), "")
		assert.ErrorIs(t, err, models.ErrBadRequest)

		_, err = f.svc.StartConversation(ctx, callerOf(brother), "nobody")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("same pair yields same conversation", func(t *testing.T) {
		f := newMessagingFixture(approvedGuardian(sister.ID))
		var pairs [][2]string
		f.conversations.GetOrCreateFunc = func(_ context.Context, a, b string, approved bool) (*models.Conversation, bool, error) {
			low, high := models.CanonicalPair(a, b)
			pairs = append(pairs, [2]string{low, high})
			return &models.Conversation{ID: "conv-1", ParticipantLow: low, ParticipantHigh: high}, len(pairs) == 1, nil
		}

		first, err := f.svc.StartConversation(ctx, callerOf(brother), sister.ID)
		require.NoError(t, err)
		second, err := f.svc.StartConversation(ctx, callerOf(sister), brother.ID)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, pairs[0], pairs[1])
	})
}

func TestMessagingService_SendMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("clean message is stored, notified and published", func(t *testing.T) {
		f := newMessagingFixture(approvedGuardian(sister.ID))
		var gotPreview string
		f.messages.AppendFunc = func(_ context.Context, msg *models.Message, preview string, check repositories.PriorCountCheck) (*models.Message, error) {
			gotPreview = preview
			require.NoError(t, check(0))
			msg.ID = "msg-1"
			return msg, nil
		}

		msg, err := f.svc.SendMessage(ctx, callerOf(brother), "conv-1", "  Assalamu alaykum  ")

		require.NoError(t, err)
		assert.Equal(t, "Assalamu alaykum", msg.Text)
		assert.Equal(t, brother.ID, msg.SenderID)
		assert.Equal(t, "Assalamu alaykum", gotPreview)
		assert.Equal(t, []string{NotificationNewMessage}, f.notifier.Calls)
		require.Len(t, f.events.Events, 1)
		assert.Equal(t, realtime.EventMessageCreated, f.events.Events[0].Type)
		assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.MessagesSent))
	})

	t.Run("contact details blocked during the first messages", func(t *testing.T) {
		f := newMessagingFixture(approvedGuardian(sister.ID))
		f.messages.PriorCount = 1

		_, err := f.svc.SendMessage(ctx, callerOf(brother), "conv-1", "message me on whatsapp")

		pe, ok := models.AsPolicyError(err)
		require.True(t, ok)
		assert.Equal(t, models.CodeContentBlocked, pe.Code)
		assert.Equal(t, []string{"whatsapp"}, pe.BlockedContent)
		assert.Equal(t, 2, pe.MessagesRemaining)
		assert.Empty(t, f.notifier.Calls)
		assert.Empty(t, f.events.Events)
	})

	t.Run("contact details allowed after the threshold", func(t *testing.T) {
		f := newMessagingFixture(approvedGuardian(sister.ID))
		f.messages.PriorCount = 3

		_, err := f.svc.SendMessage(ctx, callerOf(brother), "conv-1", "message me on whatsapp")

		assert.NoError(t, err)
	})

	t.Run("female sender loses guardian mid-conversation", func(t *testing.T) {
		f := newMessagingFixture()

		_, err := f.svc.SendMessage(ctx, callerOf(sister), "conv-1", "hello")

		pe, ok := models.AsPolicyError(err)
		require.True(t, ok)
		assert.Equal(t, models.CodeNoValidMahram, pe.Code)
	})

	t.Run("non participant", func(t *testing.T) {
		f := newMessagingFixture()

		_, err := f.svc.SendMessage(ctx, callerOf(mod), "conv-1", "hello")

		pe, ok := models.AsPolicyError(err)
		require.True(t, ok)
		assert.Equal(t, models.CodeNotParticipant, pe.Code)
	})

	t.Run("validation", func(t *testing.T) {
		f := newMessagingFixture()

		_, err := f.svc.SendMessage(ctx, callerOf(brother), "conv-1", "   ")
		assert.ErrorIs(t, err, models.ErrBadRequest)

		_, err = f.svc.SendMessage(ctx, callerOf(brother), "conv-1", strings.Repeat("a", 2001))
		assert.ErrorIs(t, err, models.ErrBadRequest)

		_, err = f.svc.SendMessage(ctx, callerOf(brother), "missing", "hello")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("guardian sessions cannot send", func(t *testing.T) {
		f := newMessagingFixture(approvedGuardian(sister.ID))
		caller := models.CallerContext{MemberID: sister.ID, Role: models.RoleGuardian, GuardianID: "g"}

		_, err := f.svc.SendMessage(ctx, caller, "conv-1", "hello")

		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("storage failure is internal", func(t *testing.T) {
		f := newMessagingFixture()
		f.messages.AppendFunc = func(context.Context, *models.Message, string, repositories.PriorCountCheck) (*models.Message, error) {
			return nil, errors.New("deadlock")
		}

		_, err := f.svc.SendMessage(ctx, callerOf(brother), "conv-1", "hello")

		assert.ErrorIs(t, err, models.ErrInternalServer)
		assert.Empty(t, f.notifier.Calls)
	})
}

func TestMessagingService_FetchMessages(t *testing.T) {
	ctx := context.Background()

	t.Run("participant marks read and emits read event", func(t *testing.T) {
		f := newMessagingFixture()
		var reader string
		f.messages.MarkReadFunc = func(_ context.Context, _ string, readerID string, _ time.Time) (int64, error) {
			reader = readerID
			return 2, nil
		}
		f.messages.ListByConversationFunc = func(context.Context, string, int, int) ([]*models.Message, error) {
			return []*models.Message{{ID: "m2"}, {ID: "m1"}}, nil
		}

		msgs, err := f.svc.FetchMessages(ctx, callerOf(sister), "conv-1", 50, 0)

		require.NoError(t, err)
		assert.Len(t, msgs, 2)
		assert.Equal(t, sister.ID, reader)
		require.Len(t, f.events.Events, 1)
		assert.Equal(t, realtime.EventConversationRead, f.events.Events[0].Type)
	})

	t.Run("staff read without marking", func(t *testing.T) {
		f := newMessagingFixture()
		f.messages.MarkReadFunc = func(context.Context, string, string, time.Time) (int64, error) {
			t.Fatal("staff must not mark messages read")
			return 0, nil
		}

		_, err := f.svc.FetchMessages(ctx, callerOf(mod), "conv-1", 50, 0)

		assert.NoError(t, err)
	})

	t.Run("outsider denied", func(t *testing.T) {
		f := newMessagingFixture()
		outsider := models.CallerContext{MemberID: "e-other", Role: models.RoleSeeker}

		_, err := f.svc.FetchMessages(ctx, outsider, "conv-1", 50, 0)

		pe, ok := models.AsPolicyError(err)
		require.True(t, ok)
		assert.Equal(t, models.CodeNotParticipant, pe.Code)
	})
}

func TestMessagingService_DeleteMessage(t *testing.T) {
	ctx := context.Background()
	reserved := models.BlockReasonDeletedBySender

	f := newMessagingFixture()
	f.messages.GetByIDFunc = func(_ context.Context, id string) (*models.Message, error) {
		return &models.Message{ID: id, ConversationID: "conv-1", SenderID: brother.ID, Text: "oops"}, nil
	}
	f.messages.SoftDeleteFunc = func(_ context.Context, id string) (*models.Message, error) {
		return &models.Message{ID: id, ConversationID: "conv-1", SenderID: brother.ID, IsBlocked: true, BlockReason: &reserved}, nil
	}
	refreshed := 0
	f.conversations.RefreshLastMessageFunc = func(context.Context, string) error {
		refreshed++
		return nil
	}

	_, err := f.svc.DeleteMessage(ctx, callerOf(sister), "m1")
	assert.ErrorIs(t, err, models.ErrForbidden)

	msg, err := f.svc.DeleteMessage(ctx, callerOf(brother), "m1")
	require.NoError(t, err)
	assert.True(t, msg.IsDeleted())
	assert.Equal(t, 1, refreshed)
	require.Len(t, f.events.Events, 1)
	assert.Equal(t, models.DeletedMessagePlaceholder, f.events.Events[0].Text)
}

func TestMessagingService_ModerateMessage(t *testing.T) {
	ctx := context.Background()

	newFixture := func() *messagingFixture {
		f := newMessagingFixture()
		f.messages.GetByIDFunc = func(_ context.Context, id string) (*models.Message, error) {
			return &models.Message{ID: id, ConversationID: "conv-1", SenderID: brother.ID, Text: "rude"}, nil
		}
		f.messages.SetBlockedFunc = func(_ context.Context, id string, blocked bool, reason *string) (*models.Message, error) {
			return &models.Message{ID: id, ConversationID: "conv-1", SenderID: brother.ID, Text: "rude", IsBlocked: blocked, BlockReason: reason}, nil
		}
		return f
	}

	t.Run("moderator blocks", func(t *testing.T) {
		f := newFixture()

		msg, err := f.svc.ModerateMessage(ctx, callerOf(mod), "m1", true, "abusive")

		require.NoError(t, err)
		assert.True(t, msg.IsBlocked)
		assert.Equal(t, []string{models.AuditActionBlock}, f.audit.Actions())
		require.Len(t, f.events.Events, 1)
		assert.Equal(t, models.BlockedMessagePlaceholder, f.events.Events[0].Text)
	})

	t.Run("seeker forbidden", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ModerateMessage(ctx, callerOf(brother), "m1", true, "x")
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("reserved reason rejected", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ModerateMessage(ctx, callerOf(mod), "m1", true, models.BlockReasonDeletedBySender)
		assert.ErrorIs(t, err, models.ErrBadRequest)
	})

	t.Run("deleted message cannot be moderated", func(t *testing.T) {
		f := newFixture()
		reserved := models.BlockReasonDeletedBySender
		f.messages.GetByIDFunc = func(_ context.Context, id string) (*models.Message, error) {
			return &models.Message{ID: id, IsBlocked: true, BlockReason: &reserved}, nil
		}

		_, err := f.svc.ModerateMessage(ctx, callerOf(mod), "m1", false, "")
		assert.ErrorIs(t, err, models.ErrConflict)
	})
}

func TestMessagingService_LiveConversation(t *testing.T) {
	ctx := context.Background()
	f := newMessagingFixture()

	conv, err := f.svc.LiveConversation(ctx, callerOf(sister), "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv.ID)

	_, err = f.svc.LiveConversation(ctx, callerOf(mod), "conv-1")
	var pe *models.PolicyError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, models.CodeNotParticipant, pe.Code)

	guardian := models.CallerContext{MemberID: sister.ID, Role: models.RoleGuardian, GuardianID: "g1"}
	_, err = f.svc.LiveConversation(ctx, guardian, "conv-1")
	assert.ErrorIs(t, err, models.ErrForbidden)

	_, err = f.svc.LiveConversation(ctx, callerOf(brother), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}
