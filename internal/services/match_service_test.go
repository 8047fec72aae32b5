package services

import (
	"context"
	"testing"

	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type matchFixture struct {
	likes    *MockLikeStore
	notifier *MockNotifier
	audit    *MockAuditRecorder
	svc      *MatchService
}

func newMatchFixture(guardians ...*models.Guardian) *matchFixture {
	f := &matchFixture{
		likes:    &MockLikeStore{},
		notifier: &MockNotifier{},
		audit:    &MockAuditRecorder{},
	}
	f.svc = NewMatchService(
		&MockMemberStore{GetByIDFunc: membersByID(brother, sister, mod, admin)},
		&MockGuardianStore{FindActiveFunc: activeGuardians(guardians...)},
		f.likes, f.notifier, f.audit, testLogger(),
	)
	return f
}

func guardianCaller(g *models.Guardian) models.CallerContext {
	return models.CallerContext{MemberID: g.UserID, Role: models.RoleGuardian, GuardianID: g.ID}
}

func TestMatchService_CreateLike(t *testing.T) {
	ctx := context.Background()

	t.Run("reciprocal like makes both mutual", func(t *testing.T) {
		f := newMatchFixture()
		f.likes.CreateFunc = func(_ context.Context, from, to string, mutual bool) (*models.Like, bool, error) {
			return &models.Like{ID: "l2", FromID: from, ToID: to}, true, nil
		}
		f.likes.GetByPairFunc = func(_ context.Context, from, to string) (*models.Like, error) {
			if from == brother.ID && to == sister.ID {
				return &models.Like{ID: "l1", FromID: from, ToID: to}, nil
			}
			return nil, models.ErrNotFound
		}
		var mutual []string
		f.likes.SetMutualFunc = func(_ context.Context, id string) error {
			mutual = append(mutual, id)
			return nil
		}

		like, err := f.svc.CreateLike(ctx, callerOf(sister), brother.ID)

		require.NoError(t, err)
		assert.True(t, like.MutualMatch)
		assert.ElementsMatch(t, []string{"l1", "l2"}, mutual)
		assert.Empty(t, f.notifier.Calls)
	})

	t.Run("like to supervised female waits for guardian", func(t *testing.T) {
		f := newMatchFixture(approvedGuardian(sister.ID))
		f.likes.GetByPairFunc = func(context.Context, string, string) (*models.Like, error) {
			t.Fatal("reciprocal must not be checked while review is pending")
			return nil, nil
		}

		like, err := f.svc.CreateLike(ctx, callerOf(brother), sister.ID)

		require.NoError(t, err)
		assert.False(t, like.MutualMatch)
		assert.Equal(t, []string{NotificationIncomingLike}, f.notifier.Calls)
	})

	t.Run("duplicate like returns existing without notifying", func(t *testing.T) {
		f := newMatchFixture(approvedGuardian(sister.ID))
		f.likes.CreateFunc = func(_ context.Context, from, to string, _ bool) (*models.Like, bool, error) {
			return &models.Like{ID: "l1", FromID: from, ToID: to}, false, nil
		}

		like, err := f.svc.CreateLike(ctx, callerOf(brother), sister.ID)

		require.NoError(t, err)
		assert.Equal(t, "l1", like.ID)
		assert.Empty(t, f.notifier.Calls)
	})

	t.Run("validation", func(t *testing.T) {
		f := newMatchFixture()

		_, err := f.svc.CreateLike(ctx, callerOf(brother), brother.ID)
		assert.ErrorIs(t, err, models.ErrBadRequest)

		_, err = f.svc.CreateLike(ctx, callerOf(brother), "ghost")
		assert.ErrorIs(t, err, models.ErrNotFound)

		g := approvedGuardian(sister.ID)
		_, err = f.svc.CreateLike(ctx, guardianCaller(g), brother.ID)
		assert.ErrorIs(t, err, models.ErrForbidden)
	})
}

func TestMatchService_GuardianReview(t *testing.T) {
	ctx := context.Background()
	g := approvedGuardian(sister.ID)
	pending := &models.Like{ID: "l1", FromID: brother.ID, ToID: sister.ID}

	newFixture := func() *matchFixture {
		f := newMatchFixture(g)
		f.likes.GetByIDFunc = func(_ context.Context, id string) (*models.Like, error) {
			if id != pending.ID {
				return nil, models.ErrNotFound
			}
			cp := *pending
			return &cp, nil
		}
		approvals := 0
		f.likes.ApproveFunc = func(_ context.Context, id string) (*models.Like, bool, error) {
			approvals++
			approved := true
			return &models.Like{ID: id, FromID: brother.ID, ToID: sister.ID, MutualMatch: true, ApprovedByWali: &approved}, approvals == 1, nil
		}
		return f
	}

	t.Run("guardian lists pending likes for the ward", func(t *testing.T) {
		f := newFixture()
		var ward string
		f.likes.ListAwaitingGuardianFunc = func(_ context.Context, toID string) ([]*models.Like, error) {
			ward = toID
			return []*models.Like{pending}, nil
		}

		likes, err := f.svc.ListPendingLikes(ctx, guardianCaller(g))

		require.NoError(t, err)
		assert.Len(t, likes, 1)
		assert.Equal(t, sister.ID, ward)

		_, err = f.svc.ListPendingLikes(ctx, callerOf(sister))
		assert.ErrorIs(t, err, models.ErrForbidden)
	})

	t.Run("approve is idempotent and audited with the guardian as actor", func(t *testing.T) {
		f := newFixture()

		like, err := f.svc.ApproveLike(ctx, guardianCaller(g), "l1")
		require.NoError(t, err)
		assert.True(t, like.MutualMatch)
		require.NotNil(t, like.ApprovedByWali)
		assert.True(t, *like.ApprovedByWali)

		_, err = f.svc.ApproveLike(ctx, guardianCaller(g), "l1")
		require.NoError(t, err)

		require.Len(t, f.audit.Entries, 2)
		assert.Equal(t, g.ID, f.audit.Entries[0].ActorID)
		assert.Equal(t, true, f.audit.Entries[0].Metadata["reciprocal_created"])
		assert.Equal(t, false, f.audit.Entries[1].Metadata["reciprocal_created"])
	})

	t.Run("guardian of another member cannot see the like", func(t *testing.T) {
		f := newFixture()
		other := &models.Guardian{ID: "g-other", UserID: "f-other", Status: models.GuardianStatusApproved}

		_, err := f.svc.ApproveLike(ctx, guardianCaller(other), "l1")
		assert.ErrorIs(t, err, models.ErrNotFound)
	})

	t.Run("seekers cannot review, admins can", func(t *testing.T) {
		f := newFixture()

		err := f.svc.RejectLike(ctx, callerOf(sister), "l1")
		assert.ErrorIs(t, err, models.ErrForbidden)

		deleted := ""
		f.likes.DeleteFunc = func(_ context.Context, id string) error {
			deleted = id
			return nil
		}
		require.NoError(t, f.svc.RejectLike(ctx, callerOf(admin), "l1"))
		assert.Equal(t, "l1", deleted)
		assert.Equal(t, []string{models.AuditActionReject}, f.audit.Actions())
	})
}
