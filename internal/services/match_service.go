package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BradenHooton/mithaq/internal/models"
)

// LikeStore owns likes
type LikeStore interface {
	Create(ctx context.Context, fromID, toID string, mutual bool) (*models.Like, bool, error)
	GetByID(ctx context.Context, id string) (*models.Like, error)
	GetByPair(ctx context.Context, fromID, toID string) (*models.Like, error)
	ListAwaitingGuardian(ctx context.Context, toID string) ([]*models.Like, error)
	SetMutual(ctx context.Context, id string) error
	Approve(ctx context.Context, id string) (*models.Like, bool, error)
	Delete(ctx context.Context, id string) error
}

// LikeNotifier asks guardians to review incoming likes
type LikeNotifier interface {
	NotifyIncomingLike(like *models.Like)
}

// MatchService runs likes and the guardian approval workflow
type MatchService struct {
	members   MemberReader
	guardians ActiveGuardianFinder
	likes     LikeStore
	notifier  LikeNotifier
	audit     AuditRecorder
	logger    *slog.Logger
}

func NewMatchService(members MemberReader, guardians ActiveGuardianFinder, likes LikeStore, notifier LikeNotifier, audit AuditRecorder, logger *slog.Logger) *MatchService {
	return &MatchService{
		members:   members,
		guardians: guardians,
		likes:     likes,
		notifier:  notifier,
		audit:     audit,
		logger:    logger,
	}
}

// CreateLike records the caller's interest in toID. Liking twice returns the
// existing like. A reciprocal like makes both mutual unless the recipient's
// guardian reviews incoming likes, in which case the like waits for review.
func (s *MatchService) CreateLike(ctx context.Context, caller models.CallerContext, toID string) (*models.Like, error) {
	if caller.IsGuardian() {
		return nil, models.ErrForbidden
	}
	if toID == "" {
		return nil, models.NewValidationError("to is required")
	}
	if toID == caller.MemberID {
		return nil, models.NewValidationError("cannot like yourself")
	}

	recipient, err := s.members.GetByID(ctx, toID)
	if err != nil {
		return nil, lookupError(s.logger, err, "member", toID)
	}
	if recipient.IsBanned {
		return nil, models.ErrNotFound
	}

	reviewed, err := s.guardianReviews(ctx, recipient)
	if err != nil {
		return nil, err
	}

	like, created, err := s.likes.Create(ctx, caller.MemberID, toID, false)
	if err != nil {
		s.logger.Error("failed to create like", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	if !created {
		return like, nil
	}

	if reviewed {
		s.notifier.NotifyIncomingLike(like)
		return like, nil
	}

	reciprocal, err := s.likes.GetByPair(ctx, toID, caller.MemberID)
	if errors.Is(err, models.ErrNotFound) {
		return like, nil
	}
	if err != nil {
		s.logger.Error("failed to load reciprocal like", slog.Any("error", err))
		return like, nil
	}

	for _, id := range []string{like.ID, reciprocal.ID} {
		if err := s.likes.SetMutual(ctx, id); err != nil {
			s.logger.Error("failed to mark like mutual", slog.String("like_id", id), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
	}
	like.MutualMatch = true

	s.logger.Info("mutual match", slog.String("like_id", like.ID), slog.String("reciprocal_id", reciprocal.ID))
	return like, nil
}

// guardianReviews reports whether incoming likes of m wait for her guardian.
func (s *MatchService) guardianReviews(ctx context.Context, m *models.Member) (bool, error) {
	if m.Gender != models.GenderFemale {
		return false, nil
	}
	g, err := s.guardians.FindActive(ctx, m.ID)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		s.logger.Error("failed to resolve guardian", slog.String("member_id", m.ID), slog.Any("error", err))
		return false, models.ErrInternalServer
	}
	return g.IsApproved() && g.HasAccessToDashboard, nil
}

// ListPendingLikes returns likes received by the guardian's ward that await review.
func (s *MatchService) ListPendingLikes(ctx context.Context, caller models.CallerContext) ([]*models.Like, error) {
	if !caller.IsGuardian() {
		return nil, models.ErrForbidden
	}

	likes, err := s.likes.ListAwaitingGuardian(ctx, caller.MemberID)
	if err != nil {
		s.logger.Error("failed to list pending likes", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	return likes, nil
}

// ApproveLike turns a like into a mutual match. Approving again never
// creates a second reciprocal like.
func (s *MatchService) ApproveLike(ctx context.Context, caller models.CallerContext, likeID string) (*models.Like, error) {
	like, err := s.reviewable(ctx, caller, likeID)
	if err != nil {
		return nil, err
	}

	approved, created, err := s.likes.Approve(ctx, like.ID)
	if err != nil {
		return nil, lookupError(s.logger, err, "like", likeID)
	}

	s.recordReview(ctx, caller, approved, models.AuditActionApprove, created)
	return approved, nil
}

// RejectLike deletes a like on behalf of its recipient.
func (s *MatchService) RejectLike(ctx context.Context, caller models.CallerContext, likeID string) error {
	like, err := s.reviewable(ctx, caller, likeID)
	if err != nil {
		return err
	}

	if err := s.likes.Delete(ctx, like.ID); err != nil {
		return lookupError(s.logger, err, "like", likeID)
	}

	s.recordReview(ctx, caller, like, models.AuditActionReject, false)
	return nil
}

// reviewable loads a like the caller may decide on: a guardian for likes sent
// to their ward, or an admin.
func (s *MatchService) reviewable(ctx context.Context, caller models.CallerContext, likeID string) (*models.Like, error) {
	if !caller.IsGuardian() && !caller.IsAdmin() {
		return nil, models.ErrForbidden
	}

	like, err := s.likes.GetByID(ctx, likeID)
	if err != nil {
		return nil, lookupError(s.logger, err, "like", likeID)
	}
	if caller.IsGuardian() && like.ToID != caller.MemberID {
		return nil, models.ErrNotFound
	}
	return like, nil
}

func (s *MatchService) recordReview(ctx context.Context, caller models.CallerContext, like *models.Like, action string, created bool) {
	actor := caller.MemberID
	if caller.IsGuardian() {
		actor = caller.GuardianID
	}
	s.audit.Record(ctx, AuditEntry{
		EventType:    models.AuditEventGuardian,
		Action:       action,
		ActorID:      actor,
		TargetID:     like.ToID,
		ResourceType: models.AuditResourceLike,
		ResourceID:   like.ID,
		Success:      true,
		Metadata: models.AuditMetadata{
			"from_id":            like.FromID,
			"reciprocal_created": created,
		},
	})
}
