package services

import (
	"context"
	"errors"
	"log/slog"

	"github.com/BradenHooton/mithaq/internal/metrics"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/BradenHooton/mithaq/internal/repositories"
	"github.com/BradenHooton/mithaq/pkg/contentfilter"
)

// MemberReader is the member directory lookup
type MemberReader interface {
	GetByID(ctx context.Context, id string) (*models.Member, error)
}

// ActiveGuardianFinder returns the authoritative guardian of a member, or
// models.ErrNotFound when none is approved
type ActiveGuardianFinder interface {
	FindActive(ctx context.Context, userID string) (*models.Guardian, error)
}

// GateClass selects the authorization rule applied to a sender
type GateClass string

const (
	GateClassAdmin  GateClass = "admin"
	GateClassMale   GateClass = "male"
	GateClassFemale GateClass = "female"
)

// ClassOf derives the gate class of a member from role, then gender.
func ClassOf(m *models.Member) (GateClass, bool) {
	if m.Role == models.RoleAdmin {
		return GateClassAdmin, true
	}
	switch m.Gender {
	case models.GenderMale:
		return GateClassMale, true
	case models.GenderFemale:
		return GateClassFemale, true
	}
	return "", false
}

type gateRule func(ctx context.Context, m *models.Member) error

// MessagingGate decides whether a member may message at all and whether a
// given message passes anti-spam screening
type MessagingGate struct {
	guardians ActiveGuardianFinder
	rules     map[GateClass]gateRule
	threshold int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

func NewMessagingGate(guardians ActiveGuardianFinder, threshold int, m *metrics.Metrics, logger *slog.Logger) *MessagingGate {
	g := &MessagingGate{
		guardians: guardians,
		threshold: threshold,
		metrics:   m,
		logger:    logger,
	}
	g.rules = map[GateClass]gateRule{
		GateClassAdmin:  alwaysAllow,
		GateClassMale:   alwaysAllow,
		GateClassFemale: g.requireActiveGuardian,
	}
	return g
}

func alwaysAllow(context.Context, *models.Member) error {
	return nil
}

func (g *MessagingGate) requireActiveGuardian(ctx context.Context, m *models.Member) error {
	guardian, err := g.guardians.FindActive(ctx, m.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		g.logger.Error("failed to resolve guardian", slog.String("member_id", m.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !guardian.IsServiceActive() {
		return models.NewNoValidMahramError()
	}
	return nil
}

// Authorize applies the rule of the sender's gate class.
func (g *MessagingGate) Authorize(ctx context.Context, sender *models.Member) error {
	class, ok := ClassOf(sender)
	if !ok {
		g.logger.Warn("member has no gate class", slog.String("member_id", sender.ID))
		return models.ErrForbidden
	}

	err := g.rules[class](ctx, sender)
	if pe, ok := models.AsPolicyError(err); ok {
		g.metrics.IncGateDenied(pe.Code)
	}
	return err
}

// Screen returns the anti-spam check for text. It is evaluated against the
// number of messages the sender already has in the conversation.
func (g *MessagingGate) Screen(text string) repositories.PriorCountCheck {
	return func(priorCount int) error {
		return g.screen(priorCount, text)
	}
}

func (g *MessagingGate) screen(priorCount int, text string) error {
	if priorCount >= g.threshold {
		return nil
	}

	categories := contentfilter.Classify(text)
	if len(categories) == 0 {
		return nil
	}

	g.metrics.IncScreenBlocked(categories)
	return models.NewContentBlockedError(categories, g.threshold-priorCount)
}
