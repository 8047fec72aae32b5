package services

import (
	"context"
	"errors"
	"testing"

	"github.com/BradenHooton/mithaq/internal/metrics"
	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func approvedGuardian(wardID string) *models.Guardian {
	return &models.Guardian{
		ID:                   "g-" + wardID,
		UserID:               wardID,
		Name:                 "Guardian",
		Email:                "wali@example.com",
		Status:               models.GuardianStatusApproved,
		HasAccessToDashboard: true,
		NotifyOnNewMessage:   true,
	}
}

func TestClassOf(t *testing.T) {
	tests := []struct {
		name   string
		member *models.Member
		want   GateClass
		ok     bool
	}{
		{"admin wins over gender", &models.Member{Role: models.RoleAdmin, Gender: models.GenderFemale}, GateClassAdmin, true},
		{"male seeker", &models.Member{Role: models.RoleSeeker, Gender: models.GenderMale}, GateClassMale, true},
		{"female moderator", &models.Member{Role: models.RoleModerator, Gender: models.GenderFemale}, GateClassFemale, true},
		{"unknown gender", &models.Member{Role: models.RoleSeeker}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ClassOf(tt.member)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}
}

func TestMessagingGate_Authorize(t *testing.T) {
	ctx := context.Background()
	female := &models.Member{ID: "f1", Role: models.RoleSeeker, Gender: models.GenderFemale}

	t.Run("male and admin always allowed", func(t *testing.T) {
		gate := NewMessagingGate(&MockGuardianStore{}, 3, nil, testLogger())

		assert.NoError(t, gate.Authorize(ctx, &models.Member{ID: "m1", Gender: models.GenderMale}))
		assert.NoError(t, gate.Authorize(ctx, &models.Member{ID: "a1", Role: models.RoleAdmin, Gender: models.GenderFemale}))
	})

	t.Run("female with active guardian", func(t *testing.T) {
		gate := NewMessagingGate(&MockGuardianStore{FindActiveFunc: activeGuardians(approvedGuardian("f1"))}, 3, nil, testLogger())
		assert.NoError(t, gate.Authorize(ctx, female))
	})

	t.Run("paid service without dashboard access counts as active", func(t *testing.T) {
		g := approvedGuardian("f1")
		g.HasAccessToDashboard = false
		g.PlatformServicePaid = true
		gate := NewMessagingGate(&MockGuardianStore{FindActiveFunc: activeGuardians(g)}, 3, nil, testLogger())
		assert.NoError(t, gate.Authorize(ctx, female))
	})

	denials := map[string]*MockGuardianStore{
		"no guardian": {},
		"approved but not operational": {FindActiveFunc: activeGuardians(&models.Guardian{
			ID: "g", UserID: "f1", Status: models.GuardianStatusApproved,
		})},
	}
	for name, store := range denials {
		t.Run(name, func(t *testing.T) {
			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			gate := NewMessagingGate(store, 3, m, testLogger())

			err := gate.Authorize(ctx, female)

			pe, ok := models.AsPolicyError(err)
			require.True(t, ok)
			assert.Equal(t, models.CodeNoValidMahram, pe.Code)
			assert.ErrorIs(t, err, models.ErrForbidden)
			assert.Equal(t, float64(1), testutil.ToFloat64(m.GateDenied.WithLabelValues(models.CodeNoValidMahram)))
		})
	}

	t.Run("guardian lookup failure is internal", func(t *testing.T) {
		gate := NewMessagingGate(&MockGuardianStore{
			FindActiveFunc: func(context.Context, string) (*models.Guardian, error) {
				return nil, errors.New("connection reset")
			},
		}, 3, nil, testLogger())

		assert.ErrorIs(t, gate.Authorize(ctx, female), models.ErrInternalServer)
	})

	t.Run("member without gender is forbidden", func(t *testing.T) {
		gate := NewMessagingGate(&MockGuardianStore{}, 3, nil, testLogger())
		err := gate.Authorize(ctx, &models.Member{ID: "x"})
		assert.ErrorIs(t, err, models.ErrForbidden)
		_, isPolicy := models.AsPolicyError(err)
		assert.False(t, isPolicy)
	})
}

func TestMessagingGate_Screen(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	gate := NewMessagingGate(&MockGuardianStore{}, 3, m, testLogger())

	tests := []struct {
		name      string
		prior     int
		text      string
		blocked   []string
		remaining int
	}{
		{"clean first message", 0, "Assalamu alaykum, how are you?", nil, 0},
		{"contact details in first message", 0, "add me on instagram", []string{"instagram"}, 3},
		{"contact details in third message", 2, "my number is 0300 123 4567", []string{"phone"}, 1},
		{"screening ends at threshold", 3, "whatsapp me", nil, 0},
		{"well past threshold", 10, "telegram t.me/someone", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := gate.Screen(tt.text)(tt.prior)
			if tt.blocked == nil {
				assert.NoError(t, err)
				return
			}

			pe, ok := models.AsPolicyError(err)
			require.True(t, ok)
			assert.Equal(t, models.CodeContentBlocked, pe.Code)
			assert.Equal(t, tt.blocked, pe.BlockedContent)
			assert.Equal(t, tt.remaining, pe.MessagesRemaining)
		})
	}

	assert.Equal(t, float64(1), testutil.ToFloat64(m.ScreenBlocked.WithLabelValues("instagram")))
}
