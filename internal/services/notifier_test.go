package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/mithaq/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreview(t *testing.T) {
	assert.Equal(t, "short", Preview("short"))

	exact := strings.Repeat("a", PreviewMaxRunes)
	assert.Equal(t, exact, Preview(exact))

	long := strings.Repeat("ب", 150)
	got := Preview(long)
	assert.Equal(t, PreviewMaxRunes, len([]rune(got)))
	assert.True(t, strings.HasSuffix(got, "..."))
}

// buildOnly runs the single queued job and returns its email.
func buildOnly(t *testing.T, q *MockEnqueuer) *Email {
	t.Helper()
	require.Len(t, q.Jobs, 1)
	email, err := q.Jobs[0].Build(context.Background())
	require.NoError(t, err)
	return email
}

func TestNotifier_NewMessage(t *testing.T) {
	sender := &models.Member{ID: "a-male", Name: "Yusuf", Gender: models.GenderMale}
	ward := &models.Member{ID: "b-female", Name: "Maryam", Gender: models.GenderFemale}
	conv := &models.Conversation{ID: "conv-1", ParticipantLow: sender.ID, ParticipantHigh: ward.ID}
	members := &MockMemberStore{GetByIDFunc: membersByID(sender, ward)}

	t.Run("guardian opted in receives preview", func(t *testing.T) {
		q := &MockEnqueuer{}
		n := NewNotifier(q, members, &MockGuardianStore{FindActiveFunc: activeGuardians(approvedGuardian(ward.ID))}, "https://app.example")

		n.NotifyNewMessage(conv, sender.ID, "<b>Salaam</b> "+strings.Repeat("x", 200))

		email := buildOnly(t, q)
		require.NotNil(t, email)
		assert.Equal(t, "wali@example.com", email.To)
		assert.Contains(t, email.Subject, "Maryam")
		assert.Contains(t, email.HTML, "Yusuf")
		assert.Contains(t, email.HTML, "&lt;b&gt;Salaam&lt;/b&gt;")
		assert.NotContains(t, email.HTML, strings.Repeat("x", 200))
		assert.Contains(t, email.HTML, "https://app.example/conversations/conv-1")
	})

	t.Run("guardian opted out", func(t *testing.T) {
		g := approvedGuardian(ward.ID)
		g.NotifyOnNewMessage = false
		q := &MockEnqueuer{}
		n := NewNotifier(q, members, &MockGuardianStore{FindActiveFunc: activeGuardians(g)}, "")

		n.NotifyNewMessage(conv, sender.ID, "hello")

		assert.Nil(t, buildOnly(t, q))
	})

	t.Run("male recipient never notifies", func(t *testing.T) {
		q := &MockEnqueuer{}
		n := NewNotifier(q, members, &MockGuardianStore{FindActiveFunc: activeGuardians(approvedGuardian(sender.ID))}, "")

		n.NotifyNewMessage(conv, ward.ID, "hello")

		assert.Nil(t, buildOnly(t, q))
	})

	t.Run("no active guardian", func(t *testing.T) {
		q := &MockEnqueuer{}
		n := NewNotifier(q, members, &MockGuardianStore{}, "")

		n.NotifyNewMessage(conv, sender.ID, "hello")

		assert.Nil(t, buildOnly(t, q))
	})

	t.Run("full queue does not block", func(t *testing.T) {
		q := &MockEnqueuer{Full: true}
		n := NewNotifier(q, members, &MockGuardianStore{}, "")

		n.NotifyNewMessage(conv, sender.ID, "hello")

		assert.Empty(t, q.Jobs)
	})
}

func TestNotifier_IncomingLike(t *testing.T) {
	ward := &models.Member{ID: "w", Name: "Aisha", Gender: models.GenderFemale}
	q := &MockEnqueuer{}
	n := NewNotifier(q, &MockMemberStore{GetByIDFunc: membersByID(ward)},
		&MockGuardianStore{FindActiveFunc: activeGuardians(approvedGuardian(ward.ID))}, "https://app.example")

	n.NotifyIncomingLike(&models.Like{ID: "l1", FromID: "x", ToID: ward.ID})

	email := buildOnly(t, q)
	require.NotNil(t, email)
	assert.Equal(t, "wali@example.com", email.To)
	assert.Contains(t, email.HTML, "https://app.example/guardian/likes")
}

func TestNotifier_MemberNotices(t *testing.T) {
	q := &MockEnqueuer{}
	n := NewNotifier(q, &MockMemberStore{}, &MockGuardianStore{}, "")
	member := &models.Member{ID: "m", Email: "m@example.com", Name: "Omar"}

	n.NotifySuspended(member, "spam <links>", time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	n.NotifyWarned(member, "tone")
	n.NotifyBanned(member, "scam")
	n.NotifyWarned(&models.Member{ID: "no-email"}, "ignored")

	require.Len(t, q.Jobs, 3)
	kinds := []string{q.Jobs[0].Kind, q.Jobs[1].Kind, q.Jobs[2].Kind}
	assert.Equal(t, []string{NotificationSuspended, NotificationWarned, NotificationBanned}, kinds)

	email, err := q.Jobs[0].Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "m@example.com", email.To)
	assert.Contains(t, email.HTML, "1 March 2026")
	assert.Contains(t, email.HTML, "spam &lt;links&gt;")
}
