package services

import (
	"context"
	"errors"
	"fmt"
	"html"
	"time"

	"github.com/BradenHooton/mithaq/internal/models"
)

// PreviewMaxRunes bounds the message excerpt included in guardian email.
const PreviewMaxRunes = 100

// Notifier decides whether and with what content members and guardians are
// emailed. It only enqueues jobs; resolution happens in the dispatcher workers.
type Notifier struct {
	queue     Enqueuer
	members   MemberReader
	guardians ActiveGuardianFinder
	baseURL   string
}

func NewNotifier(queue Enqueuer, members MemberReader, guardians ActiveGuardianFinder, baseURL string) *Notifier {
	return &Notifier{
		queue:     queue,
		members:   members,
		guardians: guardians,
		baseURL:   baseURL,
	}
}

// Preview truncates text to at most PreviewMaxRunes runes.
func Preview(text string) string {
	runes := []rune(text)
	if len(runes) <= PreviewMaxRunes {
		return text
	}
	return string(runes[:PreviewMaxRunes-3]) + "..."
}

// NotifyNewMessage emails the recipient's guardian about a new message when
// the recipient is female and her guardian opted in.
func (n *Notifier) NotifyNewMessage(conv *models.Conversation, senderID, text string) {
	recipientID := conv.OtherParticipant(senderID)
	preview := Preview(text)

	n.queue.Enqueue(NotificationJob{
		Kind: NotificationNewMessage,
		Build: func(ctx context.Context) (*Email, error) {
			guardian, recipient, err := n.guardianOf(ctx, recipientID)
			if err != nil || guardian == nil || !guardian.WantsMessageNotifications() {
				return nil, err
			}

			senderName := "A member"
			if sender, err := n.members.GetByID(ctx, senderID); err == nil && sender.Name != "" {
				senderName = sender.Name
			}

			body := fmt.Sprintf(`<p>Assalamu alaykum %s,</p>
<p>%s sent a new message to %s:</p>
<blockquote>%s</blockquote>
<p><a href="%s/conversations/%s">Open the conversation</a></p>`,
				html.EscapeString(guardian.Name),
				html.EscapeString(senderName),
				html.EscapeString(recipient.Name),
				html.EscapeString(preview),
				n.baseURL, conv.ID)

			return &Email{
				To:      guardian.Email,
				Subject: fmt.Sprintf("New message for %s", recipient.Name),
				HTML:    body,
			}, nil
		},
	})
}

// NotifyIncomingLike asks the recipient's guardian to review a like.
func (n *Notifier) NotifyIncomingLike(like *models.Like) {
	n.queue.Enqueue(NotificationJob{
		Kind: NotificationIncomingLike,
		Build: func(ctx context.Context) (*Email, error) {
			guardian, recipient, err := n.guardianOf(ctx, like.ToID)
			if err != nil || guardian == nil || !guardian.HasAccessToDashboard || guardian.Email == "" {
				return nil, err
			}

			body := fmt.Sprintf(`<p>Assalamu alaykum %s,</p>
<p>%s received a new expression of interest that awaits your review.</p>
<p><a href="%s/guardian/likes">Review it on the guardian dashboard</a></p>`,
				html.EscapeString(guardian.Name),
				html.EscapeString(recipient.Name),
				n.baseURL)

			return &Email{
				To:      guardian.Email,
				Subject: "An expression of interest awaits your review",
				HTML:    body,
			}, nil
		},
	})
}

// NotifySuspended tells a member about a suspension.
func (n *Notifier) NotifySuspended(member *models.Member, reason string, until time.Time) {
	n.notifyMember(NotificationSuspended, member, "Your account has been suspended",
		fmt.Sprintf("<p>Your account is suspended until %s.</p><p>Reason: %s</p>",
			until.UTC().Format("2 January 2006 15:04 MST"), html.EscapeString(reason)))
}

// NotifyWarned tells a member about a moderation warning.
func (n *Notifier) NotifyWarned(member *models.Member, reason string) {
	n.notifyMember(NotificationWarned, member, "A warning was added to your account",
		fmt.Sprintf("<p>A moderator issued a warning on your account.</p><p>Reason: %s</p>", html.EscapeString(reason)))
}

// NotifyBanned tells a member their account was closed.
func (n *Notifier) NotifyBanned(member *models.Member, reason string) {
	n.notifyMember(NotificationBanned, member, "Your account has been closed",
		fmt.Sprintf("<p>Your account was permanently banned.</p><p>Reason: %s</p>", html.EscapeString(reason)))
}

func (n *Notifier) notifyMember(kind string, member *models.Member, subject, body string) {
	if member.Email == "" {
		return
	}
	to := member.Email
	name := member.Name

	n.queue.Enqueue(NotificationJob{
		Kind: kind,
		Build: func(context.Context) (*Email, error) {
			return &Email{
				To:      to,
				Subject: subject,
				HTML:    fmt.Sprintf("<p>Assalamu alaykum %s,</p>\n%s", html.EscapeString(name), body),
			}, nil
		},
	})
}

// guardianOf returns the active guardian of a female member. Both results are
// nil when the member is not female or has no approved guardian.
func (n *Notifier) guardianOf(ctx context.Context, memberID string) (*models.Guardian, *models.Member, error) {
	member, err := n.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, nil, fmt.Errorf("load recipient: %w", err)
	}
	if member.Gender != models.GenderFemale {
		return nil, nil, nil
	}

	guardian, err := n.guardians.FindActive(ctx, memberID)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load guardian: %w", err)
	}
	return guardian, member, nil
}
