package notify

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"storefront/internal/logging"
	"storefront/internal/metrics"
)

// RecipientSource returns the addresses that receive reservation emails.
type RecipientSource interface {
	ReservationRecipients(ctx context.Context) ([]string, error)
}

// ReservationEmail is the notification payload for a new reservation.
type ReservationEmail struct {
	ProductName     string            `json:"productName" binding:"required"`
	ProductPrice    float64           `json:"productPrice"`
	Quantity        int               `json:"quantity" binding:"required,min=1"`
	CustomerName    string            `json:"customerName" binding:"required"`
	CustomerEmail   string            `json:"customerEmail" binding:"required,email"`
	CustomerPhone   string            `json:"customerPhone"`
	SelectedOptions map[string]string `json:"selectedOptions"`
	ProductImage    string            `json:"productImage"`
}

// InviteEmail is the admin invitation payload.
type InviteEmail struct {
	Email     string `json:"email" binding:"required,email"`
	InvitedBy string `json:"invitedBy"`
}

type Notifier struct {
	sender     Sender
	recipients RecipientSource
	fallback   string
	siteURL    string
}

func NewNotifier(sender Sender, recipients RecipientSource, fallback, siteURL string) *Notifier {
	return &Notifier{
		sender:     sender,
		recipients: recipients,
		fallback:   fallback,
		siteURL:    strings.TrimSuffix(siteURL, "/"),
	}
}

// resolveRecipients falls back to the configured address when the settings
// list is unset, empty or unreadable.
func (n *Notifier) resolveRecipients(ctx context.Context) []string {
	log := logging.Component("notify")
	if n.recipients == nil {
		return []string{n.fallback}
	}

	list, err := n.recipients.ReservationRecipients(ctx)
	if err != nil {
		log.WithError(err).Warn("recipient lookup failed, using fallback")
		return []string{n.fallback}
	}

	out := make([]string, 0, len(list))
	seen := map[string]struct{}{}
	for _, addr := range list {
		addr = strings.TrimSpace(addr)
		if addr == "" {
			continue
		}
		key := strings.ToLower(addr)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, addr)
	}
	if len(out) == 0 {
		return []string{n.fallback}
	}
	return out
}

func (n *Notifier) ReservationPlaced(ctx context.Context, payload ReservationEmail) error {
	var body bytes.Buffer
	if err := reservationTemplate.Execute(&body, payload); err != nil {
		return err
	}

	err := n.sender.Send(ctx, Message{
		To:      n.resolveRecipients(ctx),
		Subject: fmt.Sprintf("New reservation: %s x%d", payload.ProductName, payload.Quantity),
		HTML:    body.String(),
	})
	metrics.EmailSent("reservation", err)
	return err
}

func (n *Notifier) AdminInvite(ctx context.Context, invite InviteEmail) error {
	var body bytes.Buffer
	err := inviteTemplate.Execute(&body, struct {
		InviteEmail
		LoginURL string
	}{invite, n.siteURL + "/login"})
	if err != nil {
		return err
	}

	err = n.sender.Send(ctx, Message{
		To:      []string{invite.Email},
		Subject: "You have been invited to the store admin",
		HTML:    body.String(),
	})
	metrics.EmailSent("invite", err)
	return err
}
