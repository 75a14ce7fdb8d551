package notify_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"storefront/internal/notify"
	"storefront/internal/notify/mocks"
)

func samplePayload() notify.ReservationEmail {
	return notify.ReservationEmail{
		ProductName:     "Knitted <Scarf>",
		ProductPrice:    24.5,
		Quantity:        2,
		CustomerName:    "Ada",
		CustomerEmail:   "ada@example.com",
		CustomerPhone:   "555-0100",
		SelectedOptions: map[string]string{"Color": "Red"},
		ProductImage:    "/uploads/products/a.jpg",
	}
}

func TestReservationPlacedUsesConfiguredRecipients(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	source := mocks.NewMockRecipientSource(ctrl)

	source.EXPECT().ReservationRecipients(gomock.Any()).
		Return([]string{" shop@example.com ", "", "SHOP@example.com", "owner@example.com"}, nil)

	var sent notify.Message
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg notify.Message) error {
		sent = msg
		return nil
	})

	n := notify.NewNotifier(sender, source, "fallback@example.com", "https://shop.example")
	require.NoError(t, n.ReservationPlaced(context.Background(), samplePayload()))

	assert.Equal(t, []string{"shop@example.com", "owner@example.com"}, sent.To)
	assert.Contains(t, sent.Subject, "x2")
	assert.Contains(t, sent.HTML, "Knitted &lt;Scarf&gt;")
	assert.Contains(t, sent.HTML, "24.50")
	assert.Contains(t, sent.HTML, "Red")
}

func TestReservationPlacedFallsBackWhenLookupFails(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	source := mocks.NewMockRecipientSource(ctrl)

	source.EXPECT().ReservationRecipients(gomock.Any()).Return(nil, errors.New("settings unavailable"))
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg notify.Message) error {
		assert.Equal(t, []string{"fallback@example.com"}, msg.To)
		return nil
	})

	n := notify.NewNotifier(sender, source, "fallback@example.com", "")
	require.NoError(t, n.ReservationPlaced(context.Background(), samplePayload()))
}

func TestReservationPlacedFallsBackWhenListEmpty(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)
	source := mocks.NewMockRecipientSource(ctrl)

	source.EXPECT().ReservationRecipients(gomock.Any()).Return([]string{}, nil)
	sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg notify.Message) error {
		assert.Equal(t, []string{"fallback@example.com"}, msg.To)
		return nil
	})

	n := notify.NewNotifier(sender, source, "fallback@example.com", "")
	require.NoError(t, n.ReservationPlaced(context.Background(), samplePayload()))
}

func TestReservationPlacedReturnsSendError(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)

	sender.EXPECT().Send(gomock.Any(), gomock.Any()).Return(errors.New("api down"))

	n := notify.NewNotifier(sender, nil, "fallback@example.com", "")
	assert.EqualError(t, n.ReservationPlaced(context.Background(), samplePayload()), "api down")
}

func TestAdminInviteContainsLoginURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	sender := mocks.NewMockSender(ctrl)

	sender.EXPECT().Send(gomock.Any(), gomock.Any()).DoAndReturn(func(_ context.Context, msg notify.Message) error {
		assert.Equal(t, []string{"new.admin@example.com"}, msg.To)
		assert.Contains(t, msg.HTML, `href="https://shop.example/login"`)
		assert.Contains(t, msg.HTML, "owner@example.com has invited you")
		return nil
	})

	n := notify.NewNotifier(sender, nil, "fallback@example.com", "https://shop.example/")
	require.NoError(t, n.AdminInvite(context.Background(), notify.InviteEmail{
		Email:     "new.admin@example.com",
		InvitedBy: "owner@example.com",
	}))
}
