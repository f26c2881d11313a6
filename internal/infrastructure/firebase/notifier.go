package firebase

import (
	"context"
	"fmt"
	"log"

	"bancora/internal/domain/item"
	"bancora/internal/domain/link"
	"bancora/internal/shared/messages"
)

// DeviceTokenReader lists a user's active push tokens.
type DeviceTokenReader interface {
	ListActiveDeviceTokens(ctx context.Context, userID string) ([]string, error)
}

// ConnectionNotifier delivers connection confirmations over FCM. It
// implements link.Notifier; failures bubble up to the orchestrator which
// logs them without failing the connection flow.
type ConnectionNotifier struct {
	fcm    *Client
	tokens DeviceTokenReader
	texts  *messages.Messages
}

// NewConnectionNotifier creates the FCM-backed connection notifier.
func NewConnectionNotifier(fcm *Client, tokens DeviceTokenReader, texts *messages.Messages) *ConnectionNotifier {
	if texts == nil {
		texts = messages.Defaults()
	}
	return &ConnectionNotifier{fcm: fcm, tokens: tokens, texts: texts}
}

var (
	_ link.Notifier      = (*ConnectionNotifier)(nil)
	_ item.ErrorNotifier = (*ConnectionNotifier)(nil)
)

// SendConnectionConfirmation pushes the confirmation to every active device.
func (n *ConnectionNotifier) SendConnectionConfirmation(ctx context.Context, contact link.Contact, institutionName string, isFirst bool) error {
	deviceTokens, err := n.tokens.ListActiveDeviceTokens(ctx, contact.UserID)
	if err != nil {
		return fmt.Errorf("failed to list device tokens: %w", err)
	}
	if len(deviceTokens) == 0 {
		return nil
	}

	text := n.texts.ConnectionConfirmed
	if isFirst {
		text = n.texts.FirstConnection
	}

	return n.fcm.SendMulticast(ctx, deviceTokens, text.Title, fmt.Sprintf(text.Body, institutionName), map[string]string{
		"type":        "bank_connection",
		"institution": institutionName,
	})
}

// SendConnectionError prompts the user to reconnect a dropped bank
// connection. Sent per token: error pushes are rare and a stale token
// should not hold up delivery to the user's remaining devices.
func (n *ConnectionNotifier) SendConnectionError(ctx context.Context, userID, institutionName string) error {
	deviceTokens, err := n.tokens.ListActiveDeviceTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list device tokens: %w", err)
	}

	text := n.texts.ConnectionError
	data := map[string]string{
		"type":        "bank_connection_error",
		"institution": institutionName,
	}
	for _, token := range deviceTokens {
		if err := n.fcm.Send(ctx, token, text.Title, fmt.Sprintf(text.Body, institutionName), data); err != nil {
			log.Printf("Failed to push reconnection prompt to a device of user %s: %v", userID, err)
		}
	}
	return nil
}
