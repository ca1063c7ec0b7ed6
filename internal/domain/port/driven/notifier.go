package driven

import (
	"context"

	"github.com/ashkanrb/commitwatch/internal/domain/model"
)

// Notifier is the port to the chat transport. The transport owns message
// formatting, language selection, and delivery mechanics; the core only hands
// it (chat id, notification) pairs. Delivery is best-effort: an error affects
// neither other subscribers nor the cursor.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, n model.Notification) error
}
