package text_publisher

import "context"

type Publisher interface {
	Publish(ctx context.Context, sessionID, text string) error
}
