package domain

import "context"

// Channel is a user-facing surface (CLI, Telegram, Slack, Discord, Web)
// that feeds turns to the agent and delivers replies.
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}
