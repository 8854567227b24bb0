package main

import (
	"context"

	"github.com/slack-go/slack"
)

// SlackClient is the subset of slack.Client the match report needs.
// It's kept narrow so tests can replace it with a mock.
// Refer to the slack-go package for detailed documentation: https://pkg.go.dev/github.com/slack-go/slack#Client
type SlackClient interface {

	// PostMessageContext sends a message to a Slack channel with a custom context.
	// Returns the channel ID and timestamp of the posted message, or an error.
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// compile-time assertion to ensure that `slack.Client` implements `SlackClient`
var _ SlackClient = (*slack.Client)(nil)
