// Package slack posts BCR notifications to a Slack channel through the Web API.
package slack

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"
	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/changeboard/internal/notify"
)

// slackClient abstracts the Slack API method we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier implements notify.Notifier for Slack.
type Notifier struct {
	client    slackClient
	channelID string
}

// Opts holds parameters for creating a Slack Notifier.
type Opts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &Notifier{client: client, channelID: opts.ChannelID}, nil
}

// Notify posts ev as a message with one attachment. Rate limits are
// returned for retry; other API errors are permanent.
func (n *Notifier) Notify(ctx context.Context, ev notify.Event) error {
	_, _, err := n.client.PostMessageContext(ctx, n.channelID, buildMessageOptions(ev)...)
	if err == nil {
		return nil
	}
	err = fmt.Errorf("slack: post message: %w", err)

	var rle *slackapi.RateLimitedError
	if errors.As(err, &rle) {
		return err
	}
	var apiErr slackapi.SlackErrorResponse
	if errors.As(err, &apiErr) {
		return backoff.Permanent(err)
	}
	return err
}

// buildMessageOptions translates an Event into Slack MsgOptions.
func buildMessageOptions(ev notify.Event) []slackapi.MsgOption {
	return []slackapi.MsgOption{
		slackapi.MsgOptionText(ev.Title, false),
		slackapi.MsgOptionAttachments(eventToAttachment(ev)),
	}
}

// eventToAttachment converts an Event to a Slack Attachment.
func eventToAttachment(ev notify.Event) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:     ev.Title,
		TitleLink: ev.URL,
		Text:      ev.Summary,
		Color:     ev.Color(),
		Fallback:  ev.Title,
	}
	for _, f := range ev.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}
