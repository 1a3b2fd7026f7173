// Package slack posts phase notices to a Slack channel through the Web API.
package slack

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/obras/internal/telegraph"
)

// webAPI is the part of the Slack client the adapter calls.
type webAPI interface {
	AuthTestContext(ctx context.Context) (*slackapi.AuthTestResponse, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter implements telegraph.Adapter for Slack.
type Adapter struct {
	api     webAPI
	token   string
	channel string
	link    telegraph.Link
	retry   telegraph.RetryPolicy
}

// AdapterOpts holds parameters for creating a Slack Adapter.
type AdapterOpts struct {
	BotToken  string // xoxb-... bot token
	ChannelID string // channel notices go to
	Client    webAPI // replaces the Web API client in tests
}

// New creates a Slack Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	return &Adapter{
		api:     opts.Client,
		token:   opts.BotToken,
		channel: opts.ChannelID,
		link:    telegraph.Link{Name: "slack"},
		retry:   telegraph.RetryPolicy{Name: "slack", Attempts: 3, Base: time.Second, Max: 30 * time.Second},
	}, nil
}

// Connect checks the bot token with auth.test.
func (a *Adapter) Connect(ctx context.Context) error {
	return a.link.Open(func() error {
		if a.api == nil {
			a.api = slackapi.New(a.token)
		}
		auth, err := a.api.AuthTestContext(ctx)
		if err != nil {
			return fmt.Errorf("slack: auth test: %w", err)
		}
		log.Printf("slack: posting as %s in %s", auth.User, auth.Team)
		return nil
	})
}

// Send posts msg. Each event becomes a colored attachment.
func (a *Adapter) Send(ctx context.Context, msg telegraph.OutboundMessage) error {
	if err := a.link.Ready(); err != nil {
		return err
	}
	channel := telegraph.Target(msg, a.channel)
	if channel == "" {
		return fmt.Errorf("slack: no channel configured")
	}

	options := messageOptions(msg)
	err := a.retry.Do(ctx, rateLimited, func() error {
		_, _, err := a.api.PostMessageContext(ctx, channel, options...)
		return err
	})
	if err != nil {
		return fmt.Errorf("slack: post to %s: %w", channel, err)
	}
	return nil
}

// Close implements telegraph.Adapter. The Web API holds no connection.
func (a *Adapter) Close() error {
	a.link.Shut()
	return nil
}

func rateLimited(err error) (time.Duration, bool) {
	var rle *slackapi.RateLimitedError
	if errors.As(err, &rle) {
		return rle.RetryAfter, true
	}
	return 0, false
}

func messageOptions(msg telegraph.OutboundMessage) []slackapi.MsgOption {
	options := []slackapi.MsgOption{slackapi.MsgOptionText(msg.Text, true)}
	if len(msg.Events) == 0 {
		return options
	}
	attachments := make([]slackapi.Attachment, 0, len(msg.Events))
	for _, ev := range msg.Events {
		attachments = append(attachments, attachment(ev))
	}
	return append(options, slackapi.MsgOptionAttachments(attachments...))
}

// attachment renders an event as one section block: the title as bold text
// and every field as a labelled column.
func attachment(ev telegraph.FormattedEvent) slackapi.Attachment {
	title := slackapi.NewTextBlockObject(slackapi.MarkdownType, "*"+escape(ev.Title)+"*", false, false)
	var fields []*slackapi.TextBlockObject
	for _, f := range ev.Fields {
		text := fmt.Sprintf("*%s*\n%s", escape(f.Name), escape(f.Value))
		fields = append(fields, slackapi.NewTextBlockObject(slackapi.MarkdownType, text, false, false))
	}
	return slackapi.Attachment{
		Color:    ev.Color,
		Fallback: ev.Title,
		Blocks: slackapi.Blocks{BlockSet: []slackapi.Block{
			slackapi.NewSectionBlock(title, fields, nil),
		}},
	}
}

// escape protects the three characters mrkdwn treats as control sequences.
var escape = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace
