// Package discord posts phase notices to a Discord channel through the REST API.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/obras/internal/telegraph"
)

// restAPI is the part of *discordgo.Session the adapter calls.
type restAPI interface {
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Adapter implements telegraph.Adapter for Discord.
type Adapter struct {
	api     restAPI
	token   string
	channel string
	link    telegraph.Link
	retry   telegraph.RetryPolicy
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken  string
	ChannelID string  // channel notices go to
	Session   restAPI // replaces the REST session in tests
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	return &Adapter{
		api:     opts.Session,
		token:   opts.BotToken,
		channel: opts.ChannelID,
		link:    telegraph.Link{Name: "discord"},
		retry:   telegraph.RetryPolicy{Name: "discord", Attempts: 3, Base: 2 * time.Second, Max: 30 * time.Second},
	}, nil
}

// Connect opens a REST session and checks the token by fetching the bot user.
// No gateway connection is made; the adapter only posts.
func (a *Adapter) Connect(ctx context.Context) error {
	return a.link.Open(func() error {
		if a.api == nil {
			dg, err := discordgo.New("Bot " + a.token)
			if err != nil {
				return fmt.Errorf("discord: create session: %w", err)
			}
			a.api = dg
		}
		me, err := a.api.User("@me", discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("discord: identify bot: %w", err)
		}
		log.Printf("discord: posting as %s", me.Username)
		return nil
	})
}

// Send posts msg with one embed per event.
func (a *Adapter) Send(ctx context.Context, msg telegraph.OutboundMessage) error {
	if err := a.link.Ready(); err != nil {
		return err
	}
	channel := telegraph.Target(msg, a.channel)
	if channel == "" {
		return fmt.Errorf("discord: no channel configured")
	}

	data := messageSend(msg)
	err := a.retry.Do(ctx, rateLimited, func() error {
		_, err := a.api.ChannelMessageSendComplex(channel, data, discordgo.WithContext(ctx))
		return err
	})
	if err != nil {
		return fmt.Errorf("discord: post to %s: %w", channel, err)
	}
	return nil
}

// Close implements telegraph.Adapter.
func (a *Adapter) Close() error {
	a.link.Shut()
	return nil
}

// rateLimited recognizes 429 responses. discordgo already waits out bucket
// limits itself, so these are the global limits it gives up on.
func rateLimited(err error) (time.Duration, bool) {
	var rest *discordgo.RESTError
	if errors.As(err, &rest) && rest.Response != nil && rest.Response.StatusCode == http.StatusTooManyRequests {
		return 0, true
	}
	return 0, false
}

// messageSend builds the payload. Contract names are free text, so mentions
// are never parsed.
func messageSend(msg telegraph.OutboundMessage) *discordgo.MessageSend {
	data := &discordgo.MessageSend{
		Content:         msg.Text,
		AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
	}
	for _, ev := range msg.Events {
		data.Embeds = append(data.Embeds, embed(ev))
	}
	return data
}

func embed(ev telegraph.FormattedEvent) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
		Color:       embedColor(ev.Color),
	}
	for _, f := range ev.Fields {
		value := f.Value
		if value == "" {
			value = "-" // discord rejects empty field values
		}
		e.Fields = append(e.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: value, Inline: f.Short})
	}
	return e
}

// embedColor turns "#36a64f" into 0x36a64f. Anything unparsable is 0, which
// discord renders as the default color.
func embedColor(hex string) int {
	n, err := strconv.ParseUint(strings.TrimPrefix(hex, "#"), 16, 24)
	if err != nil {
		return 0
	}
	return int(n)
}
