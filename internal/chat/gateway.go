// Package chat implements C4, the outbound chat-platform RPC surface, backed
// by Discord via discordgo and translated into the typed error taxonomy §6
// specifies so C9/C10 never depend on a discordgo type directly.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Typed error surface (§6 "Chat RPC (outbound)").
var (
	ErrForbidden = errors.New("chat: destination forbidden")
	ErrNotFound  = errors.New("chat: not found")
	ErrTransient = errors.New("chat: transient error")
)

// RateLimitedError carries the server-provided retry-after duration.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("chat: rate limited, retry after %s", e.RetryAfter)
}

// Embed is a transport-agnostic chat embed, translated to discordgo's shape
// at the call site.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	ImageURL    string
	Footer      string
}

type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// Webhook is the result of CreateWebhook.
type Webhook struct {
	ID  string
	URL string
}

// Gateway is the narrow chat-platform surface the rest of the pipeline uses.
type Gateway interface {
	Send(ctx context.Context, channelID, text string, embed *Embed) (messageID string, err error)
	Edit(ctx context.Context, channelID, messageID, text string, embed *Embed) error
	FetchMessage(ctx context.Context, channelID, messageID string) (exists bool, err error)
	CreateWebhook(ctx context.Context, channelID, name, avatarURL string) (*Webhook, error)
}

// DiscordGateway implements Gateway over a discordgo.Session.
type DiscordGateway struct {
	session *discordgo.Session
}

func NewDiscordGateway(token string) (*DiscordGateway, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("chat: init discord session: %w", err)
	}
	return &DiscordGateway{session: s}, nil
}

func (g *DiscordGateway) Open() error  { return g.session.Open() }
func (g *DiscordGateway) Close() error { return g.session.Close() }

// Session exposes the underlying discordgo session for the ingress
// chat-embed listener (§4.1), which registers its own MessageCreate handler
// to receive inbound messages — a different concern from the outbound
// Gateway interface C9/C10 use, so it is not abstracted away here.
func (g *DiscordGateway) Session() *discordgo.Session { return g.session }

func (g *DiscordGateway) Send(ctx context.Context, channelID, text string, embed *Embed) (string, error) {
	msg, err := g.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content: text,
		Embed:   toDiscordEmbed(embed),
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", translateErr(err)
	}
	return msg.ID, nil
}

func (g *DiscordGateway) Edit(ctx context.Context, channelID, messageID, text string, embed *Embed) error {
	edit := discordgo.NewMessageEdit(channelID, messageID)
	edit.Content = &text
	if embed != nil {
		edit.Embeds = &[]*discordgo.MessageEmbed{toDiscordEmbed(embed)}
	}
	_, err := g.session.ChannelMessageEditComplex(edit, discordgo.WithContext(ctx))
	if err != nil {
		return translateErr(err)
	}
	return nil
}

func (g *DiscordGateway) FetchMessage(ctx context.Context, channelID, messageID string) (bool, error) {
	_, err := g.session.ChannelMessage(channelID, messageID, discordgo.WithContext(ctx))
	if err != nil {
		if restErr, ok := err.(*discordgo.RESTError); ok && restErr.Response != nil && restErr.Response.StatusCode == 404 {
			return false, nil
		}
		return false, translateErr(err)
	}
	return true, nil
}

func (g *DiscordGateway) CreateWebhook(ctx context.Context, channelID, name, avatarURL string) (*Webhook, error) {
	wh, err := g.session.WebhookCreate(channelID, name, avatarURL, discordgo.WithContext(ctx))
	if err != nil {
		return nil, translateErr(err)
	}
	return &Webhook{ID: wh.ID, URL: fmt.Sprintf("https://discord.com/api/webhooks/%s/%s", wh.ID, wh.Token)}, nil
}

func toDiscordEmbed(e *Embed) *discordgo.MessageEmbed {
	if e == nil {
		return nil
	}
	fields := make([]*discordgo.MessageEmbedField, 0, len(e.Fields))
	for _, f := range e.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
		Fields:      fields,
	}
	if e.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: e.ImageURL}
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	return embed
}

// translateErr maps discordgo's RESTError into the §6 typed surface.
func translateErr(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch restErr.Response.StatusCode {
		case 403:
			return ErrForbidden
		case 404:
			return ErrNotFound
		case 429:
			retryAfter := time.Second
			if restErr.RateLimit != nil {
				retryAfter = time.Duration(restErr.RateLimit.RetryAfter * float64(time.Second))
			}
			return &RateLimitedError{RetryAfter: retryAfter}
		}
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
