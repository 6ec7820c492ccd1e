package ingress

import (
	"context"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/droptracker-go/pipeline/internal/models"
)

// onChatMessage is the discordgo MessageCreate handler for the chat-embed
// listener: any embed posted by another bot/webhook into a channel our bot
// can see is classified and fed into the same pipeline as /webhook (§4.1).
func (s *Server) onChatMessage(session *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == session.State.User.ID {
		return
	}
	if len(m.Embeds) == 0 {
		return
	}

	ctx, cancel := contextWithTimeout(context.Background(), s.cfg.RequestBudget)
	defer cancel()

	for _, embed := range m.Embeds {
		fields := discordEmbedFields(embed)
		sub, ok := classify(fields, embed.Title)
		if !ok {
			continue
		}

		resp, err := s.pipeline.Process(ctx, sub)
		success := err == nil && resp.Success
		if s.metrics != nil {
			s.metrics.RecordSubmission(string(sub.Kind), success, "chat")
		}
		if err != nil && !isDuplicate(err) {
			s.log.Warnw("ingress: chat submission failed", "kind", sub.Kind, "error", err)
		}
	}
}

func discordEmbedFields(e *discordgo.MessageEmbed) models.EmbedFields {
	f := make(models.EmbedFields, len(e.Fields)+1)
	for _, field := range e.Fields {
		f[strings.ToLower(field.Name)] = field.Value
	}
	return f
}
