package ingress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/droptracker-go/pipeline/internal/models"
	"github.com/droptracker-go/pipeline/internal/submission"
)

const maxAttachmentBytes = 8 << 20 // 8 MiB, §4.1

// handleWebhook serves both /webhook and /submit: identical downstream
// semantics, different rate limits (applied by the router's middleware).
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := contextWithTimeout(r.Context(), s.cfg.RequestBudget)
	defer cancel()

	if err := r.ParseMultipartForm(maxAttachmentBytes + (1 << 20)); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart body"})
		return
	}

	raw := r.FormValue("payload_json")
	if raw == "" {
		writeJSON(w, http.StatusOK, map[string]string{"error": "missing payload_json"})
		return
	}
	var payload webhookPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		writeJSON(w, http.StatusOK, map[string]string{"error": "malformed payload_json"})
		return
	}

	if len(payload.Embeds) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"message": "no embeds, nothing to process"})
		return
	}

	subs := make([]models.Submission, 0, len(payload.Embeds))
	for _, embed := range payload.Embeds {
		fields := embedFieldsFrom(embed)
		sub, ok := classify(fields, embed.Title)
		if !ok {
			continue
		}
		subs = append(subs, sub)
	}

	var attachment *models.Attachment
	if file, header, err := r.FormFile("file"); err == nil {
		defer file.Close()
		att, err := s.saveAttachment(ctx, file, header.Filename, header.Header.Get("Content-Type"), "webhook", subs)
		if err != nil {
			s.log.Warnw("ingress: attachment save failed", "error", err)
		} else {
			attachment = att
		}
	}

	messages := make([]string, 0, len(subs))
	for _, sub := range subs {
		sub.Attachment = attachment

		resp, err := s.pipeline.Process(ctx, sub)
		success := err == nil && resp.Success
		if s.metrics != nil {
			s.metrics.RecordSubmission(string(sub.Kind), success, "webhook")
		}
		if errors.Is(err, submission.ErrAuthFailed) {
			continue
		}
		if err != nil && !isDuplicate(err) {
			messages = append(messages, fmt.Sprintf("%s: %s", sub.Kind, err.Error()))
			continue
		}
		messages = append(messages, resp.Message)
	}

	writeJSON(w, http.StatusOK, map[string]any{"message": strings.Join(messages, "; ")})
}

func isDuplicate(err error) bool {
	return errors.Is(err, submission.ErrDuplicate)
}

// saveAttachment persists an uploaded image under
// img/{kind}/{player_id}/{timestamp}_{sanitized_name}.{ext} and returns both
// the local path and a stable external URL (§4.1). player_id is resolved
// from the first classified submission in the batch; if none resolves to a
// known player, the attachment is filed under "unresolved" instead.
func (s *Server) saveAttachment(ctx context.Context, r io.Reader, filename, contentType, kind string, subs []models.Submission) (*models.Attachment, error) {
	limited := io.LimitReader(r, maxAttachmentBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("ingress: read attachment: %w", err)
	}
	if len(data) > maxAttachmentBytes {
		return nil, fmt.Errorf("ingress: attachment exceeds %d bytes", maxAttachmentBytes)
	}

	playerDir := "unresolved"
	for _, sub := range subs {
		if sub.PlayerName == "" {
			continue
		}
		player, err := s.store.PlayerByName(ctx, s.store.Pool(), sub.PlayerName)
		if err == nil {
			playerDir = fmt.Sprintf("%d", player.ID)
			break
		}
	}

	ext := extFromContentType(contentType, filename)
	sanitized := sanitizeFilename(filename)
	dir := filepath.Join(s.cfg.ImageDir, kind, playerDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ingress: create attachment dir: %w", err)
	}
	name := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), sanitized, ext)
	localPath := filepath.Join(dir, name)
	if err := os.WriteFile(localPath, data, 0o644); err != nil {
		return nil, fmt.Errorf("ingress: write attachment: %w", err)
	}

	return &models.Attachment{
		ContentType: contentType,
		LocalPath:   localPath,
		ExternalURL: "/img/" + filepath.ToSlash(filepath.Join(kind, playerDir, name)),
	}, nil
}

func extFromContentType(contentType, filename string) string {
	switch {
	case strings.Contains(contentType, "png"):
		return ".png"
	case strings.Contains(contentType, "jpeg"), strings.Contains(contentType, "jpg"):
		return ".jpg"
	case strings.Contains(contentType, "gif"):
		return ".gif"
	case strings.Contains(contentType, "webp"):
		return ".webp"
	default:
		return filepath.Ext(filename)
	}
}

func sanitizeFilename(name string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "file"
	}
	return b.String()
}
