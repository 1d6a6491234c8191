package usecase

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shatool-dad/group-bridge/internal/biz/domain"
	"github.com/shatool-dad/group-bridge/internal/biz/repo"
)

// DigestConfig holds the prompts used to digest a group's history.
// Templates may reference {{messages}}, {{group_name}} and {{now}}.
type DigestConfig struct {
	SystemPrompt string
	Templates    map[string]string
	MaxMessages  int
}

// DigestResult is the outcome of one digest run
type DigestResult struct {
	GroupID      string `json:"groupId"`
	Template     string `json:"template"`
	MessageCount int    `json:"messageCount"`
	Digest       string `json:"digest"`
}

// DigestUsecase asks a language model to digest retained messages
type DigestUsecase struct {
	groups     *GroupUsecase
	completion repo.CompletionRepo
	config     DigestConfig
	log        zerolog.Logger
	now        func() time.Time
}

// NewDigestUsecase creates a digest usecase; completion may be nil, in which
// case every digest reports the feature as unavailable
func NewDigestUsecase(groups *GroupUsecase, completion repo.CompletionRepo, config DigestConfig, log zerolog.Logger) *DigestUsecase {
	return &DigestUsecase{
		groups:     groups,
		completion: completion,
		config:     config,
		log:        log.With().Str("component", "digest").Logger(),
		now:        time.Now,
	}
}

// Templates returns the available template names
func (uc *DigestUsecase) Templates() []string {
	names := make([]string, 0, len(uc.config.Templates))
	for name := range uc.config.Templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Digest runs template over the newest retained messages of groupID
func (uc *DigestUsecase) Digest(ctx context.Context, groupID, template string) (*DigestResult, error) {
	if uc.completion == nil {
		return nil, fmt.Errorf("%w: digest model is not configured", domain.ErrUnavailable)
	}
	if template == "" {
		template = "general"
	}
	tpl, ok := uc.config.Templates[template]
	if !ok {
		return nil, fmt.Errorf("%w: unknown template %q, expected one of %s",
			domain.ErrValidation, template, strings.Join(uc.Templates(), ", "))
	}

	group, err := uc.groups.Get(ctx, groupID)
	if err != nil {
		return nil, err
	}
	msgs, err := uc.groups.Messages(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if uc.config.MaxMessages > 0 && len(msgs) > uc.config.MaxMessages {
		msgs = msgs[len(msgs)-uc.config.MaxMessages:]
	}

	result := &DigestResult{GroupID: groupID, Template: template, MessageCount: len(msgs)}
	if len(msgs) == 0 {
		return result, nil
	}

	prompt := tpl
	prompt = strings.ReplaceAll(prompt, "{{group_name}}", group.Name)
	prompt = strings.ReplaceAll(prompt, "{{messages}}", FormatMessages(msgs))
	prompt = strings.ReplaceAll(prompt, "{{now}}", uc.now().Format("2006-01-02 15:04:05"))

	digest, err := uc.completion.Complete(ctx, uc.config.SystemPrompt, strings.TrimSpace(prompt))
	if err != nil {
		return nil, err
	}
	result.Digest = digest

	uc.log.Info().Str("group_id", groupID).Str("template", template).
		Int("messages", len(msgs)).Msg("Digest generated")
	return result, nil
}

// FormatMessages renders one "[time] sender: body" line per message
func FormatMessages(msgs []*domain.NormalizedMessage) string {
	var sb strings.Builder
	for i, m := range msgs {
		if i > 0 {
			sb.WriteByte('\n')
		}
		ts := time.Unix(m.Timestamp, 0).Format("2006-01-02 15:04:05")
		body := m.Body
		if body == "" && m.Type != domain.KindText {
			body = "<" + string(m.Type) + ">"
		}
		fmt.Fprintf(&sb, "[%s] %s: %s", ts, m.From, body)
	}
	return sb.String()
}
