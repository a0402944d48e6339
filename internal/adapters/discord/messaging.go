package discord

import (
	"errors"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"

	"github.com/stlmattjohnson/gameshare-bot/internal/app/service"
)

const msgGenericError = "⚠️ Something went wrong."

func buttonStyle(s service.ButtonStyle) discordgo.ButtonStyle {
	switch s {
	case service.StylePrimary:
		return discordgo.PrimaryButton
	case service.StyleSuccess:
		return discordgo.SuccessButton
	case service.StyleDanger:
		return discordgo.DangerButton
	default:
		return discordgo.SecondaryButton
	}
}

func toEmbeds(es []service.Embed) []*discordgo.MessageEmbed {
	out := make([]*discordgo.MessageEmbed, 0, len(es))
	for _, e := range es {
		me := &discordgo.MessageEmbed{Title: e.Title, Description: e.Description}
		if e.Footer != "" {
			me.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
		}
		for _, f := range e.Fields {
			me.Fields = append(me.Fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: f.Inline})
		}
		out = append(out, me)
	}
	return out
}

func toComponents(rows []service.Row) []discordgo.MessageComponent {
	out := make([]discordgo.MessageComponent, 0, len(rows))
	for _, r := range rows {
		var row discordgo.ActionsRow
		if r.Select != nil {
			opts := make([]discordgo.SelectMenuOption, 0, len(r.Select.Options))
			for _, o := range r.Select.Options {
				opts = append(opts, discordgo.SelectMenuOption{Label: o.Label, Value: o.Value})
			}
			row.Components = append(row.Components, discordgo.SelectMenu{
				MenuType:    discordgo.StringSelectMenu,
				CustomID:    r.Select.CustomID,
				Placeholder: r.Select.Placeholder,
				Options:     opts,
			})
		}
		for _, b := range r.Buttons {
			row.Components = append(row.Components, discordgo.Button{
				Label:    b.Label,
				CustomID: b.CustomID,
				Style:    buttonStyle(b.Style),
				Disabled: b.Disabled,
			})
		}
		if len(row.Components) > 0 {
			out = append(out, row)
		}
	}
	return out
}

// allowedMentions pings only the roles the view names.
func allowedMentions(v service.View) *discordgo.MessageAllowedMentions {
	return &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}, Roles: v.MentionRoles}
}

func toModal(m *service.Modal) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: m.CustomID,
		Title:    m.Title,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:    "value",
					Label:       m.Label,
					Style:       discordgo.TextInputShort,
					Placeholder: m.Placeholder,
					Value:       m.Value,
					Required:    true,
					MaxLength:   m.MaxLength,
				},
			}},
		},
	}
}

func toMessageSend(v service.View) *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:         v.Content,
		Embeds:          toEmbeds(v.Embeds),
		Components:      toComponents(v.Rows),
		AllowedMentions: allowedMentions(v),
	}
}

// toWebhookEdit replaces the whole message: empty slices clear what the
// previous render had.
func toWebhookEdit(v service.View) *discordgo.WebhookEdit {
	content := v.Content
	embeds := toEmbeds(v.Embeds)
	comps := toComponents(v.Rows)
	return &discordgo.WebhookEdit{
		Content:         &content,
		Embeds:          &embeds,
		Components:      &comps,
		AllowedMentions: allowedMentions(v),
	}
}

func toMessageEdit(ref service.MessageRef, v service.View) *discordgo.MessageEdit {
	e := toWebhookEdit(v)
	m := discordgo.NewMessageEdit(ref.ChannelID, ref.MessageID)
	m.Content, m.Embeds, m.Components, m.AllowedMentions = e.Content, e.Embeds, e.Components, e.AllowedMentions
	return m
}

func isRESTCode(err error, code int) bool {
	var re *discordgo.RESTError
	return errors.As(err, &re) && re.Message != nil && re.Message.Code == code
}

// DeferEphemeral acknowledges a slash command with a private "thinking" state.
func DeferEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate) error {
	return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
	})
}

// DeferUpdate acknowledges a component or modal and keeps its message for editing.
func DeferUpdate(s *discordgo.Session, ic *discordgo.InteractionCreate) error {
	return s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredMessageUpdate,
	})
}

// ReplyView sends v as a private follow-up. If the interaction was never
// acknowledged it answers it directly instead.
func ReplyView(s *discordgo.Session, ic *discordgo.InteractionCreate, log zerolog.Logger, v service.View) {
	_, err := s.FollowupMessageCreate(ic.Interaction, true, &discordgo.WebhookParams{
		Content:         v.Content,
		Embeds:          toEmbeds(v.Embeds),
		Components:      toComponents(v.Rows),
		AllowedMentions: allowedMentions(v),
		Flags:           discordgo.MessageFlagsEphemeral,
	})
	if err != nil {
		// unknown webhook: nothing was deferred yet
		if isRESTCode(err, discordgo.ErrCodeUnknownWebhook) {
			err = s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
				Type: discordgo.InteractionResponseChannelMessageWithSource,
				Data: &discordgo.InteractionResponseData{
					Content:         v.Content,
					Embeds:          toEmbeds(v.Embeds),
					Components:      toComponents(v.Rows),
					AllowedMentions: allowedMentions(v),
					Flags:           discordgo.MessageFlagsEphemeral,
				},
			})
		}
		if err != nil {
			log.Warn().Err(err).Msg("reply failed")
		}
	}
	sendFollowups(s, ic, log, v.Followups)
}

func ReplyEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate, log zerolog.Logger, content string) {
	ReplyView(s, ic, log, service.View{Content: content})
}

// EditView replaces the message a deferred component or modal belongs to.
func EditView(s *discordgo.Session, ic *discordgo.InteractionCreate, log zerolog.Logger, v service.View) {
	if _, err := s.InteractionResponseEdit(ic.Interaction, toWebhookEdit(v)); err != nil {
		log.Warn().Err(err).Msg("edit original response failed")
	}
	sendFollowups(s, ic, log, v.Followups)
}

// RespondView answers a not yet acknowledged component with v: a modal when
// the view carries one, else an in place message update.
func RespondView(s *discordgo.Session, ic *discordgo.InteractionCreate, log zerolog.Logger, v service.View) {
	resp := &discordgo.InteractionResponse{Type: discordgo.InteractionResponseModal}
	if v.Modal != nil {
		resp.Data = toModal(v.Modal)
	} else {
		resp.Type = discordgo.InteractionResponseUpdateMessage
		resp.Data = &discordgo.InteractionResponseData{
			Content:         v.Content,
			Embeds:          toEmbeds(v.Embeds),
			Components:      toComponents(v.Rows),
			AllowedMentions: allowedMentions(v),
		}
	}
	if err := s.InteractionRespond(ic.Interaction, resp); err != nil {
		log.Warn().Err(err).Msg("interaction respond failed")
		return
	}
	sendFollowups(s, ic, log, v.Followups)
}

func sendFollowups(s *discordgo.Session, ic *discordgo.InteractionCreate, log zerolog.Logger, msgs []string) {
	for _, m := range msgs {
		_, err := s.FollowupMessageCreate(ic.Interaction, true, &discordgo.WebhookParams{
			Content:         m,
			Flags:           discordgo.MessageFlagsEphemeral,
			AllowedMentions: &discordgo.MessageAllowedMentions{Parse: []discordgo.AllowedMentionType{}},
		})
		if err != nil {
			log.Warn().Err(err).Msg("follow-up failed")
		}
	}
}
