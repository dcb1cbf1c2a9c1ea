package discord

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/anyedit/internal/interaction"
)

// Responder sends interaction responses. Every reply the bot makes to an
// interaction is visible only to the invoking user.
type Responder struct {
	session *discordgo.Session
}

func NewResponder(session *discordgo.Session) *Responder {
	return &Responder{session: session}
}

func (r *Responder) Acknowledge(ctx context.Context, i *discordgo.Interaction, ack interaction.Ack) error {
	resp, err := ackResponse(ack)
	if err != nil {
		return err
	}
	return r.session.InteractionRespond(i, resp, discordgo.WithContext(ctx))
}

func (r *Responder) UpdateTerminal(ctx context.Context, i *discordgo.Interaction, reply interaction.Reply) error {
	_, err := r.session.InteractionResponseEdit(i, terminalEdit(reply), discordgo.WithContext(ctx))
	return err
}

func ackResponse(ack interaction.Ack) (*discordgo.InteractionResponse, error) {
	switch ack.Kind {
	case interaction.AckDeferredReply:
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
			Data: &discordgo.InteractionResponseData{Flags: discordgo.MessageFlagsEphemeral},
		}, nil
	case interaction.AckDeferredUpdate:
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseDeferredMessageUpdate,
		}, nil
	case interaction.AckForm:
		if ack.Form == nil {
			return nil, fmt.Errorf("form acknowledgment without a form")
		}
		return &discordgo.InteractionResponse{
			Type: discordgo.InteractionResponseModal,
			Data: ack.Form.Data(),
		}, nil
	}
	return nil, fmt.Errorf("unknown acknowledgment kind %v", ack.Kind)
}

// terminalEdit replaces content and components; a reply without components
// removes the ones the message had, e.g. the picker after a selection.
func terminalEdit(reply interaction.Reply) *discordgo.WebhookEdit {
	content := reply.Content
	components := reply.Components
	if components == nil {
		components = []discordgo.MessageComponent{}
	}
	return &discordgo.WebhookEdit{
		Content:    &content,
		Components: &components,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{},
		},
	}
}
