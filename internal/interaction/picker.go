package interaction

import (
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/anyedit/internal/edit"
	"github.com/nextlevelbuilder/anyedit/pkg/protocol"
)

const (
	pickerPrompt = "please select the message you want to edit"
	formTitle    = "edit message"
	emptyLabel   = "(no text)"
)

// pickerOptions lists the editable messages of history (oldest first),
// newest first, up to the select menu limit.
func pickerOptions(history []*discordgo.Message) []discordgo.SelectMenuOption {
	opts := make([]discordgo.SelectMenuOption, 0, protocol.MaxSelectOptions)
	for i := len(history) - 1; i >= 0 && len(opts) < protocol.MaxSelectOptions; i-- {
		m := history[i]
		if edit.CheckEditable(m) != nil {
			continue
		}
		label := m.Content
		if label == "" {
			label = emptyLabel
		}
		opts = append(opts, discordgo.SelectMenuOption{
			Label:       ellipsize(label, protocol.MaxSelectLabel),
			Value:       m.ID,
			Description: ellipsize(edit.DisplayName(m), protocol.MaxSelectLabel),
		})
	}
	return opts
}

func pickerReply(opts []discordgo.SelectMenuOption) Reply {
	return Reply{
		Content: pickerPrompt,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					MenuType:    discordgo.StringSelectMenu,
					CustomID:    protocol.CustomIDMessagePicker,
					Placeholder: "message to edit",
					Options:     opts,
				},
			}},
		},
	}
}

// Data renders the form as a modal response body.
func (f *Form) Data() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		CustomID: protocol.EditFormID(f.TargetID),
		Title:    formTitle,
		Components: []discordgo.MessageComponent{
			discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				discordgo.TextInput{
					CustomID:  protocol.CustomIDContentInput,
					Label:     "new content",
					Style:     discordgo.TextInputParagraph,
					Value:     f.Content,
					Required:  true,
					MaxLength: protocol.MaxMessageLength,
				},
			}},
		},
	}
}

// ellipsize cuts s to at most max runes, marking the cut with "…".
func ellipsize(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-1]) + "…"
}
