package interaction

import (
	"fmt"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/anyedit/pkg/protocol"
)

// Kind is what triggered a session.
type Kind string

const (
	KindCommand    Kind = "command"
	KindSelection  Kind = "selection"
	KindFormSubmit Kind = "form-submit"
	KindUnknown    Kind = "unknown"
)

// Event is one of the interactions the bot understands. The set is closed:
// only the types below implement it, and Pipeline.dispatch switches over all
// of them.
type Event interface {
	Kind() Kind
	sealed()
}

// PickerCommand is the /edit slash command.
type PickerCommand struct{}

// MessageCommand is the "Edit Message" context menu command on TargetID.
type MessageCommand struct {
	TargetID string
}

// Selection is a pick from the message picker.
type Selection struct {
	TargetID string
}

// FormSubmit carries the replacement content typed into the edit form.
type FormSubmit struct {
	TargetID string
	Content  string
}

func (PickerCommand) Kind() Kind  { return KindCommand }
func (MessageCommand) Kind() Kind { return KindCommand }
func (Selection) Kind() Kind      { return KindSelection }
func (FormSubmit) Kind() Kind     { return KindFormSubmit }

func (PickerCommand) sealed()  {}
func (MessageCommand) sealed() {}
func (Selection) sealed()      {}
func (FormSubmit) sealed()     {}

// Parse classifies a raw interaction.
func Parse(i *discordgo.Interaction) (Event, error) {
	if i == nil {
		return nil, fmt.Errorf("nil interaction")
	}

	switch i.Type {
	case discordgo.InteractionApplicationCommand:
		data := i.ApplicationCommandData()
		switch data.Name {
		case protocol.CommandEdit:
			return PickerCommand{}, nil
		case protocol.CommandEditMessage:
			if data.TargetID == "" {
				return nil, fmt.Errorf("message command without target")
			}
			return MessageCommand{TargetID: data.TargetID}, nil
		}
		return nil, fmt.Errorf("unknown command %q", data.Name)

	case discordgo.InteractionMessageComponent:
		data := i.MessageComponentData()
		if data.CustomID != protocol.CustomIDMessagePicker {
			return nil, fmt.Errorf("unknown component %q", data.CustomID)
		}
		if len(data.Values) != 1 || data.Values[0] == "" {
			return nil, fmt.Errorf("picker selection has %d values", len(data.Values))
		}
		return Selection{TargetID: data.Values[0]}, nil

	case discordgo.InteractionModalSubmit:
		data := i.ModalSubmitData()
		target, ok := protocol.ParseEditFormID(data.CustomID)
		if !ok {
			return nil, fmt.Errorf("unknown modal %q", data.CustomID)
		}
		content, ok := textInputValue(data.Components, protocol.CustomIDContentInput)
		if !ok {
			return nil, fmt.Errorf("modal %q has no %q input", data.CustomID, protocol.CustomIDContentInput)
		}
		return FormSubmit{TargetID: target, Content: content}, nil
	}

	return nil, fmt.Errorf("unsupported interaction type %v", i.Type)
}

func textInputValue(components []discordgo.MessageComponent, customID string) (string, bool) {
	for _, c := range components {
		row, ok := c.(*discordgo.ActionsRow)
		if !ok {
			continue
		}
		for _, rc := range row.Components {
			if in, ok := rc.(*discordgo.TextInput); ok && in.CustomID == customID {
				return in.Value, true
			}
		}
	}
	return "", false
}
