package edit

import (
	"unicode/utf8"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/anyedit/pkg/protocol"
)

// IsWeird reports whether m has anything a plain content + author re-post
// through a webhook would lose. Weird messages are never replayed.
func IsWeird(m *discordgo.Message) bool {
	if m == nil {
		return true
	}
	if m.Activity != nil || m.Application != nil {
		return true
	}
	if m.Author == nil || m.Author.Bot {
		return true
	}
	if len(m.Components) > 0 || len(m.Embeds) > 0 {
		return true
	}
	if m.Interaction != nil {
		return true
	}
	if m.Type != discordgo.MessageTypeDefault && m.Type != discordgo.MessageTypeReply {
		return true
	}
	if m.Pinned || len(m.Reactions) > 0 || len(m.StickerItems) > 0 {
		return true
	}
	// Polls and forwards carry their payload outside Content.
	if m.Poll != nil || len(m.MessageSnapshots) > 0 {
		return true
	}
	// Deleting a thread starter orphans its thread.
	if m.Thread != nil || m.Flags&discordgo.MessageFlagsHasThread != 0 {
		return true
	}
	// Already impersonated: replaying it would chain webhook copies forever.
	return m.WebhookID != ""
}

// TooLong reports whether content exceeds the single-message limit.
func TooLong(content string) bool {
	return utf8.RuneCountInString(content) > protocol.MaxMessageLength
}

// CheckEditable validates a target before an edit form is shown for it.
// Length is checked first: an over-long message can't be loaded into the form.
func CheckEditable(m *discordgo.Message) error {
	if m == nil {
		return ErrTargetUnreachable
	}
	if TooLong(m.Content) {
		return ErrMessageTooLong
	}
	if IsWeird(m) {
		return ErrMessageWeird
	}
	return nil
}

// DisplayName returns the name shown for the author of m.
// Priority: server nickname > global display name > username.
func DisplayName(m *discordgo.Message) string {
	if m.Member != nil && m.Member.Nick != "" {
		return m.Member.Nick
	}
	if m.Author == nil {
		return ""
	}
	if m.Author.GlobalName != "" {
		return m.Author.GlobalName
	}
	return m.Author.Username
}
