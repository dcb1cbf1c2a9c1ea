package protocol

import "strings"

// Application command names registered with Discord.
const (
	CommandEdit        = "edit"         // chat input: opens the message picker
	CommandEditMessage = "Edit Message" // message context menu: opens the form directly
)

// Component and modal custom IDs. Discord echoes these back on the follow-up
// interaction, so they carry whatever state the next step needs.
const (
	CustomIDMessagePicker = "edit:pick"
	CustomIDEditFormPref  = "edit:form:" // + target message ID
	CustomIDContentInput  = "content"
)

// MaxMessageLength is Discord's limit for a single message, in characters.
const MaxMessageLength = 2000

// MaxSelectOptions is the most options a select menu accepts.
const MaxSelectOptions = 25

// MaxSelectLabel is the longest label or description a select option accepts.
const MaxSelectLabel = 100

// EditFormID builds the modal custom ID for editing messageID.
func EditFormID(messageID string) string {
	return CustomIDEditFormPref + messageID
}

// ParseEditFormID extracts the target message ID from a modal custom ID.
func ParseEditFormID(customID string) (string, bool) {
	id, ok := strings.CutPrefix(customID, CustomIDEditFormPref)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}
