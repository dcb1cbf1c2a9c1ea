package edit

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/anyedit/pkg/protocol"
)

// Kind classifies failures whose message is safe to show the invoking user.
type Kind int

const (
	KindNoCachedMessages Kind = iota + 1
	KindNoEditableMessages
	KindMessageTooLong
	KindMessageWeird
	KindUserMissingPermissions
	KindSelfMissingPermissions
	KindTargetUnreachable
	KindRateLimited
)

func (k Kind) String() string {
	switch k {
	case KindNoCachedMessages:
		return "no_cached_messages"
	case KindNoEditableMessages:
		return "no_editable_messages"
	case KindMessageTooLong:
		return "message_too_long"
	case KindMessageWeird:
		return "message_weird"
	case KindUserMissingPermissions:
		return "user_missing_permissions"
	case KindSelfMissingPermissions:
		return "self_missing_permissions"
	case KindTargetUnreachable:
		return "target_unreachable"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "unknown"
	}
}

// UserError is rendered verbatim as the terminal response of a session.
// Anything else that reaches the pipeline boundary is treated as a bug.
type UserError struct {
	Kind    Kind
	Missing int64 // permission bits, only for the *MissingPermissions kinds
}

func (e *UserError) Error() string {
	switch e.Kind {
	case KindNoCachedMessages:
		return "i don't have any messages from this channel cached yet, try again after someone sends a message"
	case KindNoEditableMessages:
		return "none of the recent messages here can be edited, they all have something i can't reproduce"
	case KindMessageTooLong:
		return fmt.Sprintf("that's too long, messages can be at most %d characters", protocol.MaxMessageLength)
	case KindMessageWeird:
		return "that message has something i can't reproduce (like an embed, a reaction, a sticker or a pin), so i can't edit it"
	case KindUserMissingPermissions:
		return fmt.Sprintf("you need these permissions for that: ```%s```", PermissionNames(e.Missing))
	case KindSelfMissingPermissions:
		return fmt.Sprintf("i need these permissions for that: ```%s```", PermissionNames(e.Missing))
	case KindTargetUnreachable:
		return "i can't reach that message anymore, it's either too old for my cache or already gone"
	case KindRateLimited:
		return "you're editing too fast, wait a bit and try again"
	default:
		return "something went wrong"
	}
}

// Is matches on Kind so the sentinels below work with errors.Is.
func (e *UserError) Is(target error) bool {
	t, ok := target.(*UserError)
	return ok && t.Kind == e.Kind
}

var (
	ErrNoCachedMessages   = &UserError{Kind: KindNoCachedMessages}
	ErrNoEditableMessages = &UserError{Kind: KindNoEditableMessages}
	ErrMessageTooLong     = &UserError{Kind: KindMessageTooLong}
	ErrMessageWeird       = &UserError{Kind: KindMessageWeird}
	ErrTargetUnreachable  = &UserError{Kind: KindTargetUnreachable}
	ErrRateLimited        = &UserError{Kind: KindRateLimited}
)

// UserMissingPermissions reports that the invoking user lacks missing.
func UserMissingPermissions(missing int64) error {
	return &UserError{Kind: KindUserMissingPermissions, Missing: missing}
}

// SelfMissingPermissions reports that the bot itself lacks missing.
func SelfMissingPermissions(missing int64) error {
	return &UserError{Kind: KindSelfMissingPermissions, Missing: missing}
}

// AsUserError unwraps err to a *UserError if it is one.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

var permissionNames = map[int64]string{
	discordgo.PermissionViewChannel:        "VIEW_CHANNEL",
	discordgo.PermissionSendMessages:       "SEND_MESSAGES",
	discordgo.PermissionManageMessages:     "MANAGE_MESSAGES",
	discordgo.PermissionReadMessageHistory: "READ_MESSAGE_HISTORY",
	discordgo.PermissionManageWebhooks:     "MANAGE_WEBHOOKS",
	discordgo.PermissionAttachFiles:        "ATTACH_FILES",
	discordgo.PermissionAdministrator:      "ADMINISTRATOR",
}

// PermissionNames renders a permission bit set the way Discord names the flags.
func PermissionNames(perms int64) string {
	var names []string
	for bit, name := range permissionNames {
		if perms&bit != 0 {
			names = append(names, name)
			perms &^= bit
		}
	}
	sort.Strings(names)
	if perms != 0 {
		names = append(names, fmt.Sprintf("0x%x", perms))
	}
	return strings.Join(names, " | ")
}
