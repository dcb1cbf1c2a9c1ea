package discord

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"

	"github.com/nextlevelbuilder/anyedit/internal/channels"
	"github.com/nextlevelbuilder/anyedit/internal/reporting"
	"github.com/nextlevelbuilder/anyedit/pkg/protocol"
)

// OwnerNotifier sends failure reports to the application owner as a DM.
type OwnerNotifier struct {
	session *discordgo.Session
	ownerID string
}

func NewOwnerNotifier(session *discordgo.Session, ownerID string) *OwnerNotifier {
	return &OwnerNotifier{session: session, ownerID: ownerID}
}

func (n *OwnerNotifier) Report(ctx context.Context, r reporting.Report) {
	if n.ownerID == "" {
		return
	}
	dm, err := n.session.UserChannelCreate(n.ownerID, discordgo.WithContext(ctx))
	if err != nil {
		slog.Warn("discord: open owner DM failed", "owner_id", n.ownerID, "error", err)
		return
	}
	if _, err := n.session.ChannelMessageSend(dm.ID, reportText(r), discordgo.WithContext(ctx)); err != nil {
		slog.Warn("discord: send owner report failed", "owner_id", n.ownerID, "report_id", r.ID, "error", err)
	}
}

func reportText(r reporting.Report) string {
	where := "outside a channel"
	if r.ChannelID != "" {
		where = fmt.Sprintf("in <#%s>", r.ChannelID)
	}
	head := fmt.Sprintf("a %s interaction by <@%s> failed %s (report `%s`, session `%s`):\n",
		r.Kind, r.UserID, where, r.ID, r.SessionID)
	detail := "unknown error"
	if r.Err != nil {
		detail = r.Err.Error()
	}
	// Leave room for the header and the code fence.
	room := max(protocol.MaxMessageLength-len([]rune(head))-10, 0)
	return head + "```" + channels.Truncate(detail, room) + "```"
}

// OwnerID resolves who owns the application: the team owner for team-owned
// applications, the owner user otherwise.
func OwnerID(app *discordgo.Application) string {
	if app == nil {
		return ""
	}
	if app.Team != nil && app.Team.OwnerID != "" {
		return app.Team.OwnerID
	}
	if app.Owner != nil {
		return app.Owner.ID
	}
	return ""
}
