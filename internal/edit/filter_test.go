package edit

import (
	"strings"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plain(id, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: "c1",
		Content:   content,
		Type:      discordgo.MessageTypeDefault,
		Author:    &discordgo.User{ID: "u-" + id, Username: "user" + id},
	}
}

func TestIsWeird(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m *discordgo.Message)
		want   bool
	}{
		{name: "plain text", mutate: func(*discordgo.Message) {}, want: false},
		{name: "reply", mutate: func(m *discordgo.Message) { m.Type = discordgo.MessageTypeReply }, want: false},
		{name: "empty content", mutate: func(m *discordgo.Message) { m.Content = "" }, want: false},
		{name: "with attachment", mutate: func(m *discordgo.Message) {
			m.Attachments = []*discordgo.MessageAttachment{{ID: "a", Filename: "cat.png"}}
		}, want: false},
		{name: "activity", mutate: func(m *discordgo.Message) { m.Activity = &discordgo.MessageActivity{} }, want: true},
		{name: "application", mutate: func(m *discordgo.Message) { m.Application = &discordgo.MessageApplication{} }, want: true},
		{name: "no author", mutate: func(m *discordgo.Message) { m.Author = nil }, want: true},
		{name: "bot author", mutate: func(m *discordgo.Message) { m.Author.Bot = true }, want: true},
		{name: "components", mutate: func(m *discordgo.Message) {
			m.Components = []discordgo.MessageComponent{discordgo.ActionsRow{}}
		}, want: true},
		{name: "embeds", mutate: func(m *discordgo.Message) { m.Embeds = []*discordgo.MessageEmbed{{Title: "x"}} }, want: true},
		{name: "interaction response", mutate: func(m *discordgo.Message) {
			m.Interaction = &discordgo.MessageInteraction{ID: "i"}
		}, want: true},
		{name: "member join", mutate: func(m *discordgo.Message) { m.Type = discordgo.MessageTypeGuildMemberJoin }, want: true},
		{name: "pinned", mutate: func(m *discordgo.Message) { m.Pinned = true }, want: true},
		{name: "reactions", mutate: func(m *discordgo.Message) {
			m.Reactions = []*discordgo.MessageReactions{{Count: 1, Emoji: &discordgo.Emoji{Name: "👍"}}}
		}, want: true},
		{name: "sticker", mutate: func(m *discordgo.Message) {
			m.StickerItems = []*discordgo.StickerItem{{ID: "s"}}
		}, want: true},
		{name: "webhook", mutate: func(m *discordgo.Message) { m.WebhookID = "w" }, want: true},
		{name: "poll", mutate: func(m *discordgo.Message) {
			m.Poll = &discordgo.Poll{Question: discordgo.PollMedia{Text: "lunch?"}}
		}, want: true},
		{name: "forward", mutate: func(m *discordgo.Message) {
			m.Content = ""
			m.MessageSnapshots = []discordgo.MessageSnapshot{{Message: &discordgo.Message{Content: "fwd"}}}
		}, want: true},
		{name: "thread starter", mutate: func(m *discordgo.Message) {
			m.Thread = &discordgo.Channel{ID: "1", Type: discordgo.ChannelTypeGuildPublicThread}
		}, want: true},
		{name: "has thread flag", mutate: func(m *discordgo.Message) { m.Flags = discordgo.MessageFlagsHasThread }, want: true},
		{name: "suppressed embeds flag", mutate: func(m *discordgo.Message) { m.Flags = discordgo.MessageFlagsSuppressEmbeds }, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := plain("1", "hello")
			tt.mutate(m)
			assert.Equal(t, tt.want, IsWeird(m))
		})
	}
}

func TestIsWeird_NilMessage(t *testing.T) {
	assert.True(t, IsWeird(nil))
}

func TestIsWeird_DoesNotModify(t *testing.T) {
	m := plain("1", "hello")
	m.Reactions = []*discordgo.MessageReactions{{Count: 2}}
	before := *m

	IsWeird(m)
	IsWeird(m)

	assert.Equal(t, before, *m)
}

func TestTooLong(t *testing.T) {
	assert.False(t, TooLong(""))
	assert.False(t, TooLong(strings.Repeat("a", 2000)))
	assert.True(t, TooLong(strings.Repeat("a", 2001)))
	// Characters, not bytes.
	assert.False(t, TooLong(strings.Repeat("é", 2000)))
}

func TestCheckEditable(t *testing.T) {
	long := plain("1", strings.Repeat("x", 2001))
	long.Pinned = true
	pinned := plain("2", "hi")
	pinned.Pinned = true

	tests := []struct {
		name string
		msg  *discordgo.Message
		want error
	}{
		{name: "ok", msg: plain("1", "hi"), want: nil},
		{name: "missing", msg: nil, want: ErrTargetUnreachable},
		{name: "weird", msg: pinned, want: ErrMessageWeird},
		{name: "too long wins over weird", msg: long, want: ErrMessageTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckEditable(tt.msg)
			if tt.want == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestDisplayName(t *testing.T) {
	m := plain("1", "hi")
	assert.Equal(t, "user1", DisplayName(m))

	m.Author.GlobalName = "Global"
	assert.Equal(t, "Global", DisplayName(m))

	m.Member = &discordgo.Member{Nick: "Nick"}
	assert.Equal(t, "Nick", DisplayName(m))

	assert.Equal(t, "", DisplayName(&discordgo.Message{}))
}
