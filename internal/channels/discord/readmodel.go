package discord

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// ReadModel answers message, channel and permission lookups from the gateway
// state cache without any remote call. The cache keeps the most recent
// messages of every channel the bot can see.
type ReadModel struct {
	state *discordgo.State
}

func NewReadModel(state *discordgo.State) *ReadModel {
	return &ReadModel{state: state}
}

// Channel returns a copy of the cached channel.
func (r *ReadModel) Channel(channelID string) (*discordgo.Channel, error) {
	ch, err := r.state.Channel(channelID)
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, err)
	}
	r.state.RLock()
	defer r.state.RUnlock()
	cp := *ch
	cp.Messages = nil
	return &cp, nil
}

// RecentMessages returns copies of the cached messages of a channel, oldest
// first. A channel the cache has never seen has no messages.
func (r *ReadModel) RecentMessages(channelID string) ([]*discordgo.Message, error) {
	ch, err := r.state.Channel(channelID)
	if errors.Is(err, discordgo.ErrStateNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, err)
	}

	r.state.RLock()
	defer r.state.RUnlock()
	out := make([]*discordgo.Message, 0, len(ch.Messages))
	for _, m := range ch.Messages {
		if m == nil {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	return out, nil
}

// Message returns a copy of one cached message.
func (r *ReadModel) Message(channelID, messageID string) (*discordgo.Message, error) {
	msgs, err := r.RecentMessages(channelID)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		if m.ID == messageID {
			return m, nil
		}
	}
	return nil, fmt.Errorf("message %s in channel %s: %w", messageID, channelID, discordgo.ErrStateNotFound)
}

// MissingPermissions returns the bits of required that userID lacks in
// channelID. When the cache can't answer, everything is reported missing.
func (r *ReadModel) MissingPermissions(userID, channelID string, required int64) int64 {
	perms, err := r.state.UserChannelPermissions(userID, channelID)
	if err != nil {
		return required
	}
	return required &^ perms
}

// The state cache merges message updates only partially and ignores
// reactions. These handlers keep the fields the eligibility filter reads
// current on cached messages.

func (r *ReadModel) onMessageUpdate(_ *discordgo.Session, ev *discordgo.MessageUpdate) {
	if ev.Message == nil {
		return
	}
	r.patch(ev.ChannelID, ev.ID, func(m *discordgo.Message) {
		m.Pinned = ev.Pinned
		m.Flags = ev.Flags
		if ev.StickerItems != nil {
			m.StickerItems = ev.StickerItems
		}
		if ev.Reactions != nil {
			m.Reactions = ev.Reactions
		}
	})
}

func (r *ReadModel) onReactionAdd(_ *discordgo.Session, ev *discordgo.MessageReactionAdd) {
	if ev.MessageReaction == nil {
		return
	}
	emoji := ev.Emoji
	r.patch(ev.ChannelID, ev.MessageID, func(m *discordgo.Message) {
		for _, re := range m.Reactions {
			if re.Emoji != nil && re.Emoji.APIName() == emoji.APIName() {
				re.Count++
				return
			}
		}
		m.Reactions = append(m.Reactions, &discordgo.MessageReactions{Count: 1, Emoji: &emoji})
	})
}

func (r *ReadModel) onReactionRemove(_ *discordgo.Session, ev *discordgo.MessageReactionRemove) {
	if ev.MessageReaction == nil {
		return
	}
	name := ev.Emoji.APIName()
	r.patch(ev.ChannelID, ev.MessageID, func(m *discordgo.Message) {
		kept := m.Reactions[:0]
		for _, re := range m.Reactions {
			if re.Emoji != nil && re.Emoji.APIName() == name {
				re.Count--
			}
			if re.Count > 0 {
				kept = append(kept, re)
			}
		}
		m.Reactions = kept
	})
}

func (r *ReadModel) onReactionRemoveAll(_ *discordgo.Session, ev *discordgo.MessageReactionRemoveAll) {
	if ev.MessageReaction == nil {
		return
	}
	r.patch(ev.ChannelID, ev.MessageID, func(m *discordgo.Message) {
		m.Reactions = nil
	})
}

func (r *ReadModel) patch(channelID, messageID string, fn func(*discordgo.Message)) {
	ch, err := r.state.Channel(channelID)
	if err != nil {
		return
	}
	r.state.Lock()
	defer r.state.Unlock()
	for _, m := range ch.Messages {
		if m != nil && m.ID == messageID {
			fn(m)
			return
		}
	}
}
