package edit

import (
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// ReplaySet is the run of messages re-posted for one edit, oldest first.
// The target is always Messages[0].
type ReplaySet struct {
	Messages []*discordgo.Message

	// Skipped counts messages newer than the run that were left untouched
	// because the run stopped at one that can't be reproduced.
	Skipped int
}

// Partial reports whether the run stopped before reaching the newest message.
func (s ReplaySet) Partial() bool { return s.Skipped > 0 }

// BuildReplaySet picks the messages to replay from history, which must be in
// channel order (oldest first). The run starts at targetID and extends towards
// the newest message; the first weird message ends it, and it and everything
// after it are left alone.
func BuildReplaySet(history []*discordgo.Message, targetID string) (ReplaySet, error) {
	start := -1
	for i := len(history) - 1; i >= 0; i-- {
		if history[i] != nil && history[i].ID == targetID {
			start = i
			break
		}
	}
	if start < 0 {
		return ReplaySet{}, ErrTargetUnreachable
	}
	if IsWeird(history[start]) {
		return ReplaySet{}, ErrMessageWeird
	}

	set := ReplaySet{Messages: []*discordgo.Message{history[start]}}
	for i := start + 1; i < len(history); i++ {
		m := history[i]
		if IsWeird(m) || TooLong(m.Content) {
			set.Skipped = len(history) - i
			break
		}
		set.Messages = append(set.Messages, m)
	}
	return set, nil
}

// Status distinguishes full from partial success.
type Status int

const (
	StatusEdited Status = iota + 1
	StatusPartial
)

func (s Status) String() string {
	switch s {
	case StatusEdited:
		return "edited"
	case StatusPartial:
		return "partial"
	default:
		return "unknown"
	}
}

// Outcome summarizes a successful replication.
type Outcome struct {
	Status   Status
	Reposted int
	Skipped  int
}

// Message is the text shown to the user who requested the edit.
func (o Outcome) Message() string {
	if o.Status == StatusPartial {
		return fmt.Sprintf("edited! but %s after it had something i can't reproduce, so i left %s alone "+
			"and the edited message now shows up below %s",
			plural(o.Skipped, "message"), them(o.Skipped), them(o.Skipped))
	}
	if o.Reposted > 1 {
		return fmt.Sprintf("edited! (re-sent %d messages to keep them in order)", o.Reposted)
	}
	return "edited!"
}

func plural(n int, noun string) string {
	if n == 1 {
		return "1 " + noun
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

func them(n int) string {
	if n == 1 {
		return "it"
	}
	return "them"
}
