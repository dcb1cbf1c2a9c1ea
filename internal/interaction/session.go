package interaction

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
)

// State is the lifecycle position of a session. It only moves forward.
type State int

const (
	StateReceived State = iota
	StateAcknowledged
	StateDispatched
	StateResolved
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateAcknowledged:
		return "acknowledged"
	case StateDispatched:
		return "dispatched"
	case StateResolved:
		return "resolved"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// AckKind is the shape of the initial response to an interaction.
type AckKind int

const (
	// AckDeferredReply promises a reply visible only to the invoking user.
	AckDeferredReply AckKind = iota + 1
	// AckDeferredUpdate promises an update of the message holding the component.
	AckDeferredUpdate
	// AckForm answers with the edit form. Nothing follows it.
	AckForm
)

func (k AckKind) String() string {
	switch k {
	case AckDeferredReply:
		return "deferred_reply"
	case AckDeferredUpdate:
		return "deferred_update"
	case AckForm:
		return "form"
	default:
		return "unknown"
	}
}

// Form is the edit form for one message, prefilled with its current content.
type Form struct {
	TargetID string
	Content  string
}

// Ack is the initial response of a session.
type Ack struct {
	Kind AckKind
	Form *Form // set only for AckForm
}

// Reply is the terminal response of a session.
type Reply struct {
	Content    string
	Components []discordgo.MessageComponent
}

// Responder sends the two responses every session gets.
type Responder interface {
	// Acknowledge sends the initial response. Discord requires it within a few
	// seconds of receipt.
	Acknowledge(ctx context.Context, i *discordgo.Interaction, ack Ack) error
	// UpdateTerminal replaces the deferred response with the final one.
	UpdateTerminal(ctx context.Context, i *discordgo.Interaction, reply Reply) error
}

// Session tracks one interaction from receipt to its terminal response.
type Session struct {
	ID          string
	Interaction *discordgo.Interaction
	Kind        Kind
	Received    time.Time

	state State
	ack   AckKind
}

func newSession(i *discordgo.Interaction) *Session {
	return &Session{
		ID:          uuid.NewString(),
		Interaction: i,
		Kind:        KindUnknown,
		Received:    time.Now(),
		state:       StateReceived,
	}
}

// State returns the current lifecycle position.
func (s *Session) State() State { return s.state }

// advance moves to next. States may be skipped but never revisited.
func (s *Session) advance(next State) {
	if next <= s.state {
		panic(fmt.Sprintf("session %s: illegal transition %s -> %s", s.ID, s.state, next))
	}
	s.state = next
}

// Acknowledged is a session whose acknowledgment has been attempted. Work is
// only dispatched through this handle, so nothing runs before the initial
// response went out.
type Acknowledged struct {
	session *Session
	err     error // acknowledgment failure, if any
}

// acknowledge attempts the initial response exactly once.
func (s *Session) acknowledge(ctx context.Context, r Responder, ack Ack) *Acknowledged {
	s.advance(StateAcknowledged)
	s.ack = ack.Kind
	err := safely(func() error { return r.Acknowledge(ctx, s.Interaction, ack) })
	return &Acknowledged{session: s, err: err}
}

// Session returns the underlying session.
func (a *Acknowledged) Session() *Session { return a.session }

// Interaction returns the interaction being handled.
func (a *Acknowledged) Interaction() *discordgo.Interaction { return a.session.Interaction }

// Err returns the acknowledgment failure, if any.
func (a *Acknowledged) Err() error { return a.err }

func (a *Acknowledged) dispatched() { a.session.advance(StateDispatched) }

// resolve attempts the terminal response exactly once. A session answered
// with the form is already complete and makes no further call.
func (a *Acknowledged) resolve(ctx context.Context, r Responder, reply Reply) error {
	a.session.advance(StateResolved)
	if a.session.ack == AckForm {
		return nil
	}
	return safely(func() error { return r.UpdateTerminal(ctx, a.session.Interaction, reply) })
}

// safely runs fn, converting a panic into an error.
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return fn()
}
