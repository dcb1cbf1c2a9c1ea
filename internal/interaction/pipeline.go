// Package interaction drives every Discord interaction through the same
// lifecycle: received, acknowledged, dispatched and resolved. Each session
// gets exactly one acknowledgment and at most one terminal response.
package interaction

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nextlevelbuilder/anyedit/internal/channels"
	"github.com/nextlevelbuilder/anyedit/internal/edit"
	"github.com/nextlevelbuilder/anyedit/internal/reporting"
)

// Apology is shown when a session fails in a way the user can't fix.
const Apology = "an error happened :( i let my developer know, hopefully they'll fix it soon!"

const (
	// UserRequired is what a user needs to edit other people's messages.
	UserRequired int64 = discordgo.PermissionManageMessages
	// SelfRequired is what the bot needs to replicate messages.
	SelfRequired int64 = discordgo.PermissionViewChannel |
		discordgo.PermissionReadMessageHistory |
		discordgo.PermissionManageMessages |
		discordgo.PermissionManageWebhooks
)

// Reader looks up cached messages.
type Reader interface {
	Message(channelID, messageID string) (*discordgo.Message, error)
	// RecentMessages returns the cached window of the channel, oldest first.
	RecentMessages(channelID string) ([]*discordgo.Message, error)
}

// Permissions answers which of required a user lacks in a channel.
type Permissions interface {
	MissingPermissions(userID, channelID string, required int64) int64
}

// Replicator performs an edit.
type Replicator interface {
	Replicate(ctx context.Context, req edit.Request) (edit.Outcome, error)
}

// Recorder receives one observation per resolved session. May be nil.
type Recorder interface {
	SessionResolved(kind, result string, elapsed time.Duration)
}

// PanicError is a recovered panic.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v\n%s", e.Value, e.Stack)
}

// Config wires a pipeline.
type Config struct {
	Responder   Responder
	Reader      Reader
	Permissions Permissions
	Replicator  Replicator
	Reports     reporting.Sink
	Limiter     *channels.UserRateLimiter // nil disables rate limiting
	Recorder    Recorder
	SelfID      string
}

// Pipeline handles interactions. Safe for concurrent use.
type Pipeline struct {
	responder   Responder
	reader      Reader
	permissions Permissions
	replicator  Replicator
	reports     reporting.Sink
	limiter     *channels.UserRateLimiter
	recorder    Recorder
	selfID      atomic.Value // string
	tracer      trace.Tracer
}

func New(cfg Config) *Pipeline {
	p := &Pipeline{
		responder:   cfg.Responder,
		reader:      cfg.Reader,
		permissions: cfg.Permissions,
		replicator:  cfg.Replicator,
		reports:     cfg.Reports,
		limiter:     cfg.Limiter,
		recorder:    cfg.Recorder,
		tracer:      otel.Tracer("github.com/nextlevelbuilder/anyedit/internal/interaction"),
	}
	p.selfID.Store(cfg.SelfID)
	return p
}

// SetSelfID sets the bot user ID once the gateway session is ready. Until
// then the bot's own permissions aren't checked up front.
func (p *Pipeline) SetSelfID(id string) { p.selfID.Store(id) }

// Handle runs one interaction to completion and returns its session. It never
// panics and never returns before the terminal response was attempted.
func (p *Pipeline) Handle(ctx context.Context, i *discordgo.Interaction) *Session {
	sess := newSession(i)
	ctx, span := p.tracer.Start(ctx, "interaction.handle", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("channel.id", channelID(i)),
	))
	defer span.End()

	var ev Event
	err := safely(func() error {
		var parseErr error
		ev, parseErr = Parse(i)
		return parseErr
	})
	ack := Ack{Kind: AckDeferredReply}
	if err == nil {
		sess.Kind = ev.Kind()
		err = safely(func() error {
			var planErr error
			ack, planErr = p.plan(i, ev)
			return planErr
		})
	}
	span.SetAttributes(attribute.String("interaction.kind", string(sess.Kind)))

	acked := sess.acknowledge(ctx, p.responder, ack)
	var reply Reply
	switch {
	case acked.Err() != nil:
		err = fmt.Errorf("acknowledge: %w", acked.Err())
	case err == nil:
		reply, err = p.dispatch(ctx, acked, ev)
	}

	result := p.finish(ctx, acked, reply, err)
	if result == resultError || result == resultUndelivered {
		span.SetStatus(codes.Error, result)
		if err != nil {
			span.RecordError(err)
		}
	}
	if p.recorder != nil {
		p.recorder.SessionResolved(string(sess.Kind), result, time.Since(sess.Received))
	}
	return sess
}

// plan picks the acknowledgment. Interactions that open the edit form are
// validated here, against local state only, because the form can only be sent
// as the initial response. A failed validation falls back to a deferral so
// the error can be shown as the terminal response.
func (p *Pipeline) plan(i *discordgo.Interaction, ev Event) (Ack, error) {
	switch ev := ev.(type) {
	case PickerCommand, FormSubmit:
		return Ack{Kind: AckDeferredReply}, nil
	case MessageCommand:
		form, err := p.prepareForm(i, ev.TargetID)
		if err != nil {
			return Ack{Kind: AckDeferredReply}, err
		}
		return Ack{Kind: AckForm, Form: form}, nil
	case Selection:
		form, err := p.prepareForm(i, ev.TargetID)
		if err != nil {
			return Ack{Kind: AckDeferredUpdate}, err
		}
		return Ack{Kind: AckForm, Form: form}, nil
	}
	return Ack{Kind: AckDeferredReply}, fmt.Errorf("unhandled event %T", ev)
}

func (p *Pipeline) prepareForm(i *discordgo.Interaction, targetID string) (*Form, error) {
	if err := p.checkUser(i); err != nil {
		return nil, err
	}
	m, err := p.reader.Message(i.ChannelID, targetID)
	if err != nil || m == nil {
		return nil, edit.ErrTargetUnreachable
	}
	if err := edit.CheckEditable(m); err != nil {
		return nil, err
	}
	return &Form{TargetID: m.ID, Content: m.Content}, nil
}

func (p *Pipeline) dispatch(ctx context.Context, a *Acknowledged, ev Event) (reply Reply, err error) {
	a.dispatched()
	err = safely(func() error {
		var dispatchErr error
		switch ev := ev.(type) {
		case PickerCommand:
			reply, dispatchErr = p.showPicker(a.Interaction())
		case MessageCommand, Selection:
			// The form went out as the acknowledgment.
		case FormSubmit:
			reply, dispatchErr = p.submit(ctx, a.Interaction(), ev)
		default:
			dispatchErr = fmt.Errorf("unhandled event %T", ev)
		}
		return dispatchErr
	})
	return reply, err
}

func (p *Pipeline) showPicker(i *discordgo.Interaction) (Reply, error) {
	if err := p.checkUser(i); err != nil {
		return Reply{}, err
	}
	history, err := p.reader.RecentMessages(i.ChannelID)
	if err != nil {
		return Reply{}, fmt.Errorf("read channel %s: %w", i.ChannelID, err)
	}
	if len(history) == 0 {
		return Reply{}, edit.ErrNoCachedMessages
	}
	opts := pickerOptions(history)
	if len(opts) == 0 {
		return Reply{}, edit.ErrNoEditableMessages
	}
	return pickerReply(opts), nil
}

func (p *Pipeline) submit(ctx context.Context, i *discordgo.Interaction, ev FormSubmit) (Reply, error) {
	if err := p.checkUser(i); err != nil {
		return Reply{}, err
	}
	if err := p.checkSelf(i); err != nil {
		return Reply{}, err
	}
	if edit.TooLong(ev.Content) {
		return Reply{}, edit.ErrMessageTooLong
	}

	user := invoker(i)
	if !p.limiter.Allow(user.ID) {
		return Reply{}, edit.ErrRateLimited
	}

	out, err := p.replicator.Replicate(ctx, edit.Request{
		ChannelID:  i.ChannelID,
		TargetID:   ev.TargetID,
		Content:    ev.Content,
		EditorID:   user.ID,
		EditorName: invokerName(i),
	})
	if err != nil {
		return Reply{}, err
	}
	return Reply{Content: out.Message()}, nil
}

// checkUser uses the permissions Discord resolved for the invoking member
// and falls back to the local cache.
func (p *Pipeline) checkUser(i *discordgo.Interaction) error {
	var missing int64
	if i.Member != nil && i.Member.Permissions != 0 {
		missing = UserRequired &^ i.Member.Permissions
	} else {
		missing = p.permissions.MissingPermissions(invoker(i).ID, i.ChannelID, UserRequired)
	}
	if missing != 0 {
		return edit.UserMissingPermissions(missing)
	}
	return nil
}

func (p *Pipeline) checkSelf(i *discordgo.Interaction) error {
	var missing int64
	switch self, _ := p.selfID.Load().(string); {
	case i.AppPermissions != 0:
		missing = SelfRequired &^ i.AppPermissions
	case self != "":
		missing = p.permissions.MissingPermissions(self, i.ChannelID, SelfRequired)
	}
	if missing != 0 {
		return edit.SelfMissingPermissions(missing)
	}
	return nil
}

const (
	resultOK          = "ok"
	resultError       = "error"
	resultUndelivered = "undelivered"
)

// finish turns the session's error into the terminal response and sends it.
// User errors are shown as they are; anything else gets the apology and goes
// to the operator. A failed terminal response is logged and swallowed.
func (p *Pipeline) finish(ctx context.Context, a *Acknowledged, reply Reply, err error) string {
	sess := a.Session()
	result := resultOK
	if err != nil {
		if ue, ok := edit.AsUserError(err); ok {
			result = ue.Kind.String()
			reply = Reply{Content: ue.Error()}
		} else {
			result = resultError
			reply = Reply{Content: Apology}
			p.report(ctx, sess, err)
		}
	}

	if uerr := a.resolve(ctx, p.responder, reply); uerr != nil {
		slog.Warn("terminal response failed",
			"session_id", sess.ID, "kind", sess.Kind, "error", uerr)
		if result == resultOK {
			result = resultUndelivered
		}
		return result
	}
	slog.Debug("interaction resolved",
		"session_id", sess.ID, "kind", sess.Kind, "result", result,
		"elapsed", time.Since(sess.Received))
	return result
}

func (p *Pipeline) report(ctx context.Context, sess *Session, err error) {
	if p.reports == nil {
		return
	}
	r := reporting.New(sess.ID, string(sess.Kind), err)
	if i := sess.Interaction; i != nil {
		r.GuildID = i.GuildID
		r.ChannelID = i.ChannelID
		r.UserID = invoker(i).ID
	}
	p.reports.Report(ctx, r)
}

func invoker(i *discordgo.Interaction) *discordgo.User {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User
	}
	if i.User != nil {
		return i.User
	}
	return &discordgo.User{}
}

func invokerName(i *discordgo.Interaction) string {
	if i.Member != nil && i.Member.Nick != "" {
		return i.Member.Nick
	}
	u := invoker(i)
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

func channelID(i *discordgo.Interaction) string {
	if i == nil {
		return ""
	}
	return i.ChannelID
}
