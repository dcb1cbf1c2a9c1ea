package interaction

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nextlevelbuilder/anyedit/internal/channels"
	"github.com/nextlevelbuilder/anyedit/internal/edit"
	"github.com/nextlevelbuilder/anyedit/internal/reporting"
	"github.com/nextlevelbuilder/anyedit/pkg/protocol"
)

// --- interaction builders ---

func moderator() *discordgo.Member {
	return &discordgo.Member{
		User:        &discordgo.User{ID: "mod", Username: "moduser"},
		Nick:        "Mod",
		Permissions: discordgo.PermissionManageMessages | discordgo.PermissionSendMessages,
	}
}

func base(typ discordgo.InteractionType, data discordgo.InteractionData) *discordgo.Interaction {
	return &discordgo.Interaction{
		ID:             "i1",
		Type:           typ,
		GuildID:        "g1",
		ChannelID:      "c1",
		Member:         moderator(),
		AppPermissions: SelfRequired,
		Data:           data,
	}
}

func slashCommand() *discordgo.Interaction {
	return base(discordgo.InteractionApplicationCommand,
		discordgo.ApplicationCommandInteractionData{Name: protocol.CommandEdit})
}

func messageCommand(target string) *discordgo.Interaction {
	return base(discordgo.InteractionApplicationCommand,
		discordgo.ApplicationCommandInteractionData{Name: protocol.CommandEditMessage, TargetID: target})
}

func selection(target string) *discordgo.Interaction {
	return base(discordgo.InteractionMessageComponent,
		discordgo.MessageComponentInteractionData{CustomID: protocol.CustomIDMessagePicker, Values: []string{target}})
}

func formSubmit(target, content string) *discordgo.Interaction {
	return base(discordgo.InteractionModalSubmit, discordgo.ModalSubmitInteractionData{
		CustomID: protocol.EditFormID(target),
		Components: []discordgo.MessageComponent{
			&discordgo.ActionsRow{Components: []discordgo.MessageComponent{
				&discordgo.TextInput{CustomID: protocol.CustomIDContentInput, Value: content},
			}},
		},
	})
}

func message(id, content string) *discordgo.Message {
	return &discordgo.Message{
		ID:        id,
		ChannelID: "c1",
		Content:   content,
		Type:      discordgo.MessageTypeDefault,
		Author:    &discordgo.User{ID: "u" + id, Username: "user" + id},
	}
}

// --- fakes ---

type fakeResponder struct {
	mu        sync.Mutex
	acks      []Ack
	terminals []Reply
	ackErr    error
	termErr   error
	ackPanic  bool
}

func (r *fakeResponder) Acknowledge(_ context.Context, _ *discordgo.Interaction, ack Ack) error {
	r.mu.Lock()
	r.acks = append(r.acks, ack)
	r.mu.Unlock()
	if r.ackPanic {
		panic("responder exploded")
	}
	return r.ackErr
}

func (r *fakeResponder) UpdateTerminal(_ context.Context, _ *discordgo.Interaction, reply Reply) error {
	r.mu.Lock()
	r.terminals = append(r.terminals, reply)
	r.mu.Unlock()
	return r.termErr
}

type fakeReader struct {
	history []*discordgo.Message
	calls   atomic.Int32
}

func (r *fakeReader) Message(_, id string) (*discordgo.Message, error) {
	r.calls.Add(1)
	for _, m := range r.history {
		if m.ID == id {
			return m, nil
		}
	}
	return nil, discordgo.ErrStateNotFound
}

func (r *fakeReader) RecentMessages(string) ([]*discordgo.Message, error) {
	r.calls.Add(1)
	return r.history, nil
}

type fakePermissions struct {
	missing map[string]int64 // userID → missing bits
}

func (p *fakePermissions) MissingPermissions(userID, _ string, required int64) int64 {
	return p.missing[userID] & required
}

type fakeReplicator struct {
	requests []edit.Request
	outcome  edit.Outcome
	err      error
	panic    bool
}

func (r *fakeReplicator) Replicate(_ context.Context, req edit.Request) (edit.Outcome, error) {
	r.requests = append(r.requests, req)
	if r.panic {
		panic("replicator exploded")
	}
	return r.outcome, r.err
}

type fakeSink struct{ reports []reporting.Report }

func (s *fakeSink) Report(_ context.Context, r reporting.Report) { s.reports = append(s.reports, r) }

type fakeRecorder struct {
	mu           sync.Mutex
	kind, result string
}

func (r *fakeRecorder) SessionResolved(kind, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kind, r.result = kind, result
}

type harness struct {
	responder  *fakeResponder
	reader     *fakeReader
	perms      *fakePermissions
	replicator *fakeReplicator
	sink       *fakeSink
	recorder   *fakeRecorder
	pipeline   *Pipeline
}

func newHarness(history ...*discordgo.Message) *harness {
	h := &harness{
		responder:  &fakeResponder{},
		reader:     &fakeReader{history: history},
		perms:      &fakePermissions{},
		replicator: &fakeReplicator{outcome: edit.Outcome{Status: edit.StatusEdited, Reposted: 1}},
		sink:       &fakeSink{},
		recorder:   &fakeRecorder{},
	}
	h.pipeline = New(Config{
		Responder:   h.responder,
		Reader:      h.reader,
		Permissions: h.perms,
		Replicator:  h.replicator,
		Reports:     h.sink,
		Recorder:    h.recorder,
		SelfID:      "bot",
	})
	return h
}

func (h *harness) handle(i *discordgo.Interaction) *Session {
	return h.pipeline.Handle(context.Background(), i)
}

// assertLifecycle checks the guarantees every session gets.
func (h *harness) assertLifecycle(t *testing.T, sess *Session, wantTerminal bool) {
	t.Helper()
	assert.Equal(t, StateResolved, sess.State())
	assert.Len(t, h.responder.acks, 1, "exactly one acknowledgment")
	if wantTerminal {
		assert.Len(t, h.responder.terminals, 1, "exactly one terminal response")
	} else {
		assert.Empty(t, h.responder.terminals)
	}
}

// --- tests ---

func TestHandle_PickerCommand(t *testing.T) {
	h := newHarness(message("1", "hello"), message("2", "world"))

	sess := h.handle(slashCommand())
	h.assertLifecycle(t, sess, true)

	assert.Equal(t, KindCommand, sess.Kind)
	assert.Equal(t, AckDeferredReply, h.responder.acks[0].Kind)
	reply := h.responder.terminals[0]
	assert.Equal(t, pickerPrompt, reply.Content)
	require.Len(t, reply.Components, 1)
	assert.Equal(t, "ok", h.recorder.result)
	assert.Empty(t, h.sink.reports)
}

func TestHandle_PickerWithEmptyCache(t *testing.T) {
	h := newHarness()

	sess := h.handle(slashCommand())
	h.assertLifecycle(t, sess, true)

	assert.Equal(t, edit.ErrNoCachedMessages.Error(), h.responder.terminals[0].Content)
	assert.Empty(t, h.replicator.requests)
	assert.Equal(t, "no_cached_messages", h.recorder.result)
	assert.Empty(t, h.sink.reports)
}

func TestHandle_PickerWithNothingEditable(t *testing.T) {
	bot := message("1", "beep")
	bot.Author.Bot = true
	h := newHarness(bot)

	h.handle(slashCommand())
	assert.Equal(t, edit.ErrNoEditableMessages.Error(), h.responder.terminals[0].Content)
}

func TestHandle_UserMissingPermissions(t *testing.T) {
	build := map[string]func() *discordgo.Interaction{
		"slash command":   slashCommand,
		"message command": func() *discordgo.Interaction { return messageCommand("1") },
		"selection":       func() *discordgo.Interaction { return selection("1") },
		"form submit":     func() *discordgo.Interaction { return formSubmit("1", "x") },
	}
	for name, fn := range build {
		t.Run(name, func(t *testing.T) {
			h := newHarness(message("1", "hello"))
			i := fn()
			i.Member.Permissions = discordgo.PermissionSendMessages

			sess := h.handle(i)
			h.assertLifecycle(t, sess, true)

			assert.Contains(t, h.responder.terminals[0].Content, "MANAGE_MESSAGES")
			assert.Contains(t, h.responder.terminals[0].Content, "you need")
			assert.Zero(t, h.reader.calls.Load(), "no cache work before the permission check")
			assert.Empty(t, h.replicator.requests)
			assert.Equal(t, "user_missing_permissions", h.recorder.result)
		})
	}
}

func TestHandle_PermissionsFallBackToCache(t *testing.T) {
	h := newHarness(message("1", "hello"))
	h.perms.missing = map[string]int64{"mod": discordgo.PermissionManageMessages}
	i := slashCommand()
	i.Member.Permissions = 0

	h.handle(i)
	assert.Contains(t, h.responder.terminals[0].Content, "MANAGE_MESSAGES")
}

func TestHandle_MessageCommandOpensForm(t *testing.T) {
	h := newHarness(message("1", "hello"))

	sess := h.handle(messageCommand("1"))
	h.assertLifecycle(t, sess, false)

	ack := h.responder.acks[0]
	assert.Equal(t, AckForm, ack.Kind)
	require.NotNil(t, ack.Form)
	assert.Equal(t, Form{TargetID: "1", Content: "hello"}, *ack.Form)
	assert.Equal(t, "ok", h.recorder.result)
}

func TestHandle_SelectionOpensForm(t *testing.T) {
	h := newHarness(message("1", "hello"), message("2", "world"))

	sess := h.handle(selection("2"))
	h.assertLifecycle(t, sess, false)

	assert.Equal(t, KindSelection, sess.Kind)
	assert.Equal(t, AckForm, h.responder.acks[0].Kind)
	assert.Equal(t, "world", h.responder.acks[0].Form.Content)
}

func TestHandle_FormRejected(t *testing.T) {
	pinned := message("1", "pinned")
	pinned.Pinned = true
	long := message("2", strings.Repeat("x", 2001))

	tests := []struct {
		name    string
		in      *discordgo.Interaction
		wantAck AckKind
		want    error
	}{
		{name: "selection of weird message", in: selection("1"), wantAck: AckDeferredUpdate, want: edit.ErrMessageWeird},
		{name: "command on weird message", in: messageCommand("1"), wantAck: AckDeferredReply, want: edit.ErrMessageWeird},
		{name: "command on long message", in: messageCommand("2"), wantAck: AckDeferredReply, want: edit.ErrMessageTooLong},
		{name: "command on uncached message", in: messageCommand("9"), wantAck: AckDeferredReply, want: edit.ErrTargetUnreachable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(pinned, long)

			sess := h.handle(tt.in)
			h.assertLifecycle(t, sess, true)

			assert.Equal(t, tt.wantAck, h.responder.acks[0].Kind)
			assert.Equal(t, tt.want.Error(), h.responder.terminals[0].Content)
			assert.Empty(t, h.sink.reports)
		})
	}
}

func TestHandle_SubmitReplicates(t *testing.T) {
	h := newHarness(message("1", "hello"))
	h.replicator.outcome = edit.Outcome{Status: edit.StatusEdited, Reposted: 3}

	sess := h.handle(formSubmit("1", "hi there"))
	h.assertLifecycle(t, sess, true)

	assert.Equal(t, KindFormSubmit, sess.Kind)
	assert.Equal(t, AckDeferredReply, h.responder.acks[0].Kind)
	require.Len(t, h.replicator.requests, 1)
	assert.Equal(t, edit.Request{
		ChannelID:  "c1",
		TargetID:   "1",
		Content:    "hi there",
		EditorID:   "mod",
		EditorName: "Mod",
	}, h.replicator.requests[0])
	assert.Equal(t, h.replicator.outcome.Message(), h.responder.terminals[0].Content)
	assert.Empty(t, h.responder.terminals[0].Components)
}

func TestHandle_SubmitLength(t *testing.T) {
	h := newHarness(message("1", "hello"))
	h.handle(formSubmit("1", strings.Repeat("a", 2000)))
	assert.Len(t, h.replicator.requests, 1)

	h = newHarness(message("1", "hello"))
	h.handle(formSubmit("1", strings.Repeat("a", 2001)))
	assert.Empty(t, h.replicator.requests)
	assert.Equal(t, edit.ErrMessageTooLong.Error(), h.responder.terminals[0].Content)
}

func TestHandle_SelfMissingPermissions(t *testing.T) {
	h := newHarness(message("1", "hello"))
	i := formSubmit("1", "x")
	i.AppPermissions = SelfRequired &^ discordgo.PermissionManageWebhooks

	h.handle(i)
	assert.Empty(t, h.replicator.requests)
	assert.Contains(t, h.responder.terminals[0].Content, "i need")
	assert.Contains(t, h.responder.terminals[0].Content, "MANAGE_WEBHOOKS")
}

func TestHandle_SelfPermissionsFromCache(t *testing.T) {
	h := newHarness(message("1", "hello"))
	h.perms.missing = map[string]int64{"bot": discordgo.PermissionViewChannel}
	i := formSubmit("1", "x")
	i.AppPermissions = 0

	h.handle(i)
	assert.Empty(t, h.replicator.requests)
	assert.Contains(t, h.responder.terminals[0].Content, "VIEW_CHANNEL")
}

func TestHandle_RateLimited(t *testing.T) {
	h := newHarness(message("1", "hello"))
	h.pipeline = New(Config{
		Responder:   h.responder,
		Reader:      h.reader,
		Permissions: h.perms,
		Replicator:  h.replicator,
		Limiter:     channels.NewUserRateLimiter(1, 1),
	})

	h.pipeline.Handle(context.Background(), formSubmit("1", "a"))
	h.pipeline.Handle(context.Background(), formSubmit("1", "b"))

	assert.Len(t, h.replicator.requests, 1)
	require.Len(t, h.responder.terminals, 2)
	assert.Equal(t, edit.ErrRateLimited.Error(), h.responder.terminals[1].Content)
}

func TestHandle_UnexpectedFailure(t *testing.T) {
	boom := errors.New("discord is down")

	tests := []struct {
		name  string
		setup func(h *harness)
		in    func() *discordgo.Interaction
	}{
		{
			name:  "replication error",
			setup: func(h *harness) { h.replicator.err = boom },
			in:    func() *discordgo.Interaction { return formSubmit("1", "x") },
		},
		{
			name:  "replication panic",
			setup: func(h *harness) { h.replicator.panic = true },
			in:    func() *discordgo.Interaction { return formSubmit("1", "x") },
		},
		{
			name:  "unknown interaction",
			setup: func(*harness) {},
			in: func() *discordgo.Interaction {
				return base(discordgo.InteractionApplicationCommand,
					discordgo.ApplicationCommandInteractionData{Name: "unknown"})
			},
		},
		{
			name:  "malformed interaction data",
			setup: func(*harness) {},
			in:    func() *discordgo.Interaction { return base(discordgo.InteractionApplicationCommand, nil) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(message("1", "hello"))
			tt.setup(h)

			sess := h.handle(tt.in())
			h.assertLifecycle(t, sess, true)

			assert.Equal(t, Apology, h.responder.terminals[0].Content)
			require.Len(t, h.sink.reports, 1)
			r := h.sink.reports[0]
			assert.Equal(t, sess.ID, r.SessionID)
			assert.Equal(t, "c1", r.ChannelID)
			assert.Equal(t, "mod", r.UserID)
			assert.Error(t, r.Err)
			assert.Equal(t, "error", h.recorder.result)
		})
	}
}

func TestHandle_PanicIsRecovered(t *testing.T) {
	h := newHarness(message("1", "hello"))
	h.replicator.panic = true

	require.NotPanics(t, func() { h.handle(formSubmit("1", "x")) })

	var pe *PanicError
	require.ErrorAs(t, h.sink.reports[0].Err, &pe)
	assert.NotEmpty(t, pe.Stack)
}

func TestHandle_AcknowledgeFails(t *testing.T) {
	tests := []struct {
		name  string
		setup func(r *fakeResponder)
	}{
		{name: "error", setup: func(r *fakeResponder) { r.ackErr = errors.New("unknown interaction") }},
		{name: "panic", setup: func(r *fakeResponder) { r.ackPanic = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(message("1", "hello"))
			tt.setup(h.responder)

			sess := h.handle(formSubmit("1", "x"))
			h.assertLifecycle(t, sess, true)

			assert.Empty(t, h.replicator.requests, "nothing dispatched without acknowledgment")
			assert.Equal(t, Apology, h.responder.terminals[0].Content)
			assert.Len(t, h.sink.reports, 1)
		})
	}
}

func TestHandle_TerminalFails(t *testing.T) {
	h := newHarness(message("1", "hello"))
	h.responder.termErr = errors.New("token expired")

	sess := h.handle(formSubmit("1", "x"))
	h.assertLifecycle(t, sess, true)

	assert.Len(t, h.replicator.requests, 1)
	assert.Equal(t, "undelivered", h.recorder.result)
	assert.Empty(t, h.sink.reports)
}

func TestHandle_Concurrent(t *testing.T) {
	h := newHarness(message("1", "hello"))
	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.pipeline.Handle(context.Background(), slashCommand())
		}()
	}
	wg.Wait()

	assert.Len(t, h.responder.acks, 20)
	assert.Len(t, h.responder.terminals, 20)
}

func TestSessionAdvance_Backwards(t *testing.T) {
	s := newSession(slashCommand())
	s.advance(StateDispatched)
	assert.Panics(t, func() { s.advance(StateAcknowledged) })
	assert.Panics(t, func() { s.advance(StateDispatched) })
}

func TestInvokerName(t *testing.T) {
	i := slashCommand()
	assert.Equal(t, "Mod", invokerName(i))

	i.Member.Nick = ""
	i.Member.User.GlobalName = "Global"
	assert.Equal(t, "Global", invokerName(i))

	i.Member = nil
	i.User = &discordgo.User{ID: "dm", Username: "dmuser"}
	assert.Equal(t, "dmuser", invokerName(i))
	assert.Equal(t, "dm", invoker(i).ID)
}
