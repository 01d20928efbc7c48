package channels

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/vimalinx/vimagram/internal/config"
	"github.com/vimalinx/vimagram/internal/store"
)

// fakeAllowStore is an in-memory AllowFromStore for pipeline tests.
type fakeAllowStore struct {
	entries  map[string][]string
	requests map[string]string // channelID|senderID -> code
	readErr  error
	upserts  int
}

func newFakeAllowStore() *fakeAllowStore {
	return &fakeAllowStore{
		entries:  make(map[string][]string),
		requests: make(map[string]string),
	}
}

func (f *fakeAllowStore) Read(ctx context.Context, channelID string) ([]string, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.entries[channelID], nil
}

func (f *fakeAllowStore) UpsertPairingRequest(ctx context.Context, channelID, senderID string, meta store.PairingMeta) (string, bool, error) {
	f.upserts++
	key := channelID + "|" + senderID
	if code, ok := f.requests[key]; ok {
		return code, false, nil
	}
	code := "CODE" + senderID
	f.requests[key] = code
	return code, true, nil
}

type pipelineHarness struct {
	pipe       *Pipeline
	store      *fakeAllowStore
	dispatched []*MsgContext
	replies    []string
}

func newPipelineHarness(t *testing.T, acc config.VimagramAccountConfig) *pipelineHarness {
	t.Helper()

	h := &pipelineHarness{store: newFakeAllowStore()}
	acc.AccountID = "acct1"
	acc.Enabled = true
	cfg := &config.Config{
		Channels: config.ChannelsConfig{Vimagram: []config.VimagramAccountConfig{acc}},
	}

	pairing := NewPairingCoordinator(h.store, func(ctx context.Context, chatID, text string) error {
		h.replies = append(h.replies, text)
		return nil
	})

	h.pipe = NewPipeline(PipelineDeps{
		Cfg:       cfg,
		Channel:   "vimagram",
		AccountID: "acct1",
		AllowFrom: h.store,
		Pairing:   pairing,
		Registry:  NewMachineProfileRegistry(),
		Dispatch: func(ctx context.Context, mc *MsgContext, deliver DeliverFunc) error {
			h.dispatched = append(h.dispatched, mc)
			return nil
		},
		Now: func() time.Time { return time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC) },
	})
	return h
}

func directMsg(senderID string) *InboundMessage {
	return &InboundMessage{
		SenderID: senderID, SenderName: "Ann",
		ChatID: senderID, ChatType: ChatDirect,
		Body: "hello", MessageID: "m-1",
	}
}

func groupMsg(senderID, chatID string) *InboundMessage {
	return &InboundMessage{
		SenderID: senderID, SenderName: "Ann",
		ChatID: chatID, ChatName: "team-ops", ChatType: ChatGroup,
		Body: "hello", MessageID: "m-1",
	}
}

func TestPipelineUnknownAccount(t *testing.T) {
	h := newPipelineHarness(t, config.VimagramAccountConfig{})
	h.pipe.deps.AccountID = "ghost"

	d := h.pipe.Process(context.Background(), directMsg("42"))
	if d.Admit {
		t.Fatal("unknown account admitted")
	}
}

func TestPipelineRateLimit(t *testing.T) {
	h := newPipelineHarness(t, config.VimagramAccountConfig{
		DMPolicy: "open",
		Security: config.SecurityConfig{RateLimitPerMinute: 2},
	})

	for i := 0; i < 2; i++ {
		if d := h.pipe.Process(context.Background(), directMsg("42")); !d.Admit {
			t.Fatalf("message %d dropped: %s", i+1, d.Reason)
		}
	}
	d := h.pipe.Process(context.Background(), directMsg("42"))
	if d.Admit || d.Reason != "rate limited" {
		t.Errorf("third message: %+v, want rate-limit drop", d)
	}

	// A rate-limited unknown sender gets no pairing attempt either.
	h2 := newPipelineHarness(t, config.VimagramAccountConfig{
		Security: config.SecurityConfig{RateLimitPerMinute: 1},
	})
	h2.pipe.Process(context.Background(), directMsg("99"))
	h2.pipe.Process(context.Background(), directMsg("99"))
	if h2.store.upserts != 1 {
		t.Errorf("pairing upserts = %d, want 1 (rate-limited message must not pair)", h2.store.upserts)
	}
}

func TestPipelineDMPairing(t *testing.T) {
	h := newPipelineHarness(t, config.VimagramAccountConfig{DMPolicy: "pairing"})

	// First unknown-sender message: dropped, one pairing reply with the code.
	d := h.pipe.Process(context.Background(), directMsg("42"))
	if d.Admit || d.Reason != "sender not paired" {
		t.Fatalf("decision = %+v, want pairing drop", d)
	}
	if len(h.replies) != 1 {
		t.Fatalf("pairing replies = %d, want 1", len(h.replies))
	}
	if !strings.Contains(h.replies[0], "CODE42") {
		t.Errorf("reply missing pairing code: %q", h.replies[0])
	}

	// Second message while pending: dropped again, no duplicate reply.
	h.pipe.Process(context.Background(), directMsg("42"))
	if len(h.replies) != 1 {
		t.Errorf("pairing replies = %d after repeat, want 1", len(h.replies))
	}

	// Approval lands the sender in the store-backed allowlist; next message
	// is admitted and dispatched.
	h.store.entries["vimagram:acct1"] = []string{"42"}
	d = h.pipe.Process(context.Background(), directMsg("42"))
	if !d.Admit {
		t.Fatalf("approved sender dropped: %s", d.Reason)
	}
	if len(h.dispatched) != 1 {
		t.Errorf("dispatched = %d, want 1", len(h.dispatched))
	}
}

func TestPipelineDMPolicies(t *testing.T) {
	t.Run("disabled drops everyone", func(t *testing.T) {
		h := newPipelineHarness(t, config.VimagramAccountConfig{
			DMPolicy:  "disabled",
			AllowFrom: config.FlexibleStringSlice{"42"},
		})
		if d := h.pipe.Process(context.Background(), directMsg("42")); d.Admit {
			t.Error("disabled policy admitted a listed sender")
		}
		if h.store.upserts != 0 {
			t.Error("disabled policy attempted pairing")
		}
	})

	t.Run("open admits unknown senders", func(t *testing.T) {
		h := newPipelineHarness(t, config.VimagramAccountConfig{DMPolicy: "open"})
		if d := h.pipe.Process(context.Background(), directMsg("999")); !d.Admit {
			t.Errorf("open policy dropped: %s", d.Reason)
		}
		if len(h.dispatched) != 1 {
			t.Fatalf("dispatched = %d, want 1", len(h.dispatched))
		}
		mc := h.dispatched[0]
		if mc.ChatType != ChatDirect {
			t.Errorf("ChatType = %q, want direct", mc.ChatType)
		}
		// No DM allowlist configured: everyone is command-authorized.
		if !mc.CommandAuthorized {
			t.Error("CommandAuthorized = false under open policy with no allowlist")
		}
	})

	t.Run("unknown policy value behaves as pairing", func(t *testing.T) {
		h := newPipelineHarness(t, config.VimagramAccountConfig{DMPolicy: "banana"})
		if d := h.pipe.Process(context.Background(), directMsg("42")); d.Admit {
			t.Error("unknown policy admitted an unlisted sender")
		}
		if h.store.upserts != 1 {
			t.Errorf("pairing upserts = %d, want 1", h.store.upserts)
		}
	})
}

func TestPipelineStoreReadFailureDegrades(t *testing.T) {
	h := newPipelineHarness(t, config.VimagramAccountConfig{
		DMPolicy:  "pairing",
		AllowFrom: config.FlexibleStringSlice{"42"},
	})
	h.store.readErr = errors.New("db locked")

	// Static config still admits the listed sender.
	if d := h.pipe.Process(context.Background(), directMsg("42")); !d.Admit {
		t.Errorf("static-listed sender dropped on store failure: %s", d.Reason)
	}
}

func TestPipelineGroupGates(t *testing.T) {
	base := config.VimagramAccountConfig{
		GroupPolicy:    "allowlist",
		GroupAllowFrom: config.FlexibleStringSlice{"42"},
		Groups: map[string]config.GroupConfig{
			"team-ops": {AllowFrom: config.FlexibleStringSlice{"42"}},
		},
	}

	t.Run("unconfigured group dropped", func(t *testing.T) {
		h := newPipelineHarness(t, base)
		d := h.pipe.Process(context.Background(), groupMsg("42", "other-group"))
		if d.Admit || d.Reason != "group not allowed" {
			t.Errorf("decision = %+v", d)
		}
	})

	t.Run("group policy disabled", func(t *testing.T) {
		acc := base
		acc.GroupPolicy = "disabled"
		h := newPipelineHarness(t, acc)
		msg := groupMsg("42", "team-ops")
		msg.WasMentioned = true
		if d := h.pipe.Process(context.Background(), msg); d.Admit {
			t.Error("disabled group policy admitted")
		}
	})

	t.Run("sender in both lists admitted when mentioned", func(t *testing.T) {
		h := newPipelineHarness(t, base)
		msg := groupMsg("42", "team-ops")
		msg.WasMentioned = true
		if d := h.pipe.Process(context.Background(), msg); !d.Admit {
			t.Errorf("dropped: %s", d.Reason)
		}
	})

	t.Run("sender missing from inner list dropped", func(t *testing.T) {
		acc := base
		acc.Groups = map[string]config.GroupConfig{
			"team-ops": {AllowFrom: config.FlexibleStringSlice{"77"}},
		}
		h := newPipelineHarness(t, acc)
		msg := groupMsg("42", "team-ops")
		msg.WasMentioned = true
		d := h.pipe.Process(context.Background(), msg)
		if d.Admit || d.Reason != "sender not in group allowlist" {
			t.Errorf("decision = %+v", d)
		}
	})

	t.Run("unmentioned chatter skipped", func(t *testing.T) {
		h := newPipelineHarness(t, base)
		d := h.pipe.Process(context.Background(), groupMsg("42", "team-ops"))
		if d.Admit || d.Reason != "no mention" {
			t.Errorf("decision = %+v", d)
		}
	})

	t.Run("authorized command bypasses mention", func(t *testing.T) {
		h := newPipelineHarness(t, base)
		msg := groupMsg("42", "team-ops")
		msg.Body = "/status"
		if d := h.pipe.Process(context.Background(), msg); !d.Admit {
			t.Errorf("dropped: %s", d.Reason)
		}
	})

	t.Run("unauthorized command blocked even when mentioned", func(t *testing.T) {
		acc := base
		acc.GroupPolicy = "open"
		h := newPipelineHarness(t, acc)
		msg := groupMsg("99", "team-ops")
		msg.Body = "/reset"
		msg.WasMentioned = true
		d := h.pipe.Process(context.Background(), msg)
		if d.Admit || d.Reason != "unauthorized command" {
			t.Errorf("decision = %+v", d)
		}
	})
}

func TestPipelineAssembledContext(t *testing.T) {
	acc := config.VimagramAccountConfig{
		GroupPolicy:    "allowlist",
		GroupAllowFrom: config.FlexibleStringSlice{"42"},
		Groups: map[string]config.GroupConfig{
			"team-ops": {SystemPrompt: "Be terse."},
		},
		ModeAccounts: map[string]string{"inst_shop1": "acct-shop"},
	}
	h := newPipelineHarness(t, acc)

	msg := groupMsg("42", "team-ops")
	msg.WasMentioned = true
	msg.Mode = "INST_Shop1_ECOM"
	msg.Timestamp = 1_756_464_720

	if d := h.pipe.Process(context.Background(), msg); !d.Admit {
		t.Fatalf("dropped: %s", d.Reason)
	}
	if len(h.dispatched) != 1 {
		t.Fatalf("dispatched = %d, want 1", len(h.dispatched))
	}
	mc := h.dispatched[0]

	if mc.AccountID != "acct-shop" {
		t.Errorf("AccountID = %q, want mode redirect acct-shop", mc.AccountID)
	}
	if mc.ArrivalAccountID != "acct1" {
		t.Errorf("ArrivalAccountID = %q, want acct1", mc.ArrivalAccountID)
	}
	if !strings.Contains(mc.SessionKey, "acct-shop") || !strings.Contains(mc.SessionKey, "group") {
		t.Errorf("SessionKey = %q, want redirected account and group kind", mc.SessionKey)
	}
	if mc.Mode != "inst_shop1_ecom" {
		t.Errorf("Mode = %q", mc.Mode)
	}
	if !strings.HasPrefix(mc.SystemPrompt, "Be terse.\n\n") {
		t.Errorf("SystemPrompt = %q, want group prompt first", mc.SystemPrompt)
	}
	if !strings.HasPrefix(mc.Body, "[From: Ann]\n") {
		t.Errorf("Body = %q, want sender annotation", mc.Body)
	}
	if !strings.Contains(mc.Envelope, "[Vimagram/acct1] Ann (team-ops) at ") {
		t.Errorf("Envelope = %q", mc.Envelope)
	}
	if mc.ReplyToID != "m-1" {
		t.Errorf("ReplyToID = %q", mc.ReplyToID)
	}
	if !mc.Timestamp.Equal(time.Unix(1_756_464_720, 0)) {
		t.Errorf("Timestamp = %v", mc.Timestamp)
	}
}

// TestPipelineDeterministicContext verifies that re-running an admitted
// message with identical inputs and a fixed clock reproduces the exact same
// context object.
func TestPipelineDeterministicContext(t *testing.T) {
	h := newPipelineHarness(t, config.VimagramAccountConfig{DMPolicy: "open"})

	msg := directMsg("42")
	msg.Timestamp = 1_756_464_720
	h.pipe.Process(context.Background(), msg)
	h.pipe.Process(context.Background(), msg)

	if len(h.dispatched) != 2 {
		t.Fatalf("dispatched = %d, want 2", len(h.dispatched))
	}
	if !reflect.DeepEqual(h.dispatched[0], h.dispatched[1]) {
		t.Errorf("contexts differ:\nfirst:  %+v\nsecond: %+v", h.dispatched[0], h.dispatched[1])
	}
}

func TestPipelineBodyTruncation(t *testing.T) {
	tests := []struct {
		name string
		max  int
		body string
		want string
	}{
		{
			name: "ascii cut at the cap",
			max:  8,
			body: "0123456789abcdef",
			want: "01234567",
		},
		{
			name: "cap inside a multibyte rune backs up to the boundary",
			max:  3,
			body: "abécd",
			want: "ab",
		},
		{
			name: "cap on a rune boundary keeps the rune",
			max:  4,
			body: "abécd",
			want: "abé",
		},
		{
			name: "under the cap untouched",
			max:  32,
			body: "xin chào",
			want: "xin chào",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newPipelineHarness(t, config.VimagramAccountConfig{DMPolicy: "open"})
			h.pipe.deps.Cfg.Gateway.MaxMessageChars = tt.max

			msg := directMsg("42")
			msg.Body = tt.body
			if d := h.pipe.Process(context.Background(), msg); !d.Admit {
				t.Fatalf("dropped: %s", d.Reason)
			}
			got := h.dispatched[0].Body
			if got != tt.want {
				t.Errorf("Body = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("Body is not valid UTF-8: %q", got)
			}
		})
	}
}
