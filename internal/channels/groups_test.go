package channels

import (
	"reflect"
	"testing"

	"github.com/vimalinx/vimagram/internal/config"
)

func boolPtr(b bool) *bool { return &b }

func TestResolveGroup(t *testing.T) {
	groups := map[string]config.GroupConfig{
		"-100123":  {},
		"Team Ops": {Enabled: boolPtr(false)},
		"*":        {RequireMention: boolPtr(false)},
	}

	tests := []struct {
		name           string
		groups         map[string]config.GroupConfig
		chatID         string
		chatName       string
		wantAllowed    bool
		wantConfigured bool
		wantSpecific   bool
	}{
		{
			name:   "no map admits everything",
			groups: nil, chatID: "any",
			wantAllowed: true, wantConfigured: false, wantSpecific: false,
		},
		{
			name:   "match by chat id",
			groups: groups, chatID: "-100123",
			wantAllowed: true, wantConfigured: true, wantSpecific: true,
		},
		{
			name:   "match by trimmed chat name",
			groups: groups, chatID: "-999", chatName: "  Team Ops  ",
			wantAllowed: false, wantConfigured: true, wantSpecific: true,
		},
		{
			name:   "wildcard fallback",
			groups: groups, chatID: "-999", chatName: "unknown",
			wantAllowed: true, wantConfigured: true, wantSpecific: false,
		},
		{
			name:   "map without wildcard denies unmatched",
			groups: map[string]config.GroupConfig{"-100123": {}}, chatID: "-999",
			wantAllowed: false, wantConfigured: true, wantSpecific: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := ResolveGroup(tt.groups, tt.chatID, tt.chatName)
			if m.Allowed != tt.wantAllowed {
				t.Errorf("Allowed = %v, want %v", m.Allowed, tt.wantAllowed)
			}
			if m.Configured != tt.wantConfigured {
				t.Errorf("Configured = %v, want %v", m.Configured, tt.wantConfigured)
			}
			if (m.Group != nil) != tt.wantSpecific {
				t.Errorf("specific match = %v, want %v", m.Group != nil, tt.wantSpecific)
			}
		})
	}
}

func TestGroupMatchRequireMention(t *testing.T) {
	tests := []struct {
		name string
		m    GroupMatch
		want bool
	}{
		{
			name: "defaults to true",
			m:    GroupMatch{},
			want: true,
		},
		{
			name: "specific overrides",
			m: GroupMatch{
				Group:    &config.GroupConfig{RequireMention: boolPtr(false)},
				Wildcard: &config.GroupConfig{RequireMention: boolPtr(true)},
			},
			want: false,
		},
		{
			name: "wildcard fills gap",
			m: GroupMatch{
				Group:    &config.GroupConfig{},
				Wildcard: &config.GroupConfig{RequireMention: boolPtr(false)},
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.m.RequireMention(); got != tt.want {
				t.Errorf("RequireMention() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGroupMatchAllowFrom(t *testing.T) {
	m := GroupMatch{
		Group:    &config.GroupConfig{AllowFrom: []string{"@alice"}},
		Wildcard: &config.GroupConfig{AllowFrom: []string{"bob"}},
	}
	if got := m.AllowFrom(); !reflect.DeepEqual(got, []string{"alice"}) {
		t.Errorf("specific AllowFrom = %v, want [alice]", got)
	}

	m.Group = &config.GroupConfig{}
	if got := m.AllowFrom(); !reflect.DeepEqual(got, []string{"bob"}) {
		t.Errorf("wildcard AllowFrom = %v, want [bob]", got)
	}

	m.Wildcard = nil
	if got := m.AllowFrom(); got != nil {
		t.Errorf("empty AllowFrom = %v, want nil", got)
	}
}

func TestGroupMatchSystemPrompt(t *testing.T) {
	m := GroupMatch{
		Group:    &config.GroupConfig{SystemPrompt: "specific"},
		Wildcard: &config.GroupConfig{SystemPrompt: "fallback"},
	}
	if got := m.SystemPrompt(); got != "specific" {
		t.Errorf("SystemPrompt() = %q, want specific", got)
	}
	m.Group = &config.GroupConfig{}
	if got := m.SystemPrompt(); got != "fallback" {
		t.Errorf("SystemPrompt() = %q, want fallback", got)
	}
}
