package channels

import (
	"strings"
	"sync"

	"github.com/vimalinx/vimagram/internal/config"
)

// Length caps for client-declared hint strings. Values failing validation are
// dropped, not rejected: the message proceeds without that hint.
const (
	maxModeIDLen     = 32
	maxModeLabelLen  = 40
	maxModelHintLen  = 120
	maxAgentHintLen  = 120
	maxSkillsHintLen = 160
)

// ModeMetadata is the validated, normalized form of the client-declared mode
// hints. Every field is independently optional.
type ModeMetadata struct {
	Mode       string
	ModeLabel  string
	ModelHint  string
	AgentHint  string
	SkillsHint string
}

// ParseModeMetadata validates the hint strings off an inbound message.
// The mode id is trimmed, lowercased, length-capped, and restricted to
// [a-z0-9_-]; anything else is discarded entirely. The remaining hints are
// trimmed and length-capped only.
func ParseModeMetadata(msg *InboundMessage) ModeMetadata {
	return ModeMetadata{
		Mode:       normalizeModeID(msg.Mode),
		ModeLabel:  capHint(msg.ModeLabel, maxModeLabelLen),
		ModelHint:  capHint(msg.ModelHint, maxModelHintLen),
		AgentHint:  capHint(msg.AgentHint, maxAgentHintLen),
		SkillsHint: capHint(msg.SkillsHint, maxSkillsHintLen),
	}
}

func normalizeModeID(raw string) string {
	id := strings.ToLower(strings.TrimSpace(raw))
	if id == "" || len(id) > maxModeIDLen {
		return ""
	}
	for _, r := range id {
		valid := (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' || r == '-'
		if !valid {
			return ""
		}
	}
	return id
}

func capHint(raw string, max int) string {
	h := strings.TrimSpace(raw)
	if h == "" || len(h) > max {
		return ""
	}
	return h
}

// --- Built-in personas ---

// Mode ids of the shape inst_<name>_<suffix> select a built-in persona by
// suffix. The persona prompt is merged after any group system prompt.
const (
	personaSuffixEcom  = "ecom"
	personaSuffixDocs  = "docs"
	personaSuffixMedia = "media"
)

var personaPrompts = map[string]string{
	personaSuffixEcom: "Bạn là trợ lý bán hàng của cửa hàng. Trả lời ngắn gọn, " +
		"thân thiện, tập trung vào sản phẩm, giá và tình trạng đơn hàng. " +
		"Không bịa thông tin khuyến mãi.",
	personaSuffixDocs: "Bạn là trợ lý tra cứu tài liệu nội bộ. Trả lời chính xác " +
		"theo tài liệu, trích dẫn mục liên quan khi có thể, và nói rõ khi " +
		"không tìm thấy thông tin.",
	personaSuffixMedia: "Bạn là trợ lý biên tập nội dung. Hỗ trợ soạn, rút gọn và " +
		"kiểm tra văn phong cho bài đăng; giữ giọng điệu nhất quán với kênh.",
}

// PersonaPrompt returns the built-in persona prompt for a normalized mode id,
// or ("", false) when the id does not select one.
func PersonaPrompt(modeID string) (string, bool) {
	suffix, ok := personaSuffix(modeID)
	if !ok {
		return "", false
	}
	prompt, ok := personaPrompts[suffix]
	return prompt, ok
}

// personaSuffix extracts the trailing segment of an inst_<name>_<suffix> id.
func personaSuffix(modeID string) (string, bool) {
	if !strings.HasPrefix(modeID, "inst_") {
		return "", false
	}
	idx := strings.LastIndex(modeID, "_")
	if idx <= len("inst_")-1 {
		return "", false
	}
	suffix := modeID[idx+1:]
	if _, known := personaPrompts[suffix]; !known {
		return "", false
	}
	return suffix, true
}

// ModeLookupKeys returns the routing lookup keys for a mode id: the full id
// and, for inst_<name>_<suffix> ids, the bare inst_<name> fallback.
func ModeLookupKeys(modeID string) []string {
	if modeID == "" {
		return nil
	}
	if _, ok := personaSuffix(modeID); ok {
		base := modeID[:strings.LastIndex(modeID, "_")]
		return []string{modeID, base}
	}
	return []string{modeID}
}

// MergeSystemPrompts joins the group prompt and persona prompt, group first,
// blank-line separated. Either may be absent.
func MergeSystemPrompts(groupPrompt, personaPrompt string) string {
	switch {
	case groupPrompt == "":
		return personaPrompt
	case personaPrompt == "":
		return groupPrompt
	default:
		return groupPrompt + "\n\n" + personaPrompt
	}
}

// --- Machine profile registry ---

// MachineProfile holds per-mode routing overrides registered for one account:
// default account redirects and model/agent/skills hints applied when the
// client did not declare its own.
type MachineProfile struct {
	ModeAccounts map[string]string
	ModeModels   map[string]string
	ModeAgents   map[string]string
	ModeSkills   map[string]string
}

// MachineProfileRegistry is a process-wide keyed map of machine profiles with
// last-writer-wins semantics. Registration is infrequent and administrative;
// absence of a profile is the common state.
type MachineProfileRegistry struct {
	mu       sync.RWMutex
	profiles map[string]*MachineProfile
}

// NewMachineProfileRegistry creates an empty registry.
func NewMachineProfileRegistry() *MachineProfileRegistry {
	return &MachineProfileRegistry{profiles: make(map[string]*MachineProfile)}
}

// Set registers or replaces the profile for an account. A nil profile clears.
func (r *MachineProfileRegistry) Set(accountID string, p *MachineProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p == nil {
		delete(r.profiles, accountID)
		return
	}
	r.profiles[accountID] = p
}

// Get returns the profile for an account, or nil.
func (r *MachineProfileRegistry) Get(accountID string) *MachineProfile {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profiles[accountID]
}

// Clear removes the profile for an account.
func (r *MachineProfileRegistry) Clear(accountID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.profiles, accountID)
}

// --- Mode routing resolution ---

// ModeRoute is the resolved identity/routing outcome for one message.
type ModeRoute struct {
	// AccountID is the downstream account after any mode redirect; equal to
	// the arrival account when the mode is unmapped.
	AccountID string

	Meta          ModeMetadata
	PersonaPrompt string
}

// ResolveModeRoute applies mode parsing, persona mapping, machine-profile
// hint defaults, and mode→account redirects for a message arriving on
// accountID. Machine-level account overrides take precedence over the
// account-level mode_accounts map.
func ResolveModeRoute(acc *config.VimagramAccountConfig, registry *MachineProfileRegistry, accountID string, msg *InboundMessage) ModeRoute {
	meta := ParseModeMetadata(msg)
	route := ModeRoute{AccountID: accountID, Meta: meta}
	if meta.Mode == "" {
		return route
	}

	if prompt, ok := PersonaPrompt(meta.Mode); ok {
		route.PersonaPrompt = prompt
	}

	keys := ModeLookupKeys(meta.Mode)
	var profile *MachineProfile
	if registry != nil {
		profile = registry.Get(accountID)
	}

	// Hint defaults: client-declared values win; machine profile fills gaps.
	if profile != nil {
		if route.Meta.ModelHint == "" {
			route.Meta.ModelHint = lookupByKeys(profile.ModeModels, keys)
		}
		if route.Meta.AgentHint == "" {
			route.Meta.AgentHint = lookupByKeys(profile.ModeAgents, keys)
		}
		if route.Meta.SkillsHint == "" {
			route.Meta.SkillsHint = lookupByKeys(profile.ModeSkills, keys)
		}
	}

	// Account redirect: machine profile first, then account config.
	if profile != nil {
		if target := lookupByKeys(profile.ModeAccounts, keys); target != "" {
			route.AccountID = target
			return route
		}
	}
	if acc != nil {
		if target := lookupByKeys(acc.ModeAccounts, keys); target != "" {
			route.AccountID = target
		}
	}
	return route
}

func lookupByKeys(m map[string]string, keys []string) string {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != "" {
			return v
		}
	}
	return ""
}
