package chat

import "fmt"

// TherapyMode is the closed set of conversational styles a session can use.
type TherapyMode string

const (
	// ModeChat is the free-form supportive chat mode.
	ModeChat TherapyMode = "chatMode"
	// ModeCBT is the cognitive behavioral therapy mode.
	ModeCBT TherapyMode = "cbtMode"
	// ModeMBT is the mindfulness-based therapy mode.
	ModeMBT TherapyMode = "mbtMode"
)

// Modes lists every therapy mode in presentation order.
func Modes() []TherapyMode {
	return []TherapyMode{ModeChat, ModeCBT, ModeMBT}
}

// Valid reports whether the mode is one of the known therapy modes.
func (m TherapyMode) Valid() bool {
	switch m {
	case ModeChat, ModeCBT, ModeMBT:
		return true
	}
	return false
}

// ParseMode converts a wire value into a TherapyMode.
func ParseMode(raw string) (TherapyMode, error) {
	mode := TherapyMode(raw)
	if !mode.Valid() {
		return "", fmt.Errorf("unknown therapy mode %q", raw)
	}
	return mode, nil
}

// DisplayName returns the full user-facing mode name.
func (m TherapyMode) DisplayName() string {
	switch m {
	case ModeCBT:
		return "認知行為療法"
	case ModeMBT:
		return "正念療法"
	default:
		return "聊天模式"
	}
}

// ShortName returns the label used for session tags and list chips.
func (m TherapyMode) ShortName() string {
	switch m {
	case ModeCBT:
		return "CBT"
	case ModeMBT:
		return "MBT"
	default:
		return "聊天"
	}
}

// AccentColor returns the hex color the clients render for this mode.
// Pure presentation passthrough, the engine never interprets it.
func (m TherapyMode) AccentColor() string {
	switch m {
	case ModeCBT:
		return "#66331A"
	case ModeMBT:
		return "#994D1A"
	default:
		return "#CC661A"
	}
}

// WelcomeMessage returns the assistant greeting seeded when a session is
// created, cleared, or switched into this mode.
func (m TherapyMode) WelcomeMessage() string {
	switch m {
	case ModeCBT:
		return "歡迎來到認知行為療法對話。讓我們一起檢視想法與情緒之間的關係，找出更平衡的思考方式。"
	case ModeMBT:
		return "歡迎來到正念對話。讓我們先深呼吸，慢慢覺察當下的感受與身體的狀態。"
	default:
		return "你好！我是你的聊天夥伴。今天想聊些什麼呢？"
	}
}
