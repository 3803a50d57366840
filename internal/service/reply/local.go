package reply

import (
	"context"
	"strings"
	"time"

	"github.com/mindecho/backend/internal/model/chat"
)

// DefaultLocalLatency mimics the think-time of a remote assistant so client
// typing indicators behave the same offline as online.
const DefaultLocalLatency = 1500 * time.Millisecond

// DelayFunc waits for the given duration or until the context is done.
// Injectable so tests run without real sleeps.
type DelayFunc func(ctx context.Context, d time.Duration) error

// SleepDelay is the production DelayFunc.
func SleepDelay(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// rule maps any of its keywords to a canned reply. Rules are evaluated in
// order; the first keyword hit wins.
type rule struct {
	keywords []string
	reply    string
}

var localRules = map[chat.TherapyMode][]rule{
	chat.ModeChat: {
		{keywords: []string{"壓力"}, reply: "聽起來您最近壓力不小。能告訴我是什麼讓您感到有壓力嗎？"},
		{keywords: []string{"開心", "高興"}, reply: "很高興聽到您心情不錯！是有什麼特別的事情讓您開心嗎？"},
		{keywords: []string{"累", "疲憊"}, reply: "感覺您很疲憊。最近工作或生活節奏是不是比較緊張？"},
		{keywords: []string{"週末", "休息"}, reply: "聽起來您需要好好休息一下！有什麼特別想做的嗎？戶外活動、看電影，還是其他的興趣愛好？"},
	},
	chat.ModeCBT: {
		{keywords: []string{"總是", "永遠"}, reply: "我注意到您用了「總是」這個詞。讓我們檢視一下這個想法是否準確。能給我一些具體的例子嗎？"},
		{keywords: []string{"失敗", "做不好"}, reply: "失敗的感受很難受。讓我們分析一下這個想法背後的證據。什麼讓您覺得是失敗？"},
		{keywords: []string{"焦慮", "擔心"}, reply: "焦慮和擔心是很常見的情緒。讓我們用CBT的方式來分析這些想法，看看哪些是基於事實的。"},
	},
	chat.ModeMBT: {
		{keywords: []string{"不理解", "不懂"}, reply: "理解他人的想法確實不容易。讓我們試著從心智化的角度來看，您覺得對方可能在想什麼？"},
		{keywords: []string{"感受", "情緒"}, reply: "感受是很重要的信息。能告訴我這種感受在您身體的哪個部位最明顯嗎？"},
		{keywords: []string{"關係", "人際"}, reply: "人際關係是複雜的。讓我們一起探索在這個關係中，您和對方各自的感受和需求。"},
	},
}

var localFallbacks = map[chat.TherapyMode]string{
	chat.ModeChat: "我理解您的感受。能告訴我更多關於這個情況的細節嗎？",
	chat.ModeCBT:  "讓我們用認知行為療法的方式來分析這個問題。首先，我們可以識別一些可能影響您情緒的想法模式。",
	chat.ModeMBT:  "在正念為基礎的療法中，我們關注當下的感受和體驗。讓我們花一點時間覺察您現在的感受。",
}

// LocalStrategy answers from per-mode keyword rule tables. Deterministic:
// the same text and mode always pick the same reply.
type LocalStrategy struct {
	latency time.Duration
	delay   DelayFunc
}

// NewLocalStrategy builds the offline strategy. A nil delay uses SleepDelay;
// a non-positive latency uses DefaultLocalLatency.
func NewLocalStrategy(latency time.Duration, delay DelayFunc) *LocalStrategy {
	if latency <= 0 {
		latency = DefaultLocalLatency
	}
	if delay == nil {
		delay = SleepDelay
	}
	return &LocalStrategy{latency: latency, delay: delay}
}

// Reply matches keywords case-insensitively and falls back to the mode's
// default response when nothing matches.
func (s *LocalStrategy) Reply(ctx context.Context, req Request) (string, error) {
	if err := s.delay(ctx, s.latency); err != nil {
		return "", err
	}

	normalized := strings.ToLower(req.Text)
	for _, r := range localRules[req.Mode] {
		for _, kw := range r.keywords {
			if strings.Contains(normalized, strings.ToLower(kw)) {
				return r.reply, nil
			}
		}
	}
	return localFallbacks[req.Mode], nil
}
