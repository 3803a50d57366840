package reply

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"github.com/mindecho/backend/internal/model/chat"
)

// historyLimit caps how many transcript turns are fed to the model.
const historyLimit = 10

// replyTimeout bounds a single model invocation.
const replyTimeout = 30 * time.Second

var systemPrompts = map[chat.TherapyMode]string{
	chat.ModeChat: "你是一位溫暖、善於傾聽的聊天夥伴。用繁體中文回應，語氣自然、支持性強，" +
		"鼓勵使用者多分享自己的感受與近況。不要提供醫療診斷。",
	chat.ModeCBT: "你是一位熟悉認知行為療法（CBT）的對話引導者。用繁體中文回應，" +
		"幫助使用者辨識自動化思考與認知偏誤，溫和地以提問引導他們檢視想法背後的證據。不要提供醫療診斷。",
	chat.ModeMBT: "你是一位正念取向的對話引導者。用繁體中文回應，引導使用者覺察當下的身體感受與情緒，" +
		"語速放慢、語氣柔和，多使用觀察與接納的語言。不要提供醫療診斷。",
}

// LLMStrategy generates replies with a chat model through an eino prompt
// chain, one chain per therapy mode so the system prompt stays fixed.
type LLMStrategy struct {
	chains map[chat.TherapyMode]compose.Runnable[map[string]any, *schema.Message]
}

// NewLLMStrategy compiles the per-mode chains for the given chat model.
func NewLLMStrategy(ctx context.Context, chatModel model.ChatModel) (*LLMStrategy, error) {
	chains := make(map[chat.TherapyMode]compose.Runnable[map[string]any, *schema.Message], len(systemPrompts))
	for mode, system := range systemPrompts {
		template := prompt.FromMessages(
			schema.FString,
			schema.SystemMessage(system),
			schema.MessagesPlaceholder("history", true),
			schema.UserMessage("{query}"),
		)

		chain := compose.NewChain[map[string]any, *schema.Message]()
		chain.AppendChatTemplate(template)
		chain.AppendChatModel(chatModel)

		runnable, err := chain.Compile(ctx)
		if err != nil {
			return nil, fmt.Errorf("compile chat chain for %s: %w", mode, err)
		}
		chains[mode] = runnable
	}
	return &LLMStrategy{chains: chains}, nil
}

// Reply runs the mode's chain over the trailing history plus the new text.
func (s *LLMStrategy) Reply(ctx context.Context, req Request) (string, error) {
	chain, ok := s.chains[req.Mode]
	if !ok {
		return "", fmt.Errorf("no chain for therapy mode %q", req.Mode)
	}

	ctx, cancel := context.WithTimeout(ctx, replyTimeout)
	defer cancel()

	response, err := chain.Invoke(ctx, map[string]any{
		"history": buildHistory(req.History),
		"query":   req.Text,
	})
	if err != nil {
		return "", fmt.Errorf("run chat chain: %w", err)
	}

	log.Printf("[reply] llm response for session=%s, mode=%s, length=%d", req.SessionID, req.Mode, len(response.Content))
	return response.Content, nil
}

func buildHistory(messages []chat.Message) []*schema.Message {
	if len(messages) == 0 {
		return nil
	}

	start := 0
	if len(messages) > historyLimit {
		start = len(messages) - historyLimit
	}

	history := make([]*schema.Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		switch msg.Author {
		case chat.AuthorUser:
			history = append(history, schema.UserMessage(msg.Content))
		case chat.AuthorAssistant:
			history = append(history, schema.AssistantMessage(msg.Content, nil))
		}
	}
	return history
}
