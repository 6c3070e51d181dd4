package gateway

import (
	"context"
	"encoding/json"
	"net/http"

	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"agentcore/internal/chain"
	"agentcore/internal/llm"
)

// openAIProvider adapts the Chat Completions API to llm.Provider, built
// directly against chain.Credentials.
type openAIProvider struct {
	sdk openaisdk.Client
}

func newOpenAIProvider(creds chain.Credentials, httpClient *http.Client) *openAIProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(creds.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if creds.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(creds.BaseURL))
	}
	return &openAIProvider{sdk: openaisdk.NewClient(opts...)}
}

func (p *openAIProvider) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	params := openaisdk.ChatCompletionNewParams{
		Model:    model,
		Messages: openAIMessages(msgs),
	}
	if len(tools) > 0 {
		params.Tools = openAIToolDefs(tools)
		params.ToolChoice = openaisdk.ChatCompletionToolChoiceOptionUnionParam{OfAuto: openaisdk.String("auto")}
	}

	resp, err := p.sdk.Chat.Completions.New(ctx, params)
	if err != nil {
		return llm.Message{}, err
	}
	return openAIResponseToMessage(resp), nil
}

func (p *openAIProvider) ChatStream(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string, h llm.StreamHandler) error {
	msg, err := p.Chat(ctx, msgs, tools, model)
	if err != nil {
		return err
	}
	if msg.Content != "" {
		h.OnDelta(msg.Content)
	}
	for _, tc := range msg.ToolCalls {
		h.OnToolCall(tc)
	}
	return nil
}

func openAIMessages(msgs []llm.Message) []openaisdk.ChatCompletionMessageParamUnion {
	out := make([]openaisdk.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case "system":
			out = append(out, openaisdk.SystemMessage(m.Content))
		case "user":
			out = append(out, openaisdk.UserMessage(m.Content))
		case "assistant":
			out = append(out, openaisdk.AssistantMessage(m.Content))
		case "tool":
			out = append(out, openaisdk.ToolMessage(m.Content, m.ToolID))
		}
	}
	return out
}

func openAIToolDefs(tools []llm.ToolSchema) []openaisdk.ChatCompletionToolParam {
	defs := make([]openaisdk.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, openaisdk.ChatCompletionToolParam{
			Function: openaisdk.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openaisdk.String(t.Description),
				Parameters:  t.Parameters,
			},
		})
	}
	return defs
}

func openAIResponseToMessage(resp *openaisdk.ChatCompletion) llm.Message {
	if len(resp.Choices) == 0 {
		return llm.Message{Role: "assistant"}
	}
	choice := resp.Choices[0]
	out := llm.Message{Role: "assistant", Content: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
			Name: tc.Function.Name,
			Args: json.RawMessage(tc.Function.Arguments),
			ID:   tc.ID,
		})
	}
	return out
}
