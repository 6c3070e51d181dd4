package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"agentcore/internal/chain"
	"agentcore/internal/llm"
)

// anthropicProvider adapts the Anthropic Messages API to llm.Provider,
// built directly against chain.Credentials.
type anthropicProvider struct {
	sdk   anthropicsdk.Client
	model string
}

func newAnthropicProvider(creds chain.Credentials, httpClient *http.Client) *anthropicProvider {
	opts := []option.RequestOption{
		option.WithAPIKey(creds.APIKey),
		option.WithHTTPClient(httpClient),
	}
	if base := strings.TrimSuffix(creds.BaseURL, "/"); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}
	return &anthropicProvider{sdk: anthropicsdk.NewClient(opts...)}
}

func (p *anthropicProvider) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	sys, converted, err := anthropicMessages(msgs)
	if err != nil {
		return llm.Message{}, err
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(model),
		Messages:  converted,
		MaxTokens: 4096,
	}
	if sys != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: sys}}
	}
	if len(tools) > 0 {
		params.Tools = anthropicToolDefs(tools)
	}

	resp, err := p.sdk.Messages.New(ctx, params)
	if err != nil {
		return llm.Message{}, err
	}
	return anthropicResponseToMessage(resp), nil
}

func (p *anthropicProvider) ChatStream(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string, h llm.StreamHandler) error {
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

func anthropicMessages(msgs []llm.Message) (system string, out []anthropicsdk.MessageParam, err error) {
	for _, m := range msgs {
		switch m.Role {
		case "system":
			if system != "" {
				system += "\n"
			}
			system += m.Content
		case "user":
			out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Content)))
		case "assistant":
			blocks := []anthropicsdk.ContentBlockParamUnion{anthropicsdk.NewTextBlock(m.Content)}
			// Reasoning / thought-signature bytes are opaque to us; they are
			// echoed back verbatim as an extra text block after the content.
			// They are not sent as a signed thinking block.
			if m.ThoughtSignature != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(m.ThoughtSignature))
			}
			out = append(out, anthropicsdk.MessageParam{Role: anthropicsdk.MessageParamRoleAssistant, Content: blocks})
		case "tool":
			out = append(out, anthropicsdk.NewUserMessage(anthropicsdk.NewToolResultBlock(m.ToolID, m.Content, false)))
		}
	}
	return system, out, nil
}

func anthropicToolDefs(tools []llm.ToolSchema) []anthropicsdk.ToolUnionParam {
	defs := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		defs = append(defs, anthropicsdk.ToolUnionParamOfTool(anthropicsdk.ToolInputSchemaParam{
			Properties: t.Parameters,
		}, t.Name))
	}
	return defs
}

func anthropicResponseToMessage(resp *anthropicsdk.Message) llm.Message {
	var out llm.Message
	out.Role = "assistant"
	var text strings.Builder
	for _, block := range resp.Content {
		switch b := block.AsAny().(type) {
		case anthropicsdk.TextBlock:
			text.WriteString(b.Text)
		case anthropicsdk.ToolUseBlock:
			raw, _ := json.Marshal(b.Input)
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{Name: b.Name, Args: raw, ID: b.ID})
		}
	}
	out.Content = text.String()
	return out
}
