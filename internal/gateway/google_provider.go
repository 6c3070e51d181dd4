package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"

	genai "google.golang.org/genai"

	"agentcore/internal/chain"
	"agentcore/internal/llm"
)

// googleProvider adapts the Gemini generateContent API to llm.Provider,
// built directly against chain.Credentials. Gemini's "thought signature" is
// carried verbatim through llm.Message.ThoughtSignature as base64, per
// the reasoning-preservation requirement of spec.md §4.5.
type googleProvider struct {
	client *genai.Client
}

func newGoogleProvider(creds chain.Credentials, httpClient *http.Client) (*googleProvider, error) {
	cfg := &genai.ClientConfig{APIKey: creds.APIKey, HTTPClient: httpClient}
	c, err := genai.NewClient(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return &googleProvider{client: c}, nil
}

func (p *googleProvider) Chat(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string) (llm.Message, error) {
	contents, sys := googleContents(msgs)

	cfg := &genai.GenerateContentConfig{}
	if sys != "" {
		cfg.SystemInstruction = genai.NewContentFromText(sys, genai.RoleUser)
	}
	if len(tools) > 0 {
		cfg.Tools = googleToolDefs(tools)
	}

	resp, err := p.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return llm.Message{}, err
	}
	return googleResponseToMessage(resp), nil
}

func (p *googleProvider) ChatStream(ctx context.Context, msgs []llm.Message, tools []llm.ToolSchema, model string, h llm.StreamHandler) error {
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

func googleContents(msgs []llm.Message) ([]*genai.Content, string) {
	var system string
	var out []*genai.Content
	for _, m := range msgs {
		switch m.Role {
		case "system":
			if system != "" {
				system += "\n"
			}
			system += m.Content
		case "user", "tool":
			out = append(out, genai.NewContentFromText(m.Content, genai.RoleUser))
		case "assistant":
			content := genai.NewContentFromText(m.Content, genai.RoleModel)
			if m.ThoughtSignature != "" {
				if sig, err := base64.StdEncoding.DecodeString(m.ThoughtSignature); err == nil {
					for _, part := range content.Parts {
						part.ThoughtSignature = sig
					}
				}
			}
			out = append(out, content)
		}
	}
	return out, system
}

func googleToolDefs(tools []llm.ToolSchema) []*genai.Tool {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func googleResponseToMessage(resp *genai.GenerateContentResponse) llm.Message {
	out := llm.Message{Role: "assistant"}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out
	}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Content += part.Text
		}
		if part.FunctionCall != nil {
			raw, _ := json.Marshal(part.FunctionCall.Args)
			sig := ""
			if len(part.ThoughtSignature) > 0 {
				sig = base64.StdEncoding.EncodeToString(part.ThoughtSignature)
			}
			out.ToolCalls = append(out.ToolCalls, llm.ToolCall{
				Name:             part.FunctionCall.Name,
				Args:             raw,
				ThoughtSignature: sig,
			})
		}
	}
	return out
}
