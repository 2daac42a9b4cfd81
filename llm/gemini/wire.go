package gemini

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/nachoal/gemini-chat-go/llm"
)

// Wire types for the v1beta REST API

type wireRequest struct {
	Contents         []wireContent         `json:"contents"`
	GenerationConfig *wireGenerationConfig `json:"generationConfig,omitempty"`
}

type wireGenerationConfig struct {
	ResponseModalities []string `json:"responseModalities,omitempty"`
	ResponseMimeType   string   `json:"responseMimeType,omitempty"`
	Temperature        *float32 `json:"temperature,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text       *string   `json:"text,omitempty"`
	InlineData *wireBlob `json:"inlineData,omitempty"`
}

type wireBlob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type wireResponse struct {
	Candidates []struct {
		Content *struct {
			Role  string            `json:"role"`
			Parts []json.RawMessage `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	UsageMetadata *struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
		TotalTokenCount      int `json:"totalTokenCount"`
	} `json:"usageMetadata"`
}

func buildRequest(request *llm.GenerateRequest) wireRequest {
	out := wireRequest{Contents: make([]wireContent, 0, len(request.Contents))}

	for _, c := range request.Contents {
		wc := wireContent{Role: string(c.Role), Parts: make([]wirePart, 0, len(c.Parts))}
		for _, p := range c.Parts {
			switch v := p.(type) {
			case llm.TextPart:
				text := v.Text
				wc.Parts = append(wc.Parts, wirePart{Text: &text})
			case llm.InlineDataPart:
				wc.Parts = append(wc.Parts, wirePart{InlineData: &wireBlob{
					MimeType: v.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(v.Data),
				}})
			}
		}
		if len(wc.Parts) > 0 {
			out.Contents = append(out.Contents, wc)
		}
	}

	if len(request.Modalities) > 0 || request.ResponseMIMEType != "" || request.Temperature != nil {
		gc := &wireGenerationConfig{
			ResponseMimeType: request.ResponseMIMEType,
			Temperature:      request.Temperature,
		}
		for _, m := range request.Modalities {
			gc.ResponseModalities = append(gc.ResponseModalities, string(m))
		}
		out.GenerationConfig = gc
	}

	return out
}

// decodeChunk turns one SSE payload into a ResponseChunk. Absent content
// and absent parts are preserved as nil so the reducer can skip them.
func decodeChunk(data []byte) (*llm.ResponseChunk, error) {
	var resp wireResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse chunk: %w", err)
	}

	chunk := &llm.ResponseChunk{}
	if resp.UsageMetadata != nil {
		chunk.Usage = &llm.Usage{
			PromptTokens:     resp.UsageMetadata.PromptTokenCount,
			CandidatesTokens: resp.UsageMetadata.CandidatesTokenCount,
			TotalTokens:      resp.UsageMetadata.TotalTokenCount,
		}
	}

	for _, wc := range resp.Candidates {
		cand := llm.Candidate{FinishReason: wc.FinishReason}
		if wc.Content != nil {
			content := &llm.Content{Role: llm.Role(wc.Content.Role)}
			if wc.Content.Parts != nil {
				content.Parts = make([]llm.Part, 0, len(wc.Content.Parts))
				for _, raw := range wc.Content.Parts {
					p, err := decodePart(raw)
					if err != nil {
						return nil, err
					}
					content.Parts = append(content.Parts, p)
				}
			}
			cand.Content = content
		}
		chunk.Candidates = append(chunk.Candidates, cand)
	}

	return chunk, nil
}

func decodePart(raw json.RawMessage) (llm.Part, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("failed to parse part: %w", err)
	}

	if blob, ok := firstField(fields, "inlineData", "inline_data"); ok {
		var b wireBlob
		if err := json.Unmarshal(blob, &b); err != nil {
			return nil, fmt.Errorf("failed to parse inline data: %w", err)
		}
		if b.MimeType == "" {
			var alt struct {
				MimeType string `json:"mime_type"`
			}
			_ = json.Unmarshal(blob, &alt)
			b.MimeType = alt.MimeType
		}
		data, err := base64.StdEncoding.DecodeString(b.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to decode inline data: %w", err)
		}
		return llm.InlineDataPart{MIMEType: b.MimeType, Data: data}, nil
	}

	if text, ok := fields["text"]; ok {
		var s string
		if err := json.Unmarshal(text, &s); err != nil {
			return nil, fmt.Errorf("failed to parse text part: %w", err)
		}
		return llm.TextPart{Text: s}, nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	kind := "empty"
	if len(keys) > 0 {
		kind = keys[0]
	}
	return llm.UnknownPart{Kind: kind}, nil
}

func firstField(fields map[string]json.RawMessage, names ...string) (json.RawMessage, bool) {
	for _, n := range names {
		if v, ok := fields[n]; ok && string(v) != "null" {
			return v, true
		}
	}
	return nil, false
}
