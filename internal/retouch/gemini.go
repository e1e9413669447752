package retouch

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/local/pdfassembly/internal/metrics"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// GeminiClient adjusts images through the Gemini generateContent API.
type GeminiClient struct {
	http    *http.Client
	apiKey  string
	model   string
	baseURL string
}

// GeminiOptions configures the client. APIKey may be empty; Adjust then
// fails with ErrMissingCredential.
type GeminiOptions struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	BaseURL string
}

func NewGeminiClient(opts GeminiOptions) *GeminiClient {
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash-image-preview"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultBaseURL
	}
	return &GeminiClient{
		http:    &http.Client{Timeout: opts.Timeout},
		apiKey:  opts.APIKey,
		model:   opts.Model,
		baseURL: opts.BaseURL,
	}
}

func (c *GeminiClient) Name() string { return "gemini" }

type geminiInlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiGenerateReq struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		ResponseModalities []string `json:"responseModalities"`
	} `json:"generationConfig"`
}

type geminiGenerateResp struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Adjust submits the image and instruction, expecting an image back. The
// response is classified explicitly: safety blocks, text-only answers and
// credential problems each surface as their own error.
func (c *GeminiClient) Adjust(ctx context.Context, req Request) (Response, error) {
	if c.apiKey == "" {
		return Response{}, ErrMissingCredential
	}

	start := time.Now()
	resp, err := c.do(ctx, req)
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.ObserveRetouch(c.Name(), c.model, result, time.Since(start))
	return resp, err
}

func (c *GeminiClient) do(ctx context.Context, req Request) (Response, error) {
	payload := geminiGenerateReq{
		Contents: []geminiContent{{
			Parts: []geminiPart{
				{InlineData: &geminiInlineData{
					MIMEType: req.MIMEType,
					Data:     base64.StdEncoding.EncodeToString(req.ImageData),
				}},
				{Text: req.Instruction},
			},
		}},
	}
	payload.GenerationConfig.ResponseModalities = []string{"IMAGE", "TEXT"}

	body, _ := json.Marshal(payload)
	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, c.model)
	httpReq, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	httpReq.Header.Set("x-goog-api-key", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return Response{}, ErrInvalidCredential
	case resp.StatusCode == http.StatusTooManyRequests:
		return Response{}, ErrRateLimited
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return Response{}, fmt.Errorf("gemini status %d", resp.StatusCode)
	}

	var r geminiGenerateResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return Response{}, fmt.Errorf("decode gemini response: %w", err)
	}

	if r.PromptFeedback != nil && r.PromptFeedback.BlockReason != "" {
		return Response{}, ErrSafetyBlocked
	}
	if len(r.Candidates) == 0 {
		return Response{}, ErrNoImage
	}

	cand := r.Candidates[0]
	switch cand.FinishReason {
	case "SAFETY", "IMAGE_SAFETY", "PROHIBITED_CONTENT":
		return Response{}, ErrSafetyBlocked
	}

	for _, part := range cand.Content.Parts {
		if part.InlineData == nil {
			continue
		}
		img, err := base64.StdEncoding.DecodeString(part.InlineData.Data)
		if err != nil {
			return Response{}, fmt.Errorf("decode image payload: %w", err)
		}
		return Response{ImageData: img, MIMEType: part.InlineData.MIMEType}, nil
	}

	// Text-only answer; the image modality is never assumed.
	return Response{}, ErrNoImage
}
