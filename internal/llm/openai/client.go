package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/transportschein/internal/common"
	"github.com/joseph-ayodele/transportschein/internal/llm"
	"github.com/joseph-ayodele/transportschein/internal/schema"
)

// ExtractPage implements llm.Extractor with a single vision chat-completions
// call. No retries here; recovery is the field recovery engine's job.
func (c *Client) ExtractPage(ctx context.Context, img llm.PageImage, form *schema.Form) (schema.ExtractionResult, []byte, error) {
	rid := uuid.New().String()
	start := time.Now()

	if c.cfg.APIKey == "" {
		return schema.ExtractionResult{}, nil,
			common.NewAppError("CONFIG_ERROR", "extraction API key is not set", common.ErrConfiguration)
	}

	example, err := json.Marshal(form.Example())
	if err != nil {
		return schema.ExtractionResult{}, nil, fmt.Errorf("marshal schema example: %w", err)
	}

	c.log.Info("llm.extract_page.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"prompt_version", llm.PromptVersion,
		"image_bytes_b64", len(img.Base64),
	)

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.PageInstructions},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": fmt.Sprintf(llm.PageUserText, example)},
				imagePart(img),
			}},
		},
	}

	content, err := c.chat(ctx, body)
	if err != nil {
		c.log.Error("llm.extract_page.http_error",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return schema.ExtractionResult{}, nil, err
	}

	// Strict shape contract: exact key-set equality first, then JSON-Schema
	// type validation. A violation rejects the whole call.
	if err := form.CheckKeySet(content); err != nil {
		c.log.Error("llm.extract_page.keyset_mismatch",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return schema.ExtractionResult{}, content, err
	}
	if err := llm.ValidateJSONAgainstSchema(form.JSONSchema(), content); err != nil {
		c.log.Error("llm.extract_page.schema_validation_failed",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return schema.ExtractionResult{}, content, fmt.Errorf("%w: %v", common.ErrSchemaMismatch, err)
	}

	out, err := schema.Decode(content)
	if err != nil {
		c.log.Error("llm.extract_page.decode_failed",
			"req_id", rid, "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return schema.ExtractionResult{}, content, err
	}

	c.log.Info("llm.extract_page.ok",
		"req_id", rid,
		"flags", len(out.Flags),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

// ExtractField issues a narrow single-field request and returns the raw
// value; empty string means the service could not read the field.
func (c *Client) ExtractField(ctx context.Context, img llm.PageImage, prompt llm.FieldPrompt) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	if c.cfg.APIKey == "" {
		return "", common.NewAppError("CONFIG_ERROR", "extraction API key is not set", common.ErrConfiguration)
	}

	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": prompt.System},
			{"role": "user", "content": []map[string]any{
				{"type": "text", "text": prompt.User},
				imagePart(img),
			}},
		},
	}

	content, err := c.chat(ctx, body)
	if err != nil {
		c.log.Warn("llm.extract_field.http_error",
			"req_id", rid, "field", prompt.Field, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return "", err
	}

	var m map[string]any
	if err := json.Unmarshal(content, &m); err != nil {
		return "", fmt.Errorf("%w: %v", common.ErrParse, err)
	}
	val := strings.TrimSpace(fmt.Sprintf("%v", orEmpty(m[prompt.JSONKey])))

	c.log.Info("llm.extract_field.ok",
		"req_id", rid, "field", prompt.Field, "value_len", len(val),
		"elapsed_ms", time.Since(start).Milliseconds())
	return val, nil
}

// chat posts one chat-completions request and returns the first choice's
// content as raw JSON bytes.
func (c *Client) chat(ctx context.Context, body map[string]any) ([]byte, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	raw, err := c.post(ctx, endpoint, body)
	if err != nil {
		return nil, err
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		return nil, fmt.Errorf("%w: decode openai response: %v", common.ErrParse, err)
	}
	if len(cc.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in openai response", common.ErrParse)
	}
	return []byte(strings.TrimSpace(cc.Choices[0].Message.Content)), nil
}

func (c *Client) post(ctx context.Context, url string, body map[string]any) ([]byte, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai http error: %w", err)
	}
	defer func(rc io.ReadCloser) {
		if cerr := rc.Close(); cerr != nil {
			c.log.Warn("openai response body close error", "error", cerr)
		}
	}(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf := new(bytes.Buffer)
		_, _ = buf.ReadFrom(resp.Body)
		return nil, fmt.Errorf("openai status %d: %s", resp.StatusCode, buf.String())
	}

	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	return buf.Bytes(), nil
}

func imagePart(img llm.PageImage) map[string]any {
	mime := img.MIME
	if mime == "" {
		mime = "image/png"
	}
	return map[string]any{
		"type": "image_url",
		"image_url": map[string]any{
			"url": "data:" + mime + ";base64," + img.Base64,
		},
	}
}

func orEmpty(v any) any {
	if v == nil {
		return ""
	}
	return v
}
