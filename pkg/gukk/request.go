package gukk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"

	"github.com/raterudder/gukk/pkg/log"
)

// portalResponse is the envelope every portal response shares. The remaining
// fields are decoded into the caller's destination.
type portalResponse struct {
	Success bool       `json:"success"`
	Code    portalText `json:"code"`
	Message portalText `json:"message"`
}

// portalText decodes a JSON string, number, bool or null into a string. The
// portal isn't consistent about the types of ids and values.
type portalText string

func (t *portalText) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = portalText(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err == nil {
		*t = portalText(n.String())
		return nil
	}
	var v bool
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*t = portalText(strconv.FormatBool(v))
	return nil
}

func (c *Client) get(ctx context.Context, path, referer string, dest any) error {
	return c.do(ctx, http.MethodGet, path, referer, nil, dest)
}

func (c *Client) post(ctx context.Context, path, referer string, body, dest any) error {
	return c.do(ctx, http.MethodPost, path, referer, body, dest)
}

// do performs a request against the portal and decodes a successful response
// into dest. Every failure is returned as an *Error except for the caller's
// context being done, which is returned as the context's error.
func (c *Client) do(ctx context.Context, method, path, referer string, body, dest any) error {
	if c.closed.Load() {
		return newError(ErrResponse, 0, errors.New("client is closed"))
	}

	u := c.baseURL + path
	if referer == "" {
		referer = c.baseURL
	} else {
		referer = c.baseURL + referer
	}

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return newError(ErrResponse, 0, err)
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return newError(ErrResponse, 0, err)
	}
	req.Header.Set("Origin", c.baseURL)
	req.Header.Set("Referer", referer)
	req.Header.Set("Content-Type", "application/json")
	if token := c.token; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(ctx, err)
	}

	// whitespace-only bodies count as empty so they get the blind retry
	// rather than a login
	if len(bytes.TrimSpace(raw)) == 0 {
		return newError(ErrEmptyResponse, resp.StatusCode, nil)
	}

	var pr portalResponse
	if err := json.Unmarshal(raw, &pr); err != nil {
		log.Ctx(ctx).DebugContext(
			ctx,
			"failed to decode portal response",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(raw)),
		)
		return newError(ErrResponse, resp.StatusCode, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK && pr.Success:
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnauthorized:
		log.Ctx(ctx).WarnContext(
			ctx,
			"portal access denied",
			slog.Int("status", resp.StatusCode),
			slog.String("code", string(pr.Code)),
			slog.String("message", string(pr.Message)),
		)
		return &Error{
			Kind:    ErrAccessDenied,
			Status:  resp.StatusCode,
			Code:    string(pr.Code),
			Message: string(pr.Message),
		}
	default:
		log.Ctx(ctx).DebugContext(
			ctx,
			"portal error",
			slog.Int("status", resp.StatusCode),
			slog.String("body", string(raw)),
		)
		return &Error{
			Kind:    ErrResponse,
			Status:  resp.StatusCode,
			Code:    string(pr.Code),
			Message: string(pr.Message),
		}
	}

	if dest == nil {
		return nil
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to decode portal result", slog.Any("error", err))
		return newError(ErrResponse, resp.StatusCode, err)
	}
	return nil
}

// transportError classifies an error from sending a request or reading its
// body.
func (c *Client) transportError(ctx context.Context, err error) error {
	// the caller gave up so this isn't the portal's fault
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return newError(ErrResponseTimeout, 0, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return newError(ErrResponseTimeout, 0, err)
	}
	return newError(ErrResponse, 0, err)
}
