// learnex/utils/http/httputils.go
package httputils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// ServerError is a non-2xx response. Message carries the server-supplied
// {"message": ...} payload when one was present, or a generic fallback.
type ServerError struct {
	Status  int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Status, e.Message)
}

func decodeError(r *http.Response) error {
	msg := "Server Error"
	var body struct {
		Message string `json:"message"`
		Details string `json:"details"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Message != "" {
		msg = body.Message
		if body.Details != "" {
			msg = fmt.Sprintf("%s (%s)", body.Message, body.Details)
		}
	}
	return &ServerError{Status: r.StatusCode, Message: msg}
}

func do(ctx context.Context, hc *http.Client, method, url, token, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer r.Body.Close()
	if r.StatusCode < 200 || r.StatusCode > 299 {
		return decodeError(r)
	}
	if out != nil {
		return json.NewDecoder(r.Body).Decode(out)
	}
	return nil
}

func GetJSON(ctx context.Context, hc *http.Client, url, token string, out interface{}) error {
	return do(ctx, hc, http.MethodGet, url, token, "", nil, out)
}

func PostJSON(ctx context.Context, hc *http.Client, url, token string, body interface{}, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}
	return do(ctx, hc, http.MethodPost, url, token, "application/json", bytes.NewReader(jsonBody), out)
}

func Delete(ctx context.Context, hc *http.Client, url, token string, out interface{}) error {
	return do(ctx, hc, http.MethodDelete, url, token, "", nil, out)
}

// PostMultipart streams one file plus form fields as multipart/form-data.
func PostMultipart(ctx context.Context, hc *http.Client, url, token string, fields map[string]string, fileField, fileName string, file io.Reader, out interface{}) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	part, err := w.CreateFormFile(fileField, fileName)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, file); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return do(ctx, hc, http.MethodPost, url, token, w.FormDataContentType(), &buf, out)
}
