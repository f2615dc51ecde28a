package transport

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/seekmed/medharvest/pkg/errors"
)

// DecodeJSON reads a successful response body into target and closes it.
func DecodeJSON(resp *http.Response, target any) error {
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.WrapIO("read", "response body", err)
	}
	if err := json.Unmarshal(body, target); err != nil {
		return errors.WrapParse("json", "response body", err)
	}
	return nil
}
