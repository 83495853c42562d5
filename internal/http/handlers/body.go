package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/lumen-im/server/internal/api"
)

const maxBodyBytes = 1 << 20

// parseJSONObject reads the request body as a JSON object. A body that does
// not parse as JSON at all (including an empty body) is M_NOT_JSON; a body
// that is valid JSON but not an object is M_BAD_JSON. The two classes are
// deliberately distinct: only the first is tolerated on the legacy delete
// paths.
func parseJSONObject(r *http.Request) (map[string]interface{}, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, api.NotJSON("could not read request body")
	}

	var parsed interface{}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, api.NotJSON("content not JSON")
	}

	obj, ok := parsed.(map[string]interface{})
	if !ok {
		return nil, api.BadJSON("content must be a JSON object")
	}
	return obj, nil
}

// parseJSONObjectLegacy parses the body like parseJSONObject but treats the
// M_NOT_JSON class as an empty object, for older clients that sent no body
// on delete requests. Any other failure propagates.
func parseJSONObjectLegacy(r *http.Request) (map[string]interface{}, error) {
	body, err := parseJSONObject(r)
	if err != nil {
		var apiErr *api.Error
		if errors.As(err, &apiErr) && apiErr.Code == api.CodeNotJSON {
			return map[string]interface{}{}, nil
		}
		return nil, err
	}
	return body, nil
}

// clientIP extracts the client IP from the request
func clientIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from X-Forwarded-For.
	return r.RemoteAddr
}
