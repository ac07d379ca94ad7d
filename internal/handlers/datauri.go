package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/Brownie44l1/digit-api/internal/preprocess"
)

var errMissingImage = errors.New("missing image data")

const dataURIPrefix = "data:image/"

// imageField extracts the "image" string from a request body. A body that
// is not a JSON object, or lacks the field, is errMissingImage; a field of
// the wrong type is a DecodeError.
func imageField(body []byte) (string, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return "", errMissingImage
	}
	raw, ok := fields["image"]
	if !ok || string(raw) == "null" {
		return "", errMissingImage
	}
	var uri string
	if err := json.Unmarshal(raw, &uri); err != nil {
		return "", &preprocess.DecodeError{Reason: "image field is not a string"}
	}
	return uri, nil
}

// DecodeDataURI returns the payload of data:image/<format>;base64,<payload>.
func DecodeDataURI(uri string) ([]byte, error) {
	header, payload, ok := strings.Cut(uri, ",")
	if !ok || !strings.HasPrefix(header, dataURIPrefix) {
		return nil, &preprocess.DecodeError{Reason: "expected a data:image/ URI"}
	}
	if !strings.HasSuffix(header, ";base64") {
		return nil, &preprocess.DecodeError{Reason: "data URI is not base64 encoded"}
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, &preprocess.DecodeError{Reason: "invalid base64 payload", Err: err}
	}
	return data, nil
}
