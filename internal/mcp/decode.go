package mcp

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/hpungsan/phishlabel/internal/errors"
)

// decode converts tool arguments into a typed request. Unknown arguments and
// mistyped values are rejected as INVALID_REQUEST naming the argument.
func decode[T any](req mcp.CallToolRequest) (T, error) {
	var result T
	b, err := json.Marshal(req.GetArguments())
	if err != nil {
		return result, errors.NewInternal(fmt.Errorf("marshal args: %w", err))
	}

	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&result); err != nil {
		return result, argError(err)
	}
	return result, nil
}

func argError(err error) *errors.LabelError {
	var typeErr *json.UnmarshalTypeError
	if stderrors.As(err, &typeErr) && typeErr.Field != "" {
		return errors.NewInvalidRequest(fmt.Sprintf("%s must be of type %s", typeErr.Field, typeErr.Type.Kind()))
	}
	// encoding/json has no typed error for unknown fields.
	if name, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return errors.NewInvalidRequest("unknown argument " + name)
	}
	return errors.NewInvalidRequest("invalid arguments: " + err.Error())
}
