package echoapi

import (
	"bytes"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shulebus/core"
)

// sonicSerializer is the echo.JSONSerializer backed by bytedance/sonic.
type sonicSerializer struct{}

var _ echo.JSONSerializer = sonicSerializer{}

func (sonicSerializer) Serialize(ctx echo.Context, i interface{}, indent string) error {
	enc := sonic.ConfigDefault.NewEncoder(ctx.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (sonicSerializer) Deserialize(ctx echo.Context, i interface{}) error {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return errors.Wrap(err, "reading body")
	}
	if err = sonic.ConfigDefault.Unmarshal(body, i); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON body").SetInternal(errors.Wrap(err, "decoding body"))
	}
	if bytes.Contains(body, []byte("null")) {
		core.ClearNullPatches(i, nullKeys(body))
	}
	return nil
}

// nullKeys lists the top-level keys of a JSON object body set to null.
func nullKeys(body []byte) map[string]bool {
	var fields map[string]interface{}
	if err := sonic.ConfigDefault.Unmarshal(body, &fields); err != nil {
		return nil
	}
	keys := make(map[string]bool)
	for k, v := range fields {
		if v == nil {
			keys[k] = true
		}
	}
	return keys
}
