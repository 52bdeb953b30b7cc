package schema

import (
	_ "embed"
	"encoding/json"

	"github.com/lambda-feedback/imapvisor/util"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed worker-config.json
var workerConfig json.RawMessage
var workerConfigLoader = gojsonschema.NewBytesLoader(workerConfig)

var workerConfigSchema = util.Must(gojsonschema.NewSchema(workerConfigLoader))

// Validate validates a worker config document against the worker config schema.
func Validate(data map[string]any) (*gojsonschema.Result, error) {
	return workerConfigSchema.Validate(gojsonschema.NewGoLoader(data))
}
