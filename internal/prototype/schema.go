package prototype

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema returns the JSON schema of a prototype file for editor tooling.
func Schema() ([]byte, error) {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
	}
	schema := reflector.Reflect(new(File))
	schema.Title = "Coup de grace prototypes"
	schema.Description = "Entity prototypes spawned by the server"
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("prototype: marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}
