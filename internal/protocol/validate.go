package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Validator checks inbound messages against the embedded JSON Schemas before
// they reach the stream loop.
type Validator struct {
	byType map[string]*jsonschema.Schema
}

var schemaFiles = map[string]string{
	TypeHello:        "hello.schema.json",
	TypeWelcome:      "welcome.schema.json",
	TypeViewerUpdate: "viewer_update.schema.json",
	TypeChunkEvent:   "chunk_event.schema.json",
	TypeStreamState:  "stream_state.schema.json",
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	v := &Validator{byType: map[string]*jsonschema.Schema{}}
	for typ, name := range schemaFiles {
		raw, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		s, err := c.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("schema %s: %w", name, err)
		}
		v.byType[typ] = s
	}
	return v, nil
}

// Validate decodes b, checks it against the schema for its declared type and
// returns that type. Unknown types are rejected.
func (v *Validator) Validate(b []byte) (string, error) {
	base, err := DecodeBase(b)
	if err != nil {
		return "", fmt.Errorf("decode: %w", err)
	}
	s, ok := v.byType[base.Type]
	if !ok {
		return base.Type, fmt.Errorf("unknown message type %q", base.Type)
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return base.Type, fmt.Errorf("decode: %w", err)
	}
	if err := s.Validate(doc); err != nil {
		return base.Type, fmt.Errorf("%s: %w", base.Type, err)
	}
	return base.Type, nil
}
