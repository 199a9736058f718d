package record

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaSource string

// SchemaError reports a document that does not satisfy the record schema.
type SchemaError struct {
	// Details holds one line per violation.
	Details []string
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if len(e.Details) == 0 {
		return "record schema violation"
	}
	return fmt.Sprintf("record schema violation: %s", e.Details[0])
}

// IsSchemaError reports whether err is (or wraps) a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// Validate checks a record document against the embedded CUE schema.
// Legacy key names are mapped before validation.
func Validate(data []byte) error {
	doc, err := normalizeKeys(data)
	if err != nil {
		return err
	}

	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile record schema: %w", err)
	}
	v := ctx.CompileBytes(doc, cue.Filename("record.json"))
	if err := v.Err(); err != nil {
		return fmt.Errorf("parse record: %w", err)
	}

	res := schema.LookupPath(cue.ParsePath("#Record")).Unify(v)
	if err := res.Validate(cue.Concrete(true)); err != nil {
		se := &SchemaError{}
		for _, e := range cueerrors.Errors(err) {
			se.Details = append(se.Details, e.Error())
		}
		return se
	}
	return nil
}

var (
	recordAliases = map[string]string{
		"initialState": "boardSnapshot",
		"clueSections": "clueIndex",
		"userAgent":    "userAgentInfo",
	}
	eventAliases = map[string]string{
		"type":        "kind",
		"clueSection": "section",
		"clueLabel":   "label",
	}
)

func normalizeKeys(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc map[string]any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	renameKeys(doc, recordAliases)
	if events, ok := doc["events"].([]any); ok {
		for _, e := range events {
			if m, ok := e.(map[string]any); ok {
				renameKeys(m, eventAliases)
			}
		}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("normalize record: %w", err)
	}
	return out, nil
}

func renameKeys(m map[string]any, aliases map[string]string) {
	for legacy, current := range aliases {
		v, ok := m[legacy]
		if !ok {
			continue
		}
		delete(m, legacy)
		if _, exists := m[current]; !exists {
			m[current] = v
		}
	}
}
