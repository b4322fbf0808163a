// Package contract checks pipeline summaries against the JSON Schema that
// persistence and notification consumers rely on.
package contract

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/kirillkom/procurement-intake/internal/core/domain"
)

//go:embed summary.schema.json
var summarySchema []byte

const schemaURL = "summary.schema.json"

type Checker struct {
	schema *jsonschema.Schema
}

func NewChecker() (*Checker, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, bytes.NewReader(summarySchema)); err != nil {
		return nil, fmt.Errorf("add summary schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile summary schema: %w", err)
	}
	return &Checker{schema: schema}, nil
}

func (c *Checker) Check(summary []byte) error {
	var v any
	if err := json.Unmarshal(summary, &v); err != nil {
		return domain.WrapError(domain.ErrContractViolation, "decode summary", err)
	}
	if err := c.schema.Validate(v); err != nil {
		return domain.WrapError(domain.ErrContractViolation, "check summary", err)
	}
	return nil
}
