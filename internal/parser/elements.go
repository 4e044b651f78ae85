package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/dgallion1/manualrag/internal/document"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

const elementsSchemaURL = "https://manualrag.local/schemas/elements.json"

// elementsSchema describes a layout partitioner's JSON export: an array of
// typed elements with optional page and table/image metadata.
const elementsSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["type"],
    "properties": {
      "type": {"type": "string", "minLength": 1},
      "element_id": {"type": "string"},
      "text": {"type": "string"},
      "metadata": {
        "type": "object",
        "properties": {
          "page_number": {"type": ["integer", "null"], "minimum": 1},
          "text_as_html": {"type": ["string", "null"]},
          "image_path": {"type": ["string", "null"]}
        }
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledElementsSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		var doc any
		if err := json.Unmarshal([]byte(elementsSchema), &doc); err != nil {
			schemaErr = fmt.Errorf("decode schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(elementsSchemaURL, doc); err != nil {
			schemaErr = fmt.Errorf("add schema: %w", err)
			return
		}
		schema, schemaErr = compiler.Compile(elementsSchemaURL)
	})
	return schema, schemaErr
}

type rawElement struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Metadata struct {
		PageNumber *int    `json:"page_number"`
		TextAsHTML *string `json:"text_as_html"`
		ImagePath  *string `json:"image_path"`
	} `json:"metadata"`
}

// ElementsParser reads an element stream already produced by an external
// layout/OCR partitioner.
type ElementsParser struct{}

func (p *ElementsParser) Parse(ctx context.Context, r io.Reader, filename string, opts Options) ([]document.Element, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	sch, err := compiledElementsSchema()
	if err != nil {
		return nil, err
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode elements: %w", err)
	}
	if err := sch.Validate(inst); err != nil {
		return nil, fmt.Errorf("invalid elements file: %w", err)
	}

	var raw []rawElement
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode elements: %w", err)
	}

	elems := make([]document.Element, 0, len(raw))
	for _, re := range raw {
		el := document.Element{
			Category: document.ParseCategory(re.Type),
			Text:     re.Text,
		}
		if re.Metadata.PageNumber != nil {
			el.Page = *re.Metadata.PageNumber
		}
		if !opts.keepPage(el.Page) {
			continue
		}
		switch el.Category {
		case document.CategoryTable:
			if re.Metadata.TextAsHTML != nil {
				el.TableHTML = *re.Metadata.TextAsHTML
			}
		case document.CategoryImage:
			if re.Metadata.ImagePath != nil {
				el.ImagePath = opts.resolveImage(*re.Metadata.ImagePath)
			}
		}
		elems = append(elems, el)
	}
	return elems, nil
}
