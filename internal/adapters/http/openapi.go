package httpadapter

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

//go:embed openapi.yaml
var openAPISpec []byte

type apiDescription struct {
	doc  *openapi3.T
	json []byte
	ask  *openapi3.Schema
}

func loadAPIDescription() (*apiDescription, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(openAPISpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		return nil, fmt.Errorf("validate openapi document: %w", err)
	}

	askRef, ok := doc.Components.Schemas["AskRequest"]
	if !ok || askRef.Value == nil {
		return nil, fmt.Errorf("openapi document has no AskRequest schema")
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal openapi document: %w", err)
	}
	return &apiDescription{doc: doc, json: raw, ask: askRef.Value}, nil
}

// validateAskBody checks the decoded JSON body against the AskRequest schema.
func (d *apiDescription) validateAskBody(body any) error {
	return d.ask.VisitJSON(body)
}
