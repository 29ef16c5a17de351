package mapping

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/fbain/confluence-markdown-sync/internal/contracts"
)

// documentSchema gates every load and save of the mapping file. A document
// that fails the schema never reaches the store and never reaches disk.
const documentSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["version", "entries"],
  "additionalProperties": false,
  "properties": {
    "version": {"type": "string", "minLength": 1},
    "entries": {
      "type": "array",
      "items": {
        "type": "object",
        "required": ["local_path", "page_id", "space_key", "last_synced_revision"],
        "additionalProperties": false,
        "properties": {
          "local_path": {"type": "string", "minLength": 1},
          "page_id": {"type": "string", "minLength": 1},
          "space_key": {"type": "string", "minLength": 1},
          "parent_page_id": {"type": "string"},
          "last_synced_revision": {"type": "integer", "minimum": 0},
          "content_hash": {"type": "string"}
        }
      }
    }
  }
}`

var compiledSchema = jsonschema.MustCompileString("mapping.schema.json", documentSchema)

type storeDocument struct {
	Version string  `json:"version"`
	Entries []Entry `json:"entries"`
}

// ValidateDocument checks raw mapping-file bytes against the schema and the
// supported format version.
func ValidateDocument(raw []byte) error {
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return &Error{Code: ErrorCodeInvalidDocument, Message: "mapping file is not valid JSON", Err: err}
	}
	if err := compiledSchema.Validate(generic); err != nil {
		return &Error{Code: ErrorCodeInvalidDocument, Message: "mapping file does not match schema", Err: err}
	}

	var doc storeDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return &Error{Code: ErrorCodeInvalidDocument, Message: "mapping file is not decodable", Err: err}
	}
	if doc.Version != contracts.MappingSchemaVersionV1 {
		return &Error{
			Code:    ErrorCodeVersionUnsupported,
			Message: fmt.Sprintf("mapping file version %q is not supported", doc.Version),
		}
	}
	return nil
}

// DecodeDocument validates and decodes raw bytes into a Store.
func DecodeDocument(raw []byte) (*Store, error) {
	if err := ValidateDocument(raw); err != nil {
		return nil, err
	}

	var doc storeDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, &Error{Code: ErrorCodeInvalidDocument, Message: "mapping file is not decodable", Err: err}
	}

	store := NewStore()
	for _, entry := range doc.Entries {
		if err := store.Put(entry); err != nil {
			return nil, err
		}
	}
	return store, nil
}

// EncodeDocument renders the store as the versioned JSON document and
// re-validates the result before returning it.
func EncodeDocument(store *Store) ([]byte, error) {
	doc := storeDocument{
		Version: contracts.MappingSchemaVersionV1,
		Entries: store.List(),
	}
	if doc.Entries == nil {
		doc.Entries = []Entry{}
	}

	raw, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	raw = append(raw, '\n')

	if err := ValidateDocument(raw); err != nil {
		return nil, err
	}
	return raw, nil
}
