package payload

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// envelope is the persisted form of a payload.
type envelope struct {
	Kind Kind            `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Marshal encodes a payload as a tagged envelope.
func Marshal(p Payload) ([]byte, error) {
	if p == nil {
		return nil, fmt.Errorf("marshal payload: nil payload")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	out, err := json.Marshal(envelope{Kind: p.Kind(), Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return out, nil
}

// Unmarshal decodes a tagged envelope into its variant.
// Unknown fields in the data object are rejected.
func Unmarshal(raw []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	if len(env.Data) == 0 {
		return nil, fmt.Errorf("unmarshal payload: missing data for kind %q", env.Kind)
	}
	return decodeJSON(env.Kind, env.Data)
}

// DecodeJSON decodes an untagged JSON object as the variant for kind.
func DecodeJSON(kind Kind, raw []byte) (Payload, error) {
	return decodeJSON(kind, raw)
}

func decodeJSON(kind Kind, raw []byte) (Payload, error) {
	switch kind {
	case KindJob:
		var v JobPosting
		if err := strictJSON(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return v, nil
	case KindExtend:
		var v JobExtension
		if err := strictJSON(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return v, nil
	case KindProject:
		var v Project
		if err := strictJSON(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return v, nil
	case KindFunding:
		var v Contribution
		if err := strictJSON(raw, &v); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("decode payload: unknown kind %q", kind)
	}
}

func strictJSON(raw []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// DecodeYAML reads a YAML document describing a payload of the given kind.
// Used by the CLI to load payload files.
func DecodeYAML(kind Kind, r io.Reader) (Payload, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	switch kind {
	case KindJob:
		var v JobPosting
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode %s yaml: %w", kind, err)
		}
		return v, nil
	case KindExtend:
		var v JobExtension
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode %s yaml: %w", kind, err)
		}
		return v, nil
	case KindProject:
		var v Project
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode %s yaml: %w", kind, err)
		}
		return v, nil
	case KindFunding:
		var v Contribution
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("decode %s yaml: %w", kind, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("decode yaml: unknown kind %q", kind)
	}
}
