package derive

import "encoding/json"

// StructuredPath is the structured form of a KeyDerivationPath: an
// application-chosen SLIP-44 coin number plus optional domain and
// free-form metadata. It is reduced to a canonical string via
// Canonicalize before it ever reaches the signer contract.
type StructuredPath struct {
	Chain  uint32      `json:"chain"`
	Domain string      `json:"domain,omitempty"`
	Meta   interface{} `json:"meta,omitempty"`
}

// CanonicalPath reduces a path (opaque string or StructuredPath) to the
// canonical string the signer contract sees.
func CanonicalPath(path interface{}) (string, error) {
	switch p := path.(type) {
	case string:
		return p, nil
	case StructuredPath:
		return canonicalizeStructured(p)
	case *StructuredPath:
		return canonicalizeStructured(*p)
	default:
		// Accept anything round-trippable through encoding/json so callers
		// may pass a map[string]any built at the edge of their own code.
		raw, err := json.Marshal(p)
		if err != nil {
			return "", err
		}
		return Canonicalize(raw)
	}
}

func canonicalizeStructured(p StructuredPath) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return Canonicalize(raw)
}
