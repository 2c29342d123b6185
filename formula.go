package schlussel

import (
	"encoding/json"
	"sort"
)

// FormulaEndpoints is the `endpoints` map of a FormulaDoc (spec.md §4.9):
// authorization and token are required, device_authorization and
// registration are optional.
type FormulaEndpoints struct {
	Authorization       string `json:"authorization"`
	Token               string `json:"token"`
	DeviceAuthorization string `json:"device_authorization,omitempty"`
	Registration        string `json:"registration,omitempty"`
}

// FormulaMethod describes one method a FormulaDoc exposes and the named
// inputs it requires.
type FormulaMethod struct {
	Name   string   `json:"name"`
	Inputs []string `json:"inputs,omitempty"`
}

// FormulaDoc is the declarative description of a provider: its endpoints
// and the methods (authorization_code, device_code, ...) it supports
// (spec.md §4.9).
type FormulaDoc struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Endpoints   FormulaEndpoints `json:"endpoints"`
	Methods     []FormulaMethod  `json:"methods"`
}

// ParseFormulaDoc decodes raw JSON into a FormulaDoc and validates the
// minimal shape spec.md §4.9 requires.
func ParseFormulaDoc(raw []byte) (*FormulaDoc, error) {
	var doc FormulaDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errorf(KindJSON, err, "failed to parse formula document")
	}
	if doc.Name == "" {
		return nil, newError(KindInvalidParameter, "formula document is missing name", nil)
	}
	if doc.Endpoints.Authorization == "" || doc.Endpoints.Token == "" {
		return nil, newError(KindInvalidParameter, "formula document is missing required endpoints", nil)
	}
	if len(doc.Methods) == 0 {
		return nil, newError(KindInvalidParameter, "formula document declares no methods", nil)
	}
	return &doc, nil
}

// method looks up a named method, or reports ok=false.
func (d *FormulaDoc) method(name string) (FormulaMethod, bool) {
	for _, m := range d.Methods {
		if m.Name == name {
			return m, true
		}
	}
	return FormulaMethod{}, false
}

// ScriptFromFormula emits doc normalized into a canonical JSON script:
// informational fields (Description) dropped, and Methods (plus each
// method's Inputs) sorted so the output is stable regardless of how the
// source document declared them. Top-level field order follows the
// canonical struct's declaration, since json.Marshal on a struct doesn't
// reorder keys the way marshaling a map would.
func ScriptFromFormula(doc *FormulaDoc) ([]byte, error) {
	sortedMethods := make([]FormulaMethod, len(doc.Methods))
	copy(sortedMethods, doc.Methods)
	sort.Slice(sortedMethods, func(i, j int) bool { return sortedMethods[i].Name < sortedMethods[j].Name })
	for i := range sortedMethods {
		inputs := append([]string(nil), sortedMethods[i].Inputs...)
		sort.Strings(inputs)
		sortedMethods[i].Inputs = inputs
	}

	canonical := struct {
		Name      string           `json:"name"`
		Endpoints FormulaEndpoints `json:"endpoints"`
		Methods   []FormulaMethod  `json:"methods"`
	}{
		Name:      doc.Name,
		Endpoints: doc.Endpoints,
		Methods:   sortedMethods,
	}
	return json.Marshal(canonical)
}
