package schlussel

import "testing"

func TestParseFormulaDoc(t *testing.T) {
	raw := []byte(`{
		"name": "example",
		"endpoints": {"authorization": "https://as/auth", "token": "https://as/tok"},
		"methods": [{"name": "authorization_code", "inputs": ["client_id"]}]
	}`)
	doc, err := ParseFormulaDoc(raw)
	if err != nil {
		t.Fatalf("ParseFormulaDoc() failed: %v", err)
	}
	if doc.Name != "example" {
		t.Errorf("Name = %q, want example", doc.Name)
	}
}

func TestParseFormulaDoc_RequiresEndpoints(t *testing.T) {
	raw := []byte(`{"name": "example", "methods": [{"name": "authorization_code"}]}`)
	_, err := ParseFormulaDoc(raw)
	assertKind(t, err, KindInvalidParameter)
}

func TestParseFormulaDoc_RequiresMethods(t *testing.T) {
	raw := []byte(`{
		"name": "example",
		"endpoints": {"authorization": "https://as/auth", "token": "https://as/tok"},
		"methods": []
	}`)
	_, err := ParseFormulaDoc(raw)
	assertKind(t, err, KindInvalidParameter)
}

func TestScriptFromFormula_SortsMethodsAndInputs(t *testing.T) {
	doc := &FormulaDoc{
		Name:      "example",
		Endpoints: FormulaEndpoints{Authorization: "https://as/auth", Token: "https://as/tok"},
		Methods: []FormulaMethod{
			{Name: "device_code", Inputs: []string{"scope", "client_id"}},
			{Name: "authorization_code", Inputs: []string{"redirect_uri", "client_id"}},
		},
	}

	out, err := ScriptFromFormula(doc)
	if err != nil {
		t.Fatalf("ScriptFromFormula() failed: %v", err)
	}
	if len(out) == 0 {
		t.Fatal("ScriptFromFormula() returned empty output")
	}

	first, err := ScriptFromFormula(doc)
	if err != nil {
		t.Fatalf("ScriptFromFormula() failed on second call: %v", err)
	}
	if string(first) != string(out) {
		t.Error("ScriptFromFormula() is not deterministic across calls")
	}

	want := `{"name":"example","endpoints":{"authorization":"https://as/auth","token":"https://as/tok"},"methods":[{"name":"authorization_code","inputs":["client_id","redirect_uri"]},{"name":"device_code","inputs":["client_id","scope"]}]}`
	if string(out) != want {
		t.Errorf("ScriptFromFormula() = %s, want %s", out, want)
	}
}
