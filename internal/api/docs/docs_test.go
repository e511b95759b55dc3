package docs

import (
	"encoding/json"
	"testing"

	"github.com/swaggo/swag"
)

func TestDocIsValidJSON(t *testing.T) {
	raw, err := swag.ReadDoc()
	if err != nil {
		t.Fatalf("read doc: %v", err)
	}

	var doc struct {
		Paths map[string]any `json:"paths"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		t.Fatalf("doc is not valid json: %v", err)
	}
	for _, path := range []string{"/auth/register", "/auth/login", "/ws", "/realtime/stats"} {
		if _, ok := doc.Paths[path]; !ok {
			t.Fatalf("missing path %s", path)
		}
	}
}
