package infra

import "testing"

func TestExtractMarker(t *testing.T) {
	id, body, err := ExtractMarker("\n--sql 3f1c2a4e-8b7d-4c6a-9e5f-1a2b3c4d5e6f\nSELECT 1\n")
	if err != nil {
		t.Fatalf("ExtractMarker returned error: %v", err)
	}
	if id != "3f1c2a4e-8b7d-4c6a-9e5f-1a2b3c4d5e6f" || body != "SELECT 1" {
		t.Fatalf("id = %q body = %q", id, body)
	}

	for _, q := range []string{"SELECT 1", "--sql not-a-uuid\nSELECT 1", "--sql 3f1c2a4e-8b7d-4c6a-9e5f-1a2b3c4d5e6f"} {
		if _, _, err := ExtractMarker(q); err == nil {
			t.Fatalf("ExtractMarker(%q) expected error", q)
		}
	}
}
