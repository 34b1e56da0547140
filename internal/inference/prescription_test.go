package inference

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"testing"
)

// encodePrescription mirrors the service's transport encoding: gzip then base64.
func encodePrescription(t *testing.T, plain string) string {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(plain)); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestDecodePrescription_Roundtrip(t *testing.T) {
	plain := "Amoxicillin 500mg three times daily for 7 days.\nReview in two weeks."

	decoded, err := DecodePrescription(encodePrescription(t, plain))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decoded != plain {
		t.Errorf("roundtrip mismatch: got %q", decoded)
	}
}

func TestDecodePrescription_Empty(t *testing.T) {
	if _, err := DecodePrescription(""); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestDecodePrescription_InvalidBase64(t *testing.T) {
	if _, err := DecodePrescription("not-base64!!!"); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestDecodePrescription_NotGzip(t *testing.T) {
	raw := base64.StdEncoding.EncodeToString([]byte("plain text, not gzip"))
	if _, err := DecodePrescription(raw); err == nil {
		t.Error("expected error for non-gzip payload")
	}
}
