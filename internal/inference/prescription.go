package inference

import (
	"bytes"
	"compress/gzip"
	"encoding/base64"
	"fmt"
	"io"
)

// DecodePrescription decodes the prescription field from its compressed
// transport encoding (base64 over gzip) into plain text. The service sends
// prescriptions compressed because they can run to several pages.
func DecodePrescription(encoded string) (string, error) {
	if encoded == "" {
		return "", fmt.Errorf("empty prescription payload")
	}

	compressed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding prescription base64: %w", err)
	}

	zr, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", fmt.Errorf("opening prescription gzip stream: %w", err)
	}
	defer zr.Close()

	plain, err := io.ReadAll(zr)
	if err != nil {
		return "", fmt.Errorf("decompressing prescription: %w", err)
	}
	return string(plain), nil
}
