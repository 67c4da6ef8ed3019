package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
)

// FingerprintInput lists every input that determines a generation result.
type FingerprintInput struct {
	SchemaDigest  string
	Model         string
	SystemMessage string
	Prompt        string
	Temperature   float64
	MaxTokens     int
	StopSequences []string
}

// Fingerprint returns a stable hex digest of in. Each field is length-prefixed
// so that no two distinct inputs share an encoding.
func Fingerprint(in FingerprintInput) string {
	h := sha256.New()
	writeField(h, "schema", in.SchemaDigest)
	writeField(h, "model", in.Model)
	writeField(h, "system", in.SystemMessage)
	writeField(h, "prompt", in.Prompt)
	writeField(h, "temperature", strconv.FormatFloat(in.Temperature, 'g', -1, 64))
	writeField(h, "max_tokens", strconv.Itoa(in.MaxTokens))
	writeField(h, "stop", strconv.Itoa(len(in.StopSequences)))
	for _, s := range in.StopSequences {
		writeField(h, "stop", s)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(w io.Writer, name, value string) {
	fmt.Fprintf(w, "%s:%d:%s\n", name, len(value), value)
}
