package pack

import (
	"encoding/json"
	"fmt"
	"strings"

	derrors "github.com/devstory-labs/devstory-engine/internal/errors"
)

// Parse converts raw model output into a validated ProjectPackage.
//
// It first attempts a direct JSON decode. If that fails, it strips the
// fenced-block markers the model sometimes emits despite being instructed
// not to, and retries exactly once. A second failure is terminal; there
// is no field-by-field repair beyond this single normalization retry.
func Parse(raw string) (*ProjectPackage, error) {
	var p ProjectPackage
	if err := json.Unmarshal([]byte(raw), &p); err == nil {
		return &p, nil
	}

	clean := strings.ReplaceAll(raw, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")

	var retried ProjectPackage
	if err := json.Unmarshal([]byte(clean), &retried); err != nil {
		return nil, fmt.Errorf("%w: %v", derrors.ErrMalformedResponse, err)
	}
	return &retried, nil
}
