package document

import (
	"fmt"

	"github.com/unidoc/unipdf/v3/common/license"
)

// SetLicense registers a UniDoc metered license key. unipdf refuses to read
// or write documents until a key is set, so callers set it once at startup.
// A blank key is ignored.
func SetLicense(apiKey string) error {
	if apiKey == "" {
		return nil
	}
	if err := license.SetMeteredKey(apiKey); err != nil {
		return fmt.Errorf("set unidoc license: %w", err)
	}
	return nil
}
