package adapters

import (
	"fmt"

	"review-scraper/internal/types"
)

// ForPlatform returns the adapter for platform
func ForPlatform(platform types.Platform, logger types.Logger) (types.PlatformAdapter, error) {
	switch platform {
	case types.PlatformG2:
		return NewG2Adapter(logger), nil
	case types.PlatformCapterra:
		return NewCapterraAdapter(logger), nil
	case types.PlatformTrustRadius:
		return NewTrustRadiusAdapter(logger), nil
	default:
		return nil, &types.ConfigurationError{
			Field:  "platform",
			Reason: fmt.Sprintf("no adapter for platform %q", platform),
		}
	}
}
