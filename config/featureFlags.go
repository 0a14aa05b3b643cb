package config

import (
	"os"
	"strings"
)

func envBool(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes" || v == "y"
}

// AICategorizationEnabled gates the Gemini-backed transaction categorizer.
//
// Set via env:
// - ENABLE_AI_CATEGORIZATION=true
func AICategorizationEnabled() bool {
	return envBool("ENABLE_AI_CATEGORIZATION")
}

// BankFeedSyncEnabled gates the scheduled bank aggregation sync.
//
// Set via env:
// - ENABLE_BANKFEED_SYNC=true
// - BANKFEED_SYNC_CRON="0 */6 * * *" (optional, default every 6 hours)
func BankFeedSyncEnabled() bool {
	return envBool("ENABLE_BANKFEED_SYNC")
}

func BankFeedSyncCron() string {
	v := strings.TrimSpace(os.Getenv("BANKFEED_SYNC_CRON"))
	if v == "" {
		return "0 */6 * * *"
	}
	return v
}
