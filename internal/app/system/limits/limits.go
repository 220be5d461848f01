// internal/app/system/limits/limits.go
package limits

// Request body size limits for JSON endpoints.
// Roster uploads carry their own limit in csvutil.
const (
	// MaxJSONBody bounds small command bodies such as slot changes and
	// dispatch requests.
	MaxJSONBody = 4 << 10 // 4 KB
)
