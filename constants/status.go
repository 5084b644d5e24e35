package constants

// ExtractStatus is the terminal status of an extraction run.
type ExtractStatus string

// Stable values (callers persist these exact strings).
const (
	StatusAccepted      ExtractStatus = "ACCEPTED"       // confidence cleared the acceptance threshold
	StatusNeedsFallback ExtractStatus = "NEEDS_FALLBACK" // below threshold even after escalation; human completes
	StatusFailed        ExtractStatus = "FAILED"         // hard failure (oversized or unreadable input)
)
