package constants

import "strings"

// DocKind is the coarse document format driving pipeline dispatch.
type DocKind string

const (
	PDF   DocKind = "PDF"
	IMAGE DocKind = "IMAGE"
	CSV   DocKind = "CSV"
	XLSX  DocKind = "XLSX"
)

// MaxInputBytes is the hard input cap; larger documents are rejected
// before any extraction attempt.
const MaxInputBytes = 20 << 20

// AllowedExtensions holds the file extensions accepted for ingestion.
var AllowedExtensions = map[string]struct{}{
	"pdf":  {},
	"jpg":  {},
	"jpeg": {},
	"png":  {},
	"csv":  {},
	"xlsx": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MapExtToKind maps a normalized extension to a DocKind.
// Returns "" for unsupported extensions.
func MapExtToKind(ext string) DocKind {
	switch NormalizeExt(ext) {
	case "pdf":
		return PDF
	case "jpg", "jpeg", "png", "tif", "tiff":
		return IMAGE
	case "csv":
		return CSV
	case "xlsx":
		return XLSX
	default:
		return ""
	}
}
