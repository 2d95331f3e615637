package canvas

import "strings"

// FileExtensions is the allow-list of document and media extensions treated
// as downloadable content. It is enumerated once and reused by the
// classifier, the sanitizer helpers and the scraper.
var FileExtensions = []string{
	".pdf", ".doc", ".docx", ".ppt", ".pptx", ".xls", ".xlsx",
	".txt", ".zip", ".csv", ".rtf",
	".jpg", ".jpeg", ".png", ".gif",
	".mp3", ".mp4", ".mov", ".avi",
}

// IsDownloadable reports whether a URL is likely to reference downloadable
// file content. Pure function of the URL string; no network access.
//
// A URL qualifies when it carries a files segment together with an explicit
// download marker, or when its path (or pre-query suffix) ends in an
// allow-listed extension.
func IsDownloadable(rawURL string) bool {
	if rawURL == "" {
		return false
	}

	if strings.Contains(rawURL, "/files/") &&
		(strings.Contains(rawURL, "/download") ||
			strings.Contains(rawURL, "?download=1") ||
			strings.Contains(rawURL, "&download=1") ||
			strings.Contains(rawURL, "download_frd=1")) {
		return true
	}

	lower := strings.ToLower(rawURL)
	for _, ext := range FileExtensions {
		if strings.HasSuffix(lower, ext) || strings.Contains(lower, ext+"?") {
			return true
		}
	}

	return false
}

// IsDownloadableElement is the enhanced classifier used on secondary and
// detail pages, where false positives are bounded by the page already having
// been selected as content. Beyond the URL rules it accepts elements whose
// visible text contains the word "download" or a bare extension token.
func IsDownloadableElement(rawURL, text string) bool {
	if IsDownloadable(rawURL) {
		return true
	}
	if rawURL == "" {
		return false
	}

	lower := strings.ToLower(text)
	if strings.Contains(lower, "download") {
		return true
	}
	for _, ext := range FileExtensions {
		if strings.Contains(lower, ext) {
			return true
		}
	}

	return false
}

// HasKnownExtension reports whether a file name already ends in one of the
// allow-listed extensions.
func HasKnownExtension(name string) bool {
	lower := strings.ToLower(name)
	for _, ext := range FileExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// EnsureExtension appends the conservative document default to names that
// lack a recognized extension, so local files stay openable. This is a
// display convenience, not content-type detection.
func EnsureExtension(name string) string {
	if HasKnownExtension(name) {
		return name
	}
	return name + ".pdf"
}

// navigationLabels are link texts that identify portal chrome rather than
// course content.
var navigationLabels = map[string]bool{
	"home":          true,
	"announcements": true,
	"grades":        true,
	"people":        true,
	"files":         true,
	"syllabus":      true,
	"modules":       true,
	"settings":      true,
	"dashboard":     true,
	"courses":       true,
	"all courses":   true,
}

// IsNavigationLabel reports whether a link text matches a known
// navigational label and should be excluded from content discovery.
func IsNavigationLabel(text string) bool {
	return navigationLabels[strings.ToLower(strings.TrimSpace(text))]
}
