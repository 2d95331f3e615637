package canvas

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// CoursePathMarker is the URL path segment that precedes a course id.
	CoursePathMarker = "/courses/"

	// Selectors for the course discovery surfaces.
	SelDashboardCard      = ".ic-DashboardCard"
	SelDashboardCardTitle = ".ic-DashboardCard__header-title"
	SelDashboardCardLink  = "a.ic-DashboardCard__link"
	SelCourseTable        = "table.course-list, table.ic-Table"
	SelCourseAnchor       = "a[href*='/courses/']"

	// Selectors for the modules surface.
	SelModule     = ".context_module"
	SelModuleName = ".name"
	SelModuleItem = ".context_module_item"
	SelItemName   = ".item_name"

	// Selectors for the file browser surface.
	SelFileListing   = ".ef-directory"
	SelFileRow       = ".ef-item-row"
	SelFileRowName   = ".ef-name-col__text"
	SelFileRowLink   = "a.ef-name-col__link"
	FolderRowClass   = "ef-item-folder"

	// SelDownloadButton is the primary download control on a file detail page.
	SelDownloadButton = "a.icon-download"
)

// AltDownloadButtons are tried in order when the primary control is absent.
var AltDownloadButtons = []string{
	".file_download_btn",
	".file-download-btn",
	"a[download]",
}

// EnhancedDownloadSelectors match download-ish markup on secondary pages.
var EnhancedDownloadSelectors = []string{
	"a.file_download_btn",
	"a.icon-download",
	"a[download]",
	"a.instructure_file_link",
}

// CoursesURL returns the course listing page for a portal.
func CoursesURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/courses"
}

// AllCoursesURL returns the tabular "all courses" listing.
func AllCoursesURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + "/courses/all_courses"
}

// CourseURL returns the homepage of a course.
func CourseURL(baseURL, courseID string) string {
	return fmt.Sprintf("%s/courses/%s", strings.TrimRight(baseURL, "/"), courseID)
}

// ModulesURL returns the modules page of a course.
func ModulesURL(baseURL, courseID string) string {
	return CourseURL(baseURL, courseID) + "/modules"
}

// FilesURL returns the dedicated file browser of a course.
func FilesURL(baseURL, courseID string) string {
	return CourseURL(baseURL, courseID) + "/files"
}

// ExtractCourseID pulls the numeric course id out of a course URL.
// It returns false for URLs whose segment after the course marker is not
// a bare number (search pages, favorites, "all_courses" and the like).
func ExtractCourseID(rawURL string) (string, bool) {
	idx := strings.Index(rawURL, CoursePathMarker)
	if idx < 0 {
		return "", false
	}
	rest := rawURL[idx+len(CoursePathMarker):]
	if cut := strings.IndexAny(rest, "/?#"); cut >= 0 {
		rest = rest[:cut]
	}
	if rest == "" || !isDigits(rest) {
		return "", false
	}
	return rest, true
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// FileNameFromURL derives a display name from the last path segment of a
// URL, with query parameters stripped and percent escapes decoded. Used
// when a link carries no visible text.
func FileNameFromURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	path := u.Path
	if i := strings.LastIndex(path, "/"); i >= 0 {
		path = path[i+1:]
	}
	if decoded, err := url.PathUnescape(path); err == nil {
		path = decoded
	}
	return path
}
