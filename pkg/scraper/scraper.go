// Package scraper walks an authenticated course portal and mirrors every
// reachable instructor file onto local disk. The filesystem doubles as the
// resume ledger: completed files are skipped, zero-length placeholders mark
// failed attempts for the next run, and nothing else is persisted between
// runs that the engine depends on.
package scraper

import (
	"path/filepath"
	"strings"

	"canvasfetch/pkg/browser"
	"canvasfetch/pkg/canvas"
	"canvasfetch/pkg/config"
	"canvasfetch/pkg/logger"
	"canvasfetch/pkg/storage"

	"canvasfetch/internal/transferpool"
)

// Stats aggregates the outcome of a run.
type Stats struct {
	CoursesDiscovered int
	CoursesProcessed  int
	Downloaded        int
	Skipped           int
	Failed            int
}

// Scraper drives one browser page through discovery, traversal and the
// download chain. All navigation happens on the caller's goroutine; only
// transfers of already-resolved URLs fan out to the pool.
type Scraper struct {
	driver  browser.Driver
	fetcher transferpool.Fetcher
	store   *storage.Manager
	ledger  *storage.Ledger
	cfg     *config.Config
	logger  logger.Logger
	stats   Stats
}

// New creates a scraper. ledger may be nil to disable attempt records.
func New(driver browser.Driver, fetcher transferpool.Fetcher, store *storage.Manager, ledger *storage.Ledger, cfg *config.Config, log logger.Logger) *Scraper {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Scraper{
		driver:  driver,
		fetcher: fetcher,
		store:   store,
		ledger:  ledger,
		cfg:     cfg,
		logger:  log,
	}
}

// Run discovers all courses and mirrors each one in discovery order. A
// failing course is logged and skipped; Run only returns an error when
// nothing at all could be discovered because navigation itself failed.
func (s *Scraper) Run() (Stats, error) {
	courses := s.DiscoverCourses()
	s.stats.CoursesDiscovered = len(courses)

	if len(courses) == 0 {
		s.logger.Warn("no courses discovered on any surface")
		return s.stats, nil
	}

	s.logger.InfoWithFields("starting mirror", map[string]interface{}{
		"courses":  len(courses),
		"base_dir": s.store.BaseDir(),
	})

	for _, course := range courses {
		if err := s.processCourse(course); err != nil {
			s.logger.ErrorWithFields("course failed, continuing with next", map[string]interface{}{
				"course": course.Name,
				"error":  err.Error(),
			})
			continue
		}
		s.stats.CoursesProcessed++
	}

	s.logger.InfoWithFields("run complete", map[string]interface{}{
		"courses_discovered": s.stats.CoursesDiscovered,
		"courses_processed":  s.stats.CoursesProcessed,
		"downloaded":         s.stats.Downloaded,
		"skipped":            s.stats.Skipped,
		"failed":             s.stats.Failed,
	})

	return s.stats, nil
}

// processCourse mirrors one course: homepage links, module items, then the
// dedicated files section. Each surface failing only costs that surface.
func (s *Scraper) processCourse(course canvas.Course) error {
	courseDir := filepath.Join(s.store.BaseDir(), canvas.Sanitize(course.Name))
	if err := s.store.EnsureDir(courseDir); err != nil {
		return err
	}

	log := s.logger.WithField("course", course.Name)
	log.Info("mirroring course")

	s.scanHomepage(course, courseDir)
	s.scanModules(course, courseDir)
	s.scanFiles(course, courseDir)

	return nil
}

// scanFiles mirrors the dedicated file browser under a Files/ subdirectory
// using the traversal engine. An absent files section is normal; many
// courses disable it.
func (s *Scraper) scanFiles(course canvas.Course, courseDir string) {
	filesURL := canvas.FilesURL(s.cfg.Canvas.BaseURL, course.ID)

	if err := s.driver.Navigate(filesURL); err != nil {
		s.logger.WarnWithFields("files section unreachable", map[string]interface{}{
			"course": course.Name,
			"error":  err.Error(),
		})
		return
	}

	root := folderNode{
		name:      "Files",
		remoteURL: filesURL,
		localPath: filepath.Join(courseDir, "Files"),
	}
	subfolders, files := s.mirrorFolder(root)

	s.logger.InfoWithFields("files section mirrored", map[string]interface{}{
		"course":     course.Name,
		"subfolders": subfolders,
		"files":      files,
	})
}

// pageLink is a captured anchor. Links are captured as values before any
// further navigation because element handles do not survive page loads.
type pageLink struct {
	href string
	text string
}

// collectLinks captures href/text pairs for every current match.
func (s *Scraper) collectLinks(selector string) []pageLink {
	els, err := s.driver.Elements(selector)
	if err != nil {
		return nil
	}

	links := make([]pageLink, 0, len(els))
	for _, el := range els {
		href, err := el.Attribute("href")
		if err != nil || href == "" {
			continue
		}
		text, _ := el.Text()
		links = append(links, pageLink{
			href: s.absoluteURL(href),
			text: strings.TrimSpace(text),
		})
	}
	return links
}

// trimText collapses runs of whitespace in rendered element text.
func trimText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// absoluteURL resolves portal-relative hrefs against the base URL.
func (s *Scraper) absoluteURL(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if strings.HasPrefix(href, "/") {
		return strings.TrimRight(s.cfg.Canvas.BaseURL, "/") + href
	}
	return href
}

// relPath renders a mirror path relative to the base directory for ledger
// records and logs.
func (s *Scraper) relPath(localPath string) string {
	rel, err := filepath.Rel(s.store.BaseDir(), localPath)
	if err != nil {
		return localPath
	}
	return rel
}
