package scraper

import (
	"fmt"
	"path/filepath"
	"strings"

	"canvasfetch/pkg/canvas"
)

// contentPathMarkers mark course links worth following for embedded files.
var contentPathMarkers = []string{"/pages/", "/assignments/"}

// scanHomepage sweeps the course homepage: directly downloadable links are
// batched through the transfer pool (their URLs need no navigation), then
// content pages are followed one at a time with the enhanced classifier.
func (s *Scraper) scanHomepage(course canvas.Course, courseDir string) {
	if err := s.driver.Navigate(course.URL); err != nil {
		s.logger.WarnWithFields("course homepage unreachable", map[string]interface{}{
			"course": course.Name,
			"error":  err.Error(),
		})
		return
	}

	links := s.collectLinks("a[href]")

	var direct []canvas.ContentItem
	var contentPages []pageLink
	for _, link := range links {
		switch {
		case canvas.IsDownloadable(link.href):
			direct = append(direct, canvas.ContentItem{
				DisplayName: displayNameFor(link),
				RemoteURL:   link.href,
			})
		case s.isContentLink(course, link):
			contentPages = append(contentPages, link)
		}
	}

	s.transferBatch(direct, courseDir)

	for _, page := range contentPages {
		s.scanContentPage(page, courseDir)
	}
}

// isContentLink keeps links that stay inside this course, look like content
// pages and are not portal chrome.
func (s *Scraper) isContentLink(course canvas.Course, link pageLink) bool {
	if !strings.Contains(link.href, canvas.CoursePathMarker+course.ID+"/") {
		return false
	}
	if link.text == "" || canvas.IsNavigationLabel(link.text) {
		return false
	}
	for _, marker := range contentPathMarkers {
		if strings.Contains(link.href, marker) {
			return true
		}
	}
	return false
}

// scanContentPage follows one content page and collects anything the
// enhanced classifier accepts. The looser rules are safe here: the page was
// already selected as content, so false positives are bounded.
func (s *Scraper) scanContentPage(page pageLink, courseDir string) {
	if err := s.driver.Navigate(page.href); err != nil {
		s.logger.DebugWithFields("content page unreachable", map[string]interface{}{
			"page":  page.text,
			"error": err.Error(),
		})
		return
	}

	var items []canvas.ContentItem
	seen := make(map[string]bool)

	add := func(link pageLink) {
		if seen[link.href] {
			return
		}
		seen[link.href] = true
		items = append(items, canvas.ContentItem{
			DisplayName: displayNameFor(link),
			RemoteURL:   link.href,
		})
	}

	for _, sel := range canvas.EnhancedDownloadSelectors {
		for _, link := range s.collectLinks(sel) {
			add(link)
		}
	}
	for _, link := range s.collectLinks("a[href]") {
		if canvas.IsDownloadableElement(link.href, link.text) {
			add(link)
		}
	}

	if len(items) == 0 {
		return
	}

	s.logger.DebugWithFields("content page yielded files", map[string]interface{}{
		"page":  page.text,
		"count": len(items),
	})
	s.transferBatch(items, courseDir)
}

// scanModules walks the course's modules page. Each module becomes a local
// directory; items whose links classify as downloadable go through the full
// chain, one at a time, because resolving them needs the browser.
func (s *Scraper) scanModules(course canvas.Course, courseDir string) {
	if err := s.driver.Navigate(canvas.ModulesURL(s.cfg.Canvas.BaseURL, course.ID)); err != nil {
		s.logger.WarnWithFields("modules page unreachable", map[string]interface{}{
			"course": course.Name,
			"error":  err.Error(),
		})
		return
	}
	if err := s.driver.WaitVisible(canvas.SelModule, s.cfg.Browser.ShortWaitTimeout); err != nil {
		s.logger.DebugWithFields("no modules section", map[string]interface{}{
			"course": course.Name,
		})
		return
	}

	// Capture every module as values before any item navigation; element
	// handles are gone the moment the chain loads a detail page.
	type moduleEntry struct {
		name  string
		items []canvas.ContentItem
	}

	modules, err := s.driver.Elements(canvas.SelModule)
	if err != nil {
		return
	}

	var entries []moduleEntry
	for i, module := range modules {
		name := firstText(module, canvas.SelModuleName)
		if name == "" {
			name = fmt.Sprintf("Module %d", i+1)
		}

		entry := moduleEntry{name: name}
		rows, err := module.Elements(canvas.SelModuleItem)
		if err != nil {
			continue
		}
		for _, row := range rows {
			href := firstAttribute(row, "a", "href")
			if href == "" {
				continue
			}
			href = s.absoluteURL(href)
			if !canvas.IsDownloadable(href) && !strings.Contains(href, "/files/") {
				continue
			}

			itemName := firstText(row, canvas.SelItemName)
			if itemName == "" {
				itemName = canvas.FileNameFromURL(href)
			}
			if itemName == "" {
				continue
			}

			entry.items = append(entry.items, canvas.ContentItem{
				DisplayName: itemName,
				RemoteURL:   href,
			})
		}
		entries = append(entries, entry)
	}

	for _, entry := range entries {
		if len(entry.items) == 0 {
			continue
		}

		moduleDir := filepath.Join(courseDir, canvas.Sanitize(entry.name))
		if err := s.store.EnsureDir(moduleDir); err != nil {
			s.logger.WithError(err).Error("cannot create module directory")
			continue
		}

		seen := make(map[string]int)
		for _, item := range entry.items {
			name := canvas.Sanitize(canvas.EnsureExtension(item.DisplayName))
			seen[name]++
			if n := seen[name]; n > 1 {
				name = collisionName(name, n)
			}

			s.fetchFile(item.RemoteURL, filepath.Join(moduleDir, name), item.DisplayName)
		}
	}
}

// displayNameFor picks a file name for a bare link: visible text when it
// looks like a file name, else the URL's last path segment.
func displayNameFor(link pageLink) string {
	if link.text != "" && canvas.HasKnownExtension(link.text) {
		return link.text
	}
	if name := canvas.FileNameFromURL(link.href); name != "" && name != "download" {
		return name
	}
	if link.text != "" {
		return link.text
	}
	return "unnamed"
}
