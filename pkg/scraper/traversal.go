package scraper

import (
	"fmt"
	"path/filepath"
	"strings"

	"canvasfetch/pkg/browser"
	"canvasfetch/pkg/canvas"
)

// folderNode is the complete state needed to mirror one folder. A fresh
// value is built for every visit; nothing about a folder is retained across
// navigations except these three strings.
type folderNode struct {
	name      string
	remoteURL string
	localPath string
}

// mirrorFolder mirrors the folder the driver is currently showing,
// depth-first, and returns subtree totals (subfolders entered, files
// handled). The caller has already navigated to node.remoteURL.
//
// Subfolders are fully descended before any sibling file is downloaded, and
// the parent listing is re-rendered after every descent because element
// handles do not survive the round trip.
func (s *Scraper) mirrorFolder(node folderNode) (subfolders, files int) {
	log := s.logger.WithField("folder", node.name)

	if err := s.store.EnsureDir(node.localPath); err != nil {
		log.WithError(err).Error("cannot create local folder")
		return 0, 0
	}

	if err := s.driver.WaitVisible(canvas.SelFileListing, s.cfg.Browser.WaitTimeout); err != nil {
		log.Debug("no listing rendered, treating folder as empty")
		return 0, 0
	}

	folderItems, _ := s.listFolderItems()

	for _, sub := range folderItems {
		subfolders++

		child := folderNode{
			name:      sub.DisplayName,
			remoteURL: sub.RemoteURL,
			localPath: filepath.Join(node.localPath, canvas.Sanitize(sub.DisplayName)),
		}
		if err := s.store.EnsureDir(child.localPath); err != nil {
			log.WithError(err).Error("cannot create subfolder")
			continue
		}

		if err := s.driver.Navigate(child.remoteURL); err != nil {
			log.WithError(err).WithField("subfolder", child.name).Warn("subfolder unreachable")
			continue
		}

		sf, ff := s.mirrorFolder(child)
		subfolders += sf
		files += ff

		// Back to this folder; the listing must be confirmed again before
		// the next sibling or the file pass reads a stale page.
		if err := s.driver.Navigate(node.remoteURL); err != nil {
			log.WithError(err).Warn("cannot return to parent folder, abandoning remainder")
			return subfolders, files
		}
		if err := s.driver.WaitVisible(canvas.SelFileListing, s.cfg.Browser.ShortWaitTimeout); err != nil {
			log.Warn("parent listing did not re-render, abandoning remainder")
			return subfolders, files
		}
	}

	_, fileItems := s.listFolderItems()

	seen := make(map[string]int)
	for _, item := range fileItems {
		files++

		name := canvas.Sanitize(item.DisplayName)
		seen[name]++
		if n := seen[name]; n > 1 {
			name = collisionName(name, n)
		}

		s.fetchFile(item.RemoteURL, filepath.Join(node.localPath, name), item.DisplayName)
	}

	return subfolders, files
}

// listFolderItems reads the current listing and partitions its rows by the
// structural folder marker. Rows with no name or no link match nothing the
// engine understands and are silently excluded.
func (s *Scraper) listFolderItems() (folders, files []canvas.ContentItem) {
	rows, err := s.driver.Elements(canvas.SelFileRow)
	if err != nil {
		return nil, nil
	}

	for _, row := range rows {
		name := firstText(row, canvas.SelFileRowName)
		href := firstAttribute(row, canvas.SelFileRowLink, "href")
		if name == "" || href == "" {
			continue
		}

		item := canvas.ContentItem{
			Kind:        canvas.ItemFile,
			DisplayName: name,
			RemoteURL:   s.absoluteURL(href),
		}

		if rowIsFolder(row) {
			item.Kind = canvas.ItemFolder
			folders = append(folders, item)
		} else {
			files = append(files, item)
		}
	}

	return folders, files
}

// rowIsFolder checks the row's class list for the folder marker. Names are
// never consulted; a file called "homework" and a folder called
// "homework.pdf" both classify correctly.
func rowIsFolder(row browser.Element) bool {
	class, err := row.Attribute("class")
	if err != nil {
		return false
	}
	for _, c := range strings.Fields(class) {
		if c == canvas.FolderRowClass {
			return true
		}
	}
	return false
}

// collisionName disambiguates the nth same-named file within one folder:
// "notes.pdf" then "notes (2).pdf", "notes (3).pdf" in listing order.
func collisionName(name string, n int) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", stem, n, ext)
}
