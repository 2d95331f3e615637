package scraper

import (
	"path/filepath"

	"canvasfetch/pkg/canvas"
	"canvasfetch/pkg/storage"

	"canvasfetch/internal/transferpool"
)

// fetchOutcome is how one file attempt ended.
type fetchOutcome int

const (
	fetchSkipped fetchOutcome = iota
	fetchDownloaded
	fetchFailed
)

// fetchFile runs the download chain for one file: skip-existing, UI
// download control, direct transfer, placeholder. Every step's failure
// falls through to the next; the chain itself never fails upward, which is
// what keeps a broken file from costing its folder.
func (s *Scraper) fetchFile(remoteURL, localPath, displayName string) fetchOutcome {
	if s.cfg.Download.SkipExisting && s.store.IsComplete(localPath) {
		s.stats.Skipped++
		s.recordAttempt(localPath, storage.OutcomeSkipped, 0, "")
		return fetchSkipped
	}

	// Step 1: the portal's own download control on the detail page. Its
	// href carries access tokens a raw file URL lacks.
	if href, ok := s.resolveDownloadControl(remoteURL); ok {
		if written, ok := s.transferTo(href, localPath, displayName); ok {
			s.stats.Downloaded++
			s.recordAttempt(localPath, storage.OutcomeCompleted, written, "")
			return fetchDownloaded
		}
	}

	// Step 2: the original URL itself.
	if written, ok := s.transferTo(remoteURL, localPath, displayName); ok {
		s.stats.Downloaded++
		s.recordAttempt(localPath, storage.OutcomeCompleted, written, "")
		return fetchDownloaded
	}

	// Step 3: zero-length marker so the next run retries this file.
	if err := s.store.WritePlaceholder(localPath); err != nil {
		s.logger.ErrorWithFields("placeholder write failed", map[string]interface{}{
			"path":  localPath,
			"error": err.Error(),
		})
	}
	s.stats.Failed++
	s.recordAttempt(localPath, storage.OutcomeFailed, 0, "all download strategies failed")
	s.logger.WarnWithFields("all download strategies failed", map[string]interface{}{
		"name": displayName,
		"path": localPath,
	})

	return fetchFailed
}

// resolveDownloadControl navigates to the file's detail view and hunts for
// a download control: the primary signature within the bounded wait, then
// the alternates without waiting. Returns the control's resolved href.
func (s *Scraper) resolveDownloadControl(remoteURL string) (string, bool) {
	if err := s.driver.Navigate(remoteURL); err != nil {
		s.logger.DebugWithFields("detail view unreachable", map[string]interface{}{
			"url":   remoteURL,
			"error": err.Error(),
		})
		return "", false
	}

	selector := canvas.SelDownloadButton
	if err := s.driver.WaitVisible(selector, s.cfg.Browser.ShortWaitTimeout); err != nil {
		selector = ""
		for _, alt := range canvas.AltDownloadButtons {
			if _, err := s.driver.Element(alt); err == nil {
				selector = alt
				break
			}
		}
		if selector == "" {
			return "", false
		}
	}

	el, err := s.driver.Element(selector)
	if err != nil {
		return "", false
	}
	href, err := el.Attribute("href")
	if err != nil || href == "" {
		return "", false
	}

	return s.absoluteURL(href), true
}

// transferTo streams a resolved URL into the mirror. Failures are logged
// and reported as false, never returned.
func (s *Scraper) transferTo(url, localPath, displayName string) (int64, bool) {
	body, _, err := s.fetcher.Fetch(url)
	if err != nil {
		s.logger.DebugWithFields("transfer failed", map[string]interface{}{
			"name":  displayName,
			"url":   url,
			"error": err.Error(),
		})
		return 0, false
	}
	defer body.Close()

	written, err := s.store.SaveFile(localPath, body, nil)
	if err != nil {
		s.logger.WarnWithFields("save failed", map[string]interface{}{
			"name":  displayName,
			"path":  localPath,
			"error": err.Error(),
		})
		return 0, false
	}

	s.logger.InfoWithFields("downloaded", map[string]interface{}{
		"name": displayName,
		"size": storage.FormatSize(written),
	})
	return written, true
}

// transferBatch pushes already-resolved direct URLs through the worker
// pool. Only URLs that need no browser interaction belong here.
func (s *Scraper) transferBatch(items []canvas.ContentItem, dir string) {
	if len(items) == 0 {
		return
	}

	pool := transferpool.New(s.cfg.Download.ConcurrentTransfers, s.fetcher, s.store, s.cfg.Download.SkipExisting, s.logger)
	pool.Start()

	done := make(chan struct{})
	go func() {
		for result := range pool.Results() {
			switch {
			case result.Skipped:
				s.stats.Skipped++
				s.recordAttempt(result.Job.LocalPath, storage.OutcomeSkipped, 0, "")
			case result.Success:
				s.stats.Downloaded++
				s.recordAttempt(result.Job.LocalPath, storage.OutcomeCompleted, result.Bytes, "")
			default:
				s.stats.Failed++
				reason := ""
				if result.Error != nil {
					reason = result.Error.Error()
				}
				s.recordAttempt(result.Job.LocalPath, storage.OutcomeFailed, 0, reason)
			}
		}
		close(done)
	}()

	seen := make(map[string]int)
	for _, item := range items {
		name := canvas.Sanitize(canvas.EnsureExtension(item.DisplayName))
		seen[name]++
		if n := seen[name]; n > 1 {
			name = collisionName(name, n)
		}

		job := transferpool.Job{
			URL:         item.RemoteURL,
			LocalPath:   filepath.Join(dir, name),
			DisplayName: item.DisplayName,
		}
		if err := pool.Submit(job); err != nil {
			break
		}
	}

	pool.Stop()
	<-done
}

// recordAttempt writes a diagnostic ledger entry. The ledger never drives
// skip decisions; the filesystem does.
func (s *Scraper) recordAttempt(localPath string, outcome storage.AttemptOutcome, bytes int64, reason string) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.Record(s.relPath(localPath), outcome, bytes, reason); err != nil {
		s.logger.DebugWithFields("ledger write failed", map[string]interface{}{
			"path":  localPath,
			"error": err.Error(),
		})
	}
}
