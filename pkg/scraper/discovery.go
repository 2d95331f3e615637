package scraper

import (
	"canvasfetch/pkg/browser"
	"canvasfetch/pkg/canvas"
)

// discoveryStrategy is one way of finding courses. Strategies run in a
// fixed order and the first non-empty result wins; a failing strategy is
// indistinguishable from an empty one.
type discoveryStrategy struct {
	name string
	run  func() ([]canvas.Course, error)
}

// DiscoverCourses finds every course the account can see. The dashboard
// cards are tried first because they carry the cleanest names, then the
// all-courses table, then a generic sweep of course links. Returns courses
// in the producing strategy's order; nil when every surface is empty.
func (s *Scraper) DiscoverCourses() []canvas.Course {
	strategies := []discoveryStrategy{
		{name: "dashboard cards", run: s.coursesFromDashboard},
		{name: "course table", run: s.coursesFromTable},
		{name: "course list view", run: s.coursesFromListView},
	}

	for _, strategy := range strategies {
		courses, err := strategy.run()
		if err != nil {
			s.logger.DebugWithFields("discovery strategy failed", map[string]interface{}{
				"strategy": strategy.name,
				"error":    err.Error(),
			})
			continue
		}
		if len(courses) > 0 {
			s.logger.InfoWithFields("courses discovered", map[string]interface{}{
				"strategy": strategy.name,
				"count":    len(courses),
			})
			return courses
		}
		s.logger.DebugWithFields("discovery strategy found nothing", map[string]interface{}{
			"strategy": strategy.name,
		})
	}

	return nil
}

// coursesFromDashboard reads the dashboard cards.
func (s *Scraper) coursesFromDashboard() ([]canvas.Course, error) {
	if err := s.driver.Navigate(s.cfg.Canvas.BaseURL); err != nil {
		return nil, err
	}
	if err := s.driver.WaitVisible(canvas.SelDashboardCard, s.cfg.Browser.ShortWaitTimeout); err != nil {
		return nil, nil
	}

	cards, err := s.driver.Elements(canvas.SelDashboardCard)
	if err != nil {
		return nil, err
	}

	var courses []canvas.Course
	seen := make(map[string]bool)
	for _, card := range cards {
		href := firstAttribute(card, canvas.SelDashboardCardLink, "href")
		if href == "" {
			continue
		}
		href = s.absoluteURL(href)

		id, ok := canvas.ExtractCourseID(href)
		if !ok || seen[id] {
			continue
		}

		name := firstText(card, canvas.SelDashboardCardTitle)
		if name == "" {
			if label, err := card.Attribute("aria-label"); err == nil {
				name = label
			}
		}
		if name == "" {
			name = "Course " + id
		}

		seen[id] = true
		courses = append(courses, canvas.Course{ID: id, Name: name, URL: href})
	}

	return courses, nil
}

// coursesFromTable reads the tabular all-courses listing.
func (s *Scraper) coursesFromTable() ([]canvas.Course, error) {
	if err := s.driver.Navigate(canvas.AllCoursesURL(s.cfg.Canvas.BaseURL)); err != nil {
		return nil, err
	}
	if err := s.driver.WaitVisible(canvas.SelCourseTable, s.cfg.Browser.ShortWaitTimeout); err != nil {
		return nil, nil
	}

	tables, err := s.driver.Elements(canvas.SelCourseTable)
	if err != nil {
		return nil, err
	}

	var anchors []pageLink
	for _, table := range tables {
		links, err := table.Elements(canvas.SelCourseAnchor)
		if err != nil {
			continue
		}
		for _, link := range links {
			href, err := link.Attribute("href")
			if err != nil || href == "" {
				continue
			}
			text, _ := link.Text()
			anchors = append(anchors, pageLink{href: s.absoluteURL(href), text: text})
		}
	}

	return coursesFromAnchors(anchors), nil
}

// coursesFromListView sweeps every course link on the listing page. The
// widest net, so also the strictest filtering: numeric ids only, no empty
// texts, no navigational labels, deduped by id.
func (s *Scraper) coursesFromListView() ([]canvas.Course, error) {
	if err := s.driver.Navigate(canvas.CoursesURL(s.cfg.Canvas.BaseURL)); err != nil {
		return nil, err
	}

	anchors := s.collectLinks(canvas.SelCourseAnchor)
	return coursesFromAnchors(anchors), nil
}

// coursesFromAnchors applies the shared link filter, preserving input order.
func coursesFromAnchors(anchors []pageLink) []canvas.Course {
	var courses []canvas.Course
	seen := make(map[string]bool)

	for _, a := range anchors {
		id, ok := canvas.ExtractCourseID(a.href)
		if !ok || seen[id] {
			continue
		}

		name := trimText(a.text)
		if name == "" || canvas.IsNavigationLabel(name) {
			continue
		}

		seen[id] = true
		courses = append(courses, canvas.Course{ID: id, Name: name, URL: a.href})
	}

	return courses
}

// firstText returns the trimmed text of the first descendant match.
func firstText(el browser.Element, selector string) string {
	children, err := el.Elements(selector)
	if err != nil || len(children) == 0 {
		return ""
	}
	text, err := children[0].Text()
	if err != nil {
		return ""
	}
	return trimText(text)
}

// firstAttribute returns the named attribute of the first descendant match.
func firstAttribute(el browser.Element, selector, name string) string {
	children, err := el.Elements(selector)
	if err != nil || len(children) == 0 {
		return ""
	}
	value, err := children[0].Attribute(name)
	if err != nil {
		return ""
	}
	return value
}
