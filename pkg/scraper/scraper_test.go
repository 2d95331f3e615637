package scraper

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"canvasfetch/pkg/canvas"
)

func dashboardCard(name, href string) *fakeEl {
	return el("").
		child(canvas.SelDashboardCardTitle, el(name)).
		child(canvas.SelDashboardCardLink, el("").attr("href", href))
}

func courseAnchor(text, href string) *fakeEl {
	return el(text).attr("href", href)
}

func TestDiscoverCoursesPrefersDashboard(t *testing.T) {
	driver := newFakeDriver()
	driver.addPage(testBaseURL, page().with(canvas.SelDashboardCard,
		dashboardCard("Biology 101", "/courses/101"),
		dashboardCard("Chemistry 202", "/courses/202"),
	))

	s, _ := newTestScraper(t, driver, newFakeFetcher())
	courses := s.DiscoverCourses()

	require.Len(t, courses, 2)
	assert.Equal(t, "101", courses[0].ID)
	assert.Equal(t, "Biology 101", courses[0].Name)
	assert.Equal(t, testBaseURL+"/courses/101", courses[0].URL)
	assert.Equal(t, "202", courses[1].ID)

	assert.NotContains(t, driver.navLog, testBaseURL+"/courses",
		"later strategies must not run once the dashboard yields courses")
}

func TestDiscoverCoursesFallsBackToTable(t *testing.T) {
	driver := newFakeDriver()
	driver.addPage(testBaseURL, page())
	driver.addPage(testBaseURL+"/courses/all_courses", page().with("table.course-list",
		el("").child(canvas.SelCourseAnchor,
			courseAnchor("Biology 101", "/courses/101"),
			courseAnchor("Chemistry 202", "/courses/202"),
			courseAnchor("Physics 303", "/courses/303"),
		),
	))

	s, _ := newTestScraper(t, driver, newFakeFetcher())
	courses := s.DiscoverCourses()

	require.Len(t, courses, 3)
	assert.Equal(t, []string{"101", "202", "303"},
		[]string{courses[0].ID, courses[1].ID, courses[2].ID},
		"result keeps the producing strategy's order")
}

func TestDiscoverCoursesListViewFiltering(t *testing.T) {
	driver := newFakeDriver()
	driver.addPage(testBaseURL, page())
	driver.addPage(testBaseURL+"/courses", page().with(canvas.SelCourseAnchor,
		courseAnchor("Biology 101", "/courses/101"),
		courseAnchor("All Courses", "/courses/all_courses"),
		courseAnchor("", "/courses/404"),
		courseAnchor("Biology 101 again", "/courses/101"),
		courseAnchor("Home", "/courses/505"),
		courseAnchor("Physics 303", "/courses/303"),
	))

	s, _ := newTestScraper(t, driver, newFakeFetcher())
	courses := s.DiscoverCourses()

	require.Len(t, courses, 2)
	assert.Equal(t, "101", courses[0].ID)
	assert.Equal(t, "303", courses[1].ID)
}

func TestDiscoverCoursesAllSurfacesEmpty(t *testing.T) {
	driver := newFakeDriver()
	s, _ := newTestScraper(t, driver, newFakeFetcher())
	assert.Empty(t, s.DiscoverCourses())
}

func folderRow(name, href string) *fakeEl {
	return el("").attr("class", "ef-item-row "+canvas.FolderRowClass).
		child(canvas.SelFileRowName, el(name)).
		child(canvas.SelFileRowLink, el("").attr("href", href))
}

func fileRow(name, href string) *fakeEl {
	return el("").attr("class", "ef-item-row").
		child(canvas.SelFileRowName, el(name)).
		child(canvas.SelFileRowLink, el("").attr("href", href))
}

func TestMirrorFolderTwoLevels(t *testing.T) {
	filesURL := testBaseURL + "/courses/7/files"
	subURL := testBaseURL + "/courses/7/files/folder/Week_1"

	driver := newFakeDriver()
	driver.addPage(filesURL, page().
		with(canvas.SelFileListing, el("")).
		with(canvas.SelFileRow,
			folderRow("Week 1", "/courses/7/files/folder/Week_1"),
			fileRow("syllabus.pdf", "/files/10/download?download_frd=1"),
		))
	driver.addPage(subURL, page().
		with(canvas.SelFileListing, el("")).
		with(canvas.SelFileRow,
			fileRow("notes.pdf", "/files/11/download"),
		))

	fetcher := newFakeFetcher()
	fetcher.content[testBaseURL+"/files/10/download?download_frd=1"] = "syllabus body"
	fetcher.content[testBaseURL+"/files/11/download"] = "notes body"

	s, fs := newTestScraper(t, driver, fetcher)
	require.NoError(t, driver.Navigate(filesURL))

	subfolders, files := s.mirrorFolder(folderNode{
		name:      "Files",
		remoteURL: filesURL,
		localPath: "mirror/Files",
	})

	assert.Equal(t, 1, subfolders)
	assert.Equal(t, 2, files)

	data, err := afero.ReadFile(fs, "mirror/Files/Week 1/notes.pdf")
	require.NoError(t, err)
	assert.Equal(t, "notes body", string(data))

	data, err = afero.ReadFile(fs, "mirror/Files/syllabus.pdf")
	require.NoError(t, err)
	assert.Equal(t, "syllabus body", string(data))
}

func TestMirrorFolderCollidingNames(t *testing.T) {
	filesURL := testBaseURL + "/courses/7/files"

	driver := newFakeDriver()
	driver.addPage(filesURL, page().
		with(canvas.SelFileListing, el("")).
		with(canvas.SelFileRow,
			fileRow("notes.pdf", "/files/1/download"),
			fileRow("notes.pdf", "/files/2/download"),
		))

	fetcher := newFakeFetcher()
	fetcher.content[testBaseURL+"/files/1/download"] = "first"
	fetcher.content[testBaseURL+"/files/2/download"] = "second"

	s, fs := newTestScraper(t, driver, fetcher)
	require.NoError(t, driver.Navigate(filesURL))

	_, files := s.mirrorFolder(folderNode{name: "Files", remoteURL: filesURL, localPath: "mirror/Files"})
	assert.Equal(t, 2, files)

	data, err := afero.ReadFile(fs, "mirror/Files/notes.pdf")
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))

	data, err = afero.ReadFile(fs, "mirror/Files/notes (2).pdf")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data), "later duplicate gets the suffixed name")
}

func TestFetchFileWritesPlaceholderOnNotFound(t *testing.T) {
	driver := newFakeDriver()
	fetcher := newFakeFetcher()
	s, fs := newTestScraper(t, driver, fetcher)

	outcome := s.fetchFile(testBaseURL+"/files/99/download", "mirror/missing.pdf", "missing.pdf")
	assert.Equal(t, fetchFailed, outcome)

	info, err := fs.Stat("mirror/missing.pdf")
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size(), "failure leaves a zero-length marker")
	assert.Equal(t, 1, s.stats.Failed)
}

func TestFetchFileSkipsCompletedFile(t *testing.T) {
	driver := newFakeDriver()
	fetcher := newFakeFetcher()
	s, fs := newTestScraper(t, driver, fetcher)

	require.NoError(t, afero.WriteFile(fs, "mirror/done.pdf", []byte("kept"), 0644))

	outcome := s.fetchFile(testBaseURL+"/files/1/download", "mirror/done.pdf", "done.pdf")
	assert.Equal(t, fetchSkipped, outcome)
	assert.Zero(t, fetcher.totalFetches(), "skip means zero network activity")

	data, err := afero.ReadFile(fs, "mirror/done.pdf")
	require.NoError(t, err)
	assert.Equal(t, "kept", string(data))
}

func TestFetchFileRetriesPlaceholderFromEarlierRun(t *testing.T) {
	driver := newFakeDriver()
	fetcher := newFakeFetcher()
	fetcher.content[testBaseURL+"/files/1/download"] = "recovered"
	s, fs := newTestScraper(t, driver, fetcher)

	require.NoError(t, afero.WriteFile(fs, "mirror/retry.pdf", nil, 0644))

	outcome := s.fetchFile(testBaseURL+"/files/1/download", "mirror/retry.pdf", "retry.pdf")
	assert.Equal(t, fetchDownloaded, outcome)

	data, err := afero.ReadFile(fs, "mirror/retry.pdf")
	require.NoError(t, err)
	assert.Equal(t, "recovered", string(data))
}

func TestFetchFilePrefersDownloadControl(t *testing.T) {
	detailURL := testBaseURL + "/courses/7/files/10"
	buttonURL := testBaseURL + "/files/10/download?verifier=tok"

	driver := newFakeDriver()
	driver.addPage(detailURL, page().with(canvas.SelDownloadButton,
		el("Download").attr("href", "/files/10/download?verifier=tok"),
	))

	fetcher := newFakeFetcher()
	fetcher.content[buttonURL] = "via button"
	s, fs := newTestScraper(t, driver, fetcher)

	outcome := s.fetchFile(detailURL, "mirror/slides.pdf", "slides.pdf")
	assert.Equal(t, fetchDownloaded, outcome)

	assert.Equal(t, 1, fetcher.fetches[buttonURL])
	assert.Zero(t, fetcher.fetches[detailURL], "direct transfer not attempted when the control works")

	data, err := afero.ReadFile(fs, "mirror/slides.pdf")
	require.NoError(t, err)
	assert.Equal(t, "via button", string(data))
}

func TestScanModules(t *testing.T) {
	modulesURL := testBaseURL + "/courses/7/modules"

	driver := newFakeDriver()
	driver.addPage(modulesURL, page().with(canvas.SelModule,
		el("").
			child(canvas.SelModuleName, el("Week 1")).
			child(canvas.SelModuleItem,
				el("").
					child("a", el("").attr("href", "/courses/7/files/20")).
					child(canvas.SelItemName, el("slides.pdf")),
				el("").
					child("a", el("").attr("href", "/courses/7/assignments/3")).
					child(canvas.SelItemName, el("Homework 1")),
			),
	))

	fetcher := newFakeFetcher()
	fetcher.content[testBaseURL+"/courses/7/files/20"] = "slide deck"
	s, fs := newTestScraper(t, driver, fetcher)

	s.scanModules(canvas.Course{ID: "7", Name: "Biology 101"}, "mirror/Biology 101")

	data, err := afero.ReadFile(fs, "mirror/Biology 101/Week 1/slides.pdf")
	require.NoError(t, err)
	assert.Equal(t, "slide deck", string(data))

	exists, _ := afero.Exists(fs, "mirror/Biology 101/Week 1/Homework 1.pdf")
	assert.False(t, exists, "non-file module items are excluded")
}

func TestScanHomepage(t *testing.T) {
	course := canvas.Course{ID: "7", Name: "Biology 101", URL: testBaseURL + "/courses/7"}
	readingsURL := testBaseURL + "/courses/7/pages/readings"

	driver := newFakeDriver()
	driver.addPage(course.URL, page().with("a[href]",
		el("Syllabus").attr("href", "/files/30/syllabus.pdf"),
		el("Grades").attr("href", "/courses/7/grades"),
		el("Readings").attr("href", "/courses/7/pages/readings"),
	))
	driver.addPage(readingsURL, page().with("a[href]",
		el("Chapter One").attr("href", "/files/31/chapter1.pdf"),
	))

	fetcher := newFakeFetcher()
	fetcher.content[testBaseURL+"/files/30/syllabus.pdf"] = "syllabus"
	fetcher.content[testBaseURL+"/files/31/chapter1.pdf"] = "chapter one"
	s, fs := newTestScraper(t, driver, fetcher)

	s.scanHomepage(course, "mirror/Biology 101")

	data, err := afero.ReadFile(fs, "mirror/Biology 101/syllabus.pdf")
	require.NoError(t, err)
	assert.Equal(t, "syllabus", string(data))

	data, err = afero.ReadFile(fs, "mirror/Biology 101/chapter1.pdf")
	require.NoError(t, err)
	assert.Equal(t, "chapter one", string(data))
}

func TestScanHomepageRedownloadsWhenSkippingDisabled(t *testing.T) {
	course := canvas.Course{ID: "7", Name: "Biology 101", URL: testBaseURL + "/courses/7"}

	driver := newFakeDriver()
	driver.addPage(course.URL, page().with("a[href]",
		el("Syllabus").attr("href", "/files/30/syllabus.pdf"),
	))

	fetcher := newFakeFetcher()
	fetcher.content[testBaseURL+"/files/30/syllabus.pdf"] = "fresh"
	s, fs := newTestScraper(t, driver, fetcher)
	s.cfg.Download.SkipExisting = false

	require.NoError(t, afero.WriteFile(fs, "mirror/Biology 101/syllabus.pdf", []byte("stale"), 0644))

	s.scanHomepage(course, "mirror/Biology 101")

	assert.Equal(t, 1, fetcher.totalFetches(), "existing file is re-fetched with skipping off")

	data, err := afero.ReadFile(fs, "mirror/Biology 101/syllabus.pdf")
	require.NoError(t, err)
	assert.Equal(t, "fresh", string(data))
}

func TestRunMirrorsDiscoveredCourses(t *testing.T) {
	driver := newFakeDriver()
	driver.addPage(testBaseURL, page().with(canvas.SelDashboardCard,
		dashboardCard("Biology: Intro/Basics", "/courses/7"),
	))

	s, fs := newTestScraper(t, driver, newFakeFetcher())
	stats, err := s.Run()
	require.NoError(t, err)

	assert.Equal(t, 1, stats.CoursesDiscovered)
	assert.Equal(t, 1, stats.CoursesProcessed)

	exists, _ := afero.DirExists(fs, "mirror/Biology_ Intro_Basics")
	assert.True(t, exists, "course directory uses the sanitized name")
}
