package canvas

// Course is a top-level content container in the portal. Courses are
// identified by the numeric id embedded in their navigational URL and are
// immutable for the lifetime of a run.
type Course struct {
	ID   string
	Name string
	URL  string
}

// ContentItem is a single entry of a rendered directory listing. Items are
// transient: a fresh set is produced every time a listing is rendered.
type ContentItem struct {
	Kind        ItemKind
	DisplayName string
	RemoteURL   string
}

// ItemKind distinguishes folder rows from file rows in a listing.
type ItemKind int

const (
	ItemFile ItemKind = iota
	ItemFolder
)

func (k ItemKind) String() string {
	if k == ItemFolder {
		return "folder"
	}
	return "file"
}
