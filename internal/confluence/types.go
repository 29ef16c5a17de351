package confluence

// Page is the subset of a remote page the sync engine works with. Version
// is the remote revision number used for optimistic concurrency.
type Page struct {
	ID           string
	Title        string
	SpaceKey     string
	ParentPageID string
	Version      int
	StorageBody  string
	Labels       []string
}

type CreatePageRequest struct {
	Title        string
	SpaceKey     string
	ParentPageID string
	StorageBody  string
	Labels       []string
}

// UpdatePageRequest carries BaseVersion, the revision the local edit was
// based on. The server rejects the write with a conflict when the page has
// moved past it.
type UpdatePageRequest struct {
	PageID      string
	Title       string
	SpaceKey    string
	BaseVersion int
	StorageBody string
	Labels      []string
}
