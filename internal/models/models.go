package models

// Reserved Raindrop collection IDs.
const (
	UnsortedCollectionID int64 = -1
	TrashCollectionID    int64 = -99
)

type Ref struct {
	ID int64 `json:"$id"`
}

type Collection struct {
	ID     int64  `json:"_id"`
	Title  string `json:"title"`
	Parent *Ref   `json:"parent,omitempty"`
}

// ParentID reports the parent collection, treating a zero ID as no parent.
func (c Collection) ParentID() (int64, bool) {
	if c.Parent == nil || c.Parent.ID == 0 {
		return 0, false
	}
	return c.Parent.ID, true
}

func (c Collection) DisplayTitle() string {
	if c.Title == "" {
		return "Unknown"
	}
	return c.Title
}

type Bookmark struct {
	ID           int64  `json:"_id"`
	Title        string `json:"title"`
	Link         string `json:"link"`
	Excerpt      string `json:"excerpt"`
	CollectionID *int64 `json:"collectionId,omitempty"`
	Collection   *Ref   `json:"collection,omitempty"`
}

// SourceCollection prefers collectionId and falls back to collection.$id.
// ok is false when the bookmark carries neither.
func (b Bookmark) SourceCollection() (id int64, ok bool) {
	if b.CollectionID != nil {
		return *b.CollectionID, true
	}
	if b.Collection != nil {
		return b.Collection.ID, true
	}
	return 0, false
}

// Run status values.
const (
	RunStatusSuccess = "success"
	RunStatusFailed  = "failed"
)

type SyncRun struct {
	ID           string `bson:"_id"`
	StartedAt    int64  `bson:"started_at"`
	FinishedAt   int64  `bson:"finished_at"`
	Status       string `bson:"status"`
	Collections  int    `bson:"collections"`
	Bookmarks    int    `bson:"bookmarks"`
	Pages        int    `bson:"pages"`
	Tagged       int    `bson:"tagged"`
	Untagged     int    `bson:"untagged"`
	Skipped      int    `bson:"skipped"`
	Enriched     int    `bson:"enriched"`
	TaggedPath   string `bson:"tagged_path"`
	UntaggedPath string `bson:"untagged_path"`
	ErrorKind    string `bson:"error_kind,omitempty"`
	ErrorMessage string `bson:"error_message,omitempty"`
}
