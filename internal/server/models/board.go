package models

// Profile is the top of a user's board hierarchy.
type Profile struct {
	ID         int64
	UserID     string
	Name       string
	Categories []*Category
}

// Category belongs to a profile and groups image words. ImageKey is the
// blob store key of its icon, or "" when it has none.
type Category struct {
	ID        int64
	ProfileID int64
	Name      string
	ImageKey  string
	Items     []*ImageWord
}

// ImageWord is a single pictured word inside a category.
type ImageWord struct {
	ID         int64
	CategoryID int64
	Word       string
	ImageKey   string
}
