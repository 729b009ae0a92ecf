package types

// Relationship is a parent/child table pair observed during a walk. The child
// table's Column holds the parent's row identifier.
type Relationship struct {
	ChildTable  string
	ParentTable string
	Column      string
}
