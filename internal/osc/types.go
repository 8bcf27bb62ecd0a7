package osc

// Action represents the type of change in a changeset document
type Action string

const (
	ActionCreate Action = "create"
	ActionModify Action = "modify"
	ActionDelete Action = "delete"
	// ActionNone marks an element of a JOSM document with no action attribute
	ActionNone Action = ""
)

// Change is a single element read from a changeset document
type Change struct {
	Action  Action
	Type    string // "node" or "way"
	ID      int64
	Version int
	Lat     float64
	Lon     float64
	Nodes   []int64
	Tags    map[string]string
}

// Stats counts the elements of a changeset document per action
type Stats struct {
	NodesCreated  int64
	NodesModified int64
	NodesDeleted  int64
	WaysCreated   int64
	WaysModified  int64
	WaysDeleted   int64
	Unchanged     int64 // JOSM elements without an action
	Relations     int64 // skipped
}

// Total returns total number of changes
func (s *Stats) Total() int64 {
	return s.NodesCreated + s.NodesModified + s.NodesDeleted +
		s.WaysCreated + s.WaysModified + s.WaysDeleted
}

// Created returns the number of created elements
func (s *Stats) Created() int64 { return s.NodesCreated + s.WaysCreated }

// Modified returns the number of modified elements
func (s *Stats) Modified() int64 { return s.NodesModified + s.WaysModified }
