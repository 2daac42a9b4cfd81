package conversation

// Role identifies who produced a turn
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Segment is one piece of turn content. It is implemented by TextSegment
// and ImageSegment only.
type Segment interface {
	segment()
}

// TextSegment is plain text content
type TextSegment struct {
	Text string
}

// ImageSegment references an image persisted on disk
type ImageSegment struct {
	Path     string
	MIMEType string
}

func (TextSegment) segment()  {}
func (ImageSegment) segment() {}

// Turn is one role-tagged contribution to the conversation
type Turn struct {
	Role     Role
	Segments []Segment
}

// Text returns the concatenation of the turn's text segments
func (t Turn) Text() string {
	var out string
	for _, s := range t.Segments {
		if ts, ok := s.(TextSegment); ok {
			out += ts.Text
		}
	}
	return out
}

// Images returns the turn's image segments in order
func (t Turn) Images() []ImageSegment {
	var out []ImageSegment
	for _, s := range t.Segments {
		if is, ok := s.(ImageSegment); ok {
			out = append(out, is)
		}
	}
	return out
}
