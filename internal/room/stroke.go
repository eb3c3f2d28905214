package room

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// A committed drawing operation. Freehand strokes carry Points; shape tools
// carry StartPoint/EndPoint and a Tool discriminator.
type Stroke struct {
	ID         string  `json:"strokeId"`
	AuthorID   string  `json:"userId"`
	AuthorName string  `json:"userName"`
	Color      string  `json:"color"`
	Width      float64 `json:"width"`
	Tool       string  `json:"tool,omitempty"`
	Points     []Point `json:"points"`
	StartPoint *Point  `json:"startPoint,omitempty"`
	EndPoint   *Point  `json:"endPoint,omitempty"`
	Timestamp  int64   `json:"timestamp"`
}

// Returns true for shape strokes (line, rect, circle, triangle...).
func (s Stroke) IsShape() bool {
	return s.Tool != "" && s.Tool != "pen" && s.Tool != "eraser"
}

// A shape needs both corners, either as start/end or as its first two
// points. Freehand strokes need at least one point.
func (s Stroke) HasGeometry() bool {
	if s.IsShape() {
		return (s.StartPoint != nil && s.EndPoint != nil) || len(s.Points) >= 2
	}
	return len(s.Points) > 0
}
