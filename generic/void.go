package generic

// Void is a zero-size placeholder value, e.g. for map-based sets or results that carry only an error.
type Void struct{}

func NewVoid() Void {
	return Void{}
}
