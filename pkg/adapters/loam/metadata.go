package loam

// CellMetadata is the frontmatter of a notebook cell.
// It uses "mapstructure" tags to match the YAML keys written by hand.
type CellMetadata struct {
	ID    string `json:"id" mapstructure:"id"`
	Title string `json:"title" mapstructure:"title"`
	Order int    `json:"order" mapstructure:"order"`

	// Tags are extra message tags, e.g. {Target: other-process}.
	Tags map[string]string `json:"tags" mapstructure:"tags"`

	// Timeout bounds the eval call (e.g. "10s").
	Timeout string `json:"timeout,omitempty" mapstructure:"timeout"`

	Skip bool `json:"skip" mapstructure:"skip"`
}
