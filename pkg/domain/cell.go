package domain

import "time"

// Cell is one evaluable unit of a notebook. Cells run in Order, ties broken
// by ID.
type Cell struct {
	ID    string `json:"id"`
	Title string `json:"title,omitempty"`
	Order int    `json:"order"`
	// Tags are sent with the eval message in addition to Action=Eval.
	Tags Tags   `json:"tags,omitempty"`
	Code string `json:"code"`
	// Timeout bounds the eval call. Zero means the caller's deadline.
	Timeout time.Duration `json:"timeout,omitempty"`
	Skip    bool          `json:"skip,omitempty"`
}

// Request builds the eval write for this cell.
func (c Cell) Request(process ProcessRef) WriteRequest {
	req := EvalRequest(process, c.Code)
	req.Tags = append(req.Tags, c.Tags...)
	return req
}
