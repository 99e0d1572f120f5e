package model

// Tool is a static catalog entry describing one conversion direction.
type Tool struct {
	ID          string `json:"id"` // e.g. "png-to-jpeg"
	From        Format `json:"from"`
	To          Format `json:"to"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Gradient    string `json:"gradient"`
}
