package models

// DocumentStatus summarizes a PresentationDocument for the UI.
type DocumentStatus string

const (
	DocumentOK      DocumentStatus = "ok"
	DocumentWarning DocumentStatus = "warning"
	DocumentError   DocumentStatus = "error"
)

// Section is one headed block of a plan.
type Section struct {
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// Artifact is a downloadable file.
type Artifact struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     []byte `json:"content"`
}

// PresentationDocument is the display-ready output of one plan request.
type PresentationDocument struct {
	Status     DocumentStatus `json:"status"`
	Title      string         `json:"title"`
	Body       string         `json:"body,omitempty"`
	Sections   []Section      `json:"sections,omitempty"`
	Message    string         `json:"message,omitempty"`
	Diagnostic string         `json:"diagnostic,omitempty"`
	Download   *Artifact      `json:"download,omitempty"`
	Calendar   *Artifact      `json:"calendar,omitempty"`
	Weather    *Weather       `json:"weather,omitempty"`
	Images     []string       `json:"images,omitempty"`
	Notices    []string       `json:"notices,omitempty"`
}
