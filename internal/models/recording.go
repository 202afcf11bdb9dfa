// Package models defines the domain types for voxsync.
package models

// Creation kinds produced by the Voicenotes service. Each recording carries
// zero or more creations, at most one per kind.
const (
	CreationSummary = "summary"
	CreationPoints  = "points"
	CreationTidy    = "tidy"
	CreationTodo    = "todo"
	CreationTweet   = "tweet"
	CreationBlog    = "blog"
	CreationEmail   = "email"
	CreationCustom  = "custom"
)

// CreationKinds lists every recognised creation kind in render order.
var CreationKinds = []string{
	CreationSummary,
	CreationPoints,
	CreationTidy,
	CreationTodo,
	CreationTweet,
	CreationBlog,
	CreationEmail,
	CreationCustom,
}

// Attachment wire types. Unrecognised values are skipped during rendering.
const (
	AttachmentLink  = 1
	AttachmentImage = 2
)

// Recording is one voice note as reported by the remote service.
//
// RecordingID is the durable sync key. ID is not guaranteed stable across
// pagination pages and must never be used for idempotent matching.
type Recording struct {
	ID           string        `json:"id"`
	RecordingID  string        `json:"recording_id"`
	Title        string        `json:"title"`
	Duration     int64         `json:"duration"` // milliseconds
	Transcript   string        `json:"transcript"`
	Tags         []Tag         `json:"tags,omitempty"`
	Creations    []Creation    `json:"creations,omitempty"`
	Attachments  []Attachment  `json:"attachments,omitempty"`
	Subnotes     []Recording   `json:"subnotes,omitempty"`
	RelatedNotes []RelatedNote `json:"related_notes,omitempty"`
	CreatedAt    string        `json:"created_at"`
	UpdatedAt    string        `json:"updated_at"`
}

// Tag is a remote tag name. Names may contain whitespace.
type Tag struct {
	Name string `json:"name"`
}

// Creation is a derived-content artifact of a recording: either freeform
// markdown or an ordered list of line items, depending on the kind.
type Creation struct {
	ID              string          `json:"id"`
	Type            string          `json:"type"`
	Content         CreationContent `json:"content"`
	MarkdownContent string          `json:"markdown_content"`
}

// CreationContent holds the line items of list-shaped creations (points, todo).
type CreationContent struct {
	Data []string `json:"data"`
}

// Attachment is a typed secondary asset attached to a recording.
type Attachment struct {
	ID          string `json:"id"`
	Type        int    `json:"type"`
	Description string `json:"description"`
	URL         string `json:"url"`
	CreatedAt   string `json:"created_at"`
}

// RelatedNote is a cross-link reference carrying only what is needed to
// compute the other note's filename.
type RelatedNote struct {
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
}

// RecordingPage is one page of the paginated recordings listing.
type RecordingPage struct {
	Data  []Recording `json:"data"`
	Links PageLinks   `json:"links"`
}

// PageLinks carries the opaque continuation reference. An empty Next means
// the listing is exhausted.
type PageLinks struct {
	Next string `json:"next,omitempty"`
}

// SignedURL is a short-lived authorized download link for a recording's audio.
type SignedURL struct {
	URL string `json:"url"`
}

// User is the remote account profile, used only as a credential probe.
type User struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	PhotoURL *string `json:"photo_url"`
}

// SyncRef is the durable bookkeeping pair reconstructed from a synced
// document's frontmatter. The documents themselves are the ledger; there is
// no separate sync-state file for these.
type SyncRef struct {
	RecordingID string `json:"recording_id"`
	UpdatedAt   string `json:"updated_at"`
}
