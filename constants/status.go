package constants

// ProcessingStatus is the canonical lifecycle status for rows in documents.
type ProcessingStatus string

// Stable values (store these exact strings in DB).
const (
	StatusUploaded      ProcessingStatus = "uploaded"       // document stored, pipeline not yet run
	StatusProcessing    ProcessingStatus = "processing"     // pipeline running
	StatusPendingReview ProcessingStatus = "pending_review" // normalized record ready for human review
	StatusDone          ProcessingStatus = "done"           // payload dispatched
	StatusError         ProcessingStatus = "error"          // terminal failure for this run
)

// ReprocessableFrom lists the statuses a new pipeline run may start from.
// processing is deliberately absent: one writer per document.
var ReprocessableFrom = []ProcessingStatus{StatusUploaded, StatusError, StatusPendingReview}
