package types

// JobState is the lifecycle state of a Bulk API 2.0 ingest job.
type JobState string

const (
	JobStateOpen           JobState = "Open"
	JobStateUploadComplete JobState = "UploadComplete"
	JobStateInProgress     JobState = "InProgress"
	JobStateJobComplete    JobState = "JobComplete"
	JobStateFailed         JobState = "Failed"
	JobStateAborted        JobState = "Aborted"
)

// Terminal reports whether no further state change will happen.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateJobComplete, JobStateFailed, JobStateAborted:
		return true
	}
	return false
}

// Operation is the DML operation an ingest job performs.
type Operation string

const (
	OperationInsert     Operation = "insert"
	OperationUpdate     Operation = "update"
	OperationUpsert     Operation = "upsert"
	OperationDelete     Operation = "delete"
	OperationHardDelete Operation = "hardDelete"
)

// IngestJobRequest is the body used to create an ingest job.
type IngestJobRequest struct {
	Object              string    `json:"object" validate:"required"`
	Operation           Operation `json:"operation" validate:"required,oneof=insert update upsert delete hardDelete"`
	ExternalIDFieldName string    `json:"externalIdFieldName,omitempty" validate:"required_if=Operation upsert"`
	ContentType         string    `json:"contentType,omitempty"`
	ColumnDelimiter     string    `json:"columnDelimiter,omitempty" validate:"omitempty,oneof=BACKQUOTE CARET COMMA PIPE SEMICOLON TAB"`
	LineEnding          string    `json:"lineEnding,omitempty" validate:"omitempty,oneof=LF CRLF"`
	AssignmentRuleID    string    `json:"assignmentRuleId,omitempty"`
}

// IngestJobInfo is the state of an ingest job as reported by Salesforce.
type IngestJobInfo struct {
	ID                     string    `json:"id"`
	Object                 string    `json:"object"`
	Operation              Operation `json:"operation"`
	State                  JobState  `json:"state"`
	ExternalIDFieldName    string    `json:"externalIdFieldName,omitempty"`
	CreatedByID            string    `json:"createdById"`
	CreatedDate            string    `json:"createdDate"`
	SystemModstamp         string    `json:"systemModstamp"`
	ConcurrencyMode        string    `json:"concurrencyMode"`
	ContentType            string    `json:"contentType"`
	APIVersion             float64   `json:"apiVersion"`
	JobType                string    `json:"jobType"`
	LineEnding             string    `json:"lineEnding"`
	ColumnDelimiter        string    `json:"columnDelimiter"`
	ContentURL             string    `json:"contentUrl,omitempty"`
	NumberRecordsProcessed int       `json:"numberRecordsProcessed"`
	NumberRecordsFailed    int       `json:"numberRecordsFailed"`
	Retries                int       `json:"retries"`
	TotalProcessingTime    int       `json:"totalProcessingTime"`
	ErrorMessage           string    `json:"errorMessage,omitempty"`
}

// IngestJobList is one page of the ingest job listing.
type IngestJobList struct {
	Done           bool            `json:"done"`
	NextRecordsURL string          `json:"nextRecordsUrl,omitempty"`
	Records        []IngestJobInfo `json:"records"`
}
