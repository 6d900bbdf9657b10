package domain

import "time"

// Status represents the lifecycle state of a job.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusFetching    Status = "fetching"
	StatusDownloading Status = "downloading"
	StatusConverting  Status = "converting"
	StatusDone        Status = "done"
	StatusError       Status = "error"
	StatusDeleted     Status = "deleted"
)

// Terminal returns true if no pipeline transition leaves this status.
// done and error may still transition to deleted via explicit deletion.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError || s == StatusDeleted
}

// Payload is the original download request. Immutable once the job exists.
type Payload struct {
	URL     string `json:"url"`
	Quality string `json:"quality"`
	Format  string `json:"format"`
}

// Metadata holds probed media information.
type Metadata struct {
	Title           string  `json:"title"`
	Duration        float64 `json:"duration"`
	Thumbnail       string  `json:"thumbnail,omitempty"`
	EstimatedSizeMB float64 `json:"estimated_size_mb,omitempty"`
}

// Result describes the finished artifact. Present if and only if the job
// status is done.
type Result struct {
	FilePath string    `json:"file_path"`
	Filename string    `json:"filename"`
	Mimetype string    `json:"mimetype"`
	Meta     *Metadata `json:"meta,omitempty"`
}

// Job is a media-retrieval request and its tracked lifecycle record.
type Job struct {
	ID        string    `json:"job_id"`
	Status    Status    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Error     string    `json:"error,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Result    *Result   `json:"result"`
	Meta      *Metadata `json:"meta,omitempty"`
	Payload   Payload   `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJob builds the initial record for a freshly enqueued payload.
func NewJob(id string, payload Payload) *Job {
	now := time.Now()
	return &Job{
		ID:        id,
		Status:    StatusQueued,
		Progress:  0,
		Message:   "Queued",
		Payload:   payload,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a deep copy. Stores hand out clones so that callers can
// never mutate stored state through a returned record.
func (j *Job) Clone() *Job {
	c := *j
	if j.Meta != nil {
		meta := *j.Meta
		c.Meta = &meta
	}
	if j.Result != nil {
		res := *j.Result
		if j.Result.Meta != nil {
			meta := *j.Result.Meta
			res.Meta = &meta
		}
		c.Result = &res
	}
	return &c
}

// Update is a partial record. Nil fields are left untouched by Apply, so
// interleaved writers merge rather than overwrite each other.
type Update struct {
	Status      *Status
	Progress    *int
	Message     *string
	Error       *string
	Reason      *string
	Meta        *Metadata
	Result      *Result
	ClearResult bool
}

// Apply merges u into the job, field by field. The result is cleared
// whenever the status moves to error or deleted.
func (j *Job) Apply(u Update) {
	if u.Status != nil {
		j.Status = *u.Status
	}
	if u.Progress != nil {
		j.Progress = *u.Progress
	}
	if u.Message != nil {
		j.Message = *u.Message
	}
	if u.Error != nil {
		j.Error = *u.Error
	}
	if u.Reason != nil {
		j.Reason = *u.Reason
	}
	if u.Meta != nil {
		j.Meta = u.Meta
	}
	if u.Result != nil {
		j.Result = u.Result
	}
	if u.ClearResult {
		j.Result = nil
	}
	if j.Status == StatusError || j.Status == StatusDeleted {
		j.Result = nil
	}
}

// StateUpdate builds an update that moves the job to a new status with a
// message and progress value.
func StateUpdate(status Status, message string, progress int) Update {
	return Update{Status: &status, Message: &message, Progress: &progress}
}

// ProgressUpdate builds an update that only advances progress.
func ProgressUpdate(progress int) Update {
	return Update{Progress: &progress}
}

// MetaUpdate builds an update carrying probed metadata.
func MetaUpdate(meta *Metadata) Update {
	return Update{Meta: meta}
}

// ErrorUpdate builds a terminal error update. Apply clears any result.
func ErrorUpdate(message, code string) Update {
	status := StatusError
	return Update{Status: &status, Message: &message, Error: &code}
}

// DoneUpdate builds the terminal success update.
func DoneUpdate(message string, result *Result) Update {
	status := StatusDone
	progress := 100
	return Update{Status: &status, Message: &message, Progress: &progress, Result: result}
}

// DeletedUpdate builds the update applied after artifact removal.
func DeletedUpdate(message string) Update {
	status := StatusDeleted
	return Update{Status: &status, Message: &message, ClearResult: true}
}
