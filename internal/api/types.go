package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID               int64         `json:"id"`
	Title            string        `json:"title"`
	OriginalFilename string        `json:"originalFilename"`
	Status           string        `json:"status"`
	Progress         QueueProgress `json:"progress"`
	ErrorMessage     string        `json:"errorMessage"`
	AccountName      string        `json:"accountName,omitempty"`
	RuleName         string        `json:"ruleName,omitempty"`
	Correspondent    string        `json:"correspondent,omitempty"`
	Tags             []string      `json:"tags,omitempty"`
	MimeType         string        `json:"mimeType,omitempty"`
	MessageUID       string        `json:"messageUid,omitempty"`
	MessageSubject   string        `json:"messageSubject,omitempty"`
	MessageFrom      string        `json:"messageFrom,omitempty"`
	StagedPath       string        `json:"stagedPath,omitempty"`
	FinalPath        string        `json:"finalPath,omitempty"`
	NeedsReview      bool          `json:"needsReview"`
	ReviewReason     string        `json:"reviewReason,omitempty"`
	CreatedAt        string        `json:"createdAt,omitempty"`
	UpdatedAt        string        `json:"updatedAt,omitempty"`
}

// QueueProgress captures stage progress information for a queue entry.
type QueueProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// WorkflowStatus summarizes workflow execution state.
type WorkflowStatus struct {
	Running     bool           `json:"running"`
	QueueStats  map[string]int `json:"queueStats"`
	LastError   string         `json:"lastError,omitempty"`
	LastItem    *QueueItem     `json:"lastItem,omitempty"`
	StageHealth []StageHealth  `json:"stageHealth"`
}

// StageHealth mirrors readiness reporting for workflow stages.
type StageHealth struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Detail string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool           `json:"running"`
	PID          int            `json:"pid"`
	QueueDBPath  string         `json:"queueDbPath"`
	LockFilePath string         `json:"lockFilePath"`
	ConsumeDir   string         `json:"consumeDir,omitempty"`
	ArchiveDir   string         `json:"archiveDir,omitempty"`
	Workflow     WorkflowStatus `json:"workflow"`
	Accounts     []Account      `json:"accounts,omitempty"`
}

// Account describes a configured IMAP account without credentials.
type Account struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Server    string `json:"server"`
	Port      int    `json:"port"`
	Security  string `json:"security"`
	Username  string `json:"username"`
	Enabled   bool   `json:"enabled"`
	CreatedAt string `json:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty"`
}

// Rule describes a filing rule in a transport-friendly format.
type Rule struct {
	ID                       int64    `json:"id"`
	AccountID                int64    `json:"accountId"`
	Name                     string   `json:"name"`
	SortOrder                int      `json:"sortOrder"`
	Folder                   string   `json:"folder"`
	FilterFrom               string   `json:"filterFrom,omitempty"`
	FilterSubject            string   `json:"filterSubject,omitempty"`
	FilterBody               string   `json:"filterBody,omitempty"`
	FilterAttachmentFilename string   `json:"filterAttachmentFilename,omitempty"`
	MaximumAge               int      `json:"maximumAge"`
	AttachmentType           string   `json:"attachmentType"`
	Action                   string   `json:"action"`
	ActionParameter          string   `json:"actionParameter,omitempty"`
	AssignTitleFrom          string   `json:"assignTitleFrom"`
	AssignCorrespondentFrom  string   `json:"assignCorrespondentFrom"`
	AssignCorrespondent      string   `json:"assignCorrespondent,omitempty"`
	AssignTags               []string `json:"assignTags,omitempty"`
}

// QueueStatsResponse provides a normalized queue stats payload.
type QueueStatsResponse struct {
	Counts map[string]int `json:"counts"`
}

// QueueListResponse wraps a collection of queue items for API responses.
type QueueListResponse struct {
	Items []QueueItem `json:"items"`
}

// QueueItemResponse wraps a single queue item.
type QueueItemResponse struct {
	Item QueueItem `json:"item"`
}

// AccountListResponse wraps configured accounts for API responses.
type AccountListResponse struct {
	Accounts []Account `json:"accounts"`
}
