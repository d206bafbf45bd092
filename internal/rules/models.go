package rules

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// Security selects the transport protection used when dialing an account.
type Security string

const (
	SecurityNone     Security = "none"
	SecurityStartTLS Security = "starttls"
	SecuritySSL      Security = "ssl"
)

// ActionKind is the post-consume action applied to messages that produced
// at least one document.
type ActionKind string

const (
	ActionDelete   ActionKind = "delete"
	ActionMove     ActionKind = "move"
	ActionFlag     ActionKind = "flag"
	ActionMarkRead ActionKind = "markread"
	ActionTag      ActionKind = "tag"
)

// TitleSource selects where a staged document's title comes from.
type TitleSource string

const (
	TitleFromSubject  TitleSource = "subject"
	TitleFromFilename TitleSource = "filename"
)

// CorrespondentSource selects how a correspondent is assigned.
type CorrespondentSource string

const (
	CorrespondentFromNothing CorrespondentSource = "nothing"
	CorrespondentFromEmail   CorrespondentSource = "email"
	CorrespondentFromName    CorrespondentSource = "name"
	CorrespondentFromCustom  CorrespondentSource = "custom"
)

// AttachmentType selects which MIME parts of a message are considered.
type AttachmentType string

const (
	AttachmentsOnly AttachmentType = "attachments_only"
	Everything      AttachmentType = "everything"
)

// Account holds the connection settings for one IMAP mailbox.
type Account struct {
	ID           int64
	Name         string
	Server       string
	Port         int
	Security     Security
	Username     string
	Password     string
	CharacterSet string
	Enabled      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Address returns the host:port dial target for the account.
func (a Account) Address() string {
	return net.JoinHostPort(a.Server, strconv.Itoa(a.Port))
}

func (a Account) String() string {
	return a.Name
}

// Rule describes one filing rule. Rules run per account in ascending
// SortOrder; later rules see whatever the earlier rules' actions left behind.
type Rule struct {
	ID        int64
	AccountID int64
	Name      string
	SortOrder int

	Folder                   string
	FilterFrom               string
	FilterSubject            string
	FilterBody               string
	FilterAttachmentFilename string
	MaximumAge               int

	AttachmentType  AttachmentType
	Action          ActionKind
	ActionParameter string

	AssignTitleFrom         TitleSource
	AssignCorrespondentFrom CorrespondentSource
	AssignCorrespondent     string
	AssignTags              []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r Rule) String() string {
	return r.Name
}

// Correspondent is a named sender documents are filed under.
type Correspondent struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// ParseSecurity validates a security mode string.
func ParseSecurity(value string) (Security, error) {
	switch Security(strings.ToLower(strings.TrimSpace(value))) {
	case SecurityNone:
		return SecurityNone, nil
	case SecurityStartTLS:
		return SecurityStartTLS, nil
	case SecuritySSL:
		return SecuritySSL, nil
	default:
		return "", fmt.Errorf("unknown security mode %q (expected none, starttls, or ssl)", value)
	}
}

// ParseAction validates an action string.
func ParseAction(value string) (ActionKind, error) {
	switch ActionKind(strings.ToLower(strings.TrimSpace(value))) {
	case ActionDelete:
		return ActionDelete, nil
	case ActionMove:
		return ActionMove, nil
	case ActionFlag:
		return ActionFlag, nil
	case ActionMarkRead:
		return ActionMarkRead, nil
	case ActionTag:
		return ActionTag, nil
	default:
		return "", fmt.Errorf("unknown action %q (expected delete, move, flag, markread, or tag)", value)
	}
}

// ParseTitleSource validates a title source string.
func ParseTitleSource(value string) (TitleSource, error) {
	switch TitleSource(strings.ToLower(strings.TrimSpace(value))) {
	case TitleFromSubject:
		return TitleFromSubject, nil
	case TitleFromFilename:
		return TitleFromFilename, nil
	default:
		return "", fmt.Errorf("unknown title source %q (expected subject or filename)", value)
	}
}

// ParseCorrespondentSource validates a correspondent source string.
func ParseCorrespondentSource(value string) (CorrespondentSource, error) {
	switch CorrespondentSource(strings.ToLower(strings.TrimSpace(value))) {
	case CorrespondentFromNothing:
		return CorrespondentFromNothing, nil
	case CorrespondentFromEmail:
		return CorrespondentFromEmail, nil
	case CorrespondentFromName:
		return CorrespondentFromName, nil
	case CorrespondentFromCustom:
		return CorrespondentFromCustom, nil
	default:
		return "", fmt.Errorf("unknown correspondent source %q (expected nothing, email, name, or custom)", value)
	}
}

// ParseAttachmentType validates an attachment type string.
func ParseAttachmentType(value string) (AttachmentType, error) {
	switch AttachmentType(strings.ToLower(strings.TrimSpace(value))) {
	case AttachmentsOnly:
		return AttachmentsOnly, nil
	case Everything:
		return Everything, nil
	default:
		return "", fmt.Errorf("unknown attachment type %q (expected attachments_only or everything)", value)
	}
}

// Validate checks an account for storable values.
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("account name must be set")
	}
	if strings.TrimSpace(a.Server) == "" {
		return fmt.Errorf("account %s: server must be set", a.Name)
	}
	if a.Port <= 0 || a.Port > 65535 {
		return fmt.Errorf("account %s: port %d out of range", a.Name, a.Port)
	}
	if _, err := ParseSecurity(string(a.Security)); err != nil {
		return fmt.Errorf("account %s: %w", a.Name, err)
	}
	if strings.TrimSpace(a.Username) == "" {
		return fmt.Errorf("account %s: username must be set", a.Name)
	}
	return nil
}

// Validate checks a rule for storable values.
func (r *Rule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("rule name must be set")
	}
	if r.AccountID == 0 {
		return fmt.Errorf("rule %s: account must be set", r.Name)
	}
	if _, err := ParseAction(string(r.Action)); err != nil {
		return fmt.Errorf("rule %s: %w", r.Name, err)
	}
	if (r.Action == ActionMove || r.Action == ActionTag) && strings.TrimSpace(r.ActionParameter) == "" {
		return fmt.Errorf("rule %s: action %s requires a parameter", r.Name, r.Action)
	}
	if _, err := ParseTitleSource(string(r.AssignTitleFrom)); err != nil {
		return fmt.Errorf("rule %s: %w", r.Name, err)
	}
	if _, err := ParseCorrespondentSource(string(r.AssignCorrespondentFrom)); err != nil {
		return fmt.Errorf("rule %s: %w", r.Name, err)
	}
	if r.AssignCorrespondentFrom == CorrespondentFromCustom && strings.TrimSpace(r.AssignCorrespondent) == "" {
		return fmt.Errorf("rule %s: custom correspondent requires a name", r.Name)
	}
	if _, err := ParseAttachmentType(string(r.AttachmentType)); err != nil {
		return fmt.Errorf("rule %s: %w", r.Name, err)
	}
	if r.MaximumAge < 0 {
		return fmt.Errorf("rule %s: maximum_age must not be negative", r.Name)
	}
	return nil
}

// NewRule returns a rule populated with the defaults the original system
// applies: INBOX folder, attachments only, mark-read action, title from
// subject, no correspondent.
func NewRule(accountID int64, name string) Rule {
	return Rule{
		AccountID:               accountID,
		Name:                    name,
		Folder:                  "INBOX",
		AttachmentType:          AttachmentsOnly,
		Action:                  ActionMarkRead,
		AssignTitleFrom:         TitleFromSubject,
		AssignCorrespondentFrom: CorrespondentFromNothing,
	}
}
