package rules

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"mailroom/internal/config"
)

// Store persists accounts, rules, and correspondents in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the rules database and applies migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "mailroom.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the rules database file.
func (s *Store) Path() string {
	return s.path
}

// AddAccount inserts a new account and returns it with its identifier set.
func (s *Store) AddAccount(ctx context.Context, account *Account) (*Account, error) {
	if account == nil {
		return nil, errors.New("account is nil")
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO accounts (
            name, server, port, security, username, password,
            character_set, enabled, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		account.Name,
		account.Server,
		account.Port,
		account.Security,
		account.Username,
		account.Password,
		nullableString(account.CharacterSet),
		boolToInt(account.Enabled),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert account: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.AccountByID(ctx, id)
}

// UpdateAccount persists changes to an existing account.
func (s *Store) UpdateAccount(ctx context.Context, account *Account) error {
	if account == nil {
		return errors.New("account is nil")
	}
	if err := account.Validate(); err != nil {
		return err
	}
	account.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE accounts
         SET name = ?, server = ?, port = ?, security = ?, username = ?,
             password = ?, character_set = ?, enabled = ?, updated_at = ?
         WHERE id = ?`,
		account.Name,
		account.Server,
		account.Port,
		account.Security,
		account.Username,
		account.Password,
		nullableString(account.CharacterSet),
		boolToInt(account.Enabled),
		account.UpdatedAt.Format(time.RFC3339Nano),
		account.ID,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	return nil
}

// AccountByID fetches an account by identifier.
func (s *Store) AccountByID(ctx context.Context, id int64) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return account, nil
}

// AccountByName fetches an account by its unique name.
func (s *Store) AccountByName(ctx context.Context, name string) (*Account, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE name = ?`, name)
	account, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account by name: %w", err)
	}
	return account, nil
}

// ListAccounts returns all accounts ordered by name. When enabledOnly is set,
// disabled accounts are omitted.
func (s *Store) ListAccounts(ctx context.Context, enabledOnly bool) ([]*Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if enabledOnly {
		query += ` WHERE enabled = 1`
	}
	query += ` ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, account)
	}
	return accounts, rows.Err()
}

// RemoveAccount deletes an account and, via cascade, its rules.
func (s *Store) RemoveAccount(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete account: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// AddRule inserts a new rule and returns it with its identifier set.
func (s *Store) AddRule(ctx context.Context, rule *Rule) (*Rule, error) {
	if rule == nil {
		return nil, errors.New("rule is nil")
	}
	if err := rule.Validate(); err != nil {
		return nil, err
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO rules (
            account_id, name, sort_order, folder, filter_from, filter_subject,
            filter_body, filter_attachment_filename, maximum_age, attachment_type,
            action, action_parameter, assign_title_from, assign_correspondent_from,
            assign_correspondent, assign_tags, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.AccountID,
		rule.Name,
		rule.SortOrder,
		rule.Folder,
		nullableString(rule.FilterFrom),
		nullableString(rule.FilterSubject),
		nullableString(rule.FilterBody),
		nullableString(rule.FilterAttachmentFilename),
		rule.MaximumAge,
		rule.AttachmentType,
		rule.Action,
		nullableString(rule.ActionParameter),
		rule.AssignTitleFrom,
		rule.AssignCorrespondentFrom,
		nullableString(rule.AssignCorrespondent),
		nullableString(encodeTags(rule.AssignTags)),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert rule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.RuleByID(ctx, id)
}

// UpdateRule persists changes to an existing rule.
func (s *Store) UpdateRule(ctx context.Context, rule *Rule) error {
	if rule == nil {
		return errors.New("rule is nil")
	}
	if err := rule.Validate(); err != nil {
		return err
	}
	rule.UpdatedAt = time.Now().UTC()
	_, err := s.db.ExecContext(
		ctx,
		`UPDATE rules
         SET account_id = ?, name = ?, sort_order = ?, folder = ?, filter_from = ?,
             filter_subject = ?, filter_body = ?, filter_attachment_filename = ?,
             maximum_age = ?, attachment_type = ?, action = ?, action_parameter = ?,
             assign_title_from = ?, assign_correspondent_from = ?,
             assign_correspondent = ?, assign_tags = ?, updated_at = ?
         WHERE id = ?`,
		rule.AccountID,
		rule.Name,
		rule.SortOrder,
		rule.Folder,
		nullableString(rule.FilterFrom),
		nullableString(rule.FilterSubject),
		nullableString(rule.FilterBody),
		nullableString(rule.FilterAttachmentFilename),
		rule.MaximumAge,
		rule.AttachmentType,
		rule.Action,
		nullableString(rule.ActionParameter),
		rule.AssignTitleFrom,
		rule.AssignCorrespondentFrom,
		nullableString(rule.AssignCorrespondent),
		nullableString(encodeTags(rule.AssignTags)),
		rule.UpdatedAt.Format(time.RFC3339Nano),
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	return nil
}

// RuleByID fetches a rule by identifier.
func (s *Store) RuleByID(ctx context.Context, id int64) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE id = ?`, id)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule: %w", err)
	}
	return rule, nil
}

// RuleByName fetches a rule by its unique name.
func (s *Store) RuleByName(ctx context.Context, name string) (*Rule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ruleColumns+` FROM rules WHERE name = ?`, name)
	rule, err := scanRule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rule by name: %w", err)
	}
	return rule, nil
}

// RulesForAccount returns the account's rules in execution order. Rules with
// equal sort order run in insertion order.
func (s *Store) RulesForAccount(ctx context.Context, accountID int64) ([]*Rule, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE account_id = ? ORDER BY sort_order, id`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("rules for account: %w", err)
	}
	defer rows.Close()

	var ruleList []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		ruleList = append(ruleList, rule)
	}
	return ruleList, rows.Err()
}

// ListRules returns every rule ordered by account and sort order.
func (s *Store) ListRules(ctx context.Context) ([]*Rule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY account_id, sort_order, id`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var ruleList []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		ruleList = append(ruleList, rule)
	}
	return ruleList, rows.Err()
}

// RemoveRule deletes a rule by identifier.
func (s *Store) RemoveRule(ctx context.Context, id int64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete rule: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// EnsureCorrespondent returns the correspondent with the given name, creating
// it when missing. Lookups are case-insensitive; the stored spelling wins.
func (s *Store) EnsureCorrespondent(ctx context.Context, name string) (*Correspondent, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return nil, errors.New("correspondent name must be set")
	}

	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, name, created_at FROM correspondents WHERE name = ? COLLATE NOCASE`,
		trimmed,
	)
	correspondent, err := scanCorrespondent(row)
	if err == nil {
		return correspondent, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get correspondent: %w", err)
	}

	timestamp := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO correspondents (name, created_at) VALUES (?, ?)`,
		trimmed,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert correspondent: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `SELECT id, name, created_at FROM correspondents WHERE id = ?`, id)
	correspondent, err = scanCorrespondent(row)
	if err != nil {
		return nil, fmt.Errorf("get correspondent: %w", err)
	}
	return correspondent, nil
}

// ListCorrespondents returns all known correspondents ordered by name.
func (s *Store) ListCorrespondents(ctx context.Context) ([]*Correspondent, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM correspondents ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list correspondents: %w", err)
	}
	defer rows.Close()

	var correspondents []*Correspondent
	for rows.Next() {
		correspondent, err := scanCorrespondent(rows)
		if err != nil {
			return nil, err
		}
		correspondents = append(correspondents, correspondent)
	}
	return correspondents, rows.Err()
}

const accountColumns = "id, name, server, port, security, username, password, character_set, enabled, created_at, updated_at"

const ruleColumns = "id, account_id, name, sort_order, folder, filter_from, filter_subject, filter_body, filter_attachment_filename, maximum_age, attachment_type, action, action_parameter, assign_title_from, assign_correspondent_from, assign_correspondent, assign_tags, created_at, updated_at"

func scanAccount(scanner interface{ Scan(dest ...any) error }) (*Account, error) {
	var (
		id         int64
		name       string
		server     string
		port       int
		security   string
		username   string
		password   string
		charset    sql.NullString
		enabled    sql.NullInt64
		createdRaw sql.NullString
		updatedRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&name,
		&server,
		&port,
		&security,
		&username,
		&password,
		&charset,
		&enabled,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	account := &Account{
		ID:           id,
		Name:         name,
		Server:       server,
		Port:         port,
		Security:     Security(security),
		Username:     username,
		Password:     password,
		CharacterSet: charset.String,
	}
	if enabled.Valid {
		account.Enabled = enabled.Int64 != 0
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		account.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		account.UpdatedAt = updated
	}
	return account, nil
}

func scanRule(scanner interface{ Scan(dest ...any) error }) (*Rule, error) {
	var (
		id                 int64
		accountID          int64
		name               string
		sortOrder          int
		folder             string
		filterFrom         sql.NullString
		filterSubject      sql.NullString
		filterBody         sql.NullString
		filterAttachment   sql.NullString
		maximumAge         int
		attachmentType     string
		action             string
		actionParameter    sql.NullString
		titleFrom          string
		correspondentFrom  string
		correspondentValue sql.NullString
		tags               sql.NullString
		createdRaw         sql.NullString
		updatedRaw         sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&accountID,
		&name,
		&sortOrder,
		&folder,
		&filterFrom,
		&filterSubject,
		&filterBody,
		&filterAttachment,
		&maximumAge,
		&attachmentType,
		&action,
		&actionParameter,
		&titleFrom,
		&correspondentFrom,
		&correspondentValue,
		&tags,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	rule := &Rule{
		ID:                       id,
		AccountID:                accountID,
		Name:                     name,
		SortOrder:                sortOrder,
		Folder:                   folder,
		FilterFrom:               filterFrom.String,
		FilterSubject:            filterSubject.String,
		FilterBody:               filterBody.String,
		FilterAttachmentFilename: filterAttachment.String,
		MaximumAge:               maximumAge,
		AttachmentType:           AttachmentType(attachmentType),
		Action:                   ActionKind(action),
		ActionParameter:          actionParameter.String,
		AssignTitleFrom:          TitleSource(titleFrom),
		AssignCorrespondentFrom:  CorrespondentSource(correspondentFrom),
		AssignCorrespondent:      correspondentValue.String,
		AssignTags:               decodeTags(tags.String),
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		rule.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		rule.UpdatedAt = updated
	}
	return rule, nil
}

func scanCorrespondent(scanner interface{ Scan(dest ...any) error }) (*Correspondent, error) {
	var (
		id         int64
		name       string
		createdRaw sql.NullString
	)
	if err := scanner.Scan(&id, &name, &createdRaw); err != nil {
		return nil, err
	}
	correspondent := &Correspondent{ID: id, Name: name}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		correspondent.CreatedAt = created
	}
	return correspondent, nil
}

func encodeTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, ",")
}

func decodeTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	tags := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}
	return tags
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
