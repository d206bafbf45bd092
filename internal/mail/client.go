package mail

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"sort"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-sasl"

	"mailroom/internal/logging"
	"mailroom/internal/rules"
	"mailroom/internal/textutil"
)

// Client is a live IMAP connection to one account.
type Client struct {
	account rules.Account
	conn    *imapclient.Client
	logger  *slog.Logger
}

// Dial connects to the account with its configured security mode and
// authenticates. When plain LOGIN is rejected and the server advertises
// AUTH=PLAIN, authentication is retried via SASL before giving up.
func Dial(account rules.Account, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logger.With(logging.FieldAccount, account.Name)

	options := &imapclient.Options{
		WordDecoder: &mime.WordDecoder{CharsetReader: textutil.CharsetReader},
	}

	var (
		conn *imapclient.Client
		err  error
	)
	switch account.Security {
	case rules.SecuritySSL:
		conn, err = imapclient.DialTLS(account.Address(), options)
	case rules.SecurityStartTLS:
		conn, err = imapclient.DialStartTLS(account.Address(), options)
	case rules.SecurityNone:
		conn, err = imapclient.DialInsecure(account.Address(), options)
	default:
		return nil, fmt.Errorf("account %s: unknown security mode %q", account.Name, account.Security)
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", account.Address(), err)
	}

	client := &Client{account: account, conn: conn, logger: logger}
	if err := client.authenticate(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return client, nil
}

func (c *Client) authenticate() error {
	loginErr := c.conn.Login(c.account.Username, c.account.Password).Wait()
	if loginErr == nil {
		return nil
	}

	caps, err := c.conn.Capability().Wait()
	if err != nil {
		return fmt.Errorf("login %s: %w", c.account.Username, loginErr)
	}
	if !caps.Has(imap.Cap("AUTH=PLAIN")) {
		return fmt.Errorf("login %s: %w", c.account.Username, loginErr)
	}

	c.logger.Debug("login rejected, retrying with AUTH=PLAIN")
	if err := c.conn.Authenticate(sasl.NewPlainClient("", c.account.Username, c.account.Password)); err != nil {
		return fmt.Errorf("authenticate %s: %w", c.account.Username, err)
	}
	return nil
}

// SelectFolder selects an IMAP folder. On failure the error lists the
// folders the server actually offers, since misspelled folder names are the
// most common rule misconfiguration.
func (c *Client) SelectFolder(ctx context.Context, folder string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := c.conn.Select(folder, nil).Wait(); err != nil {
		folders, listErr := c.ListFolders(ctx)
		if listErr != nil {
			return fmt.Errorf("select folder %q: %w", folder, err)
		}
		return fmt.Errorf("select folder %q: %w (server offers: %s)", folder, err, strings.Join(folders, ", "))
	}
	return nil
}

// ListFolders returns the account's folder names sorted alphabetically.
func (c *Client) ListFolders(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mailboxes, err := c.conn.List("", "*", nil).Collect()
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	folders := make([]string, 0, len(mailboxes))
	for _, mbox := range mailboxes {
		folders = append(folders, mbox.Mailbox)
	}
	sort.Strings(folders)
	return folders, nil
}

// Search runs a UID search against the selected folder.
func (c *Client) Search(ctx context.Context, criteria *imap.SearchCriteria) ([]imap.UID, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := c.conn.UIDSearch(criteria, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	return data.AllUIDs(), nil
}

// fetchBodySection requests the full body with PEEK. A plain BODY[] fetch
// sets \Seen server-side, which would break UNSEEN searches for messages
// whose processing failed before the mark-read action ran.
func fetchBodySection() *imap.FetchItemBodySection {
	return &imap.FetchItemBodySection{Peek: true}
}

// Fetch downloads the given messages in full and parses their MIME
// structure into attachments.
func (c *Client) Fetch(ctx context.Context, uids []imap.UID) ([]*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := fetchBodySection()
	fetchOptions := &imap.FetchOptions{
		UID:         true,
		Envelope:    true,
		BodySection: []*imap.FetchItemBodySection{bodySection},
	}
	buffers, err := c.conn.Fetch(imap.UIDSetNum(uids...), fetchOptions).Collect()
	if err != nil {
		return nil, fmt.Errorf("fetch messages: %w", err)
	}

	messages := make([]*Message, 0, len(buffers))
	for _, buf := range buffers {
		msg := &Message{UID: buf.UID}
		if buf.Envelope != nil {
			msg.Subject = buf.Envelope.Subject
			msg.Date = buf.Envelope.Date
			if len(buf.Envelope.From) > 0 {
				msg.From = buf.Envelope.From[0].Addr()
				msg.FromName = buf.Envelope.From[0].Name
			}
		}

		raw := buf.FindBodySection(bodySection)
		if len(raw) == 0 {
			c.logger.Warn("message has no body section", logging.FieldMessageUID, uint32(buf.UID))
			messages = append(messages, msg)
			continue
		}
		attachments, err := ParseAttachments(raw)
		if err != nil {
			c.logger.Warn("cannot parse message body", logging.FieldMessageUID, uint32(buf.UID), logging.Error(err))
			messages = append(messages, msg)
			continue
		}
		msg.Attachments = attachments
		messages = append(messages, msg)
	}
	return messages, nil
}

// AddFlags stores flags on the given messages without fetching responses.
func (c *Client) AddFlags(ctx context.Context, uids []imap.UID, flags ...imap.Flag) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(uids) == 0 || len(flags) == 0 {
		return nil
	}
	store := &imap.StoreFlags{Op: imap.StoreFlagsAdd, Flags: flags, Silent: true}
	if err := c.conn.Store(imap.UIDSetNum(uids...), store, nil).Close(); err != nil {
		return fmt.Errorf("store flags: %w", err)
	}
	return nil
}

// Move relocates messages into another folder.
func (c *Client) Move(ctx context.Context, uids []imap.UID, folder string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(uids) == 0 {
		return nil
	}
	if _, err := c.conn.Move(imap.UIDSetNum(uids...), folder).Wait(); err != nil {
		return fmt.Errorf("move to %q: %w", folder, err)
	}
	return nil
}

// Delete flags messages deleted and expunges them.
func (c *Client) Delete(ctx context.Context, uids []imap.UID) error {
	if len(uids) == 0 {
		return nil
	}
	if err := c.AddFlags(ctx, uids, imap.FlagDeleted); err != nil {
		return err
	}
	if _, err := c.conn.Expunge().Collect(); err != nil {
		return fmt.Errorf("expunge: %w", err)
	}
	return nil
}

// Close logs out and tears down the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	if err := c.conn.Logout().Wait(); err != nil {
		return c.conn.Close()
	}
	return nil
}
