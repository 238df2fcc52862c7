// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mail implements the automated guard-code provider: it polls an
// IMAP mailbox for the "new device" mail and extracts the code from its
// body. It is one interchangeable implementation of the auth package's
// CodeProvider contract; the manual prompt is another.
package mail

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/sirupsen/logrus"
)

// Polling defaults, tuned to how quickly the guard mail usually lands.
const (
	DefaultMailbox      = "INBOX"
	DefaultSender       = "noreply@steampowered.com"
	DefaultSubject      = "Access from new device"
	DefaultMaxTries     = 10
	DefaultPollInterval = 6 * time.Second
)

// codePattern matches the guard code inside the mail body: a short
// alphanumeric token wrapped in an h2 element.
var codePattern = regexp.MustCompile(`<h2>([0-9A-Z]+)</h2>`)

var (
	// ErrCodeTimeout indicates the poll budget ran out with no matching
	// message ever arriving.
	ErrCodeTimeout = errors.New("timed out waiting for guard code email")

	// ErrNoCodeInMessage indicates a matching message arrived but its
	// body carried no recognizable code. Malformed mail, not "no mail
	// yet" - retrying will refetch the same broken message.
	ErrNoCodeInMessage = errors.New("no guard code found in message body")
)

// RetrievalError wraps failures talking to the mail store: dial, login,
// search, fetch. Distinct from ErrCodeTimeout so callers can tell a
// broken mailbox from a slow one.
type RetrievalError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("mail %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RetrievalError) Unwrap() error { return e.Err }

// mailbox is the slice of the IMAP client the provider needs. Narrow on
// purpose so tests can substitute a fake store.
type mailbox interface {
	Login(username, password string) error
	Select(name string, readOnly bool) (*imap.MailboxStatus, error)
	UidSearch(criteria *imap.SearchCriteria) ([]uint32, error)
	UidFetch(seqset *imap.SeqSet, items []imap.FetchItem, ch chan *imap.Message) error
	Logout() error
}

// Config describes the mailbox to poll and the poll budget.
type Config struct {
	// Server is the IMAP host:port, always dialed over TLS.
	Server   string
	Username string
	Password string

	// Mailbox is the folder the guard mail is filed into.
	Mailbox string

	// Sender and Subject filter the UNSEEN search.
	Sender  string
	Subject string

	// MaxTries bounds the number of polls; PollInterval is the wait
	// between them.
	MaxTries     int
	PollInterval time.Duration
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Mailbox == "" {
		c.Mailbox = DefaultMailbox
	}
	if c.Sender == "" {
		c.Sender = DefaultSender
	}
	if c.Subject == "" {
		c.Subject = DefaultSubject
	}
	if c.MaxTries <= 0 {
		c.MaxTries = DefaultMaxTries
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	return c
}

// Provider polls an IMAP mailbox for guard codes. It satisfies the auth
// package's CodeProvider contract.
type Provider struct {
	cfg  Config
	dial func(server string) (mailbox, error)
}

// NewProvider creates an inbox-polling provider.
func NewProvider(cfg Config) *Provider {
	return &Provider{
		cfg: cfg.withDefaults(),
		dial: func(server string) (mailbox, error) {
			return client.DialTLS(server, nil)
		},
	}
}

// Code connects to the mail store and polls for an unread guard mail.
// One connection spans the whole poll; it is released on every exit
// path, including cancellation. Each invocation runs a fresh poll, so a
// re-asked challenge picks up the newest code.
func (p *Provider) Code(ctx context.Context) (string, error) {
	conn, err := p.dial(p.cfg.Server)
	if err != nil {
		return "", &RetrievalError{Op: "dial", Err: err}
	}
	defer conn.Logout()

	if err := conn.Login(p.cfg.Username, p.cfg.Password); err != nil {
		return "", &RetrievalError{Op: "login", Err: err}
	}

	uid, err := p.pollForMessage(ctx, conn)
	if err != nil {
		return "", err
	}
	return p.extractCode(conn, uid)
}

// pollForMessage searches the mailbox until an unread matching message
// shows up or the budget runs out. When several match, the last one in
// the (ascending-UID) result is the newest and wins.
func (p *Provider) pollForMessage(ctx context.Context, conn mailbox) (uint32, error) {
	criteria := imap.NewSearchCriteria()
	criteria.WithoutFlags = []string{imap.SeenFlag}
	criteria.Header.Add("From", p.cfg.Sender)
	criteria.Header.Add("Subject", p.cfg.Subject)

	for tries := 1; tries <= p.cfg.MaxTries; tries++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		// Re-select every round; a stale selection serves stale
		// search results on some servers.
		if _, err := conn.Select(p.cfg.Mailbox, true); err != nil {
			return 0, &RetrievalError{Op: "select", Err: err}
		}

		uids, err := conn.UidSearch(criteria)
		if err != nil {
			return 0, &RetrievalError{Op: "search", Err: err}
		}
		if len(uids) > 0 {
			uid := uids[len(uids)-1]
			logrus.WithFields(logrus.Fields{
				"uid":   uid,
				"tries": tries,
			}).Debug("guard mail found")
			return uid, nil
		}

		logrus.WithField("tries", tries).Debug("no guard mail yet")

		if tries == p.cfg.MaxTries {
			break
		}
		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-time.After(p.cfg.PollInterval):
		}
	}

	return 0, fmt.Errorf("%w after %d polls", ErrCodeTimeout, p.cfg.MaxTries)
}

// extractCode fetches the full message and pulls the code out of its
// body.
func (p *Provider) extractCode(conn mailbox, uid uint32) (string, error) {
	seqset := new(imap.SeqSet)
	seqset.AddNum(uid)

	section := &imap.BodySectionName{}
	messages := make(chan *imap.Message, 1)
	if err := conn.UidFetch(seqset, []imap.FetchItem{section.FetchItem()}, messages); err != nil {
		return "", &RetrievalError{Op: "fetch", Err: err}
	}

	msg := <-messages
	if msg == nil {
		return "", &RetrievalError{Op: "fetch", Err: fmt.Errorf("no message returned for uid %d", uid)}
	}

	literal := msg.GetBody(section)
	if literal == nil {
		return "", ErrNoCodeInMessage
	}
	body, err := io.ReadAll(literal)
	if err != nil {
		return "", &RetrievalError{Op: "read body", Err: err}
	}

	m := codePattern.FindSubmatch(body)
	if m == nil {
		return "", ErrNoCodeInMessage
	}
	return string(m[1]), nil
}
