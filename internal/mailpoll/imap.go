package mailpoll

import (
	"context"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strings"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"

	"github.com/spec-kit/ticket-intake/internal/domain"
)

// IMAPSource fetches unseen messages from one IMAP account over TLS. Each
// poll opens a fresh session; mail servers routinely drop idle connections
// between polls.
type IMAPSource struct {
	addr     string
	username string
	password string
	folder   string
}

// NewIMAPSource configures a source for one account. addr is host:port.
func NewIMAPSource(addr, username, password string) *IMAPSource {
	return &IMAPSource{
		addr:     addr,
		username: username,
		password: password,
		folder:   "INBOX",
	}
}

func (s *IMAPSource) ListSince(ctx context.Context, watermark uint32) ([]InboundMessage, error) {
	c, err := client.DialTLS(s.addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", s.addr, err)
	}
	defer c.Logout()

	if err := c.Login(s.username, s.password); err != nil {
		return nil, fmt.Errorf("login %s: %w", s.username, err)
	}
	if _, err := c.Select(s.folder, true); err != nil {
		return nil, fmt.Errorf("select %s: %w", s.folder, err)
	}

	criteria := imap.NewSearchCriteria()
	criteria.Uid = new(imap.SeqSet)
	criteria.Uid.AddRange(watermark+1, 0)
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("uid search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)
	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{imap.FetchEnvelope, imap.FetchUid, section.FetchItem()}

	fetched := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, fetched)
	}()

	var result []InboundMessage
	for msg := range fetched {
		inbound, err := decodeMessage(msg, section)
		if err != nil {
			// Carry the message through with whatever decoded; the worker
			// decides whether it is usable.
			inbound = InboundMessage{UID: msg.Uid}
		}
		result = append(result, inbound)
	}

	select {
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("uid fetch: %w", err)
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return result, nil
}

func decodeMessage(msg *imap.Message, section *imap.BodySectionName) (InboundMessage, error) {
	inbound := InboundMessage{UID: msg.Uid}
	if env := msg.Envelope; env != nil {
		inbound.Subject = env.Subject
		inbound.MessageID = env.MessageId
		inbound.Received = env.Date
		if len(env.From) > 0 {
			from := env.From[0]
			inbound.FromEmail = from.MailboxName + "@" + from.HostName
			inbound.FromName = from.PersonalName
		}
	}

	literal := msg.GetBody(section)
	if literal == nil {
		return inbound, fmt.Errorf("message %d has no body section", msg.Uid)
	}
	parsed, err := mail.ReadMessage(literal)
	if err != nil {
		return inbound, fmt.Errorf("parse message %d: %w", msg.Uid, err)
	}

	body, attachments, err := extractBody(parsed.Header.Get("Content-Type"), parsed.Body)
	if err != nil {
		return inbound, err
	}
	inbound.Body = body
	inbound.Attachments = attachments
	return inbound, nil
}

// extractBody walks a (possibly multipart) payload, returning the first
// text/plain part and opaque references for attachment parts. Attachment
// content is never stored here.
func extractBody(contentType string, r io.Reader) (string, []domain.AttachmentRef, error) {
	if contentType == "" {
		contentType = "text/plain"
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = "text/plain"
	}

	if !strings.HasPrefix(mediaType, "multipart/") {
		raw, err := io.ReadAll(io.LimitReader(r, 1<<20))
		if err != nil {
			return "", nil, err
		}
		return string(raw), nil, nil
	}

	boundary := params["boundary"]
	if boundary == "" {
		return "", nil, fmt.Errorf("multipart message without boundary")
	}

	var (
		body        string
		attachments []domain.AttachmentRef
	)
	mr := multipart.NewReader(r, boundary)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return body, attachments, err
		}

		disposition := part.Header.Get("Content-Disposition")
		partType, _, _ := mime.ParseMediaType(part.Header.Get("Content-Type"))

		if strings.Contains(disposition, "attachment") || part.FileName() != "" {
			attachments = append(attachments, domain.AttachmentRef{
				FileName: part.FileName(),
				MimeType: partType,
			})
			continue
		}
		if body == "" && (partType == "text/plain" || partType == "") {
			raw, err := io.ReadAll(io.LimitReader(part, 1<<20))
			if err != nil {
				return body, attachments, err
			}
			body = string(raw)
		}
		// Nested multipart/alternative: recurse for the plain part.
		if body == "" && strings.HasPrefix(partType, "multipart/") {
			nested, nestedAtt, err := extractBody(part.Header.Get("Content-Type"), part)
			if err == nil {
				body = nested
				attachments = append(attachments, nestedAtt...)
			}
		}
	}
	return body, attachments, nil
}
