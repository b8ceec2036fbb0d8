package mailstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/emersion/go-message/mail"

	"github.com/structmail/structmail/internal/config"
)

// IMAPStore reads messages on demand from a remote mailbox. Connections
// are short-lived: dial, select, fetch, close.
type IMAPStore struct {
	logger *slog.Logger
	cfg    config.IMAPConfig
}

func NewIMAPStore(log *slog.Logger, cfg config.IMAPConfig) *IMAPStore {
	return &IMAPStore{
		logger: log.With(slog.String("service", "mailstore")),
		cfg:    cfg,
	}
}

func (s *IMAPStore) dial(folder string) (*imapclient.Client, error) {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	opts := &imapclient.Options{TLSConfig: &tls.Config{ServerName: s.cfg.Host}}

	var client *imapclient.Client
	var err error
	switch s.cfg.Security {
	case "starttls":
		client, err = imapclient.DialStartTLS(addr, opts)
	case "none":
		client, err = imapclient.DialInsecure(addr, opts)
	default:
		client, err = imapclient.DialTLS(addr, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("dial imap (%s): %w", s.cfg.Security, err)
	}
	if err := client.Login(s.cfg.Username, s.cfg.Password).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("imap login: %w", err)
	}
	if folder == "" {
		folder = "INBOX"
	}
	if _, err := client.Select(folder, nil).Wait(); err != nil {
		client.Close()
		return nil, fmt.Errorf("select %s: %w", folder, err)
	}
	return client, nil
}

func (s *IMAPStore) fetchMessage(folder, uid string) (*imapclient.FetchMessageBuffer, error) {
	n, err := strconv.ParseUint(uid, 10, 32)
	if err != nil {
		return nil, fmt.Errorf("invalid message uid %q", uid)
	}

	client, err := s.dial(folder)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	uidSet := imap.UIDSet{}
	uidSet.AddNum(imap.UID(n))

	fetchOpts := &imap.FetchOptions{
		Envelope:    true,
		UID:         true,
		BodySection: []*imap.FetchItemBodySection{{}},
	}
	fetchCmd := client.Fetch(uidSet, fetchOpts)
	defer fetchCmd.Close()

	msgData := fetchCmd.Next()
	if msgData == nil {
		return nil, fmt.Errorf("message not found: UID %s", uid)
	}
	buf, err := msgData.Collect()
	if err != nil || buf.Envelope == nil {
		return nil, fmt.Errorf("failed to fetch message UID %s", uid)
	}
	return buf, nil
}

func (s *IMAPStore) Envelope(_ context.Context, folder, uid string) (Envelope, error) {
	buf, err := s.fetchMessage(folder, uid)
	if err != nil {
		return Envelope{}, err
	}
	return envelopeOf(buf), nil
}

func (s *IMAPStore) RawBody(_ context.Context, folder, uid string) ([]byte, error) {
	buf, err := s.fetchMessage(folder, uid)
	if err != nil {
		return nil, err
	}
	if len(buf.BodySection) == 0 {
		return nil, fmt.Errorf("message UID %s has no body", uid)
	}
	return buf.BodySection[0].Bytes, nil
}

// HTMLPart parses the raw message and returns its first text/html part,
// or "" when the message has none.
func (s *IMAPStore) HTMLPart(ctx context.Context, folder, uid string) (string, error) {
	raw, err := s.RawBody(ctx, folder, uid)
	if err != nil {
		return "", err
	}
	return htmlPartOf(raw)
}

func (s *IMAPStore) List(_ context.Context, folder string, page, pageSize int) ([]Envelope, error) {
	client, err := s.dial(folder)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	statusData, err := client.Status(folder, &imap.StatusOptions{NumMessages: true}).Wait()
	if err != nil {
		return nil, fmt.Errorf("imap status: %w", err)
	}
	var total int
	if statusData.NumMessages != nil {
		total = int(*statusData.NumMessages)
	}
	if total == 0 {
		return nil, nil
	}

	end := total - (page-1)*pageSize
	start := end - pageSize + 1
	if start < 1 {
		start = 1
	}
	if end < 1 {
		return nil, nil
	}

	seqSet := imap.SeqSet{}
	seqSet.AddRange(uint32(start), uint32(end))

	fetchCmd := client.Fetch(seqSet, &imap.FetchOptions{Envelope: true, UID: true})
	defer fetchCmd.Close()

	var results []Envelope
	for {
		msgData := fetchCmd.Next()
		if msgData == nil {
			break
		}
		buf, err := msgData.Collect()
		if err != nil || buf.Envelope == nil {
			continue
		}
		results = append(results, envelopeOf(buf))
	}

	// Newest first.
	for i, j := 0, len(results)-1; i < j; i, j = i+1, j-1 {
		results[i], results[j] = results[j], results[i]
	}
	return results, nil
}

func envelopeOf(buf *imapclient.FetchMessageBuffer) Envelope {
	env := buf.Envelope
	from := ""
	if len(env.From) > 0 {
		from = env.From[0].Addr()
	}
	return Envelope{
		UID:      strconv.FormatUint(uint64(buf.UID), 10),
		From:     from,
		Subject:  env.Subject,
		Received: env.Date,
	}
}

// htmlPartOf walks the MIME structure for the first text/html part.
func htmlPartOf(raw []byte) (string, error) {
	reader, err := mail.CreateReader(strings.NewReader(string(raw)))
	if err != nil {
		// Not MIME at all; treat the whole body as the HTML part.
		return string(raw), nil
	}
	defer reader.Close()

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read mime part: %w", err)
		}
		header, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := header.ContentType()
		if contentType == "text/html" {
			body, err := io.ReadAll(part.Body)
			if err != nil {
				return "", fmt.Errorf("read html part: %w", err)
			}
			return string(body), nil
		}
	}
	return "", nil
}
