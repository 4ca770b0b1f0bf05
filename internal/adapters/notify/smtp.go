package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net"
	"net/mail"
	"net/textproto"
	"time"

	"github.com/emersion/go-smtp"
	"github.com/google/uuid"
	"github.com/mikey/decoy-alerts/internal/core"
	"go.uber.org/zap"
)

// SMTPSender relays alerts through an SMTP server
type SMTPSender struct {
	address string
	helo    string
	from    mail.Address
	logger  *zap.Logger
}

// NewSMTPSender creates an SMTP sender for the relay at address (host:port)
func NewSMTPSender(address, helo, senderAddress, senderName string, logger *zap.Logger) *SMTPSender {
	if helo == "" {
		helo = "localhost"
	}
	return &SMTPSender{
		address: address,
		helo:    helo,
		from:    mail.Address{Name: senderName, Address: senderAddress},
		logger:  logger,
	}
}

// SendAlert builds the MIME message and relays it
func (s *SMTPSender) SendAlert(ctx context.Context, alert *core.Alert) error {
	to, err := mail.ParseAddress(alert.Recipient)
	if err != nil {
		return fmt.Errorf("invalid recipient %q: %w", alert.Recipient, err)
	}

	message, err := BuildMIMEMessage(s.from, *to, alert, time.Now())
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}

	return s.relay(ctx, to.Address, message)
}

func (s *SMTPSender) relay(ctx context.Context, recipient string, message []byte) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP relay: %w", err)
	}

	// Abort a stalled conversation when the context ends
	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			conn.Close()
			return fmt.Errorf("failed to set connection deadline: %w", err)
		}
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	c := smtp.NewClient(conn)
	defer c.Close()

	if err := c.Hello(s.helo); err != nil {
		return fmt.Errorf("EHLO failed: %w", err)
	}

	// The envelope sender is always the service address
	if err := c.Mail(s.from.Address, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := c.Rcpt(recipient, nil); err != nil {
		return fmt.Errorf("RCPT TO failed: %w", err)
	}

	wc, err := c.Data()
	if err != nil {
		return fmt.Errorf("DATA command failed: %w", err)
	}
	if _, err := wc.Write(message); err != nil {
		wc.Close()
		return fmt.Errorf("failed to send message data: %w", err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to close data writer: %w", err)
	}

	if err := c.Quit(); err != nil {
		// The message has already been accepted
		s.logger.Warn("QUIT command failed", zap.Error(err))
	}
	return nil
}

// BuildMIMEMessage renders an alert as an RFC 5322 message. Only the
// service-controlled From/To and the Q-encoded subject become headers.
func BuildMIMEMessage(from, to mail.Address, alert *core.Alert, now time.Time) ([]byte, error) {
	var buf bytes.Buffer

	header := textproto.MIMEHeader{}
	header.Set("From", from.String())
	header.Set("To", to.String())
	header.Set("Subject", mime.QEncoding.Encode("utf-8", alert.Subject))
	header.Set("Date", now.UTC().Format(time.RFC1123Z))
	header.Set("Message-ID", fmt.Sprintf("<%s@%s>", uuid.NewString(), domainOf(from.Address)))
	header.Set("MIME-Version", "1.0")

	if alert.Attachment == nil {
		header.Set("Content-Type", "text/plain; charset=utf-8")
		header.Set("Content-Transfer-Encoding", "quoted-printable")
		writeHeader(&buf, header)
		if err := writeQuotedPrintable(&buf, alert.Body); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	mw := multipart.NewWriter(&buf)
	header.Set("Content-Type", fmt.Sprintf("multipart/mixed; boundary=%q", mw.Boundary()))
	writeHeader(&buf, header)

	textPart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {"text/plain; charset=utf-8"},
		"Content-Transfer-Encoding": {"quoted-printable"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeQuotedPrintable(textPart, alert.Body); err != nil {
		return nil, err
	}

	attachment := alert.Attachment
	filePart, err := mw.CreatePart(textproto.MIMEHeader{
		"Content-Type":              {mime.FormatMediaType(attachment.ContentType, map[string]string{"name": attachment.Filename})},
		"Content-Disposition":       {mime.FormatMediaType("attachment", map[string]string{"filename": attachment.Filename})},
		"Content-Transfer-Encoding": {"base64"},
	})
	if err != nil {
		return nil, err
	}
	if err := writeBase64Lines(filePart, attachment.Data); err != nil {
		return nil, err
	}

	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, header textproto.MIMEHeader) {
	for _, key := range []string{"From", "To", "Subject", "Date", "Message-ID", "MIME-Version", "Content-Type", "Content-Transfer-Encoding"} {
		if v := header.Get(key); v != "" {
			fmt.Fprintf(buf, "%s: %s\r\n", key, v)
		}
	}
	buf.WriteString("\r\n")
}

func writeQuotedPrintable(w interface{ Write([]byte) (int, error) }, text string) error {
	qp := quotedprintable.NewWriter(w)
	if _, err := qp.Write([]byte(text)); err != nil {
		return err
	}
	return qp.Close()
}

// writeBase64Lines writes data base64 encoded in 76 character lines
func writeBase64Lines(w interface{ Write([]byte) (int, error) }, data []byte) error {
	encoded := base64.StdEncoding.EncodeToString(data)
	for len(encoded) > 76 {
		if _, err := fmt.Fprintf(w, "%s\r\n", encoded[:76]); err != nil {
			return err
		}
		encoded = encoded[76:]
	}
	_, err := fmt.Fprintf(w, "%s\r\n", encoded)
	return err
}

func domainOf(address string) string {
	for i := len(address) - 1; i >= 0; i-- {
		if address[i] == '@' {
			return address[i+1:]
		}
	}
	return "localhost"
}
