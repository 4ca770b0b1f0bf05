package core

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/mikey/decoy-alerts/internal/utils"
)

const (
	// DefaultBodyPreviewLimit is the number of body characters included in an alert
	DefaultBodyPreviewLimit = 5000

	// NoBodyPlaceholder stands in for the preview when the message had no text
	NoBodyPlaceholder = "[No message body available]"

	// AttachmentContentType is the MIME type of the forwarded original message
	AttachmentContentType = "message/rfc822"
)

var nonAlphanumeric = regexp.MustCompile(`[^A-Za-z0-9]`)

// AlertInput carries the facts gathered for one matched hit
type AlertInput struct {
	Recipient    string
	DecoyAddress string
	UseCase      string
	Sender       string
	IP           string
	Geo          string
	Subject      string
	Body         string
	RawMessage   []byte
}

// AlertComposer renders alerts from gathered hit data
type AlertComposer struct {
	text         *utils.TextProcessor
	previewLimit int
	now          func() time.Time
}

// NewAlertComposer creates a new alert composer. A non-positive previewLimit
// falls back to DefaultBodyPreviewLimit.
func NewAlertComposer(text *utils.TextProcessor, previewLimit int) *AlertComposer {
	if previewLimit <= 0 {
		previewLimit = DefaultBodyPreviewLimit
	}
	return &AlertComposer{
		text:         text,
		previewLimit: previewLimit,
		now:          time.Now,
	}
}

// AttachmentFilename derives the deterministic attachment name for a decoy
func AttachmentFilename(decoyAddress string) string {
	return "decoy_" + nonAlphanumeric.ReplaceAllString(decoyAddress, "_") + ".eml"
}

// Compose builds the alert. Sender, subject and body are attacker controlled
// and only ever end up inside the plain-text body.
func (c *AlertComposer) Compose(in AlertInput) *Alert {
	decoy := c.text.SingleLine(in.DecoyAddress)
	sender := c.text.SingleLine(in.Sender)
	subject := c.text.SingleLine(in.Subject)
	ip := c.text.SingleLine(in.IP)
	geo := c.text.SingleLine(in.Geo)
	if geo == "" {
		geo = UnknownLocation
	}

	preview := strings.TrimSpace(c.text.ProcessText(in.Body, c.previewLimit))
	if preview == "" {
		preview = NoBodyPlaceholder
	}

	composedAt := c.now().UTC()

	alert := &Alert{
		Recipient:       in.Recipient,
		DecoyAddress:    decoy,
		Sender:          sender,
		IP:              ip,
		Geo:             geo,
		UseCase:         c.text.SingleLine(in.UseCase),
		OriginalSubject: subject,
		BodyPreview:     preview,
		Subject:         fmt.Sprintf("Your decoy %s was triggered", decoy),
		ComposedAt:      composedAt,
	}

	if len(in.RawMessage) > 0 {
		alert.Attachment = &Attachment{
			Filename:    AttachmentFilename(in.DecoyAddress),
			ContentType: AttachmentContentType,
			Data:        in.RawMessage,
		}
	}
	alert.Body = renderBody(alert)

	return alert
}

func renderBody(a *Alert) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Heads up, your decoy email %s received a message.\n\n", a.DecoyAddress)
	fmt.Fprintf(&b, "From: %s\n", a.Sender)
	fmt.Fprintf(&b, "IP Address: %s\n", a.IP)
	fmt.Fprintf(&b, "Location: %s\n", a.Geo)
	fmt.Fprintf(&b, "Subject: %s\n", a.OriginalSubject)
	if a.UseCase != "" {
		fmt.Fprintf(&b, "Use case: %s\n", a.UseCase)
	}
	fmt.Fprintf(&b, "Time: %s\n\n", a.ComposedAt.Format(time.RFC3339))
	b.WriteString("Message preview:\n")
	b.WriteString(a.BodyPreview)
	b.WriteString("\n\n")
	if a.Attachment == nil {
		b.WriteString("This may indicate a document leak or unauthorized access.\n")
	} else {
		b.WriteString("The original message is attached.\nThis may indicate a document leak or unauthorized access.\n")
	}
	return b.String()
}
