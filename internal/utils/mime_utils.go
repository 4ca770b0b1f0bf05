package utils

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"strings"
)

// maxMIMEDepth bounds recursion into nested multipart bodies
const maxMIMEDepth = 5

// ExtractPlainText returns the text/plain content of a raw RFC 5322 message.
// For multipart messages the text/plain parts are concatenated; an empty
// string is returned when the message has none.
func ExtractPlainText(raw []byte) (string, error) {
	msg, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return "", err
	}
	return extractPart(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body, 0)
}

func extractPart(contentType, encoding string, body io.Reader, depth int) (string, error) {
	// A missing Content-Type means text/plain
	mediaType := "text/plain"
	params := map[string]string{}
	if contentType != "" {
		var err error
		mediaType, params, err = mime.ParseMediaType(contentType)
		if err != nil {
			// Unparseable Content-Type, treat the body as plain text
			mediaType = "text/plain"
		}
	}

	switch {
	case mediaType == "text/plain":
		data, err := io.ReadAll(decodeTransfer(encoding, body))
		if err != nil {
			return "", err
		}
		return string(data), nil
	case strings.HasPrefix(mediaType, "multipart/"):
		boundary, ok := params["boundary"]
		if !ok || depth >= maxMIMEDepth {
			return "", nil
		}
		return extractMultipart(multipart.NewReader(body, boundary), depth)
	default:
		// Skip other parts (html, attachments, etc.)
		return "", nil
	}
}

func extractMultipart(mr *multipart.Reader, depth int) (string, error) {
	var textContent strings.Builder
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Return what we have so far
			if textContent.Len() > 0 {
				return textContent.String(), nil
			}
			return "", err
		}

		// multipart.Reader already decodes quoted-printable parts
		encoding := part.Header.Get("Content-Transfer-Encoding")
		if strings.EqualFold(encoding, "quoted-printable") {
			encoding = ""
		}
		text, err := extractPart(part.Header.Get("Content-Type"), encoding, part, depth+1)
		if err != nil {
			continue // Skip this part if we can't read it
		}
		if text != "" {
			textContent.WriteString(text)
			textContent.WriteString("\n")
		}
	}
	return textContent.String(), nil
}

func decodeTransfer(encoding string, body io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, body)
	case "quoted-printable":
		return quotedprintable.NewReader(body)
	default:
		return body
	}
}
