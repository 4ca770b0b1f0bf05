package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestTruncateText(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "short", tp.TruncateText("short", 10))
	assert.Equal(t, "exact", tp.TruncateText("exact", 5))
	assert.Equal(t, "unlimited", tp.TruncateText("unlimited", 0))
	assert.Equal(t, "abc"+TruncationMarker, tp.TruncateText("abcdef", 3))

	// multi-byte characters count as one and are never split
	out := tp.TruncateText("héllo wörld", 4)
	assert.Equal(t, "héll"+TruncationMarker, out)
}

func TestStripControl(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	assert.Equal(t, "line one\nline two\tend", tp.StripControl("line one\r\nline two\tend\x00\x1b"))
}

func TestSingleLine(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	out := tp.SingleLine("Invoice\r\nBcc: victim@example.test")
	assert.NotContains(t, out, "\n")
	assert.NotContains(t, out, "\r")
	assert.Equal(t, "Invoice  Bcc: victim@example.test", out)
}

func TestSanitizeUTF8(t *testing.T) {
	tp := NewTextProcessor(zap.NewNop())

	out := tp.SanitizeUTF8("ok\xffok")
	assert.True(t, strings.HasPrefix(out, "ok"))
	assert.True(t, strings.HasSuffix(out, "ok"))
	assert.Contains(t, out, "�")
}

func TestExtractPlainText(t *testing.T) {
	t.Run("single part", func(t *testing.T) {
		raw := "From: a@example.test\r\nSubject: hi\r\n\r\nplain body\r\n"
		text, err := ExtractPlainText([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "plain body\r\n", text)
	})

	t.Run("multipart skips html and attachments", func(t *testing.T) {
		raw := strings.Join([]string{
			"From: a@example.test",
			"Content-Type: multipart/mixed; boundary=XYZ",
			"",
			"--XYZ",
			"Content-Type: text/plain; charset=utf-8",
			"",
			"the text part",
			"--XYZ",
			"Content-Type: text/html",
			"",
			"<p>html</p>",
			"--XYZ",
			"Content-Type: application/pdf",
			"Content-Transfer-Encoding: base64",
			"",
			"JVBERi0=",
			"--XYZ--",
			"",
		}, "\r\n")
		text, err := ExtractPlainText([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "the text part\n", text)
	})

	t.Run("base64 text part", func(t *testing.T) {
		raw := strings.Join([]string{
			"Content-Type: multipart/alternative; boundary=B",
			"",
			"--B",
			"Content-Type: text/plain",
			"Content-Transfer-Encoding: base64",
			"",
			"c2VjcmV0IGNv",
			"bnRyYWN0",
			"--B--",
			"",
		}, "\r\n")
		text, err := ExtractPlainText([]byte(raw))
		require.NoError(t, err)
		assert.Equal(t, "secret contract\n", text)
	})

	t.Run("not a message", func(t *testing.T) {
		_, err := ExtractPlainText([]byte("garbage without headers"))
		assert.Error(t, err)
	})
}
