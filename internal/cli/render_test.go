package cli

import (
	"strings"
	"testing"
	"time"

	"github.com/pandoo/chatsync/internal/model"
)

func testMessage(typ model.MessageType, body string) *model.Message {
	return &model.Message{
		ConversationID: "c-1",
		MsgID:          "m-1",
		SenderID:       "alice",
		CreatedAt:      time.Date(2025, 6, 1, 9, 30, 0, 0, time.Local),
		Type:           typ,
		Body:           body,
	}
}

func TestFormatMessageText(t *testing.T) {
	line := formatMessage(testMessage(model.MessageTypeText, "hello there"))
	if !strings.HasSuffix(line, "alice: hello there") {
		t.Errorf("unexpected line: %q", line)
	}
	if !strings.HasPrefix(line, "09:30:00") {
		t.Errorf("missing timestamp: %q", line)
	}
}

func TestFormatMessageFile(t *testing.T) {
	body := `{"fileName":"report.pdf","fileSize":2097152,"fileType":"application/pdf","mediaKey":"k"}`
	line := formatMessage(testMessage(model.MessageTypeFile, body))
	if !strings.Contains(line, "[file report.pdf 2.0MB]") {
		t.Errorf("unexpected line: %q", line)
	}
}

func TestFormatMessageVoice(t *testing.T) {
	body := `{"fileName":"voice.webm","fileSize":4096,"fileType":"audio/webm","mediaKey":"k","duration":75,"isVoiceMessage":true}`
	line := formatMessage(testMessage(model.MessageTypeFile, body))
	if !strings.Contains(line, "[voice 1:15]") {
		t.Errorf("unexpected line: %q", line)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := []struct {
		seconds int
		want    string
	}{
		{0, "0:00"},
		{9, "0:09"},
		{60, "1:00"},
		{125, "2:05"},
	}
	for _, tc := range cases {
		if got := formatDuration(tc.seconds); got != tc.want {
			t.Errorf("formatDuration(%d) = %q, want %q", tc.seconds, got, tc.want)
		}
	}
}

func TestFormatSize(t *testing.T) {
	cases := []struct {
		bytes int64
		want  string
	}{
		{0, "?"},
		{512, "512B"},
		{2048, "2.0KB"},
		{3 << 20, "3.0MB"},
	}
	for _, tc := range cases {
		if got := formatSize(tc.bytes); got != tc.want {
			t.Errorf("formatSize(%d) = %q, want %q", tc.bytes, got, tc.want)
		}
	}
}
