package audit

import (
	"fmt"
	"strings"
)

// TimestampLayout is the timestamp format of log lines.
const TimestampLayout = "2006-01-02 15:04:05"

// FormatLine renders rec as one human-readable log line:
//
//	2025-01-02 15:04:05 | IP: 203.0.113.7 | RESPONSE | 200 | 3 messages | deepseek-chat | success | frames: 42 | no_training: true
//	2025-01-02 15:04:05 | IP: 203.0.113.7 | ERROR | 429 | 3 messages | deepseek-chat | upstream API error (status 429)
//	2025-01-02 15:04:05 | IP: 203.0.113.7 | FEEDBACK | LIKE | msgId: m-17 | "Sure, here is"
func FormatLine(rec *Record) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s | IP: %s | ", rec.Timestamp.Format(TimestampLayout), orUnknown(rec.ClientAddress))

	if rec.Kind == KindFeedback && rec.Feedback != nil {
		fmt.Fprintf(&sb, "FEEDBACK | %s | msgId: %s | %q", rec.Feedback.Type, rec.Feedback.MessageID, rec.Feedback.Preview)
		return sb.String()
	}

	label := "RESPONSE"
	if rec.StatusCode >= 400 || (rec.Terminal != "" && rec.Terminal != "success") {
		label = "ERROR"
	}
	fmt.Fprintf(&sb, "%s | %d | %d messages", label, rec.StatusCode, rec.MessageCount)
	if rec.Model != "" {
		fmt.Fprintf(&sb, " | %s", rec.Model)
	}
	if rec.Terminal != "" {
		fmt.Fprintf(&sb, " | %s | frames: %d", rec.Terminal, rec.Frames)
	}
	if rec.MessageCount > 0 {
		fmt.Fprintf(&sb, " | no_training: %t", rec.TrainingOptOut)
	}
	if rec.ErrorSummary != "" {
		fmt.Fprintf(&sb, " | %s", oneLine(rec.ErrorSummary))
	}
	return sb.String()
}

// TruncatePreview shortens s to MaxPreviewLength runes.
func TruncatePreview(s string) string {
	r := []rune(s)
	if len(r) <= MaxPreviewLength {
		return s
	}
	return string(r[:MaxPreviewLength])
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
