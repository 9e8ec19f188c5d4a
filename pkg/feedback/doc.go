// Package feedback accepts like and dislike ratings for assistant replies
// and appends them to the audit trail next to the chat records.
package feedback
