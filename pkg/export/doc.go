// Package export renders saved conversations as downloadable documents.
//
// Four formats are supported: plain text, Markdown with statistics and a
// table of contents, RTF encoded as Windows-1252 so umlauts display in
// every word processor, and an A4 PDF built with go-pdf/fpdf. Document text
// is German to match the chat UI.
//
// Exports are stateless: the client posts the conversation and receives
// the rendered file as an attachment.
package export
