// Package upstream opens streaming chat-completion calls against the remote
// model API.
//
// Connect returns one of three outcomes without writing anything to the
// inbound client:
//
//   - *ConnectFailure: the API was not reached, or did not send headers in time
//   - *Rejected: the API answered with a non-2xx status; its body is captured
//   - *Accepted: the API answered 2xx; the event stream body is left unread
//
// The bearer credential is injected through the Credential interface.
// FileCredential re-reads a credential file when it changes.
package upstream
