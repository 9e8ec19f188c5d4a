// Chatrelay is a single-endpoint HTTP relay for streamed chat completions.
//
// It forwards a chat request to an upstream completion API with a
// server-held credential and relays the event stream back to the browser.
// Response headers are committed only once the upstream outcome is known,
// so a rejected or unreachable upstream produces a proper JSON error with
// the right status instead of a broken stream.
//
// Alongside the relay it serves saved chat sessions, conversation exports
// (text, Markdown and RTF), message feedback and a viewer for the audit log.
//
// Usage:
//
//	# Start the relay with the default configuration
//	chatrelay run
//
//	# Start with a custom configuration file
//	chatrelay run --config /etc/chatrelay/config.yaml
//
//	# Check a configuration file
//	chatrelay validate --config config.yaml
//
//	# List saved sessions
//	chatrelay sessions list --output json
//
//	# Show the last audit entries
//	chatrelay audit tail -n 50
package main

func main() {
	Execute()
}
