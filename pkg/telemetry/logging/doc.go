// Package logging configures log/slog for the chat relay.
//
// Every record passes through Handler, which scrubs bearer tokens, API keys,
// and registered literal secrets from the message and string attributes, and
// adds the request ID stored in the context by the request ID middleware.
//
//	logger, err := logging.New(logging.FromConfig(cfg.Telemetry.Logging))
//	logger.Redactor().AddLiteral(apiKey)
//	slog.SetDefault(logger.Logger)
package logging
