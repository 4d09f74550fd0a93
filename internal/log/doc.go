// Package log provides slog loggers that redact credentials.
//
// The SecureHandler masks daemon tokens, authorization headers, bearer
// values and ed25519 secret keys, even in verbose mode. Drive keys and
// hyper:// addresses are public identifiers and are logged unchanged.
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("opening drive", "key", key.String(), "token", token)
//	// key=... token=***REDACTED***
package log
