// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (API keys, tokens, secrets)
//   - Text or JSON output at a configurable level
//   - Consistent log formatting across the CLI and the HTTP service
//
// # Security Features
//
// The SecureHandler automatically sanitizes sensitive information in log output:
//   - HTTP headers (Authorization, API-Key, X-Api-Key, Cookie)
//   - Secret values detected by pattern matching (bearer tokens, JWTs, long keys)
//   - Wallet mnemonics and private keys
//
// Account addresses and transaction hashes are public and are never masked,
// even though they look like long opaque strings.
//
// # Usage
//
//	logger := log.New(os.Stderr, log.Options{Level: slog.LevelInfo, JSON: true})
//	logger.Info("lookup", "address", "0x...", "api-key", key) // key is masked
//	slog.SetDefault(logger)
package log
