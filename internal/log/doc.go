// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// The Hot Pepper API key travels in query strings, so logged URLs are as
// dangerous as logged credentials. The SecureHandler masks:
//   - HTTP headers (Authorization, Cookie, Set-Cookie, X-Api-Key)
//   - API keys and tokens detected by key name or value pattern
//   - key= query parameters inside logged URLs
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or stored.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	logger.Info("api request",
//	    "api_key", "3e9f658f6ee72cf7",  // masked
//	    "url", "https://webservice.recruit.co.jp/hotpepper/gourmet/v1/?key=abc", // key= masked
//	)
//
//	slog.SetDefault(logger)
package log
