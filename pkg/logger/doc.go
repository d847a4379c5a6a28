// Package logger provides a structured logging interface for boorudl.
//
// It wraps the zerolog library to provide a clean, easy-to-use API with support for:
// - Multiple log levels (Debug, Info, Warn, Error, Fatal)
// - Structured logging with fields
// - Pretty console output on stderr, with or without colors
// - JSON file output next to the console
// - Global logger instance for easy access
//
// Basic Usage:
//
//	import "boorudl/pkg/logger"
//
//	cfg := &config.LoggingConfig{
//	    Level: "info",
//	    File:  "boorudl.log",
//	}
//	err := logger.Initialize(cfg)
//
//	logger.Info("Application started")
//	logger.WithField("base_url", baseURL).Info("fetching")
//
// Domain helpers keep log lines uniform across packages:
//
//	logger.LogPage(log, page.Number, len(page.Posts), accepted)
//	logger.LogDownload(log, post.ID, post.ImageURL, count, err)
//	logger.LogSkip(log, post.ID, "video", "video/animation .webm")
//
// Tests use NewTestLogger to capture messages or NewNopLogger to discard them.
package logger
