// Package logging provides a simple leveled logging interface for the
// kairos web application, backed by zerolog.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information
//   - INFO: General operational messages
//   - WARN: Warning conditions
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// Until [Configure] is called the level comes from the LOG_LEVEL (or DEBUG)
// environment variable and output goes to stderr through a console writer
// that only emits colors on a terminal.
package logging
