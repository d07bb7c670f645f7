// Package logx wraps zerolog behind a small structured-logging API.
//
// The zero Logger value is a safe no-op; services receive derived loggers
// via With() and never touch zerolog directly.
package logx
