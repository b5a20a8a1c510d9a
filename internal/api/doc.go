// Package api exposes the translation task service over HTTP: JSON and
// multipart task creation, polling, result download and deletion. Handlers
// translate HTTP concerns to TaskService calls and map service errors to
// status codes.
package api
