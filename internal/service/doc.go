// Package service contains the application use cases for translation tasks.
// It sits between the delivery layer (internal/api, cmd/lingoctl) and the
// task lifecycle, enforcing ownership and mapping store errors to service
// level sentinels.
package service
