// Package domain contains the core business entities of the translation
// service: the Task record, its status values and the state machine that
// governs which status changes are legal. It is independent of any storage
// or delivery mechanism.
package domain
