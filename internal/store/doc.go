// Package store defines the persistence contract for translation task
// records. The record store is the single source of truth for task status;
// every status change goes through a compare-and-set so that concurrent
// workers and deletions can never both win.
package store
