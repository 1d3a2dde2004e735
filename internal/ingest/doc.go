// Package ingest feeds files into a ContextManager.
//
// LoadDir reads matching files under a directory in lexical path order.
// Watcher follows a directory with fsnotify and ingests files as they are
// created or rewritten, once writes have been quiet for the debounce period.
// The store is append-only, so a rewritten file is ingested as a new document.
package ingest
