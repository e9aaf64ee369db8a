//go:build !linux

package fileutil

// SyncFilesystem is a no-op outside Linux; atomic rename already orders the write.
func SyncFilesystem() error { return nil }
