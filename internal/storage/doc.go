package storage

// Package storage archives moderation actions so history survives restarts
// and can be searched per user. The in-memory journal stays the source for
// exports; the archive is a durable side copy.
