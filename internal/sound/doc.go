// Package sound manages the audio catalogue: metadata in SQLite, payload
// bytes on disk, and the resolver that maps a firing schedule back to a
// stream for the requesting device.
package sound
