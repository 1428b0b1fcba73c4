// Package permission resolves which devices a user is authorised to command.
//
// Authorisation combines two sources: explicit trustee grants (a many-to-many
// relation between users and devices) and the device public-use flag, which
// opens a device to every user. Grant and revoke are idempotent; revocation
// does not retroactively invalidate existing schedules unless the cascade
// policy flag is set.
package permission
