// Package schedule implements playback scheduling: the persistent schedule
// store, the validating service layer and the trigger evaluator.
//
// A schedule binds a device, its owning user, a sound and exactly one timing
// rule: a five-field cron expression for recurring playback or a fixed
// activation instant for one-shot playback. The evaluator decides due-ness
// purely from stored state, so any number of concurrent evaluation passes
// agree on each occurrence and the store's conditional last-fired update
// ensures it fires at most once.
package schedule
