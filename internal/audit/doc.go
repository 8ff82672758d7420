// Package audit writes an append-only JSONL trail of admin actions: order
// status changes, moderation decisions, catalog edits, bans and printer
// commands. Files rotate by size through lumberjack.
package audit
