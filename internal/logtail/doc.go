// Package logtail reads the tail of the explorer's own log file.
//
// Read keeps a ring buffer of the last maxLines lines, so memory stays
// bounded by maxLines regardless of file size. Each line is decoded from the
// JSON the logger writes:
//
//	{"level":"warn","ts":"2026-01-02T15:04:05.000Z","msg":"persist failed","key":"explorer:favorites"}
//
// Lines that are not JSON are kept as info entries with the raw text as the
// message. The UI shows the result in its log panel.
package logtail
