// Package reply ingests inbound email replies, classifies their intent,
// and feeds the result back into contact state.
//
// Bodies are stripped to plain text before storage and classification.
// Classification runs through the injected model provider against the
// closed label set interested/maybe/decline/auto_reply; a failed or
// unrecognized classification stores the explicit "other" intent instead
// of failing ingestion.
package reply
