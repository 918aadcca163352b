// Package contact implements the contact lifecycle: CSV import, model
// enrichment with bounded retry, embedding generation, clustering, export,
// and GDPR-style soft deletion.
//
// Enrichment is the only path that moves a contact to the enriched status,
// and it writes the profile fields and the status in one repository call so
// readers never observe a half-enriched contact.
package contact
