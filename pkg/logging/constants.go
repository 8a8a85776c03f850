// This file defines the shared field names used across the module's logs.
package logging

// Standard field names for logging, kept consistent across every package so
// log lines can be filtered/aggregated the same way regardless of origin.
const (
	FieldComponent  = "component"   // Component or module
	FieldDuration   = "duration_ms" // Duration of operation in milliseconds
	FieldPath       = "path"        // File or resource path
	FieldID         = "id"          // Identifier (item id, handle, inode)
	FieldSize       = "size"        // Size in bytes
	FieldOffset     = "offset"      // Offset in bytes
	FieldCount      = "count"       // Count of items
	FieldRetries    = "retries"     // Number of retries
	FieldStatusCode = "status_code" // HTTP status code
	FieldURL        = "url"         // URL
)
