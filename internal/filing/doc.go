// Package filing implements the final workflow stage. It moves classified
// attachments from the consume directory into the archive tree, optionally
// split by correspondent and year, and writes export copies when enabled.
package filing
