// Package bundle stores the activation code placeholders point at.
//
// The Activation Manifest names bundles by locator; this package
// resolves those locators to actual content. MemoryStore keeps
// bundles in-process for development and tests, S3Store serves them
// from an S3 bucket with presigned URLs for direct client fetches.
package bundle
