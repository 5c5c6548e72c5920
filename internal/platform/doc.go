// Package platform classifies the host so provisioning can pick a
// package-manager branch: OS family, normalized CPU architecture, and
// on Linux the distribution identity read from os-release files.
// Detection is deliberately non-fatal: anything unrecognized falls
// back to a generic classification and provisioning continues.
package platform
