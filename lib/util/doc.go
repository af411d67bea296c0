// Package util provides small statistics helpers used by the command line tools,
// e.g. to judge how evenly keys are spread over the shards of a cluster.
package util
