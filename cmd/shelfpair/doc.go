// Command shelfpair is the CLI for the product photo pairing pipeline:
// submit a job, drive it through bounded processing invocations, and read
// back its status and result.
package main
