package e2e

// e2e contains integration tests that drive a whole send, from a YAML config
// file to a message received by an in-process relay, along with the utility
// code required to set up their dependencies. Dependencies shared with unit
// tests live in smtptest.
