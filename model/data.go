// Package model contains the domain models of the broker: messages, their
// rendered views and the audit records written for consumption attempts and
// sweeps.
package model

// tablePrefix is the default prefix of the audit tables.
const tablePrefix = "broker_"
