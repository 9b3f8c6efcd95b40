//go:build chessdebug

package board

// debugChecks runs CheckInvariants after every make and unmake and panics on
// the first violation.
const debugChecks = true
