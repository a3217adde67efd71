// Package booking is the service layer over the rule engine.
//
// A Service owns the occupancy predicate: every call snapshots the week's
// active reservations from its Store and hands that snapshot to the engine,
// so rules never see the predicate change mid-call. Book runs the full
// pipeline:
//
//  1. every rule scoped to the span must accept it (RULE_REJECTED)
//  2. the span must be free in the snapshot (SLOT_TAKEN)
//  3. admission policies, when configured, must allow it (ADMISSION_DENIED)
//  4. the store re-checks overlap inside its insert transaction (SLOT_TAKEN)
//
// Weeks are ISO week labels such as "2026-W42"; see CurrentWeek.
package booking
