// Package stores persists reservations and their event log in SQLite.
//
// The schema ships as embedded golang-migrate migrations. Reservations hold
// inclusive hour spans on the week grid; an overlap re-check inside the
// insert transaction keeps two active reservations from sharing a cell.
package stores
