// Package admission evaluates Rego policies against booking requests.
//
// Admission runs after the rule engine has accepted a span and before the
// reservation is stored. Each policy is a Rego module with a deny set; every
// entry is either a string or an object with message and severity. Entries
// with severity error or critical block the booking, the rest are returned
// as warnings.
//
// The builtin policies are:
//
//   - holder-required: the request must name a holder
//   - weekly-hour-cap: a holder may not exceed Limits.WeeklyHourCap hours a week
//   - late-finish: warns about sessions ending at midnight
//
// Extra policies are loaded from .rego files:
//
//	# Studio 3 is closed on Sundays.
//	package rsvp.admission.sunday
//
//	import rego.v1
//
//	deny contains "Resource 3 is closed on Sundays" if {
//		input.request.day == 6
//		input.request.resource == 2
//	}
package admission
