package admission

// BuiltinPolicies returns the policies every engine starts with.
func BuiltinPolicies() []Policy {
	return []Policy{
		holderRequiredPolicy(),
		weeklyHourCapPolicy(),
		lateFinishPolicy(),
	}
}

// holderRequiredPolicy rejects anonymous bookings.
func holderRequiredPolicy() Policy {
	return Policy{
		Name:        "holder-required",
		Description: "Every booking must name a holder",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package rsvp.admission.holder

import rego.v1

deny contains violation if {
	trim_space(object.get(input.request, "holder", "")) == ""
	violation := {
		"message": "a holder name is required",
		"severity": "error",
	}
}
`,
	}
}

// weeklyHourCapPolicy limits how many hours one holder may reserve per week.
func weeklyHourCapPolicy() Policy {
	return Policy{
		Name:        "weekly-hour-cap",
		Description: "A holder may not reserve more than the weekly hour cap",
		Severity:    SeverityError,
		Enabled:     true,
		Rego: `package rsvp.admission.weekly_cap

import rego.v1

deny contains violation if {
	limit := input.limits.weekly_hour_cap
	limit > 0
	total := input.holder_hours_this_week + input.request.hours
	total > limit
	violation := {
		"message": sprintf("%s would hold %d hours in week %s, the cap is %d", [input.request.holder, total, input.request.week, limit]),
		"severity": "error",
	}
}
`,
	}
}

// lateFinishPolicy warns about sessions running until midnight.
func lateFinishPolicy() Policy {
	return Policy{
		Name:        "late-finish",
		Description: "Sessions ending at midnight need the night key",
		Severity:    SeverityWarning,
		Enabled:     true,
		Rego: `package rsvp.admission.late_finish

import rego.v1

deny contains violation if {
	input.request.end_hour == 23
	violation := {
		"message": sprintf("%s runs until midnight, collect the night key", [input.request.resource_label]),
		"severity": "warning",
	}
}
`,
	}
}
