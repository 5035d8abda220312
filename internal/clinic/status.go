package clinic

type AppointmentStatus string

const (
	StatusScheduled  AppointmentStatus = "SCHEDULED"
	StatusCheckedIn  AppointmentStatus = "CHECKED_IN"
	StatusInProgress AppointmentStatus = "IN_PROGRESS"
	StatusCompleted  AppointmentStatus = "COMPLETED"
	StatusCancelled  AppointmentStatus = "CANCELLED"
	StatusNoShow     AppointmentStatus = "NO_SHOW"
)

// IsTerminal reports whether no further transition is permitted.
func (s AppointmentStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Blocks reports whether an appointment in this status still occupies
// calendar time. Completed and in-progress visits keep blocking the day;
// only cancellations and no-shows free their window.
func (s AppointmentStatus) Blocks() bool {
	return s != StatusCancelled && s != StatusNoShow
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusCheckedIn, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type ServiceType string

const (
	ServiceNewPatientVisit  ServiceType = "NEW_PATIENT_VISIT"
	ServiceFollowUpVisit    ServiceType = "FOLLOW_UP_VISIT"
	ServiceAnnualPhysical   ServiceType = "ANNUAL_PHYSICAL"
	ServiceUrgentSameDay    ServiceType = "URGENT_SAME_DAY"
	ServiceSickVisit        ServiceType = "SICK_VISIT"
	ServiceVaccination      ServiceType = "VACCINATION"
	ServiceLabDraw          ServiceType = "LAB_DRAW"
	ServiceProcedureMinor   ServiceType = "PROCEDURE_MINOR"
	ServiceMedicationRefill ServiceType = "MEDICATION_REFILL"
	ServiceTelehealthVisit  ServiceType = "TELEHEALTH_VISIT"
)

// serviceDurations holds the default visit length per service, in minutes.
var serviceDurations = map[ServiceType]int{
	ServiceNewPatientVisit:  30,
	ServiceFollowUpVisit:    20,
	ServiceAnnualPhysical:   60,
	ServiceUrgentSameDay:    20,
	ServiceSickVisit:        20,
	ServiceVaccination:      15,
	ServiceLabDraw:          15,
	ServiceProcedureMinor:   45,
	ServiceMedicationRefill: 10,
	ServiceTelehealthVisit:  20,
}

var serviceDisplayNames = map[ServiceType]string{
	ServiceNewPatientVisit:  "New Patient Consultation",
	ServiceFollowUpVisit:    "Follow-up Visit",
	ServiceAnnualPhysical:   "Annual Physical Exam",
	ServiceUrgentSameDay:    "Urgent Same-day Visit",
	ServiceSickVisit:        "Sick Visit",
	ServiceVaccination:      "Vaccination",
	ServiceLabDraw:          "Lab draw",
	ServiceProcedureMinor:   "Minor procedure",
	ServiceMedicationRefill: "Medication refill",
	ServiceTelehealthVisit:  "Telehealth visit",
}

func (s ServiceType) Valid() bool {
	_, ok := serviceDurations[s]
	return ok
}

// DefaultDurationMinutes returns the catalog duration for the service, or
// 20 minutes for an unknown one.
func (s ServiceType) DefaultDurationMinutes() int {
	if d, ok := serviceDurations[s]; ok {
		return d
	}
	return 20
}

func (s ServiceType) DisplayName() string {
	if n, ok := serviceDisplayNames[s]; ok {
		return n
	}
	return string(s)
}

// Caller roles, as asserted by the (external) session layer.
const (
	RolePatient   = "PATIENT"
	RolePhysician = "PHYSICIAN"
	RoleFrontDesk = "FRONT_DESK"
)
