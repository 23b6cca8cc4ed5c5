package model

import "time"

// Role identifies one assignable position on a service. The set is closed:
// reconciliation maps free-text store tags onto these and nothing else.
type Role string

const (
	// RolePrimary is the liturgist leading the service.
	RolePrimary Role = "primary"
	// RoleSecondary is the second reader, used on services with two
	// liturgist parts (Christmas Eve).
	RoleSecondary Role = "secondary"
	// RoleBackup covers for the primary on short notice.
	RoleBackup Role = "backup"
)

// Roles lists the closed role set in display order.
func Roles() []Role {
	return []Role{RolePrimary, RoleSecondary, RoleBackup}
}

// Assignment is one person's claim on one role for one date, as held by the
// external record store. RoleTag is the free-text spelling as stored; it is
// normalized during reconciliation, not here.
type Assignment struct {
	RecordID     string
	Date         string // ISO date "2006-01-02", the store's natural key
	DisplayLabel string
	RoleTag      string
	Name         string
	Email        string
	Phone        string
	Notes        string
	SubmittedAt  time.Time
}

// ServiceInstance is one calendar slot requiring role coverage. Instances
// are generated per request and never persisted.
type ServiceInstance struct {
	Date         time.Time // midnight in the display timezone
	DateKey      string    // ISO date, unique within a quarter
	DisplayLabel string
	Annotation   string // optional liturgical note (candle lighting etc.)
	Slots        map[Role]*Assignment
}

// NewServiceInstance builds an instance with empty slots for the closed
// role set.
func NewServiceInstance(date time.Time, displayLabel, annotation string) ServiceInstance {
	slots := make(map[Role]*Assignment, len(Roles()))
	for _, r := range Roles() {
		slots[r] = nil
	}
	return ServiceInstance{
		Date:         date,
		DateKey:      date.Format(DateLayout),
		DisplayLabel: displayLabel,
		Annotation:   annotation,
		Slots:        slots,
	}
}

// DateLayout is the ISO date layout used for store keys and API payloads.
const DateLayout = "2006-01-02"

// ReconciledView is the merged output of generated instances plus store
// records, sorted ascending by date. It is cached wholesale per quarter.
type ReconciledView struct {
	Instances   []ServiceInstance
	GeneratedAt time.Time
}
