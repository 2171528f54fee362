/*
roster.go - Organization employee directory

PURPOSE:
  The reconciliation job reads joining dates from the organization's own
  employee directory. The directory is an outside system and may be down;
  callers degrade to fallback joining dates when Fetch fails.

WIRE FORMAT:
  [
    {"user_id": "u1", "user_name": "Asha", "date_of_joining": "07-Apr-2025", "employee_number": "E-17"}
  ]
*/
package roster

import (
	"context"
	"time"

	"github.com/warp/leave-engine/generic"
)

type Record struct {
	UserID         string `json:"user_id"`
	UserName       string `json:"user_name"`
	DateOfJoining  string `json:"date_of_joining"`
	EmployeeNumber string `json:"employee_number"`
}

// JoiningDate parses DateOfJoining (DD-MMM-YYYY).
func (r Record) JoiningDate() (time.Time, error) {
	return generic.ParseRosterDate(r.DateOfJoining)
}

type Source interface {
	Fetch(ctx context.Context, orgID generic.OrgID) ([]Record, error)
}

// Static serves a fixed record set, for callers that already hold the
// roster (an uploaded file, a test).
type Static []Record

func (s Static) Fetch(context.Context, generic.OrgID) ([]Record, error) {
	return []Record(s), nil
}

// Index maps records by user id, skipping records without one.
func Index(records []Record) map[generic.UserID]Record {
	out := make(map[generic.UserID]Record, len(records))
	for _, r := range records {
		if r.UserID == "" {
			continue
		}
		out[generic.UserID(r.UserID)] = r
	}
	return out
}
