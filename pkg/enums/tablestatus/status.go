package tablestatus

import (
	"strings"
)

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	if len(s.Name) == 0 {
		return ""
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

type Enum struct {
	Empty    Status
	Occupied Status
	Reserved Status
	Bill     Status
	Merged   Status
}

var Statuses = Enum{
	Empty:    Status{Name: "empty"},
	Occupied: Status{Name: "occupied"},
	Reserved: Status{Name: "reserved"},
	Bill:     Status{Name: "bill"},
	Merged:   Status{Name: "merged"},
}

var All = []Status{
	Statuses.Empty,
	Statuses.Occupied,
	Statuses.Reserved,
	Statuses.Bill,
	Statuses.Merged,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}
