package records

import (
	"cmp"
	"slices"
	"strings"
)

// PersonDay marks that a person was seen on a date. Count is always 1.
type PersonDay struct {
	Person string `json:"person"`
	Date   string `json:"date" example:"2025-03-01"`
	Count  int    `json:"count"`
}

// DayPeople is the number of distinct people seen on a date.
type DayPeople struct {
	Date   string `json:"date"`
	People int    `json:"people"`
}

// MonthPersonDays is the number of distinct days a person was seen in a month.
type MonthPersonDays struct {
	Month  string `json:"month" example:"2025-03"`
	Person string `json:"person"`
	Days   int    `json:"days"`
}

// Stats summarises the log. A person counts at most once per day.
type Stats struct {
	Total        int               `json:"total" doc:"All valid rows"`
	MatchRaw     int               `json:"match_raw" doc:"MATCH rows before per-day dedup"`
	Valid        int               `json:"valid" doc:"Distinct person-day pairs"`
	Error        int               `json:"error"`
	NoFace       int               `json:"no_face"`
	OtherInvalid int               `json:"other_invalid" doc:"Rows with any other non-empty status"`
	PersonDay    []PersonDay       `json:"person_day"`
	DayPeople    []DayPeople       `json:"day_people"`
	MonthPerson  []MonthPersonDays `json:"month_person_days"`
	AllPersons   []string          `json:"all_persons" doc:"Every name in the label map"`
	LabelMap     map[string]string `json:"label_map"`
}

// ComputeStats aggregates records. MATCH rows with an unparseable timestamp,
// or a name that is empty, UNKNOWN or NO_FACE, count towards MatchRaw only.
// labels may be nil.
func ComputeStats(records []Record, labels map[string]string) Stats {
	s := Stats{
		Total:       len(records),
		PersonDay:   []PersonDay{},
		DayPeople:   []DayPeople{},
		MonthPerson: []MonthPersonDays{},
		AllPersons:  []string{},
		LabelMap:    map[string]string{},
	}

	personDays := make(map[string]map[string]struct{})
	dayPeople := make(map[string]map[string]struct{})
	monthDays := make(map[[2]string]map[string]struct{})

	for _, rec := range records {
		switch strings.ToUpper(strings.TrimSpace(rec.Status)) {
		case StatusMatch:
			s.MatchRaw++
			t, err := ParseTimestamp(rec.Timestamp)
			if err != nil {
				continue
			}
			person := strings.TrimSpace(rec.MatchName)
			if !countable(person) {
				continue
			}
			date, month := t.Format("2006-01-02"), t.Format("2006-01")

			if add(personDays, person, date) {
				s.Valid++
			}
			add(dayPeople, date, person)
			days, ok := monthDays[[2]string{month, person}]
			if !ok {
				days = make(map[string]struct{})
				monthDays[[2]string{month, person}] = days
			}
			days[date] = struct{}{}
		case StatusError:
			s.Error++
		case StatusNoFace:
			s.NoFace++
		case "":
		default:
			s.OtherInvalid++
		}
	}

	for person, dates := range personDays {
		for date := range dates {
			s.PersonDay = append(s.PersonDay, PersonDay{Person: person, Date: date, Count: 1})
		}
	}
	for date, people := range dayPeople {
		s.DayPeople = append(s.DayPeople, DayPeople{Date: date, People: len(people)})
	}
	for key, days := range monthDays {
		s.MonthPerson = append(s.MonthPerson, MonthPersonDays{Month: key[0], Person: key[1], Days: len(days)})
	}

	slices.SortFunc(s.PersonDay, func(a, b PersonDay) int {
		return cmp.Or(cmp.Compare(a.Person, b.Person), cmp.Compare(a.Date, b.Date))
	})
	slices.SortFunc(s.DayPeople, func(a, b DayPeople) int {
		return cmp.Compare(a.Date, b.Date)
	})
	slices.SortFunc(s.MonthPerson, func(a, b MonthPersonDays) int {
		return cmp.Or(cmp.Compare(a.Month, b.Month), cmp.Compare(a.Person, b.Person))
	})

	seen := make(map[string]struct{})
	for id, name := range labels {
		s.LabelMap[id] = name
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			s.AllPersons = append(s.AllPersons, name)
		}
	}
	slices.Sort(s.AllPersons)
	return s
}

func countable(name string) bool {
	switch strings.ToUpper(name) {
	case "", StatusUnknown, StatusNoFace:
		return false
	}
	return true
}

// add inserts inner under outer and reports whether it was new.
func add(set map[string]map[string]struct{}, outer, inner string) bool {
	m, ok := set[outer]
	if !ok {
		m = make(map[string]struct{})
		set[outer] = m
	}
	if _, exists := m[inner]; exists {
		return false
	}
	m[inner] = struct{}{}
	return true
}
