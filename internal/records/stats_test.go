package records

import (
	"reflect"
	"testing"
)

func TestComputeStats(t *testing.T) {
	recs := []Record{
		{Timestamp: "2025-03-01 08:00:00", MatchName: "alice", Status: "MATCH"},
		{Timestamp: "2025-03-01 17:00:00", MatchName: "alice", Status: "MATCH"},
		{Timestamp: "2025-03-01 09:00:00", MatchName: "bob", Status: "MATCH"},
		{Timestamp: "2025-03-02 09:00:00", MatchName: "alice", Status: "match"},
		{Timestamp: "2025-04-01 09:00:00", MatchName: "alice", Status: "MATCH"},
		{Timestamp: "2025-03-03 09:00:00", MatchName: "unknown", Status: "MATCH"},
		{Timestamp: "bad", MatchName: "carol", Status: "MATCH"},
		{Timestamp: "2025-03-01 10:00:00", Status: "ERROR"},
		{Timestamp: "2025-03-01 10:00:00", Status: "NO_FACE"},
		{Timestamp: "2025-03-01 10:00:00", Status: "UNKNOWN"},
		{Timestamp: "2025-03-01 10:00:00", Status: ""},
	}
	labels := map[string]string{"0": "bob", "1": "alice", "2": " ", "3": "alice"}

	s := ComputeStats(recs, labels)

	if s.Total != 11 || s.MatchRaw != 7 || s.Valid != 4 {
		t.Errorf("total/match_raw/valid = %d/%d/%d, want 11/7/4", s.Total, s.MatchRaw, s.Valid)
	}
	if s.Error != 1 || s.NoFace != 1 || s.OtherInvalid != 1 {
		t.Errorf("error/no_face/other = %d/%d/%d, want 1/1/1", s.Error, s.NoFace, s.OtherInvalid)
	}

	wantPD := []PersonDay{
		{"alice", "2025-03-01", 1},
		{"alice", "2025-03-02", 1},
		{"alice", "2025-04-01", 1},
		{"bob", "2025-03-01", 1},
	}
	if !reflect.DeepEqual(s.PersonDay, wantPD) {
		t.Errorf("person_day = %+v", s.PersonDay)
	}

	wantDP := []DayPeople{{"2025-03-01", 2}, {"2025-03-02", 1}, {"2025-04-01", 1}}
	if !reflect.DeepEqual(s.DayPeople, wantDP) {
		t.Errorf("day_people = %+v", s.DayPeople)
	}

	wantMP := []MonthPersonDays{{"2025-03", "alice", 2}, {"2025-03", "bob", 1}, {"2025-04", "alice", 1}}
	if !reflect.DeepEqual(s.MonthPerson, wantMP) {
		t.Errorf("month_person_days = %+v", s.MonthPerson)
	}

	if !reflect.DeepEqual(s.AllPersons, []string{"alice", "bob"}) {
		t.Errorf("all_persons = %v", s.AllPersons)
	}
	if len(s.LabelMap) != 4 {
		t.Errorf("label_map = %v", s.LabelMap)
	}
}

func TestComputeStatsEmpty(t *testing.T) {
	s := ComputeStats(nil, nil)
	if s.PersonDay == nil || s.AllPersons == nil || s.LabelMap == nil {
		t.Error("empty stats should encode as empty arrays and objects, not null")
	}
}
