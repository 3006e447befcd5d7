package bell

import (
	"testing"
	"time"

	"classbell/internal/timetable"
)

func school() timetable.Timeline {
	return timetable.Timeline{
		ID:    "mwf",
		Label: "Mon/Wed/Fri",
		Recurrence: timetable.Recurrence{
			Kind: timetable.EveryWeek, Mode: timetable.ByWeek,
			Weekdays: timetable.Weekdays(time.Monday, time.Wednesday, time.Friday),
		},
		Entries: []timetable.Entry{
			{ID: "e1", Kind: timetable.KindClass, Title: "Maths", Start: timetable.HM(8, 0), End: timetable.HM(8, 45)},
			{ID: "e2", Kind: timetable.KindBreak, Start: timetable.HM(8, 45), End: timetable.HM(9, 0)},
			{ID: "e3", Kind: timetable.KindClass, Title: "Physics", Start: timetable.HM(9, 0), End: timetable.HM(9, 45)},
		},
	}
}

var monday = timetable.Date{Year: 2024, Month: time.January, Day: 1}

type want struct {
	kind  Kind
	at    string
	entry string
}

func checkPlan(t *testing.T, p Plan, wants []want) {
	t.Helper()
	if len(p.Transitions) != len(wants) {
		t.Fatalf("got %d transitions, want %d: %+v", len(p.Transitions), len(wants), p.Transitions)
	}
	for i, w := range wants {
		tr := p.Transitions[i]
		if tr.Kind != w.kind || tr.At.Format("15:04") != w.at || tr.Entry.ID != w.entry {
			t.Fatalf("transition %d = %s %s %s, want %s %s %s",
				i, tr.Kind, tr.At.Format("15:04"), tr.Entry.ID, w.kind, w.at, w.entry)
		}
	}
}

func TestBuildPlanSchoolDay(t *testing.T) {
	t.Parallel()
	p := BuildPlan(monday, school(), true, time.UTC, PlanOptions{})
	checkPlan(t, p, []want{
		{ActivityStart, "08:00", "e1"},
		{ActivityEnd, "08:45", "e1"},
		{ActivityStart, "09:00", "e3"},
		{Dismissal, "09:45", "e3"},
	})
}

func TestBuildPlanDismissBeforeBreak(t *testing.T) {
	t.Parallel()
	p := BuildPlan(monday, school(), true, time.UTC, PlanOptions{DismissBeforeBreak: true})
	checkPlan(t, p, []want{
		{ActivityStart, "08:00", "e1"},
		{Dismissal, "08:45", "e1"},
		{ActivityStart, "09:00", "e3"},
		{Dismissal, "09:45", "e3"},
	})
}

func TestBuildPlanGapsAndBackToBack(t *testing.T) {
	t.Parallel()
	tl := timetable.Timeline{ID: "x", Label: "X", Entries: []timetable.Entry{
		{ID: "b0", Kind: timetable.KindBreak, Start: timetable.HM(7, 30), End: timetable.HM(7, 50)},
		{ID: "a", Kind: timetable.KindClass, Start: timetable.HM(8, 0), End: timetable.HM(9, 0)},
		{ID: "b", Kind: timetable.KindActivity, Start: timetable.HM(9, 0), End: timetable.HM(9, 30)},
		{ID: "c", Kind: timetable.KindClass, Start: timetable.HM(10, 0), End: timetable.HM(10, 30)},
		{ID: "brk", Kind: timetable.KindBreak, Start: timetable.HM(11, 0), End: timetable.HM(11, 15)},
	}}
	p := BuildPlan(monday, tl, true, time.UTC, PlanOptions{})
	checkPlan(t, p, []want{
		{ActivityStart, "08:00", "a"},
		{ActivityStart, "09:00", "b"},
		{ActivityEnd, "09:30", "b"},
		{ActivityStart, "10:00", "c"},
		{ActivityEnd, "10:30", "c"},
		{Dismissal, "11:15", "brk"},
	})
}

func TestBuildPlanNothingScheduled(t *testing.T) {
	t.Parallel()
	p := BuildPlan(monday, timetable.Timeline{}, false, time.UTC, PlanOptions{})
	if p.Active() || len(p.Transitions) != 0 {
		t.Fatalf("expected empty plan, got %+v", p)
	}
}

func TestStatusAt(t *testing.T) {
	t.Parallel()
	p := BuildPlan(monday, school(), true, time.UTC, PlanOptions{})
	now := time.Date(2024, 1, 1, 8, 15, 0, 0, time.UTC)
	st := StatusAt(p, now)
	if st.Current == nil || st.Current.ID != "e1" {
		t.Fatalf("Current = %+v, want e1", st.Current)
	}
	if st.Remaining != 30*time.Minute {
		t.Fatalf("Remaining = %v, want 30m", st.Remaining)
	}
	if st.Progress < 33.3 || st.Progress > 33.4 {
		t.Fatalf("Progress = %.2f, want ~33.33", st.Progress)
	}
	if len(st.Next) != 2 || st.Next[0].ID != "e2" {
		t.Fatalf("Next = %+v", st.Next)
	}
	if st.NextBell == nil || st.NextBell.Kind != ActivityEnd {
		t.Fatalf("NextBell = %+v", st.NextBell)
	}

	after := StatusAt(p, time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	if after.Current != nil || len(after.Next) != 0 || after.NextBell != nil {
		t.Fatalf("after school: %+v", after)
	}
}
