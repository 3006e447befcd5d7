package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"classbell/internal/bell"
	"classbell/internal/ics"
	"classbell/internal/sheet"
	"classbell/internal/timetable"
	logx "classbell/pkg/logx"
)

const (
	defaultOccurrenceDays = 30
	defaultICSDays        = 14
	maxRangeDays          = 366
	maxImportBytes        = 4 << 20
)

type entryView struct {
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	SubjectID string `json:"subject_id,omitempty"`
	Title     string `json:"title"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Location  string `json:"location,omitempty"`
}

type bellView struct {
	Kind    string    `json:"kind"`
	At      time.Time `json:"at"`
	EntryID string    `json:"entry_id"`
	In      string    `json:"in"`
}

type statusView struct {
	Date       string      `json:"date"`
	TimelineID *string     `json:"timeline_id"`
	Label      string      `json:"label,omitempty"`
	State      string      `json:"state,omitempty"`
	Current    *entryView  `json:"current"`
	Next       []entryView `json:"next"`
	Remaining  int64       `json:"remaining_seconds"`
	Progress   float64     `json:"progress"`
	NextBell   *bellView   `json:"next_bell"`
}

type entryRequest struct {
	ID        string `json:"id"`
	Kind      string `json:"kind" binding:"required"`
	SubjectID string `json:"subject_id"`
	Title     string `json:"title"`
	Start     string `json:"start"`
	// End omitted appends the entry after the last one with the default
	// duration for its kind.
	End string `json:"end"`
}

type timelineRequest struct {
	Label      string                  `json:"label"`
	Recurrence timetable.RecurrenceDoc `json:"recurrence"`
}

type conflictView struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Range string `json:"range"`
}

func (s *Server) view(e timetable.Entry) entryView {
	v := entryView{
		ID: e.ID, Kind: string(e.Kind), SubjectID: e.SubjectID,
		Title: timetable.Title(s.store, e),
		Start: e.Start.String(), End: e.End.String(),
	}
	if sub, err := timetable.SubjectOf(s.store, e); err == nil {
		v.Location = sub.Location
	}
	return v
}

func (s *Server) now() time.Time {
	if s.bells != nil {
		return s.bells.Now()
	}
	return time.Now().In(s.loc)
}

func (s *Server) status() bell.Status {
	if s.bells != nil {
		return s.bells.Status()
	}
	now := s.now()
	today := timetable.DateOf(now)
	tl, ok := s.store.Resolve(today)
	return bell.StatusAt(bell.BuildPlan(today, tl, ok, s.loc, bell.PlanOptions{}), now)
}

func (s *Server) getStatus(c *gin.Context) {
	st := s.status()
	now := s.now()
	out := statusView{
		Date:      st.Date.String(),
		Label:     st.Label,
		State:     string(st.State),
		Next:      make([]entryView, 0, len(st.Next)),
		Remaining: int64(st.Remaining / time.Second),
		Progress:  st.Progress,
	}
	if st.TimelineID != "" {
		id := st.TimelineID
		out.TimelineID = &id
	}
	if st.Current != nil {
		v := s.view(*st.Current)
		out.Current = &v
	}
	for _, e := range st.Next {
		out.Next = append(out.Next, s.view(e))
	}
	if tr := st.NextBell; tr != nil {
		out.NextBell = &bellView{
			Kind: string(tr.Kind), At: tr.At, EntryID: tr.Entry.ID,
			In: humanize.RelTime(tr.At, now, "ago", "from now"),
		}
	}
	c.JSON(http.StatusOK, out)
}

// dateQuery reads a YYYY-MM-DD query parameter, defaulting to def.
func dateQuery(c *gin.Context, key string, def timetable.Date) (timetable.Date, bool) {
	raw := c.Query(key)
	if raw == "" {
		return def, true
	}
	d, err := timetable.ParseDate(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid %s: %v", key, err)})
		return timetable.Date{}, false
	}
	return d, true
}

func (s *Server) getResolve(c *gin.Context) {
	date, ok := dateQuery(c, "date", timetable.DateOf(s.now()))
	if !ok {
		return
	}
	tl, found := s.store.Resolve(date)
	if !found {
		c.JSON(http.StatusOK, gin.H{"date": date.String(), "timeline_id": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{"date": date.String(), "timeline_id": tl.ID, "label": tl.Label})
}

func (s *Server) listTimelines(c *gin.Context) {
	c.JSON(http.StatusOK, timetable.ToDocument(s.store.Snapshot()).Timelines)
}

func timelineView(tl timetable.Timeline) any {
	return timetable.ToDocument(timetable.Schedule{Timelines: []timetable.Timeline{tl}}).Timelines[0]
}

// bindTimeline reads a label and recurrence rule from the body.
func (s *Server) bindTimeline(c *gin.Context) (string, timetable.Recurrence, bool) {
	var req timelineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return "", timetable.Recurrence{}, false
	}
	rec, err := req.Recurrence.Model()
	if err != nil {
		s.fail(c, err)
		return "", timetable.Recurrence{}, false
	}
	return req.Label, rec, true
}

func (s *Server) createTimeline(c *gin.Context) {
	label, rec, ok := s.bindTimeline(c)
	if !ok {
		return
	}
	tl, err := s.store.CreateTimeline(label, rec)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, timelineView(tl))
}

func (s *Server) updateTimeline(c *gin.Context) {
	label, rec, ok := s.bindTimeline(c)
	if !ok {
		return
	}
	id := c.Param("id")
	if err := s.store.UpdateTimeline(id, label, rec); err != nil {
		s.fail(c, err)
		return
	}
	tl, _ := s.store.Timeline(id)
	c.JSON(http.StatusOK, timelineView(tl))
}

func (s *Server) duplicateTimeline(c *gin.Context) {
	var req struct {
		Label string `json:"label"`
	}
	// The body is optional; without a label the copy is named "<label> (copy)".
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	tl, err := s.store.DuplicateTimeline(c.Param("id"), req.Label)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, timelineView(tl))
}

func (s *Server) deleteTimeline(c *gin.Context) {
	if err := s.store.DeleteTimeline(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) getOccurrences(c *gin.Context) {
	tl, ok := s.store.Timeline(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": timetable.ErrTimelineNotFound.Error()})
		return
	}
	from, ok := dateQuery(c, "from", timetable.DateOf(s.now()))
	if !ok {
		return
	}
	to, ok := dateQuery(c, "to", from.AddDays(defaultOccurrenceDays-1))
	if !ok {
		return
	}
	if to.DaysSince(from) > maxRangeDays {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("range longer than %d days", maxRangeDays)})
		return
	}
	dates, err := timetable.Occurrences(tl, s.store.ResolveConfig(), s.store.Timelines(), from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	out := make([]string, 0, len(dates))
	for _, d := range dates {
		out = append(out, d.String())
	}
	c.JSON(http.StatusOK, gin.H{"timeline_id": tl.ID, "from": from.String(), "to": to.String(), "dates": out})
}

func (s *Server) addEntry(c *gin.Context) {
	var req entryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request: " + err.Error()})
		return
	}
	kind := timetable.EntryKind(req.Kind)
	var start timetable.TimeOfDay
	if req.Start != "" {
		t, err := timetable.ParseTimeOfDay(req.Start)
		if err != nil {
			s.fail(c, &timetable.ValidationError{Field: "start", Reason: err.Error()})
			return
		}
		start = t
	}

	id := c.Param("id")
	var (
		e   timetable.Entry
		err error
	)
	if req.End == "" {
		if !kind.Valid() {
			s.fail(c, &timetable.ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown kind %q", req.Kind)})
			return
		}
		e, err = s.store.AppendEntry(id, kind, req.SubjectID, req.Title, start)
	} else {
		end, perr := timetable.ParseTimeOfDay(req.End)
		if perr != nil {
			s.fail(c, &timetable.ValidationError{Field: "end", Reason: perr.Error()})
			return
		}
		e, err = s.store.AddEntry(id, timetable.Entry{
			ID: req.ID, Kind: kind, SubjectID: req.SubjectID, Title: req.Title, Start: start, End: end,
		})
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, s.view(e))
}

func (s *Server) removeEntry(c *gin.Context) {
	if err := s.store.RemoveEntry(c.Param("id"), c.Param("entry")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) exportJSON(c *gin.Context) {
	b, err := timetable.ExportBytes(s.store.Snapshot())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="schedule.json"`)
	c.Data(http.StatusOK, "application/json", b)
}

func (s *Server) importJSON(c *gin.Context) {
	b, err := io.ReadAll(io.LimitReader(c.Request.Body, maxImportBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	sched, err := timetable.ImportBytes(b)
	if err == nil {
		err = s.store.Replace(sched)
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"timelines": len(sched.Timelines), "subjects": len(sched.Subjects)})
}

func (s *Server) exportICS(c *gin.Context) {
	from, ok := dateQuery(c, "from", timetable.DateOf(s.now()))
	if !ok {
		return
	}
	days := defaultICSDays
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxRangeDays {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days"})
			return
		}
		days = n
	}
	var buf bytes.Buffer
	opt := ics.Options{Location: s.loc, SkipBreaks: c.Query("breaks") == "false"}
	if err := ics.Write(&buf, s.store, from, days, opt); err != nil {
		s.fail(c, err)
		return
	}
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", buf.Bytes())
}

func (s *Server) exportXLSX(c *gin.Context) {
	var buf bytes.Buffer
	if err := sheet.Export(&buf, s.store.Snapshot()); err != nil {
		s.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="schedule.xlsx"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}

// fail maps domain errors to status codes.
func (s *Server) fail(c *gin.Context, err error) {
	var (
		oe *timetable.OverlapError
		ve *timetable.ValidationError
		ue *timetable.SubjectInUseError
		pe *timetable.PersistenceError
	)
	switch {
	case errors.As(err, &oe):
		body := gin.H{"error": err.Error(), "entry": oe.Entry.ID, "with": oe.With.ID, "range": oe.Range.String()}
		if len(oe.Pairs) > 0 {
			pairs := make([]conflictView, 0, len(oe.Pairs))
			for _, p := range oe.Pairs {
				pairs = append(pairs, conflictView{A: p.A.ID, B: p.B.ID, Range: p.Range.String()})
			}
			body["pairs"] = pairs
		}
		c.JSON(http.StatusConflict, body)
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &ue):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, timetable.ErrTimelineNotFound), errors.Is(err, timetable.ErrEntryNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &pe):
		s.log.Error("schedule write failed", logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not save schedule"})
	default:
		s.log.Warn("request failed", logx.String("path", c.FullPath()), logx.Err(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
