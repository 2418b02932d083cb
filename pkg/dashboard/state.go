package dashboard

import (
	"github.com/SumantSagar73/certify/pkg/orderedmap"
	"github.com/SumantSagar73/certify/server/certificates"
	"github.com/SumantSagar73/certify/server/storage/models"
)

// Filters is the server-applied filter set.
type Filters struct {
	Title     string
	Category  string
	Authority string
	From      *models.Date
	To        *models.Date
}

func (f Filters) Params(page, pageSize int) certificates.ListParams {
	return certificates.ListParams{
		Page:      page,
		PageSize:  pageSize,
		Title:     f.Title,
		Category:  f.Category,
		Authority: f.Authority,
		From:      f.From,
		To:        f.To,
	}
}

func sameDate(a, b *models.Date) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(b.Time)
}

func (f Filters) Equal(o Filters) bool {
	return f.Title == o.Title &&
		f.Category == o.Category &&
		f.Authority == o.Authority &&
		sameDate(f.From, o.From) &&
		sameDate(f.To, o.To)
}

// State is everything the list view renders. Transitions are pure: they
// return a new State and never mutate the receiver.
type State struct {
	Items        []*models.Certificate
	Total        int
	Page         int
	Filters      Filters
	Selection    orderedmap.OrderedMap[string, struct{}]
	LastUploaded *models.Certificate
}

func NewState() State {
	return State{Page: 1, Selection: orderedmap.New[string, struct{}]()}
}

// Clone copies the list and selection so the result can be handed out.
func (s State) Clone() State {
	s.Items = append([]*models.Certificate(nil), s.Items...)
	s.Selection = s.Selection.Clone()
	return s
}

func (s State) IndexOf(id string) int {
	for i, c := range s.Items {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (s State) Find(id string) *models.Certificate {
	if i := s.IndexOf(id); i >= 0 {
		return s.Items[i]
	}
	return nil
}

func (s State) WithPage(page int) State {
	if page < 1 {
		page = 1
	}
	s.Page = page
	return s
}

// WithFilters replaces the filter set and goes back to the first page.
func (s State) WithFilters(f Filters) State {
	s.Filters = f
	s.Page = 1
	return s
}

// WithResult overwrites the list with a fetched page. Hidden ids (pending
// deletes) are dropped and no longer counted in the total; the last upload
// is put back at the head when the page does not carry it yet.
func (s State) WithResult(res *certificates.ListResult, hidden func(id string) bool) State {
	items := make([]*models.Certificate, 0, len(res.Items)+1)
	dropped := 0
	for _, c := range res.Items {
		if hidden != nil && hidden(c.ID) {
			dropped++
			continue
		}
		items = append(items, c)
	}
	s.Items = items
	s.Total = res.Total - dropped
	if s.Total < 0 {
		s.Total = 0
	}
	if lu := s.LastUploaded; lu != nil && s.IndexOf(lu.ID) < 0 && (hidden == nil || !hidden(lu.ID)) {
		s.Items = append([]*models.Certificate{lu}, s.Items...)
	}
	return s
}

// Upsert puts c at the head, or patches it in place when already listed.
// Only a new entry bumps the total.
func (s State) Upsert(c *models.Certificate) State {
	if i := s.IndexOf(c.ID); i >= 0 {
		return s.Patch(c)
	}
	s.Items = append([]*models.Certificate{c}, s.Items...)
	s.Total++
	return s
}

// Patch replaces the listed copy of c; unknown ids are ignored.
func (s State) Patch(c *models.Certificate) State {
	i := s.IndexOf(c.ID)
	if i < 0 {
		return s
	}
	items := append([]*models.Certificate(nil), s.Items...)
	items[i] = c
	s.Items = items
	if s.LastUploaded != nil && s.LastUploaded.ID == c.ID {
		s.LastUploaded = c
	}
	return s
}

// Remove drops id from the list and returns the removed record with its
// index, or nil and -1.
func (s State) Remove(id string) (State, *models.Certificate, int) {
	i := s.IndexOf(id)
	if i < 0 {
		return s, nil, -1
	}
	removed := s.Items[i]
	items := make([]*models.Certificate, 0, len(s.Items)-1)
	items = append(items, s.Items[:i]...)
	items = append(items, s.Items[i+1:]...)
	s.Items = items
	if s.Total > 0 {
		s.Total--
	}
	s.Selection = s.Selection.Clone()
	s.Selection.Delete(id)
	if s.LastUploaded != nil && s.LastUploaded.ID == id {
		s.LastUploaded = nil
	}
	return s, removed, i
}

// Restore puts c back at index, clamped to the list bounds, and counts it.
func (s State) Restore(c *models.Certificate, index int) State {
	if s.IndexOf(c.ID) >= 0 {
		return s
	}
	s = s.Reinsert(c, index)
	s.Total++
	return s
}

// Reinsert is Restore for a record the total still counts.
func (s State) Reinsert(c *models.Certificate, index int) State {
	if s.IndexOf(c.ID) >= 0 {
		return s
	}
	if index < 0 {
		index = 0
	}
	if index > len(s.Items) {
		index = len(s.Items)
	}
	items := make([]*models.Certificate, 0, len(s.Items)+1)
	items = append(items, s.Items[:index]...)
	items = append(items, c)
	items = append(items, s.Items[index:]...)
	s.Items = items
	return s
}

// WithEvent merges a change notification. Events owned by someone else
// and events on ignored ids leave the state as is. Active filters are not
// re-evaluated.
func (s State) WithEvent(evt models.ChangeEvent, userID string, ignored func(id string) bool) State {
	if evt.OwnerID() != userID {
		return s
	}
	switch evt.Type {
	case models.EventInsert:
		if evt.New == nil || (ignored != nil && ignored(evt.New.ID)) {
			return s
		}
		return s.Upsert(evt.New)
	case models.EventUpdate:
		if evt.New == nil || (ignored != nil && ignored(evt.New.ID)) {
			return s
		}
		return s.Patch(evt.New)
	case models.EventDelete:
		if evt.Old == nil || (ignored != nil && ignored(evt.Old.ID)) {
			return s
		}
		next, _, i := s.Remove(evt.Old.ID)
		if i < 0 && next.Total > 0 {
			next.Total--
		}
		return next
	}
	return s
}

func (s State) Select(id string) State {
	if s.IndexOf(id) < 0 {
		return s
	}
	s.Selection = s.Selection.Clone()
	s.Selection.Set(id, struct{}{})
	return s
}

func (s State) Deselect(id string) State {
	s.Selection = s.Selection.Clone()
	s.Selection.Delete(id)
	return s
}

func (s State) Toggle(id string) State {
	if s.Selection.Exists(id) {
		return s.Deselect(id)
	}
	return s.Select(id)
}

// SelectPage selects every listed record.
func (s State) SelectPage() State {
	s.Selection = s.Selection.Clone()
	for _, c := range s.Items {
		s.Selection.Set(c.ID, struct{}{})
	}
	return s
}

func (s State) ClearSelection() State {
	s.Selection = orderedmap.New[string, struct{}]()
	return s
}

func (s State) Selected() []string {
	return s.Selection.Keys()
}
