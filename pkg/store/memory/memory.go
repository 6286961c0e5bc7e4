// Package memory implements every store interface in process. It backs the
// test suites and the STORE_BACKEND=memory development mode.
package memory

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aletheia-codex/backend/pkg/common"
	"github.com/aletheia-codex/backend/pkg/store"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Store is a mutex guarded in-memory ReviewRepository.
type Store struct {
	mu        sync.RWMutex
	items     map[string]*common.ReviewItem
	stats     map[string]*common.UserStats
	audit     []*common.AuditEntry
	documents map[string]*common.Document
}

func NewStore() *Store {
	return &Store{
		items:     make(map[string]*common.ReviewItem),
		stats:     make(map[string]*common.UserStats),
		documents: make(map[string]*common.Document),
	}
}

var _ store.ReviewRepository = (*Store)(nil)

func cloneItem(i *common.ReviewItem) *common.ReviewItem {
	if i == nil {
		return nil
	}
	c := *i
	c.Metadata = maps.Clone(i.Metadata)
	if i.Entity != nil {
		e := *i.Entity
		e.Properties = maps.Clone(i.Entity.Properties)
		e.Metadata = maps.Clone(i.Entity.Metadata)
		c.Entity = &e
	}
	if i.Relationship != nil {
		r := *i.Relationship
		r.Properties = maps.Clone(i.Relationship.Properties)
		r.Metadata = maps.Clone(i.Relationship.Metadata)
		c.Relationship = &r
	}
	if i.ReviewedAt != nil {
		t := *i.ReviewedAt
		c.ReviewedAt = &t
	}
	if i.RejectionReason != nil {
		r := *i.RejectionReason
		c.RejectionReason = &r
	}
	return &c
}

func (s *Store) InsertItems(ctx context.Context, items []*common.ReviewItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if err := item.Validate(); err != nil {
			return err
		}
		if _, ok := s.items[item.ID]; ok {
			return fmt.Errorf("review item %s already exists", item.ID)
		}
	}
	for _, item := range items {
		s.items[item.ID] = cloneItem(item)
	}
	return nil
}

func (s *Store) GetItem(ctx context.Context, itemID string) (*common.ReviewItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItem(s.items[itemID]), nil
}

func (s *Store) ListPending(ctx context.Context, q store.PendingQuery) ([]*common.ReviewItem, error) {
	q = q.Normalize()
	out := s.filter(func(i *common.ReviewItem) bool {
		return i.UserID == q.UserID &&
			i.Status == common.ReviewPending &&
			i.Confidence >= q.MinConfidence &&
			(q.ItemType == "" || i.Type == q.ItemType)
	})

	slices.SortFunc(out, func(a, b *common.ReviewItem) int {
		var c int
		if q.OrderBy == store.OrderByCreatedAt {
			c = a.CreatedAt.Compare(b.CreatedAt)
		} else {
			c = cmp.Compare(a.Confidence, b.Confidence)
		}
		if q.Descending {
			c = -c
		}
		if c == 0 {
			c = strings.Compare(a.ID, b.ID)
		}
		return c
	})
	if len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *Store) ListByDocument(ctx context.Context, userID string, documentID string) ([]*common.ReviewItem, error) {
	out := s.filter(func(i *common.ReviewItem) bool {
		return i.UserID == userID && i.SourceDocumentID == documentID
	})
	sortByCreated(out)
	return out, nil
}

func (s *Store) ListApproved(ctx context.Context, userID string) ([]*common.ReviewItem, error) {
	out := s.filter(func(i *common.ReviewItem) bool {
		return i.UserID == userID && i.Status == common.ReviewApproved
	})
	sortByCreated(out)
	return out, nil
}

func (s *Store) filter(keep func(*common.ReviewItem) bool) []*common.ReviewItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*common.ReviewItem, 0)
	for _, i := range s.items {
		if keep(i) {
			out = append(out, cloneItem(i))
		}
	}
	return out
}

func sortByCreated(items []*common.ReviewItem) {
	slices.SortFunc(items, func(a, b *common.ReviewItem) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}

func (s *Store) TransitionStatus(ctx context.Context, t store.Transition) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[t.ItemID]
	if !ok || item.UserID != t.UserID || !item.Status.CanTransition(t.Status) {
		return false, nil
	}
	at := t.ReviewedAt
	item.Status = t.Status
	item.ReviewedAt = &at
	if t.Reason != nil {
		r := *t.Reason
		item.RejectionReason = &r
	}
	return true, nil
}

func (s *Store) DeleteItem(ctx context.Context, itemID string, userID string) (common.ReviewStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[itemID]
	if !ok || item.UserID != userID {
		return "", nil
	}
	delete(s.items, itemID)
	return item.Status, nil
}

func (s *Store) userStats(userID string) *common.UserStats {
	st, ok := s.stats[userID]
	if !ok {
		st = &common.UserStats{UserID: userID}
		s.stats[userID] = st
	}
	return st
}

func (s *Store) AddPending(ctx context.Context, userID string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.userStats(userID)
	st.TotalPending = max(st.TotalPending+delta, 0)
	return nil
}

func (s *Store) RecordReview(ctx context.Context, userID string, status common.ReviewStatus, confidence float64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userStats(userID).RecordReview(status, confidence, at)
	return nil
}

func (s *Store) GetUserStats(ctx context.Context, userID string) (*common.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := *s.userStats(userID)
	return &st, nil
}

func (s *Store) WriteAudit(ctx context.Context, entry *common.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		entry.ID = id
	}
	c := *entry
	s.audit = append(s.audit, &c)
	return nil
}

// ListAudit returns the newest entries of userID first.
func (s *Store) ListAudit(ctx context.Context, userID string, limit int) ([]*common.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*common.AuditEntry, 0)
	for i := len(s.audit) - 1; i >= 0; i-- {
		if s.audit[i].UserID != userID {
			continue
		}
		c := *s.audit[i]
		out = append(out, &c)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CreateDocument(ctx context.Context, doc *common.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[doc.ID]; ok {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	c := *doc
	s.documents[doc.ID] = &c
	return nil
}

func (s *Store) GetDocument(ctx context.Context, documentID string) (*common.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[documentID]
	if !ok {
		return nil, nil
	}
	c := *doc
	return &c, nil
}

func (s *Store) ListDocuments(ctx context.Context, userID string) ([]*common.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*common.Document, 0)
	for _, d := range s.documents {
		if d.UserID == userID {
			c := *d
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *common.Document) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateDocumentStatus(ctx context.Context, u store.DocumentUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[u.DocumentID]
	if !ok || !doc.Status.CanTransition(u.Status) {
		return false, nil
	}
	at := u.At
	doc.Status = u.Status
	doc.UpdatedAt = at
	switch u.Status {
	case common.DocumentProcessing:
		doc.Error = ""
		doc.ProcessingStartedAt = &at
		doc.ProcessingCompletedAt = nil
	case common.DocumentCompleted:
		doc.Summary = u.Summary
		doc.ProcessingCompletedAt = &at
	case common.DocumentFailed:
		doc.Error = u.Error
		doc.ProcessingCompletedAt = &at
	}
	return true, nil
}
