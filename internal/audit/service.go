package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// RepositoryPort abstracts persistence for the service.
type RepositoryPort interface {
	InsertEntry(ctx context.Context, entry Entry) error
	Timeline(ctx context.Context, filters TimelineFilters, limit, offset int) ([]Entry, error)
}

// Service records changes and serves the audit timeline.
type Service struct {
	repo    RepositoryPort
	logger  *slog.Logger
	printer *message.Printer
	now     func() time.Time
}

// NewService constructs Service.
func NewService(repo RepositoryPort, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		logger:  logger,
		printer: message.NewPrinter(language.AmericanEnglish),
		now:     time.Now,
	}
}

// WithNow overrides the clock for deterministic tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// LogChange appends one audit entry. It never fails the caller: write
// errors are logged and swallowed so a failing audit store cannot abort
// the primary mutation.
func (s *Service) LogChange(ctx context.Context, change Change) {
	if s == nil || s.repo == nil {
		return
	}
	entry := Entry{
		TenantID:    change.TenantID,
		EntityType:  change.EntityType,
		EntityID:    change.EntityID,
		Action:      change.Action,
		ActorID:     change.ActorID,
		IP:          change.IP,
		UserAgent:   change.UserAgent,
		Description: s.describe(change),
		At:          s.now(),
	}
	if change.Old != nil {
		entry.OldValue, _ = json.Marshal(change.Old)
	}
	if change.New != nil {
		entry.NewValue, _ = json.Marshal(change.New)
	}
	if err := s.repo.InsertEntry(ctx, entry); err != nil {
		s.logger.Warn("audit write failed",
			slog.String("entity", change.EntityType),
			slog.String("entity_id", change.EntityID),
			slog.Any("error", err))
	}
}

// Timeline returns paged audit entries.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (TimelineResult, error) {
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	rows, err := s.repo.Timeline(ctx, filters, pageSize+1, (page-1)*pageSize)
	if err != nil {
		return TimelineResult{}, err
	}
	hasNext := len(rows) > pageSize
	if hasNext {
		rows = rows[:pageSize]
	}
	return TimelineResult{
		Rows:   rows,
		Paging: PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext},
	}, nil
}

func (s *Service) describe(change Change) string {
	verb := map[Action]string{
		ActionCreate: "created",
		ActionUpdate: "updated",
		ActionDelete: "deleted",
	}[change.Action]
	if verb == "" {
		verb = strings.ToLower(string(change.Action))
	}
	head := fmt.Sprintf("%s %s %s", verb, change.EntityType, change.EntityID)
	if change.Action != ActionUpdate || change.Old == nil || change.New == nil {
		return head
	}
	diffs := s.diff(change.Old, change.New)
	if len(diffs) == 0 {
		return head
	}
	return head + ": " + strings.Join(diffs, "; ")
}

// diff renders changed top-level fields between two entity snapshots.
func (s *Service) diff(oldEntity, newEntity any) []string {
	oldMap, ok1 := toMap(oldEntity)
	newMap, ok2 := toMap(newEntity)
	if !ok1 || !ok2 {
		return nil
	}
	keys := make([]string, 0, len(newMap))
	for key := range newMap {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	var diffs []string
	for _, key := range keys {
		oldVal := oldMap[key]
		newVal := newMap[key]
		if fmt.Sprint(oldVal) == fmt.Sprint(newVal) {
			continue
		}
		diffs = append(diffs, fmt.Sprintf("%s: %s -> %s", key, s.format(oldVal), s.format(newVal)))
	}
	return diffs
}

func (s *Service) format(v any) string {
	switch val := v.(type) {
	case nil:
		return "none"
	case float64:
		return s.printer.Sprintf("%.2f", val)
	default:
		return fmt.Sprint(val)
	}
}

func toMap(entity any) (map[string]any, bool) {
	payload, err := json.Marshal(entity)
	if err != nil {
		return nil, false
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return nil, false
	}
	return m, true
}
