package audit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Action describes what a history record captured.
type Action string

const (
	ActionCreated       Action = "created"
	ActionUpdated       Action = "updated"
	ActionStatusChanged Action = "status_changed"
	ActionDeleted       Action = "deleted"
)

// Record is one append-only history row, always co-located with its subject
// entity's database.
type Record struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	SubjectID uuid.UUID  `json:"subject_id" db:"subject_id"`
	TenantID  uuid.UUID  `json:"tenant_id" db:"tenant_id"`
	ChangedBy *uuid.UUID `json:"changed_by" db:"changed_by"`
	Action    Action     `json:"action" db:"action"`
	FieldName *string    `json:"field_name" db:"field_name"`
	OldValue  *string    `json:"old_value" db:"old_value"`
	NewValue  *string    `json:"new_value" db:"new_value"`
	Changes   Changes    `json:"changes" db:"changes"`
	Notes     *string    `json:"notes" db:"notes"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// Subject identifies the audited entity and which of its fields carry
// special meaning.
type Subject struct {
	// Table is the history table the records are appended to.
	Table string
	// Entity names the subject kind in human-readable notes ("Lead").
	Entity string
	ID     uuid.UUID
	Tenant uuid.UUID
	// StatusField, when non-empty, splits that field's changes into a
	// dedicated status_changed record.
	StatusField string
	// ActiveField is the soft-delete flag; a true→false transition emits a
	// deleted record.
	ActiveField string
}

// Sink appends history records. Implementations route the write to the same
// physical database as the subject entity.
type Sink interface {
	Append(ctx context.Context, table string, rec *Record) error
}

// Recorder captures entity changes after the primary write is durable.
// Every failure inside the recorder is logged and swallowed; history capture
// must never fail or roll back the write it describes.
type Recorder struct {
	sink Sink
	log  *zap.Logger
}

func NewRecorder(sink Sink, log *zap.Logger) *Recorder {
	return &Recorder{sink: sink, log: log}
}

// RecordCreate appends a single created record with a sentinel payload.
// actor falls back to the entity's creator only on this path.
func (r *Recorder) RecordCreate(ctx context.Context, sub Subject, actor *uuid.UUID) {
	rec := r.newRecord(sub, ActionCreated, actor)
	rec.Changes = Changes{"all_fields": {New: stringPtr(sub.Entity + " created")}}
	rec.Notes = stringPtr(sub.Entity + " was created")
	r.append(ctx, sub, rec)
}

// RecordSave diffs the tracked fields of the old and new snapshots and
// appends the resulting records: a deleted record when the soft-delete flag
// flipped to inactive, a status_changed record when the designated status
// field moved, then one updated record with whatever remains. A save that
// changed nothing appends nothing.
func (r *Recorder) RecordSave(ctx context.Context, sub Subject, old, new map[string]FieldValue, tracked []string, actor *uuid.UUID) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("history capture panicked",
				zap.String("entity", sub.Entity),
				zap.String("subject_id", sub.ID.String()),
				zap.Any("panic", p))
		}
	}()

	changes := Diff(old, new, tracked)
	if len(changes) == 0 {
		return
	}

	remaining := Changes{}
	for name, ch := range changes {
		remaining[name] = ch
	}

	if ch, ok := remaining[sub.ActiveField]; ok && sub.ActiveField != "" {
		if ch.New != nil && *ch.New == strconv.FormatBool(false) {
			rec := r.newRecord(sub, ActionDeleted, actor)
			rec.FieldName = stringPtr(sub.ActiveField)
			rec.OldValue = ch.Old
			rec.NewValue = ch.New
			rec.Changes = changes
			rec.Notes = stringPtr(sub.Entity + " was soft-deleted")
			r.append(ctx, sub, rec)
			delete(remaining, sub.ActiveField)
		}
	}

	if sub.StatusField != "" {
		if ch, ok := remaining[sub.StatusField]; ok {
			rec := r.newRecord(sub, ActionStatusChanged, actor)
			rec.FieldName = stringPtr(sub.StatusField)
			rec.OldValue = ch.Old
			rec.NewValue = ch.New
			rec.Changes = changes
			rec.Notes = stringPtr(fmt.Sprintf("Status changed from %s to %s", deref(ch.Old), deref(ch.New)))
			r.append(ctx, sub, rec)
			delete(remaining, sub.StatusField)
		}
	}

	if len(remaining) == 0 {
		return
	}

	names := make([]string, 0, len(remaining))
	for name := range remaining {
		names = append(names, name)
	}
	sort.Strings(names)

	fieldName := strings.Join(names, ", ")
	if len(names) > 3 {
		fieldName = fmt.Sprintf("%d fields", len(names))
	}

	rec := r.newRecord(sub, ActionUpdated, actor)
	rec.FieldName = stringPtr(fieldName)
	rec.Changes = remaining
	rec.Notes = stringPtr("Updated fields: " + strings.Join(names, ", "))
	r.append(ctx, sub, rec)
}

func (r *Recorder) newRecord(sub Subject, action Action, actor *uuid.UUID) *Record {
	return &Record{
		ID:        uuid.New(),
		SubjectID: sub.ID,
		TenantID:  sub.Tenant,
		ChangedBy: actor,
		Action:    action,
		CreatedAt: time.Now(),
	}
}

func (r *Recorder) append(ctx context.Context, sub Subject, rec *Record) {
	if err := r.sink.Append(ctx, sub.Table, rec); err != nil {
		r.log.Error("failed to append history record",
			zap.String("table", sub.Table),
			zap.String("subject_id", sub.ID.String()),
			zap.String("action", string(rec.Action)),
			zap.Error(err))
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
