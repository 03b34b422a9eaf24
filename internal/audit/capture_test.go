package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type memorySink struct {
	records []*Record
	tables  []string
	err     error
}

func (s *memorySink) Append(ctx context.Context, table string, rec *Record) error {
	if s.err != nil {
		return s.err
	}
	s.tables = append(s.tables, table)
	s.records = append(s.records, rec)
	return nil
}

func leadSubject() Subject {
	return Subject{
		Table:       "lead_history",
		Entity:      "Lead",
		ID:          uuid.New(),
		Tenant:      uuid.New(),
		StatusField: "status",
		ActiveField: "is_active",
	}
}

func TestRecordCreate(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, zap.NewNop())
	sub := leadSubject()
	actor := uuid.New()

	rec.RecordCreate(context.Background(), sub, &actor)

	require.Len(t, sink.records, 1)
	got := sink.records[0]
	assert.Equal(t, "lead_history", sink.tables[0])
	assert.Equal(t, ActionCreated, got.Action)
	assert.Equal(t, sub.ID, got.SubjectID)
	assert.Equal(t, sub.Tenant, got.TenantID)
	assert.Equal(t, actor, *got.ChangedBy)
	assert.Contains(t, *got.Changes["all_fields"].New, "created")
}

func TestRecordSave_NoChangesAppendsNothing(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, zap.NewNop())

	snap := map[string]FieldValue{"name": StringField("Acme"), "is_active": BoolField(true)}
	rec.RecordSave(context.Background(), leadSubject(), snap, snap, []string{"name", "is_active"}, nil)

	assert.Empty(t, sink.records)
}

func TestRecordSave_SingleFieldUpdate(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, zap.NewNop())

	old := map[string]FieldValue{"email": StringField("a@x.test")}
	new := map[string]FieldValue{"email": StringField("b@x.test")}
	rec.RecordSave(context.Background(), leadSubject(), old, new, []string{"email"}, nil)

	require.Len(t, sink.records, 1)
	got := sink.records[0]
	assert.Equal(t, ActionUpdated, got.Action)
	assert.Equal(t, "email", *got.FieldName)
	assert.Equal(t, "a@x.test", *got.Changes["email"].Old)
	assert.Nil(t, got.ChangedBy)
}

func TestRecordSave_FieldNameCollapsesPastThree(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, zap.NewNop())

	old := map[string]FieldValue{}
	new := map[string]FieldValue{}
	tracked := []string{"name", "email", "phone", "city"}
	for _, f := range tracked {
		old[f] = StringField("old")
		new[f] = StringField("new")
	}
	rec.RecordSave(context.Background(), leadSubject(), old, new, tracked, nil)

	require.Len(t, sink.records, 1)
	assert.Equal(t, "4 fields", *sink.records[0].FieldName)
}

func TestRecordSave_ThreeFieldsListedSorted(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, zap.NewNop())

	old := map[string]FieldValue{
		"phone": StringField("1"), "email": StringField("a"), "city": StringField("x"),
	}
	new := map[string]FieldValue{
		"phone": StringField("2"), "email": StringField("b"), "city": StringField("y"),
	}
	rec.RecordSave(context.Background(), leadSubject(), old, new, []string{"phone", "email", "city"}, nil)

	require.Len(t, sink.records, 1)
	assert.Equal(t, "city, email, phone", *sink.records[0].FieldName)
}

func TestRecordSave_StatusChangeSplitsOut(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, zap.NewNop())

	old := map[string]FieldValue{"status": StringField("new"), "phone": StringField("1")}
	new := map[string]FieldValue{"status": StringField("contacted"), "phone": StringField("2")}
	rec.RecordSave(context.Background(), leadSubject(), old, new, []string{"status", "phone"}, nil)

	require.Len(t, sink.records, 2)
	assert.Equal(t, ActionStatusChanged, sink.records[0].Action)
	assert.Equal(t, "status", *sink.records[0].FieldName)
	assert.Equal(t, "contacted", *sink.records[0].NewValue)
	assert.Equal(t, ActionUpdated, sink.records[1].Action)
	assert.Equal(t, "phone", *sink.records[1].FieldName)
}

func TestRecordSave_SoftDeleteTakesPrecedence(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, zap.NewNop())

	old := map[string]FieldValue{
		"is_active": BoolField(true),
		"status":    StringField("qualified"),
		"phone":     StringField("1"),
	}
	new := map[string]FieldValue{
		"is_active": BoolField(false),
		"status":    StringField("lost"),
		"phone":     StringField("2"),
	}
	rec.RecordSave(context.Background(), leadSubject(), old, new, []string{"is_active", "status", "phone"}, nil)

	require.Len(t, sink.records, 3)
	assert.Equal(t, ActionDeleted, sink.records[0].Action)
	assert.Equal(t, ActionStatusChanged, sink.records[1].Action)
	assert.Equal(t, ActionUpdated, sink.records[2].Action)
}

func TestRecordSave_ReactivationIsAnOrdinaryUpdate(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(sink, zap.NewNop())

	old := map[string]FieldValue{"is_active": BoolField(false)}
	new := map[string]FieldValue{"is_active": BoolField(true)}
	rec.RecordSave(context.Background(), leadSubject(), old, new, []string{"is_active"}, nil)

	require.Len(t, sink.records, 1)
	assert.Equal(t, ActionUpdated, sink.records[0].Action)
}

func TestRecordSave_SinkErrorsAreSwallowed(t *testing.T) {
	sink := &memorySink{err: errors.New("database unavailable")}
	rec := NewRecorder(sink, zap.NewNop())

	old := map[string]FieldValue{"email": StringField("a")}
	new := map[string]FieldValue{"email": StringField("b")}

	assert.NotPanics(t, func() {
		rec.RecordSave(context.Background(), leadSubject(), old, new, []string{"email"}, nil)
	})
}
