package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"dispatch-service/internal/db/dbtest"
	"dispatch-service/internal/geocode"
	"dispatch-service/internal/model"
	"dispatch-service/internal/repository"
	"dispatch-service/internal/storage"
)

var dispatcher = model.Principal{UserID: uuid.New(), Role: model.UserRoleDispatcher}

type stubGeocoder struct {
	mu    sync.Mutex
	calls []string
	point orb.Point
	err   error
}

func (g *stubGeocoder) Lookup(_ context.Context, address string) (orb.Point, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, address)
	return g.point, g.err
}

func (g *stubGeocoder) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type testServices struct {
	db          *gorm.DB
	store       *repository.Store
	operations  *OperationService
	assignments *AssignmentService
	journal     *JournalService
	fleet       *FleetService
	settings    *SettingsService
	geocoder    *stubGeocoder
	clock       time.Time
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	gormDB := dbtest.Open(t)
	store := repository.NewStore(gormDB)
	files, err := storage.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("file store: %v", err)
	}
	geo := &stubGeocoder{point: orb.Point{13.405, 52.52}}
	log := zerolog.Nop()

	ts := &testServices{
		db:       gormDB,
		store:    store,
		geocoder: geo,
		clock:    time.Date(2024, 5, 10, 8, 0, 0, 0, time.UTC),
	}
	now := func() time.Time {
		ts.clock = ts.clock.Add(time.Second)
		return ts.clock
	}

	ts.journal = NewJournalService(store)
	ts.journal.now = now
	ts.operations = NewOperationService(store, ts.journal)
	ts.operations.now = now
	ts.assignments = NewAssignmentService(store, ts.journal, geo, files, log)
	ts.assignments.now = now
	ts.fleet = NewFleetService(store, geo, log)
	ts.settings = NewSettingsService(store)
	return ts
}

func (ts *testServices) createOperation(t *testing.T, title string) *model.Operation {
	t.Helper()
	op, err := ts.operations.Create(context.Background(), dispatcher, CreateOperationInput{Title: title})
	if err != nil {
		t.Fatalf("create operation %q: %v", title, err)
	}
	return op
}

func (ts *testServices) createAssignment(t *testing.T, operationID *uuid.UUID, title string) *model.AssignmentView {
	t.Helper()
	a, err := ts.assignments.Create(context.Background(), dispatcher, CreateAssignmentInput{
		OperationID: operationID,
		Title:       title,
	})
	if err != nil {
		t.Fatalf("create assignment %q: %v", title, err)
	}
	return a
}

func (ts *testServices) createVehicle(t *testing.T, callsign string) *model.VehicleView {
	t.Helper()
	v, err := ts.fleet.CreateVehicle(context.Background(), dispatcher, VehicleInput{Callsign: &callsign})
	if err != nil {
		t.Fatalf("create vehicle %q: %v", callsign, err)
	}
	return v
}

func (ts *testServices) journalCount(t *testing.T, operationID uuid.UUID) int64 {
	t.Helper()
	count, err := ts.store.Journal().CountByOperation(context.Background(), operationID)
	if err != nil {
		t.Fatalf("count journal: %v", err)
	}
	return count
}

func (ts *testServices) links(t *testing.T, assignmentID uuid.UUID) []model.VehicleAssignment {
	t.Helper()
	a, err := ts.store.Assignments().GetByID(context.Background(), assignmentID)
	if err != nil {
		t.Fatalf("load assignment: %v", err)
	}
	return a.Vehicles
}

// dropJournal makes every journal write fail from here on.
func (ts *testServices) dropJournal(t *testing.T) {
	t.Helper()
	if err := ts.db.Exec("DROP TABLE journal_entries").Error; err != nil {
		t.Fatalf("drop journal table: %v", err)
	}
}

func (ts *testServices) sequenceValue(t *testing.T, scope string) (int, bool) {
	t.Helper()
	var seq model.NumberSequence
	err := ts.db.Take(&seq, "scope = ?", scope).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, false
	}
	if err != nil {
		t.Fatalf("load sequence %s: %v", scope, err)
	}
	return seq.Value, true
}

func TestOperationNumbersPerYear(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	first := ts.createOperation(t, "Sturm")
	if first.Number != "2024-001" {
		t.Fatalf("expected 2024-001, got %s", first.Number)
	}
	if _, err := ts.operations.Close(ctx, dispatcher, first.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	second := ts.createOperation(t, "Brand")
	if second.Number != "2024-002" {
		t.Fatalf("expected 2024-002, got %s", second.Number)
	}
	if _, err := ts.operations.Close(ctx, dispatcher, second.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	ts.clock = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	third := ts.createOperation(t, "Neujahr")
	if third.Number != "2025-001" {
		t.Fatalf("expected 2025-001, got %s", third.Number)
	}
}

func TestOperationNumberSeededFromExistingRows(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	legacy := &model.Operation{
		Number:    "2024-999",
		Title:     "Altbestand",
		Status:    model.OperationStatusClosed,
		CreatedAt: ts.clock,
	}
	if err := ts.store.Operations().Create(ctx, legacy); err != nil {
		t.Fatalf("seed legacy operation: %v", err)
	}

	op := ts.createOperation(t, "Nach Migration")
	if op.Number != "2024-1000" {
		t.Fatalf("expected 2024-1000, got %s", op.Number)
	}
}

func TestCreateOperationWhileActiveConflicts(t *testing.T) {
	ts := newTestServices(t)
	active := ts.createOperation(t, "Sturm")

	_, err := ts.operations.Create(context.Background(), dispatcher, CreateOperationInput{Title: "Zweite Lage"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	current, err := ts.operations.Active(context.Background())
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if current == nil || current.ID != active.ID {
		t.Fatalf("expected %s to stay active", active.Number)
	}
}

func TestCreateOperationRequiresTitle(t *testing.T) {
	ts := newTestServices(t)
	_, err := ts.operations.Create(context.Background(), dispatcher, CreateOperationInput{Title: "   "})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestCloseOperation(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	op := ts.createOperation(t, "Sturm")

	closed, err := ts.operations.Close(ctx, dispatcher, op.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != model.OperationStatusClosed || closed.ClosedAt == nil {
		t.Fatalf("expected closed operation with closed_at, got %+v", closed)
	}

	active, err := ts.operations.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active != nil {
		t.Fatalf("expected no active operation, got %s", active.Number)
	}

	_, err = ts.operations.Close(ctx, dispatcher, op.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second close, got %v", err)
	}
}

func TestAssignmentNumbersPerOperation(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	first := ts.createOperation(t, "Sturm")
	a1 := ts.createAssignment(t, nil, "Baum auf Straße")
	a2 := ts.createAssignment(t, &first.ID, "Keller voll")
	if a1.Number != "2024-001-001" || a2.Number != "2024-001-002" {
		t.Fatalf("unexpected numbers %s, %s", a1.Number, a2.Number)
	}
	if a1.Status != model.AssignmentStatusOpen {
		t.Fatalf("expected open status, got %s", a1.Status)
	}

	if _, err := ts.operations.Close(ctx, dispatcher, first.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	ts.createOperation(t, "Brand")
	b1 := ts.createAssignment(t, nil, "Löschangriff")
	if b1.Number != "2024-002-001" {
		t.Fatalf("expected independent counter, got %s", b1.Number)
	}
}

func TestCreateAssignmentWithoutActiveOperation(t *testing.T) {
	ts := newTestServices(t)
	_, err := ts.assignments.Create(context.Background(), dispatcher, CreateAssignmentInput{Title: "x"})
	if !errors.Is(err, ErrNoActiveOperation) {
		t.Fatalf("expected ErrNoActiveOperation, got %v", err)
	}
}

func TestCreateAssignmentCoordinates(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.createOperation(t, "Sturm")

	lat, lon := 48.137, 11.575
	explicit, err := ts.assignments.Create(ctx, dispatcher, CreateAssignmentInput{
		Title:           "Explizit",
		LocationAddress: "Marienplatz 1, München",
		Latitude:        &lat,
		Longitude:       &lon,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if *explicit.Latitude != lat || *explicit.Longitude != lon {
		t.Fatalf("explicit coordinates overwritten: %v/%v", *explicit.Latitude, *explicit.Longitude)
	}
	if ts.geocoder.callCount() != 0 {
		t.Fatalf("geocoder must not run when coordinates are given")
	}

	geocoded, err := ts.assignments.Create(ctx, dispatcher, CreateAssignmentInput{
		Title:           "Adresse",
		LocationAddress: "Alexanderplatz 1, Berlin",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if geocoded.Latitude == nil || *geocoded.Latitude != 52.52 || *geocoded.Longitude != 13.405 {
		t.Fatalf("expected geocoded coordinates, got %v/%v", geocoded.Latitude, geocoded.Longitude)
	}

	ts.geocoder.err = errors.New("timeout")
	failed, err := ts.assignments.Create(ctx, dispatcher, CreateAssignmentInput{
		Title:           "Geocoder down",
		LocationAddress: "Irgendwo",
	})
	if err != nil {
		t.Fatalf("geocoder failure must not fail the write: %v", err)
	}
	if failed.Latitude != nil || failed.Longitude != nil {
		t.Fatalf("expected no coordinates on geocoder failure")
	}

	_, err = ts.assignments.Create(ctx, dispatcher, CreateAssignmentInput{Title: "Halb", Latitude: &lat})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for half a coordinate pair, got %v", err)
	}
}

func TestUpdateAssignmentAddress(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.createOperation(t, "Sturm")
	a := ts.createAssignment(t, nil, "Baum")

	address := "Alexanderplatz 1, Berlin"
	updated, err := ts.assignments.Update(ctx, dispatcher, a.ID, UpdateAssignmentInput{LocationAddress: &address})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.LocationAddress != address || updated.Latitude == nil || *updated.Latitude != 52.52 {
		t.Fatalf("expected re-geocoded address, got %+v", updated)
	}

	lat, lon := 1.0, 2.0
	other := "Somewhere else"
	calls := ts.geocoder.callCount()
	updated, err = ts.assignments.Update(ctx, dispatcher, a.ID, UpdateAssignmentInput{
		LocationAddress: &other,
		Latitude:        &lat,
		Longitude:       &lon,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if *updated.Latitude != 1 || *updated.Longitude != 2 {
		t.Fatalf("explicit coordinates must win, got %v/%v", *updated.Latitude, *updated.Longitude)
	}
	if ts.geocoder.callCount() != calls {
		t.Fatalf("geocoder must not run when coordinates are given")
	}

	ts.geocoder.err = errors.New("unreachable")
	third := "Dritte Adresse"
	updated, err = ts.assignments.Update(ctx, dispatcher, a.ID, UpdateAssignmentInput{LocationAddress: &third})
	if err != nil {
		t.Fatalf("update with failing geocoder: %v", err)
	}
	if updated.LocationAddress != third || *updated.Latitude != 1 {
		t.Fatalf("failed lookup must keep previous coordinates, got %+v", updated)
	}
}

func TestAssignVehicleOrderIsPerVehicle(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.createOperation(t, "Sturm")
	a := ts.createAssignment(t, nil, "A")
	b := ts.createAssignment(t, nil, "B")
	v1 := ts.createVehicle(t, "Florian 1/44-1")

	got, err := ts.assignments.AssignVehicle(ctx, dispatcher, a.ID, v1.ID)
	if err != nil {
		t.Fatalf("assign to A: %v", err)
	}
	if got.Status != model.AssignmentStatusAssigned {
		t.Fatalf("expected assigned, got %s", got.Status)
	}
	if len(got.Vehicles) != 1 || got.Vehicles[0] != "Florian 1/44-1" {
		t.Fatalf("unexpected vehicles %v", got.Vehicles)
	}
	if links := ts.links(t, a.ID); len(links) != 1 || links[0].Order != 1 {
		t.Fatalf("expected order 1 on A, got %+v", links)
	}

	if _, err := ts.assignments.AssignVehicle(ctx, dispatcher, b.ID, v1.ID); err != nil {
		t.Fatalf("assign to B: %v", err)
	}
	if links := ts.links(t, b.ID); len(links) != 1 || links[0].Order != 2 {
		t.Fatalf("expected order 2 on B, got %+v", links)
	}
}

func TestAssignVehicleTwiceConflicts(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	op := ts.createOperation(t, "Sturm")
	a := ts.createAssignment(t, nil, "A")
	v1 := ts.createVehicle(t, "V1")

	if _, err := ts.assignments.AssignVehicle(ctx, dispatcher, a.ID, v1.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	before := ts.journalCount(t, op.ID)

	_, err := ts.assignments.AssignVehicle(ctx, dispatcher, a.ID, v1.ID)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	if links := ts.links(t, a.ID); len(links) != 1 {
		t.Fatalf("expected exactly one link, got %d", len(links))
	}
	if after := ts.journalCount(t, op.ID); after != before {
		t.Fatalf("rejected assign wrote journal: %d -> %d", before, after)
	}
}

func TestAssignMissingVehicle(t *testing.T) {
	ts := newTestServices(t)
	ts.createOperation(t, "Sturm")
	a := ts.createAssignment(t, nil, "A")

	_, err := ts.assignments.AssignVehicle(context.Background(), dispatcher, a.ID, uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUnassignVehicle(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.createOperation(t, "Sturm")
	a := ts.createAssignment(t, nil, "A")
	v1 := ts.createVehicle(t, "V1")
	v2 := ts.createVehicle(t, "V2")

	for _, v := range []uuid.UUID{v1.ID, v2.ID} {
		if _, err := ts.assignments.AssignVehicle(ctx, dispatcher, a.ID, v); err != nil {
			t.Fatalf("assign: %v", err)
		}
	}

	got, err := ts.assignments.UnassignVehicle(ctx, dispatcher, a.ID, v1.ID)
	if err != nil {
		t.Fatalf("unassign v1: %v", err)
	}
	if got.Status != model.AssignmentStatusAssigned {
		t.Fatalf("expected assigned while V2 remains, got %s", got.Status)
	}

	got, err = ts.assignments.UnassignVehicle(ctx, dispatcher, a.ID, v2.ID)
	if err != nil {
		t.Fatalf("unassign v2: %v", err)
	}
	if got.Status != model.AssignmentStatusOpen {
		t.Fatalf("expected revert to open, got %s", got.Status)
	}

	_, err = ts.assignments.UnassignVehicle(ctx, dispatcher, a.ID, v2.ID)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing link, got %v", err)
	}
}

func TestCompletedAssignmentStaysCompleted(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.createOperation(t, "Sturm")
	a := ts.createAssignment(t, nil, "A")
	v1 := ts.createVehicle(t, "V1")

	if _, err := ts.assignments.AssignVehicle(ctx, dispatcher, a.ID, v1.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	done, err := ts.assignments.Complete(ctx, dispatcher, a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != model.AssignmentStatusCompleted || done.CompletedAt == nil {
		t.Fatalf("expected completed with timestamp, got %+v", done)
	}

	got, err := ts.assignments.UnassignVehicle(ctx, dispatcher, a.ID, v1.ID)
	if err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if got.Status != model.AssignmentStatusCompleted {
		t.Fatalf("unassign must not reopen, got %s", got.Status)
	}

	v2 := ts.createVehicle(t, "V2")
	got, err = ts.assignments.AssignVehicle(ctx, dispatcher, a.ID, v2.ID)
	if err != nil {
		t.Fatalf("assign after completion: %v", err)
	}
	if got.Status != model.AssignmentStatusCompleted {
		t.Fatalf("assign must not leave completed, got %s", got.Status)
	}

	_, err = ts.assignments.Complete(ctx, dispatcher, a.ID)
	if !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState on second complete, got %v", err)
	}
}

func TestCompleteFromOpen(t *testing.T) {
	ts := newTestServices(t)
	ts.createOperation(t, "Sturm")
	a := ts.createAssignment(t, nil, "A")

	done, err := ts.assignments.Complete(context.Background(), dispatcher, a.ID)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if done.Status != model.AssignmentStatusCompleted {
		t.Fatalf("expected completed, got %s", done.Status)
	}
}

func TestClosedOperationRejectsWrites(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	op := ts.createOperation(t, "Sturm")
	a := ts.createAssignment(t, nil, "A")
	v1 := ts.createVehicle(t, "V1")
	v2 := ts.createVehicle(t, "V2")
	if _, err := ts.assignments.AssignVehicle(ctx, dispatcher, a.ID, v1.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	note, err := ts.journal.Append(ctx, dispatcher, AppendJournalInput{Content: "Lagemeldung"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := ts.operations.Close(ctx, dispatcher, op.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	before := ts.journalCount(t, op.ID)

	title := "neu"
	content := "geändert"
	writes := map[string]func() error{
		"update operation": func() error {
			_, err := ts.operations.Update(ctx, dispatcher, op.ID, UpdateOperationInput{Title: &title})
			return err
		},
		"create assignment": func() error {
			_, err := ts.assignments.Create(ctx, dispatcher, CreateAssignmentInput{OperationID: &op.ID, Title: "B"})
			return err
		},
		"update assignment": func() error {
			_, err := ts.assignments.Update(ctx, dispatcher, a.ID, UpdateAssignmentInput{Title: &title})
			return err
		},
		"complete assignment": func() error {
			_, err := ts.assignments.Complete(ctx, dispatcher, a.ID)
			return err
		},
		"assign vehicle": func() error {
			_, err := ts.assignments.AssignVehicle(ctx, dispatcher, a.ID, v2.ID)
			return err
		},
		"unassign vehicle": func() error {
			_, err := ts.assignments.UnassignVehicle(ctx, dispatcher, a.ID, v1.ID)
			return err
		},
		"attach document": func() error {
			_, err := ts.assignments.AttachDocument(ctx, dispatcher, a.ID, "plan.pdf", strings.NewReader("%PDF"))
			return err
		},
		"append journal": func() error {
			_, err := ts.journal.Append(ctx, dispatcher, AppendJournalInput{OperationID: &op.ID, Content: "zu spät"})
			return err
		},
		"update journal": func() error {
			_, err := ts.journal.Update(ctx, dispatcher, note.ID, UpdateJournalInput{Content: &content})
			return err
		},
		"delete journal": func() error {
			return ts.journal.Delete(ctx, dispatcher, note.ID)
		},
	}
	for name, write := range writes {
		t.Run(name, func(t *testing.T) {
			err := write()
			if !errors.Is(err, ErrOperationClosed) || !errors.Is(err, ErrInvalidState) {
				t.Fatalf("expected ErrOperationClosed, got %v", err)
			}
		})
	}

	if after := ts.journalCount(t, op.ID); after != before {
		t.Fatalf("journal changed after close: %d -> %d", before, after)
	}
	got, err := ts.assignments.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.AssignmentStatusAssigned || got.Title != "A" || len(got.Vehicles) != 1 {
		t.Fatalf("assignment changed after close: %+v", got)
	}
}

func TestOneJournalEntryPerAction(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	op := ts.createOperation(t, "Sturm")
	v1 := ts.createVehicle(t, "HLF 20")

	expectEntry := func(step, entryType, content string) {
		t.Helper()
		entries, err := ts.journal.List(ctx, JournalListOptions{OperationID: &op.ID})
		if err != nil {
			t.Fatalf("%s: list: %v", step, err)
		}
		last := entries[len(entries)-1]
		if last.EntryType != entryType || last.Content != content {
			t.Fatalf("%s: unexpected last entry %s %q", step, last.EntryType, last.Content)
		}
		if last.AuthorID == nil || *last.AuthorID != dispatcher.UserID {
			t.Fatalf("%s: expected author to be recorded", step)
		}
	}

	if n := ts.journalCount(t, op.ID); n != 1 {
		t.Fatalf("expected 1 entry after create, got %d", n)
	}
	expectEntry("create operation", model.EntryTypeStatusChange, `Einsatzlage "Sturm" erstellt`)

	a := ts.createAssignment(t, nil, "Baum")
	if n := ts.journalCount(t, op.ID); n != 2 {
		t.Fatalf("expected 2 entries, got %d", n)
	}
	expectEntry("create assignment", model.EntryTypeStatusChange, "Auftrag 2024-001-001 erstellt: Baum")

	if _, err := ts.assignments.AssignVehicle(ctx, dispatcher, a.ID, v1.ID); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if n := ts.journalCount(t, op.ID); n != 3 {
		t.Fatalf("expected 3 entries, got %d", n)
	}
	expectEntry("assign", model.EntryTypeVehicleAssigned, "Fahrzeug HLF 20 zu Auftrag 2024-001-001 zugewiesen")

	if _, err := ts.assignments.UnassignVehicle(ctx, dispatcher, a.ID, v1.ID); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	if n := ts.journalCount(t, op.ID); n != 4 {
		t.Fatalf("expected 4 entries, got %d", n)
	}
	expectEntry("unassign", model.EntryTypeVehicleUnassigned, "Fahrzeug HLF 20 von Auftrag 2024-001-001 entfernt")

	if _, err := ts.assignments.Complete(ctx, dispatcher, a.ID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	if n := ts.journalCount(t, op.ID); n != 5 {
		t.Fatalf("expected 5 entries, got %d", n)
	}
	expectEntry("complete", model.EntryTypeStatusChange, "Auftrag 2024-001-001 abgeschlossen")

	title := "Baum auf Fahrbahn"
	if _, err := ts.assignments.Update(ctx, dispatcher, a.ID, UpdateAssignmentInput{Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if n := ts.journalCount(t, op.ID); n != 5 {
		t.Fatalf("update must not journal, got %d entries", n)
	}

	if _, err := ts.operations.Close(ctx, dispatcher, op.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	if n := ts.journalCount(t, op.ID); n != 6 {
		t.Fatalf("expected 6 entries, got %d", n)
	}
	expectEntry("close", model.EntryTypeStatusChange, "Einsatzlage geschlossen")
}

func TestAttachDocument(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	op := ts.createOperation(t, "Sturm")
	a := ts.createAssignment(t, nil, "A")
	before := ts.journalCount(t, op.ID)

	_, err := ts.assignments.AttachDocument(ctx, dispatcher, a.ID, "lageplan.docx", strings.NewReader("x"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for docx, got %v", err)
	}

	got, err := ts.assignments.AttachDocument(ctx, dispatcher, a.ID, "Lageplan.PDF", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	if got.DocumentPath == nil || *got.DocumentPath != "2024-001-001_Lageplan.PDF" {
		t.Fatalf("unexpected document path %v", got.DocumentPath)
	}
	if got.Status != model.AssignmentStatusOpen {
		t.Fatalf("attach must not change status, got %s", got.Status)
	}
	if after := ts.journalCount(t, op.ID); after != before {
		t.Fatalf("attach must not journal: %d -> %d", before, after)
	}

	rc, name, err := ts.assignments.OpenDocument(ctx, a.ID)
	if err != nil {
		t.Fatalf("open document: %v", err)
	}
	defer rc.Close()
	if name != "2024-001-001_Lageplan.PDF" {
		t.Fatalf("unexpected name %q", name)
	}
}

func TestJournalAppend(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()

	if _, err := ts.journal.Append(ctx, dispatcher, AppendJournalInput{Content: "x"}); !errors.Is(err, ErrNoActiveOperation) {
		t.Fatalf("expected ErrNoActiveOperation, got %v", err)
	}
	entries, err := ts.journal.List(ctx, JournalListOptions{})
	if err != nil || len(entries) != 0 {
		t.Fatalf("expected empty list without active operation, got %d (%v)", len(entries), err)
	}

	first := ts.createOperation(t, "Sturm")
	a := ts.createAssignment(t, nil, "A")

	entry, err := ts.journal.Append(ctx, dispatcher, AppendJournalInput{AssignmentID: &a.ID, Content: "  Rückmeldung  "})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if entry.EntryType != model.EntryTypeNote || entry.Content != "Rückmeldung" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.AssignmentNumber == nil || *entry.AssignmentNumber != a.Number {
		t.Fatalf("expected assignment number on view")
	}

	if _, err := ts.journal.Append(ctx, dispatcher, AppendJournalInput{Content: " "}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for blank content, got %v", err)
	}

	if _, err := ts.operations.Close(ctx, dispatcher, first.ID); err != nil {
		t.Fatalf("close: %v", err)
	}
	ts.createOperation(t, "Brand")
	_, err = ts.journal.Append(ctx, dispatcher, AppendJournalInput{AssignmentID: &a.ID, Content: "falsche Lage"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for foreign assignment, got %v", err)
	}

	byAssignment, err := ts.journal.List(ctx, JournalListOptions{AssignmentID: &a.ID})
	if err != nil {
		t.Fatalf("list by assignment: %v", err)
	}
	if len(byAssignment) != 2 {
		t.Fatalf("expected 2 entries for assignment, got %d", len(byAssignment))
	}
	for i := 1; i < len(byAssignment); i++ {
		if byAssignment[i].Timestamp.Before(byAssignment[i-1].Timestamp) {
			t.Fatalf("entries not in timestamp order")
		}
	}

	active, err := ts.journal.List(ctx, JournalListOptions{})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 || active[0].Content != `Einsatzlage "Brand" erstellt` {
		t.Fatalf("expected only the new operation's entry, got %+v", active)
	}
}

func TestJournalUpdateAndDelete(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	op := ts.createOperation(t, "Sturm")

	entry, err := ts.journal.Append(ctx, dispatcher, AppendJournalInput{Content: "Erstmeldung", EntryType: model.EntryTypeDecision})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	content := "Erstmeldung korrigiert"
	updated, err := ts.journal.Update(ctx, dispatcher, entry.ID, UpdateJournalInput{Content: &content})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Content != content || updated.EntryType != model.EntryTypeDecision {
		t.Fatalf("unexpected entry %+v", updated)
	}

	if err := ts.journal.Delete(ctx, dispatcher, entry.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if n := ts.journalCount(t, op.ID); n != 1 {
		t.Fatalf("expected only the creation entry, got %d", n)
	}
	if err := ts.journal.Delete(ctx, dispatcher, entry.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestJournalExport(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	op := ts.createOperation(t, "Sturm")
	ts.createAssignment(t, nil, "A")

	data, err := ts.journal.Export(ctx, op.ID, "XLSX")
	if err != nil {
		t.Fatalf("export xlsx: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected xlsx bytes")
	}
	data, err = ts.journal.ExportByNumber(ctx, op.Number, "pdf")
	if err != nil {
		t.Fatalf("export pdf: %v", err)
	}
	if !strings.HasPrefix(string(data), "%PDF-") {
		t.Fatal("expected pdf output")
	}
	if _, err := ts.journal.Export(ctx, op.ID, "csv"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for csv, got %v", err)
	}
}

func TestViewerCannotWrite(t *testing.T) {
	ts := newTestServices(t)
	viewer := model.Principal{UserID: uuid.New(), Role: model.UserRoleViewer}

	_, err := ts.operations.Create(context.Background(), viewer, CreateOperationInput{Title: "x"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestExternalPrincipalHasNoAuthor(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	op := ts.createOperation(t, "Sturm")

	external := model.Principal{Role: model.UserRoleExternal}
	if _, err := ts.assignments.Create(ctx, external, CreateAssignmentInput{Title: "Alarm"}); err != nil {
		t.Fatalf("external create: %v", err)
	}
	entries, err := ts.journal.List(ctx, JournalListOptions{OperationID: &op.ID})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if last := entries[len(entries)-1]; last.AuthorID != nil {
		t.Fatalf("expected no author for external entry")
	}
}

var _ geocode.Geocoder = (*stubGeocoder)(nil)

func TestCreateOperationRollsBackWhenJournalFails(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.dropJournal(t)

	if _, err := ts.operations.Create(ctx, dispatcher, CreateOperationInput{Title: "Sturm"}); err == nil {
		t.Fatal("expected create to fail without journal")
	}

	operations, err := ts.operations.List(ctx)
	if err != nil {
		t.Fatalf("list operations: %v", err)
	}
	if len(operations) != 0 {
		t.Fatalf("operation persisted: %+v", operations)
	}
	active, err := ts.operations.Active(ctx)
	if err != nil {
		t.Fatalf("active: %v", err)
	}
	if active != nil {
		t.Fatalf("active pointer set to %s", active.Number)
	}
	if value, ok := ts.sequenceValue(t, "operation:2024"); ok {
		t.Fatalf("sequence advanced to %d", value)
	}
}

func TestCreateAssignmentRollsBackWhenJournalFails(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	op := ts.createOperation(t, "Sturm")
	ts.createAssignment(t, nil, "Baum")
	scope := "assignment:" + op.ID.String()
	before, _ := ts.sequenceValue(t, scope)
	ts.dropJournal(t)

	if _, err := ts.assignments.Create(ctx, dispatcher, CreateAssignmentInput{Title: "Keller"}); err == nil {
		t.Fatal("expected create to fail without journal")
	}

	assignments, err := ts.assignments.List(ctx, &op.ID)
	if err != nil {
		t.Fatalf("list assignments: %v", err)
	}
	if len(assignments) != 1 {
		t.Fatalf("expected 1 assignment, got %d", len(assignments))
	}
	if after, _ := ts.sequenceValue(t, scope); after != before {
		t.Fatalf("sequence moved from %d to %d", before, after)
	}
}

func TestAssignVehicleRollsBackWhenJournalFails(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.createOperation(t, "Sturm")
	a := ts.createAssignment(t, nil, "Baum")
	v := ts.createVehicle(t, "HLF 1")
	ts.dropJournal(t)

	if _, err := ts.assignments.AssignVehicle(ctx, dispatcher, a.ID, v.ID); err == nil {
		t.Fatal("expected assign to fail without journal")
	}

	got, err := ts.assignments.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get assignment: %v", err)
	}
	if got.Status != model.AssignmentStatusOpen {
		t.Fatalf("status changed to %s", got.Status)
	}
	if links := ts.links(t, a.ID); len(links) != 0 {
		t.Fatalf("link persisted: %+v", links)
	}
	highest, err := ts.store.Assignments().MaxOrderForVehicle(ctx, v.ID)
	if err != nil {
		t.Fatalf("max order: %v", err)
	}
	if highest != 0 {
		t.Fatalf("queue order persisted: %d", highest)
	}
}

func TestCompleteRollsBackWhenJournalFails(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	ts.createOperation(t, "Sturm")
	a := ts.createAssignment(t, nil, "Baum")
	ts.dropJournal(t)

	if _, err := ts.assignments.Complete(ctx, dispatcher, a.ID); err == nil {
		t.Fatal("expected complete to fail without journal")
	}

	got, err := ts.assignments.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("get assignment: %v", err)
	}
	if got.Status != model.AssignmentStatusOpen || got.CompletedAt != nil {
		t.Fatalf("completion persisted: status=%s completed_at=%v", got.Status, got.CompletedAt)
	}
}

// recordLocks captures "<table>:<strength>" for every locking read.
func (ts *testServices) recordLocks(t *testing.T) (snapshot func() []string, reset func()) {
	t.Helper()
	var (
		mu    sync.Mutex
		locks []string
	)
	err := ts.db.Callback().Query().Before("gorm:query").Register("test:record_locks", func(tx *gorm.DB) {
		c, ok := tx.Statement.Clauses["FOR"]
		if !ok {
			return
		}
		if locking, ok := c.Expression.(clause.Locking); ok {
			mu.Lock()
			locks = append(locks, tx.Statement.Table+":"+locking.Strength)
			mu.Unlock()
		}
	})
	if err != nil {
		t.Fatalf("register callback: %v", err)
	}
	snapshot = func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), locks...)
	}
	reset = func() {
		mu.Lock()
		locks = nil
		mu.Unlock()
	}
	return snapshot, reset
}

func containsLock(locks []string, want string) bool {
	for _, l := range locks {
		if l == want {
			return true
		}
	}
	return false
}

func TestGuardedWritesLockOwningOperation(t *testing.T) {
	ts := newTestServices(t)
	ctx := context.Background()
	op := ts.createOperation(t, "Sturm")
	a := ts.createAssignment(t, nil, "Baum")
	v := ts.createVehicle(t, "HLF 1")
	entry, err := ts.journal.Append(ctx, dispatcher, AppendJournalInput{Content: "Lage erkundet"})
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	locks, reset := ts.recordLocks(t)
	content := "Lage unverändert"

	steps := []struct {
		name string
		run  func() error
		want string
	}{
		{name: "assign vehicle", want: "operations:SHARE", run: func() error {
			_, err := ts.assignments.AssignVehicle(ctx, dispatcher, a.ID, v.ID)
			return err
		}},
		{name: "complete", want: "operations:SHARE", run: func() error {
			_, err := ts.assignments.Complete(ctx, dispatcher, a.ID)
			return err
		}},
		{name: "journal update", want: "operations:SHARE", run: func() error {
			_, err := ts.journal.Update(ctx, dispatcher, entry.ID, UpdateJournalInput{Content: &content})
			return err
		}},
		{name: "journal delete", want: "operations:SHARE", run: func() error {
			return ts.journal.Delete(ctx, dispatcher, entry.ID)
		}},
		{name: "close", want: "operations:UPDATE", run: func() error {
			_, err := ts.operations.Close(ctx, dispatcher, op.ID)
			return err
		}},
	}
	for _, step := range steps {
		reset()
		if err := step.run(); err != nil {
			t.Fatalf("%s: %v", step.name, err)
		}
		if got := locks(); !containsLock(got, step.want) {
			t.Fatalf("%s: expected %s lock, got %v", step.name, step.want, got)
		}
	}
}

func TestEntryTypeLabel(t *testing.T) {
	cases := map[string]string{
		model.EntryTypeNote:              model.EntryTypeNote,
		model.EntryTypeDecision:          model.EntryTypeDecision,
		model.EntryTypeStatusChange:      model.EntryTypeStatusChange,
		model.EntryTypeVehicleAssigned:   model.EntryTypeVehicleAssigned,
		model.EntryTypeVehicleUnassigned: model.EntryTypeVehicleUnassigned,
		"Lagemeldung 14:02":              "other",
		"":                               "other",
	}
	for in, want := range cases {
		if got := entryTypeLabel(in); got != want {
			t.Errorf("entryTypeLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
