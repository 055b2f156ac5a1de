package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// stubBinding binds a control to a fixed entity definition.
type stubBinding struct {
	EntityDefinition
	fakeRefresher
}

func (b *stubBinding) Entity() string { return b.Info.Name }

func testDefinition() EntityDefinition {
	return EntityDefinition{
		Info: EntityInfo{Name: "opportunity", Label: "Opportunities"},
		Columns: []ColumnMetadata{
			{Name: "Name", Type: TypeText},
			{Name: "Amount", Type: TypeMoney},
			{Name: "Probability", Type: TypeInteger, MinValue: ptr(0), MaxValue: ptr(100)},
			{Name: "Stage", Type: TypeOptionSet, Options: statusOptions},
			{Name: "Owner", Type: TypeLookup},
			{Name: "Created By", Type: TypeText, ReadOnly: true},
		},
	}
}

func newTestControl(t *testing.T, up RecordUpdater, opts ...ControlOption) (*Control, *stubBinding) {
	t.Helper()
	binding := &stubBinding{EntityDefinition: testDefinition()}
	return NewControl(binding, NewSaver(up, SaveOptions{}, nil), opts...), binding
}

func TestControl_OnCellChange(t *testing.T) {
	tests := []struct {
		name         string
		column       string
		raw          RawValue
		wantAccepted bool
		wantKind     WarningKind
		wantCode     string
	}{
		{name: "valid text", column: "Name", raw: StringRaw("Big deal"), wantAccepted: true},
		{name: "case-insensitive column", column: "amount", raw: StringRaw("$1,000"), wantAccepted: true},
		{name: "rejected number", column: "Amount", raw: StringRaw("lots"), wantKind: WarnRejected, wantCode: "NRM001"},
		{name: "out of bounds", column: "Probability", raw: NumberRaw(150), wantKind: WarnRejected, wantCode: "NRM001"},
		{name: "lookup unsupported", column: "Owner", raw: StringRaw("u1"), wantKind: WarnUnsupportedColumn, wantCode: "NRM002"},
		{name: "read-only unsupported", column: "Created By", raw: StringRaw("me"), wantKind: WarnUnsupportedColumn, wantCode: "NRM002"},
		{name: "unknown column kept as text", column: "Legacy Notes", raw: StringRaw("hello"), wantAccepted: true, wantKind: WarnMetadataUnavailable, wantCode: "MET001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestControl(t, newFakeUpdater())
			result := c.OnCellChange("r1", tt.column, tt.raw)

			if result.Accepted != tt.wantAccepted {
				t.Errorf("Accepted = %v, want %v", result.Accepted, tt.wantAccepted)
			}
			if tt.wantAccepted && result.Value == nil {
				t.Error("accepted edit should return its normalized value")
			}
			if tt.wantKind == "" {
				if result.Warning != nil {
					t.Errorf("unexpected warning %+v", result.Warning)
				}
			} else {
				if result.Warning == nil {
					t.Fatalf("want %s warning, got none", tt.wantKind)
				}
				if result.Warning.Kind != tt.wantKind || result.Warning.Code != tt.wantCode {
					t.Errorf("warning = %+v, want kind %s code %s", result.Warning, tt.wantKind, tt.wantCode)
				}
				if result.Warning.RecordID != "r1" || result.Warning.Column != tt.column {
					t.Errorf("warning names %s/%s, want r1/%s", result.Warning.RecordID, result.Warning.Column, tt.column)
				}
			}
			if c.HasPendingChanges() != tt.wantAccepted {
				t.Errorf("HasPendingChanges = %v, want %v", c.HasPendingChanges(), tt.wantAccepted)
			}
		})
	}
}

func TestControl_RejectedEditKeepsPreviousValue(t *testing.T) {
	c, _ := newTestControl(t, newFakeUpdater())

	c.OnCellChange("r1", "Amount", NumberRaw(500))
	result := c.OnCellChange("r1", "Amount", StringRaw("five hundred"))
	if result.Accepted {
		t.Fatal("garbage amount was accepted")
	}

	pending := c.Pending()
	if len(pending) != 1 {
		t.Fatalf("pending records = %d, want 1", len(pending))
	}
	if v := pending[0].Fields["Amount"]; !v.Equal(DecimalValue(TypeMoney, 500)) {
		t.Errorf("Amount = %s, want earlier value 500 kept", v)
	}
}

func TestControl_CanonicalColumnName(t *testing.T) {
	c, _ := newTestControl(t, newFakeUpdater())
	c.OnCellChange("r1", "STAGE", StringRaw("won"))

	pending := c.Pending()
	if _, ok := pending[0].Fields["Stage"]; !ok {
		t.Errorf("fields = %v, want the declared column name", pending[0].Fields)
	}
}

func TestControl_WarningHandler(t *testing.T) {
	var mu sync.Mutex
	var got []Warning
	handler := func(w Warning) {
		mu.Lock()
		got = append(got, w)
		mu.Unlock()
	}
	c, _ := newTestControl(t, newFakeUpdater(), WithWarningHandler(handler))

	c.OnCellChange("r1", "Name", StringRaw("fine"))
	c.OnCellChange("r1", "Amount", StringRaw("bad"))
	c.OnCellChange("r1", "Owner", StringRaw("u1"))
	c.OnCellChange("r1", "Mystery", StringRaw("x"))

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Fatalf("handler received %d warnings, want 3: %+v", len(got), got)
	}
	wantKinds := []WarningKind{WarnRejected, WarnUnsupportedColumn, WarnMetadataUnavailable}
	for i, kind := range wantKinds {
		if got[i].Kind != kind {
			t.Errorf("warning %d kind = %s, want %s", i, got[i].Kind, kind)
		}
	}
}

func TestControl_EmptyRecordID(t *testing.T) {
	c, _ := newTestControl(t, newFakeUpdater())
	result := c.OnCellChange("", "Name", StringRaw("x"))
	if result.Accepted || result.Warning == nil {
		t.Errorf("result = %+v, want rejected with warning", result)
	}
}

func TestControl_SaveSuccess(t *testing.T) {
	up := newFakeUpdater()
	c, binding := newTestControl(t, up)

	c.OnCellChange("r1", "Name", StringRaw("One"))
	c.OnCellChange("r2", "Amount", NumberRaw(10))
	if got := c.PendingChangeCount(); got != 2 {
		t.Fatalf("PendingChangeCount = %d, want 2", got)
	}

	result, err := c.OnSave(context.Background())
	if err != nil {
		t.Fatalf("OnSave: %v", err)
	}
	if result.Entity != "opportunity" || result.Updated != 2 {
		t.Errorf("result = %+v, want 2 opportunity records updated", result)
	}
	if c.HasPendingChanges() {
		t.Error("pending changes remain after a successful save")
	}
	if got := binding.count.Load(); got != 1 {
		t.Errorf("dataset refreshed %d times, want 1", got)
	}
}

func TestControl_SaveFailureKeepsEdits(t *testing.T) {
	up := newFakeUpdater()
	up.fail["r2"] = errors.New("row locked")
	c, binding := newTestControl(t, up)

	c.OnCellChange("r1", "Name", StringRaw("One"))
	c.OnCellChange("r2", "Name", StringRaw("Two"))

	_, err := c.OnSave(context.Background())
	if !errors.Is(err, ErrRemoteUpdateFailed) {
		t.Fatalf("OnSave error = %v, want ErrRemoteUpdateFailed", err)
	}
	if got := c.PendingChangeCount(); got != 2 {
		t.Errorf("PendingChangeCount = %d, want 2", got)
	}
	if binding.count.Load() != 0 {
		t.Error("dataset refreshed after a failed save")
	}

	// Retry after the remote problem clears submits both records again
	up.mu.Lock()
	delete(up.fail, "r2")
	up.mu.Unlock()
	if _, err := c.OnSave(context.Background()); err != nil {
		t.Fatalf("retry OnSave: %v", err)
	}
	if c.HasPendingChanges() {
		t.Error("pending changes remain after retry")
	}
}

func TestControl_EmptySave(t *testing.T) {
	up := newFakeUpdater()
	c, binding := newTestControl(t, up)

	result, err := c.OnSave(context.Background())
	if err != nil || !result.Success() {
		t.Fatalf("OnSave = %+v, %v; want empty success", result, err)
	}
	if up.callCount() != 0 || binding.count.Load() != 0 {
		t.Error("empty save must not call the store or refresh")
	}
}

func TestControl_SecondSaveWhileSaving(t *testing.T) {
	up := newFakeUpdater()
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	up.hook = func(ctx context.Context, recordID string) error {
		entered <- struct{}{}
		<-release
		return nil
	}
	c, _ := newTestControl(t, up)
	c.OnCellChange("r1", "Name", StringRaw("One"))

	done := make(chan error, 1)
	go func() {
		_, err := c.OnSave(context.Background())
		done <- err
	}()
	<-entered

	if !c.Saving() {
		t.Error("Saving = false during a save")
	}
	// Edits stay accepted while a save is in flight
	if r := c.OnCellChange("r1", "Amount", NumberRaw(5)); !r.Accepted {
		t.Errorf("edit during save rejected: %+v", r.Warning)
	}
	if _, err := c.OnSave(context.Background()); !errors.Is(err, ErrSaveInProgress) {
		t.Errorf("second OnSave error = %v, want ErrSaveInProgress", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first OnSave: %v", err)
	}

	pending := c.Pending()
	if len(pending) != 1 || len(pending[0].Fields) != 1 {
		t.Fatalf("pending = %+v, want only the Amount edit made during save", pending)
	}
	if _, ok := pending[0].Fields["Amount"]; !ok {
		t.Errorf("pending fields = %v, want Amount", pending[0].Fields)
	}
}

func TestControl_SaveLimiterBusy(t *testing.T) {
	limiter := NewSaveLimiter(1, 20*time.Millisecond)
	if !limiter.TryAcquire() {
		t.Fatal("TryAcquire failed on a fresh limiter")
	}
	defer limiter.Release()

	c, _ := newTestControl(t, newFakeUpdater(), WithSaveLimiter(limiter))
	c.OnCellChange("r1", "Name", StringRaw("One"))

	if _, err := c.OnSave(context.Background()); !errors.Is(err, ErrTooManySaves) {
		t.Errorf("OnSave error = %v, want ErrTooManySaves", err)
	}
	if !c.HasPendingChanges() {
		t.Error("edits lost when the save could not start")
	}
}

func TestControl_DiscardAndClose(t *testing.T) {
	c, _ := newTestControl(t, newFakeUpdater())
	c.OnCellChange("r1", "Name", StringRaw("One"))
	c.OnCellChange("r2", "Name", StringRaw("Two"))

	if !c.Discard("r1") {
		t.Error("Discard(r1) = false")
	}
	if got := c.PendingChangeCount(); got != 1 {
		t.Errorf("PendingChangeCount = %d, want 1", got)
	}

	c.Close()
	c.Close()

	if !c.Closed() || c.HasPendingChanges() {
		t.Error("Close should discard pending edits")
	}
	if r := c.OnCellChange("r3", "Name", StringRaw("x")); r.Accepted {
		t.Error("closed control accepted an edit")
	}
	if _, err := c.OnSave(context.Background()); !errors.Is(err, ErrControlClosed) {
		t.Errorf("OnSave after Close = %v, want ErrControlClosed", err)
	}
}

func TestControl_PendingGauge(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	c, _ := newTestControl(t, newFakeUpdater(), WithMetrics(metrics))

	gauge := func() float64 { return testutil.ToFloat64(metrics.pendingCells) }

	c.OnCellChange("r1", "Name", StringRaw("One"))
	c.OnCellChange("r1", "Name", StringRaw("One again"))
	c.OnCellChange("r2", "Amount", NumberRaw(10))
	c.OnCellChange("r3", "Probability", NumberRaw(500)) // rejected
	if got := gauge(); got != 2 {
		t.Errorf("gauge after edits = %v, want 2", got)
	}

	c.Discard("r2")
	if got := gauge(); got != 1 {
		t.Errorf("gauge after discard = %v, want 1", got)
	}

	if _, err := c.OnSave(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := gauge(); got != 0 {
		t.Errorf("gauge after save = %v, want 0", got)
	}
}

func TestControl_CloseDuringSave(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	up := newFakeUpdater()
	release := make(chan struct{})
	entered := make(chan struct{}, 1)
	up.hook = func(ctx context.Context, recordID string) error {
		entered <- struct{}{}
		<-release
		return nil
	}
	c, _ := newTestControl(t, up, WithMetrics(metrics))
	c.OnCellChange("r1", "Name", StringRaw("One"))

	done := make(chan error, 1)
	go func() {
		_, err := c.OnSave(context.Background())
		done <- err
	}()
	<-entered

	c.Close()
	if r := c.OnCellChange("r2", "Name", StringRaw("late")); r.Accepted {
		t.Error("edit accepted after Close")
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("OnSave: %v", err)
	}

	if got := testutil.ToFloat64(metrics.pendingCells); got != 0 {
		t.Errorf("pending_cells = %v after close during save, want 0", got)
	}
	if c.HasPendingChanges() {
		t.Error("closed control kept pending edits")
	}
}

func TestControl_ConcurrentEditAndClose(t *testing.T) {
	metrics := NewMetrics(prometheus.NewRegistry())
	c, _ := newTestControl(t, newFakeUpdater(), WithMetrics(metrics))

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.OnCellChange(fmt.Sprintf("r%d", i), "Name", StringRaw("x"))
		}()
	}
	c.Close()
	wg.Wait()

	if c.PendingCellCount() != 0 {
		t.Errorf("PendingCellCount = %d after Close, want 0", c.PendingCellCount())
	}
	if got := testutil.ToFloat64(metrics.pendingCells); got != 0 {
		t.Errorf("pending_cells = %v after Close, want 0", got)
	}
}
