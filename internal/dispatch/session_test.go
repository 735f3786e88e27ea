package dispatch

import (
	"context"
	"sync"
	"testing"

	"github.com/fitbarz/kitcontrol/internal/domain"
)

type memoryLog struct {
	mu      sync.Mutex
	records []*domain.DispatchRecord
}

func (m *memoryLog) Append(_ context.Context, record *domain.DispatchRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	// newest first, matching the repository ordering
	m.records = append([]*domain.DispatchRecord{record}, m.records...)
	return nil
}

func testProduct(codes ...string) *domain.Product {
	p := &domain.Product{
		ID:     1000,
		Name:   "BANCA PLANA PROFESIONAL",
		Code:   "FB0318",
		Status: domain.StatusActive,
	}
	for i, code := range codes {
		p.Components = append(p.Components, domain.Component{
			ID:     int64(1 + i),
			Name:   "Pieza #" + code,
			Code:   code,
			Status: domain.StatusActive,
		})
	}
	return p
}

func loggedInSession(t *testing.T, log LogRepository, name string) *Session {
	t.Helper()
	s := NewSession(log, NameRoleResolver("FS"))
	if err := s.Login(name, "ORD-1", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	return s
}

func TestLoginValidation(t *testing.T) {
	s := NewSession(&memoryLog{}, NameRoleResolver("FS"))

	if err := s.Login("", "ORD-1", ""); err != ErrEmptyLogin {
		t.Fatalf("expected ErrEmptyLogin got %v", err)
	}
	if err := s.Login("Juan", "  ", ""); err != ErrEmptyLogin {
		t.Fatalf("expected ErrEmptyLogin got %v", err)
	}
	if s.State() != StateLoggedOut {
		t.Fatalf("state changed after rejected login: %s", s.State())
	}

	if err := s.Login("Juan", "ORD-1", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	if s.State() != StateProductSelection {
		t.Fatalf("expected product selection got %s", s.State())
	}
	_, employeeID, _ := s.Operator()
	if employeeID != "N/A" {
		t.Fatalf("expected default employee id N/A got %q", employeeID)
	}
}

func TestRoleResolvedAtLogin(t *testing.T) {
	cases := []struct {
		name string
		want OperatorRole
	}{
		{"FS", RolePrivileged},
		{"fs", RolePrivileged},
		{"  Fs  ", RolePrivileged},
		{"Juan", RoleStandard},
		{"FSX", RoleStandard},
	}
	for _, tc := range cases {
		s := loggedInSession(t, &memoryLog{}, tc.name)
		if got := s.Role(); got != tc.want {
			t.Errorf("role for %q: got %s want %s", tc.name, got, tc.want)
		}
	}
}

func TestSelectEmptyKitRejected(t *testing.T) {
	s := loggedInSession(t, &memoryLog{}, "Juan")

	empty := testProduct()
	if err := s.SelectProduct(empty); err != ErrEmptyKit {
		t.Fatalf("expected ErrEmptyKit got %v", err)
	}
	if s.State() != StateProductSelection {
		t.Fatalf("state changed after rejected selection: %s", s.State())
	}

	// A kit whose components are all inactive behaves the same.
	inactive := testProduct("A-1")
	inactive.Components[0].Status = domain.StatusInactive
	if err := s.SelectProduct(inactive); err != ErrEmptyKit {
		t.Fatalf("expected ErrEmptyKit got %v", err)
	}
	if len(s.Targets()) != 0 {
		t.Fatalf("targets leaked from rejected selection")
	}
}

func TestSelectSnapshotsActiveComponents(t *testing.T) {
	s := loggedInSession(t, &memoryLog{}, "Juan")

	p := testProduct("A-1", "A-2", "A-3")
	p.Components[1].Status = domain.StatusInactive
	if err := s.SelectProduct(p); err != nil {
		t.Fatalf("select: %v", err)
	}
	targets := s.Targets()
	if len(targets) != 2 {
		t.Fatalf("expected 2 targets got %d", len(targets))
	}
	for _, target := range targets {
		if target.Confirmed {
			t.Fatalf("target %s starts confirmed", target.Code)
		}
	}
}

func TestScanMatchingPolicy(t *testing.T) {
	s := loggedInSession(t, &memoryLog{}, "Juan")
	p := testProduct("A-1", "A-2")
	if err := s.SelectProduct(p); err != nil {
		t.Fatalf("select: %v", err)
	}

	// first scan confirms
	target, err := s.Scan("A-1")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if target.Code != "A-1" || !target.Confirmed {
		t.Fatalf("unexpected target %+v", target)
	}

	// second scan of the same code fails and mutates nothing
	if _, err := s.Scan("A-1"); err != ErrNoMatch {
		t.Fatalf("expected ErrNoMatch got %v", err)
	}
	confirmed, _, _ := s.Progress()
	if confirmed != 1 {
		t.Fatalf("confirmed count changed on rejected scan: %d", confirmed)
	}

	// unknown code fails
	if _, err := s.Scan("B-9"); err != ErrNoMatch {
		t.Fatalf("expected ErrNoMatch got %v", err)
	}

	// matching is case-sensitive and exact
	if _, err := s.Scan("a-2"); err != ErrNoMatch {
		t.Fatalf("expected case-sensitive miss got %v", err)
	}

	// a component name is also accepted as input
	if _, err := s.Scan("Pieza #A-2"); err != nil {
		t.Fatalf("scan by name: %v", err)
	}
}

func TestScanDuplicateCodesFirstMatchWins(t *testing.T) {
	s := loggedInSession(t, &memoryLog{}, "Juan")
	p := testProduct("A-1", "A-1")
	if err := s.SelectProduct(p); err != nil {
		t.Fatalf("select: %v", err)
	}

	first, err := s.Scan("A-1")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	second, err := s.Scan("A-1")
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if first.ComponentID == second.ComponentID {
		t.Fatalf("same target confirmed twice")
	}
	if _, err := s.Scan("A-1"); err != ErrNoMatch {
		t.Fatalf("expected ErrNoMatch after both confirmed, got %v", err)
	}
}

func TestManualConfirmRequiresPrivilege(t *testing.T) {
	s := loggedInSession(t, &memoryLog{}, "Juan")
	p := testProduct("A-1")
	if err := s.SelectProduct(p); err != nil {
		t.Fatalf("select: %v", err)
	}

	if _, err := s.ConfirmManual(p.Components[0].ID); err != ErrNotPrivileged {
		t.Fatalf("expected ErrNotPrivileged got %v", err)
	}
	confirmed, _, _ := s.Progress()
	if confirmed != 0 {
		t.Fatalf("state changed on rejected manual confirm")
	}
}

func TestManualConfirmPrivileged(t *testing.T) {
	s := loggedInSession(t, &memoryLog{}, "FS")
	p := testProduct("A-1", "A-2")
	if err := s.SelectProduct(p); err != nil {
		t.Fatalf("select: %v", err)
	}

	if _, err := s.ConfirmManual(p.Components[0].ID); err != nil {
		t.Fatalf("manual confirm: %v", err)
	}
	// re-confirming the same component is rejected
	if _, err := s.ConfirmManual(p.Components[0].ID); err != ErrNoMatch {
		t.Fatalf("expected ErrNoMatch got %v", err)
	}
	// unknown component id is rejected
	if _, err := s.ConfirmManual(99999); err != ErrNoMatch {
		t.Fatalf("expected ErrNoMatch got %v", err)
	}
}

func TestIsComplete(t *testing.T) {
	// zero targets is never complete
	s := loggedInSession(t, &memoryLog{}, "Juan")
	if s.IsComplete() {
		t.Fatalf("session with no targets reports complete")
	}

	// one target
	s = loggedInSession(t, &memoryLog{}, "Juan")
	if err := s.SelectProduct(testProduct("A-1")); err != nil {
		t.Fatalf("select: %v", err)
	}
	if s.IsComplete() {
		t.Fatalf("complete before any confirmation")
	}
	if _, err := s.Scan("A-1"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !s.IsComplete() {
		t.Fatalf("not complete after confirming the only target")
	}

	// N targets, one pending
	s = loggedInSession(t, &memoryLog{}, "Juan")
	if err := s.SelectProduct(testProduct("A-1", "A-2", "A-3")); err != nil {
		t.Fatalf("select: %v", err)
	}
	for _, code := range []string{"A-1", "A-2"} {
		if _, err := s.Scan(code); err != nil {
			t.Fatalf("scan %s: %v", code, err)
		}
	}
	if s.IsComplete() {
		t.Fatalf("complete with a pending target")
	}
}

func TestProgress(t *testing.T) {
	s := loggedInSession(t, &memoryLog{}, "Juan")

	// zero-total guard
	if _, _, percent := s.Progress(); percent != 0 {
		t.Fatalf("expected 0 percent with no targets got %d", percent)
	}

	if err := s.SelectProduct(testProduct("A-1", "A-2", "A-3")); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := s.Scan("A-1"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	confirmed, total, percent := s.Progress()
	if confirmed != 1 || total != 3 || percent != 33 {
		t.Fatalf("unexpected progress %d/%d %d%%", confirmed, total, percent)
	}
}

func TestFinalizeRequiresCompletion(t *testing.T) {
	log := &memoryLog{}
	s := loggedInSession(t, log, "Juan")
	if err := s.SelectProduct(testProduct("A-1", "A-2")); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := s.Scan("A-1"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := s.Finalize(context.Background()); err != ErrNotComplete {
		t.Fatalf("expected ErrNotComplete got %v", err)
	}
	if len(log.records) != 0 {
		t.Fatalf("record written for incomplete session")
	}
}

func TestPrivilegedDispatchScenario(t *testing.T) {
	// Operator FS logs in with ORD-1, manually confirms A-1, scans
	// A-2, finalizes: one record with both items.
	log := &memoryLog{}
	s := NewSession(log, NameRoleResolver("FS"))
	if err := s.Login("FS", "ORD-1", ""); err != nil {
		t.Fatalf("login: %v", err)
	}
	p := testProduct("A-1", "A-2")
	if err := s.SelectProduct(p); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := s.ConfirmManual(p.Components[0].ID); err != nil {
		t.Fatalf("manual confirm: %v", err)
	}
	if _, err := s.Scan("A-2"); err != nil {
		t.Fatalf("scan: %v", err)
	}

	record, err := s.Finalize(context.Background())
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if s.State() != StateCompleted {
		t.Fatalf("expected completed state got %s", s.State())
	}
	if len(log.records) != 1 {
		t.Fatalf("expected 1 record got %d", len(log.records))
	}
	if len(record.ScannedItems) != 2 {
		t.Fatalf("expected 2 scanned items got %d", len(record.ScannedItems))
	}
	if record.ScannedItems[0].Code != "A-1" || record.ScannedItems[1].Code != "A-2" {
		t.Fatalf("unexpected snapshot %+v", record.ScannedItems)
	}
	if record.OrderNumber != "ORD-1" || record.OperatorName != "FS" || record.OperatorID != "N/A" {
		t.Fatalf("unexpected record header %+v", record)
	}
	if record.ProductName != p.Name || record.ProductCode != p.Code {
		t.Fatalf("product not denormalized into record")
	}
}

func TestNextPreservesOperatorContext(t *testing.T) {
	log := &memoryLog{}
	s := loggedInSession(t, log, "FS")
	p := testProduct("A-1")
	if err := s.SelectProduct(p); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := s.Scan("A-1"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if _, err := s.Finalize(context.Background()); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if err := s.Next(); err != nil {
		t.Fatalf("next: %v", err)
	}
	if s.State() != StateProductSelection {
		t.Fatalf("expected product selection got %s", s.State())
	}
	name, _, orderNumber := s.Operator()
	if name != "FS" || orderNumber != "ORD-1" {
		t.Fatalf("operator context lost: %s %s", name, orderNumber)
	}
	if len(s.Targets()) != 0 || s.Product() != nil {
		t.Fatalf("targets not cleared after next")
	}
}

func TestCancelDiscardsTargets(t *testing.T) {
	s := loggedInSession(t, &memoryLog{}, "Juan")
	if err := s.SelectProduct(testProduct("A-1", "A-2")); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := s.Scan("A-1"); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if err := s.Cancel(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if s.State() != StateProductSelection || len(s.Targets()) != 0 {
		t.Fatalf("cancel did not reset the session")
	}
}

func TestStateGuards(t *testing.T) {
	s := NewSession(&memoryLog{}, NameRoleResolver("FS"))

	if _, err := s.Scan("A-1"); err != ErrBadState {
		t.Fatalf("scan before login: %v", err)
	}
	if err := s.SelectProduct(testProduct("A-1")); err != ErrBadState {
		t.Fatalf("select before login: %v", err)
	}
	if _, err := s.Finalize(context.Background()); err != ErrBadState {
		t.Fatalf("finalize before login: %v", err)
	}
	if err := s.Next(); err != ErrBadState {
		t.Fatalf("next before completion: %v", err)
	}
}
