package dispatch

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/fitbarz/kitcontrol/internal/domain"
	"github.com/fitbarz/kitcontrol/pkg/common"
)

// Session states. A session loops: after completion it returns to
// product selection keeping the operator and order context, so one
// order can cover several machines.
const (
	StateLoggedOut        = "LOGGED_OUT"
	StateProductSelection = "PRODUCT_SELECTION"
	StateScanning         = "SCANNING"
	StateCompleted        = "COMPLETED"
)

// OperatorRole is resolved once at login. RolePrivileged unlocks the
// manual confirmation path used when the camera cannot be used.
type OperatorRole string

const (
	RoleStandard   OperatorRole = "standard"
	RolePrivileged OperatorRole = "privileged"
)

// RoleResolver maps an operator name to a role at login time.
type RoleResolver interface {
	Resolve(name string) OperatorRole
}

// RoleResolverFunc adapts a function to the RoleResolver interface.
type RoleResolverFunc func(name string) OperatorRole

func (f RoleResolverFunc) Resolve(name string) OperatorRole { return f(name) }

// NameRoleResolver grants RolePrivileged to a single operator
// identifier, compared trimmed and case-insensitively.
func NameRoleResolver(privileged string) RoleResolver {
	return RoleResolverFunc(func(name string) OperatorRole {
		if strings.EqualFold(strings.TrimSpace(name), strings.TrimSpace(privileged)) {
			return RolePrivileged
		}
		return RoleStandard
	})
}

var (
	ErrBadState      = errors.New("operation not allowed in current session state")
	ErrEmptyLogin    = errors.New("operator name and order number are required")
	ErrEmptyKit      = errors.New("product has no active components")
	ErrNoMatch       = errors.New("invalid or already-scanned code")
	ErrNotPrivileged = errors.New("manual confirmation requires the privileged operator")
	ErrNotComplete   = errors.New("not all components are confirmed")
)

// ScanTarget tracks one component of the selected kit during an active
// dispatch. Targets exist only for the lifetime of the scanning step.
type ScanTarget struct {
	ComponentID int64  `json:"component_id,string"`
	Name        string `json:"name"`
	Code        string `json:"code"`
	ImageURL    string `json:"image_url"`
	Confirmed   bool   `json:"confirmed"`
}

// LogRepository is the append-only store a finalized session writes to.
type LogRepository interface {
	Append(ctx context.Context, record *domain.DispatchRecord) error
}

// Session drives one operator through login, product selection,
// per-component confirmation and finalization. All mutating calls are
// serialized by an internal lock, so confirmation events are processed
// strictly one at a time in arrival order.
type Session struct {
	mu sync.Mutex

	id    int64
	state string

	operatorName string
	employeeID   string
	orderNumber  string
	role         OperatorRole

	product *domain.Product
	targets []ScanTarget

	roles RoleResolver
	logs  LogRepository
}

func NewSession(logs LogRepository, roles RoleResolver) *Session {
	return &Session{
		id:    common.UUIDint64(),
		state: StateLoggedOut,
		roles: roles,
		logs:  logs,
	}
}

func (s *Session) ID() int64 { return s.id }

func (s *Session) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) Role() OperatorRole {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.role
}

func (s *Session) Operator() (name, employeeID, orderNumber string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.operatorName, s.employeeID, s.orderNumber
}

// Targets returns a copy of the current scan targets.
func (s *Session) Targets() []ScanTarget {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ScanTarget, len(s.targets))
	copy(out, s.targets)
	return out
}

// Login moves the session into product selection. The employee id is
// optional and defaults to N/A; name and order number are not.
func (s *Session) Login(name, orderNumber, employeeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateLoggedOut {
		return ErrBadState
	}
	name = strings.TrimSpace(name)
	orderNumber = strings.TrimSpace(orderNumber)
	if name == "" || orderNumber == "" {
		return ErrEmptyLogin
	}
	if strings.TrimSpace(employeeID) == "" {
		employeeID = common.NA
	}

	s.operatorName = name
	s.orderNumber = orderNumber
	s.employeeID = strings.TrimSpace(employeeID)
	s.role = s.roles.Resolve(name)
	s.state = StateProductSelection
	return nil
}

// SelectProduct snapshots the product's active components into scan
// targets and enters the scanning step. Selecting a kit with no active
// components is rejected without a state change.
func (s *Session) SelectProduct(product *domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateProductSelection {
		return ErrBadState
	}
	active := product.ActiveComponents()
	if len(active) == 0 {
		return ErrEmptyKit
	}

	targets := make([]ScanTarget, 0, len(active))
	for _, c := range active {
		targets = append(targets, ScanTarget{
			ComponentID: c.ID,
			Name:        c.Name,
			Code:        c.Code,
			ImageURL:    c.ImageURL,
		})
	}
	s.product = product
	s.targets = targets
	s.state = StateScanning
	return nil
}

// Scan applies the confirmation matching policy to a decoded code:
// the first unconfirmed target whose code or name equals the input is
// confirmed. Matching is exact and case-sensitive; when several
// targets share a code the first pending one wins. A miss, including
// a code whose target is already confirmed, mutates nothing.
func (s *Session) Scan(code string) (*ScanTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateScanning {
		return nil, ErrBadState
	}
	for i := range s.targets {
		t := &s.targets[i]
		if (t.Code == code || t.Name == code) && !t.Confirmed {
			t.Confirmed = true
			confirmed := *t
			return &confirmed, nil
		}
	}
	return nil, ErrNoMatch
}

// ConfirmManual confirms one pending target without a scan. Restricted
// to the privileged operator role; for everyone else it is rejected
// with no state change.
func (s *Session) ConfirmManual(componentID int64) (*ScanTarget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateScanning {
		return nil, ErrBadState
	}
	if s.role != RolePrivileged {
		return nil, ErrNotPrivileged
	}
	for i := range s.targets {
		t := &s.targets[i]
		if t.ComponentID == componentID && !t.Confirmed {
			t.Confirmed = true
			confirmed := *t
			return &confirmed, nil
		}
	}
	return nil, ErrNoMatch
}

// IsComplete reports whether every target is confirmed. An empty
// target list is never complete.
func (s *Session) IsComplete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return isComplete(s.targets)
}

func isComplete(targets []ScanTarget) bool {
	if len(targets) == 0 {
		return false
	}
	for _, t := range targets {
		if !t.Confirmed {
			return false
		}
	}
	return true
}

// Progress returns confirmed count, total and a rounded percentage.
// The zero-total guard is unreachable through SelectProduct but kept
// against division errors.
func (s *Session) Progress() (confirmed, total, percent int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	total = len(s.targets)
	for _, t := range s.targets {
		if t.Confirmed {
			confirmed++
		}
	}
	if total == 0 {
		return confirmed, total, 0
	}
	percent = int(float64(confirmed)/float64(total)*100 + 0.5)
	return confirmed, total, percent
}

// Finalize writes exactly one dispatch record for the completed kit
// and moves the session to the completed step. It fails if any target
// is still pending.
func (s *Session) Finalize(ctx context.Context) (*domain.DispatchRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateScanning {
		return nil, ErrBadState
	}
	if !isComplete(s.targets) {
		return nil, ErrNotComplete
	}

	items := make(domain.ScannedItems, 0, len(s.targets))
	for _, t := range s.targets {
		items = append(items, domain.ScannedItem{
			ComponentID: t.ComponentID,
			Name:        t.Name,
			Code:        t.Code,
		})
	}
	record := &domain.DispatchRecord{
		ID:           common.UUIDint64(),
		OrderNumber:  s.orderNumber,
		OperatorName: s.operatorName,
		OperatorID:   s.employeeID,
		ProductName:  s.product.Name,
		ProductCode:  s.product.Code,
		ScannedItems: items,
		CreatedAt:    time.Now(),
	}
	if err := s.logs.Append(ctx, record); err != nil {
		return nil, errors.Wrap(err, "append dispatch record")
	}

	s.state = StateCompleted
	return record, nil
}

// Next returns a completed session to product selection for the next
// machine, keeping the operator name and order number.
func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateCompleted {
		return ErrBadState
	}
	s.product = nil
	s.targets = nil
	s.state = StateProductSelection
	return nil
}

// Cancel abandons the current kit and returns to product selection.
// Pending confirmations are discarded.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateScanning && s.state != StateCompleted {
		return ErrBadState
	}
	s.product = nil
	s.targets = nil
	s.state = StateProductSelection
	return nil
}

// Product returns the currently selected product, or nil.
func (s *Session) Product() *domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.product
}
