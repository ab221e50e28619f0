package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"sphincs.io/sphincs/internal/api/middleware"
	"sphincs.io/sphincs/internal/domain"
	"sphincs.io/sphincs/internal/governance/audit"
	"sphincs.io/sphincs/internal/jobs"
	"sphincs.io/sphincs/internal/notification"
	apperrors "sphincs.io/sphincs/internal/pkg/errors"
	"sphincs.io/sphincs/internal/pkg/logger"
	"sphincs.io/sphincs/internal/repository"
	"sphincs.io/sphincs/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

var (
	t0 = time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	testJWT = middleware.JWTConfig{
		SigningKey: []byte("handler-test-key-0123456789abcdef"),
		Issuer:     "sphincs",
		ExpiresIn:  time.Hour,
	}
)

const (
	staffID   int64 = 7
	managerID int64 = 8
	otherID   int64 = 99
)

type stubDispatcher struct {
	result jobs.DispatchResult
	err    error
	calls  []string
}

func (d *stubDispatcher) Dispatch(_ context.Context, requestedBy string) (jobs.DispatchResult, error) {
	d.calls = append(d.calls, requestedBy)
	return d.result, d.err
}

type auditCall struct {
	action, resourceType, resourceID, actor string
}

type stubRecorder struct {
	calls []auditCall
	err   error
}

func (r *stubRecorder) LogAction(_ context.Context, action, resourceType, resourceID, actor string, _ map[string]any) error {
	r.calls = append(r.calls, auditCall{action, resourceType, resourceID, actor})
	return r.err
}

// unreachableStore fails every call the way a dropped database does.
type unreachableStore struct{}

var errUnreachable = errors.New("dial tcp 10.0.0.5:5432: connect: connection refused")

func (unreachableStore) Insert(context.Context, *domain.Alert) error { return errUnreachable }
func (unreachableStore) FindUnreadBySource(context.Context, domain.Module, string, int64) (*domain.Alert, error) {
	return nil, errUnreachable
}
func (unreachableStore) ListRecent(context.Context, int) ([]domain.Alert, error) {
	return nil, errUnreachable
}
func (unreachableStore) ListRecentForUser(context.Context, int64, int) ([]domain.Alert, error) {
	return nil, errUnreachable
}
func (unreachableStore) CountUnread(context.Context) (int, error) { return 0, errUnreachable }
func (unreachableStore) MarkRead(context.Context, int64, time.Time) (bool, bool, error) {
	return false, false, errUnreachable
}
func (unreachableStore) MarkManyRead(context.Context, []int64, time.Time) (int, error) {
	return 0, errUnreachable
}
func (unreachableStore) MarkAllRead(context.Context, time.Time) (int, error) {
	return 0, errUnreachable
}
func (unreachableStore) ResolveBySource(context.Context, string, int64, time.Time) (int, error) {
	return 0, errUnreachable
}
func (unreachableStore) UnreadSourceIDs(context.Context, string) ([]int64, error) {
	return nil, errUnreachable
}

func withUnreachableStore(d *ServerDeps) {
	d.Center = notification.NewCenter(unreachableStore{}, nil, nil)
}

type downPinger struct{}

func (downPinger) PingContext(context.Context) error { return errors.New("connection refused") }

type harness struct {
	router *gin.Engine
	center *notification.Center
	prefs  *notification.Preferences
	scans  *stubDispatcher
}

func newHarness(t *testing.T, mutate ...func(*ServerDeps)) *harness {
	t.Helper()
	db := testutil.OpenSQLite(t)
	clock := func() time.Time { return t0 }

	alerts := repository.NewAlertRepository(db)
	center := notification.NewCenter(alerts, notification.NewBroadcaster(16), clock)
	prefs := notification.NewPreferences(repository.NewPreferenceRepository(db), clock)
	scans := &stubDispatcher{result: jobs.DispatchResult{Mode: jobs.ModeLocal}}

	deps := ServerDeps{
		Center:      center,
		Preferences: prefs,
		Alerts:      alerts,
		Scans:       scans,
		DB:          db,
	}
	for _, m := range mutate {
		m(&deps)
	}

	router := gin.New()
	router.Use(middleware.ErrorHandler(), middleware.MustOpenAPIValidator("/api/v1"))
	api := router.Group("/api/v1", middleware.JWTAuth(testJWT))
	RegisterRoutes(api, NewServer(deps), middleware.RequireRole(middleware.RoleManager))

	return &harness{router: router, center: center, prefs: prefs, scans: scans}
}

func (h *harness) do(t *testing.T, userID int64, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	role := middleware.RoleStaff
	if userID == managerID {
		role = middleware.RoleManager
	}
	token, _, err := middleware.GenerateToken(testJWT, userID, "user", role)
	require.NoError(t, err)

	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) emit(t *testing.T, p notification.EmitParams) *domain.Alert {
	t.Helper()
	a := h.center.Emit(context.Background(), p)
	require.NotNil(t, a)
	return a
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]any](t, w)
	require.Equal(t, false, body["success"])
	code, _ := body["code"].(string)
	return code
}

func TestMobileNotifications_FilteredForCaller(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	other := otherID

	low := h.emit(t, notification.EmitParams{
		Module: domain.ModuleInventory, Title: "Low stock: Flour", Severity: domain.SeverityWarning,
		Source: &domain.Source{Type: domain.SourceInventoryLow, ID: 1},
	})
	h.emit(t, notification.EmitParams{Module: domain.ModuleSales, Title: "Order #12 created", Severity: domain.SeverityInfo})
	h.emit(t, notification.EmitParams{
		Module: domain.ModuleSafety, Title: "Incident", Severity: domain.SeverityCritical, TargetUserID: &other,
	})

	threshold := "warning"
	_, err := h.prefs.Update(ctx, staffID, domain.ModuleSales, notification.PreferenceUpdate{SeverityThreshold: &threshold})
	require.NoError(t, err)

	w := h.do(t, staffID, http.MethodGet, "/api/v1/mobile/notifications?limit=20", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	resp := decode[mobileNotificationList](t, w)
	require.True(t, resp.Success)
	require.Equal(t, 1, resp.Unread)
	require.Len(t, resp.Notifications, 1)
	got := resp.Notifications[0]
	require.Equal(t, low.ID, got.ID)
	require.Equal(t, domain.ModuleInventory, got.Module)
	require.NotNil(t, got.TriggeredAt)
	require.Equal(t, "2026-03-10T09:30:00Z", *got.TriggeredAt)
	require.False(t, got.IsRead)
}

func TestMobileNotifications_MarkRead(t *testing.T) {
	h := newHarness(t)
	a := h.emit(t, notification.EmitParams{Module: domain.ModulePOS, Title: "Payment received", Severity: domain.SeverityInfo})
	b := h.emit(t, notification.EmitParams{Module: domain.ModuleFinance, Title: "Refund", Severity: domain.SeverityInfo})

	body := `{"ids":[` + itoa(a.ID) + `,` + itoa(b.ID) + `]}`

	w := h.do(t, staffID, http.MethodPost, "/api/v1/mobile/notifications/read", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, mobileMarkReadResult{Success: true, Updated: 2}, decode[mobileMarkReadResult](t, w))

	w = h.do(t, staffID, http.MethodPost, "/api/v1/mobile/notifications/read", body)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 0, decode[mobileMarkReadResult](t, w).Updated)

	w = h.do(t, staffID, http.MethodPost, "/api/v1/mobile/notifications/read", `{"ids":[]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, apperrors.CodeAlertIDsEmpty, errorCode(t, w))
}

func TestMobileNotifications_RequiresToken(t *testing.T) {
	h := newHarness(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/mobile/notifications", nil)
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, apperrors.CodeUnauthorized, errorCode(t, w))
}

func TestMobileNotifications_StoreDown(t *testing.T) {
	h := newHarness(t, withUnreachableStore)

	w := h.do(t, staffID, http.MethodGet, "/api/v1/mobile/notifications", "")
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
	require.Equal(t, apperrors.CodeAlertQueryFail, errorCode(t, w))
	require.NotContains(t, w.Body.String(), "connection refused")

	w = h.do(t, staffID, http.MethodPost, "/api/v1/mobile/notifications/read", `{"ids":[7,9]}`)
	require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
	require.Equal(t, apperrors.CodeAlertUpdateFail, errorCode(t, w))
}

func TestAlerts_StoreDown(t *testing.T) {
	h := newHarness(t, withUnreachableStore)

	tests := []struct {
		name   string
		method string
		path   string
		code   string
	}{
		{"list", http.MethodGet, "/api/v1/alerts", apperrors.CodeAlertQueryFail},
		{"unread count", http.MethodGet, "/api/v1/alerts/unread-count", apperrors.CodeAlertQueryFail},
		{"read all", http.MethodPost, "/api/v1/alerts/read-all", apperrors.CodeAlertUpdateFail},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, staffID, tt.method, tt.path, "")
			require.Equal(t, http.StatusInternalServerError, w.Code, w.Body.String())
			require.Equal(t, tt.code, errorCode(t, w))
		})
	}
}

func TestAlerts_ListAndCount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.emit(t, notification.EmitParams{Module: domain.ModuleInventory, Title: "Low stock", Severity: domain.SeverityWarning})
	h.emit(t, notification.EmitParams{Module: domain.ModuleOperations, Title: "Maintenance overdue", Severity: domain.SeverityWarning})

	disabled := false
	_, err := h.prefs.Update(ctx, staffID, domain.ModuleOperations, notification.PreferenceUpdate{DesktopEnabled: &disabled})
	require.NoError(t, err)

	testCases := []struct {
		name      string
		path      string
		wantItems int
	}{
		{name: "desktop filtered", path: "/api/v1/alerts", wantItems: 1},
		{name: "unfiltered", path: "/api/v1/alerts?unfiltered=true", wantItems: 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := h.do(t, staffID, http.MethodGet, tc.path, "")
			require.Equal(t, http.StatusOK, w.Code, w.Body.String())
			resp := decode[alertList](t, w)
			require.Len(t, resp.Items, tc.wantItems)
			require.Equal(t, tc.wantItems, resp.Unread)
		})
	}

	w := h.do(t, staffID, http.MethodGet, "/api/v1/alerts/unread-count", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, countResponse{Count: 2}, decode[countResponse](t, w))
}

func TestAlerts_MarkRead(t *testing.T) {
	h := newHarness(t)
	a := h.emit(t, notification.EmitParams{Module: domain.ModuleSafety, Title: "Incident", Severity: domain.SeverityCritical})

	w := h.do(t, staffID, http.MethodPost, "/api/v1/alerts/"+itoa(a.ID)+"/read", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[domain.Alert](t, w)
	require.True(t, got.IsRead)
	require.NotNil(t, got.ReadAt)

	w = h.do(t, staffID, http.MethodPost, "/api/v1/alerts/"+itoa(a.ID)+"/read", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, staffID, http.MethodPost, "/api/v1/alerts/999/read", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Equal(t, apperrors.CodeAlertNotFound, errorCode(t, w))
}

func TestAlerts_MarkAllRead(t *testing.T) {
	h := newHarness(t)
	for _, title := range []string{"one", "two", "three"} {
		h.emit(t, notification.EmitParams{Module: domain.ModuleSystem, Title: title, Severity: domain.SeverityInfo})
	}

	w := h.do(t, staffID, http.MethodPost, "/api/v1/alerts/read-all", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 3, decode[countResponse](t, w).Count)
	require.Zero(t, h.center.CountUnread(context.Background()))
}

func TestAlerts_Emit(t *testing.T) {
	h := newHarness(t)
	body := `{"module":"inventory","title":"Low stock: Sugar","severity":"warning","source":{"type":"inventory_low","id":4}}`

	w := h.do(t, staffID, http.MethodPost, "/api/v1/alerts/emit", body)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, apperrors.CodeForbidden, errorCode(t, w))

	w = h.do(t, managerID, http.MethodPost, "/api/v1/alerts/emit", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	first := decode[domain.Alert](t, w)
	require.Equal(t, domain.ModuleInventory, first.Module)
	require.Equal(t, domain.SeverityWarning, first.Severity)

	w = h.do(t, managerID, http.MethodPost, "/api/v1/alerts/emit", body)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, first.ID, decode[domain.Alert](t, w).ID)

	w = h.do(t, managerID, http.MethodPost, "/api/v1/alerts/emit", `{"module":"Bakery","title":"x"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, apperrors.CodeUnknownModule, errorCode(t, w))
}

func TestPreferences_UpdateAndSnooze(t *testing.T) {
	h := newHarness(t)
	h.emit(t, notification.EmitParams{Module: domain.ModuleInventory, Title: "Low stock", Severity: domain.SeverityWarning})

	w := h.do(t, staffID, http.MethodGet, "/api/v1/preferences", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, decode[preferenceList](t, w).Items, len(domain.KnownModules()))

	w = h.do(t, staffID, http.MethodPut, "/api/v1/preferences/inventory", `{"severity_threshold":"critical","mobile_enabled":true}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	pref := decode[domain.Preference](t, w)
	require.Equal(t, domain.ModuleInventory, pref.Module)
	require.Equal(t, domain.SeverityCritical, pref.SeverityThreshold)

	w = h.do(t, staffID, http.MethodPut, "/api/v1/preferences/Bakery", `{"is_enabled":false}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, apperrors.CodeUnknownModule, errorCode(t, w))

	w = h.do(t, staffID, http.MethodPut, "/api/v1/preferences/Inventory", `{"severity_threshold":"info"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, staffID, http.MethodPost, "/api/v1/preferences/snooze", `{"minutes":15}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, len(domain.KnownModules()), decode[countResponse](t, w).Count)

	w = h.do(t, staffID, http.MethodGet, "/api/v1/mobile/notifications", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, decode[mobileNotificationList](t, w).Notifications)

	w = h.do(t, staffID, http.MethodPost, "/api/v1/preferences/snooze", `{"minutes":15,"modules":["Bakery"]}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, apperrors.CodeUnknownModule, errorCode(t, w))

	w = h.do(t, staffID, http.MethodDelete, "/api/v1/preferences/snooze", `{"modules":["Inventory"]}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, 1, decode[countResponse](t, w).Count)

	w = h.do(t, staffID, http.MethodGet, "/api/v1/mobile/notifications", "")
	require.Len(t, decode[mobileNotificationList](t, w).Notifications, 1)

	w = h.do(t, staffID, http.MethodDelete, "/api/v1/preferences/snooze", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func TestScanner_Run(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, staffID, http.MethodPost, "/api/v1/scanner/run", "")
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Empty(t, h.scans.calls)

	w = h.do(t, managerID, http.MethodPost, "/api/v1/scanner/run", "")
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Equal(t, jobs.ModeLocal, decode[jobs.DispatchResult](t, w).Mode)
	require.Equal(t, []string{"user"}, h.scans.calls)

	h.scans.err = jobs.ErrNoScanBackend
	w = h.do(t, managerID, http.MethodPost, "/api/v1/scanner/run", "")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	require.Equal(t, apperrors.CodeScanEnqueueFail, errorCode(t, w))
}

func TestAudit_RecordsMutations(t *testing.T) {
	rec := &stubRecorder{}
	h := newHarness(t, func(d *ServerDeps) { d.Audit = rec })

	w := h.do(t, managerID, http.MethodPost, "/api/v1/alerts/emit", `{"module":"sales","title":"Large refund","severity":"warning"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	emitted := decode[domain.Alert](t, w)

	w = h.do(t, staffID, http.MethodPut, "/api/v1/preferences/sales", `{"mobile_enabled":false}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = h.do(t, staffID, http.MethodPost, "/api/v1/preferences/snooze", `{"minutes":5}`)
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, staffID, http.MethodDelete, "/api/v1/preferences/snooze", "")
	require.Equal(t, http.StatusOK, w.Code)
	w = h.do(t, staffID, http.MethodPost, "/api/v1/alerts/read-all", "")
	require.Equal(t, http.StatusOK, w.Code)

	rec.err = errors.New("disk full")
	w = h.do(t, managerID, http.MethodPost, "/api/v1/scanner/run", "")
	require.Equal(t, http.StatusAccepted, w.Code)

	require.Equal(t, []auditCall{
		{audit.ActionAlertEmit, audit.ResourceAlert, strconv.FormatInt(emitted.ID, 10), "user"},
		{audit.ActionPreferenceUpdate, audit.ResourcePreference, string(domain.ModuleSales), "user"},
		{audit.ActionSnooze, audit.ResourcePreference, "", "user"},
		{audit.ActionSnoozeClear, audit.ResourcePreference, "", "user"},
		{audit.ActionAlertsReadAll, audit.ResourceAlert, "", "user"},
		{audit.ActionScanRun, audit.ResourceScanner, "0", "user"},
	}, rec.calls)
}

func TestScanner_RunWithoutBackend(t *testing.T) {
	h := newHarness(t, func(d *ServerDeps) { d.Scans = nil })

	w := h.do(t, managerID, http.MethodPost, "/api/v1/scanner/run", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealth(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(*ServerDeps)
		want   int
		status string
	}{
		{name: "store reachable", want: http.StatusOK, status: "ok"},
		{name: "store down", mutate: func(d *ServerDeps) { d.DB = downPinger{} }, want: http.StatusServiceUnavailable, status: "degraded"},
		{name: "no store", mutate: func(d *ServerDeps) { d.DB = nil }, want: http.StatusServiceUnavailable, status: "degraded"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var h *harness
			if tc.mutate != nil {
				h = newHarness(t, tc.mutate)
			} else {
				h = newHarness(t)
			}
			w := h.do(t, staffID, http.MethodGet, "/api/v1/health/ready", "")
			require.Equal(t, tc.want, w.Code, w.Body.String())
			require.Equal(t, tc.status, decode[healthResponse](t, w).Status)
		})
	}

	h := newHarness(t)
	w := h.do(t, staffID, http.MethodGet, "/api/v1/health/live", "")
	require.Equal(t, http.StatusOK, w.Code)
}

func itoa(v int64) string {
	return strconv.FormatInt(v, 10)
}
