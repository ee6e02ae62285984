package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcore/internal/config"
	"rentcore/internal/domain"
	"rentcore/internal/handler"
	"rentcore/internal/middleware"
	"rentcore/internal/repository"
	"rentcore/internal/repository/memory"
	"rentcore/internal/service"
)

type apiFixture struct {
	app     *fiber.App
	store   *memory.Store
	camera  domain.Resource
	tripod  domain.Resource
	studio  domain.Resource
	user    string
	other   string
	admin   string
	userID  uuid.UUID
	adminID uuid.UUID
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{
		JWTSecret:       "handler-secret",
		JWTAccessExpiry: time.Hour,
		AdminSignupCode: "staff-only",
		DefaultLocale:   "ko",
		CacheTTL:        time.Minute,
	}
	repos := memory.NewRepositories()
	store := repos.Store.(*memory.Store)
	services := service.NewServices(repos, nil, nil, cfg)

	available := domain.EquipmentAvailable
	f := &apiFixture{
		store:  store,
		camera: domain.Resource{ID: uuid.New(), Kind: domain.KindEquipment, CatalogKey: "CAM-01", Name: "Camera 1", Category: "camera", Status: &available, IsActive: true},
		tripod: domain.Resource{ID: uuid.New(), Kind: domain.KindEquipment, CatalogKey: "TRI-01", Name: "Tripod 1", Category: "tripod", Status: &available, IsActive: true},
		studio: domain.Resource{ID: uuid.New(), Kind: domain.KindFacility, CatalogKey: "ROOM-A", Name: "Studio A", Category: "studio", IsActive: true},
	}
	store.Seed(f.camera, f.tripod, f.studio)

	user, tokens, err := services.Auth.Register(ctx, domain.RegisterInput{Email: "kim@example.com", Password: "password123", Name: "Kim"})
	require.NoError(t, err)
	f.user, f.userID = tokens.AccessToken, user.ID

	_, tokens, err = services.Auth.Register(ctx, domain.RegisterInput{Email: "choi@example.com", Password: "password123", Name: "Choi"})
	require.NoError(t, err)
	f.other = tokens.AccessToken

	admin, err := services.Auth.RegisterAdmin(ctx, domain.RegisterAdminInput{Email: "lee@example.com", Password: "password123", Name: "Lee", AdminCode: "staff-only"})
	require.NoError(t, err)
	_, tokens, err = services.Auth.Login(ctx, domain.LoginInput{Email: "lee@example.com", Password: "password123"})
	require.NoError(t, err)
	f.admin, f.adminID = tokens.AccessToken, admin.ID

	f.app = fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler})
	f.app.Use(middleware.RequestInfo())
	handler.NewHandlers(services).Register(f.app.Group("/api/v1"), services.Auth)
	return f
}

type apiResponse struct {
	status int
	body   []byte
}

func (r apiResponse) decode(t *testing.T, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(r.body, dst), string(r.body))
}

func (r apiResponse) errorBody(t *testing.T) middleware.ErrorResponse {
	t.Helper()
	var body middleware.ErrorResponse
	r.decode(t, &body)
	return body
}

func (f *apiFixture) do(t *testing.T, method, path, token string, body interface{}) apiResponse {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return f.send(t, req)
}

func (f *apiFixture) send(t *testing.T, req *http.Request) apiResponse {
	t.Helper()
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return apiResponse{status: resp.StatusCode, body: raw}
}

func at(day, hour int) time.Time {
	return time.Date(2025, 3, day, hour, 0, 0, 0, time.UTC)
}

func reservationBody(start, end time.Time, ids ...uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"resource_ids": ids,
		"start_at":     start,
		"end_at":       end,
		"purpose":      "club shoot",
	}
}

func (f *apiFixture) createReservation(t *testing.T, token string, start, end time.Time, ids ...uuid.UUID) domain.Reservation {
	t.Helper()
	resp := f.do(t, fiber.MethodPost, "/api/v1/reservations", token, reservationBody(start, end, ids...))
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.body))
	var res domain.Reservation
	resp.decode(t, &res)
	return res
}

func TestReservationAPI_CreateAndConflict(t *testing.T) {
	f := newAPIFixture(t)

	first := f.createReservation(t, f.user, at(10, 9), at(10, 12), f.camera.ID)
	assert.Equal(t, domain.StatusPending, first.Status)
	assert.Equal(t, f.userID, first.UserID)
	require.Len(t, first.Items, 1)

	t.Run("Overlap is a 400 conflict naming the resource", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/reservations", f.other, reservationBody(at(10, 11), at(10, 13), f.camera.ID, f.tripod.ID))
		require.Equal(t, fiber.StatusBadRequest, resp.status)
		body := resp.errorBody(t)
		assert.Equal(t, "CONFLICT", body.Code)
		assert.Equal(t, []uuid.UUID{f.camera.ID}, body.ResourceIDs)
	})

	t.Run("Touching windows conflict", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/reservations", f.other, reservationBody(at(10, 12), at(10, 14), f.camera.ID))
		assert.Equal(t, fiber.StatusBadRequest, resp.status)
		assert.Equal(t, "CONFLICT", resp.errorBody(t).Code)
	})

	t.Run("Conflict lookup", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/reservations/conflicts?resource_ids=%s,%s&start=%s&end=%s",
			f.camera.ID, f.tripod.ID, at(10, 10).Format(time.RFC3339), at(10, 11).Format(time.RFC3339))
		resp := f.do(t, fiber.MethodGet, path, f.other, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var ids []uuid.UUID
		resp.decode(t, &ids)
		assert.Equal(t, []uuid.UUID{f.camera.ID}, ids)
	})

	t.Run("Lookup excluding the reservation itself", func(t *testing.T) {
		path := fmt.Sprintf("/api/v1/reservations/conflicts?resource_ids=%s&start=%s&end=%s&exclude_id=%s",
			f.camera.ID, at(10, 10).Format(time.RFC3339), at(10, 11).Format(time.RFC3339), first.ID)
		resp := f.do(t, fiber.MethodGet, path, f.user, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var ids []uuid.UUID
		resp.decode(t, &ids)
		assert.Empty(t, ids)
	})
}

func TestReservationAPI_Validation(t *testing.T) {
	f := newAPIFixture(t)

	tests := []struct {
		name      string
		body      interface{}
		wantField string
	}{
		{"Unknown field", `{"resource_ids":["` + f.camera.ID.String() + `"],"start_at":"2025-03-10T09:00:00Z","end_at":"2025-03-10T10:00:00Z","colour":"red"}`, "colour"},
		{"Missing resources", map[string]interface{}{"start_at": at(10, 9), "end_at": at(10, 10)}, "resource_ids"},
		{"Missing start", map[string]interface{}{"resource_ids": []uuid.UUID{f.camera.ID}, "end_at": at(10, 10)}, "start_at"},
		{"End before start", reservationBody(at(10, 10), at(10, 9), f.camera.ID), "end_at"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.do(t, fiber.MethodPost, "/api/v1/reservations", f.user, tt.body)
			require.Equal(t, fiber.StatusBadRequest, resp.status, string(resp.body))
			body := resp.errorBody(t)
			assert.Equal(t, "VALIDATION_ERROR", body.Code)
			assert.Contains(t, body.Fields, tt.wantField)
		})
	}

	t.Run("Malformed JSON", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/reservations", f.user, `{"resource_ids":`)
		assert.Equal(t, fiber.StatusBadRequest, resp.status)
	})

	t.Run("Unknown resource", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/reservations", f.user, reservationBody(at(10, 9), at(10, 10), uuid.New()))
		assert.Equal(t, fiber.StatusNotFound, resp.status)
	})

	t.Run("Anonymous", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/reservations", "", reservationBody(at(10, 9), at(10, 10), f.camera.ID))
		assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	})
}

func TestReservationAPI_ApprovalFlow(t *testing.T) {
	f := newAPIFixture(t)
	res := f.createReservation(t, f.user, at(11, 9), at(11, 12), f.camera.ID)
	approvePath := "/api/v1/reservations/" + res.ID.String() + "/approve"
	rejectPath := "/api/v1/reservations/" + res.ID.String() + "/reject"

	t.Run("Users cannot approve", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPatch, approvePath, f.user, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.status)
	})

	t.Run("Reject needs a reason", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPatch, rejectPath, f.admin, nil)
		require.Equal(t, fiber.StatusBadRequest, resp.status)
		assert.Equal(t, "VALIDATION_ERROR", resp.errorBody(t).Code)
	})

	t.Run("Approve", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPatch, approvePath, f.admin, nil)
		require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))
		var approved domain.Reservation
		resp.decode(t, &approved)
		assert.Equal(t, domain.StatusApproved, approved.Status)
		require.NotNil(t, approved.ReviewedBy)
		assert.Equal(t, f.adminID, *approved.ReviewedBy)
	})

	t.Run("Approving again reports the earlier decision", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPatch, approvePath, f.admin, nil)
		require.Equal(t, fiber.StatusConflict, resp.status)
		assert.Equal(t, "ALREADY_DECIDED", resp.errorBody(t).Code)
	})

	t.Run("Rejecting a decided reservation", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPatch, rejectPath, f.admin, map[string]string{"reason": "late"})
		require.Equal(t, fiber.StatusConflict, resp.status)
		body := resp.errorBody(t)
		assert.Equal(t, "ALREADY_DECIDED", body.Code)
		assert.Equal(t, middleware.AlreadyDecidedMessage, body.Message)
	})

	t.Run("History is recorded", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/reservations/"+res.ID.String()+"/history", f.admin, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var logs []domain.AuditLog
		resp.decode(t, &logs)
		assert.Len(t, logs, 1)
	})

	t.Run("Owner was notified", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/notifications/unread-count", f.user, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var body struct {
			Count int64 `json:"count"`
		}
		resp.decode(t, &body)
		assert.Equal(t, int64(1), body.Count)
	})

	t.Run("Approved window shows in by-date and calendar", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/reservations/by-date?date=2025-03-11", f.other, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var ids []uuid.UUID
		resp.decode(t, &ids)
		assert.Equal(t, []uuid.UUID{f.camera.ID}, ids)

		resp = f.do(t, fiber.MethodGet, "/api/v1/reservations/calendar?from=2025-03-01&to=2025-03-31", f.other, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var events []domain.CalendarEvent
		resp.decode(t, &events)
		require.Len(t, events, 1)
		assert.Equal(t, res.ID, events[0].ReservationID)
	})

	t.Run("By-date requires a date", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/reservations/by-date", f.other, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.status)
	})
}

func TestReservationAPI_ApprovalConflict(t *testing.T) {
	f := newAPIFixture(t)
	first := f.createReservation(t, f.user, at(12, 9), at(12, 12), f.camera.ID)

	// Creation would refuse this overlap, so the undecided neighbour is
	// written to the store directly.
	secondID := uuid.New()
	require.NoError(t, f.store.Transact(context.Background(), func(tx repository.Tx) error {
		if err := tx.Reservations().Create(context.Background(), &domain.Reservation{
			ID: secondID, UserID: f.userID, StartAt: at(12, 10), EndAt: at(12, 11), Status: domain.StatusPending,
		}); err != nil {
			return err
		}
		_, err := tx.Reservations().InsertItems(context.Background(), secondID, []uuid.UUID{f.camera.ID})
		return err
	}))

	resp := f.do(t, fiber.MethodPatch, "/api/v1/reservations/"+first.ID.String()+"/approve", f.admin, nil)
	require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))

	resp = f.do(t, fiber.MethodPatch, "/api/v1/reservations/"+secondID.String()+"/approve", f.admin, nil)
	require.Equal(t, fiber.StatusConflict, resp.status)
	body := resp.errorBody(t)
	assert.Equal(t, "CONFLICT", body.Code)
	assert.Equal(t, []uuid.UUID{f.camera.ID}, body.ResourceIDs)

	resp = f.do(t, fiber.MethodGet, "/api/v1/reservations/"+secondID.String(), f.admin, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var still domain.Reservation
	resp.decode(t, &still)
	assert.Equal(t, domain.StatusPending, still.Status)
}

func TestReservationAPI_OwnershipAndEdits(t *testing.T) {
	f := newAPIFixture(t)
	res := f.createReservation(t, f.user, at(13, 9), at(13, 10), f.camera.ID)
	path := "/api/v1/reservations/" + res.ID.String()

	t.Run("Other users cannot read it", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, path, f.other, nil)
		assert.Contains(t, []int{fiber.StatusForbidden, fiber.StatusNotFound}, resp.status)
	})

	t.Run("Other users cannot edit it", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPut, path, f.other, reservationBody(at(13, 11), at(13, 12), f.tripod.ID))
		assert.Contains(t, []int{fiber.StatusForbidden, fiber.StatusNotFound}, resp.status)
	})

	t.Run("Owner moves it to another resource", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPut, path, f.user, reservationBody(at(13, 11), at(13, 12), f.tripod.ID))
		require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))
		var updated domain.Reservation
		resp.decode(t, &updated)
		assert.Equal(t, []uuid.UUID{f.tripod.ID}, updated.ResourceIDs())
		assert.True(t, updated.StartAt.Equal(at(13, 11)))
	})

	t.Run("Camera is free again", func(t *testing.T) {
		f.createReservation(t, f.other, at(13, 9), at(13, 10), f.camera.ID)
	})

	t.Run("Only admins list everything", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/reservations", f.user, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.status)

		resp = f.do(t, fiber.MethodGet, "/api/v1/reservations?status=pending", f.admin, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var page domain.PaginatedResponse[domain.Reservation]
		resp.decode(t, &page)
		assert.Equal(t, int64(2), page.TotalItems)
	})

	t.Run("Bad status filter", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/reservations?status=LOST", f.admin, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.status)
	})

	t.Run("My status", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/my/status", f.user, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var body struct {
			Reservations []domain.Reservation `json:"reservations"`
		}
		resp.decode(t, &body)
		require.Len(t, body.Reservations, 1)
		assert.Equal(t, res.ID, body.Reservations[0].ID)
	})

	t.Run("Owner deletes it", func(t *testing.T) {
		resp := f.do(t, fiber.MethodDelete, path, f.user, nil)
		require.Equal(t, fiber.StatusNoContent, resp.status)

		resp = f.do(t, fiber.MethodGet, path, f.user, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.status)
	})

	t.Run("Invalid id", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/reservations/not-a-uuid", f.user, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.status)
	})
}

func TestReservationAPI_ManualCreation(t *testing.T) {
	f := newAPIFixture(t)
	body := reservationBody(at(14, 9), at(14, 18), f.camera.ID)
	body["user_id"] = f.userID

	resp := f.do(t, fiber.MethodPost, "/api/v1/reservations/manual", f.user, body)
	assert.Equal(t, fiber.StatusForbidden, resp.status)

	resp = f.do(t, fiber.MethodPost, "/api/v1/reservations/manual", f.admin, body)
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.body))
	var res domain.Reservation
	resp.decode(t, &res)
	assert.Equal(t, domain.StatusApproved, res.Status)
	assert.Equal(t, f.userID, res.UserID)

	resp = f.do(t, fiber.MethodGet, "/api/v1/equipments/"+f.camera.ID.String(), f.user, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var camera domain.Resource
	resp.decode(t, &camera)
	require.NotNil(t, camera.CurrentReservationID)
	assert.Equal(t, res.ID, *camera.CurrentReservationID)
}

func facilityBody(start, end time.Time, facilityID uuid.UUID, members ...domain.TeamMember) map[string]interface{} {
	return map[string]interface{}{
		"facility_id":  facilityID,
		"start_at":     start,
		"end_at":       end,
		"purpose":      "rehearsal",
		"team_members": members,
	}
}

func TestFacilityAPI(t *testing.T) {
	f := newAPIFixture(t)
	members := []domain.TeamMember{
		{Name: "Han", Department: "Film", StudentID: "20230001"},
		{Name: "Yoon", Department: "Film", StudentID: "20230002"},
	}

	resp := f.do(t, fiber.MethodPost, "/api/v1/facility-reservations", f.user, facilityBody(at(15, 13), at(15, 15), f.studio.ID, members...))
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.body))
	var fr domain.FacilityReservation
	resp.decode(t, &fr)
	assert.Equal(t, domain.StatusRequested, fr.Status)
	assert.Equal(t, 3, fr.Headcount)

	t.Run("Overlapping request conflicts", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/facility-reservations", f.other, facilityBody(at(15, 14), at(15, 16), f.studio.ID))
		require.Equal(t, fiber.StatusBadRequest, resp.status)
		assert.Equal(t, "CONFLICT", resp.errorBody(t).Code)
	})

	t.Run("Booking by name", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/facility-reservations", f.other, map[string]interface{}{
			"facility_name": "Studio A",
			"start_at":      at(16, 9),
			"end_at":        at(16, 10),
		})
		require.Equal(t, fiber.StatusCreated, resp.status, string(resp.body))
	})

	t.Run("Roster members need all fields", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/facility-reservations", f.user,
			facilityBody(at(17, 9), at(17, 10), f.studio.ID, domain.TeamMember{Name: "Han"}))
		require.Equal(t, fiber.StatusBadRequest, resp.status)
		body := resp.errorBody(t)
		assert.Contains(t, body.Fields, "team_members[0].department")
	})

	t.Run("Users see only their own requests", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/facility-reservations", f.user, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var page domain.PaginatedResponse[domain.FacilityReservation]
		resp.decode(t, &page)
		assert.Equal(t, int64(1), page.TotalItems)

		resp = f.do(t, fiber.MethodGet, "/api/v1/facility-reservations?facility_id="+f.studio.ID.String(), f.admin, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		resp.decode(t, &page)
		assert.Equal(t, int64(2), page.TotalItems)
	})

	t.Run("Reject with reason", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPatch, "/api/v1/facility-reservations/"+fr.ID.String()+"/reject", f.admin, map[string]string{"reason": "maintenance"})
		require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))
		var rejected domain.FacilityReservation
		resp.decode(t, &rejected)
		assert.Equal(t, domain.StatusRejected, rejected.Status)
		require.NotNil(t, rejected.RejectReason)
		assert.Equal(t, "maintenance", *rejected.RejectReason)

		resp = f.do(t, fiber.MethodPatch, "/api/v1/facility-reservations/"+fr.ID.String()+"/approve", f.admin, nil)
		assert.Equal(t, fiber.StatusConflict, resp.status)
	})

	t.Run("Owner deletes", func(t *testing.T) {
		resp := f.do(t, fiber.MethodDelete, "/api/v1/facility-reservations/"+fr.ID.String(), f.other, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.status)

		resp = f.do(t, fiber.MethodDelete, "/api/v1/facility-reservations/"+fr.ID.String(), f.user, nil)
		assert.Equal(t, fiber.StatusNoContent, resp.status)
	})
}

func TestCatalogAPI(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("Users cannot register equipment", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/equipments", f.user, map[string]string{"catalog_key": "MIC-01", "name": "Mic", "category": "audio"})
		assert.Equal(t, fiber.StatusForbidden, resp.status)
	})

	resp := f.do(t, fiber.MethodPost, "/api/v1/equipments", f.admin, map[string]string{"catalog_key": "MIC-01", "name": "Mic", "category": "audio"})
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.body))
	var mic domain.Resource
	resp.decode(t, &mic)
	require.NotNil(t, mic.Status)
	assert.Equal(t, domain.EquipmentAvailable, *mic.Status)

	t.Run("Listing", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/equipments", f.user, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var list []domain.Resource
		resp.decode(t, &list)
		assert.Len(t, list, 3)

		resp = f.do(t, fiber.MethodGet, "/api/v1/facilities", f.user, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		resp.decode(t, &list)
		require.Len(t, list, 1)
		assert.Equal(t, f.studio.ID, list[0].ID)
	})

	t.Run("Deactivated equipment leaves the list", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPatch, "/api/v1/equipments/"+mic.ID.String()+"/active", f.admin, map[string]bool{"is_active": false})
		require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))

		resp = f.do(t, fiber.MethodGet, "/api/v1/equipments", f.user, nil)
		var list []domain.Resource
		resp.decode(t, &list)
		assert.Len(t, list, 2)

		resp = f.do(t, fiber.MethodGet, "/api/v1/equipments?include_inactive=true", f.admin, nil)
		resp.decode(t, &list)
		assert.Len(t, list, 3)
	})

	t.Run("Active flag is required", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPatch, "/api/v1/equipments/"+mic.ID.String()+"/active", f.admin, map[string]string{})
		require.Equal(t, fiber.StatusBadRequest, resp.status)
		assert.Contains(t, resp.errorBody(t).Fields, "is_active")
	})

	t.Run("Status change", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPatch, "/api/v1/equipments/"+f.tripod.ID.String()+"/status", f.admin, map[string]string{"status": "BROKEN"})
		require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))

		resp = f.do(t, fiber.MethodPatch, "/api/v1/equipments/"+f.tripod.ID.String()+"/status", f.admin, map[string]string{"status": "LOST"})
		assert.Equal(t, fiber.StatusBadRequest, resp.status)
	})

	t.Run("A facility is not equipment", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/equipments/"+f.studio.ID.String(), f.user, nil)
		assert.Equal(t, fiber.StatusNotFound, resp.status)
	})

	t.Run("Booked windows", func(t *testing.T) {
		f.createReservation(t, f.user, at(20, 9), at(20, 10), f.camera.ID)
		resp := f.do(t, fiber.MethodGet, "/api/v1/equipments/"+f.camera.ID.String()+"/reservations", f.user, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var windows []domain.BookedWindow
		resp.decode(t, &windows)
		require.Len(t, windows, 1)
		assert.True(t, windows[0].StartAt.Equal(at(20, 9)))
	})

	t.Run("Image upload rejects non-images", func(t *testing.T) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		part, err := w.CreateFormFile("image", "camera.png")
		require.NoError(t, err)
		_, err = part.Write([]byte("\x89PNG fake"))
		require.NoError(t, err)
		require.NoError(t, w.Close())

		req := httptest.NewRequest(fiber.MethodPut, "/api/v1/equipments/"+f.camera.ID.String()+"/image", &buf)
		req.Header.Set("Content-Type", w.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+f.admin)
		resp := f.send(t, req)
		require.Equal(t, fiber.StatusBadRequest, resp.status)
		assert.Contains(t, resp.errorBody(t).Fields, "image")
	})

	t.Run("Image upload needs a file", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPut, "/api/v1/equipments/"+f.camera.ID.String()+"/image", f.admin, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.status)
	})
}

func TestAdminAPI(t *testing.T) {
	f := newAPIFixture(t)
	f.createReservation(t, f.user, at(21, 9), at(21, 10), f.camera.ID)
	f.createReservation(t, f.other, at(21, 9), at(21, 10), f.tripod.ID)
	resp := f.do(t, fiber.MethodPost, "/api/v1/facility-reservations", f.user, facilityBody(at(21, 13), at(21, 15), f.studio.ID))
	require.Equal(t, fiber.StatusCreated, resp.status, string(resp.body))

	t.Run("Admin only", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/admin/requests", f.user, nil)
		assert.Equal(t, fiber.StatusForbidden, resp.status)
	})

	t.Run("Pending counts", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/admin/requests/count", f.admin, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var counts domain.PendingCounts
		resp.decode(t, &counts)
		assert.Equal(t, domain.PendingCounts{Rental: 2, Facility: 1, Total: 3}, counts)
	})

	t.Run("Merged requests filtered by type", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/admin/requests?type=facility", f.admin, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var page domain.PaginatedResponse[domain.AdminRequest]
		resp.decode(t, &page)
		require.Len(t, page.Data, 1)
		assert.Equal(t, domain.RequestFacility, page.Data[0].Kind)

		resp = f.do(t, fiber.MethodGet, "/api/v1/admin/requests?type=boat", f.admin, nil)
		assert.Equal(t, fiber.StatusBadRequest, resp.status)
	})

	t.Run("Users by role", func(t *testing.T) {
		resp := f.do(t, fiber.MethodGet, "/api/v1/admin/users?role=admin", f.admin, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var page domain.PaginatedResponse[domain.User]
		resp.decode(t, &page)
		require.Len(t, page.Data, 1)
		assert.Equal(t, f.adminID, page.Data[0].ID)
	})
}

func TestAuthAPI(t *testing.T) {
	f := newAPIFixture(t)

	t.Run("Register and me", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"email": "jung@example.com", "password": "password123", "name": "Jung",
		})
		require.Equal(t, fiber.StatusCreated, resp.status, string(resp.body))
		var body struct {
			User   domain.User      `json:"user"`
			Tokens domain.TokenPair `json:"tokens"`
		}
		resp.decode(t, &body)

		resp = f.do(t, fiber.MethodGet, "/api/v1/auth/me", body.Tokens.AccessToken, nil)
		require.Equal(t, fiber.StatusOK, resp.status)
		var me domain.User
		resp.decode(t, &me)
		assert.Equal(t, body.User.ID, me.ID)
		assert.Empty(t, me.PasswordHash)
	})

	t.Run("Duplicate email", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"email": "kim@example.com", "password": "password123", "name": "Kim",
		})
		assert.Equal(t, fiber.StatusConflict, resp.status)
	})

	t.Run("Short password", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/auth/register", "", map[string]string{
			"email": "new@example.com", "password": "short", "name": "New",
		})
		require.Equal(t, fiber.StatusBadRequest, resp.status)
		assert.Contains(t, resp.errorBody(t).Fields, "password")
	})

	t.Run("Wrong admin code", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/auth/admin/register", "", map[string]string{
			"email": "boss@example.com", "password": "password123", "name": "Boss", "admin_code": "guess",
		})
		assert.Equal(t, fiber.StatusForbidden, resp.status)
	})

	t.Run("Wrong password", func(t *testing.T) {
		resp := f.do(t, fiber.MethodPost, "/api/v1/auth/login", "", map[string]string{
			"email": "kim@example.com", "password": "password999",
		})
		assert.Equal(t, fiber.StatusUnauthorized, resp.status)
	})
}

func TestNotificationAPI(t *testing.T) {
	f := newAPIFixture(t)
	for day := 22; day <= 23; day++ {
		res := f.createReservation(t, f.user, at(day, 9), at(day, 10), f.camera.ID)
		resp := f.do(t, fiber.MethodPatch, "/api/v1/reservations/"+res.ID.String()+"/approve", f.admin, nil)
		require.Equal(t, fiber.StatusOK, resp.status, string(resp.body))
	}

	resp := f.do(t, fiber.MethodGet, "/api/v1/notifications?unread_only=true", f.user, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var page domain.PaginatedResponse[domain.Notification]
	resp.decode(t, &page)
	require.Len(t, page.Data, 2)

	resp = f.do(t, fiber.MethodPatch, "/api/v1/notifications/"+page.Data[0].ID.String()+"/read", f.other, nil)
	assert.Equal(t, fiber.StatusNotFound, resp.status)

	resp = f.do(t, fiber.MethodPatch, "/api/v1/notifications/"+page.Data[0].ID.String()+"/read", f.user, nil)
	require.Equal(t, fiber.StatusNoContent, resp.status)

	resp = f.do(t, fiber.MethodPost, "/api/v1/notifications/mark-all-read", f.user, nil)
	require.Equal(t, fiber.StatusOK, resp.status)
	var marked struct {
		Updated int64 `json:"updated"`
	}
	resp.decode(t, &marked)
	assert.Equal(t, int64(1), marked.Updated)

	resp = f.do(t, fiber.MethodGet, "/api/v1/notifications/unread-count", f.user, nil)
	var count struct {
		Count int64 `json:"count"`
	}
	resp.decode(t, &count)
	assert.Equal(t, int64(0), count.Count)
}
