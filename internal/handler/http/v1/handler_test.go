package v1

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shenikar/emergency_response_system/internal/access"
	"github.com/shenikar/emergency_response_system/internal/config"
	"github.com/shenikar/emergency_response_system/internal/models"
	"github.com/shenikar/emergency_response_system/internal/notification"
	"github.com/shenikar/emergency_response_system/internal/service"
	"github.com/shenikar/emergency_response_system/internal/service/mocks"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	moderatorToken = "moderator-token"
	citizenToken   = "citizen-token"
	responderToken = "responder-token"
)

var (
	moderatorUser = &models.User{ID: uuid.New(), Name: "Mod", Email: "mod@example.com", Role: models.RoleModerator, Status: models.UserActive}
	citizenUser   = &models.User{ID: uuid.New(), Name: "Citizen", Email: "citizen@example.com", Role: models.RoleUser, Status: models.UserActive}
	responderUser = &models.User{ID: uuid.New(), Name: "Responder", Email: "responder@example.com", Role: models.RoleResponder, Status: models.UserActive}
)

type testDeps struct {
	incidents  *mocks.MockIncidentService
	auth       *mocks.MockAuthService
	responders *mocks.MockResponderService
	hub        *notification.Hub
}

// newTestHandler создает Handler с мокированными сервисами и настоящими политикой и хабом
func newTestHandler(t *testing.T) (*Handler, *testDeps, *gin.Engine) {
	ctrl := gomock.NewController(t)
	deps := &testDeps{
		incidents:  mocks.NewMockIncidentService(ctrl),
		auth:       mocks.NewMockAuthService(ctrl),
		responders: mocks.NewMockResponderService(ctrl),
	}

	logger := logrus.New()
	logger.SetOutput(&bytes.Buffer{}) // Отключаем вывод логов в тестах

	policy, err := access.NewPolicy()
	require.NoError(t, err)

	deps.hub = notification.NewHub(nil, policy, logger)
	ctx, cancel := context.WithCancel(context.Background())
	go deps.hub.Run(ctx)
	t.Cleanup(cancel)

	// Токены тестовых пользователей; любой другой токен недействителен
	deps.auth.EXPECT().Authenticate(gomock.Any(), moderatorToken).Return(moderatorUser, nil).AnyTimes()
	deps.auth.EXPECT().Authenticate(gomock.Any(), citizenToken).Return(citizenUser, nil).AnyTimes()
	deps.auth.EXPECT().Authenticate(gomock.Any(), responderToken).Return(responderUser, nil).AnyTimes()
	deps.auth.EXPECT().Authenticate(gomock.Any(), gomock.Any()).Return(nil, service.ErrUnauthorized).AnyTimes()

	cfg := &config.Config{DefaultRadiusMeters: 10000}

	handler := NewHandler(deps.incidents, deps.auth, deps.responders, policy, deps.hub, logger, cfg)

	// Настройка Gin роутера для тестов
	gin.SetMode(gin.TestMode)
	router := gin.New()
	api := router.Group("/api/v1")
	handler.RegisterRoutes(api)

	return handler, deps, router
}

// makeRequest - вспомогательная функция для выполнения HTTP-запросов
func makeRequest(router *gin.Engine, method, url string, body io.Reader, headers ...map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, url, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, h := range headers {
		for key, value := range h {
			req.Header.Set(key, value)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func jsonBody(t *testing.T, v any) io.Reader {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewBuffer(b)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func sampleIncident() *models.Incident {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &models.Incident{
		ID:            uuid.New(),
		Title:         "Flooded street",
		Description:   "Water is rising",
		Type:          models.TypeEmergency,
		Status:        models.StatusPending,
		Priority:      models.PriorityMedium,
		Location:      models.Point{Longitude: -122.4, Latitude: 37.8},
		ReportedBy:    citizenUser.ID,
		ReporterEmail: citizenUser.Email,
		AssignedTo:    []uuid.UUID{},
		Media:         []models.MediaAttachment{},
		Updates:       []models.IncidentUpdate{},
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestHealthCheck(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/api/v1/system/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().ListIncidents(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "GET", "/api/v1/incidents", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "authorization token required")
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/api/v1/incidents", nil, bearer("forged"))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), service.ErrUnauthorized.Error())
}

func TestMe_TokenFromQuery(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/api/v1/auth/me?token="+citizenToken, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, citizenUser.ID, resp.ID)
	assert.Equal(t, "user", resp.Role)
	assert.NotContains(t, w.Body.String(), "password")
}

func TestRegister_Success(t *testing.T) {
	_, deps, router := newTestHandler(t)
	reqBody := RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "secret1", Role: "responder"}
	created := &models.User{ID: uuid.New(), Name: "Alice", Email: "alice@example.com", Role: models.RoleResponder, Status: models.UserActive}

	deps.auth.EXPECT().
		Register(gomock.Any(), models.Registration{Name: "Alice", Email: "alice@example.com", Password: "secret1", Role: models.RoleResponder}).
		Return(created, "jwt-token", nil).
		Times(1)

	w := makeRequest(router, "POST", "/api/v1/auth/register", jsonBody(t, reqBody))

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp AuthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "jwt-token", resp.Token)
	assert.Equal(t, created.ID, resp.User.ID)
}

func TestRegister_ValidationError(t *testing.T) {
	_, deps, router := newTestHandler(t)
	reqBody := RegisterRequest{Name: "Alice", Email: "not-an-email", Password: "123"}

	deps.auth.EXPECT().Register(gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(router, "POST", "/api/v1/auth/register", jsonBody(t, reqBody))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "validation failed", resp.Error)
	assert.Contains(t, resp.Fields, "email")
	assert.Contains(t, resp.Fields, "password")
}

func TestRegister_EmailTaken(t *testing.T) {
	_, deps, router := newTestHandler(t)
	reqBody := RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "secret1"}

	deps.auth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, "", service.ErrEmailTaken).Times(1)

	w := makeRequest(router, "POST", "/api/v1/auth/register", jsonBody(t, reqBody))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "user already exists with this email")
}

func TestLogin_InvalidCredentials(t *testing.T) {
	_, deps, router := newTestHandler(t)
	reqBody := LoginRequest{Email: "alice@example.com", Password: "wrong"}

	deps.auth.EXPECT().Login(gomock.Any(), "alice@example.com", "wrong").Return(nil, "", service.ErrInvalidCredentials).Times(1)

	w := makeRequest(router, "POST", "/api/v1/auth/login", jsonBody(t, reqBody))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid credentials")
}

func TestCreateIncident_Success(t *testing.T) {
	_, deps, router := newTestHandler(t)
	expected := sampleIncident()
	reqBody := CreateIncidentRequest{
		Title:       expected.Title,
		Description: expected.Description,
		Type:        "emergency",
		Location:    LocationRequest{Type: "Point", Coordinates: []float64{-122.4, 37.8}},
		Address:     &AddressRequest{City: "San Francisco"},
	}

	deps.incidents.EXPECT().
		CreateIncident(gomock.Any(), models.ActorFromUser(citizenUser), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ models.Actor, inc *models.Incident) error {
			assert.Equal(t, models.Point{Longitude: -122.4, Latitude: 37.8}, inc.Location)
			assert.Equal(t, "San Francisco", inc.Address.City)
			assert.Equal(t, models.TypeEmergency, inc.Type)
			*inc = *expected // Обновляем переданный инцидент
			return nil
		}).Times(1)

	w := makeRequest(router, "POST", "/api/v1/incidents", jsonBody(t, reqBody), bearer(citizenToken))

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, expected.ID, resp.ID)
	assert.Equal(t, "pending", resp.Status)
	assert.Equal(t, [2]float64{-122.4, 37.8}, resp.Location.Coordinates)
	assert.Equal(t, "Point", resp.Location.Type)
}

func TestCreateIncident_InvalidJSON(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().CreateIncident(gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(router, "POST", "/api/v1/incidents", bytes.NewBufferString(`{"title": "test"`), bearer(citizenToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid request body")
}

func TestCreateIncident_ValidationError(t *testing.T) {
	_, deps, router := newTestHandler(t)
	reqBody := CreateIncidentRequest{ // Отсутствует Title, широта вне диапазона
		Description: "Description",
		Type:        "flood",
		Location:    LocationRequest{Coordinates: []float64{10, 95}},
	}

	deps.incidents.EXPECT().CreateIncident(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "POST", "/api/v1/incidents", jsonBody(t, reqBody), bearer(citizenToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeError(t, w)
	assert.Equal(t, "is required", resp.Fields["title"])
	assert.Contains(t, resp.Fields["type"], "must be one of")
	assert.Contains(t, resp.Fields, "location.coordinates")
}

func TestCreateIncident_ServiceError(t *testing.T) {
	_, deps, router := newTestHandler(t)
	reqBody := CreateIncidentRequest{
		Title:       "Test Incident",
		Description: "Description",
		Type:        "fire",
		Location:    LocationRequest{Coordinates: []float64{20, 10}},
	}

	deps.incidents.EXPECT().
		CreateIncident(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("connection reset by peer")).
		Times(1)

	w := makeRequest(router, "POST", "/api/v1/incidents", jsonBody(t, reqBody), bearer(citizenToken))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "internal server error")
	assert.NotContains(t, w.Body.String(), "connection reset")
}

func TestGetIncident_Success(t *testing.T) {
	_, deps, router := newTestHandler(t)
	incident := sampleIncident()
	timeline := []models.TimelineEvent{
		{Status: "reported", Message: "Incident reported", Actor: &incident.ReportedBy, Timestamp: incident.CreatedAt},
	}

	deps.incidents.EXPECT().
		GetIncident(gomock.Any(), models.ActorFromUser(citizenUser), incident.ID).
		Return(incident, timeline, nil).
		Times(1)

	w := makeRequest(router, "GET", fmt.Sprintf("/api/v1/incidents/%s", incident.ID.String()), nil, bearer(citizenToken))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentDetailResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, incident.ID, resp.ID)
	assert.Equal(t, incident.Title, resp.Title)
	require.Len(t, resp.Timeline, 1)
	assert.Equal(t, "reported", resp.Timeline[0].Status)
}

func TestGetIncident_InvalidID(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().GetIncident(gomock.Any(), gomock.Any(), gomock.Any()).Times(0) // Сервис не должен вызываться

	w := makeRequest(router, "GET", "/api/v1/incidents/invalid-uuid", nil, bearer(citizenToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid incident ID")
}

func TestGetIncident_NotFound(t *testing.T) {
	_, deps, router := newTestHandler(t)
	incidentID := uuid.New()

	deps.incidents.EXPECT().GetIncident(gomock.Any(), gomock.Any(), incidentID).Return(nil, nil, service.ErrIncidentNotFound).Times(1)

	w := makeRequest(router, "GET", fmt.Sprintf("/api/v1/incidents/%s", incidentID.String()), nil, bearer(citizenToken))

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "incident not found")
}

func TestListIncidents_Filters(t *testing.T) {
	_, deps, router := newTestHandler(t)
	incident := sampleIncident()
	expectedFilter := models.IncidentFilter{
		Type:     models.TypeFire,
		Status:   models.StatusActive,
		Priority: models.PriorityHigh,
		Near: &models.GeoFilter{
			Center:       models.Point{Longitude: -122.4, Latitude: 37.8},
			RadiusMeters: 500,
		},
		Page:  2,
		Limit: 5,
	}

	deps.incidents.EXPECT().
		ListIncidents(gomock.Any(), models.ActorFromUser(moderatorUser), expectedFilter).
		Return(&models.IncidentPage{Incidents: []*models.Incident{incident}, CurrentPage: 2, TotalPages: 3, Total: 11}, nil).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents?type=fire&status=active&priority=high&lat=37.8&lng=-122.4&radius=500&page=2&limit=5", nil, bearer(moderatorToken))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Incidents, 1)
	assert.Equal(t, 2, resp.CurrentPage)
	assert.Equal(t, 3, resp.TotalPages)
	assert.Equal(t, 11, resp.Total)
}

func TestListIncidents_Defaults(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().
		ListIncidents(gomock.Any(), gomock.Any(), models.IncidentFilter{Page: 1, Limit: 10}).
		Return(&models.IncidentPage{Incidents: []*models.Incident{}, CurrentPage: 1}, nil).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents", nil, bearer(citizenToken))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"incidents":[]`)
}

func TestListIncidents_InvalidCoordinates(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().ListIncidents(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "GET", "/api/v1/incidents?lat=north&lng=10", nil, bearer(citizenToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Fields, "lat")
}

func TestListIncidents_ServiceValidationError(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().
		ListIncidents(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(nil, &service.ValidationError{Fields: map[string]string{"status": "invalid status"}}).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents?status=archived", nil, bearer(citizenToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid status", decodeError(t, w).Fields["status"])
}

func TestSearchIncidents_Success(t *testing.T) {
	_, deps, router := newTestHandler(t)
	incident := sampleIncident()

	deps.incidents.EXPECT().
		SearchIncidents(gomock.Any(), models.ActorFromUser(citizenUser), "flood", 5).
		Return([]*models.Incident{incident}, nil).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/search?q=flood&limit=5", nil, bearer(citizenToken))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, incident.ID, resp[0].ID)
}

func TestSearchIncidents_EmptyQuery(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().
		SearchIncidents(gomock.Any(), gomock.Any(), "", 0).
		Return(nil, &service.ValidationError{Fields: map[string]string{"q": "search query is required"}}).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/search", nil, bearer(citizenToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Fields, "q")
}

func TestUpdateIncident_Success(t *testing.T) {
	_, deps, router := newTestHandler(t)
	incident := sampleIncident()
	incident.Status = models.StatusResolved
	reqBody := map[string]any{"status": "resolved", "reportedBy": uuid.New().String()}

	deps.incidents.EXPECT().
		UpdateIncident(gomock.Any(), models.ActorFromUser(moderatorUser), incident.ID, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ models.Actor, _ uuid.UUID, patch models.IncidentPatch) (*models.Incident, error) {
			require.NotNil(t, patch.Status)
			assert.Equal(t, models.StatusResolved, *patch.Status)
			assert.Nil(t, patch.Title)
			assert.Nil(t, patch.Location)
			return incident, nil
		}).Times(1)

	w := makeRequest(router, "PATCH", fmt.Sprintf("/api/v1/incidents/%s", incident.ID), jsonBody(t, reqBody), bearer(moderatorToken))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "resolved", resp.Status)
}

func TestUpdateIncident_InvalidStatus(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().UpdateIncident(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "PATCH", fmt.Sprintf("/api/v1/incidents/%s", uuid.New()), bytes.NewBufferString(`{"status":"archived"}`), bearer(moderatorToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Fields, "status")
}

func TestUpdateIncident_ServiceErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantBody   string
	}{
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "permission"},
		{"not found", service.ErrIncidentNotFound, http.StatusNotFound, "incident not found"},
		{"conflict", service.ErrConflict, http.StatusConflict, "modified by another request"},
		{"unexpected", errors.New("pool exhausted"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, deps, router := newTestHandler(t)
			id := uuid.New()

			deps.incidents.EXPECT().UpdateIncident(gomock.Any(), gomock.Any(), id, gomock.Any()).Return(nil, tt.err).Times(1)

			w := makeRequest(router, "PATCH", fmt.Sprintf("/api/v1/incidents/%s", id), bytes.NewBufferString(`{"title":"New title"}`), bearer(citizenToken))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.wantBody)
		})
	}
}

func TestAssignResponders_Success(t *testing.T) {
	_, deps, router := newTestHandler(t)
	incident := sampleIncident()
	incident.Status = models.StatusActive
	incident.AssignedTo = []uuid.UUID{responderUser.ID}

	deps.incidents.EXPECT().
		AssignResponders(gomock.Any(), models.ActorFromUser(moderatorUser), incident.ID, []uuid.UUID{responderUser.ID}).
		Return(incident, nil).
		Times(1)

	reqBody := AssignRespondersRequest{Responders: []string{responderUser.ID.String()}}
	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/assign", incident.ID), jsonBody(t, reqBody), bearer(moderatorToken))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "active", resp.Status)
	assert.Equal(t, []uuid.UUID{responderUser.ID}, resp.AssignedTo)
}

func TestAssignResponders_InvalidIDs(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().AssignResponders(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	reqBody := AssignRespondersRequest{Responders: []string{"not-a-uuid"}}
	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/assign", uuid.New()), jsonBody(t, reqBody), bearer(moderatorToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Fields, "responders[0]")
}

func TestAssignResponders_EmptyList(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().AssignResponders(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/assign", uuid.New()), bytes.NewBufferString(`{"responders":[]}`), bearer(moderatorToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Fields, "responders")
}

func TestAssignResponders_Unavailable(t *testing.T) {
	_, deps, router := newTestHandler(t)
	id := uuid.New()
	missing := uuid.New()

	deps.incidents.EXPECT().
		AssignResponders(gomock.Any(), gomock.Any(), id, gomock.Any()).
		Return(nil, fmt.Errorf("%w: %s", service.ErrResponderUnavailable, missing)).
		Times(1)

	reqBody := AssignRespondersRequest{Responders: []string{missing.String()}}
	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/assign", id), jsonBody(t, reqBody), bearer(moderatorToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "one or more responders are unavailable")
}

func TestAddMedia_Success(t *testing.T) {
	_, deps, router := newTestHandler(t)
	incident := sampleIncident()
	media := models.MediaAttachment{Kind: models.MediaImage, URL: "https://cdn.example.com/a.jpg", Caption: "front"}
	incident.Media = []models.MediaAttachment{media}

	deps.incidents.EXPECT().AddMedia(gomock.Any(), gomock.Any(), incident.ID, media).Return(incident, nil).Times(1)

	reqBody := AddMediaRequest{Type: "image", URL: media.URL, Caption: media.Caption}
	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/media", incident.ID), jsonBody(t, reqBody), bearer(citizenToken))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp IncidentResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Media, 1)
	assert.Equal(t, "image", resp.Media[0].Type)
}

func TestAddMedia_InvalidURL(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().AddMedia(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	reqBody := AddMediaRequest{Type: "audio", URL: "not a url"}
	w := makeRequest(router, "POST", fmt.Sprintf("/api/v1/incidents/%s/media", uuid.New()), jsonBody(t, reqBody), bearer(citizenToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	fields := decodeError(t, w).Fields
	assert.Contains(t, fields, "type")
	assert.Contains(t, fields, "url")
}

func TestGetStats_Success(t *testing.T) {
	_, deps, router := newTestHandler(t)
	stats := &models.IncidentStats{
		ByType:                   []models.CountBucket{{Key: "fire", Count: 3}},
		ByStatus:                 []models.CountBucket{{Key: "active", Count: 2}},
		Trend:                    []models.CountBucket{{Key: "2024-05-01", Count: 3}},
		AverageResolutionMinutes: 42.5,
		WindowDays:               30,
	}

	deps.incidents.EXPECT().GetStats(gomock.Any(), models.ActorFromUser(moderatorUser)).Return(stats, nil).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/stats", nil, bearer(moderatorToken))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 42.5, resp.AverageResolutionMinutes)
	assert.Equal(t, []CountResponse{{Key: "fire", Count: 3}}, resp.ByType)
}

func TestGetStats_Forbidden(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.incidents.EXPECT().GetStats(gomock.Any(), gomock.Any()).Return(nil, service.ErrForbidden).Times(1)

	w := makeRequest(router, "GET", "/api/v1/incidents/stats", nil, bearer(citizenToken))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestListAvailableResponders(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.responders.EXPECT().
		ListAvailable(gomock.Any(), models.ActorFromUser(moderatorUser)).
		Return([]*models.User{responderUser}, nil).
		Times(1)

	w := makeRequest(router, "GET", "/api/v1/responders/available", nil, bearer(moderatorToken))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp []UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, responderUser.ID, resp[0].ID)
}

func TestUpdateResponderLocation(t *testing.T) {
	_, deps, router := newTestHandler(t)
	point := models.Point{Longitude: 30.3, Latitude: 59.9}
	updated := *responderUser
	updated.Location = &point

	deps.responders.EXPECT().
		UpdateLocation(gomock.Any(), models.ActorFromUser(responderUser), point).
		Return(&updated, nil).
		Times(1)

	reqBody := ResponderLocationRequest{Coordinates: []float64{30.3, 59.9}}
	w := makeRequest(router, "POST", "/api/v1/responders/location", jsonBody(t, reqBody), bearer(responderToken))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp UserResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Location)
	assert.Equal(t, [2]float64{30.3, 59.9}, resp.Location.Coordinates)
}

func TestUpdateResponderLocation_InvalidCoordinates(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.responders.EXPECT().UpdateLocation(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	w := makeRequest(router, "POST", "/api/v1/responders/location", bytes.NewBufferString(`{"coordinates":[200]}`), bearer(responderToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Fields, "coordinates")
}

func TestUpdateResponderStatus_Forbidden(t *testing.T) {
	_, deps, router := newTestHandler(t)

	deps.responders.EXPECT().
		UpdateStatus(gomock.Any(), models.ActorFromUser(citizenUser), models.UserInactive).
		Return(nil, service.ErrForbidden).
		Times(1)

	w := makeRequest(router, "PATCH", "/api/v1/responders/status", bytes.NewBufferString(`{"status":"inactive"}`), bearer(citizenToken))

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestStreamEvents_FilterRequiredForNonModerator(t *testing.T) {
	_, _, router := newTestHandler(t)

	w := makeRequest(router, "GET", "/api/v1/ws", nil, bearer(citizenToken))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "incident filter is required")
}

func TestStreamEvents_HiddenIncident(t *testing.T) {
	_, deps, router := newTestHandler(t)
	id := uuid.New()

	deps.incidents.EXPECT().GetIncident(gomock.Any(), models.ActorFromUser(citizenUser), id).Return(nil, nil, service.ErrIncidentNotFound).Times(1)

	w := makeRequest(router, "GET", "/api/v1/ws?incident="+id.String(), nil, bearer(citizenToken))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamEvents_DeliversBroadcast(t *testing.T) {
	_, deps, router := newTestHandler(t)
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/v1/ws"
	header := http.Header{}
	header.Set("Authorization", "Bearer "+moderatorToken)

	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	received := make(chan notification.Event, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var event notification.Event
		if json.Unmarshal(data, &event) == nil {
			received <- event
		}
	}()

	incidentID := uuid.New()
	incident := &models.Incident{ID: incidentID, Status: models.StatusActive, ReportedBy: citizenUser.ID}
	event := notification.NewIncidentEvent(notification.EventIncidentUpdated, incident, moderatorUser.ID, time.Now())

	// Клиент регистрируется в хабе асинхронно, поэтому событие отправляется повторно
	deadline := time.After(2 * time.Second)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		deps.hub.Broadcast(event)
		select {
		case got := <-received:
			assert.Equal(t, incidentID, got.IncidentID)
			assert.Equal(t, notification.EventIncidentUpdated, got.Type)
			return
		case <-deadline:
			t.Fatal("timed out waiting for websocket event")
		case <-ticker.C:
		}
	}
}
