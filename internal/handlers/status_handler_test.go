package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/waterplan/cadastre-ingest/internal/models"
)

// mockUploadRepo is a mock implementation of repository.UploadRepository.
type mockUploadRepo struct {
	mock.Mock
}

func (m *mockUploadRepo) MarkProcessing(ctx context.Context, job *models.UploadJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *mockUploadRepo) MarkCompleted(ctx context.Context, uploadID string, parcelCount int, fileSizeBytes int64, duration time.Duration) error {
	args := m.Called(ctx, uploadID, parcelCount, fileSizeBytes, duration)
	return args.Error(0)
}

func (m *mockUploadRepo) MarkFailed(ctx context.Context, uploadID string, cause error, duration time.Duration) error {
	args := m.Called(ctx, uploadID, cause, duration)
	return args.Error(0)
}

func (m *mockUploadRepo) GetByID(ctx context.Context, uploadID string) (*models.UploadJob, error) {
	args := m.Called(ctx, uploadID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UploadJob), args.Error(1)
}

// mockParcelRepo is a mock implementation of repository.ParcelRepository.
type mockParcelRepo struct {
	mock.Mock
}

func (m *mockParcelRepo) ReplaceZoneParcels(ctx context.Context, uploadID string, parcels []models.Parcel) error {
	args := m.Called(ctx, uploadID, parcels)
	return args.Error(0)
}

func (m *mockParcelRepo) CurrentByZone(ctx context.Context, zone string) ([]models.Parcel, error) {
	args := m.Called(ctx, zone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Parcel), args.Error(1)
}

// mockSummaryRepo is a mock implementation of repository.ZoneSummaryRepository.
type mockSummaryRepo struct {
	mock.Mock
}

func (m *mockSummaryRepo) Upsert(ctx context.Context, summary models.ZoneSummary) error {
	args := m.Called(ctx, summary)
	return args.Error(0)
}

func (m *mockSummaryRepo) GetByZoneAndDate(ctx context.Context, zone string, date string) (*models.ZoneSummary, error) {
	args := m.Called(ctx, zone, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ZoneSummary), args.Error(1)
}

func newStatusRouter(uploads *mockUploadRepo, parcels *mockParcelRepo, summaries *mockSummaryRepo) *gin.Engine {
	handler := NewStatusHandler(uploads, parcels, summaries)

	router := gin.New()
	router.GET("/api/v1/uploads/:id", handler.GetUpload)
	router.GET("/api/v1/zones/:zone/parcels", handler.GetZoneParcels)
	router.GET("/api/v1/zones/:zone/summary", handler.GetZoneSummary)
	return router
}

func TestGetUpload_Found(t *testing.T) {
	uploads := new(mockUploadRepo)
	count := 42
	uploads.On("GetByID", mock.Anything, "u-1").Return(&models.UploadJob{
		UploadID:    "u-1",
		Status:      models.UploadStatusCompleted,
		ParcelCount: &count,
	}, nil)

	router := newStatusRouter(uploads, new(mockParcelRepo), new(mockSummaryRepo))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/u-1", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var job models.UploadJob
	require.NoError(t, json.NewDecoder(w.Body).Decode(&job))
	assert.Equal(t, "u-1", job.UploadID)
	assert.Equal(t, models.UploadStatusCompleted, job.Status)
	require.NotNil(t, job.ParcelCount)
	assert.Equal(t, 42, *job.ParcelCount)
}

func TestGetUpload_NotFound(t *testing.T) {
	uploads := new(mockUploadRepo)
	uploads.On("GetByID", mock.Anything, "missing").Return(nil, nil)

	router := newStatusRouter(uploads, new(mockParcelRepo), new(mockSummaryRepo))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/missing", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetUpload_QueryError(t *testing.T) {
	uploads := new(mockUploadRepo)
	uploads.On("GetByID", mock.Anything, "u-1").Return(nil, errors.New("connection refused"))

	router := newStatusRouter(uploads, new(mockParcelRepo), new(mockSummaryRepo))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/uploads/u-1", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetZoneParcels(t *testing.T) {
	parcels := new(mockParcelRepo)
	parcels.On("CurrentByZone", mock.Anything, "Z1").Return([]models.Parcel{
		{ParcelID: "P-001", Zone: "Z1"},
		{ParcelID: "P-002", Zone: "Z1"},
	}, nil)

	router := newStatusRouter(new(mockUploadRepo), parcels, new(mockSummaryRepo))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/zones/Z1/parcels", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Zone  string `json:"zone"`
		Count int    `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "Z1", response.Zone)
	assert.Equal(t, 2, response.Count)
}

func TestGetZoneParcels_EmptyZone(t *testing.T) {
	parcels := new(mockParcelRepo)
	parcels.On("CurrentByZone", mock.Anything, "Z9").Return([]models.Parcel{}, nil)

	router := newStatusRouter(new(mockUploadRepo), parcels, new(mockSummaryRepo))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/zones/Z9/parcels", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Zero(t, response.Count)
}

func TestGetZoneSummary_ExplicitDate(t *testing.T) {
	summaries := new(mockSummaryRepo)
	summaries.On("GetByZoneAndDate", mock.Anything, "Z1", "2026-05-10").Return(&models.ZoneSummary{
		Zone:         "Z1",
		TotalParcels: 7,
	}, nil)

	router := newStatusRouter(new(mockUploadRepo), new(mockParcelRepo), summaries)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/zones/Z1/summary?date=2026-05-10", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var summary models.ZoneSummary
	require.NoError(t, json.NewDecoder(w.Body).Decode(&summary))
	assert.Equal(t, "Z1", summary.Zone)
	assert.Equal(t, 7, summary.TotalParcels)
}

func TestGetZoneSummary_DefaultsToToday(t *testing.T) {
	today := time.Now().UTC().Format("2006-01-02")

	summaries := new(mockSummaryRepo)
	summaries.On("GetByZoneAndDate", mock.Anything, "Z1", today).Return(&models.ZoneSummary{Zone: "Z1"}, nil)

	router := newStatusRouter(new(mockUploadRepo), new(mockParcelRepo), summaries)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/zones/Z1/summary", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	summaries.AssertExpectations(t)
}

func TestGetZoneSummary_BadDate(t *testing.T) {
	router := newStatusRouter(new(mockUploadRepo), new(mockParcelRepo), new(mockSummaryRepo))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/zones/Z1/summary?date=10-05-2026", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetZoneSummary_NotFound(t *testing.T) {
	summaries := new(mockSummaryRepo)
	summaries.On("GetByZoneAndDate", mock.Anything, "Z1", "2026-05-10").Return(nil, nil)

	router := newStatusRouter(new(mockUploadRepo), new(mockParcelRepo), summaries)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/zones/Z1/summary?date=2026-05-10", nil))

	assert.Equal(t, http.StatusNotFound, w.Code)
}
