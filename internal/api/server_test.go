package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/mito-cohort-pipeline/internal/domain"
	"github.com/mito-cohort-pipeline/internal/service"
)

type stubConfigManager struct {
	config domain.Config
}

func (s *stubConfigManager) GetConfig() *domain.Config                   { return &s.config }
func (s *stubConfigManager) GetPipelineConfig() *domain.PipelineConfig   { return &s.config.Pipeline }
func (s *stubConfigManager) GetOntologyConfig() *domain.OntologyConfig   { return &s.config.Ontology }
func (s *stubConfigManager) GetServerConfig() *domain.ServerConfig       { return &s.config.Server }
func (s *stubConfigManager) Reload() error                               { return nil }
func (s *stubConfigManager) Validate() error                             { return nil }
func (s *stubConfigManager) GetDatabaseConnectionString() string         { return "" }

// MockRunStore is a mock implementation of domain.RunStore
type MockRunStore struct {
	mock.Mock
}

func (m *MockRunStore) SaveRun(ctx context.Context, report *domain.RunReport) error {
	return m.Called(ctx, report).Error(0)
}

func (m *MockRunStore) GetRun(ctx context.Context, runID string) (*domain.RunReport, error) {
	args := m.Called(ctx, runID)
	report, _ := args.Get(0).(*domain.RunReport)
	return report, args.Error(1)
}

func (m *MockRunStore) ListRuns(ctx context.Context, limit, offset int) ([]*domain.RunReport, error) {
	args := m.Called(ctx, limit, offset)
	runs, _ := args.Get(0).([]*domain.RunReport)
	return runs, args.Error(1)
}

func (m *MockRunStore) Close() error {
	return m.Called().Error(0)
}

type mapResolver map[string]string

func (m mapResolver) ResolveName(_ context.Context, id string) (string, error) {
	if id == "HP:FAIL" {
		return "", errors.New("upstream unavailable")
	}
	return m[id], nil
}

func newTestServer(deps Dependencies) *Server {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	logger.SetLevel(logrus.FatalLevel)

	configManager := &stubConfigManager{config: domain.Config{
		Server:  domain.ServerConfig{Host: "127.0.0.1", Port: 0},
		Logging: domain.LoggingConfig{Level: "info"},
	}}
	return NewServer(configManager, deps, logger)
}

func doRequest(t *testing.T, s *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(Dependencies{})
	w := doRequest(t, s, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, false, body["run_store"])
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestListRuns(t *testing.T) {
	store := new(MockRunStore)
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store.On("ListRuns", mock.Anything, 20, 0).Return([]*domain.RunReport{
		{RunID: "run-2", StartedAt: now},
		{RunID: "run-1", StartedAt: now.Add(-time.Hour)},
	}, nil)
	store.On("ListRuns", mock.Anything, 5, 10).Return(nil, nil)

	s := newTestServer(Dependencies{RunStore: store})

	tests := []struct {
		name         string
		path         string
		expectedCode int
		expectedRuns int
	}{
		{"default page", "/api/v1/runs", http.StatusOK, 2},
		{"explicit empty page", "/api/v1/runs?limit=5&offset=10", http.StatusOK, 0},
		{"limit too large", "/api/v1/runs?limit=1000", http.StatusBadRequest, 0},
		{"negative offset", "/api/v1/runs?offset=-1", http.StatusBadRequest, 0},
		{"non-numeric limit", "/api/v1/runs?limit=ten", http.StatusBadRequest, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, s, http.MethodGet, tt.path, nil)
			require.Equal(t, tt.expectedCode, w.Code)
			if tt.expectedCode != http.StatusOK {
				return
			}

			var body struct {
				Runs []domain.RunReport `json:"runs"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Len(t, body.Runs, tt.expectedRuns)
		})
	}
}

func TestGetRun(t *testing.T) {
	store := new(MockRunStore)
	store.On("GetRun", mock.Anything, "run-1").Return(&domain.RunReport{
		RunID:      "run-1",
		Patients:   2,
		Rejections: []domain.Rejection{{RecordID: "broken.json", Code: domain.ErrCodeMalformedInput, Message: "bad"}},
	}, nil)
	store.On("GetRun", mock.Anything, "missing").Return(nil, fmt.Errorf("run missing: %w", domain.ErrNotFound))
	store.On("GetRun", mock.Anything, "boom").Return(nil, errors.New("disk I/O error"))

	s := newTestServer(Dependencies{RunStore: store})

	w := doRequest(t, s, http.MethodGet, "/api/v1/runs/run-1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var report domain.RunReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.Equal(t, 2, report.Patients)
	assert.Len(t, report.Rejections, 1)

	assert.Equal(t, http.StatusNotFound, doRequest(t, s, http.MethodGet, "/api/v1/runs/missing", nil).Code)

	w = doRequest(t, s, http.MethodGet, "/api/v1/runs/boom", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk I/O")
}

func TestRunRoutesWithoutStore(t *testing.T) {
	s := newTestServer(Dependencies{})
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(t, s, http.MethodGet, "/api/v1/runs", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(t, s, http.MethodGet, "/api/v1/runs/x", nil).Code)
}

const validRecord = `{
	"Clinical": {"patient_id": "PAT001", "sex": "F", "age_of_onset": 12},
	"Sample": {"age_at_sampling": 30, "tissue": "Blood", "type": "WGS", "haplogroup": "H1"},
	"Ontology": {"hpo": {"HP:0001250": "Seizure"}},
	"Catalog": [
		{"chr": "chrMT", "pos": 3243, "ref": "A", "alt": "G", "heteroplasmy_rate": 45},
		{"chr": "chrMT", "pos": 73, "ref": "A", "alt": "G", "heteroplasmy_rate": 99}
	]
}`

func TestValidateRecord(t *testing.T) {
	s := newTestServer(Dependencies{})

	tests := []struct {
		name          string
		query         string
		body          string
		expectedCode  int
		expectedValid bool
		expectedCodes []domain.ErrorCode
	}{
		{
			name:          "valid record with targets",
			query:         "?targets=A3243G,a73g&threshold=10",
			body:          validRecord,
			expectedCode:  http.StatusOK,
			expectedValid: true,
		},
		{
			name:          "target below threshold",
			query:         "?targets=A3243G&threshold=50",
			body:          validRecord,
			expectedCode:  http.StatusOK,
			expectedCodes: []domain.ErrorCode{domain.ErrCodeBelowThreshold},
		},
		{
			name:          "missing target",
			query:         "?targets=T16189C",
			body:          validRecord,
			expectedCode:  http.StatusOK,
			expectedCodes: []domain.ErrorCode{domain.ErrCodeTargetVariantNotFound},
		},
		{
			name:          "malformed JSON",
			body:          `{"Clinical":`,
			expectedCode:  http.StatusUnprocessableEntity,
			expectedCodes: []domain.ErrorCode{domain.ErrCodeMalformedInput},
		},
		{
			name:         "bad target label",
			query:        "?targets=3243",
			body:         validRecord,
			expectedCode: http.StatusBadRequest,
		},
		{
			name:         "bad threshold",
			query:        "?threshold=abc",
			body:         validRecord,
			expectedCode: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, s, http.MethodPost, "/api/v1/records/validate"+tt.query, []byte(tt.body))
			require.Equal(t, tt.expectedCode, w.Code, w.Body.String())
			if tt.expectedCode == http.StatusBadRequest {
				return
			}

			var response ValidationResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.expectedValid, response.Valid)

			var codes []domain.ErrorCode
			for _, issue := range response.Errors {
				codes = append(codes, issue.Code)
			}
			assert.Equal(t, tt.expectedCodes, codes)
		})
	}
}

func TestValidateRecordBodyTooLarge(t *testing.T) {
	s := newTestServer(Dependencies{})

	oversized := append([]byte(validRecord), bytes.Repeat([]byte(" "), maxRecordBytes)...)
	w := doRequest(t, s, http.MethodPost, "/api/v1/records/validate", oversized)

	require.Equal(t, http.StatusRequestEntityTooLarge, w.Code, w.Body.String())
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["error"], fmt.Sprint(maxRecordBytes))

	w = doRequest(t, s, http.MethodPost, "/api/v1/records/validate", []byte(validRecord))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewValidationResponse(t *testing.T) {
	result := &service.ValidationResult{
		RecordID: "PAT001.json",
		Errors: []error{
			domain.NewRecordError(domain.ErrCodeInvalidClinicalField, "PAT001.json", "sex", "must be M, F or empty", "X"),
		},
	}

	response := NewValidationResponse(result)
	assert.False(t, response.Valid)
	require.Len(t, response.Errors, 1)
	assert.Equal(t, "sex", response.Errors[0].Field)
	assert.Equal(t, "must be M, F or empty", response.Errors[0].Message)
	assert.NotNil(t, response.Warnings)
}

func TestNormalizeEndpoint(t *testing.T) {
	s := newTestServer(Dependencies{})

	tests := []struct {
		name           string
		body           string
		expectedCode   int
		expectedTissue domain.Tissue
		expectedValue  float64
	}{
		{
			name:           "blood saturates",
			body:           `{"heteroplasmy": 45, "tissue": "Whole Blood", "sex": "F", "age_at_sampling": 30}`,
			expectedCode:   http.StatusOK,
			expectedTissue: domain.TissueBlood,
			expectedValue:  100,
		},
		{
			name:           "male urine",
			body:           `{"heteroplasmy": 50, "tissue": "urine sediment", "sex": "M", "mode": "yes"}`,
			expectedCode:   http.StatusOK,
			expectedTissue: domain.TissueUrine,
			expectedValue:  34.86,
		},
		{
			name:           "mode no keeps raw",
			body:           `{"heteroplasmy": 45, "tissue": "blood", "mode": "no"}`,
			expectedCode:   http.StatusOK,
			expectedTissue: domain.TissueBlood,
			expectedValue:  45,
		},
		{"missing heteroplasmy", `{"tissue": "blood"}`, http.StatusBadRequest, "", 0},
		{"out of range", `{"heteroplasmy": 120}`, http.StatusBadRequest, "", 0},
		{"bad sex", `{"heteroplasmy": 10, "sex": "X"}`, http.StatusBadRequest, "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := doRequest(t, s, http.MethodPost, "/api/v1/heteroplasmy/normalize", []byte(tt.body))
			require.Equal(t, tt.expectedCode, w.Code, w.Body.String())
			if tt.expectedCode != http.StatusOK {
				return
			}

			var response NormalizeResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.expectedTissue, response.Tissue)
			assert.Equal(t, tt.expectedValue, response.Normalized)
		})
	}
}

func TestResolveHPO(t *testing.T) {
	s := newTestServer(Dependencies{Resolver: mapResolver{"HP:0001250": "Seizure"}})

	w := doRequest(t, s, http.MethodGet, "/api/v1/hpo/HP:0001250", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Seizure")

	assert.Equal(t, http.StatusNotFound, doRequest(t, s, http.MethodGet, "/api/v1/hpo/HP:0000000", nil).Code)
	assert.Equal(t, http.StatusBadGateway, doRequest(t, s, http.MethodGet, "/api/v1/hpo/HP:FAIL", nil).Code)

	unconfigured := newTestServer(Dependencies{})
	assert.Equal(t, http.StatusServiceUnavailable, doRequest(t, unconfigured, http.MethodGet, "/api/v1/hpo/HP:0001250", nil).Code)
}
