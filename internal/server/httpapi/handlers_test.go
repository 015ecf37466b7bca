package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fieldops/techsync/internal/common"
	"github.com/fieldops/techsync/internal/logging"
	"github.com/fieldops/techsync/internal/server/auth"
	"github.com/fieldops/techsync/internal/server/models"
	"github.com/fieldops/techsync/internal/server/repositories/photos"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

type fakeService struct {
	loginToken string
	loginErr   error

	pullPayload *models.PullPayload
	pullSince   time.Time
	pullTech    int64

	batchOutcome *models.BatchOutcome
	batchMuts    []models.BatchMutation

	photo     *photos.Photo
	photoBody []byte
	photoErr  error
}

func (f *fakeService) Login(ctx context.Context, email, password string) (string, error) {
	if f.loginErr != nil {
		return "", f.loginErr
	}
	return f.loginToken, nil
}

func (f *fakeService) Pull(ctx context.Context, technicianID int64, since time.Time) (*models.PullPayload, error) {
	f.pullTech = technicianID
	f.pullSince = since
	if f.pullPayload == nil {
		return &models.PullPayload{UpdatedAt: time.Now().UTC()}, nil
	}
	return f.pullPayload, nil
}

func (f *fakeService) ApplyBatch(ctx context.Context, technicianID int64, muts []models.BatchMutation) (*models.BatchOutcome, error) {
	f.batchMuts = muts
	if f.batchOutcome == nil {
		return &models.BatchOutcome{Processed: len(muts), Conflicts: []models.BatchIssue{}, Errors: []models.BatchIssue{}}, nil
	}
	return f.batchOutcome, nil
}

func (f *fakeService) StorePhoto(ctx context.Context, technicianID int64, p *photos.Photo, contentType string, body io.Reader) error {
	if f.photoErr != nil {
		return f.photoErr
	}
	f.photo = p
	f.photoBody, _ = io.ReadAll(body)
	return nil
}

func setupServer(t *testing.T, svc Service) *httptest.Server {
	t.Helper()
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	srv := httptest.NewServer(NewServer(svc, testSecret, log).Router())
	t.Cleanup(srv.Close)
	return srv
}

func bearerFor(t *testing.T, technicianID int64) string {
	t.Helper()
	tok, err := auth.GenerateToken(technicianID, testSecret, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestHandleLogin(t *testing.T) {
	fake := &fakeService{loginToken: "tok-123"}
	srv := setupServer(t, fake)

	resp, err := http.Post(srv.URL+"/tech/login", "application/json",
		strings.NewReader(`{"email":"tech@example.com","password":"pw"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "tok-123", body["token"])
}

func TestHandleLogin_BadCredentials(t *testing.T) {
	fake := &fakeService{loginErr: common.ErrUnauthorized}
	srv := setupServer(t, fake)

	resp, err := http.Post(srv.URL+"/tech/login", "application/json",
		strings.NewReader(`{"email":"tech@example.com","password":"wrong"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlePull_RequiresToken(t *testing.T) {
	srv := setupServer(t, &fakeService{})

	resp, err := http.Get(srv.URL + "/tech/sync")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestHandlePull(t *testing.T) {
	fake := &fakeService{}
	srv := setupServer(t, fake)

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/tech/sync?since=2026-08-30T10:00:00Z", nil)
	req.Header.Set("Authorization", bearerFor(t, 42))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 42, fake.pullTech, "technician comes from the token, not the request")
	assert.Equal(t, time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC), fake.pullSince)
}

func TestHandlePull_MalformedSince(t *testing.T) {
	srv := setupServer(t, &fakeService{})

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/tech/sync?since=yesterday", nil)
	req.Header.Set("Authorization", bearerFor(t, 42))

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleBatch(t *testing.T) {
	fake := &fakeService{batchOutcome: &models.BatchOutcome{
		Processed: 1,
		Conflicts: []models.BatchIssue{},
		Errors: []models.BatchIssue{
			{MutationID: "01ABC", Type: "status_change", ID: "7", Message: "work order not found"},
		},
	}}
	srv := setupServer(t, fake)

	body := `{"mutations":[
		{"mutation_id":"01AAA","type":"expense","data":{"id":"01AAA","amount":12}},
		{"mutation_id":"01ABC","type":"status_change","data":{"id":7,"status":"completed"}}
	]}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/tech/sync/batch", strings.NewReader(body))
	req.Header.Set("Authorization", bearerFor(t, 42))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, fake.batchMuts, 2)
	assert.Equal(t, "01AAA", fake.batchMuts[0].MutationID, "batch order is preserved")

	var outcome models.BatchOutcome
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&outcome))
	assert.Equal(t, 1, outcome.Processed)
	require.Len(t, outcome.Errors, 1)
	assert.Equal(t, "01ABC", outcome.Errors[0].MutationID)
}

func TestHandlePhoto(t *testing.T) {
	fake := &fakeService{}
	srv := setupServer(t, fake)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("photo_id", "01HPHOTO"))
	require.NoError(t, mw.WriteField("work_order_id", "1042"))
	require.NoError(t, mw.WriteField("entity_type", "work_order"))
	fw, err := mw.CreateFormFile("file", "before.jpg")
	require.NoError(t, err)
	_, err = fw.Write([]byte{0xff, 0xd8})
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/tech/sync/photo", &buf)
	req.Header.Set("Authorization", bearerFor(t, 42))
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, fake.photo)
	assert.Equal(t, "01HPHOTO", fake.photo.ID)
	assert.Equal(t, "before.jpg", fake.photo.FileName)
	assert.True(t, fake.photo.WorkOrderID.Valid)
	assert.EqualValues(t, 1042, fake.photo.WorkOrderID.Int64)
	assert.Equal(t, []byte{0xff, 0xd8}, fake.photoBody)
}

func TestHandlePhoto_MissingFile(t *testing.T) {
	srv := setupServer(t, &fakeService{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("photo_id", "01HPHOTO"))
	require.NoError(t, mw.Close())

	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/tech/sync/photo", &buf)
	req.Header.Set("Authorization", bearerFor(t, 42))
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}
