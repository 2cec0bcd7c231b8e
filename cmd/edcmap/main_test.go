package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Veraticus/edc-mapper/internal/service"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeService struct {
	saved []service.SaveRequest
	mu    sync.Mutex
}

func (f *fakeService) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/model_status/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"available_sponsors": ["ACME"]}`))
	})
	mux.HandleFunc("/knowledge_stats/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"models": 1, "mappings": 0, "accuracy": null}`))
	})
	mux.HandleFunc("/recent_activity/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"activities": []}`))
	})
	mux.HandleFunc("/predict/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{
			"mapped": [{"StudyEventOID": "SE1", "ItemOID": "IT1", "IMPACTVisitID": "V1"}],
			"unmapped": [
				{"StudyEventOID": "SE2", "ItemOID": "IT2"},
				{"StudyEventOID": "SE2", "ItemOID": "IT3"}
			]
		}`))
	})
	mux.HandleFunc("/save_mappings/", func(w http.ResponseWriter, r *http.Request) {
		var req service.SaveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "bad payload"}`))
			return
		}
		f.mu.Lock()
		f.saved = append(f.saved, req)
		f.mu.Unlock()
		_, _ = w.Write([]byte(`{"message": "saved"}`))
	})
	mux.HandleFunc("/export_xml/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<ODM/>`))
	})
	mux.HandleFunc("/train/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": "ViewMapping sheet is empty"}`))
	})
	return mux
}

func setupCLI(t *testing.T, handler http.Handler) string {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)

	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.Set("api.base_url", srv.URL)
	viper.Set("database.path", filepath.Join(dir, "edcmap.db"))
	appConfig = nil

	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_PredictResolveSaveExport(t *testing.T) {
	fake := &fakeService{}
	dir := setupCLI(t, fake.handler())

	odm := filepath.Join(dir, "test.xml")
	require.NoError(t, os.WriteFile(odm, []byte("<ODM/>"), 0600))

	out, err := execute(t, "sponsor", "ACME")
	require.NoError(t, err)
	assert.Contains(t, out, "Selected sponsor ACME")
	assert.Contains(t, out, "READY")

	out, err = execute(t, "predict", odm)
	require.NoError(t, err)
	assert.Contains(t, out, "Predicted 1 mappings for test.xml")
	assert.Contains(t, out, "SE2")

	// Later invocations see the prediction through the session database.
	out, err = execute(t, "groups", "edit", "SE2", "--item", "IT3", "--impact", "V9")
	require.NoError(t, err)
	assert.Contains(t, out, "SE2 → IT3 (V9)")

	_, err = execute(t, "groups", "edit", "SE2", "--item", "IT9")
	require.Error(t, err)

	_, err = execute(t, "save")
	require.NoError(t, err)

	require.Len(t, fake.saved, 1)
	assert.Equal(t, "test.xml", fake.saved[0].ODMFilename)
	require.Len(t, fake.saved[0].Mappings, 2)
	assert.Equal(t, "IT3", fake.saved[0].Mappings[1].ItemOID)
	assert.Equal(t, "V9", fake.saved[0].Mappings[1].IMPACTVisitID)

	target := filepath.Join(dir, "updated.xml")
	_, err = execute(t, "export", "-o", target)
	require.NoError(t, err)
	content, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "<ODM/>", string(content))

	out, err = execute(t, "activity")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 2 mappings for test.xml")
	assert.Contains(t, out, "Exported updated ODM to updated.xml")
}

func TestCLI_TrainSurfacesServerMessage(t *testing.T) {
	dir := setupCLI(t, (&fakeService{}).handler())

	odm := filepath.Join(dir, "ref.xml")
	viewMap := filepath.Join(dir, "viewmap.xlsx")
	require.NoError(t, os.WriteFile(odm, []byte("<ODM/>"), 0600))
	require.NoError(t, os.WriteFile(viewMap, []byte("xlsx"), 0600))

	_, err := execute(t, "sponsor", "ACME")
	require.NoError(t, err)

	_, err = execute(t, "train", "--odm", odm, "--viewmap", viewMap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ViewMapping sheet is empty")

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "ACME")
}

func TestCLI_TrainRequiresBothDocuments(t *testing.T) {
	dir := setupCLI(t, (&fakeService{}).handler())

	odm := filepath.Join(dir, "ref.xml")
	require.NoError(t, os.WriteFile(odm, []byte("<ODM/>"), 0600))

	_, err := execute(t, "sponsor", "ACME")
	require.NoError(t, err)

	_, err = execute(t, "train", "--odm", odm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Upload both ODM and ViewMapping files")
}

func TestCLI_SaveWithoutPrediction(t *testing.T) {
	setupCLI(t, (&fakeService{}).handler())

	_, err := execute(t, "save")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No ODM file associated with mappings to save.")
}

func TestCLI_Version(t *testing.T) {
	setupCLI(t, (&fakeService{}).handler())

	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "edcmap dev")
}
