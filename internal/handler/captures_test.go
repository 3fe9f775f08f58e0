package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"

	"hazardcam/internal/dto"
	"hazardcam/internal/logger"
	"hazardcam/internal/model"
	"hazardcam/internal/repository/sqlite"
	"hazardcam/internal/service/storage"
)

type catalog struct {
	store         *storage.Store
	captureRepo   *sqlite.CaptureRepository
	detectionRepo *sqlite.DetectionRepository
	dir           string
}

func setupCatalog(t *testing.T) *catalog {
	t.Helper()

	root := t.TempDir()
	db, err := sqlite.New(filepath.Join(root, "data", "captures.db"), nil)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	captureRepo := sqlite.NewCaptureRepository(db)
	dir := filepath.Join(root, "captures")
	store, err := storage.New(dir, captureRepo)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	return &catalog{
		store:         store,
		captureRepo:   captureRepo,
		detectionRepo: sqlite.NewDetectionRepository(db),
		dir:           dir,
	}
}

func (c *catalog) save(t *testing.T, at time.Time, labels ...string) string {
	t.Helper()
	dets := make([]model.Detection, 0, len(labels))
	for _, l := range labels {
		dets = append(dets, model.Detection{Label: l, Confidence: 0.9, Box: model.Box{X1: 1, Y1: 1, X2: 20, Y2: 20}, Dangerous: l == "knife"})
	}
	name, err := c.store.Save([]byte("jpeg bytes"), dets, at)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return name
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func listCaptures(t *testing.T, c *catalog, query string) dto.CaptureList {
	t.Helper()
	h := ListCapturesHandler(c.store, c.captureRepo, c.detectionRepo, logger.Nop())
	req := httptest.NewRequest(http.MethodGet, "/api/captures"+query, nil)
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var list dto.CaptureList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return list
}

func TestListCaptures_NewestFirst(t *testing.T) {
	c := setupCatalog(t)
	day := time.Date(2024, 5, 1, 14, 30, 0, 0, time.Local)
	c.save(t, day, "knife", "person")
	c.save(t, day.Add(time.Minute), "scissors")

	// Extraneous files are not captures.
	os.WriteFile(filepath.Join(c.dir, "notes.txt"), []byte("x"), 0644)

	list := listCaptures(t, c, "")

	if len(list.Captures) != 2 || list.Total != 2 {
		t.Fatalf("Expected 2 captures, got %+v", list)
	}
	first := list.Captures[0]
	if first.Filename != "20240501_143100_scissors.jpg" {
		t.Errorf("Expected newest capture first, got %s", first.Filename)
	}
	if first.URL != "/captures/20240501_143100_scissors.jpg" {
		t.Errorf("Unexpected URL %s", first.URL)
	}
	if first.Timestamp != "20240501_143100" {
		t.Errorf("Unexpected timestamp %s", first.Timestamp)
	}
	if list.Captures[1].Classes != "knife_person" {
		t.Errorf("Expected classes knife_person, got %s", list.Captures[1].Classes)
	}
}

func TestListCaptures_EmptyDirectory(t *testing.T) {
	c := setupCatalog(t)

	h := ListCapturesHandler(c.store, c.captureRepo, c.detectionRepo, logger.Nop())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/captures", nil))

	if !strings.Contains(rec.Body.String(), `"captures":[]`) {
		t.Errorf("Expected an empty captures array, got %s", rec.Body.String())
	}
}

func TestListCaptures_Filters(t *testing.T) {
	c := setupCatalog(t)
	c.save(t, time.Date(2024, 5, 1, 9, 0, 0, 0, time.Local), "knife")
	c.save(t, time.Date(2024, 5, 2, 9, 0, 0, 0, time.Local), "person", "scissors")
	c.save(t, time.Date(2024, 5, 3, 9, 0, 0, 0, time.Local), "knife", "person")

	tests := []struct {
		name  string
		query string
		want  []string
		total int
	}{
		{"by class", "?class=knife", []string{"20240503_090000_knife_person.jpg", "20240501_090000_knife.jpg"}, 2},
		{"date after", "?dateAfter=2024-05-02", []string{"20240503_090000_knife_person.jpg", "20240502_090000_person_scissors.jpg"}, 2},
		{"date before", "?dateBefore=2024-05-01", []string{"20240501_090000_knife.jpg"}, 1},
		{"limit", "?limit=1", []string{"20240503_090000_knife_person.jpg"}, 3},
		{"offset", "?offset=2", []string{"20240501_090000_knife.jpg"}, 3},
		{"class and date", "?class=person&dateBefore=2024-05-02", []string{"20240502_090000_person_scissors.jpg"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list := listCaptures(t, c, tt.query)

			var got []string
			for _, ci := range list.Captures {
				got = append(got, ci.Filename)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
			if list.Total != tt.total {
				t.Errorf("Expected total %d, got %d", tt.total, list.Total)
			}
		})
	}
}

func deleteCapture(t *testing.T, c *catalog, filename string) (int, dto.DeleteResult) {
	t.Helper()
	h := DeleteCaptureHandler(c.store, logger.Nop())
	req := httptest.NewRequest(http.MethodDelete, "/api/captures/x", nil)
	req = mux.SetURLVars(req, map[string]string{"filename": filename})
	rec := httptest.NewRecorder()

	h.ServeHTTP(rec, req)

	var res dto.DeleteResult
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return rec.Code, res
}

func TestDeleteCapture(t *testing.T) {
	c := setupCatalog(t)
	name := c.save(t, time.Date(2024, 5, 1, 14, 30, 0, 0, time.Local), "knife")

	code, res := deleteCapture(t, c, name)
	if code != http.StatusOK || !res.Success {
		t.Fatalf("Expected success, got %d %+v", code, res)
	}
	if len(dirEntries(t, c.dir)) != 0 {
		t.Errorf("Capture file should be gone")
	}
	if row, _ := c.captureRepo.GetByFilename(name); row != nil {
		t.Errorf("Index row should be gone")
	}
}

func TestDeleteCapture_NotFound(t *testing.T) {
	c := setupCatalog(t)
	c.save(t, time.Date(2024, 5, 1, 14, 30, 0, 0, time.Local), "knife")
	before := dirEntries(t, c.dir)

	for _, name := range []string{"20990101_000000_knife.jpg", "../captures.db", "a/b.jpg"} {
		code, res := deleteCapture(t, c, name)
		if code != http.StatusOK || res.Success || res.Error != "File not found" {
			t.Errorf("%s: expected not found, got %d %+v", name, code, res)
		}
	}

	after := dirEntries(t, c.dir)
	if strings.Join(before, ",") != strings.Join(after, ",") {
		t.Errorf("Directory changed: %v -> %v", before, after)
	}
}

func TestCaptureStats(t *testing.T) {
	c := setupCatalog(t)
	c.save(t, time.Date(2024, 5, 1, 14, 30, 0, 0, time.Local), "knife", "person")
	c.save(t, time.Date(2024, 5, 1, 14, 31, 0, 0, time.Local), "knife")

	rec := httptest.NewRecorder()
	CaptureStatsHandler(c.store, c.detectionRepo, logger.Nop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/captures/stats", nil))

	var stats CaptureStatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if stats.TotalCaptures != 2 {
		t.Errorf("Expected 2 captures, got %d", stats.TotalCaptures)
	}
	if stats.TotalSizeBytes != int64(2*len("jpeg bytes")) {
		t.Errorf("Unexpected size %d", stats.TotalSizeBytes)
	}
	if stats.ClassCounts["knife"] != 2 || stats.DetectionCounts["person"] != 1 {
		t.Errorf("Unexpected counts %v %v", stats.ClassCounts, stats.DetectionCounts)
	}
}

func TestCaptureDetections(t *testing.T) {
	c := setupCatalog(t)
	name := c.save(t, time.Date(2024, 5, 1, 14, 30, 0, 0, time.Local), "knife", "person")
	h := CaptureDetectionsHandler(c.captureRepo, c.detectionRepo, logger.Nop())

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"filename": name})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var dets []model.CaptureDetection
	if err := json.Unmarshal(rec.Body.Bytes(), &dets); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(dets) != 2 {
		t.Fatalf("Expected 2 detections, got %d", len(dets))
	}

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"filename": "missing.jpg"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestViewCapture(t *testing.T) {
	c := setupCatalog(t)
	name := c.save(t, time.Date(2024, 5, 1, 14, 30, 0, 0, time.Local), "knife")
	h := ViewCaptureHandler(c.store)

	req := mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/captures/"+name, nil), map[string]string{"filename": name})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Body.String() != "jpeg bytes" {
		t.Errorf("Expected capture content, got %d %q", rec.Code, rec.Body.String())
	}

	req = mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/captures/x", nil), map[string]string{"filename": "../captures.db"})
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for traversal, got %d", rec.Code)
	}
}

func TestAtoiDefault(t *testing.T) {
	tests := []struct {
		input    string
		def      int
		expected int
	}{
		{"10", 5, 10},
		{"", 5, 5},
		{"abc", 10, 10},
		{"-1", 5, 5},
		{"0", 5, 5},
		{"12.5", 5, 5},
	}

	for _, tt := range tests {
		if got := atoiDefault(tt.input, tt.def); got != tt.expected {
			t.Errorf("atoiDefault(%q, %d) = %d, expected %d", tt.input, tt.def, got, tt.expected)
		}
	}
}

func TestParseDate(t *testing.T) {
	got := parseDate("2024-05-01")
	want := time.Date(2024, 5, 1, 0, 0, 0, 0, time.Local)
	if !got.Equal(want) {
		t.Errorf("parseDate = %v, want %v", got, want)
	}
	if !parseDate("05/01/2024").IsZero() {
		t.Error("Invalid date should parse to zero time")
	}
}
