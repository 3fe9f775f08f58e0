package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"hazardcam/internal/dto"
	"hazardcam/internal/logger"
	"hazardcam/internal/model"
	"hazardcam/internal/repository"
	"hazardcam/internal/service/storage"
)

// CaptureURLPrefix is the path capture images are served under.
const CaptureURLPrefix = "/captures"

// ListCapturesHandler returns the capture catalog, newest first. Without
// query parameters the listing comes straight from the capture directory;
// class, dateAfter, dateBefore, limit and offset are answered from the index.
func ListCapturesHandler(store *storage.Store, captureRepo repository.CaptureRepository,
	detectionRepo repository.DetectionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter := dto.CaptureFilter{
			Class:      q.Get("class"),
			DateAfter:  parseDate(q.Get("dateAfter")),
			DateBefore: parseDate(q.Get("dateBefore")),
			Limit:      atoiDefault(q.Get("limit"), 0),
			Offset:     atoiDefault(q.Get("offset"), 0),
		}

		var (
			captures []model.Capture
			total    int
			err      error
		)
		if filter.IsZero() || captureRepo == nil {
			captures, err = store.List()
			total = len(captures)
		} else {
			captures, total, err = queryIndex(captureRepo, detectionRepo, filter, logger)
		}
		if err != nil {
			logger.Error("Error listing captures: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		list := dto.CaptureList{Captures: make([]dto.CaptureInfo, 0, len(captures)), Total: total}
		for _, c := range captures {
			list.Captures = append(list.Captures, dto.NewCaptureInfo(c, CaptureURLPrefix))
		}
		writeJSON(w, http.StatusOK, list, logger)
	}
}

func queryIndex(captureRepo repository.CaptureRepository, detectionRepo repository.DetectionRepository,
	filter dto.CaptureFilter, logger *logger.Logger) ([]model.Capture, int, error) {
	captures, err := captureRepo.GetAll(filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := captureRepo.GetTotalCount(filter)
	if err != nil {
		logger.Error("Error counting captures: %v", err)
		total = len(captures)
	}

	for i := range captures {
		if _, labels, ok := storage.ParseCaptureFilename(captures[i].Filename); ok {
			captures[i].Classes = labels
		}
		if detectionRepo == nil || len(captures[i].Classes) > 0 {
			continue
		}
		labels, err := detectionRepo.GetLabelsByCaptureID(captures[i].ID)
		if err != nil {
			logger.Error("Error getting labels for capture %d: %v", captures[i].ID, err)
			continue
		}
		captures[i].Classes = labels
	}
	return captures, total, nil
}

// DeleteCaptureHandler removes one capture. A missing capture is reported in
// the body, not with an error status.
func DeleteCaptureHandler(store *storage.Store, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := mux.Vars(r)["filename"]

		deleted, err := store.Delete(filename)
		if err != nil {
			logger.Error("Failed to delete capture %s: %v", filename, err)
			writeJSON(w, http.StatusInternalServerError, dto.DeleteResult{Success: false, Error: "Failed to delete file"}, logger)
			return
		}
		if !deleted {
			writeJSON(w, http.StatusOK, dto.DeleteResult{Success: false, Error: "File not found"}, logger)
			return
		}

		logger.Info("Deleted capture: %s", filename)
		writeJSON(w, http.StatusOK, dto.DeleteResult{Success: true}, logger)
	}
}

// CaptureStatsResponse combines directory statistics with indexed detection counts.
type CaptureStatsResponse struct {
	*model.CaptureStats
	DetectionCounts map[string]int `json:"detection_counts,omitempty"`
}

// CaptureStatsHandler reports how many captures are stored and how much space they use.
func CaptureStatsHandler(store *storage.Store, detectionRepo repository.DetectionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := store.Stats()
		if err != nil {
			logger.Error("Error computing capture stats: %v", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		resp := CaptureStatsResponse{CaptureStats: stats}
		if detectionRepo != nil {
			counts, err := detectionRepo.GetLabelCounts()
			if err != nil {
				logger.Error("Error counting indexed detections: %v", err)
			} else {
				resp.DetectionCounts = counts
			}
		}
		writeJSON(w, http.StatusOK, resp, logger)
	}
}

// CaptureDetectionsHandler returns the indexed detections of one capture.
func CaptureDetectionsHandler(captureRepo repository.CaptureRepository,
	detectionRepo repository.DetectionRepository, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := mux.Vars(r)["filename"]

		c, err := captureRepo.GetByFilename(filename)
		if err != nil {
			logger.Error("Error loading capture %s: %v", filename, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		if c == nil {
			http.NotFound(w, r)
			return
		}

		detections, err := detectionRepo.GetByCaptureID(c.ID)
		if err != nil {
			logger.Error("Error loading detections for %s: %v", filename, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, detections, logger)
	}
}

// ViewCaptureHandler serves a single capture image.
func ViewCaptureHandler(store *storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path, ok := store.Path(mux.Vars(r)["filename"])
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/jpeg")
		http.ServeFile(w, r, path)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Error encoding JSON response: %v", err)
	}
}

// atoiDefault converts string to int or returns a default when conversion fails or value <= 0.
func atoiDefault(s string, def int) int {
	if v, err := strconv.Atoi(s); err == nil && v > 0 {
		return v
	}
	return def
}

// parseDate parses a date string in the format "2006-01-02" (HTML input format)
// as a local calendar day.
func parseDate(v string) time.Time {
	if v == "" {
		return time.Time{}
	}
	t, err := time.ParseInLocation("2006-01-02", v, time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
