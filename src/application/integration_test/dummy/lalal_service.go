package dummy

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"stem-unmixer/src/application/extraction/entity"
)

// LalalService speaks the LALAL.AI HTTP API well enough for a real client
// to run a whole extraction against it. Each split reports ProgressSteps
// in-progress checks before succeeding.
type LalalService struct {
	License       string
	ProgressSteps int

	mutex    sync.Mutex
	baseURL  string
	uploaded map[string][]byte
	current  entity.Stem
	checks   int
	requests []string
}

var _ http.Handler = &LalalService{}

func NewDummyLalalService(license string) *LalalService {
	return &LalalService{
		License:       license,
		ProgressSteps: 1,
		uploaded:      make(map[string][]byte),
	}
}

// SetBaseURL tells the service where it is served so that it can hand out
// download links pointing back at itself.
func (s *LalalService) SetBaseURL(baseURL string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.baseURL = strings.TrimSuffix(baseURL, "/")
}

// Requests lists "<method> <path>" for everything served so far.
func (s *LalalService) Requests() []string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]string{}, s.requests...)
}

func (s *LalalService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	s.requests = append(s.requests, r.Method+" "+r.URL.Path)
	s.mutex.Unlock()

	switch {
	case r.URL.Path == "/api/upload/":
		s.upload(w, r)
	case r.URL.Path == "/api/split/":
		s.split(w, r)
	case r.URL.Path == "/api/check/":
		s.check(w, r)
	case strings.HasPrefix(r.URL.Path, "/files/"):
		s.download(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (s *LalalService) authorized(w http.ResponseWriter, r *http.Request) bool {
	if r.Header.Get("Authorization") == "license "+s.License {
		return true
	}

	writeJSON(w, http.StatusUnauthorized, map[string]interface{}{
		"status": "error",
		"error":  "invalid license",
	})
	return false
}

func (s *LalalService) upload(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	contents, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"status": "error", "error": err.Error()})
		return
	}

	s.mutex.Lock()
	s.uploaded[DummyFileID] = contents
	s.mutex.Unlock()

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "id": DummyFileID})
}

func (s *LalalService) split(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(w, r) {
		return
	}

	if err := r.ParseForm(); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{"status": "error", "error": err.Error()})
		return
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.uploaded[r.PostForm.Get("id")]; !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "error", "error": "unknown file id"})
		return
	}

	s.current = entity.Stem(r.PostForm.Get("stem"))
	s.checks = 0

	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "success", "task_id": "task-" + string(s.current)})
}

func (s *LalalService) check(w http.ResponseWriter, r *http.Request) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.uploaded[r.URL.Query().Get("id")]; !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "error", "error": "unknown file id"})
		return
	}

	s.checks++
	if s.checks <= s.ProgressSteps {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status": "success",
			"task": map[string]interface{}{
				"state":    "progress",
				"progress": 100 * s.checks / (s.ProgressSteps + 1),
			},
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"task":   map[string]interface{}{"state": "success"},
		"split": map[string]interface{}{
			"stem_track": fmt.Sprintf("%s/files/%s/stem", s.baseURL, s.current),
			"back_track": fmt.Sprintf("%s/files/%s/back", s.baseURL, s.current),
		},
	})
}

func (s *LalalService) download(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/files/"), "/")
	if len(parts) != 2 {
		http.NotFound(w, r)
		return
	}
	stem, kind := entity.Stem(parts[0]), parts[1]

	suffix := string(stem)
	if kind == "back" {
		suffix = "no_" + suffix
	}

	s.mutex.Lock()
	contents := s.uploaded[DummyFileID]
	s.mutex.Unlock()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="dummy_%s_split_by_lalalai.mp3"`, suffix))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, ArtifactContents(contents, stem, kind == "back"))
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
