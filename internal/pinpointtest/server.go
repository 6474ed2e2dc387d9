// Package pinpointtest provides an in-memory Pinpoint REST endpoint for tests
// that drive the real SDK client.
package pinpointtest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// RequestID is returned in the X-Amzn-RequestId header of every response.
const RequestID = "req-pinpointtest"

// Request is one request the server received.
type Request struct {
	Method string
	Path   string
	Body   []byte
}

// Server mocks the subset of the Pinpoint REST API the tests exercise:
// applications, import jobs and segments.
type Server struct {
	Server *httptest.Server

	mu         sync.Mutex
	apps       map[string]map[string]any
	importJobs map[string]map[string]any
	segments   map[string]map[string]any
	requests   []Request
	nextID     int
}

func NewServer() *Server {
	s := &Server{
		apps:       make(map[string]map[string]any),
		importJobs: make(map[string]map[string]any),
		segments:   make(map[string]map[string]any),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/apps/{app}", s.getApp)
	mux.HandleFunc("DELETE /v1/apps/{app}", s.deleteApp)
	mux.HandleFunc("GET /v1/apps/{app}/jobs/import/{job}", s.getImportJob)
	mux.HandleFunc("POST /v1/apps/{app}/segments", s.createSegment)
	mux.HandleFunc("GET /v1/apps/{app}/segments/{segment}", s.getSegment)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		notFound(w, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
	})

	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.requests = append(s.requests, Request{Method: r.Method, Path: r.URL.Path, Body: body})
		s.mu.Unlock()

		w.Header().Set("X-Amzn-RequestId", RequestID)
		r.Body = io.NopCloser(bytes.NewReader(body))
		mux.ServeHTTP(w, r)
	}))

	return s
}

func (s *Server) URL() string {
	return s.Server.URL
}

func (s *Server) Close() {
	s.Server.Close()
}

// AddApp registers an application.
func (s *Server) AddApp(id, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apps[id] = map[string]any{
		"Id":           id,
		"Name":         name,
		"Arn":          "arn:aws:mobiletargeting:us-east-1:123456789012:apps/" + id,
		"CreationDate": time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).Format(time.RFC3339),
	}
}

// AddImportJob registers an import job for an application.
func (s *Server) AddImportJob(appID, jobID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.importJobs[appID+"/"+jobID] = map[string]any{
		"Id":            jobID,
		"ApplicationId": appID,
		"JobStatus":     status,
		"Type":          "IMPORT",
		"CreationDate":  "2024-01-02T03:04:05Z",
		"Definition": map[string]any{
			"Format":  "CSV",
			"RoleArn": "arn:aws:iam::123456789012:role/import",
			"S3Url":   "s3://bucket/endpoints.csv",
		},
	}
}

// HasApp reports whether the application exists.
func (s *Server) HasApp(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.apps[id]
	return ok
}

// GetRequests returns every request received so far.
func (s *Server) GetRequests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// GetRequestCount returns the number of requests received with method.
func (s *Server) GetRequestCount(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method {
			n++
		}
	}
	return n
}

func (s *Server) getApp(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	app, ok := s.apps[r.PathValue("app")]
	s.mu.Unlock()
	if !ok {
		notFound(w, "Resource not found")
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) deleteApp(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	id := r.PathValue("app")
	app, ok := s.apps[id]
	delete(s.apps, id)
	s.mu.Unlock()
	if !ok {
		notFound(w, "Resource not found")
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (s *Server) getImportJob(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	job, ok := s.importJobs[r.PathValue("app")+"/"+r.PathValue("job")]
	s.mu.Unlock()
	if !ok {
		notFound(w, "Resource not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) createSegment(w http.ResponseWriter, r *http.Request) {
	var req map[string]any
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequestException", "invalid request body")
		return
	}

	s.mu.Lock()
	appID := r.PathValue("app")
	if _, ok := s.apps[appID]; !ok {
		s.mu.Unlock()
		notFound(w, "Resource not found")
		return
	}
	s.nextID++
	seg := map[string]any{
		"Id":            fmt.Sprintf("seg-%d", s.nextID),
		"ApplicationId": appID,
		"Arn":           "arn:aws:mobiletargeting:us-east-1:123456789012:apps/" + appID + "/segments/" + fmt.Sprintf("seg-%d", s.nextID),
		"CreationDate":  "2024-01-02T03:04:05Z",
		"SegmentType":   "DIMENSIONAL",
		"Name":          req["Name"],
		"Dimensions":    req["Dimensions"],
		"Version":       1,
	}
	s.segments[appID+"/"+seg["Id"].(string)] = seg
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, seg)
}

func (s *Server) getSegment(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	seg, ok := s.segments[r.PathValue("app")+"/"+r.PathValue("segment")]
	s.mu.Unlock()
	if !ok {
		notFound(w, "Resource not found")
		return
	}
	writeJSON(w, http.StatusOK, seg)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func notFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, "NotFoundException", message)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("X-Amzn-ErrorType", code)
	writeJSON(w, status, map[string]any{"Message": message, "RequestID": RequestID})
}
