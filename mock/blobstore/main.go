package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// maxUploadMemory bounds how much of a multipart upload is held in memory.
const maxUploadMemory = 64 << 20

func main() {
	http.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || !strings.HasPrefix(r.URL.Path, "/bot") {
			http.NotFound(w, r)
			return
		}

		method := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
		field, ok := fieldFor(method)
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"ok":          false,
				"description": "Not Found: method not found",
			})
			log.Printf("[Blobstore] %s %s - 404 unknown method", r.Method, r.URL.Path)
			return
		}

		if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"ok":          false,
				"description": "Bad Request: invalid multipart form",
			})
			return
		}
		file, header, err := r.FormFile(field)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"ok":          false,
				"description": fmt.Sprintf("Bad Request: there is no %s in the request", field),
			})
			return
		}
		_ = file.Close()

		// Simulate upload latency (100-300ms)
		time.Sleep(time.Duration(100+time.Now().UnixNano()%200) * time.Millisecond)

		writeJSON(w, http.StatusOK, map[string]any{
			"ok":     true,
			"result": resultFor(field),
		})

		log.Printf("[Blobstore] %s %s - 200 OK (%s, %d bytes)",
			r.Method, r.URL.Path, header.Filename, header.Size)
	})

	http.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"ok":true}`)); err != nil {
			log.Printf("[Blobstore] Health write error: %v", err)
		}
	})

	log.Println("Mock Blobstore running on :8082")
	log.Fatal(http.ListenAndServe(":8082", nil))
}

func fieldFor(method string) (string, bool) {
	switch method {
	case "sendAudio":
		return "audio", true
	case "sendVideo":
		return "video", true
	case "sendPhoto":
		return "photo", true
	case "sendDocument":
		return "document", true
	default:
		return "", false
	}
}

// resultFor builds the message payload with the file id in the slot the
// method fills. Photos come back as a size ladder, largest last, the way
// the real API reports them.
func resultFor(field string) map[string]any {
	fileID := fmt.Sprintf("mock-%s-%d", field, time.Now().UnixNano())
	if field == "photo" {
		return map[string]any{
			"message_id": 1,
			"photo": []map[string]any{
				{"file_id": fileID + "-s"},
				{"file_id": fileID},
			},
		}
	}
	return map[string]any{
		"message_id": 1,
		field:        map[string]any{"file_id": fileID},
	}
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("[Blobstore] Write error: %v", err)
	}
}
