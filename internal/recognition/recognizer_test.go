package recognition

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHTTPRecognizerRoundTrip(t *testing.T) {
	img := []byte{0xFF, 0xD8, 0x01, 0x02}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /detect", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if body["image"] != base64.StdEncoding.EncodeToString(img) {
			http.Error(w, "bad image", http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"faces":[{"x":1,"y":2,"w":30,"h":40,"score":0.99}]}`)
	})
	mux.HandleFunc("POST /extract", func(w http.ResponseWriter, r *http.Request) {
		var body extractRequest
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Face.W != 30 {
			http.Error(w, "face lost", http.StatusBadRequest)
			return
		}
		_, _ = io.WriteString(w, `{"feature":[0.5,0.25]}`)
	})
	mux.HandleFunc("POST /search", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":7,"confidence":0.8}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	r := NewHTTPRecognizer(srv.URL+"/", time.Second, testLogger())
	ctx := context.Background()

	faces, err := r.Detect(ctx, img)
	if err != nil || len(faces) != 1 || faces[0].H != 40 {
		t.Fatalf("Detect() = %+v, %v", faces, err)
	}
	feature, err := r.Extract(ctx, img, faces[0])
	if err != nil || len(feature) != 2 || feature[1] != 0.25 {
		t.Fatalf("Extract() = %v, %v", feature, err)
	}
	m, err := r.Search(ctx, feature)
	if err != nil || m.ID != 7 || m.Confidence != 0.8 {
		t.Fatalf("Search() = %+v, %v", m, err)
	}
}

func TestHTTPRecognizerSearchWithoutID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"confidence":0.1}`)
	}))
	defer srv.Close()

	m, err := NewHTTPRecognizer(srv.URL, time.Second, testLogger()).Search(context.Background(), []float32{1})
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != NoIdentity {
		t.Errorf("ID = %d, want %d", m.ID, NoIdentity)
	}
}

func TestHTTPRecognizerRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			http.Error(w, "warming up", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"faces":[]}`)
	}))
	defer srv.Close()

	faces, err := NewHTTPRecognizer(srv.URL, time.Second, testLogger()).Detect(context.Background(), []byte{1})
	if err != nil {
		t.Fatalf("Detect() error = %v", err)
	}
	if len(faces) != 0 || calls.Load() != 2 {
		t.Errorf("faces = %v after %d calls", faces, calls.Load())
	}
}

func TestHTTPRecognizerClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such model", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := NewHTTPRecognizer(srv.URL, time.Second, testLogger()).Detect(context.Background(), []byte{1})
	if err == nil {
		t.Fatal("Detect() succeeded on 400")
	}
}
