package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

const maxUploadSize = 64 << 20

// Server is the library HTTP API. Uploaded files land in UploadDir and are
// served back under /uploads/; StaticDir, when set, is served at the root.
type Server struct {
	Store     *Store
	Search    *VideoSearch
	UploadDir string
	StaticDir string
	Log       *slog.Logger

	// Now names uploaded files.
	Now func() time.Time
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/songs", s.handleSongs)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("GET /api/youtube/search", s.handleSearch)
	mux.HandleFunc("POST /api/youtube/add", s.handleAddVideo)
	mux.HandleFunc("GET /api/lyrics/{id}", s.handleLyrics)

	if s.UploadDir != "" {
		mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.UploadDir))))
	}
	if s.StaticDir != "" {
		mux.Handle("GET /", http.FileServer(http.Dir(s.StaticDir)))
	}

	return corsMiddleware(mux)
}

// ListenAndServe serves the API on addr until ctx is done.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if s.UploadDir != "" {
		if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
			return fmt.Errorf("failed to create uploads directory: %w", err)
		}
	}

	srv := &http.Server{Addr: addr, Handler: s.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger().Info("HTTP server started", "addr", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleSongs(w http.ResponseWriter, r *http.Request) {
	songs, err := s.Store.Songs()
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, songs)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("error parsing form: %w", err))
		return
	}

	file, header, err := r.FormFile("song")
	if err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("error getting file: %w", err))
		return
	}
	defer file.Close()

	if err := os.MkdirAll(s.UploadDir, 0o755); err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	filename := strconv.FormatInt(s.now().UnixMilli(), 10) + filepath.Ext(header.Filename)
	path := filepath.Join(s.UploadDir, filename)

	dst, err := os.Create(path)
	if err != nil {
		s.fail(w, http.StatusInternalServerError, fmt.Errorf("error creating file: %w", err))
		return
	}
	defer dst.Close()

	if _, err := io.Copy(dst, file); err != nil {
		s.fail(w, http.StatusInternalServerError, fmt.Errorf("error saving file: %w", err))
		return
	}

	id, err := s.Store.AddSong(Song{
		Title:    r.FormValue("title"),
		Artist:   r.FormValue("artist"),
		Lyrics:   r.FormValue("lyrics"),
		FilePath: path,
	})
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	s.logger().Info("song uploaded", "id", id, "file", path)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"message": "Song uploaded successfully",
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Query parameter required"})
		return
	}

	search := s.Search
	if search == nil {
		search = &VideoSearch{}
	}

	videos, err := search.Search(r.Context(), q)
	if err != nil {
		s.logger().ErrorContext(r.Context(), "YouTube API error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to search YouTube"})
		return
	}
	writeJSON(w, http.StatusOK, videos)
}

type addVideoRequest struct {
	YouTubeID    string `json:"youtubeId"`
	ID           string `json:"id"`
	Title        string `json:"title"`
	ChannelTitle string `json:"channelTitle"`
}

func (s *Server) handleAddVideo(w http.ResponseWriter, r *http.Request) {
	var req addVideoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.fail(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	// the search results carry the video id as "id"
	videoID := req.YouTubeID
	if videoID == "" {
		videoID = req.ID
	}
	if videoID == "" {
		s.fail(w, http.StatusBadRequest, errors.New("youtubeId required"))
		return
	}

	id, err := s.Store.AddSong(Song{
		Title:     req.Title,
		Artist:    req.ChannelTitle,
		YouTubeID: videoID,
	})
	if err != nil {
		s.fail(w, http.StatusInternalServerError, err)
		return
	}

	s.logger().Info("video added", "id", id, "youtube_id", videoID)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"message": "YouTube video added successfully",
	})
}

func (s *Server) handleLyrics(w http.ResponseWriter, r *http.Request) {
	var lyrics *string

	if id, err := strconv.ParseInt(r.PathValue("id"), 10, 64); err == nil {
		v, ok, err := s.Store.Lyrics(id)
		if err != nil {
			s.fail(w, http.StatusInternalServerError, err)
			return
		}
		if ok {
			lyrics = &v
		}
	}

	writeJSON(w, http.StatusOK, map[string]*string{"lyrics": lyrics})
}

func (s *Server) fail(w http.ResponseWriter, status int, err error) {
	if status >= http.StatusInternalServerError {
		s.logger().Error("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Server) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
