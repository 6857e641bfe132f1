package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/astromechza/sketchy-calendar/pkg/docstore"
	"github.com/astromechza/sketchy-calendar/pkg/scene"
	"github.com/astromechza/sketchy-calendar/pkg/viz"
)

const maxUploadBytes = 64 << 20

// Server holds every scene in memory and backs them up to the database.
type Server struct {
	database *docstore.DB
	scenes   *sync.Map
	upgrader websocket.Upgrader
}

// NewServer loads every saved scene from the database.
func NewServer(ctx context.Context, database *docstore.DB) (*Server, error) {
	all, err := database.All(ctx)
	if err != nil {
		return nil, err
	}
	s := &Server{
		database: database,
		scenes:   new(sync.Map),
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
	}
	for id, raw := range all {
		store, err := scene.Load(raw)
		if err != nil {
			return nil, err
		}
		s.scenes.Store(id, store)
	}
	slog.Info("loaded scenes", "count", len(all))
	return s, nil
}

// EnsureScene creates an empty scene under id unless one exists.
func (s *Server) EnsureScene(ctx context.Context, id string) error {
	if _, err := s.load(ctx, id); err == nil {
		return nil
	} else if !errors.Is(err, docstore.ErrNotFound) {
		return err
	}
	store, err := scene.New()
	if err != nil {
		return err
	}
	if err := s.database.Create(ctx, id, store.Save()); err != nil {
		return err
	}
	s.scenes.Store(id, store)
	slog.Info("created scene", "scene", id)
	return nil
}

// Handler returns the routes of the relay with request logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(func(handler http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			m := httpsnoop.CaptureMetrics(handler, writer, request)
			slog.Info("handled", "method", request.Method, "url", request.URL, "duration", m.Duration, "status", m.Code)
		})
	})
	r.Methods(http.MethodGet).Path("/scenes/{scene}/latest").HandlerFunc(s.getLatest)
	r.Methods(http.MethodPost).Path("/scenes/{scene}").HandlerFunc(s.createScene)
	r.Methods(http.MethodGet).Path("/scenes/{scene}/sync").HandlerFunc(s.syncScene)
	return r
}

func (s *Server) lookup(id string) (*scene.Store, bool) {
	raw, ok := s.scenes.Load(id)
	if !ok {
		return nil, false
	}
	store, ok := raw.(*scene.Store)
	return store, ok
}

// load returns the scene held in memory, falling back to the database for
// scenes written there by another relay sharing it.
func (s *Server) load(ctx context.Context, id string) (*scene.Store, error) {
	if store, ok := s.lookup(id); ok {
		return store, nil
	}
	raw, err := s.database.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	store, err := scene.Load(raw)
	if err != nil {
		return nil, err
	}
	actual, _ := s.scenes.LoadOrStore(id, store)
	slog.Info("loaded scene from database", "scene", id)
	return actual.(*scene.Store), nil
}

// loadOrFail writes the status for a scene that could not be loaded.
func (s *Server) loadOrFail(writer http.ResponseWriter, request *http.Request, id string) (*scene.Store, bool) {
	store, err := s.load(request.Context(), id)
	if errors.Is(err, docstore.ErrNotFound) {
		writer.WriteHeader(http.StatusNotFound)
		return nil, false
	} else if err != nil {
		slog.Error("failed to load scene", "scene", id, "err", err)
		writer.WriteHeader(http.StatusInternalServerError)
		return nil, false
	}
	return store, true
}

func (s *Server) getLatest(writer http.ResponseWriter, request *http.Request) {
	store, ok := s.loadOrFail(writer, request, mux.Vars(request)["scene"])
	if !ok {
		return
	}
	writer.Header().Add("Content-Type", "application/octet-stream")
	if _, err := writer.Write(store.Save()); err != nil {
		slog.Error("failed to write out", "err", err)
	}
}

// createScene stores the uploaded document, or a new empty scene when the
// body is empty.
func (s *Server) createScene(writer http.ResponseWriter, request *http.Request) {
	id := mux.Vars(request)["scene"]
	raw, err := io.ReadAll(io.LimitReader(request.Body, maxUploadBytes))
	if err != nil {
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	var store *scene.Store
	if len(raw) == 0 {
		store, err = scene.New()
	} else {
		store, err = scene.Load(raw)
	}
	if err != nil {
		slog.Error("rejected scene upload", "scene", id, "err", err)
		writer.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.database.Create(request.Context(), id, store.Save()); err != nil {
		if errors.Is(err, docstore.ErrExists) {
			writer.WriteHeader(http.StatusConflict)
			return
		}
		slog.Error("failed to create scene", "scene", id, "err", err)
		writer.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.scenes.Store(id, store)
	writer.WriteHeader(http.StatusCreated)
}

func (s *Server) syncScene(writer http.ResponseWriter, request *http.Request) {
	id := mux.Vars(request)["scene"]
	store, ok := s.loadOrFail(writer, request, id)
	if !ok {
		return
	}
	conn, err := s.upgrader.Upgrade(writer, request, nil)
	if err != nil {
		slog.Error("failed to upgrade", "err", err)
		return
	}
	if err := Sync(request.Context(), conn, store.NewSyncPeer()); err != nil {
		slog.Error("failed to sync", "scene", id, "err", err)
	}
}

// Backup writes every scene that changed since the last backup.
func (s *Server) Backup(ctx context.Context) {
	s.scenes.Range(func(key, value any) bool {
		id, store := key.(string), value.(*scene.Store)
		if changed, err := s.database.Backup(ctx, id, store.Save()); err != nil {
			slog.Error("failed to backup doc in database", "scene", id, "err", err)
		} else if changed {
			slog.Info("backed up", "scene", id, "heads", store.Heads())
		}
		return true
	})
}

// RunBackups backs up on every interval until the context is cancelled.
func (s *Server) RunBackups(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Backup(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// Dump writes every scene and its history graph into dir.
func (s *Server) Dump(dir string) {
	s.scenes.Range(func(key, value any) bool {
		id, store := key.(string), value.(*scene.Store)
		path := filepath.Join(dir, id+".automerge")
		if err := os.WriteFile(path, store.Save(), 0o644); err != nil {
			slog.Error("failed to dump", "scene", id, "err", err)
			return true
		}
		slog.Info("dumped", "scene", id, "path", path)
		doc, err := store.ForkDoc()
		if err != nil {
			slog.Error("failed to fork", "scene", id, "err", err)
			return true
		}
		if err := viz.RenderToFile(doc, filepath.Join(dir, id+".svg")); err != nil {
			slog.Error("failed to render", "scene", id, "err", err)
		}
		return true
	})
}
