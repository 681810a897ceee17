package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
)

// Config configures a Server.
type Config struct {
	// AuthToken, when set, must be passed as the auth query parameter.
	AuthToken string
	// Snapshot persists the tree after every write. Nil keeps it in memory.
	Snapshot Snapshotter
	Logger   *log.Logger
}

// Server serves a Tree over {path}.json endpoints: GET reads, PUT replaces,
// PATCH merges children, POST pushes a child with a generated key and
// DELETE removes.
type Server struct {
	tree     *Tree
	router   *gin.Engine
	token    string
	snapshot Snapshotter
	log      *log.Logger
}

// NewServer creates a Server and restores the tree from the snapshot, if any.
func NewServer(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	snap := cfg.Snapshot
	if snap == nil {
		snap = &memSnapshot{}
	}

	tree := NewTree()
	root, err := snap.Load()
	if err != nil {
		return nil, err
	}
	tree.Restore(root)

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		tree:     tree,
		router:   router,
		token:    cfg.AuthToken,
		snapshot: snap,
		log:      logger,
	}

	router.GET("/*path", s.handleGet)
	router.PUT("/*path", s.handlePut)
	router.PATCH("/*path", s.handlePatch)
	router.POST("/*path", s.handlePost)
	router.DELETE("/*path", s.handleDelete)

	return s, nil
}

// Tree returns the served tree.
func (s *Server) Tree() *Tree { return s.tree }

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("document store listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return s.snapshot.Close()
	}
}

func requestLogger(logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// nodePath validates the request and returns the tree path. It writes the
// error response and returns false when the request is rejected.
func (s *Server) nodePath(c *gin.Context) (string, bool) {
	if s.token != "" && c.Query("auth") != s.token {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Permission denied"})
		return "", false
	}
	p := c.Param("path")
	if !strings.HasSuffix(p, ".json") {
		c.JSON(http.StatusNotFound, gin.H{"error": "paths must end in .json"})
		return "", false
	}
	return strings.TrimSuffix(p, ".json"), true
}

func readBody(c *gin.Context) (any, bool) {
	var v any
	dec := json.NewDecoder(c.Request.Body)
	if err := dec.Decode(&v); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data; couldn't parse JSON object"})
		return nil, false
	}
	return v, true
}

func (s *Server) handleGet(c *gin.Context) {
	path, ok := s.nodePath(c)
	if !ok {
		return
	}
	if err := refresh(s.tree, s.snapshot); err != nil {
		s.log.Error("reading snapshot", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot unavailable"})
		return
	}
	c.JSON(http.StatusOK, s.tree.Get(path))
}

func (s *Server) handlePut(c *gin.Context) {
	path, ok := s.nodePath(c)
	if !ok {
		return
	}
	v, ok := readBody(c)
	if !ok {
		return
	}
	if !s.write(c, func(t *Tree) error { return t.Set(path, v) }) {
		return
	}
	c.JSON(http.StatusOK, v)
}

func (s *Server) handlePatch(c *gin.Context) {
	path, ok := s.nodePath(c)
	if !ok {
		return
	}
	v, ok := readBody(c)
	if !ok {
		return
	}
	fields, isObj := v.(map[string]any)
	if !isObj {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid data; PATCH requires an object"})
		return
	}
	if !s.write(c, func(t *Tree) error { return t.Update(path, fields) }) {
		return
	}
	c.JSON(http.StatusOK, fields)
}

func (s *Server) handlePost(c *gin.Context) {
	path, ok := s.nodePath(c)
	if !ok {
		return
	}
	v, ok := readBody(c)
	if !ok {
		return
	}
	var key string
	ok = s.write(c, func(t *Tree) error {
		var err error
		key, err = t.Push(path, v)
		return err
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"name": key})
}

func (s *Server) handleDelete(c *gin.Context) {
	path, ok := s.nodePath(c)
	if !ok {
		return
	}
	ok = s.write(c, func(t *Tree) error {
		t.Delete(path)
		return nil
	})
	if !ok {
		return
	}
	c.JSON(http.StatusOK, nil)
}

// write commits mutate through the snapshot. A rejected mutation answers 400
// and a failed save answers 500; either way it returns false.
func (s *Server) write(c *gin.Context, mutate func(*Tree) error) bool {
	var rejected error
	err := commit(s.tree, s.snapshot, func(t *Tree) error {
		rejected = mutate(t)
		return rejected
	})
	switch {
	case rejected != nil:
		c.JSON(http.StatusBadRequest, gin.H{"error": rejected.Error()})
		return false
	case err != nil:
		s.log.Error("saving snapshot", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "saving snapshot failed"})
		return false
	}
	return true
}
