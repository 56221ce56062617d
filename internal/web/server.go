package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"pdf-reducer-go/internal/batch"
	"pdf-reducer-go/internal/config"
	"pdf-reducer-go/internal/reducer"
	"pdf-reducer-go/internal/stats"
	"pdf-reducer-go/internal/tools"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	// Current operation state
	operationMutex sync.RWMutex
	isRunning      bool
	currentStats   *stats.Statistics
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type CompressRequest struct {
	InputPath    string  `json:"input_path"`
	OutputPath   string  `json:"output_path,omitempty"`
	TargetSizeMB float64 `json:"target_size_mb,omitempty"`
}

type BatchRequest struct {
	InputDirectory  string  `json:"input_directory"`
	OutputDirectory string  `json:"output_directory,omitempty"`
	TargetSizeMB    float64 `json:"target_size_mb,omitempty"`
}

type DirectoryInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	IsDirectory  bool   `json:"is_directory"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

type ToolStatus struct {
	Name        string `json:"name"`
	Available   bool   `json:"available"`
	InstallHint string `json:"install_hint,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg *config.Config, log *logrus.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	// API routes
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/compress", s.handleCompress).Methods("POST")
	api.HandleFunc("/batch", s.handleBatch).Methods("POST")
	api.HandleFunc("/directories", s.handleListDirectories).Methods("GET")
	api.HandleFunc("/tools", s.handleTools).Methods("GET")

	// WebSocket endpoint
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// newReducer builds the fallback-chain reducer from the server configuration.
func (s *Server) newReducer() reducer.Reducer {
	runner := tools.NewExecRunner(time.Duration(s.cfg.Tools.TimeoutSeconds) * time.Second)
	opt := tools.NewQpdfOptimizer(s.cfg.Tools.QpdfPath, runner)
	rec := tools.NewGhostscriptRecompressor(s.cfg.Tools.GhostscriptPath, runner)
	return reducer.NewChainReducer(opt, rec, s.cfg, s.log)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	running := s.isRunning
	st := s.currentStats
	s.operationMutex.RUnlock()

	var statsData interface{}
	if st != nil {
		statsData = map[string]interface{}{
			"summary": st.GetSummary(),
			"files": map[string]interface{}{
				"found":     atomic.LoadInt64(&st.FilesFound),
				"processed": atomic.LoadInt64(&st.FilesProcessed),
				"succeeded": atomic.LoadInt64(&st.FilesSucceeded),
				"failed":    atomic.LoadInt64(&st.FilesFailed),
				"copied":    atomic.LoadInt64(&st.FilesCopied),
			},
		}
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":    running,
			"statistics": statsData,
		},
	})
}

func (s *Server) handleCompress(w http.ResponseWriter, r *http.Request) {
	var req CompressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.InputPath == "" {
		s.writeError(w, "Input path is required", http.StatusBadRequest)
		return
	}

	if _, err := os.Stat(req.InputPath); os.IsNotExist(err) {
		s.writeError(w, "Input file does not exist", http.StatusBadRequest)
		return
	}

	if !s.tryStart() {
		s.writeError(w, "Operation already in progress", http.StatusConflict)
		return
	}

	go s.runCompressAsync(req)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Compression started",
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.InputDirectory == "" {
		s.writeError(w, "Input directory is required", http.StatusBadRequest)
		return
	}

	if _, err := os.Stat(req.InputDirectory); os.IsNotExist(err) {
		s.writeError(w, "Input directory does not exist", http.StatusBadRequest)
		return
	}

	if !s.tryStart() {
		s.writeError(w, "Operation already in progress", http.StatusConflict)
		return
	}

	go s.runBatchAsync(req)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Batch compression started",
	})
}

func (s *Server) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "."
	}

	// Security check - prevent directory traversal
	path = filepath.Clean(path)
	if strings.Contains(path, "..") {
		s.writeError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to read directory: %v", err), http.StatusInternalServerError)
		return
	}

	var directories []DirectoryInfo
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		fullPath := filepath.Join(path, entry.Name())
		directories = append(directories, DirectoryInfo{
			Path:         fullPath,
			Name:         entry.Name(),
			IsDirectory:  entry.IsDir(),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format(time.RFC3339),
		})
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    directories,
	})
}

func (s *Server) handleTools(w http.ResponseWriter, r *http.Request) {
	runner := tools.NewExecRunner(time.Duration(s.cfg.Tools.TimeoutSeconds) * time.Second)
	opt := tools.NewQpdfOptimizer(s.cfg.Tools.QpdfPath, runner)
	rec := tools.NewGhostscriptRecompressor(s.cfg.Tools.GhostscriptPath, runner)

	statuses := []ToolStatus{
		{Name: opt.Name(), Available: opt.Available() == nil, InstallHint: opt.InstallHint()},
		{Name: rec.Name(), Available: rec.Available() == nil, InstallHint: rec.InstallHint()},
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    statuses,
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	// Remove client on disconnect
	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			break
		}
	}
}

// tryStart marks the server as running, failing if a run is already active.
func (s *Server) tryStart() bool {
	s.operationMutex.Lock()
	defer s.operationMutex.Unlock()
	if s.isRunning {
		return false
	}
	s.isRunning = true
	s.currentStats = stats.NewStatistics()
	return true
}

func (s *Server) finish() {
	s.operationMutex.Lock()
	s.isRunning = false
	s.operationMutex.Unlock()
}

func (s *Server) runCompressAsync(req CompressRequest) {
	defer s.finish()

	target := req.TargetSizeMB
	if target <= 0 {
		target = s.cfg.TargetSizeMB
	}
	output := req.OutputPath
	if output == "" {
		dir := filepath.Dir(req.InputPath)
		output = filepath.Join(dir, s.cfg.Output.FilePrefix+filepath.Base(req.InputPath))
	}

	s.broadcastWSMessage("compress_started", map[string]interface{}{
		"input_path":     req.InputPath,
		"output_path":    output,
		"target_size_mb": target,
	})

	res, err := s.newReducer().Reduce(context.Background(), reducer.Request{
		InputPath:    req.InputPath,
		OutputPath:   output,
		TargetSizeMB: target,
	})

	if err != nil {
		s.broadcastWSMessage("compress_error", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	s.broadcastWSMessage("compress_completed", map[string]interface{}{
		"success":          res.Success,
		"original_size_mb": res.OriginalSizeMB,
		"final_size_mb":    res.FinalSizeMB,
		"strategy":         string(res.Strategy),
	})
}

func (s *Server) runBatchAsync(req BatchRequest) {
	defer s.finish()

	target := req.TargetSizeMB
	if target <= 0 {
		target = s.cfg.TargetSizeMB
	}

	s.broadcastWSMessage("batch_started", map[string]interface{}{
		"input_directory":  req.InputDirectory,
		"output_directory": req.OutputDirectory,
		"target_size_mb":   target,
	})

	s.operationMutex.RLock()
	st := s.currentStats
	s.operationMutex.RUnlock()

	driver := batch.NewDriver(s.cfg, s.log, st, s.newReducer())
	summary, err := driver.Run(context.Background(), req.InputDirectory, req.OutputDirectory, target)

	if err != nil {
		s.broadcastWSMessage("batch_error", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	s.broadcastWSMessage("batch_completed", map[string]interface{}{
		"ok":                  summary.OK(),
		"total":               len(summary.Outcomes),
		"succeeded":           summary.SucceededCount(),
		"failed":              summary.FailedCount(),
		"total_original_mb":   summary.TotalOriginalMB(),
		"total_compressed_mb": summary.TotalCompressedMB(),
		"total_saved_mb":      summary.TotalSavedMB(),
		"report":              summary.Render(),
	})
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	s.wsMutex.RLock()
	defer s.wsMutex.RUnlock()

	for conn := range s.wsClients {
		err := conn.WriteMessage(websocket.TextMessage, msgBytes)
		if err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			// Remove failed connection
			go func(c *websocket.Conn) {
				s.wsMutex.Lock()
				delete(s.wsClients, c)
				s.wsMutex.Unlock()
				c.Close()
			}(conn)
		}
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
