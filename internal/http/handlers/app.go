package handlers

import (
	"encoding/json"
	"net/http"

	"cardforge/internal/infra"
	"cardforge/internal/jobs"
)

type App struct {
	Manager *jobs.Manager
	Logger  infra.Logger
}

func NewApp(manager *jobs.Manager, logger infra.Logger) *App {
	return &App{Manager: manager, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, status int, code, message string) {
	a.json(w, status, map[string]string{"error": code, "message": message})
}
