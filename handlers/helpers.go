package handlers

import (
	"encoding/json"
	"net/http"

	"monkArenaAPI/internal/core"
)

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error": "Internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithCoreError maps the store's error taxonomy onto status
// codes: conflicts and busy rejections carry their message to the user,
// anything else is a plain 500 with the detail kept in the logs.
func respondWithCoreError(w http.ResponseWriter, err error) {
	switch {
	case core.IsConflict(err):
		respondWithError(w, http.StatusConflict, err.Error())
	case core.IsNotFound(err):
		respondWithError(w, http.StatusNotFound, "Not found")
	case core.IsBusy(err):
		respondWithError(w, http.StatusTooManyRequests, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "Something went wrong")
	}
}
