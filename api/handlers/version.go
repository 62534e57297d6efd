package handlers

import (
	"net/http"
)

// VersionResponse contains the build metadata of the running binary.
type VersionResponse struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// GetVersion returns a handler reporting info.
func GetVersion(info VersionResponse) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, info)
	}
}
