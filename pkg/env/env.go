// Package env reads the few settings needed before the config is loaded.
package env

import (
	"os"
	"strings"
)

// Get returns the trimmed value of key, or fallback when it is unset or blank.
func Get(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// WorkerID names this process in lock tokens: WORKER_ID, else the hostname.
func WorkerID() string {
	id := Get("WORKER_ID", "")
	if id == "" {
		id, _ = os.Hostname()
	}
	if id == "" {
		id = "worker-0"
	}
	return id
}
