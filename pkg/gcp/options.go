// Package gcp holds what the Google Cloud clients share.
package gcp

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/option"

	"github.com/supserrr/vevurn-sub002/pkg/config"
)

var ErrNoProject = errors.New("gcp project id is required")

// Project returns the trimmed project id or ErrNoProject.
func Project(cfg config.GCPConfig) (string, error) {
	p := strings.TrimSpace(cfg.ProjectID)
	if p == "" {
		return "", ErrNoProject
	}
	return p, nil
}

// ClientOptions picks inline JSON credentials over a credentials file. With
// neither set the clients fall back to application default credentials.
func ClientOptions(cfg config.GCPConfig) []option.ClientOption {
	if js := strings.TrimSpace(cfg.CredentialsJSON); js != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(js))}
	}
	if path := strings.TrimSpace(cfg.ApplicationCredentials); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

// ResourceName expands a short id into projects/<project>/<kind>/<id>.
// Fully qualified names pass through unchanged.
func ResourceName(project, kind, id string) string {
	id = strings.TrimSpace(id)
	if id == "" {
		return ""
	}
	if strings.HasPrefix(id, "projects/") && strings.Contains(id, "/"+kind+"/") {
		return id
	}
	if project == "" {
		return ""
	}
	return fmt.Sprintf("projects/%s/%s/%s", project, kind, id)
}

// NonEmpty trims names and drops blanks.
func NonEmpty(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
