package middleware

import (
	"bytes"
	"net/http"
)

// recorder remembers the status a handler wrote and, when keep is set, a
// copy of the body.
type recorder struct {
	http.ResponseWriter
	status int
	size   int
	keep   bool
	body   bytes.Buffer
}

func record(w http.ResponseWriter) *recorder {
	if rec, ok := w.(*recorder); ok && !rec.keep {
		return rec
	}
	return &recorder{ResponseWriter: w}
}

func (r *recorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *recorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	if r.keep {
		r.body.Write(b)
	}
	n, err := r.ResponseWriter.Write(b)
	r.size += n
	return n, err
}

// Status is 200 when the handler wrote nothing.
func (r *recorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (r *recorder) Unwrap() http.ResponseWriter { return r.ResponseWriter }
