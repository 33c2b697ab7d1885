package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"example.com/forum/internal/models"
	"example.com/forum/internal/store"
)

func errUnknownTemplate(page string) error {
	return fmt.Errorf("template %q does not exist", page)
}

func (s *Server) serverError(w http.ResponseWriter, module string, err error) {
	logg.Error(module, "Request failed", err)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}

func (s *Server) clientError(w http.ResponseWriter, status int) {
	http.Error(w, http.StatusText(status), status)
}

func (s *Server) notFound(w http.ResponseWriter) {
	s.clientError(w, http.StatusNotFound)
}

// fail maps a rule-layer error onto the response: lookups that miss are 404,
// rule violations are a 400 request failure, everything else is a 500.
func (s *Server) fail(w http.ResponseWriter, module string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		s.notFound(w)
	case errors.Is(err, models.ErrInvalid):
		logg.Info(module, "Request rejected: "+err.Error())
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.serverError(w, module, err)
	}
}

// pathID reads a positive numeric path wildcard. Anything else can not name a row.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
