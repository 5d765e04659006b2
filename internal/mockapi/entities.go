package mockapi

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

var labels = map[string]string{
	"furnitures":          "Furniture",
	"suppliers":           "Supplier",
	"ressources":          "Ressource",
	"furnitureCategories": "Furniture category",
	"ressourceCategories": "Ressource category",
}

func (s *Server) list(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		docs := s.collections[name].list()
		for _, doc := range docs {
			s.populate(name, doc)
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": docs})
	}
}

func (s *Server) get(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, ok := s.collections[name].get(chi.URLParam(r, "id"))
		if !ok {
			writeMessage(w, http.StatusNotFound, labels[name]+" not found")
			return
		}
		s.populate(name, doc)
		writeJSON(w, http.StatusOK, map[string]any{"data": doc})
	}
}

func (s *Server) create(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, ok := decodeDocument(w, r)
		if !ok {
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"data": s.collections[name].create(fields)})
	}
}

func (s *Server) update(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fields, ok := decodeDocument(w, r)
		if !ok {
			return
		}
		doc, found := s.collections[name].update(chi.URLParam(r, "id"), fields)
		if !found {
			writeMessage(w, http.StatusNotFound, labels[name]+" not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": doc})
	}
}

func (s *Server) remove(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, found := s.collections[name].delete(chi.URLParam(r, "id"))
		if !found {
			writeMessage(w, http.StatusNotFound, labels[name]+" not found")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": doc})
	}
}

// populate replaces reference ids with the referenced documents, the way the
// real API answers reads.
func (s *Server) populate(name string, doc document) {
	for field, target := range refTargets[name] {
		id, ok := doc[field].(string)
		if !ok || strings.TrimSpace(id) == "" {
			continue
		}
		if ref, found := s.collections[target].get(id); found {
			doc[field] = ref
		}
	}
}

func decodeDocument(w http.ResponseWriter, r *http.Request) (document, bool) {
	var fields document
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		writeMessage(w, http.StatusBadRequest, "Invalid JSON body")
		return nil, false
	}
	return fields, true
}
