// Package basexfake serves an in-memory subset of the BaseX REST protocol for
// tests. Queries are evaluated as etree paths against every stored document.
package basexfake

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"

	"github.com/beevik/etree"
	"github.com/gorilla/mux"
)

const restNamespace = "http://basex.org/rest"

// Server is a fake BaseX REST endpoint rooted at URL().
type Server struct {
	srv *httptest.Server

	mu       sync.Mutex
	dbs      map[string]map[string][]byte
	user     string
	password string
	requests int

	failPutsAfter int
	puts          int
	failDeletes   bool
}

// Option configures a Server.
type Option func(*Server)

// WithCredentials makes the server answer 401 unless the request carries
// the given basic-auth pair.
func WithCredentials(user, password string) Option {
	return func(s *Server) {
		s.user = user
		s.password = password
	}
}

// New starts a Server. Close it when done.
func New(opts ...Option) *Server {
	s := &Server{
		dbs:           make(map[string]map[string][]byte),
		failPutsAfter: -1,
	}
	for _, opt := range opts {
		opt(s)
	}

	r := mux.NewRouter()
	r.Use(s.count, s.authenticate)

	r.HandleFunc("/rest", s.listDatabases).Methods(http.MethodGet)
	r.HandleFunc("/rest/{db}", s.listResources).Methods(http.MethodGet)
	r.HandleFunc("/rest/{db}", s.createDatabase).Methods(http.MethodPut)
	r.HandleFunc("/rest/{db}", s.deleteDatabase).Methods(http.MethodDelete)
	r.HandleFunc("/rest/{db}", s.query).Methods(http.MethodPost)
	r.HandleFunc("/rest/{db}/{id:.+}", s.getDocument).Methods(http.MethodGet)
	r.HandleFunc("/rest/{db}/{id:.+}", s.putDocument).Methods(http.MethodPut)
	r.HandleFunc("/rest/{db}/{id:.+}", s.deleteDocument).Methods(http.MethodDelete)

	s.srv = httptest.NewServer(r)
	return s
}

// URL returns the REST root.
func (s *Server) URL() string {
	return s.srv.URL + "/rest"
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.Close()
}

// Requests returns the number of routed requests served so far.
func (s *Server) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// FailPutsAfter makes every document store after the first n answer 500.
// A negative n disables the failure.
func (s *Server) FailPutsAfter(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failPutsAfter = n
	s.puts = 0
}

// FailDeletes makes document deletes answer 500.
func (s *Server) FailDeletes(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failDeletes = fail
}

// Seed creates db if needed and stores docs in it.
func (s *Server) Seed(db string, docs map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dbs[db] == nil {
		s.dbs[db] = make(map[string][]byte)
	}
	for id, doc := range docs {
		s.dbs[db][id] = []byte(doc)
	}
}

// Documents returns the number of documents in db, or -1 if it does not exist.
func (s *Server) Documents(db string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs, ok := s.dbs[db]
	if !ok {
		return -1
	}
	return len(docs)
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.user != "" {
			user, password, ok := r.BasicAuth()
			if !ok || user != s.user || password != s.password {
				http.Error(w, "Access denied.", http.StatusUnauthorized)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func writeXML(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func (s *Server) listDatabases(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "<rest:databases xmlns:rest=%q>\n", restNamespace)
	for _, name := range sortedKeys(s.dbs) {
		size := 0
		for _, doc := range s.dbs[name] {
			size += len(doc)
		}
		fmt.Fprintf(&b, "  <rest:database resources=\"%d\" size=\"%d\">%s</rest:database>\n",
			len(s.dbs[name]), size, name)
	}
	b.WriteString("</rest:databases>")
	writeXML(w, http.StatusOK, b.String())
}

// databaseListing renders the resource listing of db. Callers hold s.mu.
func (s *Server) databaseListing(db string) string {
	docs := s.dbs[db]
	var b strings.Builder
	fmt.Fprintf(&b, "<rest:database xmlns:rest=%q name=%q resources=\"%d\">\n", restNamespace, db, len(docs))
	for _, id := range sortedKeys(docs) {
		fmt.Fprintf(&b, "  <rest:resource type=\"xml\" content-type=\"application/xml\" size=\"%d\">%s</rest:resource>\n",
			len(docs[id]), id)
	}
	b.WriteString("</rest:database>")
	return b.String()
}

func databaseNotFound(w http.ResponseWriter, db string) {
	http.Error(w, fmt.Sprintf("Database '%s' was not found.", db), http.StatusNotFound)
}

func (s *Server) listResources(w http.ResponseWriter, r *http.Request) {
	db := mux.Vars(r)["db"]
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dbs[db]; !ok {
		databaseNotFound(w, db)
		return
	}
	writeXML(w, http.StatusOK, s.databaseListing(db))
}

func (s *Server) createDatabase(w http.ResponseWriter, r *http.Request) {
	db := mux.Vars(r)["db"]
	s.mu.Lock()
	defer s.mu.Unlock()

	s.dbs[db] = make(map[string][]byte)
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "Database '%s' created.", db)
}

func (s *Server) deleteDatabase(w http.ResponseWriter, r *http.Request) {
	db := mux.Vars(r)["db"]
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.dbs[db]; !ok {
		databaseNotFound(w, db)
		return
	}
	delete(s.dbs, db)
	fmt.Fprintf(w, "Database '%s' was dropped.", db)
}

func (s *Server) getDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	db, id := vars["db"], vars["id"]
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.dbs[db]
	if !ok {
		databaseNotFound(w, db)
		return
	}
	doc, ok := docs[id]
	if !ok {
		writeXML(w, http.StatusOK, fmt.Sprintf("<rest:database xmlns:rest=%q name=%q resources=\"0\"/>", restNamespace, db))
		return
	}
	writeXML(w, http.StatusOK, string(doc))
}

func (s *Server) putDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	db, id := vars["db"], vars["id"]
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.dbs[db]
	if !ok {
		databaseNotFound(w, db)
		return
	}
	if s.failPutsAfter >= 0 && s.puts >= s.failPutsAfter {
		http.Error(w, "Out of disk space.", http.StatusInternalServerError)
		return
	}
	if err := etree.NewDocument().ReadFromBytes(body); err != nil {
		http.Error(w, "Malformed XML:\n"+err.Error(), http.StatusBadRequest)
		return
	}
	s.puts++
	docs[id] = body
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, "Resource(s) '%s' added.", id)
}

func (s *Server) deleteDocument(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	db, id := vars["db"], vars["id"]
	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.dbs[db]
	if !ok {
		databaseNotFound(w, db)
		return
	}
	if s.failDeletes {
		http.Error(w, "Database is locked.", http.StatusInternalServerError)
		return
	}
	n := 0
	if _, ok := docs[id]; ok {
		delete(docs, id)
		n = 1
	}
	fmt.Fprintf(w, "%d resource(s) deleted.", n)
}

func (s *Server) query(w http.ResponseWriter, r *http.Request) {
	db := mux.Vars(r)["db"]
	envelope := etree.NewDocument()
	if _, err := envelope.ReadFrom(r.Body); err != nil {
		http.Error(w, "Malformed query envelope:\n"+err.Error(), http.StatusBadRequest)
		return
	}
	text := envelope.FindElement("/query/text")
	if text == nil || envelope.Root().NamespaceURI() != restNamespace {
		http.Error(w, "Missing query text.", http.StatusBadRequest)
		return
	}

	var expr strings.Builder
	for _, tok := range text.Child {
		if cd, ok := tok.(*etree.CharData); ok {
			expr.WriteString(cd.Data)
		}
	}

	path, err := etree.CompilePath(expr.String())
	if err != nil {
		http.Error(w, "Stopped at line 1:\n[XPST0003] "+err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	docs, ok := s.dbs[db]
	if !ok {
		databaseNotFound(w, db)
		return
	}

	var results []string
	for _, id := range sortedKeys(docs) {
		doc := etree.NewDocument()
		if err := doc.ReadFromBytes(docs[id]); err != nil {
			continue
		}
		for _, e := range doc.FindElementsPath(path) {
			out := etree.NewDocument()
			out.SetRoot(e.Copy())
			fragment, err := out.WriteToString()
			if err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			results = append(results, fragment)
		}
	}
	writeXML(w, http.StatusOK, strings.Join(results, "\n"))
}
