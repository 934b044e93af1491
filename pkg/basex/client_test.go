package basex_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/google/go-cmp/cmp"
	"stealthcompany.com/basex/internal/basexfake"
	"stealthcompany.com/basex/pkg/basex"
)

const testDB = "test_basex"

func newClient(t *testing.T, url string, opts ...basex.Option) *basex.Client {
	t.Helper()
	c := basex.New(url, opts...)
	c.Connect()
	t.Cleanup(c.Disconnect)
	return c
}

func mustDoc(t *testing.T, s string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(s); err != nil {
		t.Fatalf("Failed to parse %q: %v", s, err)
	}
	return doc
}

func databaseNames(t *testing.T, c *basex.Client) []string {
	t.Helper()
	dbs, err := c.GetDatabases(context.Background())
	if err != nil {
		t.Fatalf("GetDatabases() returned error: %v", err)
	}
	var names []string
	for _, db := range dbs {
		names = append(names, db.Name)
	}
	return names
}

func TestCreateDatabase(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	c := newClient(t, srv.URL(), basex.WithDefaultDatabase(testDB))
	ctx := context.Background()

	if err := c.CreateDatabase(ctx, ""); err != nil {
		t.Fatalf("CreateDatabase() returned error: %v", err)
	}
	if diff := cmp.Diff([]string{testDB}, databaseNames(t, c)); diff != "" {
		t.Errorf("databases mismatch (-want +got):\n%s", diff)
	}

	err := c.CreateDatabase(ctx, testDB)
	if !errors.Is(err, basex.ErrOverwrite) {
		t.Fatalf("Expected ErrOverwrite on second create, got %v", err)
	}

	if err := c.DeleteDatabase(ctx, ""); err != nil {
		t.Fatalf("DeleteDatabase() returned error: %v", err)
	}
	if names := databaseNames(t, c); len(names) != 0 {
		t.Errorf("Expected no databases after delete, got %v", names)
	}
}

func TestReplaceDatabase(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, map[string]string{"a": "<a/>"})
	c := newClient(t, srv.URL())

	if err := c.ReplaceDatabase(context.Background(), testDB); err != nil {
		t.Fatalf("ReplaceDatabase() returned error: %v", err)
	}
	if n := srv.Documents(testDB); n != 0 {
		t.Errorf("Expected replaced database to be empty, got %d documents", n)
	}
}

func TestGetDatabasesMetadata(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed("one", map[string]string{"a": "<a/>", "b": "<bb/>"})
	srv.Seed("two", nil)
	c := newClient(t, srv.URL())

	dbs, err := c.GetDatabases(context.Background())
	if err != nil {
		t.Fatalf("GetDatabases() returned error: %v", err)
	}
	want := []basex.Database{
		{Name: "one", Size: int64(len("<a/>") + len("<bb/>")), Resources: 2},
		{Name: "two", Size: 0, Resources: 0},
	}
	if diff := cmp.Diff(want, dbs); diff != "" {
		t.Errorf("databases mismatch (-want +got):\n%s", diff)
	}
}

func TestDeleteUnknownDatabase(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	c := newClient(t, srv.URL())

	err := c.DeleteDatabase(context.Background(), "missing")
	if !errors.Is(err, basex.ErrUnknownDatabase) {
		t.Fatalf("Expected ErrUnknownDatabase, got %v", err)
	}
}

func TestAddAndGetDocument(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, nil)
	c := newClient(t, srv.URL(), basex.WithDefaultDatabase(testDB))
	ctx := context.Background()

	id, err := c.AddDocument(ctx, mustDoc(t, `<city><name>Cagliari</name></city>`), "cagliari", "")
	if err != nil {
		t.Fatalf("AddDocument() returned error: %v", err)
	}
	if id != "cagliari" {
		t.Errorf("Expected id cagliari, got %s", id)
	}

	lookup, err := c.GetDocument(ctx, id, testDB)
	if err != nil {
		t.Fatalf("GetDocument() returned error: %v", err)
	}
	if !lookup.Found {
		t.Fatal("Expected document to be found")
	}
	if got := lookup.Document.Root().Tag; got != "city" {
		t.Errorf("Expected root tag city, got %s", got)
	}

	resources, err := c.GetResources(ctx, "")
	if err != nil {
		t.Fatalf("GetResources() returned error: %v", err)
	}
	if len(resources) != 1 || resources[0].ID != id {
		t.Fatalf("Expected resources to list %s, got %+v", id, resources)
	}
	if resources[0].Type != "xml" || resources[0].ContentType != "application/xml" || resources[0].Size <= 0 {
		t.Errorf("Unexpected resource metadata: %+v", resources[0])
	}
}

func TestAddDocumentGeneratesID(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, nil)
	c := newClient(t, srv.URL())

	id, err := c.AddDocument(context.Background(), mustDoc(t, "<a/>"), "", testDB)
	if err != nil {
		t.Fatalf("AddDocument() returned error: %v", err)
	}
	if !regexp.MustCompile(`^[0-9a-f]{32}$`).MatchString(id) {
		t.Errorf("Expected a 32 character hex id, got %q", id)
	}
	if n := srv.Documents(testDB); n != 1 {
		t.Errorf("Expected 1 document, got %d", n)
	}
}

func TestAddDocumentOverwrite(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, map[string]string{"taken": "<old/>"})
	c := newClient(t, srv.URL())
	ctx := context.Background()

	_, err := c.AddDocument(ctx, mustDoc(t, "<new/>"), "taken", testDB)
	if !errors.Is(err, basex.ErrOverwrite) {
		t.Fatalf("Expected ErrOverwrite, got %v", err)
	}

	lookup, err := c.GetDocument(ctx, "taken", testDB)
	if err != nil {
		t.Fatalf("GetDocument() returned error: %v", err)
	}
	if lookup.Document.Root().Tag != "old" {
		t.Errorf("Existing document was overwritten with %s", lookup.Document.Root().Tag)
	}
}

func TestGetDocumentAbsent(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, map[string]string{"a": "<a/>"})
	c := newClient(t, srv.URL())
	ctx := context.Background()

	lookup, err := c.GetDocument(ctx, "nope", testDB)
	if err != nil {
		t.Fatalf("GetDocument() on a missing id returned error: %v", err)
	}
	if lookup.Found || lookup.Document != nil {
		t.Errorf("Expected absent lookup, got %+v", lookup)
	}

	_, err = c.GetDocument(ctx, "a", "missing_db")
	if !errors.Is(err, basex.ErrUnknownDatabase) {
		t.Fatalf("Expected ErrUnknownDatabase, got %v", err)
	}
}

func TestGetDocuments(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, map[string]string{"a": "<a/>", "b": "<b/>"})
	c := newClient(t, srv.URL())

	docs, err := c.GetDocuments(context.Background(), testDB)
	if err != nil {
		t.Fatalf("GetDocuments() returned error: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("Expected 2 documents, got %d", len(docs))
	}
	for id, lookup := range docs {
		if !lookup.Found || lookup.Document.Root().Tag != id {
			t.Errorf("Unexpected lookup for %s: %+v", id, lookup)
		}
	}
}

func TestDeleteDocument(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, map[string]string{"a": "<a/>", "b": "<b/>"})
	c := newClient(t, srv.URL())
	ctx := context.Background()

	if err := c.DeleteDocument(ctx, "a", testDB); err != nil {
		t.Fatalf("DeleteDocument() returned error: %v", err)
	}
	if n := srv.Documents(testDB); n != 1 {
		t.Errorf("Expected 1 document left, got %d", n)
	}

	err := c.DeleteDocument(ctx, "a", "missing_db")
	if !errors.Is(err, basex.ErrUnknownDatabase) {
		t.Fatalf("Expected ErrUnknownDatabase, got %v", err)
	}
}

func TestAddDocumentsRejectsDuplicates(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, map[string]string{"d1": "<doc/>", "d2": "<doc/>"})
	c := newClient(t, srv.URL())

	docs := map[string]*etree.Document{
		"d2": mustDoc(t, "<doc/>"),
		"d3": mustDoc(t, "<doc/>"),
		"d4": mustDoc(t, "<doc/>"),
	}
	_, err := c.AddDocumentsWithIDs(context.Background(), docs, testDB, false)
	if !errors.Is(err, basex.ErrOverwrite) {
		t.Fatalf("Expected ErrOverwrite, got %v", err)
	}
	if !strings.Contains(err.Error(), "d2") {
		t.Errorf("Expected error to name the colliding id, got %q", err.Error())
	}
	if n := srv.Documents(testDB); n != 2 {
		t.Errorf("Expected resource count to stay 2, got %d", n)
	}
}

func TestAddDocumentsSkipDuplicates(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, map[string]string{"d1": "<doc/>", "d2": "<doc/>", "other": "<doc/>"})
	c := newClient(t, srv.URL())

	docs := make(map[string]*etree.Document)
	for i := 1; i <= 5; i++ {
		docs[fmt.Sprintf("d%d", i)] = mustDoc(t, "<doc/>")
	}

	result, err := c.AddDocumentsWithIDs(context.Background(), docs, testDB, true)
	if err != nil {
		t.Fatalf("AddDocumentsWithIDs() returned error: %v", err)
	}
	want := basex.BatchResult{
		Stored:     []string{"d3", "d4", "d5"},
		Duplicates: []string{"d1", "d2"},
	}
	if diff := cmp.Diff(want, result); diff != "" {
		t.Errorf("batch result mismatch (-want +got):\n%s", diff)
	}
	if n := srv.Documents(testDB); n != 3+3 {
		t.Errorf("Expected 6 documents, got %d", n)
	}
}

func TestAddDocumentsSequence(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, nil)
	c := newClient(t, srv.URL())

	docs := []*etree.Document{mustDoc(t, "<a/>"), mustDoc(t, "<b/>"), mustDoc(t, "<c/>")}
	result, err := c.AddDocuments(context.Background(), docs, testDB, false)
	if err != nil {
		t.Fatalf("AddDocuments() returned error: %v", err)
	}
	if len(result.Stored) != 3 || len(result.Duplicates) != 0 {
		t.Fatalf("Unexpected batch result: %+v", result)
	}
	if n := srv.Documents(testDB); n != 3 {
		t.Errorf("Expected 3 documents, got %d", n)
	}
}

func TestAddDocumentsRollback(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, map[string]string{"keep": "<doc/>"})
	srv.FailPutsAfter(2)
	c := newClient(t, srv.URL())

	docs := make(map[string]*etree.Document)
	for i := 0; i < 4; i++ {
		docs[fmt.Sprintf("new%d", i)] = mustDoc(t, "<doc/>")
	}

	_, err := c.AddDocumentsWithIDs(context.Background(), docs, testDB, false)
	if !errors.Is(err, basex.ErrRequest) {
		t.Fatalf("Expected the failing store to surface as ErrRequest, got %v", err)
	}
	if n := srv.Documents(testDB); n != 1 {
		t.Errorf("Expected rollback to leave 1 document, got %d", n)
	}
	lookup, err := c.GetDocument(context.Background(), "keep", testDB)
	if err != nil || !lookup.Found {
		t.Errorf("Pre-existing document lost during rollback: %+v, %v", lookup, err)
	}
}

func TestAddDocumentsRollbackFailuresReported(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, nil)
	srv.FailPutsAfter(2)
	srv.FailDeletes(true)
	c := newClient(t, srv.URL())

	docs := []*etree.Document{mustDoc(t, "<a/>"), mustDoc(t, "<b/>"), mustDoc(t, "<c/>")}
	_, err := c.AddDocuments(context.Background(), docs, testDB, false)
	if err == nil {
		t.Fatal("Expected an error")
	}
	if !errors.Is(err, basex.ErrRequest) {
		t.Errorf("Expected ErrRequest, got %v", err)
	}
	if got := strings.Count(err.Error(), "rollback of document"); got != 2 {
		t.Errorf("Expected 2 rollback failures in %q, got %d", err.Error(), got)
	}
}

func TestQueryRoundTrip(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, nil)
	c := newClient(t, srv.URL(), basex.WithDefaultDatabase(testDB))
	ctx := context.Background()

	var docs []*etree.Document
	odd := 0
	for k := 0; k < 20; k++ {
		docs = append(docs, mustDoc(t, fmt.Sprintf(`<doc n="%d" even="%d"/>`, k, k%2)))
		odd += k % 2
	}
	if _, err := c.AddDocuments(ctx, docs, "", false); err != nil {
		t.Fatalf("AddDocuments() returned error: %v", err)
	}

	tests := []struct {
		name  string
		query string
		count int
	}{
		{name: "marker set", query: "//doc[@even='1']", count: odd},
		{name: "marker unset", query: "  //doc[@even='0']\n", count: 20 - odd},
		{name: "no match", query: "//city", count: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := c.ExecuteQuery(ctx, tt.query, "")
			if err != nil {
				t.Fatalf("ExecuteQuery() returned error: %v", err)
			}
			if results.Root().Tag != "results" {
				t.Errorf("Expected results root, got %s", results.Root().Tag)
			}
			children := results.Root().ChildElements()
			if len(children) != tt.count {
				t.Fatalf("Expected %d results, got %d", tt.count, len(children))
			}
			for _, e := range children {
				if e.Tag != "doc" {
					t.Errorf("Expected doc element, got %s", e.Tag)
				}
			}
		})
	}
}

func TestInvalidQuery(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, map[string]string{"a": "<doc/>"})
	c := newClient(t, srv.URL())

	_, err := c.ExecuteQuery(context.Background(), "//doc[", testDB)
	if !errors.Is(err, basex.ErrQuery) {
		t.Fatalf("Expected ErrQuery, got %v", err)
	}
	var bErr *basex.Error
	if !errors.As(err, &bErr) {
		t.Fatalf("Expected *basex.Error, got %T", err)
	}
	if !strings.Contains(bErr.Message, "XPST0003") || strings.Contains(bErr.Message, "\n") {
		t.Errorf("Expected server diagnostics without newlines, got %q", bErr.Message)
	}
	if n := srv.Documents(testDB); n != 1 {
		t.Errorf("Expected contents unchanged, got %d documents", n)
	}
}

type countingTransport struct {
	calls int
}

func (t *countingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.calls++
	return http.DefaultTransport.RoundTrip(req)
}

func TestDisconnectedClient(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	transport := &countingTransport{}
	c := basex.New(srv.URL(),
		basex.WithDefaultDatabase(testDB),
		basex.WithHTTPClient(&http.Client{Transport: transport}),
	)
	ctx := context.Background()
	doc := etree.NewDocument()
	doc.SetRoot(etree.NewElement("a"))

	ops := map[string]func() error{
		"create_database":  func() error { return c.CreateDatabase(ctx, "") },
		"replace_database": func() error { return c.ReplaceDatabase(ctx, "") },
		"delete_database":  func() error { return c.DeleteDatabase(ctx, "") },
		"get_databases":    func() error { _, err := c.GetDatabases(ctx); return err },
		"get_resources":    func() error { _, err := c.GetResources(ctx, ""); return err },
		"add_document":     func() error { _, err := c.AddDocument(ctx, doc, "", ""); return err },
		"add_documents": func() error {
			_, err := c.AddDocuments(ctx, []*etree.Document{doc}, "", false)
			return err
		},
		"get_document":    func() error { _, err := c.GetDocument(ctx, "a", ""); return err },
		"get_documents":   func() error { _, err := c.GetDocuments(ctx, ""); return err },
		"delete_document": func() error { return c.DeleteDocument(ctx, "a", "") },
		"execute_query":   func() error { _, err := c.ExecuteQuery(ctx, "//a", ""); return err },
	}

	names := make([]string, 0, len(ops))
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			err := ops[name]()
			if !errors.Is(err, basex.ErrConnectionClosed) {
				t.Errorf("Expected ErrConnectionClosed, got %v", err)
			}
		})
	}
	if transport.calls != 0 {
		t.Errorf("Expected no transport calls, got %d", transport.calls)
	}
	if srv.Requests() != 0 {
		t.Errorf("Expected no server requests, got %d", srv.Requests())
	}
}

func TestNonCompliantServer(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "html page", status: http.StatusOK, body: "<html><body>It works!</body></html>"},
		{name: "plain text", status: http.StatusOK, body: "hello"},
		{name: "foreign namespace", status: http.StatusOK, body: `<databases xmlns="http://example.com"/>`},
		{name: "not found", status: http.StatusNotFound, body: "no such page"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			c := newClient(t, server.URL)
			_, err := c.GetDatabases(context.Background())
			if !errors.Is(err, basex.ErrInvalidURL) {
				t.Errorf("Expected ErrInvalidURL, got %v", err)
			}
		})
	}
}

func TestWrongEndpointOnDatabaseScopedRequest(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	c := newClient(t, srv.URL()+"/nested")

	_, err := c.GetResources(context.Background(), testDB)
	if !errors.Is(err, basex.ErrInvalidURL) {
		t.Fatalf("Expected ErrInvalidURL, got %v", err)
	}
}

func TestEndpointRecheck(t *testing.T) {
	tests := []struct {
		name     string
		opts     []basex.Option
		requests int
	}{
		{name: "recheck", requests: 2},
		{name: "no recheck", opts: []basex.Option{basex.WithoutEndpointRecheck()}, requests: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := basexfake.New()
			defer srv.Close()
			c := newClient(t, srv.URL(), tt.opts...)

			_, err := c.GetResources(context.Background(), "missing")
			if !errors.Is(err, basex.ErrUnknownDatabase) {
				t.Fatalf("Expected ErrUnknownDatabase, got %v", err)
			}
			if srv.Requests() != tt.requests {
				t.Errorf("Expected %d requests, got %d", tt.requests, srv.Requests())
			}
		})
	}
}

func TestAuthentication(t *testing.T) {
	srv := basexfake.New(basexfake.WithCredentials("admin", "secret"))
	defer srv.Close()

	tests := []struct {
		name    string
		opts    []basex.Option
		message string
	}{
		{name: "missing", message: "credentials missing"},
		{name: "user only", opts: []basex.Option{basex.WithCredentials("admin", "")}, message: "credentials missing"},
		{name: "rejected", opts: []basex.Option{basex.WithCredentials("admin", "wrong")}, message: "credentials rejected"},
		{name: "accepted", opts: []basex.Option{basex.WithCredentials("admin", "secret")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newClient(t, srv.URL(), tt.opts...)
			_, err := c.GetDatabases(context.Background())
			if tt.message == "" {
				if err != nil {
					t.Fatalf("Unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, basex.ErrAuthentication) {
				t.Fatalf("Expected ErrAuthentication, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.message) {
				t.Errorf("Expected %q in %q", tt.message, err.Error())
			}
		})
	}
}

func TestConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := newClient(t, url)
	_, err := c.GetDatabases(context.Background())
	if !errors.Is(err, basex.ErrConnection) {
		t.Fatalf("Expected ErrConnection, got %v", err)
	}
	if !strings.Contains(err.Error(), url) {
		t.Errorf("Expected error to name the endpoint, got %q", err.Error())
	}
}

func TestCancelledContext(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	c := newClient(t, srv.URL())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetDatabases(ctx)
	if !errors.Is(err, basex.ErrConnection) || !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected ErrConnection wrapping context.Canceled, got %v", err)
	}
}

func TestMissingDatabase(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	c := newClient(t, srv.URL())
	ctx := context.Background()

	ops := []struct {
		name string
		run  func() error
	}{
		{"create_database", func() error { return c.CreateDatabase(ctx, "") }},
		{"get_resources", func() error { _, err := c.GetResources(ctx, ""); return err }},
		{"get_document", func() error { _, err := c.GetDocument(ctx, "a", ""); return err }},
		{"execute_query", func() error { _, err := c.ExecuteQuery(ctx, "//a", ""); return err }},
	}
	for _, op := range ops {
		t.Run(op.name, func(t *testing.T) {
			if err := op.run(); !errors.Is(err, basex.ErrConfiguration) {
				t.Errorf("Expected ErrConfiguration, got %v", err)
			}
		})
	}
	if srv.Requests() != 0 {
		t.Errorf("Expected no requests, got %d", srv.Requests())
	}
}

func TestWithSession(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	c := basex.New(srv.URL())

	boom := errors.New("boom")
	err := c.WithSession(func(c *basex.Client) error {
		if !c.Connected() {
			t.Error("Expected client to be connected inside the session")
		}
		if _, err := c.GetDatabases(context.Background()); err != nil {
			t.Errorf("GetDatabases() returned error: %v", err)
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("Expected the callback error, got %v", err)
	}
	if c.Connected() {
		t.Error("Expected client to be disconnected after the session")
	}

	c.Disconnect()
	if err := c.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}
}

type recordedRequest struct {
	operation string
	method    string
	status    int
}

type recordingObserver struct {
	requests  []recordedRequest
	reverted  int
	failed    int
	rollbacks int
}

func (o *recordingObserver) ObserveRequest(operation, method string, status int, _ time.Duration) {
	o.requests = append(o.requests, recordedRequest{operation, method, status})
}

func (o *recordingObserver) ObserveRollback(reverted, failed int) {
	o.rollbacks++
	o.reverted += reverted
	o.failed += failed
}

func TestObserver(t *testing.T) {
	srv := basexfake.New()
	defer srv.Close()
	srv.Seed(testDB, nil)
	srv.FailPutsAfter(1)
	obs := &recordingObserver{}
	c := newClient(t, srv.URL(), basex.WithObserver(obs))

	docs := map[string]*etree.Document{"a": mustDoc(t, "<a/>"), "b": mustDoc(t, "<b/>")}
	if _, err := c.AddDocumentsWithIDs(context.Background(), docs, testDB, false); err == nil {
		t.Fatal("Expected an error")
	}

	want := []recordedRequest{
		{"add_documents", http.MethodGet, http.StatusOK},
		{"add_documents", http.MethodPut, http.StatusCreated},
		{"add_documents", http.MethodPut, http.StatusInternalServerError},
		{"add_documents", http.MethodDelete, http.StatusOK},
	}
	if diff := cmp.Diff(want, obs.requests, cmp.AllowUnexported(recordedRequest{})); diff != "" {
		t.Errorf("requests mismatch (-want +got):\n%s", diff)
	}
	if obs.rollbacks != 1 || obs.reverted != 1 || obs.failed != 0 {
		t.Errorf("Unexpected rollback observations: %+v", obs)
	}
}
