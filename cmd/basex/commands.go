package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/beevik/etree"
	"stealthcompany.com/basex/pkg/basex"
)

// usageError marks a malformed command line.
type usageError struct {
	msg string
}

func (e usageError) Error() string {
	return e.msg
}

const loadUsage = "load [-skip-duplicates] FILE..."

type command struct {
	usage   string
	minArgs int
	maxArgs int // -1 for no limit
	run     func(ctx context.Context, c *basex.Client, args []string, out io.Writer) error
}

var commands = map[string]command{
	"databases":  {usage: "databases", run: listDatabases},
	"create-db":  {usage: "create-db NAME", minArgs: 1, maxArgs: 1, run: createDatabase},
	"replace-db": {usage: "replace-db NAME", minArgs: 1, maxArgs: 1, run: replaceDatabase},
	"drop-db":    {usage: "drop-db [NAME]", maxArgs: 1, run: dropDatabase},
	"resources":  {usage: "resources", run: listResources},
	"get":        {usage: "get ID", minArgs: 1, maxArgs: 1, run: getDocument},
	"get-all":    {usage: "get-all", run: getAllDocuments},
	"put":        {usage: "put FILE [ID]", minArgs: 1, maxArgs: 2, run: putDocument},
	"load":       {usage: loadUsage, minArgs: 1, maxArgs: -1, run: loadDocuments},
	"delete":     {usage: "delete ID", minArgs: 1, maxArgs: 1, run: deleteDocument},
	"query":      {usage: "query EXPR", minArgs: 1, maxArgs: 1, run: executeQuery},
}

func commandUsage() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "  %s\n", commands[name].usage)
	}
	return b.String()
}

// lookupCommand resolves args[0] and checks the argument count. Flags of
// load are counted as arguments here and parsed by the command itself.
func lookupCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{}, usageError{"missing command"}
	}
	cmd, ok := commands[args[0]]
	if !ok {
		return command{}, usageError{fmt.Sprintf("unknown command %q", args[0])}
	}
	n := len(args) - 1
	if n < cmd.minArgs || (cmd.maxArgs >= 0 && n > cmd.maxArgs) {
		return command{}, usageError{"usage: basex " + cmd.usage}
	}
	return cmd, nil
}

func listDatabases(ctx context.Context, c *basex.Client, _ []string, out io.Writer) error {
	dbs, err := c.GetDatabases(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tRESOURCES\tSIZE")
	for _, db := range dbs {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", db.Name, db.Resources, db.Size)
	}
	return tw.Flush()
}

func createDatabase(ctx context.Context, c *basex.Client, args []string, _ io.Writer) error {
	return c.CreateDatabase(ctx, args[0])
}

func replaceDatabase(ctx context.Context, c *basex.Client, args []string, _ io.Writer) error {
	return c.ReplaceDatabase(ctx, args[0])
}

func dropDatabase(ctx context.Context, c *basex.Client, args []string, _ io.Writer) error {
	name := ""
	if len(args) > 0 {
		name = args[0]
	}
	return c.DeleteDatabase(ctx, name)
}

func listResources(ctx context.Context, c *basex.Client, _ []string, out io.Writer) error {
	resources, err := c.GetResources(ctx, "")
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTYPE\tCONTENT-TYPE\tSIZE")
	for _, r := range resources {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", r.ID, r.Type, r.ContentType, r.Size)
	}
	return tw.Flush()
}

func writeDocument(out io.Writer, doc *etree.Document) error {
	doc.Indent(2)
	_, err := doc.WriteTo(out)
	return err
}

func getDocument(ctx context.Context, c *basex.Client, args []string, out io.Writer) error {
	lookup, err := c.GetDocument(ctx, args[0], "")
	if err != nil {
		return err
	}
	if !lookup.Found {
		return fmt.Errorf("document %q not found", args[0])
	}
	return writeDocument(out, lookup.Document)
}

func getAllDocuments(ctx context.Context, c *basex.Client, _ []string, out io.Writer) error {
	docs, err := c.GetDocuments(ctx, "")
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		lookup := docs[id]
		if !lookup.Found {
			// Listed but gone by the time it was fetched.
			fmt.Fprintf(out, "# %s (not found)\n", id)
			continue
		}
		fmt.Fprintf(out, "# %s\n", id)
		if err := writeDocument(out, lookup.Document); err != nil {
			return err
		}
	}
	return nil
}

func readDocument(path string) (*etree.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc := etree.NewDocument()
	if _, err := doc.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if doc.Root() == nil {
		return nil, fmt.Errorf("failed to parse %s: no root element", path)
	}
	return doc, nil
}

// documentID derives an id from a file name by dropping directory and extension.
func documentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func putDocument(ctx context.Context, c *basex.Client, args []string, out io.Writer) error {
	doc, err := readDocument(args[0])
	if err != nil {
		return err
	}
	id := ""
	if len(args) > 1 {
		id = args[1]
	}
	id, err = c.AddDocument(ctx, doc, id, "")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, id)
	return nil
}

func loadDocuments(ctx context.Context, c *basex.Client, args []string, out io.Writer) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	skip := fs.Bool("skip-duplicates", false, "leave out documents whose id is already stored")
	if err := fs.Parse(args); err != nil {
		return usageError{"usage: basex " + loadUsage}
	}
	if fs.NArg() == 0 {
		return usageError{"usage: basex " + loadUsage}
	}

	docs := make(map[string]*etree.Document, fs.NArg())
	for _, path := range fs.Args() {
		id := documentID(path)
		if _, dup := docs[id]; dup {
			return fmt.Errorf("files map to the same id %q", id)
		}
		doc, err := readDocument(path)
		if err != nil {
			return err
		}
		docs[id] = doc
	}

	result, err := c.AddDocumentsWithIDs(ctx, docs, "", *skip)
	if err != nil {
		return err
	}
	for _, id := range result.Stored {
		fmt.Fprintf(out, "stored %s\n", id)
	}
	for _, id := range result.Duplicates {
		fmt.Fprintf(out, "skipped %s\n", id)
	}
	return nil
}

func deleteDocument(ctx context.Context, c *basex.Client, args []string, _ io.Writer) error {
	return c.DeleteDocument(ctx, args[0], "")
}

func executeQuery(ctx context.Context, c *basex.Client, args []string, out io.Writer) error {
	results, err := c.ExecuteQuery(ctx, args[0], "")
	if err != nil {
		return err
	}
	return writeDocument(out, results)
}

// exitCode maps a command error to the process exit status.
func exitCode(err error) int {
	var uErr usageError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &uErr):
		return 2
	default:
		return 1
	}
}
