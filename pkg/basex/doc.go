// Package basex is a client for the REST interface of the BaseX XML database.
//
// A Client addresses one REST root, e.g. http://localhost:8984/rest, and runs
// operations only while connected:
//
//	c := basex.New("http://localhost:8984/rest",
//		basex.WithDefaultDatabase("cities"),
//		basex.WithCredentials("admin", "admin"),
//	)
//	err := c.WithSession(func(c *basex.Client) error {
//		if err := c.CreateDatabase(ctx, ""); err != nil {
//			return err
//		}
//		doc := etree.NewDocument()
//		doc.SetRoot(etree.NewElement("city"))
//		id, err := c.AddDocument(ctx, doc, "", "")
//		if err != nil {
//			return err
//		}
//		results, err := c.ExecuteQuery(ctx, "//city", "")
//		...
//	})
//
// Operations taking a database name fall back to the default database when
// the name is empty. Every failure is an *Error; match its Kind with
// errors.Is against the Err sentinels:
//
//	if errors.Is(err, basex.ErrUnknownDatabase) {
//		...
//	}
//
// AddDocuments and AddDocumentsWithIDs store a batch one document at a time
// and delete the documents they stored when a later store fails.
package basex
