package basex

// resourceURL builds root/database[/id]. Segments are joined verbatim since
// BaseX resource ids may contain slashes.
func (c *Client) resourceURL(database, id string) string {
	u := c.url + "/" + database
	if id != "" {
		u += "/" + id
	}
	return u
}

// resolveDatabase returns name, or the default database when name is empty.
func (c *Client) resolveDatabase(op, name string) (string, error) {
	if name != "" {
		return name, nil
	}
	if c.defaultDatabase != "" {
		return c.defaultDatabase, nil
	}
	return "", c.fail(&Error{Kind: KindConfiguration, Op: op, Message: "missing default database"})
}
