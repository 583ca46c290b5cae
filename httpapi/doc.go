// Package httpapi serves the query service over HTTP with gin.
//
// POST /search embeds the query and returns the nearest documents from the
// active snapshot. The remaining routes expose structured lookups and the
// snapshot that is currently being served. When the server is given a
// Rebuilder, POST /rebuild publishes a new snapshot without interrupting
// searches; a second rebuild while one runs gets 409.
package httpapi
