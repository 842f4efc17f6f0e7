// Package discovery resolves, for each tracked market type, the currently
// active Up/Down market window and the next one starting soon.
//
// A discovery pass combines a tag-based catalog query, slug-prefix queries
// per asset, and timestamp-enumerated exact-slug queries for the 15-minute
// types. Individual query failures are logged and skipped; a pass never
// aborts. Types that fail to resolve keep their previous window and are
// retried on the next pass.
package discovery
