// Package nested resolves dot-separated paths against decoded JSON values.
//
// A path such as "data.items.0.name" walks maps by key and sequences by
// index. Resolution never fails: a path that cannot be followed yields an
// absent result, which callers can tell apart from a present JSON null.
package nested
