package requestclient

import (
	"net/url"
	"strings"
)

// componentUnescaper restores the characters a browser leaves alone in a URI
// component but url.QueryEscape encodes. A literal '+' is already %2B after
// QueryEscape, so every remaining '+' stands for a space.
var componentUnescaper = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeQueryComponent percent-encodes s for use as a query value, leaving
// A-Z a-z 0-9 and - _ . ! ~ * ' ( ) as they are. Spaces become %20, so the
// result decodes back to s under both query and path unescaping.
func EncodeQueryComponent(s string) string {
	return componentUnescaper.Replace(url.QueryEscape(s))
}

func buildURL(baseURL, path, name string) string {
	return strings.TrimRight(baseURL, "/") + path + "?name=" + EncodeQueryComponent(name)
}
