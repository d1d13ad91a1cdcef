// Package generic holds the parsing helpers shared by the site adapters:
// goquery document loading, URL resolution, chapter-number and date
// parsing, and page-image collection.
package generic
