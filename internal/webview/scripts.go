package webview

import (
	"net/http"
	"strings"
)

// HomeScript collects the reader's pinned and unpinned series from the
// page history handler and passes them back as one JSON array.
const HomeScript = `
let dispatched = false;
const timeoutId = setTimeout(() => {
  if (!dispatched) {
    dispatched = true;
    window.` + BridgeName + `('[]');
  }
}, 3000);

(function () {
  if (!dispatched) {
    clearTimeout(timeoutId);
    dispatched = true;
    Promise.all(
      [globalHistoryHandler.getAllPinnedSeries(), globalHistoryHandler.getAllUnpinnedSeries()]
    ).then(e => {
      window.` + BridgeName + `(JSON.stringify(e.flatMap(e => e)));
    }).catch(() => {
      window.` + BridgeName + `('[]');
    });
  }
})();
`

// TagScript records the visit in the reader's history. The host does not
// wait for its payload.
const TagScript = `
let dispatched = false;
const timeoutId = setTimeout(() => {
  if (!dispatched) {
    dispatched = true;
    window.` + BridgeName + `('[]');
  }
}, 3000);

window.addEventListener('history-ready', function () {
  if (!dispatched) {
    clearTimeout(timeoutId);
    dispatched = true;
    Promise.all(
      [globalHistoryHandler.getAllPinnedSeries(), globalHistoryHandler.getAllUnpinnedSeries()]
    ).then(e => {
      window.` + BridgeName + `(JSON.stringify(e.flatMap(e => e)));
    }).catch(() => {
      window.` + BridgeName + `('[]');
    });
  }
});
tag();
`

// StripAPIPath turns an API series URL into the reader page that shows it.
func StripAPIPath(u string) string {
	u = strings.ReplaceAll(u, "/api/", "/")
	return strings.ReplaceAll(u, "/series/", "/")
}

// NewHomeInterceptor replaces the response body with the reader history.
func NewHomeInterceptor(base http.RoundTripper, pool *Pool, opts InterceptorOptions) *Interceptor {
	opts.Script = HomeScript
	opts.URLModifier = nil
	opts.Transparent = false

	return NewInterceptor(base, pool, opts)
}

// NewTagInterceptor visits the reader page for every series request and
// passes the original response through.
func NewTagInterceptor(base http.RoundTripper, pool *Pool, opts InterceptorOptions) *Interceptor {
	opts.Script = TagScript
	opts.URLModifier = StripAPIPath
	opts.Transparent = true

	return NewInterceptor(base, pool, opts)
}
